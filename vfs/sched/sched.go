// Package sched supplies the evpl-equivalent concurrency runtime: worker
// threads running a cooperative event loop with deferred, end-of-tick
// actions (spec.md §1 names the real evpl library as an external
// collaborator; this is the reference scheduler the core actually runs
// against). Grounded on golang.org/x/sync/errgroup's worker-group idiom
// (a real teacher dependency) for the worker-pool shape, and on the
// teacher's lib/atexit register-hooks convention (API-shape-grounded,
// test-only in this pack) for the shutdown-drain style, re-expressed here
// as a per-tick rather than per-process hook since the unit of work is a
// scheduler tick, not process exit.
package sched

import (
	"context"

	"github.com/chimera-nas/chimera/vfs"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of work submitted to a worker.
type Task func(ctx context.Context, w *vfs.Worker)

// Scheduler runs a fixed pool of workers, each single-threaded with
// respect to its own queue (spec.md §5 "A back end's per-worker state is
// thread-exclusive"). Each worker drains its queue and, once the queue is
// empty (an "end of tick"), runs any deferred actions registered during
// that batch — this is what lets cairn batch many requests into one
// transaction commit (spec.md §4.3).
type Scheduler struct {
	workers []*workerLoop
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
}

type workerLoop struct {
	worker *vfs.Worker
	tasks  chan Task
}

// New creates a Scheduler with n workers, each with the given task queue
// depth.
func New(n, queueDepth int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	s := &Scheduler{group: g, ctx: gctx, cancel: cancel}
	for i := 0; i < n; i++ {
		wl := &workerLoop{
			worker: vfs.NewWorker(i),
			tasks:  make(chan Task, queueDepth),
		}
		s.workers = append(s.workers, wl)
		g.Go(func() error {
			wl.run(gctx)
			return nil
		})
	}
	return s
}

// NumWorkers returns the number of workers in the pool.
func (s *Scheduler) NumWorkers() int { return len(s.workers) }

// Worker returns the i'th worker's state, for modules that need to run
// WorkerInit/WorkerDestroy against every worker up front.
func (s *Scheduler) Worker(i int) *vfs.Worker { return s.workers[i].worker }

// Submit enqueues t on worker i's queue.
func (s *Scheduler) Submit(i int, t Task) {
	s.workers[i].tasks <- t
}

// DeferOnTick registers fn to run once worker i's current queue of tasks
// drains (the "end of tick" point spec.md §4.3 defers cairn's commit to).
func (s *Scheduler) DeferOnTick(i int, fn func()) {
	s.workers[i].worker.DeferOnTick(fn)
}

func (wl *workerLoop) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			wl.worker.RunDeferred()
			return
		case t, ok := <-wl.tasks:
			if !ok {
				wl.worker.RunDeferred()
				return
			}
			t(ctx, wl.worker)
			if len(wl.tasks) == 0 {
				wl.worker.RunDeferred()
			}
		}
	}
}

// Shutdown closes every worker's queue, cancels the scheduler's context and
// waits for the worker goroutines to return. It does not check PendingIO.
func (s *Scheduler) Shutdown() {
	for _, wl := range s.workers {
		close(wl.tasks)
	}
	s.cancel()
	_ = s.group.Wait()
}
