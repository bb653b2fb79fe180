package vfs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chimera-nas/chimera/vfs/fh"
)

// Module is a back-end implementation of the VFS API, selected by the
// module-magic byte in a file handle (spec.md §2, Design Note
// "Process-wide module tables" — modelled here as a table indexed by
// magic byte, populated once at server init via Dispatcher.Register).
type Module interface {
	// Magic returns this module's 1-byte file-handle discriminator.
	Magic() byte
	// Name returns the module's config/CLI name (e.g. "cairn", "demofs").
	Name() string
	// Init is called once per process before any worker is started.
	Init(cfg json.RawMessage) error
	// Destroy releases process-wide resources at shutdown.
	Destroy()
	// WorkerInit is called once per worker before it dispatches any
	// request to this module.
	WorkerInit(w *Worker) error
	// WorkerDestroy releases this module's per-worker state.
	WorkerDestroy(w *Worker)
	// Blocking reports whether this module's handlers may block; the
	// front end is responsible for only invoking Dispatch on a worker
	// that tolerates blocking when this is true (spec.md §5).
	Blocking() bool
	// Dispatch runs req.Op against this module. Dispatch must call
	// req.Complete (directly or via a later callback) exactly once.
	Dispatch(ctx context.Context, w *Worker, req *Request)
}

// Worker is the per-goroutine state bag a back end may stash module-local
// data in, bound to one concurrency-runtime slot (vfs/sched.Scheduler).
// Per spec.md §5, a Worker's state is thread-exclusive: callers must
// confine a given Worker to a single goroutine.
type Worker struct {
	ID       int
	state    map[byte]any
	pending  int      // in-flight submissions, for shutdown draining (spec.md §5)
	deferred []func() // end-of-tick deferred actions (spec.md §4.3 cairn commit)
}

// NewWorker creates worker state for the given scheduler slot id.
func NewWorker(id int) *Worker {
	return &Worker{ID: id, state: make(map[byte]any)}
}

// Set stores module-local state for the module identified by magic.
func (w *Worker) Set(magic byte, v any) { w.state[magic] = v }

// Get returns the module-local state for magic, if any was set.
func (w *Worker) Get(magic byte) (any, bool) {
	v, ok := w.state[magic]
	return v, ok
}

// BeginIO increments the worker's pending-I/O counter.
func (w *Worker) BeginIO() { w.pending++ }

// EndIO decrements the worker's pending-I/O counter.
func (w *Worker) EndIO() { w.pending-- }

// PendingIO returns the number of in-flight submissions on this worker.
func (w *Worker) PendingIO() int { return w.pending }

// DeferOnTick registers fn to run once the scheduler drains the worker's
// current batch of queued tasks — the hook cairn's txnManager uses to
// commit a transaction and fire its batched completions (spec.md §4.3).
// Not safe to call from any goroutine other than the one driving this
// worker's tasks.
func (w *Worker) DeferOnTick(fn func()) {
	w.deferred = append(w.deferred, fn)
}

// RunDeferred runs and clears every action registered via DeferOnTick
// since the last call. The scheduler calls this once per tick.
func (w *Worker) RunDeferred() {
	fns := w.deferred
	w.deferred = nil
	for _, fn := range fns {
		fn()
	}
}

// Dispatcher routes requests to the registered Module by file-handle
// magic byte, or by name for MOUNT (spec.md §4.1 "Dispatch").
type Dispatcher struct {
	mu        sync.RWMutex
	byMagic   map[byte]Module
	byName    map[string]Module
}

// NewDispatcher creates an empty module table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{byMagic: make(map[byte]Module), byName: make(map[string]Module)}
}

// Register installs a module in the process-wide table. Must be called
// once per module at server init, before any worker starts dispatching.
func (d *Dispatcher) Register(m Module) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byMagic[m.Magic()]; exists {
		return fmt.Errorf("vfs: magic byte %#x already registered", m.Magic())
	}
	if _, exists := d.byName[m.Name()]; exists {
		return fmt.Errorf("vfs: module name %q already registered", m.Name())
	}
	d.byMagic[m.Magic()] = m
	d.byName[m.Name()] = m
	return nil
}

// ModuleByMagic looks up a module by its file-handle magic byte.
func (d *Dispatcher) ModuleByMagic(magic byte) (Module, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.byMagic[magic]
	return m, ok
}

// ModuleByName looks up a module by its configured name, used to resolve
// the MOUNT operation before any file handle exists.
func (d *Dispatcher) ModuleByName(name string) (Module, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.byName[name]
	return m, ok
}

// Modules returns every registered module, for init/destroy/worker
// lifecycle fan-out.
func (d *Dispatcher) Modules() []Module {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Module, 0, len(d.byMagic))
	for _, m := range d.byMagic {
		out = append(out, m)
	}
	return out
}

// Route decodes req.FH's magic byte (MOUNT instead uses req.Name as the
// target module's configured name) and dispatches to the matching
// module. A request whose handle names an unregistered magic, or a
// MOUNT naming an unknown module, completes with ErrStale.
func (d *Dispatcher) Route(ctx context.Context, w *Worker, req *Request) {
	if req.Op == OpMount {
		m, ok := d.ModuleByName(req.Name)
		if !ok {
			req.Complete(ErrStale)
			return
		}
		m.Dispatch(ctx, w, req)
		return
	}

	_, magic, _, err := fh.Decode(req.FH)
	if err != nil {
		req.Complete(ErrStale)
		return
	}
	m, ok := d.ModuleByMagic(magic)
	if !ok {
		req.Complete(ErrStale)
		return
	}
	m.Dispatch(ctx, w, req)
}
