package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chimera-nas/chimera/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTask(t *testing.T) {
	s := New(2, 16)
	defer s.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	s.Submit(0, func(ctx context.Context, w *vfs.Worker) {
		ran = true
		wg.Done()
	})
	wg.Wait()
	assert.True(t, ran)
}

func TestDeferOnTickRunsAfterQueueDrains(t *testing.T) {
	s := New(1, 16)
	defer s.Shutdown()

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)

	s.Submit(0, func(ctx context.Context, w *vfs.Worker) {
		mu.Lock()
		order = append(order, "task")
		mu.Unlock()
		w.DeferOnTick(func() {
			mu.Lock()
			order = append(order, "deferred")
			mu.Unlock()
			wg.Done()
		})
	})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"task", "deferred"}, order)
}

func TestShutdownWaitsForWorkers(t *testing.T) {
	s := New(3, 4)
	done := make(chan struct{})
	go func() {
		s.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}
