// ABOUTME: Bookkeeping registry for in-flight webhook delivery tasks
// ABOUTME: Lets shutdown wait, bounded by a timeout, for outstanding deliveries

package webhook

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// taskRegistry tracks detached webhook delivery tasks. Every task registers
// a handle before starting and deregisters on every exit path, so shutdown
// can wait for the set to drain. Entries live exactly as long as one
// webhook delivery.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]struct{}
	wg    sync.WaitGroup
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{
		tasks: make(map[uuid.UUID]struct{}),
	}
}

// register adds a new task handle and returns it.
func (r *taskRegistry) register() uuid.UUID {
	id := uuid.New()

	r.mu.Lock()
	r.tasks[id] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	return id
}

// deregister removes a task handle. Safe to call exactly once per handle.
func (r *taskRegistry) deregister(id uuid.UUID) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()

	r.wg.Done()
}

// count returns the number of tasks currently in flight.
func (r *taskRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// wait blocks until all in-flight tasks finish or the context is done.
// Returns the context error when the wait was cut short.
func (r *taskRegistry) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
