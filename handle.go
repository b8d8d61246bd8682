package sensorcapture

import (
	"context"
	"sync"
)

// TaskHandle observes the acquisition goroutine started by Spawn.
type TaskHandle struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newTaskHandle() *TaskHandle {
	return &TaskHandle{done: make(chan struct{})}
}

// finish records the loop result and releases waiters. Only the first
// call has an effect.
func (h *TaskHandle) finish(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed when the acquisition loop has exited.
func (h *TaskHandle) Done() <-chan struct{} { return h.done }

// Wait blocks until the loop exits or ctx is done. It returns nil after a
// clean shutdown, the *FrameReadError that ended the loop, or ctx.Err().
func (h *TaskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the loop result without blocking; nil while still running.
func (h *TaskHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}
