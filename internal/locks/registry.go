// pattern: Imperative Shell

package locks

import (
	"context"
	"strings"
	"sync"
)

// Registry provides keyed mutual exclusion. Callers sharing a key are
// serialized in arrival order; distinct keys never block each other. A lock
// exists only while held or contended, so the registry stays small.
type Registry struct {
	mu   sync.Mutex
	keys map[string]*keyState
}

// keyState is one key's queue. held marks the active owner; waiters are
// granted the lock strictly FIFO.
type keyState struct {
	held    bool
	waiters []chan struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]*keyState)}
}

// Key builds a registry key from resource identifiers, e.g. a project path
// plus a worktree name. The separator cannot appear in a path, so distinct
// pairs never collide.
func Key(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// WithLock runs fn while holding key and returns fn's error. The lock is
// released when fn returns, no matter how it returns. Acquisition aborts with
// ctx.Err() if the context ends while queued.
func (r *Registry) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := r.acquire(ctx, key); err != nil {
		return err
	}
	defer r.release(key)
	return fn(ctx)
}

// Locked runs fn under the registry lock for key and returns its value.
func Locked[T any](ctx context.Context, r *Registry, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.WithLock(ctx, key, func(ctx context.Context) error {
		var fnErr error
		out, fnErr = fn(ctx)
		return fnErr
	})
	return out, err
}

// Active returns the number of keys currently held or contended.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

func (r *Registry) acquire(ctx context.Context, key string) error {
	r.mu.Lock()
	st, ok := r.keys[key]
	if !ok {
		st = &keyState{}
		r.keys[key] = st
	}
	if !st.held {
		st.held = true
		r.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	st.waiters = append(st.waiters, ready)
	r.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		r.abandon(key, ready)
		return ctx.Err()
	}
}

// release hands the lock to the oldest waiter, or retires the key when the
// queue is empty.
func (r *Registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.keys[key]
	if st == nil {
		return
	}
	if len(st.waiters) > 0 {
		next := st.waiters[0]
		st.waiters = st.waiters[1:]
		close(next) // ownership transfers; held stays true
		return
	}
	st.held = false
	delete(r.keys, key)
}

// abandon removes a canceled waiter from the queue. If the grant raced the
// cancellation and already happened, the lock is passed straight on.
func (r *Registry) abandon(key string, ready chan struct{}) {
	r.mu.Lock()
	st := r.keys[key]
	if st != nil {
		for i, w := range st.waiters {
			if w == ready {
				st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
				if !st.held && len(st.waiters) == 0 {
					delete(r.keys, key)
				}
				r.mu.Unlock()
				return
			}
		}
	}
	r.mu.Unlock()
	// Not queued anymore: we own the lock despite the cancellation.
	r.release(key)
}
