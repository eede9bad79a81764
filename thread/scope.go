package thread

import (
	"context"
	"errors"

	"github.com/hupe1980/vexora/core"
)

// Ref identifies the thread a call should use: an existing handle, an id to
// look up (or create), or nothing.
type Ref struct {
	ID     string
	Handle *core.Thread
}

// ByID references a thread by identifier.
func ByID(id string) Ref { return Ref{ID: id} }

// Handle references an existing thread handle.
func Handle(t *core.Thread) Ref { return Ref{Handle: t} }

// IsZero reports whether the reference names no thread.
func (r Ref) IsZero() bool { return r.ID == "" && r.Handle == nil }

// processStore holds the threads of runtimes that configure no store.
var processStore = NewInMemoryStore()

// Resolve turns ref into a thread handle.
//
//   - a handle is used as is
//   - an id is looked up in store and created when missing
//   - an empty ref reuses the thread attached to ctx, else a new thread is created
//
// A nil store resolves against a process wide in-memory store, so threads
// named by id keep their history between calls.
func Resolve(ctx context.Context, store core.ThreadStore, ref Ref) (*core.Thread, error) {
	if ref.Handle != nil {
		return ref.Handle, nil
	}

	if ref.ID == "" {
		if t := core.ThreadFromContext(ctx); t != nil {
			return t, nil
		}
	}

	if store == nil {
		store = processStore
	}

	if ref.ID != "" {
		t, err := store.Get(ctx, ref.ID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, core.ErrThreadNotFound) {
			return nil, err
		}
	}

	return store.Create(ctx, ref.ID)
}

// Use resolves ref and runs fn with the thread attached to ctx. The thread
// scope is left on every exit path, including panics and cancellation.
func Use(ctx context.Context, store core.ThreadStore, ref Ref, fn func(ctx context.Context, t *core.Thread) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	t, err := Resolve(ctx, store, ref)
	if err != nil {
		return err
	}

	logger := core.LoggerFromContext(ctx)
	logger.Debug("Entering thread", "thread_id", t.ID)

	defer logger.Debug("Leaving thread", "thread_id", t.ID)

	return fn(core.ContextWithThread(ctx, t), t)
}
