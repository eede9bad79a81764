package core

import (
	"context"
	"fmt"
	"sync"
)

type activeActorKey struct{}

// frame is one entry of the active actor stack. Frames form a linked list
// through parent and are shared by every context derived from the context
// that activated them.
type frame struct {
	actor  Actor
	parent *frame

	mu       sync.Mutex
	released bool
	children int
}

func (f *frame) isReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.released
}

// adopt registers a nested activation. It fails once the frame is released.
func (f *frame) adopt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.released {
		return false
	}

	f.children++

	return true
}

func (f *frame) orphan() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.children--
}

// innermost returns the nearest unreleased frame starting at f.
func innermost(f *frame) *frame {
	for f != nil && f.isReleased() {
		f = f.parent
	}

	return f
}

func frameFromContext(ctx context.Context) *frame {
	f, _ := ctx.Value(activeActorKey{}).(*frame)
	return f
}

// Activation is the handle returned by Activate. Release pops the actor.
type Activation struct {
	frame  *frame
	logger *loggerAdapter
}

// Actor returns the activated actor.
func (a *Activation) Actor() Actor { return a.frame.actor }

// Release restores the actor that was current before the activation.
//
// Activations must be released in LIFO order: releasing a frame while one
// of its nested activations is still active returns ErrOutOfOrderRelease and
// leaves the stack untouched. Releasing the same activation twice is a no-op.
func (a *Activation) Release() error {
	f := a.frame

	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		a.logger.LogWarn("actor.release.duplicate", "actor", f.actor.Name(), "actor_id", f.actor.ID())

		return nil
	}

	if f.children > 0 {
		n := f.children
		f.mu.Unlock()

		return fmt.Errorf("%w: %s has %d active nested activation(s)", ErrOutOfOrderRelease, f.actor.FriendlyName(true), n)
	}

	f.released = true
	f.mu.Unlock()

	if f.parent != nil {
		f.parent.orphan()
	}

	a.logger.LogDebug("actor.release", "actor", f.actor.Name(), "actor_id", f.actor.ID())

	return nil
}

// Activate makes actor the current actor for the returned context and every
// context derived from it. The previously current actor (if any) becomes
// current again once the returned Activation is released.
//
// The slot lives in the context chain, so concurrent calls started from
// unrelated contexts never observe each other's actors.
func Activate(ctx context.Context, actor Actor) (context.Context, *Activation) {
	parent := innermost(frameFromContext(ctx))
	for parent != nil && !parent.adopt() {
		parent = innermost(parent.parent)
	}

	f := &frame{actor: actor, parent: parent}
	logger := newLoggerAdapter(LoggerFromContext(ctx))

	logger.LogDebug("actor.activate", "actor", actor.Name(), "actor_id", actor.ID())

	return context.WithValue(ctx, activeActorKey{}, f), &Activation{frame: f, logger: logger}
}

// CurrentActor returns the actor active in ctx, or nil if there is none.
func CurrentActor(ctx context.Context) Actor {
	if f := innermost(frameFromContext(ctx)); f != nil {
		return f.actor
	}

	return nil
}

// WithActor runs fn with actor activated and releases it on every exit
// path, including panics inside fn.
func WithActor(ctx context.Context, actor Actor, fn func(ctx context.Context) error) error {
	actx, act := Activate(ctx, actor)
	defer func() {
		if err := act.Release(); err != nil {
			newLoggerAdapter(LoggerFromContext(ctx)).LogError("actor.release.failed", "actor", actor.Name(), "error", err.Error())
		}
	}()

	return fn(actx)
}
