package core

import (
	"context"
	"sync"
)

// Actor defines the capabilities every participant of a task exposes to the
// orchestrator.
//
// Actors are identified by ID: two values with the same ID denote the same
// actor regardless of their other fields. Use SameActor for comparisons and
// ActorSet when an actor needs to be used as a collection key.
//
// Instructions are private to the actor and only ever rendered into its own
// prompt. Description is public and may be shown to other actors.
type Actor interface {
	ID() string
	Name() string
	Instructions() string
	Description() string

	// Prompt renders the actor's prompt template with the actor as data.
	// Rendering failures are reported as *TemplateError.
	Prompt() (string, error)

	// FriendlyName returns `Kind "name" (id)` when verbose, else just the name.
	FriendlyName(verbose bool) string

	Tools() []Tool
	EndTurnTools() []EndTurn
	Memories() []Memory

	// StartTurn is invoked by the orchestrator before the actor's turn.
	StartTurn(ctx context.Context, o Orchestrator) error

	// EndTurn is invoked by the orchestrator after the actor's turn.
	EndTurn(ctx context.Context, o Orchestrator, result TurnResult) error
}

// SameActor reports whether a and b denote the same actor.
func SameActor(a, b Actor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return a.ID() == b.ID()
}

// ActorSet is an insertion ordered set of actors keyed by ID. It is safe for
// concurrent use.
type ActorSet struct {
	mu    sync.RWMutex
	index map[string]int
	items []Actor
}

// NewActorSet creates a set containing the given actors.
func NewActorSet(actors ...Actor) *ActorSet {
	s := &ActorSet{index: map[string]int{}}
	for _, a := range actors {
		s.Add(a)
	}

	return s
}

// Add inserts a unless an actor with the same ID is already present.
// It reports whether the set changed.
func (s *ActorSet) Add(a Actor) bool {
	if a == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[a.ID()]; ok {
		return false
	}

	s.index[a.ID()] = len(s.items)
	s.items = append(s.items, a)

	return true
}

// Contains reports whether an actor with a's ID is in the set.
func (s *ActorSet) Contains(a Actor) bool {
	if a == nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.index[a.ID()]

	return ok
}

// Get returns the member with the given ID.
func (s *ActorSet) Get(id string) (Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, false
	}

	return s.items[i], true
}

// Len returns the number of distinct actors.
func (s *ActorSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// Actors returns the members in insertion order.
func (s *ActorSet) Actors() []Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Actor, len(s.items))
	copy(out, s.items)

	return out
}
