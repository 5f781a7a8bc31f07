package project

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory owns one project's state and guards every mutation behind a
// durable write. Mutators apply their change to a working copy, bump
// LastUpdatedMs strictly monotonically, await the Store save, and only
// then commit the copy — on a save error the in-memory state is
// unchanged and the error is returned to the caller.
type Memory struct {
	mu    sync.RWMutex
	store Store
	state *State
}

// NewMemory wraps an existing state. The state is cloned on the way in;
// the caller's value stays independent.
func NewMemory(store Store, state *State) *Memory {
	clone := state.Clone()
	clone.normalize()
	return &Memory{store: store, state: clone}
}

// Create builds a fresh project, persists it, and returns its Memory.
func Create(ctx context.Context, store Store, name, ownerID string) (*Memory, error) {
	state := NewState(name)
	state.OwnerID = ownerID
	state.LastUpdatedMs = time.Now().UnixMilli()

	if err := store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist new project: %w", err)
	}

	return NewMemory(store, state), nil
}

// Open loads an existing project through the store. A missing project —
// or an owner mismatch — surfaces as ErrNotFound.
func Open(ctx context.Context, store Store, id, ownerID string) (*Memory, error) {
	state, err := store.Load(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	return &Memory{store: store, state: state}, nil
}

// Snapshot returns a fully independent deep copy of the current state.
func (m *Memory) Snapshot() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// ProjectID returns the immutable project identity.
func (m *Memory) ProjectID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ID
}

// mutate runs fn against a working copy, persists it, then commits.
func (m *Memory) mutate(ctx context.Context, fn func(*State) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.Clone()
	if err := fn(working); err != nil {
		return err
	}

	working.LastUpdatedMs = touch(m.state.LastUpdatedMs)

	if err := m.store.Save(ctx, working); err != nil {
		return fmt.Errorf("failed to persist project %s: %w", working.ID, err)
	}

	m.state = working
	return nil
}

// touch returns the current wall clock in milliseconds, strictly greater
// than the previous stamp even within the same millisecond.
func touch(prevMs int64) int64 {
	now := time.Now().UnixMilli()
	if now <= prevMs {
		return prevMs + 1
	}
	return now
}

// UpdatePhase moves the project to phase. Backward transitions are
// allowed; they are the recovery path.
func (m *Memory) UpdatePhase(ctx context.Context, phase Phase) error {
	if err := phase.Validate(); err != nil {
		return err
	}
	return m.mutate(ctx, func(s *State) error {
		s.Phase = phase
		return nil
	})
}

// UpdateDocument shallow-merges a patch into the named living document,
// creating the record if it does not exist.
func (m *Memory) UpdateDocument(ctx context.Context, name string, patch DocumentPatch) error {
	if name == "" {
		return fmt.Errorf("document name cannot be empty")
	}
	return m.mutate(ctx, func(s *State) error {
		s.Documents[name] = patch.apply(s.Documents[name])
		return nil
	})
}

// UpdateArtifact shallow-merges a patch into the named code artifact,
// creating the record if it does not exist.
func (m *Memory) UpdateArtifact(ctx context.Context, name string, patch ArtifactPatch) error {
	if name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	return m.mutate(ctx, func(s *State) error {
		s.Artifacts[name] = patch.apply(s.Artifacts[name])
		return nil
	})
}

// UpdateAgentContext shallow-merges a patch into the role's context
// pointer, creating the context if the role is new.
func (m *Memory) UpdateAgentContext(ctx context.Context, role string, patch AgentContextPatch) error {
	if role == "" {
		return fmt.Errorf("agent role cannot be empty")
	}
	return m.mutate(ctx, func(s *State) error {
		agentCtx, ok := s.Agents[role]
		if !ok {
			agentCtx = &AgentContext{NextTasks: []string{}, NeedsFromOthers: []string{}}
			s.Agents[role] = agentCtx
		}
		patch.apply(agentCtx)
		return nil
	})
}

// AddGuideline appends a learned rule to the knowledge base. The ledger
// is append-only and ordered, oldest first. Malformed guidelines are
// rejected so callers can discard and log them.
func (m *Memory) AddGuideline(ctx context.Context, g Guideline) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return m.mutate(ctx, func(s *State) error {
		s.KnowledgeBase.Guidelines = append(s.KnowledgeBase.Guidelines, g)
		return nil
	})
}

// SetOwner claims the project for a user. Claiming is one-way: an
// already-owned project cannot be re-claimed by someone else through
// this path.
func (m *Memory) SetOwner(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("owner ID cannot be empty")
	}
	return m.mutate(ctx, func(s *State) error {
		if s.OwnerID != "" && s.OwnerID != userID {
			return fmt.Errorf("project %s is already owned", s.ID)
		}
		s.OwnerID = userID
		return nil
	})
}
