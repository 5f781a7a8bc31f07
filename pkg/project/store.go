package project

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Store.Load when no project exists for the
// requested ID — including when one exists but the caller's owner does
// not match. Authorization denial is deliberately indistinguishable from
// absence so that load probes cannot leak project existence.
var ErrNotFound = errors.New("project not found")

// IsNotFound reports whether err is a Store "not found" result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the persistence adapter consumed by Memory. The persisted
// representation is a single JSON document per project, keyed by project
// ID; Save is an upsert on that key, so concurrent saves of the same
// project serialize at the adapter.
type Store interface {
	// Load retrieves a project by ID. ownerID may be empty (anonymous
	// load). A set ownerID that differs from a set state.OwnerID yields
	// ErrNotFound.
	Load(ctx context.Context, id, ownerID string) (*State, error)

	// Save durably writes the full state document.
	Save(ctx context.Context, state *State) error

	// List returns summaries of projects visible to ownerID: records
	// whose owner matches, plus unclaimed records (empty OwnerID), which
	// remain visible to all as a migration affordance. An empty ownerID
	// lists everything.
	List(ctx context.Context, ownerID string) ([]Summary, error)
}

// authorized implements the owner-scoping rule shared by all adapters.
func authorized(state *State, ownerID string) bool {
	if ownerID == "" || state.OwnerID == "" {
		return true
	}
	return state.OwnerID == ownerID
}

// visible implements the listing filter shared by all adapters.
func visible(ownerID, recordOwner string) bool {
	return ownerID == "" || recordOwner == "" || recordOwner == ownerID
}

// MemoryStore is an in-process Store used in tests and as an explicit
// injectable double (the original system reached for process-wide
// singletons instead). It deep-copies on both Save and Load so callers
// can never alias stored state.
type MemoryStore struct {
	mu       sync.Mutex
	projects map[string]*State
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]*State)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, id, ownerID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !authorized(state, ownerID) {
		return nil, ErrNotFound
	}

	out := state.Clone()
	out.normalize()
	return out, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, state *State) error {
	if err := state.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[state.ID] = state.Clone()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, ownerID string) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]Summary, 0, len(s.projects))
	for _, state := range s.projects {
		if !visible(ownerID, state.OwnerID) {
			continue
		}
		summaries = append(summaries, Summary{
			ID:            state.ID,
			Name:          state.Name,
			OwnerID:       state.OwnerID,
			LastUpdatedMs: state.LastUpdatedMs,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}
