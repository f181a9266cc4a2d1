package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/leadflow/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory snapshot store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Snapshot),
	}
}

func cloneSnapshot(s *domain.Snapshot) *domain.Snapshot {
	return &domain.Snapshot{
		Session: *s.Session.Clone(),
		SavedAt: s.SavedAt,
		Sealed:  slices.Clone(s.Sealed),
	}
}

// Save overwrites the snapshot slot of a session.
func (s *Store) Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot) error {
	copied := cloneSnapshot(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = copied
	return nil
}

// Load retrieves a copy of the snapshot, so callers can't mutate the store by pointer.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return cloneSnapshot(snapshot), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
