package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/leadflow/pkg/domain"
)

// LeadStore implements ports.LeadStore in memory, keyed by session ID.
// Leads are stored as JSON so readers never share slices with writers.
type LeadStore struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewLeadStore creates an empty in-memory lead store.
func NewLeadStore() *LeadStore {
	return &LeadStore{data: make(map[string][]byte)}
}

// Submit upserts the lead by session ID.
func (s *LeadStore) Submit(ctx context.Context, lead *domain.LeadRecord) error {
	data, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[lead.Profile.SessionID] = data
	return nil
}

// Get returns the lead of a session.
func (s *LeadStore) Get(ctx context.Context, sessionID string) (*domain.LeadRecord, error) {
	s.mu.RLock()
	data, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrLeadNotFound
	}
	return decodeLead(data)
}

// List returns leads ordered by completion time, most recent first.
func (s *LeadStore) List(ctx context.Context, limit int) ([]*domain.LeadRecord, error) {
	s.mu.RLock()
	leads := make([]*domain.LeadRecord, 0, len(s.data))
	for _, data := range s.data {
		lead, err := decodeLead(data)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		leads = append(leads, lead)
	}
	s.mu.RUnlock()

	slices.SortFunc(leads, func(a, b *domain.LeadRecord) int {
		return b.Profile.CompletedAt.Compare(a.Profile.CompletedAt)
	})
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

// Len returns the number of stored leads.
func (s *LeadStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func decodeLead(data []byte) (*domain.LeadRecord, error) {
	var lead domain.LeadRecord
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lead: %w", err)
	}
	return &lead, nil
}
