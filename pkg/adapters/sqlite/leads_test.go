package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow/pkg/adapters/sqlite"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
)

func newStore(t *testing.T, path string) *sqlite.LeadStore {
	t.Helper()
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLeadStore_Contract(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "leads.db"))
	ports.RunLeadStoreContract(t, store)
}

func TestLeadStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.db")
	completedAt := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	first, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Submit(context.Background(), &domain.LeadRecord{
		Profile: domain.LeadProfile{
			SessionID:   "s-1",
			Contact:     domain.Contact{Name: "Ana", Email: "ana@example.com"},
			Score:       50,
			Tier:        domain.TierWarm,
			Urgency:     domain.UrgencyLow,
			CompletedAt: completedAt,
		},
	}))
	require.NoError(t, first.Close())

	second := newStore(t, path)
	lead, err := second.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, lead.Profile.Score)
	assert.True(t, completedAt.Equal(lead.Profile.CompletedAt))
}

func TestLeadStore_ListOrdersSubsecondCompletions(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "leads.db"))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{0, 500 * time.Millisecond, time.Second} {
		id := []string{"a", "b", "c"}[i]
		require.NoError(t, store.Submit(context.Background(), &domain.LeadRecord{
			Profile: domain.LeadProfile{SessionID: id, CompletedAt: base.Add(offset)},
		}))
	}

	leads, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, leads, 3)
	assert.Equal(t, "c", leads[0].Profile.SessionID)
	assert.Equal(t, "b", leads[1].Profile.SessionID)
	assert.Equal(t, "a", leads[2].Profile.SessionID)
}
