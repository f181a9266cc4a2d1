package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow/pkg/domain"
)

func contractSnapshot(sessionID string, savedAt time.Time) *domain.Snapshot {
	s := domain.NewSession(sessionID, "contract-catalog", savedAt.Add(-time.Minute))
	s.Flow.Phase = domain.PhaseQuestionnaire
	s.Flow.SectionIndex = 1
	s.Flow.QuestionIndex = 2
	s.Flow.History = []string{"q1", "q3"}
	s.Contact = domain.Contact{Name: "Ana", Email: "ana@example.com", Company: "ACME"}
	s.Responses = domain.Responses{
		{QuestionID: "q1", Value: []string{"a"}, Timestamp: savedAt.Add(-30 * time.Second)},
		{QuestionID: "q3", Value: []string{"x", "y"}, Timestamp: savedAt.Add(-10 * time.Second)},
	}
	return &domain.Snapshot{Session: *s, SavedAt: savedAt}
}

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		snap := contractSnapshot(sessionID, savedAt)
		require.NoError(t, store.Save(ctx, sessionID, snap), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Session.Flow, loaded.Session.Flow)
		assert.Equal(t, snap.Session.Contact, loaded.Session.Contact)
		require.Len(t, loaded.Session.Responses, 2)
		assert.Equal(t, []string{"x", "y"}, loaded.Session.Responses[1].Value)
		assert.True(t, snap.SavedAt.Equal(loaded.SavedAt), "SavedAt must round-trip")
		assert.True(t, snap.Session.Responses[0].Timestamp.Equal(loaded.Session.Responses[0].Timestamp))
	})

	t.Run("Save Overwrites Slot", func(t *testing.T) {
		snap := contractSnapshot(sessionID, savedAt)
		snap.Session.Responses = snap.Session.Responses[:1]
		snap.SavedAt = savedAt.Add(time.Minute)
		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, loaded.Session.Responses, 1)
		assert.True(t, snap.SavedAt.Equal(loaded.SavedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, contractSnapshot(sessionID, savedAt)))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Delete of a missing snapshot is a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, contractSnapshot(id1, savedAt))
		_ = store.Save(ctx, id2, contractSnapshot(id2, savedAt))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

func contractLead(sessionID string, score int, completedAt time.Time) *domain.LeadRecord {
	return &domain.LeadRecord{
		Profile: domain.LeadProfile{
			SessionID: sessionID,
			CatalogID: "contract-catalog",
			Source:    "contract",
			Contact:   domain.Contact{Name: "Ana", Email: "ana@example.com", Phone: "+55 11 99999-0000"},
			Score:     score,
			Tier:      domain.TierHot,
			Urgency:   domain.UrgencyMedium,
			Verticals: []domain.Vertical{"performance", "analytics"},
			Responses: domain.Responses{
				{QuestionID: "q1", Value: []string{"a"}, Timestamp: completedAt.Add(-time.Minute)},
			},
			CompletedAt: completedAt,
		},
		Recommendations: []domain.Recommendation{
			{Vertical: "performance", Priority: domain.PriorityMedium, Title: "Web Performance", Services: []string{"CDN"}},
		},
		NextSteps: []domain.NextStep{
			{Kind: domain.StepQualificationCall, Title: "Call", CTATarget: "/agendamentos"},
		},
	}
}

// RunLeadStoreContract verifies that a LeadStore implementation upserts by
// session ID and reads leads back intact.
func RunLeadStoreContract(t *testing.T, store LeadStore) {
	ctx := context.Background()
	sessionID := "contract-lead-" + time.Now().Format("20060102150405")
	completedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Submit and Get", func(t *testing.T) {
		lead := contractLead(sessionID, 72, completedAt)
		require.NoError(t, store.Submit(ctx, lead))

		got, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, lead.Profile.Contact, got.Profile.Contact)
		assert.Equal(t, 72, got.Profile.Score)
		assert.Equal(t, domain.TierHot, got.Profile.Tier)
		assert.Equal(t, domain.UrgencyMedium, got.Profile.Urgency)
		assert.Equal(t, lead.Profile.Verticals, got.Profile.Verticals)
		assert.Equal(t, lead.Recommendations, got.Recommendations)
		assert.Equal(t, lead.NextSteps, got.NextSteps)
		assert.True(t, completedAt.Equal(got.Profile.CompletedAt))
	})

	t.Run("Resubmit Is Idempotent", func(t *testing.T) {
		lead := contractLead(sessionID, 81, completedAt.Add(time.Hour))
		lead.Profile.Tier = domain.TierQualified
		require.NoError(t, store.Submit(ctx, lead))

		got, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, 81, got.Profile.Score)
		assert.Equal(t, domain.TierQualified, got.Profile.Tier)

		all, err := store.List(ctx, 0)
		require.NoError(t, err)
		count := 0
		for _, l := range all {
			if l.Profile.SessionID == sessionID {
				count++
			}
		}
		assert.Equal(t, 1, count, "a resubmission must replace, not duplicate")
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrLeadNotFound)
	})

	t.Run("List Limit", func(t *testing.T) {
		require.NoError(t, store.Submit(ctx, contractLead(sessionID+"-2", 10, completedAt.Add(2*time.Hour))))

		leads, err := store.List(ctx, 1)
		require.NoError(t, err)
		require.Len(t, leads, 1)
		assert.Equal(t, sessionID+"-2", leads[0].Profile.SessionID, "most recent first")
	})
}
