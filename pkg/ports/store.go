package ports

import (
	"context"

	"github.com/aretw0/leadflow/pkg/domain"
)

// SnapshotStore persists the mirror of an in-progress session.
// Each session ID owns a single slot: Save overwrites, there is no history.
type SnapshotStore interface {
	// Save writes the snapshot for a session ID.
	Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot) error

	// Load retrieves the snapshot for a session ID.
	// Returns domain.ErrSnapshotNotFound if none exists.
	Load(ctx context.Context, sessionID string) (*domain.Snapshot, error)

	// Delete removes the snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored snapshots.
	List(ctx context.Context) ([]string, error)
}

// LeadSink receives completed leads. Submit must be idempotent per session ID
// so that retries after a failed write never duplicate a lead.
type LeadSink interface {
	Submit(ctx context.Context, lead *domain.LeadRecord) error
}

// LeadStore is a LeadSink that can read its leads back.
type LeadStore interface {
	LeadSink

	// Get returns the lead submitted for a session.
	// Returns domain.ErrLeadNotFound if none exists.
	Get(ctx context.Context, sessionID string) (*domain.LeadRecord, error)

	// List returns the most recent leads first, at most limit (0 means all).
	List(ctx context.Context, limit int) ([]*domain.LeadRecord, error)
}

// ReportSender delivers a rendered report to the lead (e-mail, webhook, ...).
type ReportSender interface {
	SendReport(ctx context.Context, report *domain.Report) error
}
