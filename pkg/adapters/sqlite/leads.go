// Package sqlite stores submitted leads in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/aretw0/leadflow/pkg/domain"
)

// timeLayout is fixed-width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS quiz_results (
	session_id      TEXT PRIMARY KEY,
	catalog_id      TEXT NOT NULL,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL,
	company         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	score           INTEGER NOT NULL,
	lead_score      TEXT NOT NULL,
	urgency_level   TEXT NOT NULL,
	verticals       TEXT NOT NULL DEFAULT '[]',
	responses       TEXT NOT NULL DEFAULT '[]',
	profile_data    TEXT NOT NULL,
	recommendations TEXT NOT NULL DEFAULT '[]',
	next_steps      TEXT NOT NULL DEFAULT '[]',
	source          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'new',
	completed_at    TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS quiz_results_completed_at_idx ON quiz_results (completed_at);
`

// LeadStore implements ports.LeadStore on SQLite.
type LeadStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*LeadStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &LeadStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *LeadStore) Close() error {
	return s.db.Close()
}

type leadRow struct {
	SessionID       string `db:"session_id"`
	CatalogID       string `db:"catalog_id"`
	Name            string `db:"name"`
	Email           string `db:"email"`
	Company         string `db:"company"`
	Phone           string `db:"phone"`
	Score           int    `db:"score"`
	LeadScore       string `db:"lead_score"`
	UrgencyLevel    string `db:"urgency_level"`
	Verticals       string `db:"verticals"`
	Responses       string `db:"responses"`
	ProfileData     string `db:"profile_data"`
	Recommendations string `db:"recommendations"`
	NextSteps       string `db:"next_steps"`
	Source          string `db:"source"`
	Status          string `db:"status"`
	CompletedAt     string `db:"completed_at"`
	CreatedAt       string `db:"created_at"`
}

const upsertLead = `
INSERT INTO quiz_results (
	session_id, catalog_id, name, email, company, phone, score, lead_score, urgency_level,
	verticals, responses, profile_data, recommendations, next_steps, source, completed_at, created_at
) VALUES (
	:session_id, :catalog_id, :name, :email, :company, :phone, :score, :lead_score, :urgency_level,
	:verticals, :responses, :profile_data, :recommendations, :next_steps, :source, :completed_at, :created_at
)
ON CONFLICT (session_id) DO UPDATE SET
	catalog_id = excluded.catalog_id,
	name = excluded.name,
	email = excluded.email,
	company = excluded.company,
	phone = excluded.phone,
	score = excluded.score,
	lead_score = excluded.lead_score,
	urgency_level = excluded.urgency_level,
	verticals = excluded.verticals,
	responses = excluded.responses,
	profile_data = excluded.profile_data,
	recommendations = excluded.recommendations,
	next_steps = excluded.next_steps,
	source = excluded.source,
	completed_at = excluded.completed_at`

// Submit upserts the lead by session ID. created_at keeps its first value.
func (s *LeadStore) Submit(ctx context.Context, lead *domain.LeadRecord) error {
	row, err := encodeRow(lead, s.now())
	if err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertLead, row); err != nil {
		return fmt.Errorf("upsert lead %s: %w", lead.Profile.SessionID, err)
	}
	return nil
}

// Get returns the lead of a session.
func (s *LeadStore) Get(ctx context.Context, sessionID string) (*domain.LeadRecord, error) {
	var row leadRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM quiz_results WHERE session_id = ?", sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead %s: %w", sessionID, err)
	}
	return decodeRow(row)
}

// List returns the most recent leads first, at most limit (0 means all).
func (s *LeadStore) List(ctx context.Context, limit int) ([]*domain.LeadRecord, error) {
	query := "SELECT * FROM quiz_results ORDER BY completed_at DESC, session_id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []leadRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}

	leads := make([]*domain.LeadRecord, 0, len(rows))
	for _, row := range rows {
		lead, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func encodeRow(lead *domain.LeadRecord, now time.Time) (leadRow, error) {
	p := lead.Profile
	row := leadRow{
		SessionID:    p.SessionID,
		CatalogID:    p.CatalogID,
		Name:         p.Contact.Name,
		Email:        p.Contact.Email,
		Company:      p.Contact.Company,
		Phone:        p.Contact.Phone,
		Score:        p.Score,
		LeadScore:    string(p.Tier),
		UrgencyLevel: string(p.Urgency),
		Source:       p.Source,
		CompletedAt:  p.CompletedAt.UTC().Format(timeLayout),
		CreatedAt:    now.UTC().Format(timeLayout),
	}

	fields := []struct {
		dst   *string
		value any
	}{
		{&row.Verticals, p.Verticals},
		{&row.Responses, p.Responses},
		{&row.ProfileData, p},
		{&row.Recommendations, lead.Recommendations},
		{&row.NextSteps, lead.NextSteps},
	}
	for _, f := range fields {
		data, err := json.Marshal(f.value)
		if err != nil {
			return leadRow{}, fmt.Errorf("marshal lead %s: %w", p.SessionID, err)
		}
		*f.dst = string(data)
	}
	return row, nil
}

func decodeRow(row leadRow) (*domain.LeadRecord, error) {
	var lead domain.LeadRecord
	if err := json.Unmarshal([]byte(row.ProfileData), &lead.Profile); err != nil {
		return nil, fmt.Errorf("decode profile_data of %s: %w", row.SessionID, err)
	}
	if err := json.Unmarshal([]byte(row.Recommendations), &lead.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations of %s: %w", row.SessionID, err)
	}
	if err := json.Unmarshal([]byte(row.NextSteps), &lead.NextSteps); err != nil {
		return nil, fmt.Errorf("decode next_steps of %s: %w", row.SessionID, err)
	}
	return &lead, nil
}
