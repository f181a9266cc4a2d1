package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/leadflow/pkg/domain"
)

// LeadStore implements ports.LeadStore over the quiz_results table.
// Rows are keyed by session ID, so a resubmission updates the existing row.
type LeadStore struct {
	DB *sql.DB
}

// NewLeadStore wraps an open database. Run Migrate before first use.
func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{DB: db}
}

const upsertLead = `
INSERT INTO quiz_results (
	session_id, catalog_id, name, email, company, phone, score, lead_score, urgency_level,
	verticals, responses, profile_data, recommendations, next_steps, source, completed_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (session_id) DO UPDATE SET
	catalog_id = EXCLUDED.catalog_id,
	name = EXCLUDED.name,
	email = EXCLUDED.email,
	company = EXCLUDED.company,
	phone = EXCLUDED.phone,
	score = EXCLUDED.score,
	lead_score = EXCLUDED.lead_score,
	urgency_level = EXCLUDED.urgency_level,
	verticals = EXCLUDED.verticals,
	responses = EXCLUDED.responses,
	profile_data = EXCLUDED.profile_data,
	recommendations = EXCLUDED.recommendations,
	next_steps = EXCLUDED.next_steps,
	source = EXCLUDED.source,
	completed_at = EXCLUDED.completed_at,
	updated_at = now()`

// Submit upserts the lead by session ID.
func (s *LeadStore) Submit(ctx context.Context, lead *domain.LeadRecord) error {
	p := lead.Profile

	verticals, err := marshalJSONB(p.Verticals)
	if err != nil {
		return err
	}
	responses, err := marshalJSONB(p.Responses)
	if err != nil {
		return err
	}
	profile, err := marshalJSONB(p)
	if err != nil {
		return err
	}
	recs, err := marshalJSONB(lead.Recommendations)
	if err != nil {
		return err
	}
	steps, err := marshalJSONB(lead.NextSteps)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, upsertLead,
		p.SessionID, p.CatalogID, p.Contact.Name, p.Contact.Email,
		nullIfEmpty(p.Contact.Company), nullIfEmpty(p.Contact.Phone),
		p.Score, string(p.Tier), string(p.Urgency),
		verticals, responses, profile, recs, steps,
		p.Source, p.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert lead %s: %w", p.SessionID, err)
	}
	return nil
}

const selectLead = `
SELECT profile_data, recommendations, next_steps
FROM quiz_results
WHERE session_id = $1`

// Get returns the lead of a session.
func (s *LeadStore) Get(ctx context.Context, sessionID string) (*domain.LeadRecord, error) {
	var profile, recs, steps []byte
	err := s.DB.QueryRowContext(ctx, selectLead, sessionID).Scan(&profile, &recs, &steps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLeadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead %s: %w", sessionID, err)
	}
	return decodeLead(profile, recs, steps)
}

const listLeads = `
SELECT profile_data, recommendations, next_steps
FROM quiz_results
ORDER BY completed_at DESC, session_id`

// List returns the most recent leads first, at most limit (0 means all).
func (s *LeadStore) List(ctx context.Context, limit int) ([]*domain.LeadRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.DB.QueryContext(ctx, listLeads+"\nLIMIT $1", limit)
	} else {
		rows, err = s.DB.QueryContext(ctx, listLeads)
	}
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var leads []*domain.LeadRecord
	for rows.Next() {
		var profile, recs, steps []byte
		if err := rows.Scan(&profile, &recs, &steps); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		lead, err := decodeLead(profile, recs, steps)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

func marshalJSONB(value any) ([]byte, error) {
	if value == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return data, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func decodeLead(profile, recs, steps []byte) (*domain.LeadRecord, error) {
	var lead domain.LeadRecord
	if err := json.Unmarshal(profile, &lead.Profile); err != nil {
		return nil, fmt.Errorf("decode profile_data: %w", err)
	}
	if err := json.Unmarshal(recs, &lead.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if err := json.Unmarshal(steps, &lead.NextSteps); err != nil {
		return nil, fmt.Errorf("decode next_steps: %w", err)
	}
	return &lead, nil
}
