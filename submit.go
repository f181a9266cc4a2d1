package leadflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/recommend"
	"github.com/aretw0/leadflow/pkg/report"
	"github.com/aretw0/leadflow/pkg/scoring"
)

// ErrNoSink is returned by Resubmit when the engine has no lead sink.
var ErrNoSink = errors.New("no lead sink configured")

// ReportOutcome tells whether the report reached the lead. When it did not,
// Notices carry the manual contact fallback.
type ReportOutcome struct {
	Sent    bool            `json:"sent"`
	Report  *domain.Report  `json:"report,omitempty"`
	Notices []domain.Notice `json:"notices,omitempty"`
}

// buildLead derives the profile, recommendations and next steps of a completed session.
func (e *Engine) buildLead(s *domain.Session) (*domain.LeadRecord, error) {
	p, err := scoring.BuildProfile(e.catalog, s, e.source, e.now())
	if err != nil {
		return nil, err
	}
	recs, err := recommend.Synthesize(e.catalog, p)
	if err != nil {
		return nil, err
	}
	steps, err := recommend.Plan(e.catalog, p.Tier, p.Urgency)
	if err != nil {
		return nil, err
	}
	return &domain.LeadRecord{Profile: *p, Recommendations: recs, NextSteps: steps}, nil
}

// submitAsync delivers the lead in a tracked goroutine. The caller's result is
// already available; the submission status is updated when delivery ends.
func (e *Engine) submitAsync(id string, lead *domain.LeadRecord) {
	if e.sink == nil {
		return
	}

	e.mu.Lock()
	closing := e.closed
	if !closing {
		e.wg.Add(1)
	}
	e.mu.Unlock()

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.submitTimeout)
		defer cancel()
		_ = e.deliver(ctx, id, lead)
	}
	if closing {
		run()
		return
	}
	go func() {
		defer e.wg.Done()
		run()
	}()
}

// deliver submits the lead and records the outcome on the live entry.
// On success the snapshot is no longer needed and is discarded.
func (e *Engine) deliver(ctx context.Context, id string, lead *domain.LeadRecord) error {
	ctx, span := e.startSpan(ctx, "Submit", id)
	start := time.Now()
	err := e.sink.Submit(ctx, lead)
	duration := time.Since(start)
	endSpan(span, err)

	if e.hooks.OnSubmit != nil {
		e.hooks.OnSubmit(ctx, &domain.SubmitEvent{EventBase: e.base(domain.EventSubmit, id), Duration: duration, Err: err})
	}

	e.mu.Lock()
	if ent, ok := e.live[id]; ok && ent.lead == lead {
		if err != nil {
			ent.submission = SubmissionFailed
			ent.notices = []domain.Notice{{
				Code:        domain.NoticeSubmissionFailed,
				Message:     "Your results could not be saved. You can still book a consultation.",
				FallbackURL: report.FallbackURL(e.contactURL, lead.Profile.Contact),
			}}
		} else {
			ent.submission = SubmissionSubmitted
			ent.notices = nil
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("lead submission failed", "session_id", id, "duration", duration, "err", err)
		return &domain.PersistenceWriteError{Op: "submit", Err: err}
	}

	e.logger.Info("lead submitted", "session_id", id, "score", lead.Profile.Score, "tier", lead.Profile.Tier)
	if err := e.sessions.Discard(ctx, id); err != nil {
		e.logger.Warn("failed to discard snapshot after submission", "session_id", id, "err", err)
	}
	return nil
}

// Resubmit rebuilds the lead of a completed session and submits it again,
// waiting for the outcome. Sinks upsert by session ID, so a retry replaces
// the previous record.
func (e *Engine) Resubmit(ctx context.Context, id string) (*Result, error) {
	ctx, span := e.startSpan(ctx, "Resubmit", id)

	var result *Result
	err := e.guard(ctx, id, func(ctx context.Context) error {
		ent, ok := e.lookup(id)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		if ent.session.Flow.Phase != domain.PhaseComplete {
			return domain.ErrNotComplete
		}
		if e.sink == nil {
			return ErrNoSink
		}

		lead, err := e.buildLead(ent.session)
		if err != nil {
			return err
		}
		e.mu.Lock()
		ent.lead = lead
		ent.submission = SubmissionPending
		ent.notices = nil
		e.mu.Unlock()

		subCtx, cancel := context.WithTimeout(ctx, e.submitTimeout)
		defer cancel()
		_ = e.deliver(subCtx, id, lead)

		e.mu.Lock()
		result = ent.result()
		e.mu.Unlock()
		return nil
	})
	endSpan(span, err)
	return result, err
}

// SendReport renders the report of a completed session and hands it to the
// report sender. Without a sender, or when delivery fails, the outcome carries
// a pre-filled manual contact link instead.
func (e *Engine) SendReport(ctx context.Context, id string) (*ReportOutcome, error) {
	ctx, span := e.startSpan(ctx, "SendReport", id)

	e.mu.Lock()
	ent, ok := e.live[id]
	var lead *domain.LeadRecord
	if ok {
		lead = ent.lead
	}
	e.mu.Unlock()

	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		endSpan(span, err)
		return nil, err
	}
	if lead == nil {
		endSpan(span, domain.ErrNotComplete)
		return nil, domain.ErrNotComplete
	}

	rpt, err := report.Build(e.catalog, lead)
	if err != nil {
		endSpan(span, err)
		return nil, err
	}

	out := &ReportOutcome{Report: rpt}
	sendErr := errors.New("no report sender configured")
	if e.reporter != nil {
		sendErr = e.reporter.SendReport(ctx, rpt)
	}
	if sendErr == nil {
		out.Sent = true
		endSpan(span, nil)
		return out, nil
	}

	e.logger.Warn("report not sent", "session_id", id, "err", sendErr)
	out.Notices = []domain.Notice{{
		Code:        domain.NoticeReportFailed,
		Message:     "The report could not be sent. Contact us and we will send it manually.",
		FallbackURL: report.FallbackURL(e.contactURL, lead.Profile.Contact),
	}}
	span.RecordError(sendErr)
	endSpan(span, nil)
	return out, nil
}
