package leadflow

import (
	"context"
	"slices"

	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/pkg/domain"
)

// SubmissionStatus tracks the background delivery of a completed lead.
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionFailed    SubmissionStatus = "failed"
	SubmissionDisabled  SubmissionStatus = "disabled" // no lead sink configured
)

// View is what a frontend needs to render a session after an operation.
type View struct {
	SessionID string          `json:"sessionId"`
	Phase     domain.Phase    `json:"phase"`
	Contact   domain.Contact  `json:"contact"`
	Progress  float64         `json:"progress"`
	History   []string        `json:"history,omitempty"`
	Restored  bool            `json:"restored,omitempty"`
	Notices   []domain.Notice `json:"notices,omitempty"`

	// Questionnaire phase only.
	SectionID    string           `json:"sectionId,omitempty"`
	SectionTitle string           `json:"sectionTitle,omitempty"`
	Question     *domain.Question `json:"question,omitempty"`
	Answer       []string         `json:"answer,omitempty"`

	// Complete phase only.
	Result *Result `json:"result,omitempty"`
}

// Result is the outcome of a completed session.
type Result struct {
	domain.LeadRecord
	Submission SubmissionStatus `json:"submission"`
	Notices    []domain.Notice  `json:"notices,omitempty"`
}

// view builds the View of s. Callers hold the session lock.
func (e *Engine) view(s *domain.Session, ent *entry, notices []domain.Notice) *View {
	v := &View{
		SessionID: s.ID,
		Phase:     s.Flow.Phase,
		Contact:   s.Contact,
		Progress:  runtime.Progress(e.catalog, s),
		History:   slices.Clone(s.Flow.History),
		Notices:   notices,
	}

	if q, ok := runtime.Current(e.catalog, s); ok {
		cp := *q
		cp.Options = slices.Clone(q.Options)
		v.Question = &cp
		v.SectionID = q.SectionID
		v.SectionTitle = e.catalog.Sections()[s.Flow.SectionIndex].Title
		if r, answered := s.Responses.Get(q.ID); answered {
			v.Answer = slices.Clone(r.Value)
		}
	}

	if s.Flow.Phase == domain.PhaseComplete {
		e.mu.Lock()
		if ent.lead != nil {
			v.Result = ent.result()
		}
		e.mu.Unlock()
	}
	return v
}

// result copies the entry's outcome. Callers hold Engine.mu.
func (ent *entry) result() *Result {
	return &Result{
		LeadRecord: *ent.lead,
		Submission: ent.submission,
		Notices:    slices.Clone(ent.notices),
	}
}

func (e *Engine) base(t domain.EventType, id string) domain.EventBase {
	return domain.EventBase{Timestamp: e.now(), Type: t, SessionID: id}
}

func (e *Engine) emitSessionStart(ctx context.Context, id string, restored bool) {
	if e.hooks.OnSessionStart != nil {
		e.hooks.OnSessionStart(ctx, &domain.SessionEvent{EventBase: e.base(domain.EventSessionStart, id), Restored: restored})
	}
}

func (e *Engine) emitAnswer(ctx context.Context, id string, a runtime.Answer) {
	if e.hooks.OnAnswer != nil {
		e.hooks.OnAnswer(ctx, &domain.AnswerEvent{
			EventBase:  e.base(domain.EventAnswer, id),
			QuestionID: a.QuestionID,
			Value:      slices.Clone(a.Value),
		})
	}
}

func (e *Engine) emitTransition(ctx context.Context, id string, out runtime.Outcome) {
	if !out.Moved || e.hooks.OnTransition == nil {
		return
	}
	e.hooks.OnTransition(ctx, &domain.TransitionEvent{
		EventBase: e.base(domain.EventTransition, id),
		From:      out.From,
		To:        out.To,
		Branch:    out.Branch,
		Backwards: out.Backwards,
	})
}

func (e *Engine) emitComplete(ctx context.Context, id string, p *domain.LeadProfile) {
	if e.hooks.OnComplete != nil {
		e.hooks.OnComplete(ctx, &domain.CompleteEvent{EventBase: e.base(domain.EventComplete, id), Profile: p})
	}
}
