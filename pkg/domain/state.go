package domain

import (
	"slices"
	"time"
)

// Phase defines where a session is in the funnel.
type Phase string

const (
	PhaseContact       Phase = "contact"       // Waiting for contact capture (before the first question)
	PhaseQuestionnaire Phase = "questionnaire" // Answering questions
	PhaseComplete      Phase = "complete"      // Terminal sentinel, reached after the last question
)

// FlowState is the single source of truth for where the user is.
type FlowState struct {
	Phase         Phase `json:"phase"`
	SectionIndex  int   `json:"sectionIndex"`
	QuestionIndex int   `json:"questionIndex"`

	// History lists the question IDs visited in order, including branch jumps.
	History []string `json:"history,omitempty"`
}

// Contact holds the fields captured before the first question.
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Response is the recorded answer to one question.
// Value holds one option ID for single and scale questions, N for multiple.
type Response struct {
	QuestionID string    `json:"questionId"`
	Value      []string  `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Responses is the response store: at most one entry per question, kept in
// catalog order regardless of the order in which answers were given.
type Responses []Response

// Get returns the response recorded for questionID.
func (rs Responses) Get(questionID string) (Response, bool) {
	for _, r := range rs {
		if r.QuestionID == questionID {
			return r, true
		}
	}
	return Response{}, false
}

// With returns a copy of rs where r replaces any prior answer to the same
// question. position maps a question ID to its flattened catalog index.
func (rs Responses) With(r Response, position func(questionID string) int) Responses {
	out := rs.Without(r.QuestionID)
	r.Value = slices.Clone(r.Value)
	idx, _ := slices.BinarySearchFunc(out, position(r.QuestionID), func(e Response, target int) int {
		return position(e.QuestionID) - target
	})
	return slices.Insert(out, idx, r)
}

// Without returns a copy of rs with the answer to questionID removed.
func (rs Responses) Without(questionID string) Responses {
	out := make(Responses, 0, len(rs))
	for _, r := range rs {
		if r.QuestionID != questionID {
			out = append(out, r)
		}
	}
	return out
}

// Clone returns a deep copy.
func (rs Responses) Clone() Responses {
	if rs == nil {
		return nil
	}
	out := make(Responses, len(rs))
	for i, r := range rs {
		out[i] = r
		out[i].Value = slices.Clone(r.Value)
	}
	return out
}

// Session is the per-user state mutated by the flow reducer.
type Session struct {
	ID        string    `json:"id"`
	CatalogID string    `json:"catalogId"`
	Flow      FlowState `json:"flow"`
	Responses Responses `json:"responses"`
	Contact   Contact   `json:"contact"`
	StartedAt time.Time `json:"startedAt"`
}

// NewSession creates a clean session waiting for contact capture.
func NewSession(id, catalogID string, startedAt time.Time) *Session {
	return &Session{
		ID:        id,
		CatalogID: catalogID,
		Flow:      FlowState{Phase: PhaseContact},
		StartedAt: startedAt,
	}
}

// Clone returns a deep copy so reducers never share slices with their input.
func (s *Session) Clone() *Session {
	out := *s
	out.Flow.History = slices.Clone(s.Flow.History)
	out.Responses = s.Responses.Clone()
	return &out
}

// Snapshot is the persisted mirror of a session.
type Snapshot struct {
	Session Session   `json:"session"`
	SavedAt time.Time `json:"savedAt"`

	// Sealed carries the encrypted session when an encrypting store wraps the
	// backend; Session then only holds the ID and catalog ID.
	Sealed []byte `json:"sealed,omitempty"`
}
