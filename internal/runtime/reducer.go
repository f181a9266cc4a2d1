package runtime

import (
	"fmt"
	"time"

	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Event is an input to Reduce.
type Event interface {
	eventName() string
}

// Begin captures contact details and enters the questionnaire.
type Begin struct {
	Contact domain.Contact
}

// Answer records a value for the current question.
type Answer struct {
	QuestionID string
	Value      []string
	At         time.Time
}

// Advance moves to the next question, honoring branch targets.
type Advance struct{}

// Retreat moves to the previous question in catalog order.
type Retreat struct{}

func (Begin) eventName() string   { return "begin" }
func (Answer) eventName() string  { return "answer" }
func (Advance) eventName() string { return "advance" }
func (Retreat) eventName() string { return "retreat" }

// Outcome describes what a reduction did, for hooks and logs.
type Outcome struct {
	From string // Question ID, or the phase name outside the questionnaire
	To   string

	Moved     bool
	Branch    bool
	Backwards bool
	Answered  bool
	Cleared   bool
	Completed bool
}

// Reduce applies one event to a session and returns the new session.
// The input session is never modified. On error the returned session is nil
// and the caller keeps its previous state.
func Reduce(c *catalog.Catalog, s *domain.Session, ev Event) (*domain.Session, Outcome, error) {
	if s.CatalogID != "" && s.CatalogID != c.ID() {
		return nil, Outcome{}, domain.NewIntegrityError("session %s belongs to catalog %q, not %q", s.ID, s.CatalogID, c.ID())
	}

	switch e := ev.(type) {
	case Begin:
		return reduceBegin(c, s, e)
	case Answer:
		return reduceAnswer(c, s, e)
	case Advance:
		return reduceAdvance(c, s)
	case Retreat:
		return reduceRetreat(c, s)
	default:
		return nil, Outcome{}, fmt.Errorf("unsupported event %T", ev)
	}
}

func reduceBegin(c *catalog.Catalog, s *domain.Session, e Begin) (*domain.Session, Outcome, error) {
	if s.Flow.Phase == domain.PhaseComplete {
		return nil, Outcome{}, domain.ErrSessionComplete
	}
	contact, err := NormalizeContact(e.Contact)
	if err != nil {
		return nil, Outcome{}, err
	}

	next := s.Clone()
	next.Contact = contact
	if s.Flow.Phase == domain.PhaseQuestionnaire {
		// Contact correction mid-flow keeps the position.
		return next, Outcome{}, nil
	}

	first, ok := c.At(0, 0)
	if !ok {
		return nil, Outcome{}, domain.NewIntegrityError("catalog %q has no questions", c.ID())
	}
	next.CatalogID = c.ID()
	next.Flow.Phase = domain.PhaseQuestionnaire
	next.Flow.SectionIndex = 0
	next.Flow.QuestionIndex = 0
	next.Flow.History = append(next.Flow.History, first.ID)

	return next, Outcome{From: string(domain.PhaseContact), To: first.ID, Moved: true}, nil
}

func reduceAnswer(c *catalog.Catalog, s *domain.Session, e Answer) (*domain.Session, Outcome, error) {
	q, err := current(c, s)
	if err != nil {
		return nil, Outcome{}, err
	}
	if e.QuestionID != q.ID {
		if _, known := c.Question(e.QuestionID); !known {
			return nil, Outcome{}, &domain.ValidationError{QuestionID: e.QuestionID, Field: "question", Reason: "unknown question"}
		}
		return nil, Outcome{}, &domain.ValidationError{
			QuestionID: e.QuestionID,
			Field:      "question",
			Reason:     fmt.Sprintf("not the current question (current is %q)", q.ID),
		}
	}
	if err := ValidateAnswer(q, e.Value); err != nil {
		return nil, Outcome{}, err
	}

	next := s.Clone()
	out := Outcome{From: q.ID, To: q.ID}
	if len(e.Value) == 0 {
		next.Responses = next.Responses.Without(q.ID)
		out.Cleared = true
		return next, out, nil
	}

	next.Responses = next.Responses.With(domain.Response{
		QuestionID: q.ID,
		Value:      e.Value,
		Timestamp:  e.At,
	}, c.Position)
	out.Answered = true
	return next, out, nil
}

func reduceAdvance(c *catalog.Catalog, s *domain.Session) (*domain.Session, Outcome, error) {
	q, err := current(c, s)
	if err != nil {
		return nil, Outcome{}, err
	}

	resp, answered := s.Responses.Get(q.ID)
	if q.Required && !answered {
		return nil, Outcome{}, &domain.ValidationError{QuestionID: q.ID, Field: "value", Reason: "an answer is required"}
	}

	out := Outcome{From: q.ID, Moved: true}
	target := c.Position(q.ID) + 1
	if answered {
		if to, ok := c.BranchTarget(q.ID, resp.Value); ok {
			target = c.Position(to)
			out.Branch = true
		}
	}

	next := s.Clone()
	if target >= c.Len() {
		next.Flow.Phase = domain.PhaseComplete
		next.Flow.SectionIndex = len(c.Sections())
		next.Flow.QuestionIndex = 0
		out.To = string(domain.PhaseComplete)
		out.Completed = true
		return next, out, nil
	}

	section, question, ok := c.Coordinates(target)
	if !ok {
		return nil, Outcome{}, domain.NewIntegrityError("question %q advances out of bounds", q.ID)
	}
	to, _ := c.At(section, question)
	next.Flow.SectionIndex = section
	next.Flow.QuestionIndex = question
	next.Flow.History = append(next.Flow.History, to.ID)
	out.To = to.ID
	return next, out, nil
}

func reduceRetreat(c *catalog.Catalog, s *domain.Session) (*domain.Session, Outcome, error) {
	q, err := current(c, s)
	if err != nil {
		return nil, Outcome{}, err
	}

	next := s.Clone()
	next.Flow.History = popHistory(next.Flow.History, q.ID)
	out := Outcome{From: q.ID, Moved: true, Backwards: true}

	pos := c.Position(q.ID)
	if pos == 0 {
		next.Flow.Phase = domain.PhaseContact
		next.Flow.SectionIndex = 0
		next.Flow.QuestionIndex = 0
		out.To = string(domain.PhaseContact)
		return next, out, nil
	}

	section, question, _ := c.Coordinates(pos - 1)
	prev, _ := c.At(section, question)
	next.Flow.SectionIndex = section
	next.Flow.QuestionIndex = question
	if n := len(next.Flow.History); n == 0 || next.Flow.History[n-1] != prev.ID {
		next.Flow.History = append(next.Flow.History, prev.ID)
	}
	out.To = prev.ID
	return next, out, nil
}

// popHistory drops the trailing entry when it is the question being left.
func popHistory(history []string, leaving string) []string {
	if n := len(history); n > 0 && history[n-1] == leaving {
		return history[:n-1]
	}
	return history
}

// current resolves the question under the flow pointers.
func current(c *catalog.Catalog, s *domain.Session) (*domain.Question, error) {
	switch s.Flow.Phase {
	case domain.PhaseContact, "":
		return nil, domain.ErrContactRequired
	case domain.PhaseComplete:
		return nil, domain.ErrSessionComplete
	}
	q, ok := c.At(s.Flow.SectionIndex, s.Flow.QuestionIndex)
	if !ok {
		return nil, domain.NewIntegrityError("flow pointer (%d,%d) is outside catalog %q",
			s.Flow.SectionIndex, s.Flow.QuestionIndex, c.ID())
	}
	return q, nil
}

// Current returns the question the session is positioned on, if any.
func Current(c *catalog.Catalog, s *domain.Session) (*domain.Question, bool) {
	q, err := current(c, s)
	return q, err == nil
}

// Progress reports the flattened position as a fraction in [0,1].
// The denominator is the full catalog, independent of the branches taken.
func Progress(c *catalog.Catalog, s *domain.Session) float64 {
	switch s.Flow.Phase {
	case domain.PhaseComplete:
		return 1
	case domain.PhaseQuestionnaire:
		if c.Len() == 0 {
			return 0
		}
		return float64(c.Flatten(s.Flow.SectionIndex, s.Flow.QuestionIndex)+1) / float64(c.Len())
	default:
		return 0
	}
}
