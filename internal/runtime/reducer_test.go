package runtime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// branchy builds q1 -> q2 -> | q3 -> q4 where q1:skip jumps to q3.
func branchy(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Compile(catalog.Definition{
		ID: "branchy",
		Sections: []domain.Section{
			{ID: "s1", Questions: []domain.Question{
				{ID: "q1", Required: true, Options: []domain.Option{
					{ID: "stay", Weight: 5},
					{ID: "skip", Weight: 5, Next: "q3"},
				}},
				{ID: "q2", Required: true, Options: []domain.Option{{ID: "a", Weight: 1}}},
			}},
			{ID: "s2", Questions: []domain.Question{
				{ID: "q3", Kind: domain.KindMultiple, MaxSelections: 2, Required: true, Options: []domain.Option{
					{ID: "x", Weight: 2}, {ID: "y", Weight: 4}, {ID: "z", Weight: 6},
				}},
				{ID: "q4", Options: []domain.Option{{ID: "a", Weight: 9}}},
			}},
		},
		NextSteps: map[domain.StepKind]domain.NextStep{
			domain.StepImmediateSession:   {},
			domain.StepQualificationCall:  {},
			domain.StepEducationalContent: {},
			domain.StepTechnicalDiagnosis: {},
		},
	})
	require.NoError(t, err)
	return c
}

func step(t *testing.T, c *catalog.Catalog, s *domain.Session, ev runtime.Event) *domain.Session {
	t.Helper()
	next, _, err := runtime.Reduce(c, s, ev)
	require.NoError(t, err)
	return next
}

func begun(t *testing.T, c *catalog.Catalog) *domain.Session {
	t.Helper()
	s := domain.NewSession("s-1", c.ID(), t0)
	return step(t, c, s, runtime.Begin{Contact: domain.Contact{Name: "Ana", Email: "ana@example.com"}})
}

func answer(id string, values ...string) runtime.Answer {
	return runtime.Answer{QuestionID: id, Value: values, At: t0}
}

func currentID(t *testing.T, c *catalog.Catalog, s *domain.Session) string {
	t.Helper()
	q, ok := runtime.Current(c, s)
	require.True(t, ok, "session has no current question (phase %s)", s.Flow.Phase)
	return q.ID
}

func TestBegin_ValidatesContact(t *testing.T) {
	c := branchy(t)
	s := domain.NewSession("s-1", c.ID(), t0)

	tests := []struct {
		name    string
		contact domain.Contact
		field   string
	}{
		{"missing name", domain.Contact{Email: "a@b.co"}, "name"},
		{"blank name", domain.Contact{Name: "   ", Email: "a@b.co"}, "name"},
		{"missing email", domain.Contact{Name: "Ana"}, "email"},
		{"bad email", domain.Contact{Name: "Ana", Email: "not-an-email"}, "email"},
		{"display name form", domain.Contact{Name: "Ana", Email: "Ana <a@b.co>"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runtime.Reduce(c, s, runtime.Begin{Contact: tt.contact})
			var v *domain.ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
		})
	}

	next, out, err := runtime.Reduce(c, s, runtime.Begin{Contact: domain.Contact{
		Name: " Ana ", Email: "Ana@Example.com", Company: "ACME",
	}})
	require.NoError(t, err)
	assert.Equal(t, "Ana", next.Contact.Name)
	assert.Equal(t, "ana@example.com", next.Contact.Email)
	assert.Equal(t, domain.PhaseQuestionnaire, next.Flow.Phase)
	assert.Equal(t, []string{"q1"}, next.Flow.History)
	assert.Equal(t, "q1", out.To)
	assert.Equal(t, domain.PhaseContact, s.Flow.Phase, "input session must not change")
}

func TestEventsBeforeContact(t *testing.T) {
	c := branchy(t)
	s := domain.NewSession("s-1", c.ID(), t0)

	for _, ev := range []runtime.Event{answer("q1", "stay"), runtime.Advance{}, runtime.Retreat{}} {
		_, _, err := runtime.Reduce(c, s, ev)
		assert.ErrorIs(t, err, domain.ErrContactRequired)
	}
}

func TestAnswer_Validation(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)
	s = step(t, c, s, answer("q1", "stay"))
	s = step(t, c, s, runtime.Advance{})
	s = step(t, c, s, answer("q2", "a"))
	s = step(t, c, s, runtime.Advance{})
	require.Equal(t, "q3", currentID(t, c, s))

	tests := []struct {
		name string
		ev   runtime.Answer
	}{
		{"required empty", answer("q3")},
		{"too many", answer("q3", "x", "y", "z")},
		{"duplicate", answer("q3", "x", "x")},
		{"unknown option", answer("q3", "nope")},
		{"not current", answer("q1", "stay")},
		{"unknown question", answer("ghost", "a")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _, err := runtime.Reduce(c, s, tt.ev)
			assert.Nil(t, next)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}

	// Failing answers never touch stored responses.
	assert.Len(t, s.Responses, 2)

	s = step(t, c, s, answer("q3", "z", "x"))
	r, ok := s.Responses.Get("q3")
	require.True(t, ok)
	assert.Equal(t, []string{"z", "x"}, r.Value)
}

func TestAnswer_SingleRejectsMany(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)

	_, _, err := runtime.Reduce(c, s, answer("q1", "stay", "skip"))
	assert.True(t, domain.IsValidation(err))
}

func TestAnswer_ReplaceAndClear(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)
	s = step(t, c, s, answer("q1", "stay"))
	s = step(t, c, s, answer("q1", "skip"))

	require.Len(t, s.Responses, 1)
	assert.Equal(t, []string{"skip"}, s.Responses[0].Value)

	// Walk to the optional q4 and clear it.
	s = step(t, c, s, runtime.Advance{})
	s = step(t, c, s, answer("q3", "x"))
	s = step(t, c, s, runtime.Advance{})
	s = step(t, c, s, answer("q4", "a"))
	require.Len(t, s.Responses, 3)

	next, out, err := runtime.Reduce(c, s, answer("q4"))
	require.NoError(t, err)
	assert.True(t, out.Cleared)
	_, ok := next.Responses.Get("q4")
	assert.False(t, ok)
}

func TestAdvance_RequiresAnswer(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)

	_, _, err := runtime.Reduce(c, s, runtime.Advance{})
	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "q1", v.QuestionID)
}

func TestAdvance_DefaultOrderCrossesSections(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)
	s = step(t, c, s, answer("q1", "stay"))
	s = step(t, c, s, runtime.Advance{})
	assert.Equal(t, "q2", currentID(t, c, s))

	s = step(t, c, s, answer("q2", "a"))
	next, out, err := runtime.Reduce(c, s, runtime.Advance{})
	require.NoError(t, err)
	assert.False(t, out.Branch)
	assert.Equal(t, 1, next.Flow.SectionIndex)
	assert.Equal(t, 0, next.Flow.QuestionIndex)
	assert.Equal(t, []string{"q1", "q2", "q3"}, next.Flow.History)
}

func TestAdvance_BranchSkipsQuestion(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)
	s = step(t, c, s, answer("q1", "skip"))

	next, out, err := runtime.Reduce(c, s, runtime.Advance{})
	require.NoError(t, err)
	assert.True(t, out.Branch)
	assert.Equal(t, "q3", currentID(t, c, next))
	assert.Equal(t, []string{"q1", "q3"}, next.Flow.History)
	assert.NotContains(t, next.Flow.History, "q2")
}

func TestAdvance_OptionalUnansweredAndComplete(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)
	s = step(t, c, s, answer("q1", "skip"))
	s = step(t, c, s, runtime.Advance{})
	s = step(t, c, s, answer("q3", "y"))
	s = step(t, c, s, runtime.Advance{})
	require.Equal(t, "q4", currentID(t, c, s))

	next, out, err := runtime.Reduce(c, s, runtime.Advance{})
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, domain.PhaseComplete, next.Flow.Phase)
	assert.Equal(t, 1.0, runtime.Progress(c, next))

	_, ok := runtime.Current(c, next)
	assert.False(t, ok)

	for _, ev := range []runtime.Event{runtime.Advance{}, runtime.Retreat{}, answer("q4", "a")} {
		_, _, err := runtime.Reduce(c, next, ev)
		assert.ErrorIs(t, err, domain.ErrSessionComplete)
	}
}

func TestRetreat_FollowsCatalogOrder(t *testing.T) {
	c := branchy(t)
	s := begun(t, c)
	s = step(t, c, s, answer("q1", "skip"))
	s = step(t, c, s, runtime.Advance{})
	require.Equal(t, "q3", currentID(t, c, s))

	// Retreat never replays the branch: from q3 we land on the skipped q2.
	s, out, err := runtime.Reduce(c, s, runtime.Retreat{})
	require.NoError(t, err)
	assert.True(t, out.Backwards)
	assert.Equal(t, "q2", currentID(t, c, s))
	assert.Equal(t, 0, s.Flow.SectionIndex)
	assert.Equal(t, 1, s.Flow.QuestionIndex)
	assert.Equal(t, []string{"q1", "q2"}, s.Flow.History)

	s = step(t, c, s, runtime.Retreat{})
	assert.Equal(t, "q1", currentID(t, c, s))
	assert.Equal(t, []string{"q1"}, s.Flow.History)

	// First question of the first section exits to contact capture.
	s, out, err = runtime.Reduce(c, s, runtime.Retreat{})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseContact, s.Flow.Phase)
	assert.Equal(t, "contact", out.To)
	assert.Empty(t, s.Flow.History)
	assert.Len(t, s.Responses, 1, "responses survive the exit")

	// Re-entering resumes at the first question.
	s = step(t, c, s, runtime.Begin{Contact: domain.Contact{Name: "Ana", Email: "ana@example.com"}})
	assert.Equal(t, "q1", currentID(t, c, s))
}

func TestProgress_UsesFlattenedIndex(t *testing.T) {
	c := branchy(t)
	s := domain.NewSession("s-1", c.ID(), t0)
	assert.Equal(t, 0.0, runtime.Progress(c, s))

	s = begun(t, c)
	assert.Equal(t, 0.25, runtime.Progress(c, s))

	s = step(t, c, s, answer("q1", "skip"))
	s = step(t, c, s, runtime.Advance{})
	assert.Equal(t, 0.75, runtime.Progress(c, s), "branching changes the path, not the denominator")
}

func TestReduce_IntegrityFailures(t *testing.T) {
	c := branchy(t)

	s := begun(t, c)
	s.Flow.SectionIndex = 7
	_, _, err := runtime.Reduce(c, s, runtime.Advance{})
	assert.True(t, domain.IsIntegrity(err))

	other := begun(t, c)
	other.CatalogID = "another"
	_, _, err = runtime.Reduce(c, other, runtime.Advance{})
	assert.True(t, domain.IsIntegrity(err))
}

func TestDefaultCatalog_WebsiteBranch(t *testing.T) {
	c := catalog.Default()
	s := begun(t, c)
	s = step(t, c, s, answer("company-size", "micro"))
	s = step(t, c, s, runtime.Advance{})
	s = step(t, c, s, answer("monthly-revenue", "rev-0-10k"))
	s = step(t, c, s, runtime.Advance{})
	s = step(t, c, s, answer("has-website", "no-website"))

	next, out, err := runtime.Reduce(c, s, runtime.Advance{})
	require.NoError(t, err)
	assert.True(t, out.Branch)
	assert.Equal(t, "main-channel", currentID(t, c, next))
}
