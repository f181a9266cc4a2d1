package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponses_WithKeepsCatalogOrder(t *testing.T) {
	order := map[string]int{"q1": 0, "q2": 1, "q3": 2}
	pos := func(id string) int { return order[id] }
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var rs Responses
	rs = rs.With(Response{QuestionID: "q3", Value: []string{"c"}, Timestamp: now}, pos)
	rs = rs.With(Response{QuestionID: "q1", Value: []string{"a"}, Timestamp: now}, pos)
	rs = rs.With(Response{QuestionID: "q2", Value: []string{"b"}, Timestamp: now}, pos)

	ids := []string{rs[0].QuestionID, rs[1].QuestionID, rs[2].QuestionID}
	assert.Equal(t, []string{"q1", "q2", "q3"}, ids)

	// Replacing an answer keeps a single entry in place.
	rs = rs.With(Response{QuestionID: "q1", Value: []string{"z"}, Timestamp: now}, pos)
	assert.Len(t, rs, 3)
	got, ok := rs.Get("q1")
	assert.True(t, ok)
	assert.Equal(t, []string{"z"}, got.Value)
	assert.Equal(t, "q1", rs[0].QuestionID)
}

func TestResponses_WithDoesNotAliasInput(t *testing.T) {
	pos := func(string) int { return 0 }
	value := []string{"a"}
	original := Responses{}.With(Response{QuestionID: "q1", Value: value}, pos)
	value[0] = "mutated"

	assert.Equal(t, "a", original[0].Value[0])

	updated := original.Without("q1")
	assert.Empty(t, updated)
	assert.Len(t, original, 1)
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("s1", "cat", time.Time{})
	s.Flow.History = []string{"q1"}
	s.Responses = Responses{{QuestionID: "q1", Value: []string{"a"}}}

	c := s.Clone()
	c.Flow.History[0] = "x"
	c.Responses[0].Value[0] = "x"

	assert.Equal(t, "q1", s.Flow.History[0])
	assert.Equal(t, "a", s.Responses[0].Value[0])
	assert.Equal(t, PhaseContact, c.Flow.Phase)
}

func TestErrors(t *testing.T) {
	err := &PersistenceWriteError{Op: "snapshot", Err: ErrSnapshotNotFound}
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	assert.Contains(t, err.Error(), "snapshot write failed")

	assert.True(t, IsValidation(&ValidationError{QuestionID: "q", Reason: "required"}))
	assert.False(t, IsValidation(err))

	integrity := &CatalogIntegrityError{Problems: []string{"a", "b"}}
	assert.True(t, IsIntegrity(integrity))
	assert.Contains(t, integrity.Error(), "2 problems")
}
