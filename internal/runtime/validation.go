package runtime

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/aretw0/leadflow/pkg/domain"
)

// ValidateAnswer checks a value against the question's shape.
// An empty value is only accepted for optional questions (it clears the answer).
func ValidateAnswer(q *domain.Question, value []string) error {
	invalid := func(format string, args ...any) error {
		return &domain.ValidationError{QuestionID: q.ID, Field: "value", Reason: fmt.Sprintf(format, args...)}
	}

	if len(value) == 0 {
		if q.Required {
			return invalid("an answer is required")
		}
		return nil
	}

	switch q.Kind {
	case domain.KindMultiple:
		if q.MaxSelections > 0 && len(value) > q.MaxSelections {
			return invalid("at most %d options may be selected, got %d", q.MaxSelections, len(value))
		}
	default:
		if len(value) > 1 {
			return invalid("exactly one option must be selected, got %d", len(value))
		}
	}

	seen := make(map[string]bool, len(value))
	for _, id := range value {
		if seen[id] {
			return invalid("option %q selected twice", id)
		}
		seen[id] = true
		if _, ok := q.Option(id); !ok {
			return invalid("unknown option %q", id)
		}
	}
	return nil
}

// NormalizeContact trims the contact fields and checks the required ones.
func NormalizeContact(c domain.Contact) (domain.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Company = strings.TrimSpace(c.Company)
	c.Phone = strings.TrimSpace(c.Phone)

	if c.Name == "" {
		return c, &domain.ValidationError{Field: "name", Reason: "name is required"}
	}
	if c.Email == "" {
		return c, &domain.ValidationError{Field: "email", Reason: "email is required"}
	}
	addr, err := mail.ParseAddress(c.Email)
	if err != nil || addr.Address != c.Email {
		return c, &domain.ValidationError{Field: "email", Reason: "email is not a valid address"}
	}
	c.Email = strings.ToLower(c.Email)
	return c, nil
}
