package catalog

import (
	"github.com/aretw0/leadflow/pkg/domain"
)

// Catalog is a compiled, immutable questionnaire.
// It is safe for concurrent use; callers must not mutate returned slices.
type Catalog struct {
	id          string
	title       string
	description string
	source      string

	sections    []domain.Section
	flat        []*domain.Question
	coords      []coord
	positions   map[string]int
	transitions []domain.Transition
	branches    map[string]map[string]string // question -> option -> target
	verticals   map[domain.Vertical]domain.VerticalContent
	steps       map[domain.StepKind]domain.NextStep
}

type coord struct {
	section  int
	question int
}

// ID returns the catalog identifier.
func (c *Catalog) ID() string { return c.id }

// Title returns the human-readable catalog title.
func (c *Catalog) Title() string { return c.title }

// Description returns the catalog description.
func (c *Catalog) Description() string { return c.description }

// Source returns the funnel tag stamped on lead profiles.
func (c *Catalog) Source() string { return c.source }

// Sections returns the ordered sections.
func (c *Catalog) Sections() []domain.Section { return c.sections }

// Len returns the total number of questions across all sections.
func (c *Catalog) Len() int { return len(c.flat) }

// Question looks up a question by ID.
func (c *Catalog) Question(id string) (*domain.Question, bool) {
	pos, ok := c.positions[id]
	if !ok {
		return nil, false
	}
	return c.flat[pos], true
}

// Position returns the flattened catalog index of a question, or -1.
func (c *Catalog) Position(id string) int {
	if pos, ok := c.positions[id]; ok {
		return pos
	}
	return -1
}

// At returns the question at the given section/question pointers.
func (c *Catalog) At(section, question int) (*domain.Question, bool) {
	if section < 0 || section >= len(c.sections) {
		return nil, false
	}
	qs := c.sections[section].Questions
	if question < 0 || question >= len(qs) {
		return nil, false
	}
	return &qs[question], true
}

// Flatten converts section/question pointers to a flattened index.
func (c *Catalog) Flatten(section, question int) int {
	idx := 0
	for i := 0; i < section && i < len(c.sections); i++ {
		idx += len(c.sections[i].Questions)
	}
	return idx + question
}

// Coordinates converts a flattened index back to section/question pointers.
func (c *Catalog) Coordinates(pos int) (section, question int, ok bool) {
	if pos < 0 || pos >= len(c.coords) {
		return 0, 0, false
	}
	return c.coords[pos].section, c.coords[pos].question, true
}

// Transitions returns the branch table in catalog order.
func (c *Catalog) Transitions() []domain.Transition { return c.transitions }

// BranchTarget returns the branch destination for an answer, if any selected
// option owns one. Options are checked in catalog order.
func (c *Catalog) BranchTarget(questionID string, selected []string) (string, bool) {
	table, ok := c.branches[questionID]
	if !ok {
		return "", false
	}
	q := c.flat[c.positions[questionID]]
	for _, opt := range q.Options {
		target, has := table[opt.ID]
		if !has {
			continue
		}
		for _, s := range selected {
			if s == opt.ID {
				return target, true
			}
		}
	}
	return "", false
}

// Vertical returns the descriptive content for a vertical.
func (c *Catalog) Vertical(v domain.Vertical) (domain.VerticalContent, bool) {
	content, ok := c.verticals[v]
	return content, ok
}

// NextStep returns the content of a next-step table entry.
func (c *Catalog) NextStep(kind domain.StepKind) (domain.NextStep, bool) {
	step, ok := c.steps[kind]
	return step, ok
}
