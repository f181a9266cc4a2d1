package domain

// Kind defines how many options a question accepts.
type Kind string

const (
	// KindSingle accepts exactly one option.
	KindSingle Kind = "single"
	// KindMultiple accepts a set of distinct options, bounded by MaxSelections.
	KindMultiple Kind = "multiple"
	// KindScale is an ordered single choice (e.g. "very slow" .. "excellent").
	KindScale Kind = "scale"
)

// Valid reports whether k is a known question kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSingle, KindMultiple, KindScale:
		return true
	}
	return false
}

// Vertical is a topical tag used to rank the service areas relevant to a lead.
type Vertical string

// MaxOptionWeight is the per-option ceiling used as the scoring denominator.
const MaxOptionWeight = 10

// Option is a selectable answer.
type Option struct {
	ID        string     `json:"id" yaml:"id"`
	Label     string     `json:"label" yaml:"label"`
	Weight    int        `json:"weight" yaml:"weight"`
	Verticals []Vertical `json:"verticals,omitempty" yaml:"verticals,omitempty"`

	// Next is an optional branch target: the ID of a later question to jump to
	// when this option is selected.
	Next string `json:"next,omitempty" yaml:"next,omitempty"`

	// Urgency marks the option as an urgency signal for the lead profile.
	Urgency Urgency `json:"urgency,omitempty" yaml:"urgency,omitempty"`
}

// Question is a single step of the questionnaire.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	SectionID     string   `json:"sectionId" yaml:"-"`
	Title         string   `json:"title" yaml:"title"`
	Kind          Kind     `json:"kind" yaml:"kind"`
	Required      bool     `json:"required" yaml:"required"`
	Options       []Option `json:"options" yaml:"options"`
	MaxSelections int      `json:"maxSelections,omitempty" yaml:"max_selections,omitempty"`
}

// Option returns the option with the given ID.
func (q *Question) Option(id string) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// Section groups questions under a common title.
type Section struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// VerticalContent is the static descriptive content shown for a vertical.
type VerticalContent struct {
	Title           string   `json:"title" yaml:"title"`
	Description     string   `json:"description" yaml:"description"`
	EstimatedImpact string   `json:"estimatedImpact" yaml:"impact"`
	Services        []string `json:"services" yaml:"services"`
}
