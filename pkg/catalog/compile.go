package catalog

import (
	"fmt"
	"slices"

	"github.com/aretw0/leadflow/pkg/domain"
)

// Definition is the raw, file-level representation of a catalog.
type Definition struct {
	ID          string                                     `yaml:"id" json:"id"`
	Title       string                                     `yaml:"title" json:"title"`
	Description string                                     `yaml:"description,omitempty" json:"description,omitempty"`
	Source      string                                     `yaml:"source" json:"source"`
	Sections    []domain.Section                           `yaml:"sections" json:"sections"`
	Verticals   map[domain.Vertical]domain.VerticalContent `yaml:"verticals" json:"verticals"`
	NextSteps   map[domain.StepKind]domain.NextStep        `yaml:"next_steps" json:"nextSteps"`
}

var requiredSteps = []domain.StepKind{
	domain.StepImmediateSession,
	domain.StepQualificationCall,
	domain.StepEducationalContent,
	domain.StepTechnicalDiagnosis,
}

// Compile validates a definition and builds the immutable Catalog.
// All integrity problems are reported together in a *domain.CatalogIntegrityError.
func Compile(def Definition) (*Catalog, error) {
	c := &Catalog{
		id:          def.ID,
		title:       def.Title,
		description: def.Description,
		source:      def.Source,
		positions:   make(map[string]int),
		branches:    make(map[string]map[string]string),
		verticals:   make(map[domain.Vertical]domain.VerticalContent, len(def.Verticals)),
		steps:       make(map[domain.StepKind]domain.NextStep, len(def.NextSteps)),
	}
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.id == "" {
		report("catalog id is required")
	}
	if c.source == "" {
		c.source = c.id
	}
	if len(def.Sections) == 0 {
		report("catalog has no sections")
	}

	// 1. Copy sections so the definition can't mutate the compiled catalog.
	c.sections = make([]domain.Section, len(def.Sections))
	sectionIDs := make(map[string]bool)
	for si, sec := range def.Sections {
		if sec.ID == "" {
			report("section #%d has no id", si+1)
		} else if sectionIDs[sec.ID] {
			report("duplicate section id %q", sec.ID)
		}
		sectionIDs[sec.ID] = true
		if len(sec.Questions) == 0 {
			report("section %q has no questions", sec.ID)
		}

		sec.Questions = slices.Clone(sec.Questions)
		for qi := range sec.Questions {
			q := &sec.Questions[qi]
			q.SectionID = sec.ID
			q.Options = slices.Clone(q.Options)
			for oi := range q.Options {
				q.Options[oi].Verticals = slices.Clone(q.Options[oi].Verticals)
			}
			if q.Kind == "" {
				q.Kind = domain.KindSingle
			}
			if q.Kind == domain.KindMultiple && q.MaxSelections == 0 {
				q.MaxSelections = len(q.Options)
			}
		}
		c.sections[si] = sec
	}

	// 2. Flatten and index.
	for si := range c.sections {
		for qi := range c.sections[si].Questions {
			q := &c.sections[si].Questions[qi]
			if q.ID == "" {
				report("question #%d of section %q has no id", qi+1, c.sections[si].ID)
				continue
			}
			if _, dup := c.positions[q.ID]; dup {
				report("duplicate question id %q", q.ID)
				continue
			}
			c.positions[q.ID] = len(c.flat)
			c.flat = append(c.flat, q)
			c.coords = append(c.coords, coord{section: si, question: qi})
		}
	}

	// 3. Per-question checks and the branch table.
	referenced := make(map[domain.Vertical]bool)
	for pos, q := range c.flat {
		if !q.Kind.Valid() {
			report("question %q has unknown kind %q", q.ID, q.Kind)
		}
		if len(q.Options) == 0 {
			report("question %q has no options", q.ID)
		}
		if q.Kind != domain.KindMultiple && q.MaxSelections != 0 {
			report("question %q: max_selections is only allowed on multiple questions", q.ID)
		}
		if q.MaxSelections < 0 {
			report("question %q: max_selections must be positive", q.ID)
		}

		optionIDs := make(map[string]bool)
		for _, opt := range q.Options {
			if opt.ID == "" {
				report("question %q has an option without id", q.ID)
				continue
			}
			if optionIDs[opt.ID] {
				report("question %q: duplicate option id %q", q.ID, opt.ID)
			}
			optionIDs[opt.ID] = true

			if opt.Weight < 0 || opt.Weight > domain.MaxOptionWeight {
				report("option %s:%s weight %d outside [0,%d]", q.ID, opt.ID, opt.Weight, domain.MaxOptionWeight)
			}
			if opt.Urgency != "" && !opt.Urgency.Valid() {
				report("option %s:%s has unknown urgency %q", q.ID, opt.ID, opt.Urgency)
			}
			for _, v := range opt.Verticals {
				referenced[v] = true
			}

			if opt.Next == "" {
				continue
			}
			target, exists := c.positions[opt.Next]
			switch {
			case !exists:
				report("option %s:%s branches to unknown question %q", q.ID, opt.ID, opt.Next)
			case target <= pos:
				report("option %s:%s branches backwards to %q", q.ID, opt.ID, opt.Next)
			default:
				if c.branches[q.ID] == nil {
					c.branches[q.ID] = make(map[string]string)
				}
				c.branches[q.ID][opt.ID] = opt.Next
				c.transitions = append(c.transitions, domain.Transition{
					FromQuestionID: q.ID,
					OptionID:       opt.ID,
					ToQuestionID:   opt.Next,
				})
			}
		}
	}

	// 4. Content tables.
	for v, content := range def.Verticals {
		content.Services = slices.Clone(content.Services)
		c.verticals[v] = content
	}
	for _, v := range sortedVerticals(referenced) {
		if _, ok := c.verticals[v]; !ok {
			report("vertical %q has no content", v)
		}
	}
	for _, kind := range requiredSteps {
		step, ok := def.NextSteps[kind]
		if !ok {
			report("next step %q is not defined", kind)
			continue
		}
		step.Kind = kind
		c.steps[kind] = step
	}

	if len(problems) > 0 {
		return nil, &domain.CatalogIntegrityError{Problems: problems}
	}
	return c, nil
}

func sortedVerticals(set map[domain.Vertical]bool) []domain.Vertical {
	out := make([]domain.Vertical, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
