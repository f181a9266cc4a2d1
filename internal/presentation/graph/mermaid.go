package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Terminal node IDs shared with the flow phases.
const (
	ContactNode  = "contact"
	CompleteNode = "complete"
)

// Overlay contains session state to highlight on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of a catalog.
// Sections become subgraphs and question shapes follow the kind:
// - single: [/Parallelogram/]
// - multiple: [[Subroutine]]
// - scale: {{Hexagon}}
// Default (catalog order) steps are solid arrows; branch transitions are
// dotted arrows labelled with the option that triggers them.
func GenerateMermaid(c *catalog.Catalog, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", ContactNode, ContactNode)

	var order []*domain.Question
	for _, sec := range c.Sections() {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("section-"+sec.ID), escapeLabel(sec.Title))
		for i := range sec.Questions {
			q := &sec.Questions[i]
			order = append(order, q)

			opener, closer := "[/", "/]"
			switch q.Kind {
			case domain.KindMultiple:
				opener, closer = "[[", "]]"
			case domain.KindScale:
				opener, closer = "{{", "}}"
			}
			label := q.ID
			if q.Title != "" {
				label += "<br/>" + escapeLabel(q.Title)
			}
			if !q.Required {
				label += "<br/><i>optional</i>"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", sanitizeMermaidID(q.ID), opener, label, closer)
		}
		sb.WriteString("    end\n")
	}
	fmt.Fprintf(&sb, "    %s((\"%s\"))\n", CompleteNode, CompleteNode)

	// Default path in catalog order.
	prev := ContactNode
	for _, q := range order {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(prev), sanitizeMermaidID(q.ID))
		prev = q.ID
	}
	fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(prev), CompleteNode)

	for _, t := range c.Transitions() {
		fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n",
			sanitizeMermaidID(t.FromQuestionID), escapeLabel(t.OptionID), sanitizeMermaidID(t.ToQuestionID))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}

// SessionOverlay highlights the questions a session visited and where it stands.
func SessionOverlay(c *catalog.Catalog, s *domain.Session) *Overlay {
	o := &Overlay{Visited: append([]string{ContactNode}, s.Flow.History...)}
	switch s.Flow.Phase {
	case domain.PhaseContact:
		o.Visited = nil
		o.Current = ContactNode
	case domain.PhaseComplete:
		o.Current = CompleteNode
	default:
		if q, ok := c.At(s.Flow.SectionIndex, s.Flow.QuestionIndex); ok {
			o.Current = q.ID
		}
	}
	return o
}
