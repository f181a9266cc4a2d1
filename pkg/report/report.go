// Package report renders the diagnostic report sent to a lead after completion.
package report

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

// Subject is the report subject, also used to pre-fill the manual contact form.
const Subject = "Relatório de Diagnóstico"

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

var markdownTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"cell": func(s string) string { return strings.ReplaceAll(s, "|", `\|`) },
	"inc":  func(i int) int { return i + 1 },
}).Parse(`# {{ .Title }}

Hello {{ .Contact.Name }}{{ if .Contact.Company }} ({{ .Contact.Company }}){{ end }},

| Score | Tier | Urgency |
|---|---|---|
| {{ .Score }}/100 | {{ .Tier }} | {{ .Urgency }} |

## Recommendations
{{ range .Recommendations }}
### {{ .Title }} ({{ .Priority }} priority)

{{ .Description }}

**Estimated impact:** {{ .EstimatedImpact }}

{{ range .Services }}- {{ . }}
{{ end }}{{ else }}
No specific recommendation stood out from your answers.
{{ end }}
## Next steps
{{ range $i, $s := .NextSteps }}
{{ inc $i }}. **{{ $s.Title }}**: {{ $s.Description }} [{{ $s.CTALabel }}]({{ $s.CTATarget }})
{{- end }}

## Your answers

| Question | Answer |
|---|---|
{{- range .Answers }}
| {{ cell .Question }} | {{ cell .Answer }} |
{{- end }}
`))

type answerLine struct {
	Question string
	Answer   string
}

type view struct {
	Title           string
	Contact         domain.Contact
	Score           int
	Tier            domain.Tier
	Urgency         domain.Urgency
	Recommendations []domain.Recommendation
	NextSteps       []domain.NextStep
	Answers         []answerLine
}

// Build renders the Markdown and HTML report for a completed lead.
// Answers are resolved to their catalog titles and labels.
func Build(c *catalog.Catalog, lead *domain.LeadRecord) (*domain.Report, error) {
	v := view{
		Title:           c.Title(),
		Contact:         lead.Profile.Contact,
		Score:           lead.Profile.Score,
		Tier:            lead.Profile.Tier,
		Urgency:         lead.Profile.Urgency,
		Recommendations: lead.Recommendations,
		NextSteps:       lead.NextSteps,
	}
	if v.Title == "" {
		v.Title = Subject
	}

	for _, r := range lead.Profile.Responses {
		q, ok := c.Question(r.QuestionID)
		if !ok {
			return nil, domain.NewIntegrityError("answer to unknown question %q", r.QuestionID)
		}
		labels := make([]string, 0, len(r.Value))
		for _, id := range r.Value {
			opt, ok := q.Option(id)
			if !ok {
				return nil, domain.NewIntegrityError("question %q has no option %q", q.ID, id)
			}
			labels = append(labels, opt.Label)
		}
		v.Answers = append(v.Answers, answerLine{Question: q.Title, Answer: strings.Join(labels, ", ")})
	}

	var markdown bytes.Buffer
	if err := markdownTemplate.Execute(&markdown, v); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	html, err := HTML(markdown.String())
	if err != nil {
		return nil, err
	}

	return &domain.Report{
		To:       lead.Profile.Contact,
		Subject:  Subject,
		Markdown: markdown.String(),
		HTML:     html,
		Lead:     *lead,
	}, nil
}

// HTML converts Markdown to an HTML fragment (GitHub flavored).
func HTML(markdown string) (string, error) {
	var out bytes.Buffer
	if err := md.Convert([]byte(markdown), &out); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	return out.String(), nil
}

// FallbackURL builds the manual contact link offered when a report or a
// submission could not be delivered, pre-filled with the contact's details.
func FallbackURL(contactURL string, contact domain.Contact) string {
	if contactURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("email", contact.Email)
	q.Set("name", contact.Name)
	q.Set("subject", Subject)

	sep := "?"
	if strings.Contains(contactURL, "?") {
		sep = "&"
	}
	return contactURL + sep + q.Encode()
}
