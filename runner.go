package leadflow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/report"
)

// ErrQuit is returned by Runner.Run when the respondent leaves before the end.
// The session snapshot is kept, so the run can be resumed later.
var ErrQuit = errors.New("questionnaire interrupted")

// Runner drives an Engine over line-oriented IO.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool // Suppress hints and decorations
	Renderer ContentRenderer
}

// ContentRenderer is a function that transforms markdown before outputting it.
// This allows for TUI rendering (markdown to ANSI) without coupling the core package.
type ContentRenderer func(string) (string, error)

// Run resumes sessionID when possible, otherwise captures contact details and
// starts it, then asks every question until completion and prints the report.
// Typing "back" retreats, "quit" leaves the questionnaire with progress saved.
func (r *Runner) Run(ctx context.Context, e *Engine, sessionID string) (*Result, error) {
	if r.Input == nil || r.Output == nil {
		return nil, errors.New("runner input and output must be set")
	}
	in := bufio.NewReader(r.Input)

	var view *View
	if sessionID != "" {
		restored, ok, err := e.Resume(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if ok {
			view = restored
			r.hint("Resuming your diagnostic where you left off.")
		}
	}

	lastSection := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if view == nil || view.Phase == domain.PhaseContact {
			id := sessionID
			if view != nil {
				id = view.SessionID
			}
			next, err := r.captureContact(ctx, in, e, id)
			if err != nil {
				return nil, err
			}
			view = next
			sessionID = view.SessionID
			continue
		}

		if view.Phase == domain.PhaseComplete {
			return r.finish(e, view)
		}

		r.notices(view.Notices)
		if view.SectionTitle != lastSection {
			lastSection = view.SectionTitle
			r.print("\n## " + view.SectionTitle)
		}
		r.question(view)

		line, err := r.readLine(in)
		if err != nil {
			return nil, err
		}

		var next *View
		switch strings.ToLower(line) {
		case "quit", "exit":
			r.hint("Progress saved. Run again with the same session to resume.")
			return nil, ErrQuit
		case "back", "b":
			next, err = e.Retreat(ctx, view.SessionID)
		case "":
			next, err = e.Advance(ctx, view.SessionID)
		default:
			values, perr := parseChoices(view.Question, line)
			if perr != nil {
				r.error(perr)
				continue
			}
			if _, err = e.Answer(ctx, view.SessionID, view.Question.ID, values); err == nil {
				next, err = e.Advance(ctx, view.SessionID)
			}
		}

		if err != nil {
			if domain.IsValidation(err) {
				r.error(err)
				continue
			}
			return nil, err
		}
		view = next
	}
}

func (r *Runner) captureContact(ctx context.Context, in *bufio.Reader, e *Engine, id string) (*View, error) {
	for {
		var c domain.Contact
		fields := []struct {
			prompt string
			dst    *string
		}{
			{"Name", &c.Name},
			{"E-mail", &c.Email},
			{"Company (optional)", &c.Company},
			{"Phone (optional)", &c.Phone},
		}
		for _, f := range fields {
			fmt.Fprintf(r.Output, "%s: ", f.prompt)
			line, err := r.readLine(in)
			if err != nil {
				return nil, err
			}
			*f.dst = line
		}

		view, err := e.Begin(ctx, id, c)
		if domain.IsValidation(err) {
			r.error(err)
			continue
		}
		return view, err
	}
}

func (r *Runner) question(v *View) {
	q := v.Question
	fmt.Fprintf(r.Output, "\n[%3.0f%%] %s\n", v.Progress*100, q.Title)
	selected := make(map[string]bool, len(v.Answer))
	for _, id := range v.Answer {
		selected[id] = true
	}
	for i, opt := range q.Options {
		mark := " "
		if selected[opt.ID] {
			mark = "*"
		}
		fmt.Fprintf(r.Output, " %s %d) %s\n", mark, i+1, opt.Label)
	}

	switch {
	case q.Kind == domain.KindMultiple:
		r.hint(fmt.Sprintf("Choose up to %d, separated by commas.", q.MaxSelections))
	case !q.Required:
		r.hint("Optional: press Enter to skip.")
	}
	if len(v.History) > 1 {
		r.hint(`Type "back" to return, "quit" to leave.`)
	}
	fmt.Fprint(r.Output, "> ")
}

func (r *Runner) finish(e *Engine, v *View) (*Result, error) {
	res := v.Result
	if res == nil {
		return nil, domain.ErrNotComplete
	}

	rpt, err := report.Build(e.Catalog(), &res.LeadRecord)
	if err != nil {
		return nil, err
	}
	out := rpt.Markdown
	if r.Renderer != nil {
		if rendered, err := r.Renderer(out); err == nil {
			out = rendered
		}
	}
	fmt.Fprintln(r.Output, strings.TrimSpace(out))
	r.notices(res.Notices)
	return res, nil
}

func (r *Runner) readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("input closed: %w", ErrQuit)
		}
		return "", fmt.Errorf("input error: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (r *Runner) notices(notices []domain.Notice) {
	for _, n := range notices {
		if n.FallbackURL != "" {
			fmt.Fprintf(r.Output, "! %s (%s)\n", n.Message, n.FallbackURL)
			continue
		}
		fmt.Fprintf(r.Output, "! %s\n", n.Message)
	}
}

func (r *Runner) print(s string) {
	if !r.Headless {
		fmt.Fprintln(r.Output, s)
	}
}

func (r *Runner) hint(s string) {
	if !r.Headless {
		fmt.Fprintln(r.Output, "  "+s)
	}
}

func (r *Runner) error(err error) {
	fmt.Fprintf(r.Output, "x %v\n", err)
}

// parseChoices maps "2" or "1, 3" to option IDs (1-based positions).
// Option IDs are accepted verbatim as well.
func parseChoices(q *domain.Question, line string) ([]string, error) {
	var values []string
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			if n < 1 || n > len(q.Options) {
				return nil, fmt.Errorf("choose a number between 1 and %d", len(q.Options))
			}
			values = append(values, q.Options[n-1].ID)
			continue
		}
		if _, ok := q.Option(part); !ok {
			return nil, fmt.Errorf("unknown option %q", part)
		}
		values = append(values, part)
	}
	return values, nil
}
