package leadflow_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

var (
	t0  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ana = domain.Contact{Name: "Ana Souza", Email: "ana@example.com", Company: "ACME"}
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: t0} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// optionalDiagnostic is the default catalog with only the first question required.
func optionalDiagnostic(t *testing.T) *catalog.Catalog {
	t.Helper()
	base := catalog.Default()

	def := catalog.Definition{
		ID:        "optional-diagnostic",
		Title:     base.Title(),
		Source:    base.Source(),
		Verticals: map[domain.Vertical]domain.VerticalContent{},
		NextSteps: map[domain.StepKind]domain.NextStep{},
	}
	first := true
	for _, sec := range base.Sections() {
		cp := sec
		cp.Questions = make([]domain.Question, len(sec.Questions))
		for i, q := range sec.Questions {
			q.Options = slices.Clone(q.Options)
			q.Required = first
			first = false
			for _, opt := range q.Options {
				for _, v := range opt.Verticals {
					def.Verticals[v], _ = base.Vertical(v)
				}
			}
			cp.Questions[i] = q
		}
		def.Sections = append(def.Sections, cp)
	}
	for _, kind := range []domain.StepKind{
		domain.StepImmediateSession, domain.StepQualificationCall,
		domain.StepEducationalContent, domain.StepTechnicalDiagnosis,
	} {
		def.NextSteps[kind], _ = base.NextStep(kind)
	}

	c, err := catalog.Compile(def)
	require.NoError(t, err)
	return c
}

// branchy builds q1 -> q2 -> | q3 -> q4 where q1:skip jumps to q3.
func branchy(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Compile(catalog.Definition{
		ID:     "branchy",
		Title:  "Branchy",
		Source: "test",
		Sections: []domain.Section{
			{ID: "s1", Title: "First", Questions: []domain.Question{
				{ID: "q1", Title: "Q1", Required: true, Options: []domain.Option{
					{ID: "stay", Label: "Stay", Weight: 5},
					{ID: "skip", Label: "Skip", Weight: 5, Next: "q3"},
				}},
				{ID: "q2", Title: "Q2", Required: true, Options: []domain.Option{{ID: "a", Label: "A", Weight: 1}}},
			}},
			{ID: "s2", Title: "Second", Questions: []domain.Question{
				{ID: "q3", Title: "Q3", Kind: domain.KindMultiple, MaxSelections: 2, Required: true, Options: []domain.Option{
					{ID: "x", Label: "X", Weight: 2}, {ID: "y", Label: "Y", Weight: 4}, {ID: "z", Label: "Z", Weight: 6},
				}},
				{ID: "q4", Title: "Q4", Options: []domain.Option{{ID: "a", Label: "A", Weight: 9}}},
			}},
		},
		NextSteps: map[domain.StepKind]domain.NextStep{
			domain.StepImmediateSession:   {Title: "Now"},
			domain.StepQualificationCall:  {Title: "Call"},
			domain.StepEducationalContent: {Title: "Read"},
			domain.StepTechnicalDiagnosis: {Title: "Diagnose"},
		},
	})
	require.NoError(t, err)
	return c
}

// completeWith answers every question with pick and advances to the end.
func completeWith(t *testing.T, eng *leadflow.Engine, id string, pick func(q *domain.Question) []string) *leadflow.View {
	t.Helper()
	ctx := context.Background()
	view, err := eng.Begin(ctx, id, ana)
	require.NoError(t, err)

	for view.Phase == domain.PhaseQuestionnaire {
		if values := pick(view.Question); len(values) > 0 {
			_, err = eng.Answer(ctx, id, view.Question.ID, values)
			require.NoError(t, err)
		}
		view, err = eng.Advance(ctx, id)
		require.NoError(t, err)
	}
	return view
}

func firstOption(q *domain.Question) []string {
	return []string{q.Options[0].ID}
}

// waitSubmitted polls until the background submission of id settles.
func waitSubmitted(t *testing.T, eng *leadflow.Engine, id string) *leadflow.Result {
	t.Helper()
	var res *leadflow.Result
	require.Eventually(t, func() bool {
		var err error
		res, err = eng.Result(id)
		return err == nil && res.Submission != leadflow.SubmissionPending
	}, 2*time.Second, 5*time.Millisecond)
	return res
}

func closeEngine(t *testing.T, eng *leadflow.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, eng.Close(ctx))
}

// flakySink fails the first n submissions, then forwards to next.
type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	next     interface {
		Submit(context.Context, *domain.LeadRecord) error
	}
}

func (s *flakySink) Submit(ctx context.Context, lead *domain.LeadRecord) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("database unavailable")
	}
	if s.next == nil {
		return nil
	}
	return s.next.Submit(ctx, lead)
}

// reportRecorder is a ports.ReportSender that records or rejects reports.
type reportRecorder struct {
	mu   sync.Mutex
	sent []*domain.Report
	err  error
}

func (r *reportRecorder) SendReport(_ context.Context, rpt *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, rpt)
	return nil
}

// failingStore rejects every Save.
type failingStore struct{}

func (failingStore) Save(context.Context, string, *domain.Snapshot) error {
	return errors.New("disk full")
}
func (failingStore) Load(context.Context, string) (*domain.Snapshot, error) {
	return nil, domain.ErrSnapshotNotFound
}
func (failingStore) Delete(context.Context, string) error   { return nil }
func (failingStore) List(context.Context) ([]string, error) { return nil, nil }
