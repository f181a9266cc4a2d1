package leadflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/internal/runtime"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
	"github.com/aretw0/leadflow/pkg/ports"
	"github.com/aretw0/leadflow/pkg/session"
)

const (
	// DefaultSubmitTimeout bounds a background lead submission.
	DefaultSubmitTimeout = 10 * time.Second
	// DefaultContactURL is the manual contact page used in fallback links.
	DefaultContactURL = "/contato"

	tracerName = "github.com/aretw0/leadflow"
)

// ErrClosed is returned by operations on an engine after Close.
var ErrClosed = errors.New("engine closed")

// Engine drives questionnaire sessions over a catalog.
// Live sessions are held in memory; the snapshot store mirrors them after
// every successful mutation so they can be resumed after a restart.
type Engine struct {
	catalog  *catalog.Catalog
	store    ports.SnapshotStore
	sessions *session.Manager
	sink     ports.LeadSink
	reporter ports.ReportSender
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string

	source        string
	contactURL    string
	submitTimeout time.Duration
	sessionOpts   []session.Option

	mu     sync.Mutex
	live   map[string]*entry
	closed bool
	wg     sync.WaitGroup
}

// entry is the in-memory state of one live session. Guarded by Engine.mu.
type entry struct {
	session    *domain.Session
	lead       *domain.LeadRecord
	submission SubmissionStatus
	notices    []domain.Notice
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the snapshot store (default: in-memory).
func WithStore(store ports.SnapshotStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLeadSink sets where completed leads are submitted.
// Without a sink, results are only available through Result.
func WithLeadSink(sink ports.LeadSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithReportSender sets the report delivery used by SendReport.
func WithReportSender(sender ports.ReportSender) Option {
	return func(e *Engine) {
		e.reporter = sender
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLocker enables distributed locking of sessions across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithLocker(locker), session.WithLockTTL(ttl))
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRestoreWindow sets how long a snapshot stays resumable (default 24h).
func WithRestoreWindow(window time.Duration) Option {
	return func(e *Engine) {
		e.sessionOpts = append(e.sessionOpts, session.WithRestoreWindow(window))
	}
}

// WithSource overrides the catalog's source tag on lead profiles.
func WithSource(source string) Option {
	return func(e *Engine) {
		e.source = source
	}
}

// WithContactURL sets the manual contact page used in fallback links.
func WithContactURL(url string) Option {
	return func(e *Engine) {
		e.contactURL = url
	}
}

// WithSubmitTimeout bounds each background lead submission.
func WithSubmitTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.submitTimeout = d
	}
}

// WithTracerProvider sets the OpenTelemetry provider (default: the global one).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// WithIDGenerator overrides the session ID generator (default: UUIDv4).
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// New initializes an Engine over a compiled catalog. A nil catalog selects
// the embedded default catalog.
func New(c *catalog.Catalog, opts ...Option) *Engine {
	if c == nil {
		c = catalog.Default()
	}
	e := &Engine{
		catalog:       c,
		now:           time.Now,
		newID:         uuid.NewString,
		contactURL:    DefaultContactURL,
		submitTimeout: DefaultSubmitTimeout,
		live:          make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = e.logger.With("catalog", c.ID())
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	sessionOpts := append([]session.Option{
		session.WithClock(e.now),
		session.WithLogger(e.logger),
	}, e.sessionOpts...)
	e.sessions = session.NewManager(e.store, sessionOpts...)
	return e
}

// Catalog returns the catalog the engine runs.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Sessions returns the snapshot manager (inspection and housekeeping).
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Begin captures the contact details and enters the questionnaire at its first
// question. An empty id generates one. Calling Begin again mid-questionnaire
// only corrects the contact details; after a retreat to contact capture it
// re-enters at the first question with the answers preserved.
func (e *Engine) Begin(ctx context.Context, id string, contact domain.Contact) (*View, error) {
	if id == "" {
		id = e.newID()
	}
	ctx, span := e.startSpan(ctx, "Begin", id)

	var view *View
	err := e.guard(ctx, id, func(ctx context.Context) error {
		ent, existing := e.lookup(id)
		if ent == nil {
			ent = &entry{session: domain.NewSession(id, e.catalog.ID(), e.now())}
		}

		next, out, err := runtime.Reduce(e.catalog, ent.session, runtime.Begin{Contact: contact})
		if err != nil {
			return err
		}
		e.commit(id, ent, next)

		notices := e.snapshot(ctx, next)
		if !existing {
			e.emitSessionStart(ctx, id, false)
		}
		e.emitTransition(ctx, id, out)

		view = e.view(next, ent, notices)
		return nil
	})
	endSpan(span, err)
	return view, err
}

// Resume restores a session from its snapshot when it is still within the
// restore window and holds at least one answer. ok is false on the normal
// "start fresh" path. A session that is already live is returned as is.
//
// A completed session whose lead was never saved is resubmitted in the
// background; without a lead sink its snapshot is dropped and ok is false.
func (e *Engine) Resume(ctx context.Context, id string) (view *View, ok bool, err error) {
	ctx, span := e.startSpan(ctx, "Resume", id)
	err = e.guard(ctx, id, func(ctx context.Context) error {
		if ent, live := e.lookup(id); live {
			view = e.view(ent.session, ent, nil)
			ok = true
			return nil
		}

		s, restored, err := e.sessions.Restore(ctx, id)
		if err != nil || !restored {
			return err
		}
		if s.CatalogID != e.catalog.ID() {
			e.logger.Warn("snapshot belongs to another catalog, starting fresh", "session_id", id, "snapshot_catalog", s.CatalogID)
			return nil
		}

		ent := &entry{session: s}
		if s.Flow.Phase == domain.PhaseComplete {
			if e.sink == nil {
				e.discard(ctx, id)
				return nil
			}
			// Completed but never submitted: rebuild the result and deliver it again.
			lead, err := e.buildLead(s)
			if err != nil {
				return err
			}
			ent.lead = lead
			ent.submission = SubmissionPending
		}
		e.commit(id, ent, s)
		e.emitSessionStart(ctx, id, true)
		if ent.lead != nil {
			e.submitAsync(id, ent.lead)
		}

		view = e.view(s, ent, nil)
		view.Restored = true
		ok = true
		return nil
	})
	endSpan(span, err)
	return view, ok, err
}

// Answer records values for the current question. An empty value clears the
// answer of an optional question. Validation failures leave the session intact.
func (e *Engine) Answer(ctx context.Context, id, questionID string, values []string) (*View, error) {
	ctx, span := e.startSpan(ctx, "Answer", id, attribute.String("leadflow.question_id", questionID))
	view, err := e.mutate(ctx, id, runtime.Answer{QuestionID: questionID, Value: values, At: e.now()})
	endSpan(span, err)
	return view, err
}

// Advance moves to the next question, following a branch when the recorded
// answer selects one. Advancing past the last question completes the session:
// the lead profile is built and submitted in the background.
func (e *Engine) Advance(ctx context.Context, id string) (*View, error) {
	ctx, span := e.startSpan(ctx, "Advance", id)
	view, err := e.mutate(ctx, id, runtime.Advance{})
	endSpan(span, err)
	return view, err
}

// Retreat moves to the previous question in catalog order, or back to contact
// capture from the first question.
func (e *Engine) Retreat(ctx context.Context, id string) (*View, error) {
	ctx, span := e.startSpan(ctx, "Retreat", id)
	view, err := e.mutate(ctx, id, runtime.Retreat{})
	endSpan(span, err)
	return view, err
}

// View returns the current state of a live session.
func (e *Engine) View(ctx context.Context, id string) (*View, error) {
	e.mu.Lock()
	ent, ok := e.live[id]
	var s *domain.Session
	if ok {
		s = ent.session
	}
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return e.view(s, ent, nil), nil
}

// Result returns the lead record of a completed session with its submission status.
func (e *Engine) Result(id string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.live[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if ent.lead == nil {
		return nil, domain.ErrNotComplete
	}
	return ent.result(), nil
}

// Close waits for pending submissions, bounded by ctx, and rejects new work.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for submissions: %w", ctx.Err())
	}
}

// mutate applies a questionnaire event to a live session.
func (e *Engine) mutate(ctx context.Context, id string, ev runtime.Event) (*View, error) {
	var view *View
	err := e.guard(ctx, id, func(ctx context.Context) error {
		ent, ok := e.lookup(id)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}

		next, out, err := runtime.Reduce(e.catalog, ent.session, ev)
		if err != nil {
			return err
		}

		var lead *domain.LeadRecord
		if out.Completed {
			// Build before committing: an integrity failure must not leave a
			// completed session without a result.
			if lead, err = e.buildLead(next); err != nil {
				return err
			}
		}

		e.mu.Lock()
		ent.session = next
		if lead != nil {
			ent.lead = lead
			ent.submission = SubmissionDisabled
			if e.sink != nil {
				ent.submission = SubmissionPending
			}
			ent.notices = nil
		}
		e.mu.Unlock()

		var notices []domain.Notice
		if lead != nil && e.sink == nil {
			// Nothing left to submit: a finished session is never offered again.
			e.discard(ctx, id)
		} else {
			notices = e.snapshot(ctx, next)
		}

		if a, ok := ev.(runtime.Answer); ok && (out.Answered || out.Cleared) {
			e.emitAnswer(ctx, id, a)
		}
		e.emitTransition(ctx, id, out)
		if lead != nil {
			e.emitComplete(ctx, id, &lead.Profile)
			e.submitAsync(id, lead)
		}

		view = e.view(next, ent, notices)
		return nil
	})
	return view, err
}

// guard serializes work on a session and rejects calls after Close.
func (e *Engine) guard(ctx context.Context, id string, fn func(context.Context) error) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return e.sessions.WithLock(ctx, id, fn)
}

func (e *Engine) lookup(id string) (*entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.live[id]
	return ent, ok
}

func (e *Engine) commit(id string, ent *entry, s *domain.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent.session = s
	e.live[id] = ent
}

// snapshot mirrors the session. A failure is not fatal: it becomes a notice.
func (e *Engine) snapshot(ctx context.Context, s *domain.Session) []domain.Notice {
	if err := e.sessions.Snapshot(ctx, s); err != nil {
		e.logger.Warn("failed to snapshot session", "session_id", s.ID, "err", err)
		return []domain.Notice{{
			Code:    domain.NoticeSnapshotFailed,
			Message: "Your progress could not be saved. You can keep answering.",
		}}
	}
	return nil
}

func (e *Engine) discard(ctx context.Context, id string) {
	if err := e.sessions.Discard(ctx, id); err != nil {
		e.logger.Warn("failed to discard snapshot", "session_id", id, "err", err)
	}
}

func (e *Engine) startSpan(ctx context.Context, op, id string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("leadflow.session_id", id))
	return e.tracer.Start(ctx, "leadflow."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
