// Package http exposes a leadflow Engine as a JSON API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Engine is the subset of *leadflow.Engine the API drives.
type Engine interface {
	Catalog() *catalog.Catalog
	Begin(ctx context.Context, id string, contact domain.Contact) (*leadflow.View, error)
	Resume(ctx context.Context, id string) (*leadflow.View, bool, error)
	Answer(ctx context.Context, id, questionID string, values []string) (*leadflow.View, error)
	Advance(ctx context.Context, id string) (*leadflow.View, error)
	Retreat(ctx context.Context, id string) (*leadflow.View, error)
	View(ctx context.Context, id string) (*leadflow.View, error)
	Result(id string) (*leadflow.Result, error)
	Resubmit(ctx context.Context, id string) (*leadflow.Result, error)
	SendReport(ctx context.Context, id string) (*leadflow.ReportOutcome, error)
}

var _ Engine = (*leadflow.Engine)(nil)

// Server serves the questionnaire API.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	logger  *slog.Logger
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s.Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/catalog", s.GetCatalog)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.StartSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Post("/resume", s.ResumeSession)
			r.Put("/answers/{questionID}", s.PutAnswer)
			r.Post("/advance", s.Advance)
			r.Post("/retreat", s.Retreat)
			r.Get("/result", s.GetResult)
			r.Post("/resubmit", s.Resubmit)
			r.Post("/report", s.SendReport)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	QuestionID string `json:"questionId,omitempty"`
	Field      string `json:"field,omitempty"`
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	SessionID string         `json:"sessionId,omitempty"`
	Contact   domain.Contact `json:"contact"`
}

// AnswerRequest is the body of PUT /sessions/{id}/answers/{questionID}.
type AnswerRequest struct {
	Value []string `json:"value"`
}

// ResumeResponse wraps the outcome of a resume attempt.
type ResumeResponse struct {
	Resumed bool           `json:"resumed"`
	View    *leadflow.View `json:"view,omitempty"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	c := s.Engine.Catalog()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":       "leadflow-http",
		"version":   strings.TrimSpace(leadflow.Version),
		"catalog":   c.ID(),
		"questions": c.Len(),
	})
}

// GetCatalog handles the GET /catalog request.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	c := s.Engine.Catalog()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":          c.ID(),
		"title":       c.Title(),
		"description": c.Description(),
		"sections":    c.Sections(),
		"transitions": c.Transitions(),
	})
}

// StartSession handles POST /sessions: contact capture and entry into the questionnaire.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if !s.decode(w, r, &body) {
		return
	}
	view, err := s.Engine.Begin(r.Context(), body.SessionID, body.Contact)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(view)
	s.writeJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.Engine.View(r.Context(), chi.URLParam(r, "id"))
	s.respondView(w, r, view, err)
}

// ResumeSession handles POST /sessions/{id}/resume.
// A session that cannot be resumed is not an error: the client starts fresh.
func (s *Server) ResumeSession(w http.ResponseWriter, r *http.Request) {
	view, ok, err := s.Engine.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ResumeResponse{Resumed: ok, View: view})
}

// PutAnswer handles PUT /sessions/{id}/answers/{questionID}.
func (s *Server) PutAnswer(w http.ResponseWriter, r *http.Request) {
	var body AnswerRequest
	if !s.decode(w, r, &body) {
		return
	}
	view, err := s.Engine.Answer(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "questionID"), body.Value)
	s.respondView(w, r, view, err)
}

// Advance handles POST /sessions/{id}/advance.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	view, err := s.Engine.Advance(r.Context(), chi.URLParam(r, "id"))
	s.respondView(w, r, view, err)
}

// Retreat handles POST /sessions/{id}/retreat.
func (s *Server) Retreat(w http.ResponseWriter, r *http.Request) {
	view, err := s.Engine.Retreat(r.Context(), chi.URLParam(r, "id"))
	s.respondView(w, r, view, err)
}

// GetResult handles GET /sessions/{id}/result.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.Result(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// Resubmit handles POST /sessions/{id}/resubmit.
func (s *Server) Resubmit(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.Resubmit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// SendReport handles POST /sessions/{id}/report.
func (s *Server) SendReport(w http.ResponseWriter, r *http.Request) {
	out, err := s.Engine.SendReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, view *leadflow.View, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if r.Method != http.MethodGet {
		s.publish(view)
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) publish(view *leadflow.View) {
	if data, err := json.Marshal(view); err == nil {
		s.Streams.Broadcast(view.SessionID, string(data))
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Code:  "bad_request",
		})
		return false
	}
	return true
}

// writeError maps engine errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status, resp.Code = http.StatusUnprocessableEntity, "validation"
		resp.QuestionID, resp.Field = verr.QuestionID, verr.Field
	case errors.Is(err, domain.ErrSessionNotFound):
		status, resp.Code = http.StatusNotFound, "session_not_found"
	case errors.Is(err, domain.ErrNotComplete):
		status, resp.Code = http.StatusConflict, "not_complete"
	case errors.Is(err, domain.ErrSessionComplete):
		status, resp.Code = http.StatusConflict, "session_complete"
	case errors.Is(err, domain.ErrContactRequired):
		status, resp.Code = http.StatusConflict, "contact_required"
	case errors.Is(err, leadflow.ErrNoSink):
		status, resp.Code = http.StatusConflict, "no_sink"
	case errors.Is(err, leadflow.ErrClosed):
		status, resp.Code = http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, resp.Code = http.StatusServiceUnavailable, "timeout"
	case domain.IsIntegrity(err):
		resp.Code = "catalog_integrity"
		s.logger.Error("catalog integrity failure", "path", r.URL.Path, "err", err)
	default:
		resp.Code = "internal"
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
