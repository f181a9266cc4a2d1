// Package mcp exposes a leadflow Engine as Model Context Protocol tools, so an
// assistant can walk a respondent through the questionnaire.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/domain"
)

const catalogURI = "leadflow://catalog"

// Engine is the subset of *leadflow.Engine the tools drive.
type Engine interface {
	Catalog() *catalog.Catalog
	Begin(ctx context.Context, id string, contact domain.Contact) (*leadflow.View, error)
	Resume(ctx context.Context, id string) (*leadflow.View, bool, error)
	Answer(ctx context.Context, id, questionID string, values []string) (*leadflow.View, error)
	Advance(ctx context.Context, id string) (*leadflow.View, error)
	Retreat(ctx context.Context, id string) (*leadflow.View, error)
	Result(id string) (*leadflow.Result, error)
}

// CatalogResponse describes the questionnaire.
type CatalogResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Sections    []domain.Section `json:"sections" jsonschema_description:"Sections in order, each with its questions and options"`
}

// SessionArgs addresses an existing session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// StartArgs are the arguments of start_session.
type StartArgs struct {
	SessionID string `json:"session_id,omitempty"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// AnswerArgs are the arguments of answer.
type AnswerArgs struct {
	SessionID  string   `json:"session_id"`
	QuestionID string   `json:"question_id"`
	Values     string `json:"values"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("leadflow-mcp", strings.TrimSpace(leadflow.Version)),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_catalog",
		mcp.WithDescription("Get the questionnaire: sections, questions and their options."),
		mcp.WithOutputSchema[CatalogResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetCatalog))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Capture the respondent's contact details and enter the first question. Resumes the session instead when it has saved progress."),
		mcp.WithString("session_id", mcp.Description("Session to start or resume (optional, generated when omitted)")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Respondent name")),
		mcp.WithString("email", mcp.Required(), mcp.Description("Respondent e-mail")),
		mcp.WithString("company", mcp.Description("Company name")),
		mcp.WithString("phone", mcp.Description("Phone number")),
		mcp.WithOutputSchema[leadflow.View](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("answer",
		mcp.WithDescription("Record the answer to the current question. An empty list clears an optional question."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("question_id", mcp.Required(), mcp.Description("ID of the current question")),
		mcp.WithString("values", mcp.Required(), mcp.Description("Selected option IDs, comma-separated (empty clears)")),
		mcp.WithOutputSchema[leadflow.View](),
	), mcp.NewStructuredToolHandler(s.handleAnswer))

	s.mcpServer.AddTool(mcp.NewTool("advance",
		mcp.WithDescription("Move to the next question. Advancing past the last one completes the diagnostic."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[leadflow.View](),
	), mcp.NewStructuredToolHandler(s.handleAdvance))

	s.mcpServer.AddTool(mcp.NewTool("retreat",
		mcp.WithDescription("Go back to the previous question."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[leadflow.View](),
	), mcp.NewStructuredToolHandler(s.handleRetreat))

	s.mcpServer.AddTool(mcp.NewTool("get_result",
		mcp.WithDescription("Get the score, tier, recommendations and next steps of a completed session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[leadflow.Result](),
	), mcp.NewStructuredToolHandler(s.handleResult))
}

func (s *Server) handleGetCatalog(ctx context.Context, request mcp.CallToolRequest, _ struct{}) (CatalogResponse, error) {
	return catalogResponse(s.engine.Catalog()), nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args StartArgs) (*leadflow.View, error) {
	if args.SessionID != "" {
		view, ok, err := s.engine.Resume(ctx, args.SessionID)
		if err != nil {
			return nil, err
		}
		if ok && view.Phase != domain.PhaseContact {
			return view, nil
		}
	}
	return s.engine.Begin(ctx, args.SessionID, domain.Contact{
		Name:    args.Name,
		Email:   args.Email,
		Company: args.Company,
		Phone:   args.Phone,
	})
}

func (s *Server) handleAnswer(ctx context.Context, request mcp.CallToolRequest, args AnswerArgs) (*leadflow.View, error) {
	var values []string
	for _, v := range strings.Split(args.Values, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return s.engine.Answer(ctx, args.SessionID, args.QuestionID, values)
}

func (s *Server) handleAdvance(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (*leadflow.View, error) {
	return s.engine.Advance(ctx, args.SessionID)
}

func (s *Server) handleRetreat(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (*leadflow.View, error) {
	return s.engine.Retreat(ctx, args.SessionID)
}

func (s *Server) handleResult(ctx context.Context, request mcp.CallToolRequest, args SessionArgs) (*leadflow.Result, error) {
	return s.engine.Result(args.SessionID)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(catalogURI, "Questionnaire Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(catalogResponse(s.engine.Catalog()))
		if err != nil {
			return nil, fmt.Errorf("failed to encode catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      catalogURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func catalogResponse(c *catalog.Catalog) CatalogResponse {
	return CatalogResponse{
		ID:          c.ID(),
		Title:       c.Title(),
		Description: c.Description(),
		Sections:    c.Sections(),
	}
}
