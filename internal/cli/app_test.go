package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/internal/config"
	"github.com/aretw0/leadflow/pkg/domain"
)

const tinyCatalog = `
id: tiny
title: Tiny Diagnostic
source: cli-test
sections:
  - id: only
    title: Only Section
    questions:
      - id: size
        title: How large is your company?
        kind: single
        required: true
        options:
          - { id: big, label: Big, weight: 10, verticals: [growth] }
          - { id: small, label: Small, weight: 2, verticals: [growth] }
verticals:
  growth:
    title: Growth
    description: Grow
    impact: More
    services: [A/B testing]
next_steps:
  immediate_session: { title: Session, cta_target: /a }
  qualification_call: { title: Call, cta_target: /b }
  educational_content: { title: Content, cta_target: /c }
  technical_diagnostic: { title: Diagnostic, cta_target: /d }
`

var ana = domain.Contact{Name: "Ana Souza", Email: "ana@example.com", Company: "ACME"}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tinyCatalog), 0o644))

	cfg := config.Default()
	cfg.Catalog = path
	cfg.Store.Kind = config.StoreMemory
	cfg.Leads.Kind = config.LeadsMemory
	return cfg
}

func build(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	require.NoError(t, cfg.Validate())
	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func complete(t *testing.T, app *App, id string) *leadflow.View {
	t.Helper()
	ctx := context.Background()
	_, err := app.Engine.Begin(ctx, id, ana)
	require.NoError(t, err)
	_, err = app.Engine.Answer(ctx, id, "size", []string{"big"})
	require.NoError(t, err)
	view, err := app.Engine.Advance(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.PhaseComplete, view.Phase)
	return view
}

func TestBuild_MemoryStack(t *testing.T) {
	app := build(t, testConfig(t))
	assert.Equal(t, "tiny", app.Catalog.ID())

	view := complete(t, app, "s-mem")
	assert.Equal(t, 100, view.Result.Profile.Score)
	assert.Equal(t, "cli-test", view.Result.Profile.Source)

	require.Eventually(t, func() bool {
		_, err := app.Leads.Get(context.Background(), "s-mem")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	// Lifecycle hooks feed the registry served on /metrics.
	n, err := testutil.GatherAndCount(app.Registry, "leadflow_completions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuild_DefaultCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.Catalog = ""
	cfg.Source = "landing-page"
	cfg.Leads.Kind = config.LeadsNone
	app := build(t, cfg)

	assert.Equal(t, "strategic-diagnostic", app.Catalog.ID())
	assert.Nil(t, app.Leads)
}

func TestBuild_EncryptedFileStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Kind = config.StoreFile
	cfg.Store.Dir = filepath.Join(t.TempDir(), "sessions")
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString(key)
	app := build(t, cfg)

	ctx := context.Background()
	_, err := app.Engine.Begin(ctx, "s-file", ana)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(cfg.Store.Dir, "s-file.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), ana.Email, "snapshots are encrypted at rest")

	snap, err := app.Store.Load(ctx, "s-file")
	require.NoError(t, err)
	assert.Equal(t, ana, snap.Session.Contact)
}

func TestBuild_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Store.Kind = config.StoreRedis
	cfg.Store.RedisURL = "redis://" + mr.Addr() + "/0"
	cfg.Store.Prefix = "test:"
	app := build(t, cfg)

	_, err := app.Engine.Begin(context.Background(), "s-redis", ana)
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:snapshot:s-redis"))
	assert.Equal(t, cfg.Session.RestoreWindow, mr.TTL("test:snapshot:s-redis"))
}

func TestBuild_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.Store.Kind = config.StoreRedis
	cfg.Store.RedisURL = "redis://" + addr
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "connect redis")
}

func TestBuild_SQLiteSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Leads.Kind = config.LeadsSQLite
	cfg.Leads.SQLitePath = filepath.Join(t.TempDir(), "nested", "leads.db")
	app := build(t, cfg)

	complete(t, app, "s-sql")
	require.Eventually(t, func() bool {
		lead, err := app.Leads.Get(context.Background(), "s-sql")
		return err == nil && lead.Profile.Tier == domain.TierQualified
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBuild_WebhookSinkAndReport(t *testing.T) {
	var (
		mu    sync.Mutex
		kinds []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(body, &payload)
		mu.Lock()
		kinds = append(kinds, payload.Type)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.Leads.Kind = config.LeadsWebhook
	cfg.Leads.Webhook.URL = srv.URL + "/leads"
	cfg.Report.URL = srv.URL + "/reports"
	app := build(t, cfg)
	assert.Nil(t, app.Leads, "a webhook cannot be read back")

	complete(t, app, "s-hook")
	require.Eventually(t, func() bool {
		res, err := app.Engine.Result("s-hook")
		return err == nil && res.Submission == leadflow.SubmissionSubmitted
	}, 2*time.Second, 20*time.Millisecond)

	out, err := app.Engine.SendReport(context.Background(), "s-hook")
	require.NoError(t, err)
	assert.True(t, out.Sent)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"lead", "report"}, kinds)
}

func TestBuild_Errors(t *testing.T) {
	t.Run("missing catalog", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Catalog = filepath.Join(t.TempDir(), "nope.yaml")
		_, err := Build(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "load catalog")
	})

	t.Run("invalid catalog", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.WriteFile(cfg.Catalog, []byte(strings.Replace(tinyCatalog, "verticals: [growth]", "verticals: [astrology]", 1)), 0o644))
		_, err := Build(context.Background(), cfg, nil)
		assert.True(t, domain.IsIntegrity(err))
	})

	t.Run("bad encryption key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("short"))
		_, err := Build(context.Background(), cfg, nil)
		assert.ErrorContains(t, err, "key must be 32 bytes")
	})
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "debug"

	var buf strings.Builder
	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)
	logger.Debug("hello", "error", "boom")
	assert.Contains(t, buf.String(), `"err":"boom"`)

	cfg.LogLevel = "loud"
	_, err = NewLogger(cfg, &buf)
	assert.Error(t, err)
}

func TestInterruptibleReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewInterruptibleReader(ctx, strings.NewReader("1\n"))

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(buf[:n]))

	cancel()
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.True(t, IsInterrupted(err))
	assert.True(t, IsInterrupted(leadflow.ErrQuit))
	assert.False(t, IsInterrupted(io.ErrUnexpectedEOF))
}
