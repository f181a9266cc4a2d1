package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/leadflow"
	"github.com/aretw0/leadflow/internal/config"
	"github.com/aretw0/leadflow/internal/logging"
	"github.com/aretw0/leadflow/internal/telemetry"
	"github.com/aretw0/leadflow/pkg/adapters/file"
	"github.com/aretw0/leadflow/pkg/adapters/memory"
	"github.com/aretw0/leadflow/pkg/adapters/postgres"
	"github.com/aretw0/leadflow/pkg/adapters/redis"
	"github.com/aretw0/leadflow/pkg/adapters/sqlite"
	"github.com/aretw0/leadflow/pkg/adapters/webhook"
	"github.com/aretw0/leadflow/pkg/catalog"
	"github.com/aretw0/leadflow/pkg/observability"
	"github.com/aretw0/leadflow/pkg/persistence/middleware"
	"github.com/aretw0/leadflow/pkg/ports"
)

// App is a fully wired engine plus the resources it owns.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Catalog  *catalog.Catalog
	Engine   *leadflow.Engine
	Store    ports.SnapshotStore
	Leads    ports.LeadStore // nil when the sink cannot be read back
	Registry *prometheus.Registry

	closers []func(context.Context) error
}

// NewLogger builds the binary logger from the configured level and format.
// JSON logs go to w; text logs always go to stderr.
func NewLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.LogFormat == "json" {
		return logging.NewJSON(w, level), nil
	}
	return logging.New(level), nil
}

// Build wires the engine described by cfg. On error every resource opened so
// far is released.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = app.release(context.Background())
		}
	}()

	app.Catalog, err = catalog.Load(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	app.onClose(shutdown)

	opts := []leadflow.Option{
		leadflow.WithLogger(logger),
		leadflow.WithRestoreWindow(cfg.Session.RestoreWindow),
		leadflow.WithContactURL(cfg.ContactURL),
	}
	if cfg.Source != "" {
		opts = append(opts, leadflow.WithSource(cfg.Source))
	}
	if cfg.Session.SubmitTimeout > 0 {
		opts = append(opts, leadflow.WithSubmitTimeout(cfg.Session.SubmitTimeout))
	}

	storeOpts, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}
	opts = append(opts, storeOpts...)

	sink, err := app.openLeads(ctx)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		opts = append(opts, leadflow.WithLeadSink(sink))
	}

	if cfg.Report.URL != "" {
		opts = append(opts, leadflow.WithReportSender(webhook.New(cfg.Report.URL,
			webhook.WithSecret(cfg.Report.Secret),
			webhook.WithLogger(logger),
		)))
	}

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(app.Registry)
	opts = append(opts, leadflow.WithLifecycleHooks(observability.Combine(
		metrics.Hooks(),
		observability.LoggingHooks(logger),
	)))

	app.Engine = leadflow.New(app.Catalog, opts...)
	return app, nil
}

func (a *App) openStore(ctx context.Context) ([]leadflow.Option, error) {
	cfg := a.Config
	var opts []leadflow.Option

	var store ports.SnapshotStore
	switch cfg.Store.Kind {
	case config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Store.Dir)
	case config.StoreRedis:
		ropts, err := backend.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("store.redis_url: %w", err)
		}
		client := backend.NewClient(ropts)
		a.onClose(func(context.Context) error { return client.Close() })

		prefix := cfg.Store.Prefix
		if prefix == "" {
			prefix = "leadflow:"
		}
		rs := redis.NewFromClient(client,
			redis.WithTTL(cfg.Session.RestoreWindow),
			redis.WithPrefix(prefix+"snapshot:"),
		)
		if err := rs.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store = rs
		opts = append(opts, leadflow.WithLocker(redis.NewLocker(client, prefix), cfg.Session.LockTTL))
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	active, fallbacks, err := cfg.Store.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		}))
	}

	a.Store = store
	return append(opts, leadflow.WithStore(store)), nil
}

func (a *App) openLeads(ctx context.Context) (ports.LeadSink, error) {
	cfg := a.Config.Leads
	switch cfg.Kind {
	case config.LeadsNone:
		return nil, nil
	case config.LeadsMemory:
		leads := memory.NewLeadStore()
		a.Leads = leads
		return leads, nil
	case config.LeadsSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create leads directory: %w", err)
		}
		leads, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return leads.Close() })
		a.Leads = leads
		return leads, nil
	case config.LeadsPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresURL, postgres.DefaultOptions())
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return db.Close() })
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		leads := postgres.NewLeadStore(db)
		a.Leads = leads
		return leads, nil
	case config.LeadsWebhook:
		return webhook.New(cfg.Webhook.URL,
			webhook.WithSecret(cfg.Webhook.Secret),
			webhook.WithLogger(a.Logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown leads kind %q", cfg.Kind)
	}
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close drains pending submissions, then releases stores and exporters in
// reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Engine != nil {
		if err := a.Engine.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
	}
	if err := a.release(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) release(ctx context.Context) error {
	var errs []error
	for _, fn := range slices.Backward(a.closers) {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LoadApp loads the configuration at path (optional) with the process
// environment, applies overrides and builds the App.
func LoadApp(ctx context.Context, path string, override func(*config.Config)) (*App, error) {
	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger, err := NewLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	return Build(ctx, cfg, logger)
}
