package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/leadflow/internal/cli"
	"github.com/aretw0/leadflow/internal/config"
	httpadapter "github.com/aretw0/leadflow/pkg/adapters/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the questionnaire as a JSON API, with Prometheus metrics on /metrics.
On SIGINT or SIGTERM the server stops accepting requests, finishes in-flight
ones and waits for pending lead submissions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		app, err := loadApp(cmd, func(cfg *config.Config) {
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
		})
		if err != nil {
			return err
		}
		defer closeApp(app)

		srv := &http.Server{
			Addr:              app.Config.HTTP.Addr,
			Handler:           newServeHandler(app),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return serve(cmd.Context(), app, srv)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
}

func newServeHandler(app *cli.App) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	r.Mount("/", httpadapter.NewHandler(app.Engine, httpadapter.WithLogger(app.Logger)))
	return r
}

func serve(ctx context.Context, app *cli.App, srv *http.Server) error {
	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("leadflow server listening", "address", srv.Addr, "catalog", app.Catalog.ID())
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		if sc, ok := ctx.(*cli.SignalContext); ok && sc.Signal() != nil {
			app.Logger.Info("shutdown started", "signal", sc.Signal().String())
		}

		timeout := app.Config.HTTP.ShutdownTimeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", timeout, err)
		}
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		app.Logger.Info("leadflow server stopped gracefully")
		return nil
	}
}
