package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pysugar/calsync/internal/api"
	"github.com/pysugar/calsync/internal/api/handlers"
	"github.com/pysugar/calsync/internal/api/middleware"
	"github.com/pysugar/calsync/internal/auth/exchange"
	"github.com/pysugar/calsync/internal/auth/outlook"
	"github.com/pysugar/calsync/internal/auth/token"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/calendar/graph"
	"github.com/pysugar/calsync/internal/db"
	"github.com/pysugar/calsync/internal/logging"
	"github.com/pysugar/calsync/internal/util"
	"github.com/pysugar/calsync/internal/version"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service and the background token refresher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, database, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	log := logging.For("server")

	secret, err := sessionSecret(cfg, database)
	if err != nil {
		return err
	}

	if cfg.Outlook.ClientID == "" || cfg.Outlook.ClientSecret == "" {
		log.Warn().Msg("outlook client credentials are not configured; token requests will be rejected")
	}

	users := db.NewUserStore(database)
	credentials := db.NewCredentialStore(database)
	caches := db.NewTokenCacheStore(database)

	outlookClient := outlook.NewClient(outlook.Config{
		ClientID:     cfg.Outlook.ClientID,
		ClientSecret: cfg.Outlook.ClientSecret,
		Tenant:       cfg.Outlook.Tenant,
	})
	engine := exchange.NewEngine(cfg.App.BaseURL, users, credentials, caches,
		exchange.WithProvider(calendar.ProviderOutlook, outlookClient))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens := token.NewManager(credentials, engine, cfg.Refresh.IntervalDuration(), cfg.Refresh.WindowDuration())
	tokens.StartRefreshLoop(ctx)

	router := api.NewRouter(api.Deps{
		Engine:   engine,
		Users:    users,
		Events:   graph.NewClient(tokens),
		Sessions: middleware.NewVerifier(secret, middleware.DefaultSessionTTL),
		Redirects: handlers.Redirects{
			AppURL:      cfg.App.BaseURL,
			StatusPath:  cfg.App.StatusPath,
			SuccessPath: cfg.App.SuccessPath,
		},
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("version", version.Version).
			Str("app_url", cfg.App.BaseURL).
			Str("outlook_client_id", util.MaskSecret(cfg.Outlook.ClientID)).
			Str("outlook_redirect_uri", engine.RedirectURI(calendar.ProviderOutlook)).
			Msg("calsync starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
