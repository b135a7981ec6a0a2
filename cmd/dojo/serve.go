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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hperssn/dojo/internal/config"
	httpapi "github.com/hperssn/dojo/internal/http"
	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/runner"
	"github.com/hperssn/dojo/internal/storage"
	"github.com/hperssn/dojo/internal/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.WithComponent("server")
	cfg := a.cfg

	tp, err := telemetry.NewProvider(cfg.Tracing, os.Stderr)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing storage failed")
		}
	}()

	manager := runner.NewManager(store, runner.Options{
		TickInterval:    cfg.Timer.TickInterval,
		IdleTimeout:     cfg.Timer.IdleTimeout,
		CleanupInterval: cfg.Timer.CleanupInterval,
	})

	config.Watch(a.v, nil)

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(manager, httpapi.Config{
			Auth:           httpapi.Auth{Tokens: tokenMap(cfg.Server.Tokens), DevUser: cfg.Server.DevUser},
			RateLimit:      cfg.Server.RateLimit,
			ServiceName:    cfg.Tracing.ServiceName,
			TracerProvider: tp.TracerProvider(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str(log.FieldBackend, cfg.Storage.Backend).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		// closing the runners ends open event streams
		manager.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func tokenMap(tokens []config.TokenConfig) map[string]string {
	out := make(map[string]string, len(tokens))
	for _, t := range tokens {
		out[t.Token] = t.User
	}
	return out
}
