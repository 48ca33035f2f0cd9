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

	"github.com/soaringjerry/maat/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the participant flow and researcher API on MAAT_ADDR (or --addr).
Run sessions live in memory unless MAAT_SESSION_BACKEND=redis.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address, overrides MAAT_ADDR")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if cfg.UsingDevSecret() {
		logger.Warn("MAAT_JWT_SECRET not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close resources", "error", cerr)
		}
	}()

	sched := scheduler.New(logger, a.metrics)
	if a.memSessions != nil && cfg.PruneInterval > 0 {
		if err := sched.PruneEvery(cfg.PruneInterval, a.memSessions); err != nil {
			return fmt.Errorf("schedule session pruning: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	handler, err := a.handler()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("maat server listening",
			"addr", srv.Addr,
			"sessions", cfg.SessionBackend,
			"db", cfg.DBPath,
			"results", cfg.ResultsDir,
			"commit", cfg.Commit,
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
		if cerr := srv.Close(); cerr != nil {
			logger.Error("close server", "error", cerr)
		}
		return err
	}
	logger.Info("maat server stopped")
	return nil
}
