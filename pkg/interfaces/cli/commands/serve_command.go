package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/application/services/jobs"
	"github.com/vsinha/csatrack/pkg/interfaces/httpapi"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the job API and run scheduled reconciliations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func runServe(parent context.Context, opts *RootOptions, addr string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Close(closeCtx)
	}()

	if addr == "" {
		addr = svc.cfg.ListenAddr
	}

	router, err := httpapi.NewRouter(svc.runner, svc.store, svc.logger, httpapi.WithAuditLog(svc.audit))
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if svc.cfg.RunAllSchedule != "" {
		scheduler, err := jobs.NewScheduler(svc.cfg.RunAllSchedule, svc.cfg.Location, svc.runner, svc.notifier, svc.logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		svc.logger.Info("scheduled run-all enabled",
			zap.String("schedule", svc.cfg.RunAllSchedule),
			zap.Time("next", scheduler.Next()),
		)
	}

	errCh := make(chan error, 1)
	go func() {
		svc.logger.Info("http server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	svc.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
