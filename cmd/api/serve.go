package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuetime/reservations/internal/app"
	"github.com/cuetime/reservations/internal/clock"
	"github.com/cuetime/reservations/internal/config"
	"github.com/cuetime/reservations/internal/notification"
	"github.com/cuetime/reservations/internal/observability"
	transporthttp "github.com/cuetime/reservations/internal/transport/http"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func serveCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), st)
		},
	}
	addServeFlags(cmd)
	return cmd
}

// addServeFlags registers flags whose names match config keys, so viper
// picks them up over the environment when set.
func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("port", "", "listen port (overrides PORT)")
}

func runServe(ctx context.Context, st *state) error {
	cfg, logger := st.cfg, st.logger
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancel := context.WithTimeout(stopCtx, startupTimeout)
	defer cancel()

	db, err := openStore(startupCtx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.close()

	tracing, err := observability.NewTracerSetup(startupCtx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Protocol:    cfg.Tracing.Protocol,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer flushCancel()
		if err := tracing.Shutdown(flushCtx); err != nil {
			logger.Warn("tracer shutdown", slog.String("error", err.Error()))
		}
	}()

	metrics := observability.NewMetrics()
	notifier := notification.NewNotifier(newSender(cfg, logger), notification.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.NotifyTimeout,
	},
		notification.WithLogger(logger),
		notification.WithRecorder(metrics),
	)
	admins := app.NewAdminDirectory(cfg.AdminEmails, cfg.AdminMapping)
	svc := app.NewReservationService(db.repo, admins, notifier, clock.System(),
		app.WithLogger(logger),
		app.WithTracer(tracing.Tracer()),
		app.WithRecorder(metrics),
	)

	logger.Info("administrators configured",
		slog.Int("count", admins.Len()),
		slog.Any("emails", admins.Recipients()),
	)
	if cfg.SMTPEnabled() {
		logger.Info("smtp configured", slog.String("host", cfg.SMTP.Host), slog.Int("port", cfg.SMTP.Port))
	} else {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: transporthttp.NewRouter(transporthttp.RouterConfig{
			Service:        svc,
			Logger:         logger,
			CORSOrigins:    cfg.CORSOrigins,
			Development:    cfg.IsDevelopment(),
			Observer:       metrics,
			MetricsHandler: metrics.Handler(),
			Ping:           db.ping,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening",
		slog.String("addr", server.Addr),
		slog.String("base_url", cfg.BaseURL),
		slog.String("db_driver", cfg.DB.Driver),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
	return nil
}

func newSender(cfg config.Config, logger *slog.Logger) notification.Sender {
	if !cfg.SMTPEnabled() {
		return notification.NewLogSender(logger)
	}
	return notification.NewEmailSender(notification.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		TLS:      cfg.SMTP.TLS,
	}, logger)
}
