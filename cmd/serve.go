package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exchange-backend/controller"
	"exchange-backend/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic reminder sweep",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Error("shutdown", zap.Error(err))
			}
		}()

		if cfg.Reminder.Enabled {
			go runSweeper(ctx, a.usecases.Reminders, cfg.Reminder.Interval, logger)
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           controller.NewRouter(a.usecases, a.routerOptions(), logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", zap.String("port", cfg.Server.Port))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// runSweeper triggers a sweep every interval until ctx is done. A slow sweep
// delays the next tick rather than overlapping it.
func runSweeper(ctx context.Context, reminders *usecase.ReminderUsecase, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reminders.Sweep(ctx); err != nil && ctx.Err() == nil {
				logger.Error("reminder sweep failed", zap.Error(err))
			}
		}
	}
}
