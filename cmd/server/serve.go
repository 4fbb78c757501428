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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"listmyspace/server/internal/api"
	"listmyspace/server/internal/auth"
	"listmyspace/server/internal/chat"
	"listmyspace/server/internal/geocoding"
	"listmyspace/server/internal/processor"
	"listmyspace/server/internal/queue"
	"listmyspace/server/internal/scheduler"
	"listmyspace/server/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and chat server",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("invalid JWT_SECRET_KEY: %w", err)
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	images, err := storage.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL, cfg.Uploads.MaxFileSize, logger)
	if err != nil {
		return err
	}

	geocoder := geocoding.NewGeocoder(logger, geocoding.Options{
		APIKey:   cfg.Geocoding.APIKey,
		CacheDir: cfg.Geocoding.CacheDir,
		Throttle: cfg.Geocoding.Throttle,
		Timeout:  cfg.Geocoding.Timeout,
	})

	// notifications are written in batches off the request path
	notifications := queue.NewNotificationQueue(cfg.Notifications.QueueSize, logger)
	batcher := processor.NewBatchProcessor(db.DB(), notifications, cfg, logger)
	batcher.Start()
	notifications.Start()

	sched := scheduler.NewScheduler(logger)
	pruneJob := scheduler.NotificationPruneJob(db, cfg.Notifications.Retention, cfg.Notifications.PruneInterval, logger)
	if err := sched.AddJob(pruneJob); err != nil {
		return err
	}
	sched.Start()

	relay := chat.NewRelay(db, chat.NewRegistry(), notifications, logger)

	gin.SetMode(cfg.Server.GinMode)
	handler := api.NewHandler(api.Dependencies{
		DB:             db,
		Tokens:         tokens,
		Locator:        geocoder,
		Images:         images,
		Relay:          relay,
		Notifier:       notifications,
		Logger:         logger,
		MaxImages:      cfg.Uploads.MaxFiles,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		if runErr != nil {
			logger.WithError(runErr).Error("Server failed")
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Server did not shut down cleanly")
	}

	sched.Stop()
	// closing the queue drains pending batches into the processor
	if err := notifications.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close notification queue")
	}
	batcher.Stop()

	logger.Info("Server stopped")
	return runErr
}
