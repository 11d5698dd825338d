// Package main runs the event check-in HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-checkin/backend/config"
	"github.com/aura-checkin/backend/internal/app"
	"github.com/aura-checkin/backend/internal/exports"
	"github.com/aura-checkin/backend/internal/i18n"
	"github.com/aura-checkin/backend/internal/mailer"
	"github.com/aura-checkin/backend/internal/middleware"
	"github.com/aura-checkin/backend/internal/ticket"
	"github.com/aura-checkin/backend/internal/worker"
	"github.com/aura-checkin/backend/pkg/queue"
	"github.com/aura-checkin/backend/pkg/redis"
	"github.com/aura-checkin/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg.Database, true, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer stores.Close()

	// Check-in does not need Redis; only the email queue degrades while it is down.
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unreachable, email queue degraded until it recovers", zap.Error(err))
		rdb = redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	}
	defer rdb.Close()

	var archive exports.Archive
	if cfg.AWS.S3Enabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Endpoint:             cfg.AWS.Endpoint,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 exports disabled", zap.Error(err))
		} else {
			archive = s3Client
		}
	}

	translator, err := i18n.New(cfg.Event.DefaultLocale, logger)
	if err != nil {
		logger.Fatal("i18n", zap.Error(err))
	}

	tickets := ticket.NewService(stores.Participants, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	router := app.NewRouter(app.RouterDeps{
		Stores:       stores,
		Tickets:      tickets,
		Translator:   translator,
		Queue:        jobQueue,
		QueueStats:   jobQueue,
		Archive:      archive,
		Redis:        rdb,
		IDPrefix:     cfg.Event.IDPrefix,
		PollInterval: cfg.Event.PollInterval,
		CORSOrigins:  cfg.Server.CORSAllowedOrigins,
		CheckinLimit: middleware.NewRateLimiter(cfg.Server.CheckinBurst, cfg.Server.CheckinRatePerMin),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Background email worker
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Email.WorkerInProcess {
		processor := worker.NewEmailProcessor(tickets, newSender(cfg.Email, logger), stores.EmailLogs, jobQueue, cfg.Event.Name, logger)
		go func() {
			defer close(workerDone)
			processor.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("email worker did not stop before shutdown timeout")
	}
	logger.Info("server stopped")
}

func newSender(cfg config.EmailConfig, logger *zap.Logger) mailer.Sender {
	if !cfg.SMTPEnabled() {
		logger.Warn("SMTP_HOST not set, ticket emails will only be logged")
		return mailer.NewLogSender(logger)
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.FromAddress,
		FromName: cfg.FromName,
	}, logger)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
