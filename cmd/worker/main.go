// Package main runs the background ticket email worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-checkin/backend/config"
	"github.com/aura-checkin/backend/internal/app"
	"github.com/aura-checkin/backend/internal/mailer"
	"github.com/aura-checkin/backend/internal/ticket"
	"github.com/aura-checkin/backend/internal/worker"
	"github.com/aura-checkin/backend/pkg/queue"
	"github.com/aura-checkin/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	stores, err := app.OpenStores(ctx, cfg.Database, false, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer stores.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var sender mailer.Sender = mailer.NewLogSender(logger)
	if cfg.Email.SMTPEnabled() {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.Email.FromAddress,
			FromName: cfg.Email.FromName,
		}, logger)
	} else {
		logger.Warn("SMTP_HOST not set, ticket emails will only be logged")
	}

	tickets := ticket.NewService(stores.Participants, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewEmailProcessor(tickets, sender, stores.EmailLogs, jobQueue, cfg.Event.Name, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	logger.Info("worker started", zap.String("store", cfg.Database.Driver))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(cfg.Server.ShutdownTimeout):
		logger.Warn("worker did not stop before shutdown timeout")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
