package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mercado/internal/app"
	"mercado/internal/config"
	"mercado/internal/repositories"
	"mercado/internal/services"
	"mercado/pkg/logger"
	"mercado/pkg/rabbitmq"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.JWT.SecretFallback {
		log.Warn("JWT_SECRET is not set, using the development secret")
	}

	// --- Database ---
	logLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		logLevel = gormlogger.Info
	}
	db, err := repositories.OpenDatabase(cfg.Database, logLevel)
	if err != nil {
		return err
	}
	if err := repositories.Migrate(db); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	opts := app.Options{AccessLog: os.Stdout}

	// --- Token revocation ---
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR is not set, logout and password reset will not revoke tokens")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := repositories.NewRedisClient(ctx, cfg.Redis)
		cancel()
		if err != nil {
			return err
		}
		defer client.Close()
		opts.Revocations = repositories.NewRedisRevocationStore(client, cfg.JWT.Expiry)
		log.Info("token revocation enabled", zap.String("redis", cfg.Redis.Addr))
	}

	// --- Events ---
	if cfg.RabbitMQ.URL == "" {
		log.Warn("RABBITMQ_URL is not set, domain events are disabled")
	} else {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange}, log)
		if err != nil {
			return err
		}
		defer mq.Close()
		opts.Publisher = mq
		if cfg.RabbitMQ.AuditQueue != "" {
			if err := mq.Consume(cfg.RabbitMQ.AuditQueue, "#", rabbitmq.AuditHandler(log)); err != nil {
				log.Error("failed to start audit consumer", zap.Error(err))
			}
		}
	}

	server := app.New(cfg, db, log, opts)

	if err := server.Maintenance.Start(services.DefaultSweepSchedule); err != nil {
		return err
	}
	defer server.Maintenance.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		errCh <- server.App.Listen(cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")
	if err := server.App.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
	return nil
}
