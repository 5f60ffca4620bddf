// cmd/historian/historian.go pops canonical event records from the Redis
// queue and persists them to Postgres in batches.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/atifkhan161/contract-crown-sub004/internal/cache"
	"github.com/atifkhan161/contract-crown-sub004/internal/config"
	"github.com/atifkhan161/contract-crown-sub004/internal/database"
	"github.com/atifkhan161/contract-crown-sub004/internal/historian"
)

func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("historian exited")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL (or PG_HOST) is required")
	}
	if cfg.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewEventQueue(rdb, cfg.QueueName),
		database.EventStore{Pool: pool},
		historian.Config{
			BatchSize:  cfg.HistorianBatchSize,
			FlushDelay: cfg.HistorianFlushDelay,
			Inactivity: cfg.InactivityTimeout,
		},
		logger.WithField("component", "historian"),
	)
	return svc.Run(ctx)
}
