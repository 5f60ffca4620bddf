// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/atifkhan161/contract-crown-sub004/internal/auth"
	"github.com/atifkhan161/contract-crown-sub004/internal/cache"
	"github.com/atifkhan161/contract-crown-sub004/internal/config"
	"github.com/atifkhan161/contract-crown-sub004/internal/database"
	"github.com/atifkhan161/contract-crown-sub004/internal/game"
	"github.com/atifkhan161/contract-crown-sub004/internal/handlers"
)

func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := newSessions(cfg)
	if err != nil {
		return err
	}

	srv := handlers.NewGameServer(sessions, nil, cfg.Rules, logger)

	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		wirePostgres(srv, pool)
		logger.Info("room seating and results backed by Postgres")
	} else {
		logger.Warn("DATABASE_URL not set; only local games are available")
	}

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		wireRedis(srv, rdb, cfg.QueueName)
		logger.WithField("queue", cfg.QueueName).Info("publishing events to Redis")
	}

	if cfg.SQLitePath != "" {
		local, err := database.OpenLocal(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer local.Close()
		srv.LocalResults = local
	}

	httpServer := &http.Server{Addr: cfg.Addr, Handler: srv.Routes()}
	reconciler := &game.Reconciler{
		Store:     srv.Rooms,
		Interval:  cfg.ReconcileInterval,
		Retention: cfg.RoomRetention,
		Logger:    logger.WithField("component", "reconciler"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		srv.Shutdown()
		return err
	})
	return g.Wait()
}

func newSessions(cfg config.Config) (*auth.Sessions, error) {
	if cfg.PrivateKeyPath != "" {
		return auth.NewFromPath(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TokenExpiry)
	}
	return auth.New(cfg.TokenExpiry)
}

func wirePostgres(srv *handlers.GameServer, pool *pgxpool.Pool) {
	srv.Seats = database.RoomSeats{Pool: pool}
	srv.Results = database.GameResults{Pool: pool}
}

func wireRedis(srv *handlers.GameServer, rdb *redis.Client, queue string) {
	srv.Events = cache.NewEventQueue(rdb, queue)
}
