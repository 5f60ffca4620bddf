// Package config reads service configuration from the environment. Each
// command loads .env through godotenv/autoload before calling Load.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/atifkhan161/contract-crown-sub004/internal/models"
)

type Config struct {
	Addr     string
	LogLevel logrus.Level

	// DatabaseURL is built from POSTGRES_* / PG_* when DATABASE_URL is unset.
	// Empty disables Postgres.
	DatabaseURL string
	// RedisAddr empty disables the event log publisher.
	RedisAddr  string
	RedisDB    int
	QueueName  string
	SQLitePath string

	TokenExpiry    time.Duration
	PrivateKeyPath string
	PublicKeyPath  string

	Rules             models.RoomRules
	ReconcileInterval time.Duration
	RoomRetention     time.Duration
	ShutdownTimeout   time.Duration

	HistorianBatchSize  int
	HistorianFlushDelay time.Duration
	InactivityTimeout   time.Duration
}

// Load reads the environment, applies defaults and validates the result.
func Load() (Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	rules := models.DefaultRoomRules()
	var errs []error
	rules.WinThreshold = getEnvInt("WIN_THRESHOLD", rules.WinThreshold)
	rules.BotDelayMin = getEnvDuration("BOT_DELAY_MIN", rules.BotDelayMin, &errs)
	rules.BotDelayMax = getEnvDuration("BOT_DELAY_MAX", rules.BotDelayMax, &errs)
	rules.TurnTimeout = getEnvDuration("TURN_TIMEOUT", rules.TurnTimeout, &errs)
	rules.TakeoverDelay = getEnvDuration("TAKEOVER_DELAY", rules.TakeoverDelay, &errs)
	rules.RoundPause = getEnvDuration("ROUND_PAUSE", rules.RoundPause, &errs)
	rules.HeartbeatTimeout = getEnvDuration("HEARTBEAT_TIMEOUT", rules.HeartbeatTimeout, &errs)

	cfg := Config{
		Addr:                ":" + getEnv("PORT", "8080"),
		LogLevel:            level,
		DatabaseURL:         databaseURL(),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		QueueName:           getEnv("HISTORIAN_QUEUE_NAME", "contract_crown_events"),
		SQLitePath:          getEnv("SQLITE_PATH", "contract-crown.db"),
		TokenExpiry:         tokenExpiry(&errs),
		PrivateKeyPath:      os.Getenv("JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:       os.Getenv("JWT_PUBLIC_KEY_PATH"),
		Rules:               rules,
		ReconcileInterval:   getEnvDuration("RECONCILE_INTERVAL", 2*time.Second, &errs),
		RoomRetention:       getEnvDuration("ROOM_RETENTION", 10*time.Minute, &errs),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		HistorianBatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		InactivityTimeout:   time.Duration(getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	r := c.Rules
	switch {
	case r.WinThreshold <= 0:
		return fmt.Errorf("WIN_THRESHOLD must be positive, got %d", r.WinThreshold)
	case r.BotDelayMin < 0 || r.BotDelayMax < r.BotDelayMin:
		return fmt.Errorf("bot delay window [%s, %s] is invalid", r.BotDelayMin, r.BotDelayMax)
	case r.TurnTimeout < 0 || r.TakeoverDelay < 0 || r.RoundPause < 0 || r.HeartbeatTimeout < 0:
		return errors.New("timeouts must not be negative")
	case c.ReconcileInterval <= 0:
		return errors.New("RECONCILE_INTERVAL must be positive")
	case c.HistorianBatchSize <= 0:
		return errors.New("HISTORIAN_BATCH_SIZE must be positive")
	case (c.PrivateKeyPath == "") != (c.PublicKeyPath == ""):
		return errors.New("JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH must be set together")
	}
	return nil
}

func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:   host + ":" + getEnv("PG_PORT", "5432"),
		Path:   "/" + os.Getenv("PG_DATABASE"),
	}
	return u.String()
}

// tokenExpiry reads TOKEN_EXPIRE_TIME: a duration, or "never"/"0" for none.
func tokenExpiry(errs *[]error) time.Duration {
	v := os.Getenv("TOKEN_EXPIRE_TIME")
	if v == "" || v == "never" || v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err))
	}
	return d
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
