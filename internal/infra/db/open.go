package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"notification-worker/internal/pkg/config"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default pool configuration for the
// delivery ledger. Each in-flight message holds at most one connection.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Open connects to the ledger database at dsn through the pgx stdlib driver,
// applies pool settings from the environment and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("open ledger database: DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}

	cfg, warnings := connectionConfigFromEnv()
	for _, w := range warnings {
		slog.Warn("ledger pool configuration fallback applied", slog.String("warning", w))
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("ledger connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}

	return db, nil
}

func positiveConns(v int) error { return config.ValidateIntRange(v, 1, 1000) }

// connectionConfigFromEnv applies DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME and DB_CONN_MAX_IDLE_TIME over the defaults. Invalid
// values keep the default and produce a warning. Idle connections never
// exceed open ones.
func connectionConfigFromEnv() (ConnectionConfig, []string) {
	def := DefaultConnectionConfig()

	open := config.LoadEnvInt("DB_MAX_OPEN_CONNS", def.MaxOpenConns, positiveConns)
	idle := config.LoadEnvInt("DB_MAX_IDLE_CONNS", def.MaxIdleConns, positiveConns)
	lifetime := config.LoadEnvDuration("DB_CONN_MAX_LIFETIME", def.ConnMaxLifetime, config.ValidatePositiveDuration)
	idleTime := config.LoadEnvDuration("DB_CONN_MAX_IDLE_TIME", def.ConnMaxIdleTime, config.ValidatePositiveDuration)

	cfg := ConnectionConfig{
		MaxOpenConns:    open.Value,
		MaxIdleConns:    min(idle.Value, open.Value),
		ConnMaxLifetime: lifetime.Value,
		ConnMaxIdleTime: idleTime.Value,
	}

	var warnings []string
	for _, w := range [][]string{open.Warnings, idle.Warnings, lifetime.Warnings, idleTime.Warnings} {
		warnings = append(warnings, w...)
	}
	return cfg, warnings
}
