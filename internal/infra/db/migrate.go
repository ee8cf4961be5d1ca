package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer runs DDL statements. Both *sql.DB and the ledger's circuit breaker
// wrapper satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// schema is applied in order by MigrateUp. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS deliveries (
    notification_id TEXT PRIMARY KEY,
    status          VARCHAR(16) NOT NULL,
    output_type     VARCHAR(8)  NOT NULL DEFAULT '',
    application_id  TEXT        NOT NULL DEFAULT '',
    last_error      TEXT        NOT NULL DEFAULT '',
    attempt_count   INTEGER     NOT NULL DEFAULT 0 CHECK (attempt_count >= 0),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    delivered_at    TIMESTAMPTZ,
    CONSTRAINT chk_deliveries_status CHECK (status IN
        ('RECEIVED', 'PROCESSING', 'SUCCESS', 'RETRYING', 'FAILED', 'DEAD_LETTER'))
)`,
	// status dashboards and stuck-record sweeps
	`CREATE INDEX IF NOT EXISTS idx_deliveries_status_updated_at ON deliveries(status, updated_at)`,
	// per-application audit queries
	`CREATE INDEX IF NOT EXISTS idx_deliveries_application_id ON deliveries(application_id) WHERE application_id <> ''`,
}

// MigrateUp creates the deliveries ledger table and its indexes.
func MigrateUp(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

// MigrateDown drops the ledger table.
func MigrateDown(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS deliveries`); err != nil {
		return fmt.Errorf("drop deliveries: %w", err)
	}
	return nil
}
