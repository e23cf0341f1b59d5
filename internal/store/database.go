// Package store persists parking spaces and sessions in SQLite or
// PostgreSQL through sqlx.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"parking-manager/internal/logging"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

func systemAttribute(driver string) (attribute.KeyValue, error) {
	switch driver {
	case DriverSQLite:
		return semconv.DBSystemSqlite, nil
	case DriverPostgres:
		return semconv.DBSystemPostgreSQL, nil
	}
	return attribute.KeyValue{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Connect opens an instrumented connection pool and waits for the database
// to answer a ping.
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	system, err := systemAttribute(driver)
	if err != nil {
		return nil, err
	}

	db, err := otelsql.Open(driver, dsn, otelsql.WithAttributes(system))
	if err != nil {
		return nil, err
	}

	if err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(system)); err != nil {
		db.Close()
		return nil, err
	}

	sqlxDB := sqlx.NewDb(db, driver)

	if driver == DriverSQLite {
		// database/sql would otherwise hand concurrent writers separate
		// connections and sqlite would answer SQLITE_BUSY.
		sqlxDB.SetMaxOpenConns(1)
	} else {
		sqlxDB.SetMaxOpenConns(25)
		sqlxDB.SetMaxIdleConns(5)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := sqlxDB.PingContext(ctx); err != nil {
			logging.Warn(ctx, "database not ready", "driver", driver, "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(5),
	)
	if err != nil {
		sqlxDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return sqlxDB, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS parking_spaces (
		id VARCHAR(36) PRIMARY KEY,
		code VARCHAR(16) UNIQUE NOT NULL,
		floor_level VARCHAR(8) NOT NULL,
		is_accessible BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(16) NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS parking_sessions (
		id VARCHAR(36) PRIMARY KEY,
		license_plate VARCHAR(16) NOT NULL,
		person_id BIGINT NOT NULL,
		space_id VARCHAR(36) NOT NULL REFERENCES parking_spaces(id),
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NULL,
		billed_hours BIGINT NOT NULL DEFAULT 0,
		fee_cents BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_plate
		ON parking_sessions(license_plate) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_space
		ON parking_sessions(space_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_entry_time ON parking_sessions(entry_time)`,
}

func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			logging.Error(ctx, "migration failed", "index", i, "error", err)
			return err
		}
	}
	logging.Info(ctx, "migrations completed", "count", len(migrations))
	return nil
}
