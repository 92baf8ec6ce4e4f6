package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/querypipe/internal/config"
	"github.com/roach88/querypipe/internal/fault"
)

// Connector opens the database behind one Handle. The returned *sql.DB is
// owned by the Handle and closed on Release.
type Connector interface {
	Connect(ctx context.Context, cfg config.Config) (*sql.DB, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, cfg config.Config) (*sql.DB, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	return f(ctx, cfg)
}

// SQLConnector opens cfg.Driver through database/sql. Supported drivers are
// sqlite3, sqlite, mysql and pgx.
//
// Each connection is a *sql.DB limited to a single open connection, so a
// Handle never shares a session with another Handle.
type SQLConnector struct{}

// Connect opens, pings and (for SQLite) configures a database.
func (SQLConnector) Connect(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(cfg.Driver) {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return db, nil
}

func isSQLite(driver string) bool {
	return driver == config.DriverSQLite3 || driver == config.DriverSQLite
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// connectFault classifies a connector failure. Faults raised by the
// connector itself (a bad DSN is a configuration fault) pass through.
func connectFault(err error) error {
	if fault.KindOf(err) != "" {
		return err
	}
	return fault.Connection("acquire", err)
}
