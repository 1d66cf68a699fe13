package sqlmapper

import (
	"context"
	stdsql "database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql"
)

// Open connects to the database described by cfg. It creates the database
// first when cfg.Autocreate is set, and verifies the connection before
// returning.
func Open(ctx context.Context, cfg *Config, opts ...ConnOption) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Autocreate {
		if err := createDatabase(ctx, cfg); err != nil {
			return nil, err
		}
	}
	var txOpts *sql.TxOptions
	if cfg.ReadCommitted && cfg.Engine != dialect.SQLite {
		txOpts = sql.ReadCommitted()
	}
	drv, err := sql.Open(cfg.Engine, cfg.DriverName(), cfg.DSN(), txOpts)
	if err != nil {
		return nil, err
	}
	if err := drv.DB().PingContext(ctx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("sqlmapper: connect to %s: %w", cfg.Engine, err)
	}
	if cfg.Debug {
		opts = append([]ConnOption{WithDebug()}, opts...)
	}
	if cfg.SlowQueryThreshold > 0 {
		opts = append([]ConnOption{WithSlowQueryThreshold(cfg.SlowQueryThreshold)}, opts...)
	}
	conn, err := NewConn(drv, opts...)
	if err != nil {
		drv.Close()
		return nil, err
	}
	return conn, nil
}

// createDatabase creates the configured database if it does not exist.
// CREATE DATABASE cannot run inside a transaction, so it goes through a
// separate autocommit connection.
func createDatabase(ctx context.Context, cfg *Config) error {
	var stmt string
	switch cfg.Engine {
	case dialect.MySQL:
		stmt = "CREATE DATABASE IF NOT EXISTS " + sql.Quote(dialect.MySQL, cfg.DB) + " DEFAULT CHARACTER SET utf8mb4"
	case dialect.Postgres:
		stmt = "CREATE DATABASE " + sql.Quote(dialect.Postgres, cfg.DB)
	default:
		return nil
	}
	db, err := stdsql.Open(cfg.DriverName(), cfg.serverDSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, stmt); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("sqlmapper: create database %s: %w", cfg.DB, err)
	}
	return nil
}
