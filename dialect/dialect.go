package dialect

import (
	"context"
	"database/sql"
)

// Dialect names supported by the mapper.
const (
	MySQL    = "mysql"
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// ExecQuerier wraps the two operations every backend must provide.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows.
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	// Query executes a statement that returns rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Driver is an ExecQuerier bound to one backend session.
type Driver interface {
	ExecQuerier
	// Commit applies every statement issued since the last boundary.
	Commit() error
	// Rollback discards every statement issued since the last boundary.
	Rollback() error
	// Close releases the session.
	Close() error
	// Dialect returns the dialect name of the session.
	Dialect() string
}

// Supported reports whether the given dialect name is known.
func Supported(name string) bool {
	switch name {
	case MySQL, SQLite, Postgres:
		return true
	}
	return false
}
