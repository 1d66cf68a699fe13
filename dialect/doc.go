// Package dialect provides the database dialect abstraction for sqlmapper.
//
// This package defines the dialect identifiers and the narrow contracts the
// mapper consumes from a database client, allowing one table API to run on
// several backends:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # ExecQuerier Interface
//
// ExecQuerier is the only way the mapper talks to a backend. Exec reports the
// affected row count and the last inserted id through sql.Result, and Query
// returns rows whose ColumnTypes describe the result set:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
//	    Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
//	}
//
// # Driver Interface
//
// Driver is an ExecQuerier bound to a single backend session. Statements
// issued between two boundaries form one transaction:
//
//	type Driver interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	    Close() error
//	    Dialect() string
//	}
//
// # Sub-packages
//
//   - dialect/sql: value binding, statement building and the database/sql driver
//   - dialect/sql/schema: column and index descriptors and the schema cache
package dialect
