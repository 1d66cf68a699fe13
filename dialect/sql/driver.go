package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/syssam/sqlmapper/dialect"
)

// validIdentifierRe validates SQL identifiers (alphanumeric, underscores, dots for schema.name)
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// IsValidIdentifier checks if the string is a valid SQL identifier.
func IsValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// escapeStringValue escapes a string value for safe use in SQL.
// It escapes both single quotes (by doubling) and backslashes (for MySQL compatibility).
func escapeStringValue(s string) string {
	// Fast path: if no escaping needed, return as-is
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	// Escape backslashes first, then single quotes
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return s
}

// Driver is a dialect.Driver implementation over database/sql.
//
// A Driver owns exactly one backend session: a *sql.Conn pinned from the pool
// on first use. The first statement after a boundary begins a transaction on
// that session; Commit and Rollback end it. A Driver is not safe for
// concurrent use.
type Driver struct {
	db      *sql.DB
	conn    *sql.Conn
	tx      *sql.Tx
	dialect string
	opts    *TxOptions
}

// Open wraps the database/sql.Open method and returns a Driver for the given
// dialect. The driverName is the registered database/sql driver, which differs
// from the dialect for alternate drivers (e.g. "pgx" for Postgres).
func Open(dialect, driverName, source string, opts *TxOptions) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(dialect, db, opts), nil
}

// OpenDB wraps the given database/sql.DB with a Driver.
func OpenDB(dialect string, db *sql.DB, opts *TxOptions) *Driver {
	return &Driver{db: db, dialect: dialect, opts: opts}
}

// DB returns the underlying *sql.DB instance.
func (d *Driver) DB() *sql.DB { return d.db }

// Dialect implements the dialect.Driver interface.
func (d *Driver) Dialect() string {
	// The name may carry a driver suffix, e.g. "postgres+pgx".
	for _, name := range []string{dialect.MySQL, dialect.SQLite, dialect.Postgres} {
		if strings.HasPrefix(d.dialect, name) {
			return name
		}
	}
	return d.dialect
}

// InTx reports whether a transaction is currently open on the session.
func (d *Driver) InTx() bool { return d.tx != nil }

// session returns the open transaction, beginning one if needed.
func (d *Driver) session(ctx context.Context) (*sql.Tx, error) {
	if d.tx != nil {
		return d.tx, nil
	}
	if d.db == nil {
		return nil, errors.New("dialect/sql: driver is closed")
	}
	if d.conn == nil {
		conn, err := d.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("dialect/sql: acquire session: %w", err)
		}
		d.conn = conn
	}
	tx, err := d.conn.BeginTx(ctx, d.opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	d.tx = tx
	return tx, nil
}

// Exec implements the dialect.ExecQuerier interface.
func (d *Driver) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx, err := d.session(ctx)
	if err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: exec: %w", err)
	}
	return res, nil
}

// Query implements the dialect.ExecQuerier interface.
func (d *Driver) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	tx, err := d.session(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: query: %w", err)
	}
	return rows, nil
}

// Commit commits the open transaction. It is a no-op when no statement was
// issued since the last boundary.
func (d *Driver) Commit() error {
	if d.tx == nil {
		return nil
	}
	tx := d.tx
	d.tx = nil
	return tx.Commit()
}

// Rollback rolls back the open transaction. It is a no-op when no statement
// was issued since the last boundary.
func (d *Driver) Rollback() error {
	if d.tx == nil {
		return nil
	}
	tx := d.tx
	d.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Close rolls back any open transaction and releases the session and the pool.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.Rollback()
	if d.conn != nil {
		err = errors.Join(err, d.conn.Close())
		d.conn = nil
	}
	err = errors.Join(err, d.db.Close())
	d.db = nil
	return err
}

var _ dialect.Driver = (*Driver)(nil)

type (
	// Result is an alias to sql.Result.
	Result = sql.Result
	// Rows is an alias to sql.Rows.
	Rows = sql.Rows
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ReadCommitted returns transaction options for the READ COMMITTED isolation level.
func ReadCommitted() *TxOptions {
	return &TxOptions{Isolation: sql.LevelReadCommitted}
}
