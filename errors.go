package sqlmapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/syssam/sqlmapper/dialect/sql"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when FindOne matches no row.
	ErrNotFound = errors.New("sqlmapper: row not found")

	// ErrEmptyUpdate is returned when Update is called without any column to set.
	ErrEmptyUpdate = errors.New("sqlmapper: empty update")

	// ErrConnClosed is returned by operations on a closed connection.
	ErrConnClosed = errors.New("sqlmapper: connection is closed")

	// ErrNoValue is returned when NoValue is used where a real value is required.
	ErrNoValue = sql.ErrNoValue
)

// NoValue marks an absent value, e.g. a column without a default. It is
// distinct from nil, which is SQL NULL.
var NoValue = sql.NoValue

// IsNoValue reports whether v is the NoValue sentinel.
func IsNoValue(v any) bool { return sql.IsNoValue(v) }

// InvalidFilterError is returned when a filter has none of the supported shapes.
type InvalidFilterError struct {
	Filter any
}

// Error returns the error string.
func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("sqlmapper: invalid filter of type %T", e.Filter)
}

// IsInvalidFilter returns true if the error is an InvalidFilterError.
func IsInvalidFilter(err error) bool {
	var e *InvalidFilterError
	return errors.As(err, &e)
}

// NoPrimaryKeyError is returned when a scalar filter is used against a table
// without exactly one primary key column.
type NoPrimaryKeyError struct {
	Table string
	// Columns is the number of primary key columns found.
	Columns int
}

// Error returns the error string.
func (e *NoPrimaryKeyError) Error() string {
	if e.Columns > 1 {
		return fmt.Sprintf("sqlmapper: table %q has a composite primary key (%d columns)", e.Table, e.Columns)
	}
	return fmt.Sprintf("sqlmapper: table %q has no primary key", e.Table)
}

// IsNoPrimaryKey returns true if the error is a NoPrimaryKeyError.
func IsNoPrimaryKey(err error) bool {
	var e *NoPrimaryKeyError
	return errors.As(err, &e)
}

// InvalidColumnSpecError is returned for contradictory column options.
type InvalidColumnSpecError struct {
	Table  string
	Column string
	Reason string
}

// Error returns the error string.
func (e *InvalidColumnSpecError) Error() string {
	return fmt.Sprintf("sqlmapper: invalid column %s.%s: %s", e.Table, e.Column, e.Reason)
}

// IsInvalidColumnSpec returns true if the error is an InvalidColumnSpecError.
func IsInvalidColumnSpec(err error) bool {
	var e *InvalidColumnSpecError
	return errors.As(err, &e)
}

// UnsupportedTypeError is returned when a column type has no mapping in the dialect.
type UnsupportedTypeError struct {
	Dialect string
	Type    string
}

// Error returns the error string.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("sqlmapper: unsupported %s column type %q", e.Dialect, e.Type)
}

// IsUnsupportedType returns true if the error is an UnsupportedTypeError.
func IsUnsupportedType(err error) bool {
	var e *UnsupportedTypeError
	return errors.As(err, &e)
}

// InsertFailedError is returned when an insert did not affect exactly one row.
type InsertFailedError struct {
	Table    string
	Affected int64
}

// Error returns the error string.
func (e *InsertFailedError) Error() string {
	return fmt.Sprintf("sqlmapper: insert into %q affected %d rows", e.Table, e.Affected)
}

// IsInsertFailed returns true if the error is an InsertFailedError.
func IsInsertFailed(err error) bool {
	var e *InsertFailedError
	return errors.As(err, &e)
}

// UnsupportedOperationError is returned for operations a dialect does not provide.
type UnsupportedOperationError struct {
	Dialect string
	Op      string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("sqlmapper: %s is not supported by %s", e.Op, e.Dialect)
}

// IsUnsupportedOperation returns true if the error is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}

// NotFoundError is returned by FindOne when no row matches the filter.
type NotFoundError struct {
	table  string
	filter any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.filter != nil {
		return fmt.Sprintf("sqlmapper: %s not found (filter=%v)", e.table, e.filter)
	}
	return fmt.Sprintf("sqlmapper: %s not found", e.table)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Table returns the table that was searched.
func (e *NotFoundError) Table() string {
	return e.table
}

// NewNotFoundError returns a new NotFoundError for the given table and filter.
func NewNotFoundError(table string, filter any) *NotFoundError {
	return &NotFoundError{table: table, filter: filter}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("sqlmapper: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// errorCoder is an interface for database errors that provide error codes.
type errorCoder interface {
	Code() string
}

// sqlStateError is an interface for errors that provide SQLSTATE codes.
// Implemented by: pq.Error and pgconn.PgError.
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgDuplicateDatabase   = "42P04"
	pgDuplicateTable      = "42P07" // also raised for existing indexes
	pgDuplicateColumn     = "42701"
)

// MySQL error numbers.
const (
	mysqlDatabaseExists         = 1007
	mysqlTableExists            = 1050
	mysqlDuplicateColumn        = 1060
	mysqlDuplicateKeyName       = 1061
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// sqlState returns the SQLSTATE code of a Postgres error in the chain.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	if e, ok := asError[sqlStateError](err); ok {
		return e.SQLState()
	}
	if e, ok := asError[errorCoder](err); ok {
		return e.Code()
	}
	return ""
}

// mysqlNumber returns the error number of a MySQL error in the chain.
func mysqlNumber(err error) uint16 {
	var e *mysql.MySQLError
	if errors.As(err, &e) {
		return e.Number
	}
	return 0
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgUniqueViolation || mysqlNumber(err) == mysqlDuplicateEntry {
		return true
	}
	// Fallback to string matching for drivers that don't expose codes.
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgForeignKeyViolation {
		return true
	}
	if n := mysqlNumber(err); n == mysqlForeignKeyParent || n == mysqlForeignKeyChild {
		return true
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL (Cannot delete or update a parent row)
		"Error 1452",                      // MySQL (Cannot add or update a child row)
		"violates foreign key constraint", // Postgres
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if sqlState(err) == pgCheckViolation || mysqlNumber(err) == mysqlCheckConstraintViolate {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // Postgres
		"CHECK constraint failed",   // SQLite
	)
}

// isAlreadyExists reports whether a DDL error means the object being created
// already exists.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	switch sqlState(err) {
	case pgDuplicateDatabase, pgDuplicateTable, pgDuplicateColumn:
		return true
	}
	switch mysqlNumber(err) {
	case mysqlDatabaseExists, mysqlTableExists, mysqlDuplicateColumn, mysqlDuplicateKeyName:
		return true
	}
	return containsAny(err.Error(),
		"already exists",        // SQLite, Postgres
		"duplicate column name", // SQLite
	)
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
