// Package sql provides value binding, statement building and a session
// driver over database/sql for the dialects supported by sqlmapper.
//
// # Builder
//
// Builder is a low-level SQL string builder. It quotes identifiers, binds
// arguments and renders placeholders in the syntax of one dialect:
//
//	b := sql.Dialect(dialect.MySQL)
//	b.WriteString("UPDATE ").Ident("book").WriteString(" SET ").Ident("value").WriteString(" = ").Arg(18)
//	query, args := b.Query() // UPDATE `book` SET `value` = ?, [18]
//
// MySQL and SQLite use "?" placeholders and backtick quoting; Postgres uses
// numbered "$n" placeholders and double quotes.
//
// Raw fragments supplied by callers always use "?" and are rebound:
//
//	sql.Dialect(dialect.Postgres).Raw("value > ? AND name <> ?", 10, "mint")
//	// value > $1 AND name <> $2
//
// # Absent values
//
// NoValue marks "no value supplied" and is distinct from nil, which binds as
// NULL. Binding NoValue records ErrNoValue on the builder.
//
// # Driver
//
// Driver pins one session from a *sql.DB and begins a transaction lazily on
// the first statement after each Commit or Rollback:
//
//	drv, err := sql.Open(dialect.SQLite, "sqlite", ":memory:", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// StatsDriver and DebugDriver decorate any dialect.Driver with statement
// statistics and slog logging.
package sql
