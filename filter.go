package sqlmapper

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

// Clause is a raw SQL condition with positional parameters. Placeholders are
// written as "?" whatever the dialect and are rebound when the statement is
// built. The fragment is passed through as is; quoting identifiers inside it
// is the caller's job.
type Clause struct {
	SQL  string
	Args []any
}

// Raw returns a Clause filter.
//
//	book.Count(ctx, sqlmapper.Raw("value > ?", 10))
func Raw(sql string, args ...any) Clause {
	return Clause{SQL: sql, Args: args}
}

// pkLookup resolves the primary key columns of the filtered table.
type pkLookup func() ([]*schema.Column, error)

// filterCompiler compiles filters of one table into WHERE clauses.
type filterCompiler struct {
	table  string
	lookup pkLookup
	// qualify prefixes filtered columns with the table name, for statements
	// that join other tables.
	qualify bool
}

// compile writes the WHERE clause for filter into b, if any. Accepted
// filters are:
//
//	nil                 every row
//	map[string]any      equality on every key, joined by AND, keys sorted
//	*Row                equality on every key, in row order
//	Clause              raw condition
//	integers, string, uuid.UUID
//	                    equality on the single primary key column
//
// A nil value in a map or row compiles to IS NULL.
func (fc *filterCompiler) compile(b *sql.Builder, filter any) error {
	switch f := filter.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := slices.Sorted(maps.Keys(f))
		fc.writeEquals(b, keys, func(k string) any { return f[k] })
	case *Row:
		if f == nil {
			return nil
		}
		fc.writeEquals(b, f.Keys(), f.Get)
	case Clause:
		writeClause(b, f)
	case *Clause:
		if f == nil {
			return nil
		}
		writeClause(b, *f)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, string, uuid.UUID:
		pk, err := fc.lookup()
		if err != nil {
			return err
		}
		if len(pk) != 1 {
			return &NoPrimaryKeyError{Table: fc.table, Columns: len(pk)}
		}
		b.WriteString(" WHERE ").Ident(fc.column(pk[0].Name)).WriteString(" = ").Arg(scalarArg(f))
	default:
		return &InvalidFilterError{Filter: filter}
	}
	return b.Err()
}

// column returns the name of a filtered column, qualified with the table
// name when the statement joins other tables. Already qualified names are
// kept as written.
func (fc *filterCompiler) column(name string) string {
	if fc.qualify && !strings.Contains(name, ".") {
		return fc.table + "." + name
	}
	return name
}

func (fc *filterCompiler) writeEquals(b *sql.Builder, keys []string, get func(string) any) {
	if len(keys) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.Ident(fc.column(k))
		if v := get(k); v == nil {
			b.WriteString(" IS NULL")
		} else {
			b.WriteString(" = ").Arg(v)
		}
	}
}

func writeClause(b *sql.Builder, c Clause) {
	if c.SQL == "" {
		return
	}
	b.WriteString(" WHERE ").Raw(c.SQL, c.Args...)
}

// scalarArg converts scalar filter values the drivers do not bind natively.
func scalarArg(v any) any {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}
	return v
}

// writeSet writes the SET list of an UPDATE statement.
func writeSet(b *sql.Builder, data any) error {
	var (
		keys []string
		get  func(string) any
	)
	switch d := data.(type) {
	case map[string]any:
		keys = slices.Sorted(maps.Keys(d))
		get = func(k string) any { return d[k] }
	case *Row:
		if d != nil {
			keys, get = d.Keys(), d.Get
		}
	default:
		return fmt.Errorf("sqlmapper: unsupported update type %T", data)
	}
	if len(keys) == 0 {
		return ErrEmptyUpdate
	}
	b.WriteString(" SET ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(k).WriteString(" = ").Arg(get(k))
	}
	return b.Err()
}

// columnsValues returns the ordered columns and values of an insert payload.
func columnsValues(data any) ([]string, []any, error) {
	switch d := data.(type) {
	case nil:
		return nil, nil, nil
	case map[string]any:
		keys := slices.Sorted(maps.Keys(d))
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = d[k]
		}
		return keys, values, nil
	case *Row:
		if d == nil {
			return nil, nil, nil
		}
		keys := d.Keys()
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = d.Get(k)
		}
		return keys, values, nil
	default:
		return nil, nil, fmt.Errorf("sqlmapper: unsupported row type %T", data)
	}
}
