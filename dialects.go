package sqlmapper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

// tableDriver is the set of backend specific table operations. It is
// implemented once per dialect; everything dialect independent lives in Table.
type tableDriver interface {
	// Dialect returns the dialect name.
	Dialect() string

	// columns introspects the columns of a table in backend order. It returns
	// no columns when the table does not exist.
	columns(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Column, error)
	// indexes introspects the indexes of a table.
	indexes(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Index, error)
	// tables lists the tables of the current database.
	tables(ctx context.Context, ex dialect.ExecQuerier) ([]string, error)

	// columnType maps a logical type to the native column type.
	columnType(c *columnSpec) (string, error)
	// createTable writes a CREATE TABLE statement.
	createTable(b *sql.Builder, table string, cols []*columnSpec, types []string)
	// addColumn writes an ALTER TABLE ... ADD COLUMN statement.
	addColumn(b *sql.Builder, table string, c *columnSpec, typ string)
	// insertDefaults writes the tail of an INSERT without columns.
	insertDefaults(b *sql.Builder)
	// limitAll is the LIMIT clause that allows OFFSET without a limit.
	limitAll() string

	// returning reports whether inserted ids are read with RETURNING.
	returning() bool
	// updateLimit reports whether UPDATE accepts LIMIT.
	updateLimit() bool
	// forUpdate reports whether SELECT ... FOR UPDATE is supported.
	forUpdate() bool
	// emptyTable reports whether a table may be created without columns.
	emptyTable() bool
}

// newTableDriver returns the table driver of the dialect.
func newTableDriver(name string) (tableDriver, error) {
	switch name {
	case dialect.MySQL:
		return &mysqlDriver{}, nil
	case dialect.Postgres:
		return &postgresDriver{}, nil
	case dialect.SQLite:
		return &sqliteDriver{}, nil
	default:
		return nil, fmt.Errorf("sqlmapper: unsupported dialect %q", name)
	}
}

// typeRe matches the column types accepted by every dialect: a name of one or
// more words, an optional size or precision, an optional modifier such as
// UNSIGNED and an optional array suffix.
var typeRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*(?: [A-Za-z][A-Za-z0-9_]*)*)\s*(\(\s*\d+\s*(?:,\s*\d+\s*)?\))?((?: [A-Za-z]+)*)(\[\])?$`)

// parseType splits a type into its upper-cased base name and the rest.
func parseType(dialectName, typ string) (base, size, rest string, err error) {
	m := typeRe.FindStringSubmatch(strings.TrimSpace(typ))
	if m == nil {
		return "", "", "", &UnsupportedTypeError{Dialect: dialectName, Type: typ}
	}
	return strings.ToUpper(m[1]), strings.ReplaceAll(m[2], " ", ""), strings.ToUpper(m[3]) + m[4], nil
}

// writeColumn writes the dialect independent parts of a column definition.
func writeColumn(b *sql.Builder, c *columnSpec, typ string) {
	b.Ident(c.name).Pad().WriteString(typ)
	if c.notNull {
		b.WriteString(" NOT NULL")
	}
}

// writeModifiers writes the UNIQUE and DEFAULT clauses of a column definition.
func writeModifiers(b *sql.Builder, c *columnSpec) {
	if c.unique && !c.primary {
		b.WriteString(" UNIQUE")
	}
	if !IsNoValue(c.def) {
		b.WriteString(" DEFAULT ").Literal(c.def)
	}
}

// primaryKeys returns the names of the primary columns.
func primaryKeys(cols []*columnSpec) []string {
	var pks []string
	for _, c := range cols {
		if c.primary {
			pks = append(pks, c.name)
		}
	}
	return pks
}

// writePrimaryKey writes a table level PRIMARY KEY constraint.
func writePrimaryKey(b *sql.Builder, pks []string) {
	b.WriteString(", PRIMARY KEY (").IdentComma(pks...).WriteByte(')')
}

// parseDefault decodes a column default as reported by the catalog. Quoted
// strings are unquoted, Postgres casts are stripped and numbers are parsed.
// Anything else, such as CURRENT_TIMESTAMP, is returned as written.
func parseDefault(s sql.NullString) any {
	if !s.Valid {
		return NoValue
	}
	v := strings.TrimSpace(s.String)
	if strings.EqualFold(v, "NULL") {
		return nil
	}
	if i := strings.LastIndex(v, "::"); i > 0 && strings.HasPrefix(v, "'") {
		v = v[:i]
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

// queryStrings runs a query selecting a single string column.
func queryStrings(ctx context.Context, ex dialect.ExecQuerier, query string, args ...any) ([]string, error) {
	rows, err := ex.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// groupIndexes folds (index, column) rows, ordered by index, into descriptors.
type indexRow struct {
	name    string
	column  string
	unique  bool
	primary bool
}

func groupIndexes(rows []indexRow) []*schema.Index {
	var (
		idxs []*schema.Index
		last *schema.Index
	)
	for _, r := range rows {
		if last == nil || last.Name != r.name {
			last = &schema.Index{Name: r.name, Unique: r.unique, Primary: r.primary}
			idxs = append(idxs, last)
		}
		if r.column != "" {
			last.Columns = append(last.Columns, r.column)
		}
	}
	return idxs
}
