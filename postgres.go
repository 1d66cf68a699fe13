package sqlmapper

import (
	"context"
	"strings"

	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

// postgresDriver implements the table operations of PostgreSQL. Tables are
// looked up in the current schema.
type postgresDriver struct{}

func (*postgresDriver) Dialect() string { return dialect.Postgres }

// postgresTypes maps type names that PostgreSQL does not know to their
// native equivalents. Other names are passed through.
var postgresTypes = map[string]string{
	"DOUBLE":   "DOUBLE PRECISION",
	"DATETIME": "TIMESTAMP",
	"BLOB":     "BYTEA",
	"TINYINT":  "SMALLINT",
	"INT":      "INTEGER",
}

// postgresSerials maps integer types to their auto-incrementing variant.
var postgresSerials = map[string]string{
	"SMALLINT": "SMALLSERIAL",
	"INT2":     "SMALLSERIAL",
	"INTEGER":  "SERIAL",
	"INT4":     "SERIAL",
	"BIGINT":   "BIGSERIAL",
	"INT8":     "BIGSERIAL",
	"SERIAL":   "SERIAL",
}

const postgresColumnsQuery = `SELECT c.column_name, c.data_type, c.is_nullable, c.column_default, c.is_identity,
  EXISTS (
    SELECT 1 FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage k
      ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema AND k.table_name = tc.table_name
    WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = c.table_schema
      AND tc.table_name = c.table_name AND k.column_name = c.column_name
  ) AS is_primary
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`

func (*postgresDriver) columns(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Column, error) {
	rows, err := ex.Query(ctx, postgresColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []*schema.Column
	for rows.Next() {
		var (
			name, typ, nullable, identity string
			def                           sql.NullString
			primary                       bool
		)
		if err := rows.Scan(&name, &typ, &nullable, &def, &identity, &primary); err != nil {
			return nil, err
		}
		c := &schema.Column{
			Name:     name,
			Type:     typ,
			Nullable: nullable == "YES",
			Default:  parseDefault(def),
			Primary:  primary,
		}
		if identity == "YES" || strings.HasPrefix(def.String, "nextval(") {
			c.AutoIncrement = true
			c.Default = NoValue
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

const postgresIndexesQuery = `SELECT i.relname, a.attname, ix.indisunique, ix.indisprimary
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
LEFT JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = current_schema() AND t.relname = $1
ORDER BY i.relname, k.ord`

func (*postgresDriver) indexes(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Index, error) {
	rows, err := ex.Query(ctx, postgresIndexesQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var irows []indexRow
	for rows.Next() {
		var (
			r      indexRow
			column sql.NullString
		)
		if err := rows.Scan(&r.name, &column, &r.unique, &r.primary); err != nil {
			return nil, err
		}
		r.column = column.String
		irows = append(irows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupIndexes(irows), nil
}

func (*postgresDriver) tables(ctx context.Context, ex dialect.ExecQuerier) ([]string, error) {
	return queryStrings(ctx, ex, "SELECT table_name FROM information_schema.tables "+
		"WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name")
}

func (*postgresDriver) columnType(c *columnSpec) (string, error) {
	base, size, rest, err := parseType(dialect.Postgres, c.typ)
	if err != nil {
		return "", err
	}
	if native, ok := postgresTypes[base]; ok {
		base = native
	}
	if c.autoIncrement {
		serial, ok := postgresSerials[base]
		if !ok {
			return "", &InvalidColumnSpecError{Column: c.name, Reason: "auto increment requires an integer type, got " + c.typ}
		}
		return serial, nil
	}
	return base + size + rest, nil
}

func (*postgresDriver) writeColumn(b *sql.Builder, c *columnSpec, typ string, inlinePK bool) {
	writeColumn(b, c, typ)
	writeModifiers(b, c)
	if inlinePK && c.primary {
		b.WriteString(" PRIMARY KEY")
	}
}

func (d *postgresDriver) createTable(b *sql.Builder, table string, cols []*columnSpec, types []string) {
	pks := primaryKeys(cols)
	b.WriteString("CREATE TABLE ").Ident(table).WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		d.writeColumn(b, c, types[i], len(pks) == 1)
	}
	if len(pks) > 1 {
		writePrimaryKey(b, pks)
	}
	b.WriteByte(')')
}

func (d *postgresDriver) addColumn(b *sql.Builder, table string, c *columnSpec, typ string) {
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" ADD COLUMN ")
	d.writeColumn(b, c, typ, true)
}

func (*postgresDriver) insertDefaults(b *sql.Builder) { b.WriteString(" DEFAULT VALUES") }
func (*postgresDriver) limitAll() string              { return "" }
func (*postgresDriver) returning() bool               { return true }
func (*postgresDriver) updateLimit() bool             { return false }
func (*postgresDriver) forUpdate() bool               { return true }
func (*postgresDriver) emptyTable() bool              { return true }
