package sqlmapper

import (
	"context"
	"strings"

	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

// sqliteDriver implements the table operations of SQLite. Column types are
// reduced to SQLite's type affinities.
type sqliteDriver struct{}

func (*sqliteDriver) Dialect() string { return dialect.SQLite }

// sqliteTypes maps type names to their SQLite affinity.
var sqliteTypes = map[string]string{
	// integer
	"INTEGER": "INTEGER",
	"INT":     "INTEGER",

	// text
	"TEXT":    "TEXT",
	"VARCHAR": "TEXT",

	// none
	"NONE": "NONE",
	"BLOB": "NONE",

	// real
	"REAL":   "REAL",
	"DOUBLE": "REAL",
	"FLOAT":  "REAL",

	// numeric
	"NUMERIC":  "NUMERIC",
	"DECIMAL":  "NUMERIC",
	"BOOLEAN":  "NUMERIC",
	"DATE":     "NUMERIC",
	"DATETIME": "NUMERIC",
}

const sqliteColumnsQuery = `SELECT "name", "type", "notnull", "dflt_value", "pk" FROM pragma_table_info(?) ORDER BY "cid"`

func (*sqliteDriver) columns(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Column, error) {
	rows, err := ex.Query(ctx, sqliteColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []*schema.Column
	for rows.Next() {
		var (
			name, typ   string
			notNull, pk int64
			def         sql.NullString
		)
		if err := rows.Scan(&name, &typ, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, &schema.Column{
			Name:     name,
			Type:     typ,
			Nullable: notNull == 0,
			Default:  parseDefault(def),
			Primary:  pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// A single INTEGER primary key aliases the rowid, which SQLite assigns.
	if pk := schema.PrimaryKey(cols); len(pk) == 1 && strings.EqualFold(pk[0].Type, "INTEGER") {
		pk[0].AutoIncrement = true
	}
	return cols, nil
}

const sqliteIndexesQuery = `SELECT il."name", ii."name", il."unique", il."origin" = 'pk'
FROM pragma_index_list(?) AS il, pragma_index_info(il."name") AS ii
ORDER BY il."name", ii."seqno"`

func (*sqliteDriver) indexes(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Index, error) {
	rows, err := ex.Query(ctx, sqliteIndexesQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var irows []indexRow
	for rows.Next() {
		var (
			r               indexRow
			column          sql.NullString
			unique, primary int64
		)
		if err := rows.Scan(&r.name, &column, &unique, &primary); err != nil {
			return nil, err
		}
		r.column, r.unique, r.primary = column.String, unique == 1, primary == 1
		irows = append(irows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupIndexes(irows), nil
}

func (*sqliteDriver) tables(ctx context.Context, ex dialect.ExecQuerier) ([]string, error) {
	return queryStrings(ctx, ex, `SELECT "name" FROM "sqlite_master" WHERE "type" = 'table' AND "name" NOT LIKE 'sqlite_%' ORDER BY "name"`)
}

func (*sqliteDriver) columnType(c *columnSpec) (string, error) {
	base, _, _, err := parseType(dialect.SQLite, c.typ)
	if err != nil {
		return "", err
	}
	affinity, ok := sqliteTypes[base]
	if !ok {
		return "", &UnsupportedTypeError{Dialect: dialect.SQLite, Type: c.typ}
	}
	if c.autoIncrement && affinity != "INTEGER" {
		return "", &InvalidColumnSpecError{Column: c.name, Reason: "auto increment requires an integer type, got " + c.typ}
	}
	return affinity, nil
}

func (*sqliteDriver) writeColumn(b *sql.Builder, c *columnSpec, typ string, inlinePK bool) {
	b.Ident(c.name).Pad().WriteString(typ)
	if inlinePK && c.primary {
		b.WriteString(" PRIMARY KEY")
		if c.autoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.notNull {
		b.WriteString(" NOT NULL")
	}
	writeModifiers(b, c)
}

func (d *sqliteDriver) createTable(b *sql.Builder, table string, cols []*columnSpec, types []string) {
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

// addColumn writes the column with an inline PRIMARY KEY; SQLite rejects
// adding primary key columns to existing tables and that error is returned
// as is.
func (d *sqliteDriver) addColumn(b *sql.Builder, table string, c *columnSpec, typ string) {
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" ADD COLUMN ")
	d.writeColumn(b, c, typ, true)
}

func (*sqliteDriver) insertDefaults(b *sql.Builder) { b.WriteString(" DEFAULT VALUES") }
func (*sqliteDriver) limitAll() string              { return " LIMIT -1" }
func (*sqliteDriver) returning() bool               { return false }
func (*sqliteDriver) updateLimit() bool             { return false }
func (*sqliteDriver) forUpdate() bool               { return false }
func (*sqliteDriver) emptyTable() bool              { return false }
