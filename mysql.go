package sqlmapper

import (
	"context"
	"strings"

	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

// mysqlDriver implements the table operations of MySQL and MariaDB. Column
// types are passed through to the server.
type mysqlDriver struct{}

func (*mysqlDriver) Dialect() string { return dialect.MySQL }

const mysqlColumnsQuery = "SELECT `COLUMN_NAME`, `COLUMN_TYPE`, `IS_NULLABLE`, `COLUMN_DEFAULT`, `COLUMN_KEY`, `EXTRA` " +
	"FROM `information_schema`.`COLUMNS` WHERE `TABLE_SCHEMA` = DATABASE() AND `TABLE_NAME` = ? ORDER BY `ORDINAL_POSITION`"

func (*mysqlDriver) columns(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Column, error) {
	rows, err := ex.Query(ctx, mysqlColumnsQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cols []*schema.Column
	for rows.Next() {
		var (
			name, typ, nullable, key, extra string
			def                             sql.NullString
		)
		if err := rows.Scan(&name, &typ, &nullable, &def, &key, &extra); err != nil {
			return nil, err
		}
		c := &schema.Column{
			Name:          name,
			Type:          typ,
			Nullable:      nullable == "YES",
			Default:       mysqlDefault(def, typ),
			Primary:       key == "PRI",
			AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
		}
		// MariaDB reports the string NULL for nullable columns without a default.
		if c.Nullable && c.Default == nil {
			c.Default = NoValue
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// mysqlDefault decodes COLUMN_DEFAULT. MySQL 8 reports string defaults
// unquoted, so only numeric columns have their default parsed as a number.
func mysqlDefault(def sql.NullString, typ string) any {
	v := strings.TrimSpace(def.String)
	if !def.Valid || mysqlNumeric(typ) || strings.EqualFold(v, "NULL") || strings.HasPrefix(v, "'") {
		return parseDefault(def)
	}
	return def.String
}

func mysqlNumeric(typ string) bool {
	base, _, _ := strings.Cut(strings.ToLower(typ), "(")
	base, _, _ = strings.Cut(base, " ")
	switch base {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint",
		"decimal", "numeric", "float", "double", "real", "bit", "bool", "boolean":
		return true
	}
	return false
}

const mysqlIndexesQuery = "SELECT `INDEX_NAME`, `COLUMN_NAME`, `NON_UNIQUE` FROM `information_schema`.`STATISTICS` " +
	"WHERE `TABLE_SCHEMA` = DATABASE() AND `TABLE_NAME` = ? ORDER BY `INDEX_NAME`, `SEQ_IN_INDEX`"

func (*mysqlDriver) indexes(ctx context.Context, ex dialect.ExecQuerier, table string) ([]*schema.Index, error) {
	rows, err := ex.Query(ctx, mysqlIndexesQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var irows []indexRow
	for rows.Next() {
		var (
			name      string
			column    sql.NullString
			nonUnique int64
		)
		if err := rows.Scan(&name, &column, &nonUnique); err != nil {
			return nil, err
		}
		irows = append(irows, indexRow{
			name:    name,
			column:  column.String,
			unique:  nonUnique == 0,
			primary: name == "PRIMARY",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupIndexes(irows), nil
}

func (*mysqlDriver) tables(ctx context.Context, ex dialect.ExecQuerier) ([]string, error) {
	return queryStrings(ctx, ex, "SELECT `TABLE_NAME` FROM `information_schema`.`TABLES` "+
		"WHERE `TABLE_SCHEMA` = DATABASE() AND `TABLE_TYPE` = 'BASE TABLE' ORDER BY `TABLE_NAME`")
}

func (*mysqlDriver) columnType(c *columnSpec) (string, error) {
	if _, _, _, err := parseType(dialect.MySQL, c.typ); err != nil {
		return "", err
	}
	return strings.TrimSpace(c.typ), nil
}

func (d *mysqlDriver) writeColumn(b *sql.Builder, c *columnSpec, typ string) {
	writeColumn(b, c, typ)
	if c.autoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	writeModifiers(b, c)
}

// createTable declares the primary key as a table constraint.
func (d *mysqlDriver) createTable(b *sql.Builder, table string, cols []*columnSpec, types []string) {
	b.WriteString("CREATE TABLE ").Ident(table).WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		d.writeColumn(b, c, types[i])
	}
	if pks := primaryKeys(cols); len(pks) > 0 {
		writePrimaryKey(b, pks)
	}
	b.WriteString(") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4")
}

func (d *mysqlDriver) addColumn(b *sql.Builder, table string, c *columnSpec, typ string) {
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" ADD COLUMN ")
	d.writeColumn(b, c, typ)
	if c.primary {
		b.WriteString(", ADD PRIMARY KEY (").Ident(c.name).WriteByte(')')
	}
}

func (*mysqlDriver) insertDefaults(b *sql.Builder) { b.WriteString(" () VALUES ()") }
func (*mysqlDriver) limitAll() string              { return " LIMIT 18446744073709551615" }
func (*mysqlDriver) returning() bool               { return false }
func (*mysqlDriver) updateLimit() bool             { return true }
func (*mysqlDriver) forUpdate() bool               { return true }
func (*mysqlDriver) emptyTable() bool              { return false }
