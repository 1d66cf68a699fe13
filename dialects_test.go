package sqlmapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

func TestColumnType(t *testing.T) {
	tests := []struct {
		dialect string
		typ     string
		opts    []Option
		want    string
		wantErr any
	}{
		{dialect: dialect.MySQL, typ: "int", want: "int"},
		{dialect: dialect.MySQL, typ: "varchar(255)", want: "varchar(255)"},
		{dialect: dialect.MySQL, typ: "bigint unsigned", want: "bigint unsigned"},
		{dialect: dialect.MySQL, typ: "int; DROP TABLE book", wantErr: &UnsupportedTypeError{}},
		{dialect: dialect.Postgres, typ: "int", want: "INTEGER"},
		{dialect: dialect.Postgres, typ: "double", want: "DOUBLE PRECISION"},
		{dialect: dialect.Postgres, typ: "datetime", want: "TIMESTAMP"},
		{dialect: dialect.Postgres, typ: "varchar( 32 )", want: "VARCHAR(32)"},
		{dialect: dialect.Postgres, typ: "numeric(10, 2)", want: "NUMERIC(10,2)"},
		{dialect: dialect.Postgres, typ: "text[]", want: "TEXT[]"},
		{dialect: dialect.Postgres, typ: "int", opts: []Option{Primary(), AutoIncrement()}, want: "SERIAL"},
		{dialect: dialect.Postgres, typ: "bigint", opts: []Option{Primary(), AutoIncrement()}, want: "BIGSERIAL"},
		{dialect: dialect.Postgres, typ: "text", opts: []Option{Primary(), AutoIncrement()}, wantErr: &InvalidColumnSpecError{}},
		{dialect: dialect.SQLite, typ: "int", want: "INTEGER"},
		{dialect: dialect.SQLite, typ: "varchar(32)", want: "TEXT"},
		{dialect: dialect.SQLite, typ: "double", want: "REAL"},
		{dialect: dialect.SQLite, typ: "datetime", want: "NUMERIC"},
		{dialect: dialect.SQLite, typ: "blob", want: "NONE"},
		{dialect: dialect.SQLite, typ: "geometry", wantErr: &UnsupportedTypeError{}},
		{dialect: dialect.SQLite, typ: "text", opts: []Option{Primary(), AutoIncrement()}, wantErr: &InvalidColumnSpecError{}},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.typ, func(t *testing.T) {
			drv, err := newTableDriver(tt.dialect)
			require.NoError(t, err)
			got, err := drv.columnType(newColumnSpec("c", tt.typ, tt.opts))
			switch want := tt.wantErr.(type) {
			case *UnsupportedTypeError:
				require.ErrorAs(t, err, &want)
				assert.Equal(t, tt.dialect, want.Dialect)
			case *InvalidColumnSpecError:
				require.ErrorAs(t, err, &want)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}

	_, err := newTableDriver("oracle")
	require.Error(t, err)
}

func TestColumnSpecValidate(t *testing.T) {
	tests := []struct {
		name   string
		spec   *columnSpec
		reason string
	}{
		{"empty_name", newColumnSpec("", "int", nil), "empty column name"},
		{"default_primary", newColumnSpec("id", "int", []Option{Primary(), Default(1)}), "default is incompatible with primary"},
		{"default_not_null", newColumnSpec("v", "int", []Option{NotNull(), Default(1)}), "default is incompatible with not null"},
		{"auto_increment", newColumnSpec("id", "int", []Option{AutoIncrement()}), "auto increment requires primary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.validate("book")
			var e *InvalidColumnSpecError
			require.ErrorAs(t, err, &e)
			assert.Equal(t, "book", e.Table)
			assert.Equal(t, tt.reason, e.Reason)
		})
	}

	c := newColumnSpec("id", "int", []Option{Primary()})
	require.NoError(t, c.validate("book"))
	assert.True(t, c.notNull, "primary implies not null")

	c = newColumnSpec("note", "text", []Option{Default(nil)})
	require.NoError(t, c.validate("book"))
	assert.Nil(t, c.def)
}

func TestCreateTable(t *testing.T) {
	cols := func() []*columnSpec {
		specs := []*columnSpec{
			newColumnSpec("id", "int", []Option{Primary(), AutoIncrement()}),
			newColumnSpec("name", "varchar(32)", []Option{Unique()}),
			newColumnSpec("value", "int", []Option{Default(0)}),
		}
		for _, c := range specs {
			require.NoError(t, c.validate("book"))
		}
		return specs
	}
	tests := []struct {
		dialect string
		want    string
	}{
		{
			dialect: dialect.MySQL,
			want: "CREATE TABLE `book` (`id` int NOT NULL AUTO_INCREMENT, `name` varchar(32) UNIQUE, `value` int DEFAULT 0, " +
				"PRIMARY KEY (`id`)) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		},
		{
			dialect: dialect.Postgres,
			want:    `CREATE TABLE "book" ("id" SERIAL NOT NULL PRIMARY KEY, "name" VARCHAR(32) UNIQUE, "value" INTEGER DEFAULT 0)`,
		},
		{
			dialect: dialect.SQLite,
			want:    "CREATE TABLE `book` (`id` INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, `name` TEXT UNIQUE, `value` INTEGER DEFAULT 0)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			drv, err := newTableDriver(tt.dialect)
			require.NoError(t, err)
			specs := cols()
			types := make([]string, len(specs))
			for i, c := range specs {
				types[i], err = drv.columnType(c)
				require.NoError(t, err)
			}
			b := sql.Dialect(tt.dialect)
			drv.createTable(b, "book", specs, types)
			require.NoError(t, b.Err())
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestCreateTableCompositeKey(t *testing.T) {
	specs := []*columnSpec{
		newColumnSpec("book_id", "int", []Option{Primary()}),
		newColumnSpec("user_id", "int", []Option{Primary()}),
	}
	for _, c := range specs {
		require.NoError(t, c.validate("ref"))
	}
	b := sql.Dialect(dialect.Postgres)
	(&postgresDriver{}).createTable(b, "ref", specs, []string{"INTEGER", "INTEGER"})
	assert.Equal(t, `CREATE TABLE "ref" ("book_id" INTEGER NOT NULL, "user_id" INTEGER NOT NULL, PRIMARY KEY ("book_id", "user_id"))`, b.String())

	b = sql.Dialect(dialect.Postgres)
	(&postgresDriver{}).createTable(b, "empty", nil, nil)
	assert.Equal(t, `CREATE TABLE "empty" ()`, b.String())
}

func TestAddColumn(t *testing.T) {
	pk := newColumnSpec("id", "int", []Option{Primary()})
	require.NoError(t, pk.validate("book"))

	b := sql.Dialect(dialect.MySQL)
	(&mysqlDriver{}).addColumn(b, "book", pk, "int")
	assert.Equal(t, "ALTER TABLE `book` ADD COLUMN `id` int NOT NULL, ADD PRIMARY KEY (`id`)", b.String())

	b = sql.Dialect(dialect.Postgres)
	(&postgresDriver{}).addColumn(b, "book", pk, "INTEGER")
	assert.Equal(t, `ALTER TABLE "book" ADD COLUMN "id" INTEGER NOT NULL PRIMARY KEY`, b.String())

	note := newColumnSpec("note", "text", []Option{Default("it's")})
	require.NoError(t, note.validate("book"))
	b = sql.Dialect(dialect.SQLite)
	(&sqliteDriver{}).addColumn(b, "book", note, "TEXT")
	assert.Equal(t, "ALTER TABLE `book` ADD COLUMN `note` TEXT DEFAULT 'it''s'", b.String())
}

func TestParseDefault(t *testing.T) {
	tests := []struct {
		in   sql.NullString
		want any
	}{
		{sql.NullString{}, NoValue},
		{sql.NullString{Valid: true, String: "NULL"}, nil},
		{sql.NullString{Valid: true, String: "0"}, int64(0)},
		{sql.NullString{Valid: true, String: "1.5"}, 1.5},
		{sql.NullString{Valid: true, String: "'it''s'"}, "it's"},
		{sql.NullString{Valid: true, String: "'draft'::character varying"}, "draft"},
		{sql.NullString{Valid: true, String: "CURRENT_TIMESTAMP"}, "CURRENT_TIMESTAMP"},
	}
	for _, tt := range tests {
		t.Run(tt.in.String, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDefault(tt.in))
		})
	}
}

func TestMySQLDefault(t *testing.T) {
	tests := []struct {
		name string
		def  sql.NullString
		typ  string
		want any
	}{
		{"varchar_digits", sql.NullString{Valid: true, String: "10"}, "varchar(32)", "10"},
		{"varchar_text", sql.NullString{Valid: true, String: "draft"}, "varchar(32)", "draft"},
		{"mariadb_quoted", sql.NullString{Valid: true, String: "'10'"}, "varchar(32)", "10"},
		{"mariadb_null", sql.NullString{Valid: true, String: "NULL"}, "text", nil},
		{"int", sql.NullString{Valid: true, String: "10"}, "int", int64(10)},
		{"unsigned", sql.NullString{Valid: true, String: "3"}, "int unsigned", int64(3)},
		{"decimal", sql.NullString{Valid: true, String: "1.50"}, "decimal(10,2)", 1.5},
		{"datetime", sql.NullString{Valid: true, String: "CURRENT_TIMESTAMP"}, "datetime", "CURRENT_TIMESTAMP"},
		{"none", sql.NullString{}, "varchar(32)", NoValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mysqlDefault(tt.def, tt.typ))
		})
	}
}

func TestGroupIndexes(t *testing.T) {
	idxs := groupIndexes([]indexRow{
		{name: "PRIMARY", column: "id", unique: true, primary: true},
		{name: "name_value", column: "name"},
		{name: "name_value", column: "value"},
		{name: "expr"},
	})
	assert.Equal(t, []*schema.Index{
		{Name: "PRIMARY", Columns: []string{"id"}, Unique: true, Primary: true},
		{Name: "name_value", Columns: []string{"name", "value"}},
		{Name: "expr"},
	}, idxs)
}
