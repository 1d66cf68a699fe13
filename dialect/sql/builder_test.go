package sql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlmapper/dialect"
)

func TestBuilderPlaceholders(t *testing.T) {
	tests := []struct {
		dialect   string
		wantQuery string
	}{
		{dialect.MySQL, "UPDATE `book` SET `value` = ? WHERE `id` = ?"},
		{dialect.SQLite, "UPDATE `book` SET `value` = ? WHERE `id` = ?"},
		{dialect.Postgres, `UPDATE "book" SET "value" = $1 WHERE "id" = $2`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			b := Dialect(tt.dialect)
			b.WriteString("UPDATE ").Ident("book").
				WriteString(" SET ").Ident("value").WriteString(" = ").Arg(18).
				WriteString(" WHERE ").Ident("id").WriteString(" = ").Arg(1)
			require.NoError(t, b.Err())
			query, args := b.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, []any{18, 1}, args)
		})
	}
}

func TestBuilderIdent(t *testing.T) {
	t.Run("qualified", func(t *testing.T) {
		b := Dialect(dialect.Postgres).IdentComma("ref.id", "book.*", "*")
		require.NoError(t, b.Err())
		assert.Equal(t, `"ref"."id", "book".*, *`, b.String())
	})

	t.Run("mysql_backticks", func(t *testing.T) {
		b := Dialect(dialect.MySQL).Ident("ref.book_id")
		assert.Equal(t, "`ref`.`book_id`", b.String())
	})

	t.Run("invalid", func(t *testing.T) {
		b := Dialect(dialect.SQLite).Ident("name; DROP TABLE book")
		require.Error(t, b.Err())
		assert.Contains(t, b.Err().Error(), "invalid identifier")
		assert.Empty(t, b.String())
	})

	t.Run("quote_escapes", func(t *testing.T) {
		assert.Equal(t, "`a``b`", Quote(dialect.MySQL, "a`b"))
		assert.Equal(t, `"a""b"`, Quote(dialect.Postgres, `a"b`))
	})
}

func TestBuilderRaw(t *testing.T) {
	t.Run("postgres_rebind", func(t *testing.T) {
		b := Dialect(dialect.Postgres)
		b.Ident("name").WriteString(" = ").Arg("ubuntu").WriteString(" AND ")
		b.Raw("value > ? AND note <> '?'", 10)
		require.NoError(t, b.Err())
		query, args := b.Query()
		assert.Equal(t, `"name" = $1 AND value > $2 AND note <> '?'`, query)
		assert.Equal(t, []any{"ubuntu", 10}, args)
	})

	t.Run("sqlite_passthrough", func(t *testing.T) {
		b := Dialect(dialect.SQLite).Raw("value > ? AND value < ?", 10, 20)
		require.NoError(t, b.Err())
		query, args := b.Query()
		assert.Equal(t, "value > ? AND value < ?", query)
		assert.Equal(t, []any{10, 20}, args)
	})

	t.Run("missing_argument", func(t *testing.T) {
		b := Dialect(dialect.MySQL).Raw("value > ? AND value < ?", 10)
		require.Error(t, b.Err())
	})

	t.Run("extra_argument", func(t *testing.T) {
		b := Dialect(dialect.MySQL).Raw("value > ?", 10, 20)
		require.Error(t, b.Err())
	})
}

func TestBuilderNoValue(t *testing.T) {
	b := Dialect(dialect.MySQL).Arg(NoValue)
	require.ErrorIs(t, b.Err(), ErrNoValue)
	_, args := b.Query()
	assert.Empty(t, args)

	// nil is a real value that binds as NULL.
	b = Dialect(dialect.MySQL).Arg(nil)
	require.NoError(t, b.Err())
	_, args = b.Query()
	assert.Equal(t, []any{nil}, args)

	assert.True(t, IsNoValue(NoValue))
	assert.False(t, IsNoValue(nil))
}

func TestLiteral(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		dialect string
		value   any
		want    string
	}{
		{"nil", dialect.SQLite, nil, "NULL"},
		{"int", dialect.MySQL, 42, "42"},
		{"int64", dialect.Postgres, int64(-7), "-7"},
		{"uint8", dialect.SQLite, uint8(3), "3"},
		{"float", dialect.MySQL, 1.5, "1.5"},
		{"bool_mysql", dialect.MySQL, true, "1"},
		{"bool_postgres", dialect.Postgres, false, "FALSE"},
		{"string_sqlite", dialect.SQLite, "it's", "'it''s'"},
		{"string_mysql", dialect.MySQL, `it's \n`, `'it''s \\n'`},
		{"string_postgres", dialect.Postgres, "it's", "'it''s'"},
		{"time", dialect.SQLite, ts, "'2024-05-01 10:30:00'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(tt.dialect, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no_value", func(t *testing.T) {
		_, err := Literal(dialect.SQLite, NoValue)
		require.ErrorIs(t, err, ErrNoValue)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Literal(dialect.SQLite, struct{}{})
		require.Error(t, err)
		b := Dialect(dialect.SQLite).Literal([]int{1})
		require.Error(t, b.Err())
	})
}
