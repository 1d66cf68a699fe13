package sqlmapper_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlmapper"
	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

func openSQLite(t *testing.T, opts ...sqlmapper.ConnOption) *sqlmapper.Conn {
	t.Helper()
	conn, err := sqlmapper.Open(context.Background(), &sqlmapper.Config{Engine: dialect.SQLite}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

var books = []map[string]any{
	{"name": "ubuntu", "value": 16},
	{"name": "mint", "value": 18},
	{"name": "debian", "value": 9},
	{"name": "mint", "value": 8},
	{"name": "macos", "value": 0},
	{"name": "debian", "value": 10},
	{"name": "ubuntu", "value": 18},
	{"name": "ubuntu", "value": 14},
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	book, ref := conn.Table("book"), conn.Table("ref")

	t.Run("Schema", func(t *testing.T) {
		require.NoError(t, book.Drop(ctx))
		require.NoError(t, ref.Drop(ctx))
		for range 2 {
			require.NoError(t, book.AddColumn(ctx, "id", "int", sqlmapper.Primary(), sqlmapper.AutoIncrement(), sqlmapper.ExistOK()))
			require.NoError(t, book.AddColumn(ctx, "name", "text", sqlmapper.ExistOK()))
			require.NoError(t, book.AddColumn(ctx, "value", "int", sqlmapper.ExistOK()))
		}
		cols, err := book.Describe(ctx)
		require.NoError(t, err)
		require.Len(t, cols, 3)
		assert.True(t, cols[0].Primary)
		assert.True(t, cols[0].AutoIncrement)
		assert.False(t, cols[0].Nullable)
		assert.True(t, cols[1].Nullable)

		col, err := book.Column(ctx, "value")
		require.NoError(t, err)
		require.NotNil(t, col)
		assert.Equal(t, "INTEGER", col.Type)

		n, err := book.Count(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Insert", func(t *testing.T) {
		for i, data := range books {
			id, err := book.Insert(ctx, data)
			require.NoError(t, err)
			assert.Equal(t, int64(i+1), id)
		}
		require.NoError(t, conn.Commit())

		n, err := book.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(8), n)
		n, err = book.Count(ctx, sqlmapper.Raw("value > ?", 10))
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
	})

	t.Run("Hooks", func(t *testing.T) {
		var status int
		conn.OnCommit(func() { status = 1 })
		conn.OnRollback(func() { status = 2 })
		n, err := book.Update(ctx, map[string]any{"name": "mint", "value": 8}, map[string]any{"name": "redhat"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, conn.Commit())
		assert.Equal(t, 1, status)

		conn.OnCommit(func() { status = 3 })
		conn.OnRollback(func() { status = 4 })
		_, err = book.Update(ctx, map[string]any{"name": "redhat"}, map[string]any{"value": 25})
		require.NoError(t, err)
		require.NoError(t, conn.Rollback())
		assert.Equal(t, 4, status)

		require.NoError(t, conn.Commit())
		assert.Equal(t, 4, status, "hooks run once")
	})

	t.Run("Find", func(t *testing.T) {
		rows, err := all(book.Find(ctx, map[string]any{"name": "redhat"}))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.EqualValues(t, 8, rows[0].Get("value"))
		assert.Equal(t, []string{"id", "name", "value"}, rows[0].Keys())

		row, err := book.FindOne(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "debian", row.Get("name"))
		assert.EqualValues(t, 9, row.Get("value"))

		_, err = book.FindOne(ctx, 999)
		require.True(t, sqlmapper.IsNotFound(err))
		require.ErrorIs(t, err, sqlmapper.ErrNotFound)

		rows, err = all(book.Find(ctx, nil, sqlmapper.OrderBy("-value", "id"), sqlmapper.Limit(2), sqlmapper.Offset(1)))
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.EqualValues(t, 7, rows[0].Get("id"))
		assert.EqualValues(t, 1, rows[1].Get("id"))

		rows, err = all(book.Find(ctx, nil, sqlmapper.Offset(7), sqlmapper.ForUpdate()))
		require.NoError(t, err)
		require.Len(t, rows, 1)
	})

	t.Run("Delete", func(t *testing.T) {
		n, err := book.Delete(ctx, map[string]any{"name": "macos"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = book.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
		require.NoError(t, conn.Commit())
	})

	t.Run("GroupBy", func(t *testing.T) {
		rows, err := all(book.Find(ctx, nil,
			sqlmapper.Columns("name", "COUNT(value)"),
			sqlmapper.GroupBy("name"),
			sqlmapper.OrderBy("-count_value"),
		))
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "ubuntu", rows[0].Get("name"))
		assert.EqualValues(t, 3, rows[0].Get("count_value"))
		assert.Equal(t, "debian", rows[1].Get("name"))
		assert.EqualValues(t, 2, rows[1].Get("count_value"))

		rows, err = all(book.Find(ctx, nil, sqlmapper.Columns("COUNT(*)")))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.EqualValues(t, 7, rows[0].Get("count"))
	})

	t.Run("Index", func(t *testing.T) {
		require.NoError(t, book.AddColumn(ctx, "ext", "int"))
		cols, err := book.Describe(ctx)
		require.NoError(t, err)
		assert.Len(t, cols, 4)

		ok, err := book.HasIndex(ctx, "book_ext")
		require.NoError(t, err)
		assert.False(t, ok)
		for range 2 {
			require.NoError(t, book.CreateIndex(ctx, "book_ext", []string{"ext"}, sqlmapper.Unique(), sqlmapper.ExistOK()))
		}
		ok, err = book.HasIndex(ctx, "book_ext")
		require.NoError(t, err)
		assert.True(t, ok)

		tbl, err := book.Inspect(ctx)
		require.NoError(t, err)
		idx := tbl.Index("book_ext")
		require.NotNil(t, idx)
		assert.True(t, idx.Unique)
		assert.Equal(t, []string{"ext"}, idx.Columns)
		assert.False(t, schema.ValidateTable(tbl).HasErrors())

		for id, ext := range map[int]int{1: 10, 2: 20, 3: 30} {
			_, err := book.Update(ctx, id, map[string]any{"ext": ext})
			require.NoError(t, err)
		}
		require.NoError(t, conn.Commit())

		_, err = book.Update(ctx, 4, map[string]any{"ext": 10})
		require.Error(t, err)
		assert.True(t, sqlmapper.IsUniqueConstraintError(err))
		assert.True(t, sqlmapper.IsConstraintError(err))
		require.NoError(t, conn.Rollback())
	})

	t.Run("Join", func(t *testing.T) {
		require.NoError(t, ref.AddColumn(ctx, "id", "int", sqlmapper.Primary(), sqlmapper.AutoIncrement()))
		require.NoError(t, ref.AddColumn(ctx, "book_id", "int"))
		for _, id := range []int{1, 2, 3, 5, 8} {
			_, err := ref.Insert(ctx, sqlmapper.NewRow("book_id", id))
			require.NoError(t, err)
		}

		rows, err := all(ref.Find(ctx, nil, sqlmapper.Join("book.id=book_id"), sqlmapper.OrderBy("ref.id")))
		require.NoError(t, err)
		require.Len(t, rows, 4)
		joined, ok := rows[1].Joined("book")
		require.True(t, ok)
		assert.EqualValues(t, 18, joined.Get("value"))
		joined, ok = rows[2].Joined("book")
		require.True(t, ok)
		assert.EqualValues(t, 9, joined.Get("value"))

		rows, err = all(ref.Find(ctx, nil, sqlmapper.LeftJoin("book.id=book_id"), sqlmapper.OrderBy("ref.id")))
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.True(t, sqlmapper.IsNoValue(rows[3].Get("book")))
		_, ok = rows[3].Joined("book")
		assert.False(t, ok)
		assert.Nil(t, rows[3].Map()["book"])

		row, err := ref.FindOne(ctx, 2, sqlmapper.Join("book.id=book_id"))
		require.NoError(t, err)
		assert.EqualValues(t, 2, row.Get("book_id"))

		// Both tables have an id column.
		rows, err = all(ref.Find(ctx, map[string]any{"id": 2}, sqlmapper.Join("book.id=book_id")))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.EqualValues(t, 2, rows[0].Get("book_id"))
		joined, ok = rows[0].Joined("book")
		require.True(t, ok)
		assert.EqualValues(t, 18, joined.Get("value"))

		row, err = ref.FindOne(ctx, sqlmapper.NewRow("book_id", 3, "id", 3), sqlmapper.LeftJoin("book.id=book_id"))
		require.NoError(t, err)
		joined, ok = row.Joined("book")
		require.True(t, ok)
		assert.Equal(t, "debian", joined.Get("name"))

		tables, err := conn.Tables(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"book", "ref"}, tables)
		require.NoError(t, conn.Commit())
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := book.UpdateOne(ctx, 1, map[string]any{"value": 1})
		require.True(t, sqlmapper.IsUnsupportedOperation(err))
		err = conn.Table("empty").Create(ctx)
		require.True(t, sqlmapper.IsUnsupportedOperation(err))
		err = book.AddColumn(ctx, "shape", "geometry")
		require.True(t, sqlmapper.IsUnsupportedType(err))
		err = book.AddColumn(ctx, "rank", "int", sqlmapper.NotNull(), sqlmapper.Default(0))
		require.True(t, sqlmapper.IsInvalidColumnSpec(err))
	})
}

func TestSQLiteCursor(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	book := conn.Table("book")
	require.NoError(t, conn.Table("book").Create(ctx,
		sqlmapper.Col("id", "int", sqlmapper.Primary(), sqlmapper.AutoIncrement()),
		sqlmapper.Col("name", "text", sqlmapper.Default("n/a")),
	))
	for range 3 {
		_, err := book.Insert(ctx, nil)
		require.NoError(t, err)
	}

	it, err := book.Find(ctx, nil)
	require.NoError(t, err)
	require.True(t, it.Next())
	assert.Equal(t, "n/a", it.Row().Get("name"))

	// An abandoned cursor does not block the next statement or the commit.
	n, err := book.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.False(t, it.Next())
	require.NoError(t, it.Err())
	require.NoError(t, conn.Commit())
}

func TestSQLiteDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	conn, err := sqlmapper.Open(context.Background(), &sqlmapper.Config{Engine: dialect.SQLite, Debug: true}, sqlmapper.WithLogger(logger))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Table("book").AddColumn(context.Background(), "id", "int", sqlmapper.Primary()))
	require.NoError(t, conn.Commit())
	assert.Contains(t, buf.String(), "CREATE TABLE `book` (`id` INTEGER PRIMARY KEY NOT NULL)")
	assert.Contains(t, buf.String(), "msg=\"column added\"")
	assert.Contains(t, buf.String(), "msg=commit")
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	cfg := &sqlmapper.Config{Engine: dialect.SQLite, DB: filepath.Join(t.TempDir(), "app.db")}
	count := func(t *testing.T) int64 {
		var n int64
		require.NoError(t, sqlmapper.Session(ctx, cfg, func(ctx context.Context, conn *sqlmapper.Conn) (err error) {
			n, err = conn.Table("book").Count(ctx, nil)
			return err
		}, sqlmapper.NoCommit()))
		return n
	}
	insert := func(ctx context.Context, conn *sqlmapper.Conn) error {
		_, err := conn.Table("book").Insert(ctx, map[string]any{"name": "ubuntu"})
		return err
	}

	err := sqlmapper.Session(ctx, cfg, func(ctx context.Context, conn *sqlmapper.Conn) error {
		if err := conn.Table("book").AddColumn(ctx, "id", "int", sqlmapper.Primary(), sqlmapper.AutoIncrement()); err != nil {
			return err
		}
		if err := conn.Table("book").AddColumn(ctx, "name", "text"); err != nil {
			return err
		}
		return insert(ctx, conn)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t))

	t.Run("NoCommit", func(t *testing.T) {
		err := sqlmapper.Session(ctx, cfg, func(ctx context.Context, conn *sqlmapper.Conn) error {
			if err := insert(ctx, conn); err != nil {
				return err
			}
			n, err := conn.Table("book").Count(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)
			return nil
		}, sqlmapper.NoCommit())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count(t))
	})

	t.Run("Error", func(t *testing.T) {
		var rolledBack bool
		want := errors.New("boom")
		err := sqlmapper.Session(ctx, cfg, func(ctx context.Context, conn *sqlmapper.Conn) error {
			conn.OnRollback(func() { rolledBack = true })
			if err := insert(ctx, conn); err != nil {
				return err
			}
			return want
		})
		require.ErrorIs(t, err, want)
		assert.True(t, rolledBack)
		assert.Equal(t, int64(1), count(t))
	})

	t.Run("Panic", func(t *testing.T) {
		require.PanicsWithValue(t, "boom", func() {
			_ = sqlmapper.Session(ctx, cfg, func(ctx context.Context, conn *sqlmapper.Conn) error {
				require.NoError(t, insert(ctx, conn))
				panic("boom")
			})
		})
		assert.Equal(t, int64(1), count(t))
	})

	t.Run("WithTx", func(t *testing.T) {
		conn, err := sqlmapper.Open(ctx, cfg)
		require.NoError(t, err)
		defer conn.Close()
		var committed bool
		err = sqlmapper.WithTx(ctx, conn, func(ctx context.Context, conn *sqlmapper.Conn) error {
			conn.OnCommit(func() { committed = true })
			return insert(ctx, conn)
		})
		require.NoError(t, err)
		assert.True(t, committed)
		assert.Equal(t, int64(2), count(t))
	})

	t.Run("OpenError", func(t *testing.T) {
		err := sqlmapper.Session(ctx, &sqlmapper.Config{Engine: "oracle"}, func(context.Context, *sqlmapper.Conn) error {
			t.Fatal("unexpected call")
			return nil
		})
		require.Error(t, err)
	})
}

func all(it *sqlmapper.RowIter, err error) ([]*sqlmapper.Row, error) {
	if err != nil {
		return nil, err
	}
	return it.All()
}
