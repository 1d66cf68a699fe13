package sqlmapper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

// Table is a handle to one table of a connection. It holds no data; every
// operation runs on the connection's session.
type Table struct {
	conn *Conn
	name string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Describe returns the columns of the table in backend order, or no columns
// when the table does not exist. The result is a copy the caller may modify.
func (t *Table) Describe(ctx context.Context) ([]*schema.Column, error) {
	return t.conn.cache.Columns(ctx, t.name)
}

// Column returns the named column, or nil when it does not exist.
func (t *Table) Column(ctx context.Context, name string) (*schema.Column, error) {
	return t.conn.cache.Column(ctx, t.name, name)
}

// Exists reports whether the table exists.
func (t *Table) Exists(ctx context.Context) (bool, error) {
	return t.conn.cache.Exists(ctx, t.name)
}

// Indexes returns the indexes of the table. Indexes are not cached.
func (t *Table) Indexes(ctx context.Context) ([]*schema.Index, error) {
	if err := t.conn.ready(); err != nil {
		return nil, err
	}
	t.conn.closeCursor()
	return t.conn.tables.indexes(ctx, t.conn.drv, t.name)
}

// HasIndex reports whether the table has an index with the given name.
func (t *Table) HasIndex(ctx context.Context, name string) (bool, error) {
	idxs, err := t.Indexes(ctx)
	if err != nil {
		return false, err
	}
	for _, idx := range idxs {
		if idx.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Inspect returns the columns and indexes of the table.
func (t *Table) Inspect(ctx context.Context) (*schema.Table, error) {
	cols, err := t.Describe(ctx)
	if err != nil {
		return nil, err
	}
	idxs, err := t.Indexes(ctx)
	if err != nil {
		return nil, err
	}
	return schema.NewTable(t.name, cols, idxs...), nil
}

// columnType validates c and maps its type for the dialect.
func (t *Table) columnType(c *columnSpec) (string, error) {
	if err := c.validate(t.name); err != nil {
		return "", err
	}
	typ, err := t.conn.tables.columnType(c)
	var spec *InvalidColumnSpecError
	if errors.As(err, &spec) && spec.Table == "" {
		spec.Table = t.name
	}
	return typ, err
}

// AddColumn adds a column, creating the table with it when the table does
// not exist yet. With ExistOK, adding a column that already exists does
// nothing, so schema setup can be run repeatedly.
//
//	book.AddColumn(ctx, "id", "int", sqlmapper.Primary(), sqlmapper.AutoIncrement(), sqlmapper.ExistOK())
//	book.AddColumn(ctx, "name", "text", sqlmapper.ExistOK())
func (t *Table) AddColumn(ctx context.Context, name, typ string, opts ...Option) error {
	c := newColumnSpec(name, typ, opts)
	native, err := t.columnType(c)
	if err != nil {
		return err
	}
	cols, err := t.conn.cache.Columns(ctx, t.name)
	if err != nil {
		return err
	}
	if c.existOK && (&schema.Table{Columns: cols}).Column(name) != nil {
		return nil
	}
	b := t.conn.builder()
	if len(cols) == 0 {
		t.conn.tables.createTable(b, t.name, []*columnSpec{c}, []string{native})
	} else {
		t.conn.tables.addColumn(b, t.name, c, native)
	}
	if _, err := t.conn.exec(ctx, b); err != nil {
		return err
	}
	t.conn.logger.DebugContext(ctx, "column added", "table", t.name, "column", name, "type", native)
	t.conn.cache.Invalidate(t.name)
	return nil
}

// Create creates the table with the given columns. Only PostgreSQL accepts
// a table without columns.
func (t *Table) Create(ctx context.Context, defs ...ColumnDef) error {
	if len(defs) == 0 && !t.conn.tables.emptyTable() {
		return &UnsupportedOperationError{Dialect: t.conn.Dialect(), Op: "Create without columns"}
	}
	cols := make([]*columnSpec, len(defs))
	types := make([]string, len(defs))
	for i, def := range defs {
		cols[i] = newColumnSpec(def.Name, def.Type, def.Options)
		typ, err := t.columnType(cols[i])
		if err != nil {
			return err
		}
		types[i] = typ
	}
	b := t.conn.builder()
	t.conn.tables.createTable(b, t.name, cols, types)
	if _, err := t.conn.exec(ctx, b); err != nil {
		return err
	}
	t.conn.logger.DebugContext(ctx, "table created", "table", t.name, "columns", len(defs))
	t.conn.cache.Invalidate(t.name)
	return nil
}

// Drop drops the table if it exists.
func (t *Table) Drop(ctx context.Context) error {
	b := t.conn.builder().WriteString("DROP TABLE IF EXISTS ").Ident(t.name)
	if _, err := t.conn.exec(ctx, b); err != nil {
		return err
	}
	t.conn.logger.DebugContext(ctx, "table dropped", "table", t.name)
	t.conn.cache.Invalidate(t.name)
	return nil
}

// CreateIndex creates an index on the given columns. Unique makes it a
// unique index; with ExistOK an existing index of the same name is left as is.
func (t *Table) CreateIndex(ctx context.Context, name string, columns []string, opts ...Option) error {
	c := newColumnSpec(name, "", opts)
	if len(columns) == 0 {
		return fmt.Errorf("sqlmapper: index %q has no columns", name)
	}
	if c.existOK {
		exists, err := t.HasIndex(ctx, name)
		if err != nil || exists {
			return err
		}
	}
	b := t.conn.builder().WriteString("CREATE ")
	if c.unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ").Ident(name).WriteString(" ON ").Ident(t.name).
		WriteString(" (").IdentComma(columns...).WriteByte(')')
	if _, err := t.conn.exec(ctx, b); err != nil {
		return err
	}
	t.conn.logger.DebugContext(ctx, "index created", "table", t.name, "index", name, "unique", c.unique)
	return nil
}

// filter returns the filter compiler of the table.
func (t *Table) filter(ctx context.Context, qualify bool) *filterCompiler {
	return &filterCompiler{
		table:   t.name,
		qualify: qualify,
		lookup: func() ([]*schema.Column, error) {
			return t.conn.cache.PrimaryKey(ctx, t.name)
		},
	}
}

// Insert inserts one row and returns its generated id, or 0 when the
// backend does not report one. data is a map[string]any or a *Row; an empty
// row inserts the column defaults.
func (t *Table) Insert(ctx context.Context, data any) (int64, error) {
	keys, values, err := columnsValues(data)
	if err != nil {
		return 0, err
	}
	var returning string
	if t.conn.tables.returning() {
		pk, err := t.conn.cache.PrimaryKey(ctx, t.name)
		if err != nil {
			return 0, err
		}
		if len(pk) == 1 && pk[0].AutoIncrement {
			returning = pk[0].Name
		}
	}
	b := t.conn.builder().WriteString("INSERT INTO ").Ident(t.name)
	if len(keys) == 0 {
		t.conn.tables.insertDefaults(b)
	} else {
		b.WriteString(" (").IdentComma(keys...).WriteString(") VALUES (").Args(values...).WriteByte(')')
	}
	if returning != "" {
		b.WriteString(" RETURNING ").Ident(returning)
		return t.insertReturning(ctx, b)
	}
	res, err := t.conn.exec(ctx, b)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, &InsertFailedError{Table: t.name, Affected: n}
	}
	id, err := res.LastInsertId()
	if err != nil {
		// Not every driver reports inserted ids.
		return 0, nil
	}
	return id, nil
}

func (t *Table) insertReturning(ctx context.Context, b *sql.Builder) (int64, error) {
	rows, err := t.conn.query(ctx, b)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var (
		id int64
		n  int64
	)
	for rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if n != 1 {
		return 0, &InsertFailedError{Table: t.name, Affected: n}
	}
	return id, nil
}

// Update sets the columns of data on every row matching filter and returns
// the number of affected rows. A nil filter updates every row.
func (t *Table) Update(ctx context.Context, filter, data any) (int64, error) {
	return t.update(ctx, filter, data, false)
}

// UpdateOne is like Update but changes at most one row. Only MySQL supports it.
func (t *Table) UpdateOne(ctx context.Context, filter, data any) (int64, error) {
	if !t.conn.tables.updateLimit() {
		return 0, &UnsupportedOperationError{Dialect: t.conn.Dialect(), Op: "UpdateOne"}
	}
	return t.update(ctx, filter, data, true)
}

func (t *Table) update(ctx context.Context, filter, data any, one bool) (int64, error) {
	b := t.conn.builder().WriteString("UPDATE ").Ident(t.name)
	if err := writeSet(b, data); err != nil {
		return 0, err
	}
	if err := t.filter(ctx, false).compile(b, filter); err != nil {
		return 0, err
	}
	if one {
		b.WriteString(" LIMIT 1")
	}
	return t.affected(ctx, b)
}

// Delete deletes every row matching filter and returns the number of
// deleted rows. A nil filter deletes every row.
func (t *Table) Delete(ctx context.Context, filter any) (int64, error) {
	b := t.conn.builder().WriteString("DELETE FROM ").Ident(t.name)
	if err := t.filter(ctx, false).compile(b, filter); err != nil {
		return 0, err
	}
	return t.affected(ctx, b)
}

func (t *Table) affected(ctx context.Context, b *sql.Builder) (int64, error) {
	res, err := t.conn.exec(ctx, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Count returns the number of rows matching filter.
func (t *Table) Count(ctx context.Context, filter any) (int64, error) {
	b := t.conn.builder().WriteString("SELECT COUNT(*) FROM ").Ident(t.name)
	if err := t.filter(ctx, false).compile(b, filter); err != nil {
		return 0, err
	}
	rows, err := t.conn.query(ctx, b)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// FindOne returns the first row matching filter, or a NotFoundError.
//
//	row, err := book.FindOne(ctx, 1)
func (t *Table) FindOne(ctx context.Context, filter any, opts ...FindOption) (*Row, error) {
	it, err := t.Find(ctx, filter, append(opts, Limit(1))...)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	if it.Next() {
		return it.Row(), nil
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, NewNotFoundError(t.name, filter)
}

// joinRe matches join specs of the form "other.col=localCol".
var joinRe = regexp.MustCompile(`^\s*(\w+)\.(\w+)\s*=\s*([\w.]+)\s*$`)

// aggregateRe matches aggregate columns such as COUNT(value) or COUNT(*).
var aggregateRe = regexp.MustCompile(`^\s*(\w+)\s*\(\s*(\*|[\w.]+)\s*\)\s*$`)

// joinSpec is a parsed Join or LeftJoin option.
type joinSpec struct {
	table  string
	column string
	local  string
	left   bool
}

func parseJoin(spec string, left bool) (*joinSpec, error) {
	m := joinRe.FindStringSubmatch(spec)
	if m == nil {
		return nil, fmt.Errorf("sqlmapper: invalid join %q, want \"other.column=local_column\"", spec)
	}
	return &joinSpec{table: m[1], column: m[2], local: m[3], left: left}, nil
}

// Find returns the rows matching filter. The rows are read lazily and the
// iterator must be closed, or drained, before the next statement.
//
//	it, err := book.Find(ctx, nil,
//	    sqlmapper.Columns("name", "COUNT(value)"),
//	    sqlmapper.GroupBy("name"),
//	    sqlmapper.OrderBy("-count_value"),
//	)
func (t *Table) Find(ctx context.Context, filter any, opts ...FindOption) (*RowIter, error) {
	o := &findOptions{}
	for _, opt := range opts {
		opt(o)
	}
	var (
		join   *joinSpec
		joined int
	)
	if o.join != "" {
		var err error
		if join, err = parseJoin(o.join, o.leftJoin); err != nil {
			return nil, err
		}
		cols, err := t.conn.cache.Columns(ctx, join.table)
		if err != nil {
			return nil, err
		}
		joined = len(cols)
	}
	b := t.conn.builder().WriteString("SELECT ")
	t.selectColumns(b, o.columns, join != nil)
	if join != nil {
		b.WriteString(", ").Ident(join.table + ".*")
	}
	b.WriteString(" FROM ").Ident(t.name)
	if join != nil {
		if join.left {
			b.WriteString(" LEFT JOIN ")
		} else {
			b.WriteString(" INNER JOIN ")
		}
		local := join.local
		if !strings.Contains(local, ".") {
			local = t.name + "." + local
		}
		b.Ident(join.table).WriteString(" ON ").Ident(join.table + "." + join.column).WriteString(" = ").Ident(local)
	}
	if err := t.filter(ctx, join != nil).compile(b, filter); err != nil {
		return nil, err
	}
	if len(o.groupBy) > 0 {
		b.WriteString(" GROUP BY ").IdentComma(o.groupBy...)
	}
	if len(o.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, col := range o.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			if name, ok := strings.CutPrefix(col, "-"); ok {
				b.Ident(name).WriteString(" DESC")
			} else {
				b.Ident(col)
			}
		}
	}
	switch {
	case o.limit > 0:
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(o.limit))
	case o.offset > 0:
		b.WriteString(t.conn.tables.limitAll())
	}
	if o.offset > 0 {
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(o.offset))
	}
	if o.forUpdate && t.conn.tables.forUpdate() {
		b.WriteString(" FOR UPDATE")
	}
	rows, err := t.conn.query(ctx, b)
	if err != nil {
		return nil, err
	}
	var joinKey string
	if join != nil {
		joinKey = join.table
	}
	s, err := newShaper(rows, joinKey, joined)
	if err != nil {
		rows.Close()
		return nil, err
	}
	return t.conn.iter(rows, s), nil
}

// selectColumns writes the select list. Plain columns are qualified with the
// table name when joining; aggregates are aliased func_col.
func (t *Table) selectColumns(b *sql.Builder, columns []string, qualify bool) {
	if len(columns) == 0 {
		if qualify {
			b.Ident(t.name + ".*")
		} else {
			b.WriteString("*")
		}
		return
	}
	ident := func(col string) string {
		if qualify && col != "*" && !strings.Contains(col, ".") {
			return t.name + "." + col
		}
		return col
	}
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		m := aggregateRe.FindStringSubmatch(col)
		if m == nil {
			b.Ident(ident(col))
			continue
		}
		fn, arg := strings.ToUpper(m[1]), m[2]
		alias := strings.ToLower(fn)
		if arg != "*" {
			alias += "_" + arg[strings.LastIndex(arg, ".")+1:]
		}
		b.WriteString(fn).WriteByte('(').Ident(ident(arg)).WriteString(") AS ").Ident(alias)
	}
}
