package sqlmapper

// Option configures AddColumn, Create and CreateIndex.
type Option func(*columnSpec)

// NotNull declares the column NOT NULL.
func NotNull() Option {
	return func(c *columnSpec) { c.notNull = true }
}

// Default sets the column default. It cannot be combined with NotNull or
// Primary. Default(nil) declares an explicit NULL default.
func Default(v any) Option {
	return func(c *columnSpec) { c.def = v }
}

// Primary makes the column the primary key. It implies NotNull.
func Primary() Option {
	return func(c *columnSpec) { c.primary = true }
}

// AutoIncrement lets the backend generate the column's values. The column
// must also be Primary.
func AutoIncrement() Option {
	return func(c *columnSpec) { c.autoIncrement = true }
}

// Unique adds a UNIQUE constraint to a column, or makes an index unique.
func Unique() Option {
	return func(c *columnSpec) { c.unique = true }
}

// ExistOK turns AddColumn and CreateIndex into no-ops when the column or
// index already exists.
func ExistOK() Option {
	return func(c *columnSpec) { c.existOK = true }
}

// columnSpec is a requested column, before dialect type mapping.
type columnSpec struct {
	name          string
	typ           string
	notNull       bool
	def           any
	primary       bool
	autoIncrement bool
	unique        bool
	existOK       bool
}

func newColumnSpec(name, typ string, opts []Option) *columnSpec {
	c := &columnSpec{name: name, typ: typ, def: NoValue}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// validate checks the options for contradictions. Primary implies NotNull,
// so a default on a primary key is rejected as well.
func (c *columnSpec) validate(table string) error {
	invalid := func(reason string) error {
		return &InvalidColumnSpecError{Table: table, Column: c.name, Reason: reason}
	}
	hasDefault := !IsNoValue(c.def)
	switch {
	case c.name == "":
		return invalid("empty column name")
	case hasDefault && c.primary:
		return invalid("default is incompatible with primary")
	case hasDefault && c.notNull:
		return invalid("default is incompatible with not null")
	case c.autoIncrement && !c.primary:
		return invalid("auto increment requires primary")
	}
	if c.primary {
		c.notNull = true
	}
	return nil
}

// ColumnDef is a column definition for Create.
type ColumnDef struct {
	Name    string
	Type    string
	Options []Option
}

// Col returns a column definition for Create.
//
//	book.Create(ctx,
//	    sqlmapper.Col("id", "int", sqlmapper.Primary(), sqlmapper.AutoIncrement()),
//	    sqlmapper.Col("name", "text"),
//	)
func Col(name, typ string, opts ...Option) ColumnDef {
	return ColumnDef{Name: name, Type: typ, Options: opts}
}

// FindOption configures Find and FindOne.
type FindOption func(*findOptions)

type findOptions struct {
	columns   []string
	limit     int
	offset    int
	join      string
	leftJoin  bool
	groupBy   []string
	orderBy   []string
	forUpdate bool
}

// Columns selects the given columns instead of all of them. Aggregates of the
// form FUNC(col) are selected under the alias func_col, e.g. COUNT(value) as
// count_value, and FUNC(*) under the alias func.
func Columns(columns ...string) FindOption {
	return func(o *findOptions) { o.columns = append(o.columns, columns...) }
}

// Limit limits the number of rows returned.
func Limit(n int) FindOption {
	return func(o *findOptions) { o.limit = n }
}

// Offset skips the first n rows.
func Offset(n int) FindOption {
	return func(o *findOptions) { o.offset = n }
}

// Join inner-joins another table. on has the form "other.col=localCol";
// the joined columns are nested in each row under the other table's name.
func Join(on string) FindOption {
	return func(o *findOptions) { o.join, o.leftJoin = on, false }
}

// LeftJoin left-joins another table, like Join. Rows without a match hold
// NoValue under the other table's name.
func LeftJoin(on string) FindOption {
	return func(o *findOptions) { o.join, o.leftJoin = on, true }
}

// GroupBy groups the results by the given columns.
func GroupBy(columns ...string) FindOption {
	return func(o *findOptions) { o.groupBy = append(o.groupBy, columns...) }
}

// OrderBy orders the results. A leading "-" sorts the column descending.
func OrderBy(columns ...string) FindOption {
	return func(o *findOptions) { o.orderBy = append(o.orderBy, columns...) }
}

// ForUpdate locks the selected rows until the end of the transaction. SQLite
// ignores it, since its writers lock the whole database.
func ForUpdate() FindOption {
	return func(o *findOptions) { o.forUpdate = true }
}
