// Package schema holds the column, index and table descriptors produced by
// backend introspection, and the per-connection cache that stores them.
package schema

import (
	"slices"

	"github.com/syssam/sqlmapper/dialect/sql"
)

// Column describes a single table column as reported by the backend.
type Column struct {
	// Name is the column name.
	Name string `json:"name" yaml:"name"`
	// Type is the dialect-native declared type, e.g. "varchar(255)" or "INTEGER".
	Type string `json:"type" yaml:"type"`
	// Nullable reports whether the column accepts NULL.
	Nullable bool `json:"nullable" yaml:"nullable"`
	// Default is the declared default value, or sql.NoValue when the column
	// has none. A nil Default is an explicit NULL default.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`
	// Primary reports whether the column is part of the primary key.
	Primary bool `json:"primary" yaml:"primary"`
	// AutoIncrement reports whether the backend generates values for the column.
	AutoIncrement bool `json:"auto_increment" yaml:"auto_increment"`
}

// HasDefault reports whether a default value was declared for the column.
func (c *Column) HasDefault() bool {
	return !sql.IsNoValue(c.Default)
}

// Copy returns a deep copy of the column.
func (c *Column) Copy() *Column {
	cp := *c
	if b, ok := c.Default.([]byte); ok {
		cp.Default = slices.Clone(b)
	}
	return &cp
}

// Index describes a table index.
type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique" yaml:"unique"`
	// Primary marks the index backing the primary key.
	Primary bool `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// Copy returns a deep copy of the index.
func (i *Index) Copy() *Index {
	cp := *i
	cp.Columns = slices.Clone(i.Columns)
	return &cp
}

// Table is the introspected shape of a table.
type Table struct {
	Name       string    `json:"name" yaml:"name"`
	Columns    []*Column `json:"columns" yaml:"columns"`
	Indexes    []*Index  `json:"indexes,omitempty" yaml:"indexes,omitempty"`
	PrimaryKey []*Column `json:"-" yaml:"-"`
}

// NewTable returns a table with the given columns. The primary key is
// derived from the columns marked Primary.
func NewTable(name string, columns []*Column, indexes ...*Index) *Table {
	t := &Table{Name: name, Columns: columns, Indexes: indexes}
	t.PrimaryKey = PrimaryKey(columns)
	return t
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Index returns the index with the given name, or nil.
func (t *Table) Index(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// PrimaryKey returns the primary key columns in declaration order.
func PrimaryKey(columns []*Column) []*Column {
	var pk []*Column
	for _, c := range columns {
		if c.Primary {
			pk = append(pk, c)
		}
	}
	return pk
}

// CopyColumns deep-copies a column list.
func CopyColumns(columns []*Column) []*Column {
	cp := make([]*Column, len(columns))
	for i, c := range columns {
		cp[i] = c.Copy()
	}
	return cp
}
