package schema

import (
	"context"
	"log/slog"
)

// Loader introspects the columns of a table. It returns an empty slice when
// the table does not exist.
type Loader func(ctx context.Context, table string) ([]*Column, error)

// Cache is a per-connection cache of table column descriptors. Entries are
// populated on first lookup and dropped by Invalidate or Reset. Descriptors
// are copied on the way in and on the way out, so callers never share state
// with the cache.
//
// A Cache is not safe for concurrent use, like the connection it belongs to.
type Cache struct {
	load   Loader
	tables map[string][]*Column
	logger *slog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheLogger sets the logger used for cache events.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache returns an empty cache backed by the given loader.
func NewCache(load Loader, opts ...CacheOption) *Cache {
	c := &Cache{
		load:   load,
		tables: make(map[string][]*Column),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Columns returns the columns of the table in backend order. Tables that do
// not exist yield an empty result, which is not cached.
func (c *Cache) Columns(ctx context.Context, table string) ([]*Column, error) {
	if cols, ok := c.tables[table]; ok {
		return CopyColumns(cols), nil
	}
	cols, err := c.load(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, nil
	}
	c.tables[table] = CopyColumns(cols)
	c.logger.DebugContext(ctx, "schema cached", "table", table, "columns", len(cols))
	return CopyColumns(cols), nil
}

// Column returns the named column of the table, or nil if it does not exist.
func (c *Cache) Column(ctx context.Context, table, name string) (*Column, error) {
	cols, err := c.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, col := range cols {
		if col.Name == name {
			return col, nil
		}
	}
	return nil, nil
}

// PrimaryKey returns the primary key columns of the table.
func (c *Cache) PrimaryKey(ctx context.Context, table string) ([]*Column, error) {
	cols, err := c.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	return PrimaryKey(cols), nil
}

// Exists reports whether the table has at least one column.
func (c *Cache) Exists(ctx context.Context, table string) (bool, error) {
	cols, err := c.Columns(ctx, table)
	return len(cols) > 0, err
}

// Cached reports whether the table is currently cached.
func (c *Cache) Cached(table string) bool {
	_, ok := c.tables[table]
	return ok
}

// Invalidate drops the cached entry of the table.
func (c *Cache) Invalidate(table string) {
	if _, ok := c.tables[table]; ok {
		delete(c.tables, table)
		c.logger.Debug("schema invalidated", "table", table)
	}
}

// Reset drops every cached entry.
func (c *Cache) Reset() {
	if len(c.tables) > 0 {
		c.logger.Debug("schema cache reset", "tables", len(c.tables))
	}
	clear(c.tables)
}
