package sqlmapper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/syssam/sqlmapper/dialect"
	"github.com/syssam/sqlmapper/dialect/sql"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

// Hook is a one-shot callback run at the next commit or rollback.
type Hook func()

// Conn is a mapper connection. It owns one backend session, the schema cache
// of the tables it touched and the hooks registered since the last
// transaction boundary.
//
// Every statement runs in the session's current transaction, which begins
// with the first statement after a boundary. Commit and Rollback end it.
// A Conn is not safe for concurrent use.
type Conn struct {
	drv      dialect.Driver
	tables   tableDriver
	cache    *schema.Cache
	logger   *slog.Logger
	stats    *sql.StatsDriver
	cursor   *RowIter
	closed   bool
	commit   []Hook
	rollback []Hook
}

// ConnOption configures a Conn.
type ConnOption func(*connConfig)

type connConfig struct {
	logger    *slog.Logger
	debug     bool
	stats     []sql.StatsOption
	withStats bool
	slowLog   time.Duration
}

// WithLogger sets the logger of the connection. By default nothing is logged.
func WithLogger(logger *slog.Logger) ConnOption {
	return func(c *connConfig) { c.logger = logger }
}

// WithDebug logs every statement at debug level.
func WithDebug() ConnOption {
	return func(c *connConfig) { c.debug = true }
}

// WithStats collects statement statistics, readable with Conn.Stats.
func WithStats(opts ...sql.StatsOption) ConnOption {
	return func(c *connConfig) {
		c.withStats = true
		c.stats = append(c.stats, opts...)
	}
}

// WithSlowQueryThreshold collects statement statistics and logs statements
// slower than d at warn level.
func WithSlowQueryThreshold(d time.Duration) ConnOption {
	return func(c *connConfig) {
		c.withStats = true
		c.slowLog = d
	}
}

// NewConn returns a connection over the given session driver.
//
//	drv, err := sql.Open(dialect.SQLite, "sqlite", "file:app.db", nil)
//	if err != nil {
//	    return err
//	}
//	conn, err := sqlmapper.NewConn(drv)
func NewConn(drv dialect.Driver, opts ...ConnOption) (*Conn, error) {
	cfg := &connConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	tables, err := newTableDriver(drv.Dialect())
	if err != nil {
		return nil, err
	}
	c := &Conn{
		tables: tables,
		logger: cfg.logger,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.debug {
		drv = sql.NewDebugDriver(drv, c.logger)
	}
	if cfg.withStats {
		if cfg.slowLog > 0 {
			cfg.stats = append(cfg.stats, sql.WithSlowThreshold(cfg.slowLog), sql.WithSlowQueryLog(c.logger))
		}
		c.stats = sql.NewStatsDriver(drv, cfg.stats...)
		drv = c.stats
	}
	c.drv = drv
	c.cache = schema.NewCache(c.loadColumns, schema.WithCacheLogger(c.logger))
	return c, nil
}

// Dialect returns the dialect of the connection.
func (c *Conn) Dialect() string {
	return c.tables.Dialect()
}

// Table returns a handle to the named table. The table does not need to exist.
func (c *Conn) Table(name string) *Table {
	return &Table{conn: c, name: name}
}

// Tables lists the tables of the current database.
func (c *Conn) Tables(ctx context.Context) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.tables.tables(ctx, c.drv)
}

// Stats returns the statement statistics, if the connection collects them.
func (c *Conn) Stats() (sql.StatsSnapshot, bool) {
	if c.stats == nil {
		return sql.StatsSnapshot{}, false
	}
	return c.stats.QueryStats().Stats(), true
}

// OnCommit registers a hook to run once, after the next successful commit.
func (c *Conn) OnCommit(fn Hook) {
	c.commit = append(c.commit, fn)
}

// OnRollback registers a hook to run once, after the next rollback or
// failed commit.
func (c *Conn) OnRollback(fn Hook) {
	c.rollback = append(c.rollback, fn)
}

// Commit commits the current transaction and runs the commit hooks in
// registration order. When the commit fails the transaction is gone, so the
// rollback hooks run instead. Both hook lists are cleared either way.
func (c *Conn) Commit() error {
	if err := c.ready(); err != nil {
		return err
	}
	c.closeCursor()
	if err := c.drv.Commit(); err != nil {
		c.logger.Debug("commit failed", "error", err, "hooks", len(c.rollback))
		c.cache.Reset()
		c.fire(c.rollback)
		return err
	}
	c.logger.Debug("commit", "hooks", len(c.commit))
	c.fire(c.commit)
	return nil
}

// Rollback rolls back the current transaction and runs the rollback hooks in
// registration order. Both hook lists are cleared. The schema cache is reset
// since rolled back DDL may have changed what it holds.
func (c *Conn) Rollback() error {
	if err := c.ready(); err != nil {
		return err
	}
	c.closeCursor()
	err := c.drv.Rollback()
	c.logger.Debug("rollback", "hooks", len(c.rollback))
	c.cache.Reset()
	c.fire(c.rollback)
	return err
}

// fire runs hooks after clearing both lists, so hooks registered by a hook
// belong to the next transaction.
func (c *Conn) fire(hooks []Hook) {
	c.commit, c.rollback = nil, nil
	for _, fn := range hooks {
		fn()
	}
}

// Close rolls back any uncommitted work, running the rollback hooks, and
// releases the session.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	err := c.Rollback()
	c.closed = true
	return errors.Join(err, c.drv.Close())
}

func (c *Conn) ready() error {
	if c.closed {
		return ErrConnClosed
	}
	return nil
}

// closeCursor closes the iterator of the previous query, if still open.
func (c *Conn) closeCursor() {
	if c.cursor != nil {
		_ = c.cursor.Close()
		c.cursor = nil
	}
}

// exec runs a built statement.
func (c *Conn) exec(ctx context.Context, b *sql.Builder) (sql.Result, error) {
	if err := c.prepare(b); err != nil {
		return nil, err
	}
	query, args := b.Query()
	return c.drv.Exec(ctx, query, args...)
}

// query runs a built query. The caller must close the returned rows before
// the next statement.
func (c *Conn) query(ctx context.Context, b *sql.Builder) (*sql.Rows, error) {
	if err := c.prepare(b); err != nil {
		return nil, err
	}
	query, args := b.Query()
	return c.drv.Query(ctx, query, args...)
}

func (c *Conn) prepare(b *sql.Builder) error {
	if err := c.ready(); err != nil {
		return err
	}
	if err := b.Err(); err != nil {
		return err
	}
	c.closeCursor()
	return nil
}

// iter wraps rows in an iterator tracked as the connection's open cursor.
func (c *Conn) iter(rows *sql.Rows, s *shaper) *RowIter {
	it := &RowIter{rows: rows, shaper: s}
	it.onClose = func(it *RowIter) {
		if c.cursor == it {
			c.cursor = nil
		}
	}
	c.cursor = it
	return it
}

func (c *Conn) loadColumns(ctx context.Context, table string) ([]*schema.Column, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.closeCursor()
	return c.tables.columns(ctx, c.drv, table)
}

func (c *Conn) builder() *sql.Builder {
	return sql.Dialect(c.Dialect())
}
