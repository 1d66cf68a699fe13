package sqlmapper

import (
	"context"
	"errors"
	"fmt"
)

// SessionOption configures Session and WithTx.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	noCommit bool
	conn     []ConnOption
}

// NoCommit rolls back the unit of work even when it succeeds. It suits
// read-only sessions.
func NoCommit() SessionOption {
	return func(c *sessionConfig) { c.noCommit = true }
}

// WithConnOptions passes options to the connection opened by Session.
func WithConnOptions(opts ...ConnOption) SessionOption {
	return func(c *sessionConfig) { c.conn = append(c.conn, opts...) }
}

// Session opens a connection from cfg, runs fn and commits, unless fn
// returns an error or panics, in which case it rolls back. The connection is
// closed on every path.
//
//	err := sqlmapper.Session(ctx, cfg, func(ctx context.Context, conn *sqlmapper.Conn) error {
//	    _, err := conn.Table("book").Insert(ctx, map[string]any{"name": "ubuntu", "value": 16})
//	    return err
//	})
func Session(ctx context.Context, cfg *Config, fn func(context.Context, *Conn) error, opts ...SessionOption) (err error) {
	sc := &sessionConfig{}
	for _, opt := range opts {
		opt(sc)
	}
	conn, err := Open(ctx, cfg, sc.conn...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing connection: %w", cerr)
		}
	}()
	return WithTx(ctx, conn, fn, opts...)
}

// WithTx runs fn as one unit of work on conn.
// If fn returns an error, the transaction is rolled back.
// If fn panics, the transaction is rolled back and the panic is re-raised.
// Otherwise, the transaction is committed, unless NoCommit is given.
func WithTx(ctx context.Context, conn *Conn, fn func(context.Context, *Conn) error, opts ...SessionOption) error {
	sc := &sessionConfig{}
	for _, opt := range opts {
		opt(sc)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = conn.Rollback()
			panic(v)
		}
	}()
	if err := fn(ctx, conn); err != nil {
		if rerr := conn.Rollback(); rerr != nil {
			err = errors.Join(err, &RollbackError{Err: rerr})
		}
		return err
	}
	if sc.noCommit {
		return conn.Rollback()
	}
	if err := conn.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
