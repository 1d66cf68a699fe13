// Package sqlmapper is a small relational mapping layer for MySQL, PostgreSQL
// and SQLite. It evolves table schemas idempotently and reads and writes rows
// as ordered mappings, without hand-written SQL for common operations.
//
// # Connections and Tables
//
// A Conn owns one database session. Tables are reached through it by name:
//
//	conn, err := sqlmapper.Open(ctx, &sqlmapper.Config{Engine: "sqlite", DB: "app.db"})
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	book := conn.Table("book")
//	book.AddColumn(ctx, "id", "int", sqlmapper.Primary(), sqlmapper.AutoIncrement(), sqlmapper.ExistOK())
//	book.AddColumn(ctx, "name", "text", sqlmapper.ExistOK())
//	book.AddColumn(ctx, "value", "int", sqlmapper.ExistOK())
//
//	id, err := book.Insert(ctx, map[string]any{"name": "ubuntu", "value": 16})
//	row, err := book.FindOne(ctx, id)
//
// # Filters
//
// Operations that select rows take a filter: nil for every row, a
// map[string]any or *Row for equality on each key, a Clause built by Raw for
// a raw condition, or a scalar compared with the table's primary key:
//
//	book.Update(ctx, 1, map[string]any{"value": 18})
//	book.Count(ctx, sqlmapper.Raw("value > ?", 10))
//	book.Delete(ctx, map[string]any{"name": "macos"})
//
// # Transactions
//
// Statements run in the session's current transaction until Commit or
// Rollback. Hooks registered with OnCommit and OnRollback run once at the
// next boundary. Session and WithTx wrap a unit of work that commits on
// success and rolls back on error or panic.
package sqlmapper
