package sqlmapper

import (
	"strconv"
	"strings"

	"github.com/syssam/sqlmapper/dialect/sql"
)

// shaper turns scanned rows into Rows. For joined queries the trailing
// joined columns are nested under joinKey.
type shaper struct {
	columns []string
	types   []string
	local   int
	joinKey string
}

func newShaper(rows *sql.Rows, joinKey string, joined int) (*shaper, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	s := &shaper{
		columns: make([]string, len(types)),
		types:   make([]string, len(types)),
		local:   len(types),
		joinKey: joinKey,
	}
	for i, ct := range types {
		s.columns[i] = ct.Name()
		s.types[i] = strings.ToUpper(ct.DatabaseTypeName())
	}
	if joinKey != "" && joined <= len(types) {
		s.local = len(types) - joined
	}
	return s, nil
}

func (s *shaper) scan(rows *sql.Rows) (*Row, error) {
	values := make([]any, len(s.columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return s.shape(values), nil
}

// shape builds a Row from one raw result tuple. When every joined column is
// NULL, which is how a left join reports a missing match, the nested key
// holds NoValue instead of a row of nils.
func (s *shaper) shape(values []any) *Row {
	row := NewRow()
	for i := 0; i < s.local; i++ {
		row.Set(s.columns[i], normalize(values[i], s.types[i]))
	}
	if s.joinKey == "" {
		return row
	}
	nested, matched := NewRow(), false
	for i := s.local; i < len(values); i++ {
		if values[i] != nil {
			matched = true
		}
		nested.Set(s.columns[i], normalize(values[i], s.types[i]))
	}
	if matched {
		row.Set(s.joinKey, nested)
	} else {
		row.Set(s.joinKey, NoValue)
	}
	return row
}

// normalize converts raw []byte values, which drivers return for text
// protocol results, to the Go type matching the column's database type.
func normalize(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	switch {
	case strings.Contains(dbType, "BLOB"), strings.Contains(dbType, "BINARY"), dbType == "BYTEA":
		return b
	case strings.Contains(dbType, "INT"):
		if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return n
		}
	case strings.Contains(dbType, "FLOAT"), strings.Contains(dbType, "DOUBLE"), dbType == "REAL":
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return f
		}
	}
	return string(b)
}

// RowIter is a lazy sequence of query results. It must be closed, or
// drained, before the next statement runs on the same connection; the
// connection closes an abandoned iterator when it issues the next statement.
//
//	it, err := book.Find(ctx, map[string]any{"name": "ubuntu"})
//	if err != nil {
//	    return err
//	}
//	defer it.Close()
//	for it.Next() {
//	    fmt.Println(it.Row().Get("value"))
//	}
//	return it.Err()
type RowIter struct {
	rows    *sql.Rows
	shaper  *shaper
	row     *Row
	err     error
	done    bool
	onClose func(*RowIter)
}

// Next advances to the next row. It returns false at the end of the results
// or on error, closing the iterator.
func (it *RowIter) Next() bool {
	if it.done {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		_ = it.Close()
		return false
	}
	row, err := it.shaper.scan(it.rows)
	if err != nil {
		it.err = err
		_ = it.Close()
		return false
	}
	it.row = row
	return true
}

// Row returns the current row.
func (it *RowIter) Row() *Row {
	return it.row
}

// Err returns the error, if any, that ended the iteration.
func (it *RowIter) Err() error {
	return it.err
}

// Close releases the underlying cursor. It is safe to call more than once.
func (it *RowIter) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	err := it.rows.Close()
	if it.onClose != nil {
		it.onClose(it)
	}
	return err
}

// All drains the iterator and returns every remaining row.
func (it *RowIter) All() ([]*Row, error) {
	defer it.Close()
	var rows []*Row
	for it.Next() {
		rows = append(rows, it.row)
	}
	return rows, it.Err()
}
