package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/syssam/sqlmapper"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// renderRows writes rows in the given format. Table output uses the keys
// of the first row as header.
func renderRows(w io.Writer, rows []*sqlmapper.Row, format string) error {
	switch format {
	case formatJSON:
		if rows == nil {
			rows = []*sqlmapper.Row{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	keys := rows[0].Keys()
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	header := make(table.Row, len(keys))
	for i, k := range keys {
		header[i] = k
	}
	t.AppendHeader(header)
	for _, r := range rows {
		row := make(table.Row, len(keys))
		for i, k := range keys {
			row[i] = formatValue(r.Get(k))
		}
		t.AppendRow(row)
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("%x", v)
	default:
		if sqlmapper.IsNoValue(v) {
			return "NULL"
		}
		return fmt.Sprintf("%v", v)
	}
}
