package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTable(t *testing.T) {
	tests := []struct {
		name         string
		table        *Table
		wantErrors   int
		wantWarnings int
	}{
		{
			name:  "valid",
			table: NewTable("book", bookColumns(), &Index{Name: "idx_name", Columns: []string{"name"}}),
		},
		{
			name:         "no_primary_key",
			table:        NewTable("log", []*Column{{Name: "line", Type: "TEXT"}}),
			wantWarnings: 1,
		},
		{
			name: "duplicate_column",
			table: NewTable("book", []*Column{
				{Name: "id", Type: "INTEGER", Primary: true},
				{Name: "id", Type: "TEXT"},
			}),
			wantErrors: 1,
		},
		{
			name: "auto_increment_without_primary",
			table: NewTable("book", []*Column{
				{Name: "id", Type: "INTEGER", Primary: true},
				{Name: "seq", Type: "INTEGER", AutoIncrement: true},
			}),
			wantErrors: 1,
		},
		{
			name: "two_auto_increments",
			table: NewTable("book", []*Column{
				{Name: "a", Type: "INTEGER", Primary: true, AutoIncrement: true},
				{Name: "b", Type: "INTEGER", Primary: true, AutoIncrement: true},
			}),
			wantErrors: 1,
		},
		{
			name: "nullable_primary_key",
			table: NewTable("book", []*Column{
				{Name: "id", Type: "INTEGER", Primary: true, Nullable: true},
			}),
			wantWarnings: 1,
		},
		{
			name: "index_unknown_column",
			table: NewTable("book", bookColumns(),
				&Index{Name: "idx_author", Columns: []string{"author"}},
				&Index{Name: "idx_author", Columns: []string{"name"}},
			),
			wantErrors: 2,
		},
		{
			name:         "empty",
			table:        NewTable("book", nil),
			wantErrors:   1,
			wantWarnings: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateTable(tt.table)
			assert.Len(t, result.Errors, tt.wantErrors, result.String())
			assert.Len(t, result.Warnings, tt.wantWarnings, result.String())
		})
	}
}

func TestValidateSchema(t *testing.T) {
	result := ValidateSchema([]*Table{
		NewTable("book", bookColumns()),
		NewTable("book", bookColumns()),
		NewTable("log", []*Column{{Name: "line", Type: "TEXT"}}),
	})
	assert.True(t, result.HasErrors())
	assert.True(t, result.HasWarnings())
	assert.Contains(t, result.String(), "book: duplicate table name")
	assert.Contains(t, result.String(), "log: table has no primary key")

	assert.Equal(t, "No issues found", ValidateSchema([]*Table{NewTable("book", bookColumns())}).String())
}
