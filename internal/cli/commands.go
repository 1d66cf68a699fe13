package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syssam/sqlmapper"
	"github.com/syssam/sqlmapper/dialect/sql/schema"
)

func newTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			return session(cmd, func(ctx context.Context, conn *sqlmapper.Conn) error {
				names, err := conn.Tables(ctx)
				if err != nil {
					return err
				}
				rows := make([]*sqlmapper.Row, len(names))
				for i, name := range names {
					rows[i] = sqlmapper.NewRow("table", name)
				}
				return renderRows(cmd.OutOrStdout(), rows, format)
			})
		},
	}
}

func newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns and indexes of a table",
		Long: `Show the columns and indexes of a table.

Schema problems, such as a missing primary key, are reported on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			return session(cmd, func(ctx context.Context, conn *sqlmapper.Conn) error {
				t, err := conn.Table(args[0]).Inspect(ctx)
				if err != nil {
					return err
				}
				if len(t.Columns) == 0 {
					return fmt.Errorf("table %q does not exist", args[0])
				}
				cols := make([]*sqlmapper.Row, len(t.Columns))
				for i, c := range t.Columns {
					cols[i] = sqlmapper.NewRow(
						"column", c.Name,
						"type", c.Type,
						"nullable", c.Nullable,
						"default", c.Default,
						"primary", c.Primary,
						"auto_increment", c.AutoIncrement,
					)
				}
				idxs := indexRows(t.Indexes)
				if format == formatTable {
					if err := renderRows(cmd.OutOrStdout(), cols, format); err != nil {
						return err
					}
					if err := renderRows(cmd.OutOrStdout(), idxs, format); err != nil {
						return err
					}
				} else {
					if err := renderRows(cmd.OutOrStdout(), []*sqlmapper.Row{
						sqlmapper.NewRow("table", t.Name, "columns", cols, "indexes", idxs),
					}, format); err != nil {
						return err
					}
				}
				if res := schema.ValidateTable(t); res.HasErrors() || res.HasWarnings() {
					fmt.Fprint(cmd.ErrOrStderr(), res.String())
				}
				return nil
			})
		},
	}
}

func newIndexesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes <table>",
		Short: "List the indexes of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			return session(cmd, func(ctx context.Context, conn *sqlmapper.Conn) error {
				idxs, err := conn.Table(args[0]).Indexes(ctx)
				if err != nil {
					return err
				}
				return renderRows(cmd.OutOrStdout(), indexRows(idxs), format)
			})
		},
	}
}

func indexRows(idxs []*schema.Index) []*sqlmapper.Row {
	rows := make([]*sqlmapper.Row, len(idxs))
	for i, idx := range idxs {
		rows[i] = sqlmapper.NewRow(
			"index", idx.Name,
			"columns", idx.Columns,
			"unique", idx.Unique,
			"primary", idx.Primary,
		)
	}
	return rows
}

// filterFlags are the flags that build a filter.
type filterFlags struct {
	where string
	args  []string
	eq    map[string]string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.where, "where", "w", "", `raw condition with "?" placeholders`)
	cmd.Flags().StringArrayVarP(&f.args, "arg", "a", nil, "placeholder value for --where (repeatable)")
	cmd.Flags().StringToStringVar(&f.eq, "eq", nil, "column=value equality conditions")
}

func (f *filterFlags) filter() (any, error) {
	switch {
	case f.where != "" && len(f.eq) > 0:
		return nil, fmt.Errorf("--where and --eq are mutually exclusive")
	case f.where != "":
		args := make([]any, len(f.args))
		for i, a := range f.args {
			args[i] = a
		}
		return sqlmapper.Raw(f.where, args...), nil
	case len(f.args) > 0:
		return nil, fmt.Errorf("--arg requires --where")
	case len(f.eq) > 0:
		m := make(map[string]any, len(f.eq))
		for k, v := range f.eq {
			m[k] = v
		}
		return m, nil
	default:
		return nil, nil
	}
}

func newCountCommand() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:   "count <table>",
		Short: "Count the rows of a table",
		Example: `  sqlmapper count book
  sqlmapper count book --where "value > ?" --arg 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			return session(cmd, func(ctx context.Context, conn *sqlmapper.Conn) error {
				n, err := conn.Table(args[0]).Count(ctx, filter)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	ff.register(cmd)
	return cmd
}

func newFindCommand() *cobra.Command {
	var (
		ff                        filterFlags
		columns, groupBy, orderBy []string
		limit, offset             int
		join, leftJoin            string
	)
	cmd := &cobra.Command{
		Use:   "find <table>",
		Short: "Print the rows of a table",
		Example: `  sqlmapper find book --eq name=ubuntu -o json
  sqlmapper find book --columns name,"COUNT(value)" --group-by name --order-by -count_value
  sqlmapper find ref --left-join book.id=book_id --order-by ref.id`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			filter, err := ff.filter()
			if err != nil {
				return err
			}
			if join != "" && leftJoin != "" {
				return fmt.Errorf("--join and --left-join are mutually exclusive")
			}
			opts := []sqlmapper.FindOption{
				sqlmapper.Columns(columns...),
				sqlmapper.GroupBy(groupBy...),
				sqlmapper.OrderBy(orderBy...),
				sqlmapper.Limit(limit),
				sqlmapper.Offset(offset),
			}
			if join != "" {
				opts = append(opts, sqlmapper.Join(join))
			}
			if leftJoin != "" {
				opts = append(opts, sqlmapper.LeftJoin(leftJoin))
			}
			return session(cmd, func(ctx context.Context, conn *sqlmapper.Conn) error {
				it, err := conn.Table(args[0]).Find(ctx, filter, opts...)
				if err != nil {
					return err
				}
				rows, err := it.All()
				if err != nil {
					return err
				}
				return renderRows(cmd.OutOrStdout(), rows, format)
			})
		},
	}
	ff.register(cmd)
	cmd.Flags().StringSliceVarP(&columns, "columns", "c", nil, "columns to select, aggregates as FUNC(col)")
	cmd.Flags().StringSliceVar(&groupBy, "group-by", nil, "columns to group by")
	cmd.Flags().StringSliceVar(&orderBy, "order-by", nil, `columns to order by, "-" prefix for descending`)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of rows to skip")
	cmd.Flags().StringVar(&join, "join", "", "inner join, as other.column=local_column")
	cmd.Flags().StringVar(&leftJoin, "left-join", "", "left join, as other.column=local_column")
	return cmd
}
