// Package cli provides the sqlmapper command-line interface, a read-only
// browser for the tables of a MySQL, PostgreSQL or SQLite database.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/providers/posflag"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/syssam/sqlmapper"
)

// Version information (set at build time).
var Version = "0.1.0"

type configKey struct{}

// cliFlags are persistent flags that are not connection settings.
var cliFlags = map[string]bool{
	"config": true,
	"output": true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	rootCmd := &cobra.Command{
		Use:   "sqlmapper",
		Short: "Inspect and query MySQL, PostgreSQL and SQLite tables",
		Long: `sqlmapper browses the tables of a database through the sqlmapper library.

Connection settings are read from a YAML file (--config), SQLMAPPER_
environment variables and flags, in increasing order of precedence.
Every command runs in a transaction that is rolled back on exit.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			cfg, err := loadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file")
	flags.String("engine", "", "database engine (mysql|postgres|sqlite)")
	flags.String("driver", "", "database/sql driver name, e.g. pgx")
	flags.String("host", "", "database host")
	flags.Int("port", 0, "database port")
	flags.StringP("user", "u", "", "database user")
	flags.String("password", "", "database password")
	flags.String("db", "", "database name, or file path for sqlite")
	flags.Bool("read-committed", false, "use the READ COMMITTED isolation level")
	flags.Bool("debug", false, "log every statement to stderr")
	flags.StringP("output", "o", formatTable, "output format (table|json|yaml)")

	_ = rootCmd.RegisterFlagCompletionFunc("engine", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"mysql", "postgres", "sqlite"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{formatTable, formatJSON, formatYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newTablesCommand())
	rootCmd.AddCommand(newDescribeCommand())
	rootCmd.AddCommand(newIndexesCommand())
	rootCmd.AddCommand(newCountCommand())
	rootCmd.AddCommand(newFindCommand())
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig layers the explicitly set flags over the file and environment
// configuration.
func loadConfig(path string, flags *pflag.FlagSet) (*sqlmapper.Config, error) {
	k, err := sqlmapper.LoadKoanf(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
		if !f.Changed || cliFlags[f.Name] {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}
	return sqlmapper.UnmarshalConfig(k)
}

// session runs fn in a session that is always rolled back.
func session(cmd *cobra.Command, fn func(context.Context, *sqlmapper.Conn) error) error {
	cfg, ok := cmd.Context().Value(configKey{}).(*sqlmapper.Config)
	if !ok {
		return fmt.Errorf("configuration not loaded")
	}
	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return sqlmapper.Session(cmd.Context(), cfg, fn,
		sqlmapper.NoCommit(),
		sqlmapper.WithConnOptions(sqlmapper.WithLogger(logger)),
	)
}

// outputFormat returns the validated --output flag.
func outputFormat(cmd *cobra.Command) (string, error) {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	switch format {
	case formatTable, formatJSON, formatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}
