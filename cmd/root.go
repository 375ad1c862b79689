// Package cmd contains the tap-mssql command line, built using the Cobra
// library.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	opts := &tapOptions{}
	cmd := &cobra.Command{
		Use:   "tap-mssql",
		Short: "Singer tap for Microsoft SQL Server.",
		Long: `tap-mssql reads tables and views from Microsoft SQL Server and writes
Singer SCHEMA, RECORD, STATE and BATCH messages to standard output.
Run with --discover to produce a catalog, then with --catalog and --state
to sync the selected streams.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		Version:      version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTap(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.configs, "config", nil, "Configuration file (repeatable, later files win); ENV reads TAP_MSSQL_* variables")
	flags.BoolVar(&opts.discover, "discover", false, "Run discovery and print the catalog")
	flags.StringVar(&opts.catalog, "catalog", "", "Catalog file selecting the streams to sync")
	flags.StringVar(&opts.properties, "properties", "", "Deprecated alias of --catalog")
	flags.StringVar(&opts.state, "state", "", "State file with bookmarks from a previous run")
	flags.BoolVar(&opts.about, "about", false, "Print tap metadata and exit")
	flags.StringVar(&opts.format, "format", "json", "Output format of --about: json or markdown")
	flags.BoolVar(&opts.test, "test", false, "Connect and emit at most one record per stream")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose/debug logging")
	cmd.MarkFlagsMutuallyExclusive("discover", "test")
	cmd.MarkFlagsMutuallyExclusive("catalog", "properties")
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
