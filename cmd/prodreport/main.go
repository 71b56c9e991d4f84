/*
main.go - Application entry point

PURPOSE:
  Loads production workbooks into the record store and rewrites the
  aggregated report after each file.

COMMANDS:
  prodreport [files...]   Process files in order (default: source.default_path)
  prodreport report       Print the current report
  prodreport reset        Delete every stored record
  prodreport serve        Run the HTTP API

GLOBAL FLAGS:
  --config     Config file (default: .prodreport.yaml in CWD or $HOME)
  --db         SQLite database path, overrides database.path
  --log-level  debug, info, warn, error
  --pretty     Human-readable log output

ENVIRONMENT:
  Every config key can be set as PRODREPORT_<SECTION>_<KEY>,
  e.g. PRODREPORT_DATABASE_PATH, PRODREPORT_REPORT_PATH.

EXAMPLES:
  ./prodreport data/december.xlsx data/january.xlsx
  ./prodreport --reset data/december.xlsx
  ./prodreport serve --port=3000

SEE ALSO:
  - pipeline/pipeline.go: Per-file workflow
  - config/config.go: Configuration keys and defaults
*/
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/production-report/config"
	"github.com/warp/production-report/logging"
	"github.com/warp/production-report/pipeline"
	"github.com/warp/production-report/store/sqlite"
)

// app carries the dependencies built before any command runs.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    *sqlite.Store
	pipeline *pipeline.Pipeline
}

type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
	pretty     bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		flags globalFlags
		reset bool
		a     = &app{}
	)

	rootCmd := &cobra.Command{
		Use:   "prodreport [files...]",
		Short: "Load production workbooks and build the company totals report",
		Long: `prodreport normalizes fixed-layout production workbooks into records,
stores them, and writes a report with per-company and total sums for every
(date, metric, status) combination.

With no file arguments the configured source.default_path is processed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(flags)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, reset)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "human-readable logs")
	rootCmd.Flags().BoolVar(&reset, "reset", false, "delete stored records before processing")

	rootCmd.AddCommand(newReportCommand(a))
	rootCmd.AddCommand(newResetCommand(a))
	rootCmd.AddCommand(newServeCommand(a))

	return rootCmd
}

func (a *app) init(flags globalFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.pretty {
		cfg.Log.Pretty = true
	}
	a.cfg = cfg

	a.log = logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logging.SetGlobalLogger(a.log)

	enum, err := cfg.Enum()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.store = store

	a.pipeline = pipeline.New(store, enum, pipeline.Options{
		ReportPath:  cfg.Report.Path,
		ReportSheet: cfg.Report.Sheet,
	}, a.log)
	return nil
}

// close is safe to call more than once; cobra skips the post-run hook when
// a command fails.
func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	store := a.store
	a.store = nil
	return store.Close()
}

// run processes files sequentially. The first failure stops the run; it is
// logged and returned so the process exits non-zero.
func (a *app) run(cmd *cobra.Command, args []string, reset bool) error {
	defer a.close()

	ctx := cmd.Context()
	paths := args
	if len(paths) == 0 {
		paths = []string{a.cfg.Source.DefaultPath}
	}

	if reset {
		if err := a.pipeline.Reset(ctx); err != nil {
			return err
		}
	}

	results, err := a.pipeline.Run(ctx, paths)
	ok := color.New(color.FgGreen)
	for _, res := range results {
		ok.Fprintf(cmd.OutOrStdout(), "%s: %s records from %s companies loaded, report %s (%d rows) in %s\n",
			res.Path, humanize.Comma(int64(res.Records)), humanize.Comma(int64(res.Companies)),
			res.ReportPath, res.ReportRows, res.Duration.Round(time.Millisecond))
	}
	if err != nil {
		a.log.Error().Err(err).Int("processed", len(results)).Int("requested", len(paths)).Msg("Processing stopped")
		return err
	}
	return nil
}
