package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alexanderjulianmartinez/data-census/internal/census"
	"github.com/alexanderjulianmartinez/data-census/internal/config"
	"github.com/alexanderjulianmartinez/data-census/internal/runner"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "datacensus error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cmd := newRootCommand(stdout)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

type options struct {
	configPath string
	dsn        string
	driver     string
	schema     string
	output     string
	logLevel   string
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "datacensus",
		Short: "Write a spreadsheet census of a database schema",
		Long: `datacensus inspects the catalog of a PostgreSQL or MySQL schema and writes an
.xlsx report with two sheets: table sizes ("Metrics") and per-month row counts
of every date/timestamp column ("Time Distributions").

Credentials are read from DATACENSUS_DSN, DATABASE_URL or PGUSER/PGPASSWORD;
the default DSN carries none.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), opts, stdout)
		},
	}
	cmd.SetOut(stdout)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config.yaml")
	flags.StringVar(&opts.dsn, "dsn", "", "Database connection string (default "+config.DefaultDSN+")")
	flags.StringVar(&opts.driver, "driver", "", "Database driver: postgres or mysql (inferred from the DSN)")
	flags.StringVar(&opts.schema, "schema", "", "Schema to inspect (default public, or the MySQL database)")
	flags.StringVar(&opts.output, "output", "", "Output .xlsx path (default "+config.DefaultOutput+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newCheckCommand(opts, stdout))
	return cmd
}

func newCheckCommand(opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and connectivity without writing a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), opts, stdout)
		},
	}
}

func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dsn != "" {
		cfg.Source.DSN = opts.dsn
	}
	if opts.driver != "" {
		cfg.Source.Type = opts.driver
	}
	if opts.schema != "" {
		cfg.Source.Schema = opts.schema
	}
	if opts.output != "" {
		cfg.Output.Path = opts.output
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}

func runReport(ctx context.Context, opts *options, stdout io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	res, err := runner.Run(ctx, cfg, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Report written to %s\n", res.Output)
	fmt.Fprintf(stdout, "Source: %s (schema %s)\n", res.Driver, res.Schema)
	fmt.Fprintf(stdout, "Tables: %d, time columns: %d, months: %d\n", res.Tables, res.TimeColumns, res.Months)
	if res.Warnings > 0 {
		fmt.Fprintf(stdout, "Consistency warnings: %d (see log)\n", res.Warnings)
	}
	return nil
}

func runCheck(ctx context.Context, opts *options, stdout io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	insp, err := runner.OpenInspector(ctx, cfg.Source, logger)
	if err != nil {
		return err
	}
	defer insp.Close()

	metrics, err := census.BuildMetrics(ctx, insp)
	if err != nil {
		return err
	}
	cols, err := insp.TimeColumns(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Loaded config successfully")
	fmt.Fprintf(stdout, "Source: %s (schema %s)\n", cfg.Source.Type, cfg.Source.Schema)
	fmt.Fprintf(stdout, "Tables: %d\n", len(metrics))
	fmt.Fprintf(stdout, "Time columns: %d\n", len(cols))
	fmt.Fprintf(stdout, "Output: %s\n", cfg.Output.Path)
	return nil
}
