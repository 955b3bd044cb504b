package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vogtb/gridcalc/packages/config"
	"github.com/vogtb/gridcalc/packages/driver"
	"github.com/vogtb/gridcalc/packages/spreadsheet"
	"github.com/vogtb/gridcalc/packages/telemetry"
)

type runOptions struct {
	configPath string
	rows       int
	columns    int
	metricsOut string
	trace      bool
	verbose    bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [script.yaml]",
		Short: "Apply an edit script to a new grid",
		Long: `run creates a grid, applies each step of the script in order, and prints
the status prompt and the visible region after every step.

The grid size comes from the script's rows/columns header unless --rows and
--columns are given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().IntVar(&opts.rows, "rows", 0, "Number of rows (overrides the script)")
	cmd.Flags().IntVar(&opts.columns, "columns", 0, "Number of columns (overrides the script)")
	cmd.Flags().StringVar(&opts.metricsOut, "metrics-out", "", "Write Prometheus text metrics to this file after the run")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Export spans to stderr")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func run(ctx context.Context, stdout, stderr io.Writer, scriptPath string, opts runOptions) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Default()
	if opts.configPath != "" {
		if cfg, err = config.Load(opts.configPath); err != nil {
			return err
		}
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if opts.trace {
		cfg.Telemetry.TraceExporter = "stdout"
	}
	if opts.metricsOut != "" {
		cfg.Telemetry.MetricExporter = "prometheus"
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	script, err := driver.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	rows, columns := script.Rows, script.Columns
	if opts.rows > 0 {
		rows = opts.rows
	}
	if opts.columns > 0 {
		columns = opts.columns
	}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, version, stderr)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil && err == nil {
			err = fmt.Errorf("shutdown telemetry: %w", shutdownErr)
		}
	}()

	grid, err := spreadsheet.CreateGrid(rows, columns,
		append(cfg.Engine.Options(), spreadsheet.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("create grid: %w", err)
	}

	session := driver.NewSession(grid, cfg.Driver, stdout, logger)
	logger.Info("session started",
		slog.String("session", session.ID().String()),
		slog.Int("steps", len(script.Steps)),
		slog.Int("rows", rows), slog.Int("columns", columns))
	if err := session.Run(ctx, script); err != nil {
		return fmt.Errorf("session %s: %w", session.ID(), err)
	}

	if opts.metricsOut != "" {
		if err := writeMetrics(providers, opts.metricsOut); err != nil {
			return err
		}
		logger.Info("metrics written", slog.String("path", opts.metricsOut))
	}
	return nil
}

func writeMetrics(providers *telemetry.Providers, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating metrics file: %w", err)
	}
	if err := providers.WriteMetrics(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
