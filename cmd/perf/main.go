// Package main runs the benchmark suites against the configured persistence
// libraries and appends the measurements to result files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/boreq/errors"
	persistence "github.com/boreq/persistence_benchmark"
	"github.com/boreq/persistence_benchmark/benchmark"
	"github.com/boreq/persistence_benchmark/config"
	"github.com/boreq/persistence_benchmark/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const (
	settleGCCycles = 5
	settleGCPause  = 20 * time.Millisecond
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd(logger)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "err", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "perf",
		Short: "Persistence library benchmarks",
		Long: `Perf runs the one-by-one/batch CRUD suite and the indexed query suite
against persistence libraries and appends the measured durations to
tab separated result files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newSystemsCmd())

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		configPath string
		systems    []string
		runs       int
		warmUpRuns int
		outputDir  string
		threadTime bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark suites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return errors.Wrap(err, "error loading the config")
				}
				cfg = loaded
			}

			flags := cmd.Flags()
			if flags.Changed("systems") {
				cfg.Systems = systems
			}
			if flags.Changed("runs") {
				cfg.Runs = runs
			}
			if flags.Changed("warm-up-runs") {
				cfg.WarmUpRuns = warmUpRuns
			}
			if flags.Changed("output-dir") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("thread-time") {
				cfg.ThreadTime = threadTime
			}

			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid config")
			}

			return runBenchmarks(cmd.Context(), logger, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "",
		"Path to a YAML config file")
	flags.StringSliceVar(&systems, "systems", nil,
		"Systems to benchmark (e.g. bbolt,badger,postgres)")
	flags.IntVar(&runs, "runs", 0,
		"Number of recorded runs of each suite")
	flags.IntVar(&warmUpRuns, "warm-up-runs", 0,
		"Number of runs executed before recording results")
	flags.StringVar(&outputDir, "output-dir", "",
		"Directory receiving the result files")
	flags.BoolVar(&threadTime, "thread-time", false,
		"Record thread CPU time next to every measurement")

	return cmd
}

func newSystemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List the systems which can be benchmarked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range persistence.SystemNames() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type suiteFunc func(ctx context.Context, b *benchmark.Benchmark, adapter benchmark.Adapter) error

func runBenchmarks(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	systems, err := persistence.GetSystems(persistence.SystemsConfig{
		TransactionSize: cfg.TransactionSize,
		PostgresDSN:     cfg.Postgres.DSN,
		MySQLDSN:        cfg.MySQL.DSN,
	}, cfg.Systems)
	if err != nil {
		return errors.Wrap(err, "error getting systems")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, "error creating the output directory")
	}

	registry := prometheus.NewRegistry()
	metrics, err := benchmark.NewPrometheusMetrics(registry)
	if err != nil {
		return errors.Wrap(err, "error creating metrics")
	}

	suite := benchmark.Suite{
		Runs:             cfg.WarmUpRuns + cfg.Runs,
		BatchSize:        cfg.BatchSize,
		OneByOneModifier: cfg.OneByOneModifier,
		QueryCount:       cfg.QueryCount,
	}

	suites := []struct {
		Name string
		Run  suiteFunc
	}{
		{Name: benchmark.CrudSuiteName, Run: suite.RunCrud},
		{Name: benchmark.IndexedQueriesSuiteName, Run: suite.RunIndexedQueries},
	}

	logger.InfoContext(ctx, "starting benchmarks",
		slog.Any("systems", cfg.Systems),
		slog.Int("runs", cfg.Runs),
		slog.Int("warm_up_runs", cfg.WarmUpRuns),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Bool("thread_time", cfg.ThreadTime),
	)

	for _, system := range systems {
		for _, s := range suites {
			if err := runSuite(ctx, logger, cfg, metrics, system, s.Name, s.Run); err != nil {
				return errors.Wrap(err, fmt.Sprintf("error running suite '%s' for system '%s'", s.Name, system.Name))
			}
		}
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			return errors.Wrap(err, "error writing the metrics file")
		}
	}

	logger.InfoContext(ctx, "benchmarks finished", slog.String("output_dir", cfg.OutputDir))

	return nil
}

func runSuite(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.Config,
	metrics *benchmark.PrometheusMetrics,
	system persistence.TestedSystem,
	suiteName string,
	run suiteFunc,
) error {
	var dir string
	if system.Embedded {
		var err error
		dir, err = os.MkdirTemp(cfg.DataDir, "persistence-bench-"+system.Name)
		if err != nil {
			return errors.Wrap(err, "error creating the data directory")
		}
		defer os.RemoveAll(dir)
	}

	adapter, err := system.Constructor(ctx, dir)
	if err != nil {
		return errors.Wrap(err, "error creating the adapter")
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			logger.Error("error closing the adapter", "system", system.Name, "err", err)
		}
	}()

	path := filepath.Join(cfg.OutputDir, report.ResultFileName(system.Name, suiteName))
	sink, err := benchmark.OpenResultFile(path, cfg.SeparatorRune())
	if err != nil {
		return errors.Wrap(err, "error opening the result file")
	}

	b, err := benchmark.NewBenchmark(sink, system.Name+"-"+suiteName, benchmarkConfig(logger, cfg, metrics, system))
	if err != nil {
		return errors.Wrap(err, "error creating the benchmark")
	}

	if err := run(ctx, b, adapter); err != nil {
		return errors.Wrap(err, "error running the suite")
	}

	logger.InfoContext(ctx, "suite finished",
		slog.String("system", system.Name),
		slog.String("suite", suiteName),
		slog.String("results", sink.Path()),
	)

	return nil
}

func benchmarkConfig(logger *slog.Logger, cfg config.Config, metrics *benchmark.PrometheusMetrics, system persistence.TestedSystem) benchmark.Config {
	var fixedColumns []benchmark.Column
	if cfg.DeviceColumn {
		fixedColumns = append(fixedColumns, benchmark.DeviceColumn())
	}
	for _, column := range cfg.FixedColumns {
		fixedColumns = append(fixedColumns, benchmark.Column{
			Name:  column.Name,
			Value: column.Value,
		})
	}

	var settle func()
	if cfg.SettleGC {
		settle = benchmark.SettleGC(settleGCCycles, settleGCPause)
	}

	return benchmark.Config{
		WarmUpRuns:   cfg.WarmUpRuns,
		ThreadTime:   cfg.ThreadTime,
		FixedColumns: fixedColumns,
		Settle:       settle,
		Logger:       logger,
		Observer:     metrics.Observer(system.Name),
	}
}
