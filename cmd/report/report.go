package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"github.com/boreq/persistence_benchmark/config"
	"github.com/boreq/persistence_benchmark/report"
	"github.com/spf13/cobra"
	gochart "github.com/wcharczuk/go-chart/v2"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := &cobra.Command{
		Use:           "report",
		Short:         "Render charts and a README from benchmark results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newResultsCmd(logger))
	root.AddCommand(newBenchCmd(logger))

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newResultsCmd(logger *slog.Logger) *cobra.Command {
	var (
		inputDir  string
		outputDir string
		separator string
	)

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Summarize result files written by perf",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			cfg.Separator = separator
			if err := cfg.Validate(); err != nil {
				return errors.Wrap(err, "invalid separator")
			}

			if outputDir == "" {
				outputDir = path.Join(inputDir, "report")
			}

			return renderResults(logger, inputDir, outputDir, cfg.SeparatorRune())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inputDir, "input", "results",
		"Directory containing the result files")
	flags.StringVar(&outputDir, "output", "",
		"Directory receiving the report (default: <input>/report)")
	flags.StringVar(&separator, "separator", string(benchmark.DefaultSeparator),
		"Separator used in the result files")

	return cmd
}

func newBenchCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Summarize the output of go test -bench read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderBenchResults(logger)
		},
	}
}

func renderResults(logger *slog.Logger, inputDir, outputDir string, separator rune) error {
	results, err := report.ReadDirectory(inputDir, separator, []string{
		benchmark.CrudSuiteName,
		benchmark.IndexedQueriesSuiteName,
	})
	if err != nil {
		return errors.Wrap(err, "error reading results")
	}

	if err := recreateDirectory(outputDir); err != nil {
		return errors.Wrap(err, "error recreating the output directory")
	}

	readmeBuffer := bytes.NewBuffer(nil)
	readmeBuffer.WriteString("# Results\n")
	readmeBuffer.WriteString("All values are medians in [ms].\n")

	for _, suite := range results {
		readmeBuffer.WriteString(fmt.Sprintf("## %s\n", suite.Suite))

		for _, column := range suite.ColumnNames() {
			resultsChart, err := report.MakeMedianChart(suite, column)
			if err != nil {
				return errors.Wrap(err, "error creating chart")
			}

			filename := fmt.Sprintf("%s-%s.png", suite.Suite, column)
			if err := renderChart(resultsChart, path.Join(outputDir, filename)); err != nil {
				return errors.Wrap(err, "error rendering the chart")
			}

			readmeBuffer.WriteString(fmt.Sprintf("### %s\n", column))
			readmeBuffer.WriteString(fmt.Sprintf("![](./%s)\n", filename))
			readmeBuffer.WriteString("```\n")

			type systemMedian struct {
				system string
				median float64
				n      int
			}

			var medians []systemMedian
			for _, system := range suite.Systems {
				summary, ok := system.Column(column)
				if !ok {
					continue
				}
				medians = append(medians, systemMedian{system.System, summary.Median, len(summary.Values)})
			}

			sort.Slice(medians, func(i, j int) bool {
				return medians[i].median < medians[j].median
			})

			for _, m := range medians {
				readmeBuffer.WriteString(fmt.Sprintf("%20s = %.1f ms (n=%d)\n", m.system, m.median, m.n))
			}
			readmeBuffer.WriteString("```\n")
		}
	}

	if err := writeReadme(readmeBuffer, outputDir); err != nil {
		return errors.Wrap(err, "error writing the readme")
	}

	logger.Info("report written", slog.String("dir", outputDir), slog.Int("suites", len(results)))

	return nil
}

func renderBenchResults(logger *slog.Logger) error {
	results, err := report.GetBenchResults(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "error getting bench results")
	}

	directory := path.Join(
		"results",
		fmt.Sprintf("%s-%s-%s", results.Environment.Cpu, results.Environment.Goarch, results.Environment.Goos),
	)

	if err := recreateDirectory(directory); err != nil {
		return errors.Wrap(err, "error recreating the directory")
	}

	readmeBuffer := bytes.NewBuffer(nil)
	readmeBuffer.WriteString("# Results\n")
	readmeBuffer.WriteString("```\n")
	readmeBuffer.WriteString(fmt.Sprintf("goarch=%s\n", results.Environment.Goarch))
	readmeBuffer.WriteString(fmt.Sprintf("goos=%s\n", results.Environment.Goos))
	readmeBuffer.WriteString(fmt.Sprintf("cpu=%s\n", results.Environment.Cpu))
	readmeBuffer.WriteString(fmt.Sprintf("pkg=%s\n", results.Environment.Pkg))
	readmeBuffer.WriteString("```\n")

	readmeBuffer.WriteString("## Performance\n")

	for _, result := range results.PerformanceResults {
		resultsChart, err := report.MakePerformanceResultChart(result)
		if err != nil {
			return errors.Wrap(err, "error creating chart")
		}

		filename := fmt.Sprintf("bench-%s.png", result.Kind)

		if err := renderChart(resultsChart, path.Join(directory, filename)); err != nil {
			return errors.Wrap(err, "error rendering the chart")
		}

		readmeBuffer.WriteString(fmt.Sprintf("### %s\n", result.Kind))
		readmeBuffer.WriteString(fmt.Sprintf("![](./%s)\n", filename))
		readmeBuffer.WriteString("```\n")
		sort.Slice(result.Systems, func(i, j int) bool {
			return result.Systems[i].NsOp < result.Systems[j].NsOp
		})
		for _, system := range result.Systems {
			readmeBuffer.WriteString(fmt.Sprintf("%20s = %.0f ns per op, %d allocs per op (n=%d)\n", system.SystemName, system.NsOp, system.AllocsPerOp, system.N))
		}
		readmeBuffer.WriteString("```\n")
	}

	if err := writeReadme(readmeBuffer, directory); err != nil {
		return errors.Wrap(err, "error writing the readme")
	}

	logger.Info("report written", slog.String("dir", directory))

	return nil
}

func recreateDirectory(directory string) error {
	if err := os.RemoveAll(directory); err != nil {
		return errors.Wrap(err, "error removing directory")
	}

	if err := os.MkdirAll(directory, 0700); err != nil {
		return errors.Wrap(err, "error creating directory")
	}

	return nil
}

func renderChart(c gochart.BarChart, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "error creating chart file")
	}
	defer f.Close()

	if err := c.Render(gochart.PNG, f); err != nil {
		return errors.Wrap(err, "error rendering the chart")
	}

	return nil
}

func writeReadme(buf *bytes.Buffer, directory string) error {
	readmeFile, err := os.Create(path.Join(directory, "README.md"))
	if err != nil {
		return errors.Wrap(err, "error creating readme")
	}
	defer readmeFile.Close()

	if _, err := buf.WriteTo(readmeFile); err != nil {
		return errors.Wrap(err, "error writing to readme file")
	}

	return nil
}
