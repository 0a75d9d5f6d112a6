package report

import (
	"bufio"
	"bytes"
	"cmp"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"golang.org/x/tools/benchmark/parse"
)

const performanceBenchmarkPrefix = "BenchmarkPerformance"

// Environment describes the machine which produced "go test -bench" output.
type Environment struct {
	Goos   string
	Goarch string
	Cpu    string
	Pkg    string
}

// BenchResults holds the performance benchmarks found in "go test -bench"
// output grouped by the measured kind.
type BenchResults struct {
	Environment        Environment
	PerformanceResults []PerformanceBenchResult
}

type PerformanceBenchResult struct {
	Kind    benchmark.Kind
	Systems []SystemPerformanceBenchResult
}

type SystemPerformanceBenchResult struct {
	SystemName  string
	N           int
	NsOp        float64
	AllocsPerOp uint64
	BytesPerOp  uint64
}

// GetBenchResults parses the output of the BenchmarkPerformance benchmarks.
// Sub-benchmarks are named BenchmarkPerformance/<system>/<kind>.
func GetBenchResults(r io.Reader) (BenchResults, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return BenchResults{}, errors.Wrap(err, "error reading all")
	}

	environment, err := readEnvironment(bytes.NewReader(b))
	if err != nil {
		return BenchResults{}, errors.Wrap(err, "error reading the environment")
	}

	set, err := parse.ParseSet(bytes.NewReader(b))
	if err != nil {
		return BenchResults{}, errors.Wrap(err, "error parsing set")
	}

	results, err := groupByKind(set)
	if err != nil {
		return BenchResults{}, errors.Wrap(err, "error grouping results")
	}

	return BenchResults{
		Environment:        environment,
		PerformanceResults: results,
	}, nil
}

func readEnvironment(r io.Reader) (Environment, error) {
	var environment Environment

	fields := map[string]*string{
		"goos":   &environment.Goos,
		"goarch": &environment.Goarch,
		"cpu":    &environment.Cpu,
		"pkg":    &environment.Pkg,
	}

	scan := bufio.NewScanner(r)
	for scan.Scan() {
		key, value, ok := strings.Cut(scan.Text(), ":")
		if !ok {
			continue
		}
		if field, ok := fields[key]; ok {
			*field = strings.TrimSpace(value)
		}
	}

	if err := scan.Err(); err != nil {
		return Environment{}, errors.Wrap(err, "scan error")
	}

	if environment.Cpu == "" || environment.Goarch == "" || environment.Goos == "" {
		return Environment{}, errors.New("missing goos, goarch or cpu line")
	}

	return environment, nil
}

func groupByKind(set parse.Set) ([]PerformanceBenchResult, error) {
	systemsByKind := make(map[benchmark.Kind][]SystemPerformanceBenchResult)

	for name, benchmarks := range set {
		if !strings.HasPrefix(name, performanceBenchmarkPrefix+"/") {
			continue
		}

		systemName, kind, err := ParsePerformanceBenchmarkName(name)
		if err != nil {
			return nil, errors.Wrap(err, "error parsing benchmark name")
		}

		for _, b := range benchmarks {
			systemsByKind[kind] = append(systemsByKind[kind], SystemPerformanceBenchResult{
				SystemName:  systemName,
				N:           b.N,
				NsOp:        b.NsPerOp,
				AllocsPerOp: b.AllocsPerOp,
				BytesPerOp:  b.AllocedBytesPerOp,
			})
		}
	}

	var results []PerformanceBenchResult
	for _, kind := range benchmark.Kinds() {
		systems, ok := systemsByKind[kind]
		if !ok {
			continue
		}

		slices.SortStableFunc(systems, func(a, b SystemPerformanceBenchResult) int {
			return cmp.Compare(a.SystemName, b.SystemName)
		})

		results = append(results, PerformanceBenchResult{
			Kind:    kind,
			Systems: systems,
		})
	}

	return results, nil
}

var gomaxprocsSuffix = regexp.MustCompile(`-\d+$`)

// ParsePerformanceBenchmarkName splits names such as
// "BenchmarkPerformance/bbolt/BATCH_READ-8" into the system name and the
// measured kind.
func ParsePerformanceBenchmarkName(name string) (string, benchmark.Kind, error) {
	split := strings.SplitN(name, "/", 3)
	if len(split) != 3 || split[0] != performanceBenchmarkPrefix || split[1] == "" {
		return "", 0, errors.New("invalid name")
	}

	kind, ok := benchmark.ParseKind(gomaxprocsSuffix.ReplaceAllString(split[2], ""))
	if !ok {
		return "", 0, errors.New("unknown kind")
	}

	return split[1], kind, nil
}
