package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
)

const ResultFileExtension = ".tsv"

// ResultBlock is a header line followed by the data rows written under it.
// Result files contain multiple blocks if the set of columns changed between
// runs.
type ResultBlock struct {
	Header []string
	Rows   [][]string
}

// ReadResults parses a result file written by benchmark.ResultFile.
func ReadResults(r io.Reader, separator rune) ([]ResultBlock, error) {
	var blocks []ResultBlock

	scan := bufio.NewScanner(r)
	scan.Buffer(nil, 1024*1024)

	lineNumber := 0
	for scan.Scan() {
		lineNumber++

		line := strings.TrimSuffix(scan.Text(), "\r")
		if line == "" {
			continue
		}

		fields := strings.Split(line, string(separator))

		if benchmark.IsHeader(fields) {
			blocks = append(blocks, ResultBlock{Header: fields})
			continue
		}

		if len(blocks) == 0 {
			return nil, fmt.Errorf("line %d: data row before the first header", lineNumber)
		}

		block := &blocks[len(blocks)-1]
		if len(fields) != len(block.Header) {
			return nil, fmt.Errorf("line %d: expected %d fields but got %d", lineNumber, len(block.Header), len(fields))
		}
		block.Rows = append(block.Rows, fields)
	}

	if err := scan.Err(); err != nil {
		return nil, errors.Wrap(err, "scan error")
	}

	return blocks, nil
}

// ColumnSummary holds all values of a measurement column.
type ColumnSummary struct {
	Name   string
	Values []int64
	Median float64
}

// Summarize collects the values of measurement columns across all blocks.
// Columns which do not name a kind are skipped. Columns are returned in the
// order in which they first appear.
func Summarize(blocks []ResultBlock) ([]ColumnSummary, error) {
	var summaries []ColumnSummary
	positions := make(map[string]int)

	for _, block := range blocks {
		for i, name := range block.Header {
			if !isMeasurementColumn(name) {
				continue
			}

			position, ok := positions[name]
			if !ok {
				summaries = append(summaries, ColumnSummary{Name: name})
				position = len(summaries) - 1
				positions[name] = position
			}

			for _, row := range block.Rows {
				value, err := strconv.ParseInt(row[i], 10, 64)
				if err != nil {
					return nil, errors.Wrap(err, fmt.Sprintf("column '%s' contains an invalid value", name))
				}
				summaries[position].Values = append(summaries[position].Values, value)
			}
		}
	}

	for i := range summaries {
		summaries[i].Median, _ = benchmark.Median(summaries[i].Values)
	}

	return summaries, nil
}

func isMeasurementColumn(name string) bool {
	_, ok := benchmark.ParseKind(strings.TrimSuffix(name, benchmark.ThreadTimeSuffix))
	return ok
}

// SuiteResults holds the summaries of one suite for every system which
// executed it.
type SuiteResults struct {
	Suite   string
	Systems []SystemResults
}

type SystemResults struct {
	System  string
	Columns []ColumnSummary
}

// Column returns the summary of the named column.
func (s SystemResults) Column(name string) (ColumnSummary, bool) {
	for _, column := range s.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return ColumnSummary{}, false
}

// ColumnNames returns the names of columns present for any of the systems.
func (s SuiteResults) ColumnNames() []string {
	var names []string
	seen := make(map[string]bool)
	for _, system := range s.Systems {
		for _, column := range system.Columns {
			if !seen[column.Name] {
				seen[column.Name] = true
				names = append(names, column.Name)
			}
		}
	}
	return names
}

// ResultFileName returns the name of the file storing the results of the
// suite executed against the system.
func ResultFileName(system, suite string) string {
	return system + "-" + suite + ResultFileExtension
}

// ParseResultFileName is the inverse of ResultFileName. Suite names are
// matched against the known suites as system names may contain dashes.
func ParseResultFileName(filename string, suites []string) (string, string, bool) {
	name, ok := strings.CutSuffix(filepath.Base(filename), ResultFileExtension)
	if !ok {
		return "", "", false
	}

	for _, suite := range suites {
		if system, ok := strings.CutSuffix(name, "-"+suite); ok && system != "" {
			return system, suite, true
		}
	}

	return "", "", false
}

// ReadDirectory reads every result file in the directory and groups the
// summaries by suite. Files which do not belong to one of the suites are
// ignored.
func ReadDirectory(dir string, separator rune, suites []string) ([]SuiteResults, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "error reading the directory")
	}

	var results []SuiteResults

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		system, suite, ok := ParseResultFileName(entry.Name(), suites)
		if !ok {
			continue
		}

		columns, err := readResultFile(filepath.Join(dir, entry.Name()), separator)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("error reading '%s'", entry.Name()))
		}

		suiteResults, ok := findSuite(results, suite)
		if !ok {
			results = append(results, SuiteResults{Suite: suite})
			suiteResults = &results[len(results)-1]
		}

		suiteResults.Systems = append(suiteResults.Systems, SystemResults{
			System:  system,
			Columns: columns,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Suite < results[j].Suite
	})

	for _, result := range results {
		sort.Slice(result.Systems, func(i, j int) bool {
			return result.Systems[i].System < result.Systems[j].System
		})
	}

	return results, nil
}

func readResultFile(path string, separator rune) ([]ColumnSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "error opening the file")
	}
	defer f.Close()

	blocks, err := ReadResults(f, separator)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing results")
	}

	return Summarize(blocks)
}

func findSuite(results []SuiteResults, suite string) (*SuiteResults, bool) {
	for i := range results {
		if results[i].Suite == suite {
			return &results[i], true
		}
	}
	return nil, false
}
