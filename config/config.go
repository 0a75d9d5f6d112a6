// Package config loads the configuration of benchmark runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/boreq/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// OutputDir receives one result file per system and suite.
	OutputDir string `yaml:"output_dir"`

	// DataDir is where embedded databases are created. Defaults to the
	// system temporary directory.
	DataDir string `yaml:"data_dir"`

	Runs             int `yaml:"runs"`
	WarmUpRuns       int `yaml:"warm_up_runs"`
	BatchSize        int `yaml:"batch_size"`
	OneByOneModifier int `yaml:"one_by_one_modifier"`
	QueryCount       int `yaml:"query_count"`
	TransactionSize  int `yaml:"transaction_size"`

	ThreadTime   bool `yaml:"thread_time"`
	SettleGC     bool `yaml:"settle_gc"`
	DeviceColumn bool `yaml:"device_column"`

	// Separator is a single character separating fields in result files.
	Separator    string   `yaml:"separator"`
	FixedColumns []Column `yaml:"fixed_columns"`

	Systems []string `yaml:"systems"`

	Postgres Database `yaml:"postgres"`
	MySQL    Database `yaml:"mysql"`

	// MetricsFile is written in the prometheus text format if set.
	MetricsFile string `yaml:"metrics_file"`
}

type Column struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type Database struct {
	DSN string `yaml:"dsn"`
}

const lineBreaks = "\r\n"

func Default() Config {
	return Config{
		OutputDir:        "results",
		Runs:             8,
		WarmUpRuns:       0,
		BatchSize:        10000,
		OneByOneModifier: 10,
		QueryCount:       1000,
		TransactionSize:  5000,
		SettleGC:         true,
		DeviceColumn:     true,
		Separator:        "\t",
		Systems:          []string{"bbolt", "badger", "margaret"},
	}
}

// Load reads the file at the given path on top of the default config.
func Load(path string) (Config, error) {
	config := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "error reading the config file")
	}

	if err := yaml.Unmarshal(b, &config); err != nil {
		return Config{}, errors.Wrap(err, "error unmarshaling the config")
	}

	if err := config.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}

	return config, nil
}

func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output dir is required")
	}
	if c.Runs <= 0 {
		return errors.New("runs must be positive")
	}
	if c.WarmUpRuns < 0 {
		return errors.New("warm up runs can not be negative")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if c.OneByOneModifier <= 0 || c.BatchSize/c.OneByOneModifier <= 0 {
		return errors.New("one by one modifier must be positive and not larger than batch size")
	}
	if c.QueryCount <= 0 {
		return errors.New("query count must be positive")
	}
	if c.TransactionSize <= 0 {
		return errors.New("transaction size must be positive")
	}
	if utf8.RuneCountInString(c.Separator) != 1 {
		return errors.New("separator must be a single character")
	}
	if strings.ContainsAny(c.Separator, lineBreaks) {
		return errors.New("separator can not be a line break")
	}
	for _, column := range c.FixedColumns {
		if column.Name == "" {
			return errors.New("fixed column name is required")
		}
		if _, err := strconv.ParseInt(column.Name, 10, 64); err == nil {
			return errors.New("fixed column name can not be an integer")
		}
		if strings.ContainsAny(column.Name, c.Separator+lineBreaks) || strings.ContainsAny(column.Value, c.Separator+lineBreaks) {
			return fmt.Errorf("fixed column '%s' contains the separator or a line break", column.Name)
		}
	}
	if len(c.Systems) == 0 {
		return errors.New("at least one system is required")
	}
	return nil
}

// SeparatorRune returns the separator as a rune. The config must be valid.
func (c Config) SeparatorRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Separator)
	return r
}
