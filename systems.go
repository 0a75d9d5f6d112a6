package persistence_benchmark

import (
	"context"
	"fmt"
	"sort"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"github.com/dgraph-io/badger/v4"
	badgeroptions "github.com/dgraph-io/badger/v4/options"
)

// TestedSystem is a persistence library which can be benchmarked.
type TestedSystem struct {
	Name string

	// Embedded systems store their data in the directory passed to the
	// constructor, other systems connect to a server and ignore it.
	Embedded bool

	Constructor SystemConstructor
}

type SystemConstructor func(ctx context.Context, dir string) (benchmark.Adapter, error)

type SystemsConfig struct {
	TransactionSize int
	PostgresDSN     string
	MySQLDSN        string
}

// AllSystems returns every known system keyed by name.
func AllSystems(config SystemsConfig) map[string]TestedSystem {
	systems := make(map[string]TestedSystem)

	add := func(system TestedSystem) {
		systems[system.Name] = system
	}

	boltCodecs := map[string]func() ValueCodec{
		"bbolt":        func() ValueCodec { return NewNoopCodec() },
		"bbolt_snappy": func() ValueCodec { return NewSnappyCodec() },
		"bbolt_zstd":   func() ValueCodec { return NewZSTDCodec() },
	}
	for name, newCodec := range boltCodecs {
		add(TestedSystem{
			Name:     name,
			Embedded: true,
			Constructor: func(ctx context.Context, dir string) (benchmark.Adapter, error) {
				return NewBoltDatabaseSystem(dir, nil, newCodec(), config.TransactionSize)
			},
		})
	}

	badgerCompressions := map[string]badgeroptions.CompressionType{
		"badger":        badgeroptions.None,
		"badger_snappy": badgeroptions.Snappy,
		"badger_zstd":   badgeroptions.ZSTD,
	}
	for name, compression := range badgerCompressions {
		add(TestedSystem{
			Name:     name,
			Embedded: true,
			Constructor: func(ctx context.Context, dir string) (benchmark.Adapter, error) {
				return NewBadgerDatabaseSystem(dir, func(options *badger.Options) {
					options.Compression = compression
				}, config.TransactionSize)
			},
		})
	}

	margaretCodecs := map[string]func() ValueCodec{
		"margaret":        func() ValueCodec { return NewNoopCodec() },
		"margaret_snappy": func() ValueCodec { return NewSnappyCodec() },
		"margaret_zstd":   func() ValueCodec { return NewZSTDCodec() },
	}
	for name, newCodec := range margaretCodecs {
		add(TestedSystem{
			Name:     name,
			Embedded: true,
			Constructor: func(ctx context.Context, dir string) (benchmark.Adapter, error) {
				return NewMargaretDatabaseSystem(dir, newCodec())
			},
		})
	}

	add(TestedSystem{
		Name: "postgres",
		Constructor: func(ctx context.Context, dir string) (benchmark.Adapter, error) {
			if config.PostgresDSN == "" {
				return nil, errors.New("postgres dsn is not set")
			}
			return NewPostgresDatabaseSystem(ctx, config.PostgresDSN, config.TransactionSize)
		},
	})

	add(TestedSystem{
		Name: "gorm",
		Constructor: func(ctx context.Context, dir string) (benchmark.Adapter, error) {
			if config.PostgresDSN == "" {
				return nil, errors.New("postgres dsn is not set")
			}
			return NewGormDatabaseSystem(ctx, config.PostgresDSN, config.TransactionSize)
		},
	})

	add(TestedSystem{
		Name: "mysql",
		Constructor: func(ctx context.Context, dir string) (benchmark.Adapter, error) {
			if config.MySQLDSN == "" {
				return nil, errors.New("mysql dsn is not set")
			}
			return NewMySQLDatabaseSystem(ctx, config.MySQLDSN, config.TransactionSize)
		},
	})

	return systems
}

// SystemNames returns the names of all known systems sorted alphabetically.
func SystemNames() []string {
	var names []string
	for name := range AllSystems(SystemsConfig{}) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSystems returns the systems with the given names in the given order.
func GetSystems(config SystemsConfig, names []string) ([]TestedSystem, error) {
	all := AllSystems(config)

	var systems []TestedSystem
	for _, name := range names {
		system, ok := all[name]
		if !ok {
			return nil, fmt.Errorf("unknown system '%s', known systems: %v", name, SystemNames())
		}
		systems = append(systems, system)
	}
	return systems, nil
}
