package persistence_benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boreq/persistence_benchmark/benchmark"
	"github.com/boreq/persistence_benchmark/fixtures"
	"github.com/stretchr/testify/require"
)

const testTransactionSize = 7

func TestSystems(t *testing.T) {
	suite := benchmark.Suite{
		Runs:             2,
		BatchSize:        50,
		OneByOneModifier: 10,
		QueryCount:       20,
	}

	for _, testedSystem := range getTestedSystems(t) {
		t.Run(testedSystem.Name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("crud", func(t *testing.T) {
				adapter := newTestAdapter(t, testedSystem)
				path := filepath.Join(fixtures.Directory(t, ""), "results.tsv")
				b := newTestBenchmark(t, path)

				err := suite.RunCrud(ctx, b, adapter)
				require.NoError(t, err)

				header, rows := readResultFile(t, path)
				require.Len(t, rows, 2)
				require.Contains(t, header, benchmark.OneByOneCreate.String())
				require.Contains(t, header, benchmark.BatchDelete.String())

				if _, ok := adapter.(benchmark.Refresher); ok {
					require.Contains(t, header, benchmark.OneByOneRefresh.String())
				}

				entities, err := adapter.ReadAll(ctx)
				require.NoError(t, err)
				require.Empty(t, entities)
			})

			t.Run("indexed", func(t *testing.T) {
				adapter := newTestAdapter(t, testedSystem)
				path := filepath.Join(fixtures.Directory(t, ""), "results.tsv")
				b := newTestBenchmark(t, path)

				err := suite.RunIndexedQueries(ctx, b, adapter)
				require.NoError(t, err)

				header, rows := readResultFile(t, path)
				require.Len(t, rows, 2)
				require.Equal(t, []string{"time", benchmark.QueryIndexed.String()}, header)
			})

			t.Run("operations", func(t *testing.T) {
				adapter := newTestAdapter(t, testedSystem)

				entities := benchmark.BuildSimpleEntities(20)
				require.NoError(t, adapter.BatchInsert(ctx, entities))

				entities[3].String = "updated"
				require.NoError(t, adapter.UpdateOneByOne(ctx, entities[3:4]))

				loaded, err := adapter.ReadAll(ctx)
				require.NoError(t, err)
				require.ElementsMatch(t, entities, loaded)

				indexed, strings := benchmark.BuildIndexedStringEntities(30)
				require.NoError(t, adapter.InsertIndexed(ctx, indexed))

				result, err := adapter.QueryIndexed(ctx, strings[17])
				require.NoError(t, err)
				require.Equal(t, []benchmark.IndexedStringEntity{indexed[17]}, result)

				result, err = adapter.QueryIndexed(ctx, "missing")
				require.NoError(t, err)
				require.Empty(t, result)

				require.NoError(t, adapter.DeleteAllIndexed(ctx))

				result, err = adapter.QueryIndexed(ctx, strings[17])
				require.NoError(t, err)
				require.Empty(t, result)
			})
		})
	}
}

func TestRefreshOneByOne(t *testing.T) {
	for _, testedSystem := range getTestedSystems(t) {
		t.Run(testedSystem.Name, func(t *testing.T) {
			ctx := context.Background()
			adapter := newTestAdapter(t, testedSystem)

			refresher, ok := adapter.(benchmark.Refresher)
			if !ok {
				t.Skip("refreshing is not supported")
			}

			entities := benchmark.BuildSimpleEntities(5)
			require.NoError(t, adapter.InsertOneByOne(ctx, entities))

			stale := make([]benchmark.SimpleEntity, len(entities))
			for i := range stale {
				stale[i] = benchmark.SimpleEntity{ID: entities[i].ID}
			}

			require.NoError(t, refresher.RefreshOneByOne(ctx, stale))
			require.Equal(t, entities, stale)
		})
	}
}

func TestSyncBeforeRead(t *testing.T) {
	for _, testedSystem := range getTestedSystems(t) {
		t.Run(testedSystem.Name, func(t *testing.T) {
			ctx := context.Background()
			adapter := newTestAdapter(t, testedSystem)

			syncer, ok := adapter.(benchmark.Syncer)
			if !ok {
				t.Skip("syncing is not supported")
			}

			entities := benchmark.BuildSimpleEntities(5)
			require.NoError(t, adapter.BatchInsert(ctx, entities))
			require.NoError(t, syncer.Sync())

			loaded, err := adapter.ReadAll(ctx)
			require.NoError(t, err)
			require.ElementsMatch(t, entities, loaded)
		})
	}
}

func TestGetSystems(t *testing.T) {
	systems, err := GetSystems(SystemsConfig{TransactionSize: 10}, []string{"margaret", "bbolt"})
	require.NoError(t, err)
	require.Len(t, systems, 2)
	require.Equal(t, "margaret", systems[0].Name)
	require.Equal(t, "bbolt", systems[1].Name)

	_, err = GetSystems(SystemsConfig{TransactionSize: 10}, []string{"sqlite"})
	require.Error(t, err)

	require.Contains(t, SystemNames(), "postgres")
	require.Contains(t, SystemNames(), "badger_zstd")
}

func TestServerSystemsRequireDSN(t *testing.T) {
	systems, err := GetSystems(SystemsConfig{TransactionSize: 10}, []string{"postgres", "gorm", "mysql"})
	require.NoError(t, err)

	for _, system := range systems {
		require.False(t, system.Embedded)
		_, err := system.Constructor(context.Background(), "")
		require.Error(t, err)
	}
}

func TestSimpleEntityEncoding(t *testing.T) {
	entity := benchmark.NewSimpleEntity(-12)
	entity.Bool = false

	b := marshalSimpleEntity(entity)

	decoded, err := unmarshalSimpleEntity(b)
	require.NoError(t, err)
	require.Equal(t, entity, decoded)

	_, err = unmarshalSimpleEntity(b[:len(b)-1])
	require.Error(t, err)
}

func TestIndexedStringEntityEncoding(t *testing.T) {
	entity := benchmark.IndexedStringEntity{ID: 5, IndexedString: "some string"}

	b := marshalIndexedStringEntity(entity)

	decoded, err := unmarshalIndexedStringEntity(b)
	require.NoError(t, err)
	require.Equal(t, entity, decoded)

	_, err = unmarshalIndexedStringEntity(b[:3])
	require.Error(t, err)
}

func TestIDEncodingPreservesOrder(t *testing.T) {
	require.Equal(t, -1, strings.Compare(string(marshalID(1)), string(marshalID(256))))

	id, err := unmarshalID(marshalID(1234))
	require.NoError(t, err)
	require.Equal(t, int64(1234), id)

	_, err = unmarshalID([]byte{1})
	require.Error(t, err)
}

func TestCodecs(t *testing.T) {
	codecs := map[string]ValueCodec{
		"noop":   NewNoopCodec(),
		"snappy": NewSnappyCodec(),
		"zstd":   NewZSTDCodec(),
	}

	value := fixtures.RandomBytes(1000)

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			decoded, err := codec.Decode(codec.Encode(value))
			require.NoError(t, err)
			require.Equal(t, value, decoded)
		})
	}

	_, err := NewSnappyCodec().Decode([]byte("not snappy"))
	require.Error(t, err)

	_, err = NewZSTDCodec().Decode([]byte("not zstd"))
	require.Error(t, err)
}

func TestBatch(t *testing.T) {
	require.Equal(t,
		[]int{
			100,
			100,
		},
		batch(200, 100),
	)

	require.Equal(t,
		[]int{
			100,
			100,
			50,
		},
		batch(250, 100),
	)

	require.Equal(t,
		[]int{
			33,
		},
		batch(33, 100),
	)

	require.Equal(t,
		[]int{
			33,
			33,
			33,
			1,
		},
		batch(100, 33),
	)
}

func TestChunks(t *testing.T) {
	require.Equal(t,
		[][]int{
			{1, 2},
			{3, 4},
			{5},
		},
		chunks([]int{1, 2, 3, 4, 5}, 2),
	)

	require.Equal(t,
		[][]int{
			{},
		},
		chunks([]int{}, 2),
	)
}

func BenchmarkPerformance(b *testing.B) {
	testedSystems := getBenchmarkedSystems(b)
	operations := getOperations()

	for _, testedSystem := range testedSystems {
		b.Run(testedSystem.Name, func(b *testing.B) {
			for _, operation := range operations {
				b.Run(operation.Kind.String(), func(b *testing.B) {
					ctx := context.Background()
					adapter := newTestAdapter(b, testedSystem)

					if operation.SetupFunc != nil {
						if err := operation.SetupFunc(ctx, adapter); err != nil {
							b.Fatal(err)
						}
					}

					b.ResetTimer()

					for i := 0; i < b.N; i++ {
						if err := operation.Func(ctx, adapter); err != nil {
							b.Fatal(err)
						}
					}

					b.StopTimer()
				})
			}
		})
	}
}

type Operation struct {
	Kind      benchmark.Kind
	SetupFunc OperationFunc
	Func      OperationFunc
}

type OperationFunc func(ctx context.Context, adapter benchmark.Adapter) error

func getOperations() []Operation {
	const numberOfEntities = 1000
	const numberOfQueries = 100

	simpleEntities := benchmark.BuildSimpleEntities(numberOfEntities)
	indexedEntities, indexedStrings := benchmark.BuildIndexedStringEntities(numberOfEntities)
	indices := fixtures.FixedRandomIndices(numberOfQueries, numberOfEntities-1)

	return []Operation{
		{
			Kind: benchmark.BatchCreate,
			Func: func(ctx context.Context, adapter benchmark.Adapter) error {
				if err := adapter.BatchInsert(ctx, simpleEntities); err != nil {
					return err
				}
				return adapter.DeleteAll(ctx)
			},
		},
		{
			Kind: benchmark.BatchRead,
			SetupFunc: func(ctx context.Context, adapter benchmark.Adapter) error {
				return adapter.BatchInsert(ctx, simpleEntities)
			},
			Func: func(ctx context.Context, adapter benchmark.Adapter) error {
				entities, err := adapter.ReadAll(ctx)
				if err != nil {
					return err
				}
				if len(entities) != numberOfEntities {
					return fmt.Errorf("read %d entities", len(entities))
				}
				return nil
			},
		},
		{
			Kind: benchmark.QueryIndexed,
			SetupFunc: func(ctx context.Context, adapter benchmark.Adapter) error {
				return adapter.InsertIndexed(ctx, indexedEntities)
			},
			Func: func(ctx context.Context, adapter benchmark.Adapter) error {
				for _, index := range indices {
					result, err := adapter.QueryIndexed(ctx, indexedStrings[index])
					if err != nil {
						return err
					}
					if len(result) == 0 {
						return fmt.Errorf("nothing found for index %d", index)
					}
				}
				return nil
			},
		},
	}
}

// getTestedSystems returns embedded systems and server systems for which a
// DSN was provided in the environment.
func getTestedSystems(tb testing.TB) []TestedSystem {
	config := SystemsConfig{
		TransactionSize: testTransactionSize,
		PostgresDSN:     os.Getenv("PERF_POSTGRES_DSN"),
		MySQLDSN:        os.Getenv("PERF_MYSQL_DSN"),
	}

	var names []string
	for _, system := range AllSystems(config) {
		if system.Embedded {
			names = append(names, system.Name)
		}
	}

	if config.PostgresDSN != "" {
		names = append(names, "postgres", "gorm")
	} else {
		tb.Log("PERF_POSTGRES_DSN is not set")
	}

	if config.MySQLDSN != "" {
		names = append(names, "mysql")
	} else {
		tb.Log("PERF_MYSQL_DSN is not set")
	}

	systems, err := GetSystems(config, names)
	if err != nil {
		tb.Fatal(err)
	}
	return systems
}

func getBenchmarkedSystems(tb testing.TB) []TestedSystem {
	var v []TestedSystem

	for _, system := range getTestedSystems(tb) {
		env := "ENABLE_" + strings.ToUpper(system.Name)
		if os.Getenv(env) == "" {
			tb.Logf("%s is not set", env)
			continue
		}
		v = append(v, system)
	}

	return v
}

func newTestAdapter(tb testing.TB, system TestedSystem) benchmark.Adapter {
	dir := fixtures.Directory(tb, os.Getenv("STORAGE_DIR"))

	adapter, err := system.Constructor(context.Background(), dir)
	if err != nil {
		tb.Fatal(err)
	}

	tb.Cleanup(func() {
		if err := adapter.Close(); err != nil {
			tb.Fatal(err)
		}
	})

	return adapter
}

func newTestBenchmark(t *testing.T, path string) *benchmark.Benchmark {
	sink, err := benchmark.OpenResultFile(path, benchmark.DefaultSeparator)
	require.NoError(t, err)

	b, err := benchmark.NewBenchmark(sink, t.Name(), benchmark.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	return b
}

func readResultFile(t *testing.T, path string) ([]string, [][]string) {
	contents, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(string(contents), "\n"), "\n")
	require.NotEmpty(t, lines)

	var rows [][]string
	for _, line := range lines[1:] {
		rows = append(rows, strings.Split(line, "\t"))
	}
	return strings.Split(lines[0], "\t"), rows
}
