package benchmark

import (
	"context"
	"fmt"
	"runtime"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/fixtures"
)

// Adapter translates the benchmark operations into calls of a specific
// persistence library. The Suite measures the calls, an adapter only performs
// them. Adapters own the lifecycle of their storage.
type Adapter interface {
	// InsertOneByOne inserts every entity using a separate call.
	InsertOneByOne(ctx context.Context, entities []SimpleEntity) error

	// UpdateOneByOne updates every entity using a separate call.
	UpdateOneByOne(ctx context.Context, entities []SimpleEntity) error

	// BatchInsert inserts all entities at once, using transactions if
	// possible.
	BatchInsert(ctx context.Context, entities []SimpleEntity) error

	// BatchUpdate updates all entities at once, using transactions if
	// possible.
	BatchUpdate(ctx context.Context, entities []SimpleEntity) error

	// ReadAll loads all stored simple entities.
	ReadAll(ctx context.Context) ([]SimpleEntity, error)

	// DeleteAll removes all simple entities.
	DeleteAll(ctx context.Context) error

	// InsertIndexed inserts all entities at once.
	InsertIndexed(ctx context.Context, entities []IndexedStringEntity) error

	// QueryIndexed returns all entities with the given indexed string.
	QueryIndexed(ctx context.Context, value string) ([]IndexedStringEntity, error)

	// DeleteAllIndexed removes all indexed entities.
	DeleteAllIndexed(ctx context.Context) error

	Close() error
}

// Refresher is implemented by adapters which can reload entities from the
// storage one by one.
type Refresher interface {
	RefreshOneByOne(ctx context.Context, entities []SimpleEntity) error
}

// Syncer is implemented by adapters which buffer writes. Sync is called
// before entities written by a batch run are read back and is not measured.
type Syncer interface {
	Sync() error
}

const (
	DefaultRuns             = 8
	DefaultBatchSize        = 10000
	DefaultOneByOneModifier = 10
	DefaultQueryCount       = 1000

	CrudSuiteName           = "1by1-and-batch"
	IndexedQueriesSuiteName = "indexed-query"
)

// Suite drives an adapter through the benchmark runs.
type Suite struct {
	Runs             int
	BatchSize        int
	OneByOneModifier int
	QueryCount       int
}

func NewSuite() Suite {
	return Suite{
		Runs:             DefaultRuns,
		BatchSize:        DefaultBatchSize,
		OneByOneModifier: DefaultOneByOneModifier,
		QueryCount:       DefaultQueryCount,
	}
}

func (s Suite) OneByOneCount() int {
	return s.BatchSize / s.OneByOneModifier
}

// RunCrud performs one-by-one and batch create, update, read and delete runs.
// Every run is committed and a summary is logged at the end.
func (s Suite) RunCrud(ctx context.Context, b *Benchmark, adapter Adapter) error {
	if err := s.validate(); err != nil {
		return errors.Wrap(err, "invalid suite")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b.Log("--------One-by-one/Batch CRUD: Start")
	for i := 0; i < s.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.Log(fmt.Sprintf("----Run %d of %d", i+1, s.Runs))

		if err := s.oneByOneCrudRun(ctx, b, adapter, s.OneByOneCount()); err != nil {
			return errors.Wrap(err, "error performing one by one run")
		}

		if err := s.batchCrudRun(ctx, b, adapter, s.BatchSize); err != nil {
			return errors.Wrap(err, "error performing batch run")
		}

		if err := b.Commit(); err != nil {
			return errors.Wrap(err, "error committing")
		}
	}
	b.LogSummary()
	b.Log("--------One-by-one/Batch CRUD: End")

	return nil
}

// RunIndexedQueries performs runs querying entities by an indexed string.
// Every run is committed and a summary is logged at the end.
func (s Suite) RunIndexedQueries(ctx context.Context, b *Benchmark, adapter Adapter) error {
	if err := s.validate(); err != nil {
		return errors.Wrap(err, "invalid suite")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	b.Log("--------Indexed Queries: Start")
	for i := 0; i < s.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.Log(fmt.Sprintf("----Run %d of %d", i+1, s.Runs))

		if err := s.indexedQueriesRun(ctx, b, adapter, s.BatchSize); err != nil {
			return errors.Wrap(err, "error performing indexed queries run")
		}

		if err := b.Commit(); err != nil {
			return errors.Wrap(err, "error committing")
		}
	}
	b.LogSummary()
	b.Log("--------Indexed Queries: End")

	return nil
}

func (s Suite) oneByOneCrudRun(ctx context.Context, b *Benchmark, adapter Adapter, count int) error {
	entities := BuildSimpleEntities(count)

	if err := measure(b, OneByOneCreate, func() error {
		return adapter.InsertOneByOne(ctx, entities)
	}); err != nil {
		return errors.Wrap(err, "error inserting")
	}

	if err := measure(b, OneByOneUpdate, func() error {
		return adapter.UpdateOneByOne(ctx, entities)
	}); err != nil {
		return errors.Wrap(err, "error updating")
	}

	if refresher, ok := adapter.(Refresher); ok {
		if err := measure(b, OneByOneRefresh, func() error {
			return refresher.RefreshOneByOne(ctx, entities)
		}); err != nil {
			return errors.Wrap(err, "error refreshing")
		}
	}

	if err := adapter.DeleteAll(ctx); err != nil {
		return errors.Wrap(err, "error deleting")
	}

	return nil
}

func (s Suite) batchCrudRun(ctx context.Context, b *Benchmark, adapter Adapter, count int) error {
	entities := BuildSimpleEntities(count)

	if err := measure(b, BatchCreate, func() error {
		return adapter.BatchInsert(ctx, entities)
	}); err != nil {
		return errors.Wrap(err, "error inserting")
	}

	if err := measure(b, BatchUpdate, func() error {
		return adapter.BatchUpdate(ctx, entities)
	}); err != nil {
		return errors.Wrap(err, "error updating")
	}

	if syncer, ok := adapter.(Syncer); ok {
		if err := syncer.Sync(); err != nil {
			return errors.Wrap(err, "error syncing")
		}
	}

	var reloaded []SimpleEntity
	if err := measure(b, BatchRead, func() error {
		var err error
		reloaded, err = adapter.ReadAll(ctx)
		return err
	}); err != nil {
		return errors.Wrap(err, "error reading")
	}

	if len(reloaded) != count {
		return fmt.Errorf("read %d entities, expected %d", len(reloaded), count)
	}

	if err := measure(b, BatchAccess, func() error {
		accessSimpleEntities(reloaded)
		return nil
	}); err != nil {
		return errors.Wrap(err, "error accessing")
	}

	if err := measure(b, BatchDelete, func() error {
		return adapter.DeleteAll(ctx)
	}); err != nil {
		return errors.Wrap(err, "error deleting")
	}

	return nil
}

func (s Suite) indexedQueriesRun(ctx context.Context, b *Benchmark, adapter Adapter, count int) error {
	entities, strings := BuildIndexedStringEntities(count)
	b.Log("Built entities.")

	if err := adapter.InsertIndexed(ctx, entities); err != nil {
		return errors.Wrap(err, "error inserting")
	}
	b.Log("Inserted entities.")

	indices := fixtures.FixedRandomIndices(s.QueryCount, count-1)

	if err := measure(b, QueryIndexed, func() error {
		for _, index := range indices {
			result, err := adapter.QueryIndexed(ctx, strings[index])
			if err != nil {
				return errors.Wrap(err, "error querying")
			}
			if len(result) == 0 {
				return fmt.Errorf("no entities found for index %d", index)
			}
			accessIndexedStringEntities(result)
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "error querying")
	}

	if err := adapter.DeleteAllIndexed(ctx); err != nil {
		return errors.Wrap(err, "error deleting")
	}
	b.Log("Deleted all entities.")

	return nil
}

func (s Suite) validate() error {
	if s.Runs <= 0 {
		return errors.New("runs must be positive")
	}
	if s.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}
	if s.OneByOneModifier <= 0 || s.OneByOneCount() <= 0 {
		return errors.New("one by one count must be positive")
	}
	if s.QueryCount <= 0 {
		return errors.New("query count must be positive")
	}
	return nil
}

// measure wraps fn in a single Start and Stop pair. Failed operations are not
// recorded as their timings would be meaningless.
func measure(b *Benchmark, kind Kind, fn func() error) error {
	if err := b.Start(); err != nil {
		return errors.Wrap(err, "error starting the clock")
	}

	if err := fn(); err != nil {
		b.abort()
		return err
	}

	if err := b.Stop(kind); err != nil {
		return errors.Wrap(err, "error stopping the clock")
	}

	return nil
}

// accessSink keeps the compiler from eliminating field accesses.
var accessSink int64

func accessSimpleEntities(entities []SimpleEntity) {
	var sum int64
	for i := range entities {
		e := &entities[i]
		sum += e.ID
		if e.Bool {
			sum++
		}
		sum += int64(e.Byte)
		sum += int64(e.Short)
		sum += int64(e.Int)
		sum += e.Long
		if e.Float > 0 {
			sum++
		}
		if e.Double > 0 {
			sum++
		}
		sum += int64(len(e.String))
		sum += int64(len(e.ByteArray))
	}
	accessSink = sum
}

func accessIndexedStringEntities(entities []IndexedStringEntity) {
	var sum int64
	for i := range entities {
		sum += entities[i].ID
		sum += int64(len(entities[i].IndexedString))
	}
	accessSink = sum
}
