package persistence_benchmark

import (
	"context"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"github.com/dgraph-io/badger/v4"
)

var (
	badgerSimplePrefix  = []byte("simple:")
	badgerIndexedPrefix = []byte("indexed:")
	badgerIndexPrefix   = []byte("index:")
)

type BadgerDatabaseSystem struct {
	db              *badger.DB
	transactionSize int
}

func NewBadgerDatabaseSystem(dir string, fn func(*badger.Options), transactionSize int) (*BadgerDatabaseSystem, error) {
	if transactionSize <= 0 {
		return nil, errors.New("transaction size must be positive")
	}

	opt := badger.
		DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)

	if fn != nil {
		fn(&opt)
	}

	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrap(err, "error opening the database")
	}

	return &BadgerDatabaseSystem{
		db:              db,
		transactionSize: transactionSize,
	}, nil
}

func (b *BadgerDatabaseSystem) InsertOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		if err := b.db.Update(func(tx *badger.Txn) error {
			return tx.Set(badgerSimpleKey(entity.ID), marshalSimpleEntity(entity))
		}); err != nil {
			return errors.Wrap(err, "error calling update")
		}
	}
	return nil
}

func (b *BadgerDatabaseSystem) UpdateOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return b.InsertOneByOne(ctx, entities)
}

func (b *BadgerDatabaseSystem) RefreshOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for i := range entities {
		if err := b.db.View(func(tx *badger.Txn) error {
			item, err := tx.Get(badgerSimpleKey(entities[i].ID))
			if err != nil {
				return errors.Wrap(err, "error calling get")
			}

			return item.Value(func(val []byte) error {
				entity, err := unmarshalSimpleEntity(val)
				if err != nil {
					return errors.Wrap(err, "error unmarshaling the entity")
				}

				entities[i] = entity
				return nil
			})
		}); err != nil {
			return errors.Wrap(err, "error calling view")
		}
	}
	return nil
}

func (b *BadgerDatabaseSystem) BatchInsert(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, chunk := range chunks(entities, b.transactionSize) {
		if err := b.db.Update(func(tx *badger.Txn) error {
			for _, entity := range chunk {
				if err := tx.Set(badgerSimpleKey(entity.ID), marshalSimpleEntity(entity)); err != nil {
					return errors.Wrap(err, "error calling set")
				}
			}
			return nil
		}); err != nil {
			return errors.Wrap(err, "error calling update")
		}
	}
	return nil
}

func (b *BadgerDatabaseSystem) BatchUpdate(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return b.BatchInsert(ctx, entities)
}

func (b *BadgerDatabaseSystem) ReadAll(ctx context.Context) ([]benchmark.SimpleEntity, error) {
	var entities []benchmark.SimpleEntity

	if err := b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerSimplePrefix

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				entity, err := unmarshalSimpleEntity(val)
				if err != nil {
					return errors.Wrap(err, "error unmarshaling the entity")
				}

				entities = append(entities, entity)
				return nil
			}); err != nil {
				return errors.Wrap(err, "error calling item value")
			}
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "error calling view")
	}

	return entities, nil
}

func (b *BadgerDatabaseSystem) DeleteAll(ctx context.Context) error {
	if err := b.db.DropPrefix(badgerSimplePrefix); err != nil {
		return errors.Wrap(err, "error calling drop prefix")
	}
	return nil
}

func (b *BadgerDatabaseSystem) InsertIndexed(ctx context.Context, entities []benchmark.IndexedStringEntity) error {
	for _, chunk := range chunks(entities, b.transactionSize) {
		if err := b.db.Update(func(tx *badger.Txn) error {
			for _, entity := range chunk {
				id := marshalID(entity.ID)

				if err := tx.Set(badgerKey(badgerIndexedPrefix, id), marshalIndexedStringEntity(entity)); err != nil {
					return errors.Wrap(err, "error setting the entity")
				}

				if err := tx.Set(badgerKey(badgerIndexPrefix, indexKey(entity.IndexedString, id)), []byte{}); err != nil {
					return errors.Wrap(err, "error setting the index entry")
				}
			}
			return nil
		}); err != nil {
			return errors.Wrap(err, "error calling update")
		}
	}
	return nil
}

func (b *BadgerDatabaseSystem) QueryIndexed(ctx context.Context, value string) ([]benchmark.IndexedStringEntity, error) {
	var result []benchmark.IndexedStringEntity

	if err := b.db.View(func(tx *badger.Txn) error {
		prefix := badgerKey(badgerIndexPrefix, indexPrefix(value))

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id := it.Item().KeyCopy(nil)[len(prefix):]

			item, err := tx.Get(badgerKey(badgerIndexedPrefix, id))
			if err != nil {
				return errors.Wrap(err, "error calling get")
			}

			if err := item.Value(func(val []byte) error {
				entity, err := unmarshalIndexedStringEntity(val)
				if err != nil {
					return errors.Wrap(err, "error unmarshaling the entity")
				}

				result = append(result, entity)
				return nil
			}); err != nil {
				return errors.Wrap(err, "error calling item value")
			}
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "error calling view")
	}

	return result, nil
}

func (b *BadgerDatabaseSystem) DeleteAllIndexed(ctx context.Context) error {
	if err := b.db.DropPrefix(badgerIndexedPrefix, badgerIndexPrefix); err != nil {
		return errors.Wrap(err, "error calling drop prefix")
	}
	return nil
}

func (b *BadgerDatabaseSystem) Sync() error {
	return b.db.Sync()
}

func (b *BadgerDatabaseSystem) Close() error {
	return b.db.Close()
}

func badgerSimpleKey(id int64) []byte {
	return badgerKey(badgerSimplePrefix, marshalID(id))
}

func badgerKey(prefix []byte, key []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}
