package persistence_benchmark

import (
	"bytes"
	"context"
	"path"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"go.etcd.io/bbolt"
)

var (
	boltSimpleBucketName  = []byte("simple_entities")
	boltIndexedBucketName = []byte("indexed_string_entities")
	boltIndexBucketName   = []byte("indexed_string_index")
)

// indexSeparator separates the indexed value from the id in index keys.
const indexSeparator = 0x00

type BoltDatabaseSystem struct {
	db              *bbolt.DB
	codec           ValueCodec
	transactionSize int
}

func NewBoltDatabaseSystem(dir string, options *bbolt.Options, codec ValueCodec, transactionSize int) (*BoltDatabaseSystem, error) {
	if transactionSize <= 0 {
		return nil, errors.New("transaction size must be positive")
	}

	f := path.Join(dir, "database.bolt")
	db, err := bbolt.Open(f, 0600, options)
	if err != nil {
		return nil, errors.Wrap(err, "error opening the database")
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{boltSimpleBucketName, boltIndexedBucketName, boltIndexBucketName} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrap(err, "error creating a bucket")
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error creating buckets")
	}

	return &BoltDatabaseSystem{
		db:              db,
		codec:           codec,
		transactionSize: transactionSize,
	}, nil
}

func (b *BoltDatabaseSystem) InsertOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		if err := b.db.Update(func(tx *bbolt.Tx) error {
			return b.putSimpleEntity(tx, entity)
		}); err != nil {
			return errors.Wrap(err, "error calling update")
		}
	}
	return nil
}

func (b *BoltDatabaseSystem) UpdateOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return b.InsertOneByOne(ctx, entities)
}

func (b *BoltDatabaseSystem) RefreshOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for i := range entities {
		if err := b.db.View(func(tx *bbolt.Tx) error {
			value := tx.Bucket(boltSimpleBucketName).Get(marshalID(entities[i].ID))
			if value == nil {
				return errors.New("entity not found")
			}

			entity, err := b.decodeSimpleEntity(value)
			if err != nil {
				return errors.Wrap(err, "error decoding the entity")
			}

			entities[i] = entity
			return nil
		}); err != nil {
			return errors.Wrap(err, "error calling view")
		}
	}
	return nil
}

func (b *BoltDatabaseSystem) BatchInsert(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, chunk := range chunks(entities, b.transactionSize) {
		if err := b.db.Update(func(tx *bbolt.Tx) error {
			for _, entity := range chunk {
				if err := b.putSimpleEntity(tx, entity); err != nil {
					return errors.Wrap(err, "error putting the entity")
				}
			}
			return nil
		}); err != nil {
			return errors.Wrap(err, "error calling update")
		}
	}
	return nil
}

func (b *BoltDatabaseSystem) BatchUpdate(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return b.BatchInsert(ctx, entities)
}

func (b *BoltDatabaseSystem) ReadAll(ctx context.Context) ([]benchmark.SimpleEntity, error) {
	var entities []benchmark.SimpleEntity

	if err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltSimpleBucketName).ForEach(func(k, v []byte) error {
			entity, err := b.decodeSimpleEntity(v)
			if err != nil {
				return errors.Wrap(err, "error decoding the entity")
			}

			entities = append(entities, entity)
			return nil
		})
	}); err != nil {
		return nil, errors.Wrap(err, "error calling view")
	}

	return entities, nil
}

func (b *BoltDatabaseSystem) DeleteAll(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return recreateBoltBucket(tx, boltSimpleBucketName)
	})
}

func (b *BoltDatabaseSystem) InsertIndexed(ctx context.Context, entities []benchmark.IndexedStringEntity) error {
	for _, chunk := range chunks(entities, b.transactionSize) {
		if err := b.db.Update(func(tx *bbolt.Tx) error {
			entitiesBucket := tx.Bucket(boltIndexedBucketName)
			indexBucket := tx.Bucket(boltIndexBucketName)

			for _, entity := range chunk {
				id := marshalID(entity.ID)

				if err := entitiesBucket.Put(id, b.codec.Encode(marshalIndexedStringEntity(entity))); err != nil {
					return errors.Wrap(err, "error putting the entity")
				}

				if err := indexBucket.Put(indexKey(entity.IndexedString, id), nil); err != nil {
					return errors.Wrap(err, "error putting the index entry")
				}
			}
			return nil
		}); err != nil {
			return errors.Wrap(err, "error calling update")
		}
	}
	return nil
}

func (b *BoltDatabaseSystem) QueryIndexed(ctx context.Context, value string) ([]benchmark.IndexedStringEntity, error) {
	var result []benchmark.IndexedStringEntity

	if err := b.db.View(func(tx *bbolt.Tx) error {
		entitiesBucket := tx.Bucket(boltIndexedBucketName)
		prefix := indexPrefix(value)

		c := tx.Bucket(boltIndexBucketName).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			v := entitiesBucket.Get(k[len(prefix):])
			if v == nil {
				return errors.New("indexed entity not found")
			}

			decoded, err := b.codec.Decode(v)
			if err != nil {
				return errors.Wrap(err, "error decoding the value")
			}

			entity, err := unmarshalIndexedStringEntity(decoded)
			if err != nil {
				return errors.Wrap(err, "error unmarshaling the entity")
			}

			result = append(result, entity)
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "error calling view")
	}

	return result, nil
}

func (b *BoltDatabaseSystem) DeleteAllIndexed(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := recreateBoltBucket(tx, boltIndexedBucketName); err != nil {
			return errors.Wrap(err, "error recreating the entities bucket")
		}
		return recreateBoltBucket(tx, boltIndexBucketName)
	})
}

func (b *BoltDatabaseSystem) Sync() error {
	return b.db.Sync()
}

func (b *BoltDatabaseSystem) Close() error {
	return b.db.Close()
}

func (b *BoltDatabaseSystem) putSimpleEntity(tx *bbolt.Tx, entity benchmark.SimpleEntity) error {
	return tx.Bucket(boltSimpleBucketName).Put(marshalID(entity.ID), b.codec.Encode(marshalSimpleEntity(entity)))
}

func (b *BoltDatabaseSystem) decodeSimpleEntity(value []byte) (benchmark.SimpleEntity, error) {
	decoded, err := b.codec.Decode(value)
	if err != nil {
		return benchmark.SimpleEntity{}, errors.Wrap(err, "error decoding the value")
	}
	return unmarshalSimpleEntity(decoded)
}

func recreateBoltBucket(tx *bbolt.Tx, name []byte) error {
	if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
		return errors.Wrap(err, "error deleting the bucket")
	}

	if _, err := tx.CreateBucket(name); err != nil {
		return errors.Wrap(err, "error creating the bucket")
	}

	return nil
}

func indexPrefix(value string) []byte {
	prefix := make([]byte, 0, len(value)+1)
	prefix = append(prefix, value...)
	return append(prefix, indexSeparator)
}

func indexKey(value string, id []byte) []byte {
	return append(indexPrefix(value), id...)
}
