package persistence_benchmark

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
	"go.cryptoscope.co/margaret"
	"go.cryptoscope.co/margaret/offset2"
)

// MargaretDatabaseSystem stores entities in append-only logs. Updates append
// a new version of an entity, the latest sequence of every entity and the
// string index are kept in memory. Deleting all entities recreates the log.
type MargaretDatabaseSystem struct {
	dir   string
	codec ValueCodec

	simple     *offset2.OffsetLog
	simpleSeqs map[int64]int64

	indexed     *offset2.OffsetLog
	indexedSeqs map[string][]int64
}

const (
	margaretSimpleLogName  = "simple"
	margaretIndexedLogName = "indexed"
)

func NewMargaretDatabaseSystem(dir string, codec ValueCodec) (*MargaretDatabaseSystem, error) {
	m := &MargaretDatabaseSystem{
		dir:         dir,
		codec:       codec,
		simpleSeqs:  make(map[int64]int64),
		indexedSeqs: make(map[string][]int64),
	}

	var err error

	m.simple, err = m.openLog(margaretSimpleLogName)
	if err != nil {
		return nil, errors.Wrap(err, "error opening the simple entities log")
	}

	m.indexed, err = m.openLog(margaretIndexedLogName)
	if err != nil {
		m.simple.Close()
		return nil, errors.Wrap(err, "error opening the indexed entities log")
	}

	return m, nil
}

func (m *MargaretDatabaseSystem) InsertOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	for _, entity := range entities {
		if err := m.appendSimpleEntity(entity); err != nil {
			return errors.Wrap(err, "error appending the entity")
		}
	}
	return nil
}

func (m *MargaretDatabaseSystem) UpdateOneByOne(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return m.InsertOneByOne(ctx, entities)
}

func (m *MargaretDatabaseSystem) BatchInsert(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return m.InsertOneByOne(ctx, entities)
}

func (m *MargaretDatabaseSystem) BatchUpdate(ctx context.Context, entities []benchmark.SimpleEntity) error {
	return m.InsertOneByOne(ctx, entities)
}

func (m *MargaretDatabaseSystem) ReadAll(ctx context.Context) ([]benchmark.SimpleEntity, error) {
	ids := make([]int64, 0, len(m.simpleSeqs))
	for id := range m.simpleSeqs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	entities := make([]benchmark.SimpleEntity, 0, len(ids))
	for _, id := range ids {
		v, err := m.simple.Get(m.simpleSeqs[id])
		if err != nil {
			return nil, errors.Wrap(err, "error calling get")
		}

		entity, err := unmarshalSimpleEntity(v.([]byte))
		if err != nil {
			return nil, errors.Wrap(err, "error unmarshaling the entity")
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

func (m *MargaretDatabaseSystem) DeleteAll(ctx context.Context) error {
	log, err := m.recreateLog(m.simple, margaretSimpleLogName)
	if err != nil {
		return errors.Wrap(err, "error recreating the log")
	}

	m.simple = log
	clear(m.simpleSeqs)
	return nil
}

func (m *MargaretDatabaseSystem) InsertIndexed(ctx context.Context, entities []benchmark.IndexedStringEntity) error {
	for _, entity := range entities {
		seq, err := m.indexed.Append(marshalIndexedStringEntity(entity))
		if err != nil {
			return errors.Wrap(err, "error calling append")
		}

		m.indexedSeqs[entity.IndexedString] = append(m.indexedSeqs[entity.IndexedString], seq)
	}
	return nil
}

func (m *MargaretDatabaseSystem) QueryIndexed(ctx context.Context, value string) ([]benchmark.IndexedStringEntity, error) {
	var result []benchmark.IndexedStringEntity

	for _, seq := range m.indexedSeqs[value] {
		v, err := m.indexed.Get(seq)
		if err != nil {
			return nil, errors.Wrap(err, "error calling get")
		}

		entity, err := unmarshalIndexedStringEntity(v.([]byte))
		if err != nil {
			return nil, errors.Wrap(err, "error unmarshaling the entity")
		}

		result = append(result, entity)
	}

	return result, nil
}

func (m *MargaretDatabaseSystem) DeleteAllIndexed(ctx context.Context) error {
	log, err := m.recreateLog(m.indexed, margaretIndexedLogName)
	if err != nil {
		return errors.Wrap(err, "error recreating the log")
	}

	m.indexed = log
	clear(m.indexedSeqs)
	return nil
}

func (m *MargaretDatabaseSystem) Close() error {
	simpleErr := m.simple.Close()
	indexedErr := m.indexed.Close()

	if simpleErr != nil {
		return errors.Wrap(simpleErr, "error closing the simple entities log")
	}

	if indexedErr != nil {
		return errors.Wrap(indexedErr, "error closing the indexed entities log")
	}

	return nil
}

func (m *MargaretDatabaseSystem) appendSimpleEntity(entity benchmark.SimpleEntity) error {
	seq, err := m.simple.Append(marshalSimpleEntity(entity))
	if err != nil {
		return errors.Wrap(err, "error calling append")
	}

	m.simpleSeqs[entity.ID] = seq
	return nil
}

func (m *MargaretDatabaseSystem) openLog(name string) (*offset2.OffsetLog, error) {
	dir := filepath.Join(m.dir, name)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, "error creating the directory")
	}

	log, err := offset2.Open(dir, newMargaretCodec(m.codec))
	if err != nil {
		return nil, errors.Wrap(err, "error calling open")
	}

	return log, nil
}

func (m *MargaretDatabaseSystem) recreateLog(log *offset2.OffsetLog, name string) (*offset2.OffsetLog, error) {
	if err := log.Close(); err != nil {
		return nil, errors.Wrap(err, "error closing the log")
	}

	if err := os.RemoveAll(filepath.Join(m.dir, name)); err != nil {
		return nil, errors.Wrap(err, "error removing the log")
	}

	return m.openLog(name)
}

type margaretCodec struct {
	codec ValueCodec
}

func newMargaretCodec(codec ValueCodec) *margaretCodec {
	return &margaretCodec{codec: codec}
}

func (m margaretCodec) Marshal(value interface{}) ([]byte, error) {
	return m.codec.Encode(value.([]byte)), nil
}

func (m margaretCodec) Unmarshal(data []byte) (interface{}, error) {
	return m.codec.Decode(data)
}

func (m margaretCodec) NewDecoder(reader io.Reader) margaret.Decoder {
	return newMargaretDecoder(reader, m.codec)
}

func (m margaretCodec) NewEncoder(writer io.Writer) margaret.Encoder {
	return newMargaretEncoder(writer, m.codec)
}

type margaretEncoder struct {
	w     io.Writer
	codec ValueCodec
}

func newMargaretEncoder(w io.Writer, codec ValueCodec) margaretEncoder {
	return margaretEncoder{w: w, codec: codec}
}

func (enc margaretEncoder) Encode(v interface{}) error {
	_, err := io.Copy(enc.w, bytes.NewReader(enc.codec.Encode(v.([]byte))))
	return err
}

type margaretDecoder struct {
	r     io.Reader
	codec ValueCodec
}

func newMargaretDecoder(r io.Reader, codec ValueCodec) margaretDecoder {
	return margaretDecoder{r: r, codec: codec}
}

func (dec margaretDecoder) Decode() (interface{}, error) {
	b, err := io.ReadAll(dec.r)
	if err != nil {
		return nil, err
	}
	return dec.codec.Decode(b)
}
