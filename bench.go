package persistence_benchmark

import (
	"encoding/binary"
	"math"

	"github.com/boreq/errors"
	"github.com/boreq/persistence_benchmark/benchmark"
)

const idLength = 8

// marshalID encodes ids as big endian so that the key order matches the id
// order for non-negative ids.
func marshalID(id int64) []byte {
	b := make([]byte, idLength)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func unmarshalID(b []byte) (int64, error) {
	if len(b) != idLength {
		return 0, errors.New("invalid id length")
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func marshalSimpleEntity(e benchmark.SimpleEntity) []byte {
	b := make([]byte, 0, 8+1+1+2+4+8+4+8+4+len(e.String)+4+len(e.ByteArray))
	b = binary.LittleEndian.AppendUint64(b, uint64(e.ID))
	if e.Bool {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = append(b, byte(e.Byte))
	b = binary.LittleEndian.AppendUint16(b, uint16(e.Short))
	b = binary.LittleEndian.AppendUint32(b, uint32(e.Int))
	b = binary.LittleEndian.AppendUint64(b, uint64(e.Long))
	b = binary.LittleEndian.AppendUint32(b, math.Float32bits(e.Float))
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(e.Double))
	b = appendBytes(b, []byte(e.String))
	b = appendBytes(b, e.ByteArray)
	return b
}

func unmarshalSimpleEntity(b []byte) (benchmark.SimpleEntity, error) {
	r := byteReader{b: b}

	e := benchmark.SimpleEntity{
		ID:     int64(r.uint64()),
		Bool:   r.byte() == 1,
		Byte:   int8(r.byte()),
		Short:  int16(r.uint16()),
		Int:    int32(r.uint32()),
		Long:   int64(r.uint64()),
		Float:  math.Float32frombits(r.uint32()),
		Double: math.Float64frombits(r.uint64()),
	}
	e.String = string(r.bytes())
	e.ByteArray = r.bytes()

	if r.err != nil {
		return benchmark.SimpleEntity{}, errors.Wrap(r.err, "error decoding simple entity")
	}
	return e, nil
}

func marshalIndexedStringEntity(e benchmark.IndexedStringEntity) []byte {
	b := make([]byte, 0, 8+4+len(e.IndexedString))
	b = binary.LittleEndian.AppendUint64(b, uint64(e.ID))
	b = appendBytes(b, []byte(e.IndexedString))
	return b
}

func unmarshalIndexedStringEntity(b []byte) (benchmark.IndexedStringEntity, error) {
	r := byteReader{b: b}

	e := benchmark.IndexedStringEntity{
		ID:            int64(r.uint64()),
		IndexedString: string(r.bytes()),
	}

	if r.err != nil {
		return benchmark.IndexedStringEntity{}, errors.Wrap(r.err, "error decoding indexed string entity")
	}
	return e, nil
}

func appendBytes(b []byte, v []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
	return append(b, v...)
}

var errShortBuffer = errors.New("buffer too short")

type byteReader struct {
	b   []byte
	err error
}

func (r *byteReader) next(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b) < n {
		r.err = errShortBuffer
		return nil
	}
	v := r.b[:n]
	r.b = r.b[n:]
	return v
}

func (r *byteReader) byte() byte {
	if v := r.next(1); v != nil {
		return v[0]
	}
	return 0
}

func (r *byteReader) uint16() uint16 {
	if v := r.next(2); v != nil {
		return binary.LittleEndian.Uint16(v)
	}
	return 0
}

func (r *byteReader) uint32() uint32 {
	if v := r.next(4); v != nil {
		return binary.LittleEndian.Uint32(v)
	}
	return 0
}

func (r *byteReader) uint64() uint64 {
	if v := r.next(8); v != nil {
		return binary.LittleEndian.Uint64(v)
	}
	return 0
}

func (r *byteReader) bytes() []byte {
	n := r.uint32()
	v := r.next(int(n))
	if v == nil {
		return nil
	}
	c := make([]byte, len(v))
	copy(c, v)
	return c
}

// batch splits total into chunks no larger than batchSize.
func batch(total, batchSize int) []int {
	var batches []int

	for {
		if total > batchSize {
			batches = append(batches, batchSize)
			total -= batchSize
		} else {
			batches = append(batches, total)
			break
		}
	}

	return batches
}

// chunks splits entities into consecutive slices of at most size elements.
func chunks[T any](entities []T, size int) [][]T {
	var result [][]T
	var offset int
	for _, n := range batch(len(entities), size) {
		result = append(result, entities[offset:offset+n])
		offset += n
	}
	return result
}
