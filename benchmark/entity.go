package benchmark

import (
	"math"

	"github.com/boreq/persistence_benchmark/fixtures"
)

const simpleEntityString = "greenrobot greenDAO"

var simpleEntityBytes = []byte{42, 0xef, 23, 0, 127, 0x80}

// SimpleEntity has one field of every basic type.
type SimpleEntity struct {
	ID        int64
	Bool      bool
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	String    string
	ByteArray []byte
}

// IndexedStringEntity is queried by its indexed string.
type IndexedStringEntity struct {
	ID            int64
	IndexedString string
}

// NewSimpleEntity returns an entity with the given id and every other field
// set to a fixed value.
func NewSimpleEntity(id int64) SimpleEntity {
	byteArray := make([]byte, len(simpleEntityBytes))
	copy(byteArray, simpleEntityBytes)

	return SimpleEntity{
		ID:        id,
		Bool:      true,
		Byte:      math.MaxInt8,
		Short:     math.MaxInt16,
		Int:       math.MaxInt32,
		Long:      math.MaxInt64,
		Float:     math.MaxFloat32,
		Double:    math.MaxFloat64,
		String:    simpleEntityString,
		ByteArray: byteArray,
	}
}

// BuildSimpleEntities returns count entities with ids starting at zero.
func BuildSimpleEntities(count int) []SimpleEntity {
	entities := make([]SimpleEntity, count)
	for i := range entities {
		entities[i] = NewSimpleEntity(int64(i))
	}
	return entities
}

// BuildIndexedStringEntities returns count entities populated with the fixed
// random strings so that every run queries identical data.
func BuildIndexedStringEntities(count int) ([]IndexedStringEntity, []string) {
	strings := fixtures.CreateFixedRandomStrings(count)
	entities := make([]IndexedStringEntity, count)
	for i := range entities {
		entities[i] = IndexedStringEntity{
			ID:            int64(i),
			IndexedString: strings[i],
		}
	}
	return entities, strings
}
