package persistence_benchmark

import (
	"github.com/boreq/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var (
	zstdDecoder *zstd.Decoder
	zstdEncoder *zstd.Encoder
)

func init() {
	var err error

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}

	zstdEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
}

// ValueCodec transforms values before they are written to the storage.
type ValueCodec interface {
	Encode(value []byte) []byte
	Decode(value []byte) ([]byte, error)
}

type NoopCodec struct {
}

func NewNoopCodec() *NoopCodec {
	return &NoopCodec{}
}

func (c NoopCodec) Encode(value []byte) []byte {
	return value
}

func (c NoopCodec) Decode(value []byte) ([]byte, error) {
	return value, nil
}

type SnappyCodec struct {
}

func NewSnappyCodec() *SnappyCodec {
	return &SnappyCodec{}
}

func (c SnappyCodec) Encode(value []byte) []byte {
	return snappy.Encode(nil, value)
}

func (c SnappyCodec) Decode(value []byte) ([]byte, error) {
	v, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, errors.Wrap(err, "error decoding snappy")
	}
	return v, nil
}

type ZSTDCodec struct {
}

func NewZSTDCodec() *ZSTDCodec {
	return &ZSTDCodec{}
}

func (c ZSTDCodec) Encode(value []byte) []byte {
	return zstdEncoder.EncodeAll(value, nil)
}

func (c ZSTDCodec) Decode(value []byte) ([]byte, error) {
	v, err := zstdDecoder.DecodeAll(value, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error decoding zstd")
	}
	return v, nil
}
