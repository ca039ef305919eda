package mapper

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
)

// CompressedSource holds a mapping definition in snappy block format along
// with the xxhash of its uncompressed bytes.
type CompressedSource struct {
	compressed  []byte
	fingerprint uint64
	length      int
}

func NewCompressedSource(raw []byte) CompressedSource {
	return CompressedSource{
		compressed:  snappy.Encode(nil, raw),
		fingerprint: xxhash.Sum64(raw),
		length:      len(raw),
	}
}

// CompressedSourceFromBytes wraps already compressed bytes.
func CompressedSourceFromBytes(compressed []byte) (CompressedSource, error) {
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return CompressedSource{}, err
	}
	return CompressedSource{
		compressed:  append([]byte(nil), compressed...),
		fingerprint: xxhash.Sum64(raw),
		length:      len(raw),
	}, nil
}

func (s CompressedSource) IsEmpty() bool {
	return s.length == 0
}

func (s CompressedSource) Compressed() []byte {
	return s.compressed
}

func (s CompressedSource) Uncompressed() []byte {
	if s.compressed == nil {
		return nil
	}
	raw, err := snappy.Decode(nil, s.compressed)
	if err != nil {
		// only ever built from snappy.Encode output
		panic(err)
	}
	return raw
}

func (s CompressedSource) String() string {
	return string(s.Uncompressed())
}

func (s CompressedSource) Fingerprint() uint64 {
	return s.fingerprint
}

func (s CompressedSource) Equal(other CompressedSource) bool {
	if s.fingerprint != other.fingerprint || s.length != other.length {
		return false
	}
	if bytes.Equal(s.compressed, other.compressed) {
		return true
	}
	return bytes.Equal(s.Uncompressed(), other.Uncompressed())
}
