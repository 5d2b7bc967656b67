package vectorindex

import (
	"context"
	"encoding/binary"
	"math"
)

// Store persists an Index. Save replaces any previous index atomically, so a
// concurrent Load observes either the old or the new index in full. Load
// returns an error wrapping domain.ErrNotFound when nothing has been saved.
type Store interface {
	Save(ctx context.Context, ix *Index) error
	Load(ctx context.Context) (*Index, error)
	Clear(ctx context.Context) error
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
