// Package vectorindex holds the exact nearest-neighbour index over chunk
// embeddings and the stores that persist it.
package vectorindex

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

// Entry pairs a chunk with its embedding.
type Entry struct {
	Chunk  domain.Chunk
	Vector []float32
}

// Hit is a search result. Distance is the Euclidean distance to the query.
type Hit struct {
	Chunk    domain.Chunk
	Distance float64
}

// Index is a flat index searched by brute force. It is immutable once built
// and safe for concurrent readers.
type Index struct {
	dim     int
	entries []Entry
}

// New builds an index over entries. Every vector must have the same,
// non-zero dimension.
func New(entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("build index: %w", domain.ErrEmptyResult)
	}
	dim := len(entries[0].Vector)
	if dim == 0 {
		return nil, fmt.Errorf("build index: entry 0 has an empty vector")
	}

	owned := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dim {
			return nil, fmt.Errorf("build index: entry %d has dimension %d, want %d", i, len(e.Vector), dim)
		}
		owned[i] = Entry{Chunk: e.Chunk, Vector: slices.Clone(e.Vector)}
	}
	return &Index{dim: dim, entries: owned}, nil
}

// FromChunks zips chunks with their vectors and builds an index.
func FromChunks(chunks []domain.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("build index: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}
	entries := make([]Entry, len(chunks))
	for i := range chunks {
		entries[i] = Entry{Chunk: chunks[i], Vector: vectors[i]}
	}
	return New(entries)
}

func (ix *Index) Dimension() int { return ix.dim }

func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns the indexed entries in insertion order. Callers must not
// modify the returned vectors.
func (ix *Index) Entries() []Entry {
	return slices.Clone(ix.entries)
}

// Search returns the k entries closest to query, nearest first. Ties keep
// insertion order. k larger than the index returns every entry.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("search index: query has dimension %d, want %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, len(ix.entries))
	for i, e := range ix.entries {
		hits[i] = Hit{Chunk: e.Chunk, Distance: squaredL2(query, e.Vector)}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if k > len(hits) {
		k = len(hits)
	}
	hits = hits[:k]
	for i := range hits {
		hits[i].Distance = math.Sqrt(hits[i].Distance)
	}
	return hits, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
