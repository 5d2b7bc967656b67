// Package retrieval answers similarity queries against the persisted index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
	"github.com/aslamsikder/VoiceRAG-Agent-System/embeddings"
	"github.com/aslamsikder/VoiceRAG-Agent-System/vectorindex"
)

// ContextSeparator joins retrieved chunk texts.
const ContextSeparator = "\n\n"

// Retriever holds the live index behind an atomic pointer. Readers never see
// a partially replaced index; Swap and Load publish a new one in one step.
//
// Every publication bumps generation. A Load that started before a Swap
// discards what it read instead of overwriting the newer index.
type Retriever struct {
	store    vectorindex.Store
	embedder embeddings.Embedder
	logger   *zap.Logger

	current atomic.Pointer[vectorindex.Index]
	loadMu  sync.Mutex

	publishMu  sync.Mutex
	generation uint64
}

func New(store vectorindex.Store, embedder embeddings.Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Load reads the persisted index. A missing index is not an error: the
// handle stays empty and a warning is logged.
func (r *Retriever) Load(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.load(ctx)
}

// loadIfEmpty is the lazy path: another reader may have loaded, or an
// ingestion swapped in, while this one waited for loadMu.
func (r *Retriever) loadIfEmpty(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if r.current.Load() != nil {
		return nil
	}
	return r.load(ctx)
}

func (r *Retriever) load(ctx context.Context) error {
	gen := r.currentGeneration()
	ix, err := r.store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("no vector index found, run ingestion first", zap.Error(err))
			return nil
		}
		return fmt.Errorf("load index: %w", err)
	}

	if !r.publishIf(gen, ix) {
		r.logger.Debug("discarding loaded index, a newer one was published")
		return nil
	}
	r.logger.Info("vector index loaded", zap.Int("chunks", ix.Len()), zap.Int("dimension", ix.Dimension()))
	return nil
}

// Swap publishes ix as the live index. A nil ix empties the handle.
func (r *Retriever) Swap(ix *vectorindex.Index) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	r.generation++
	r.current.Store(ix)
}

func (r *Retriever) currentGeneration() uint64 {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	return r.generation
}

// publishIf stores ix only when nothing was published since gen.
func (r *Retriever) publishIf(gen uint64, ix *vectorindex.Index) bool {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	if r.generation != gen {
		return false
	}
	r.generation++
	r.current.Store(ix)
	return true
}

// Loaded reports whether an index is in memory.
func (r *Retriever) Loaded() bool {
	return r.current.Load() != nil
}

// Search embeds query and returns the k nearest chunks, nearest first. With
// no index available it returns no hits and no error.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]vectorindex.Hit, error) {
	ix := r.current.Load()
	if ix == nil {
		if err := r.loadIfEmpty(ctx); err != nil {
			return nil, err
		}
		if ix = r.current.Load(); ix == nil {
			return nil, nil
		}
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrUpstream, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: %w: got %d vectors", domain.ErrUpstream, len(vectors))
	}

	return ix.Search(vectors[0], k)
}

// Retrieve returns the text of the k nearest chunks joined by a blank line,
// or "" when no index exists.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (string, error) {
	hits, err := r.Search(ctx, query, k)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Chunk.Content
	}
	return strings.Join(texts, ContextSeparator), nil
}

// Clear deletes the persisted index and empties the handle.
func (r *Retriever) Clear(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	r.Swap(nil)
	return nil
}
