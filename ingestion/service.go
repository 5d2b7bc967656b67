package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
	"github.com/aslamsikder/VoiceRAG-Agent-System/embeddings"
	"github.com/aslamsikder/VoiceRAG-Agent-System/vectorindex"
)

const (
	defaultBatchSize = 64
	defaultWorkers   = 4
)

// Catalog mirrors the ingested chunks into a secondary store. Failures are
// logged and do not fail ingestion.
type Catalog interface {
	SyncChunks(ctx context.Context, chunks []domain.Chunk) error
}

// Result summarises one ingestion run. Index is nil when nothing was built.
type Result struct {
	Files     int
	Documents int
	Chunks    int
	Skipped   []string
	Index     *vectorindex.Index
}

// Built reports whether the run replaced the persisted index.
func (r Result) Built() bool { return r.Index != nil }

type Service struct {
	store     vectorindex.Store
	embedder  embeddings.Embedder
	splitter  *Splitter
	catalog   Catalog
	logger    *zap.Logger
	batchSize int
	workers   int
}

type Option func(*Service)

func WithSplitter(splitter *Splitter) Option {
	return func(s *Service) {
		if splitter != nil {
			s.splitter = splitter
		}
	}
}

func WithCatalog(catalog Catalog) Option {
	return func(s *Service) { s.catalog = catalog }
}

// WithBatching sets how many chunks go into one embedding call and how many
// calls run at once.
func WithBatching(batchSize, workers int) Option {
	return func(s *Service) {
		if batchSize > 0 {
			s.batchSize = batchSize
		}
		if workers > 0 {
			s.workers = workers
		}
	}
}

func NewService(store vectorindex.Store, embedder embeddings.Embedder, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:     store,
		embedder:  embedder,
		splitter:  NewSplitter(),
		logger:    logger,
		batchSize: defaultBatchSize,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestDirectory loads every supported file under dir, rebuilds the vector
// index from scratch and persists it. Files that fail to load are logged and
// skipped. When no documents or chunks result, the persisted index is left
// untouched and Result.Index is nil.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (Result, error) {
	if s.embedder == nil {
		return Result{}, fmt.Errorf("embedder not configured")
	}
	if s.store == nil {
		return Result{}, fmt.Errorf("index store not configured")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("data directory %s: %w", dir, domain.ErrNotFound)
		}
		return Result{}, fmt.Errorf("data directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("data directory %s is not a directory", dir)
	}

	started := time.Now()

	paths, err := collectFiles(dir)
	if err != nil {
		return Result{}, err
	}

	result := Result{Files: len(paths)}
	docs := make([]domain.Document, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		source, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			source = path
		}
		source = filepath.ToSlash(source)

		loaded, loadErr := LoadFile(path, source)
		if loadErr != nil {
			s.logger.Warn("skip unreadable document", zap.String("path", source), zap.Error(loadErr))
			result.Skipped = append(result.Skipped, source)
			continue
		}
		docs = append(docs, loaded...)
	}
	result.Documents = len(docs)

	if len(docs) == 0 {
		s.logger.Info("no documents loaded, index left unchanged", zap.String("dir", dir))
		return result, nil
	}

	chunks := s.splitter.SplitDocuments(docs)
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		s.logger.Info("documents produced no chunks, index left unchanged", zap.String("dir", dir))
		return result, nil
	}

	vectors, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return Result{}, err
	}

	ix, err := vectorindex.FromChunks(chunks, vectors)
	if err != nil {
		return Result{}, err
	}

	if err := s.store.Save(ctx, ix); err != nil {
		return Result{}, fmt.Errorf("persist index: %w", err)
	}
	result.Index = ix

	if s.catalog != nil {
		if err := s.catalog.SyncChunks(ctx, chunks); err != nil {
			s.logger.Warn("catalog sync failed", zap.Error(err))
		}
	}

	s.logger.Info("index built",
		zap.Int("files", result.Files),
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
		zap.Int("skipped", len(result.Skipped)),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

func collectFiles(dir string) ([]string, error) {
	paths := make([]string, 0)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || DetectFormat(name) == FormatUnknown {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk data directory: %w", err)
	}
	return paths, nil
}

// embedChunks embeds chunk texts in batches, running up to s.workers
// batches concurrently. The returned vectors line up with chunks.
func (s *Service) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(chunks); start += s.batchSize {
		end := min(start+s.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = chunks[start+i].Content
			}
			out, err := s.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("generate embeddings: %w: %w", domain.ErrUpstream, err)
			}
			if len(out) != len(texts) {
				return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(texts), len(out))
			}
			copy(vectors[start:end], out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
