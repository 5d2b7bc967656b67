package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
	"github.com/aslamsikder/VoiceRAG-Agent-System/embeddings"
	"github.com/aslamsikder/VoiceRAG-Agent-System/vectorindex"
)

// lengthEmbedder maps text to a 2-d vector derived from its content.
type lengthEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *lengthEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), float32(strings.Count(text, "e"))}
	}
	return out, nil
}

var _ embeddings.Embedder = (*lengthEmbedder)(nil)

type memoryStore struct {
	saved *vectorindex.Index
	saves int
	err   error
}

func (m *memoryStore) Save(ctx context.Context, ix *vectorindex.Index) error {
	if m.err != nil {
		return m.err
	}
	m.saved = ix
	m.saves++
	return nil
}

func (m *memoryStore) Load(ctx context.Context) (*vectorindex.Index, error) {
	if m.saved == nil {
		return nil, domain.ErrNotFound
	}
	return m.saved, nil
}

func (m *memoryStore) Clear(ctx context.Context) error {
	m.saved = nil
	return nil
}

var _ vectorindex.Store = (*memoryStore)(nil)

type recordingCatalog struct {
	chunks []domain.Chunk
	err    error
}

func (c *recordingCatalog) SyncChunks(ctx context.Context, chunks []domain.Chunk) error {
	c.chunks = chunks
	return c.err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestDirectoryMissingEmbedder(t *testing.T) {
	svc := NewService(&memoryStore{}, nil, nil)
	_, err := svc.IngestDirectory(context.Background(), "./does-not-matter")
	assert.Error(t, err)
}

func TestIngestDirectoryMissingDir(t *testing.T) {
	svc := NewService(&memoryStore{}, &lengthEmbedder{}, zap.NewNop())
	_, err := svc.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestDirectoryEmptyIsNoop(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blank.txt", "   \n\n ")
	writeFile(t, dir, "image.png", "\x89PNG")

	store := &memoryStore{}
	embedder := &lengthEmbedder{}
	svc := NewService(store, embedder, zap.NewNop())

	result, err := svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, result.Built())
	assert.Zero(t, store.saves)
	assert.Zero(t, embedder.calls)
}

func TestIngestDirectorySkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "this is not a pdf at all")
	writeFile(t, dir, "handbook.txt", strings.Repeat("Employees receive twenty days of leave. ", 60))
	writeFile(t, dir, "nested/faq.md", "# FAQ\n\nThe office opens at nine.")
	writeFile(t, dir, "people.csv", "name,role\nAda,engineer\nGrace,admiral\n")
	writeFile(t, dir, ".hidden/secret.txt", "ignored")

	store := &memoryStore{}
	catalog := &recordingCatalog{}
	svc := NewService(store, &lengthEmbedder{}, zap.NewNop(),
		WithCatalog(catalog),
		WithBatching(2, 3),
	)

	result, err := svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Files)
	assert.Equal(t, []string{"broken.pdf"}, result.Skipped)
	assert.Equal(t, 3, result.Documents)
	require.True(t, result.Built())
	assert.Equal(t, 1, store.saves)
	assert.Same(t, result.Index, store.saved)
	assert.Equal(t, result.Chunks, store.saved.Len())
	assert.Len(t, catalog.chunks, result.Chunks)

	sources := map[string]bool{}
	for _, e := range store.saved.Entries() {
		sources[e.Chunk.Source] = true
		assert.Equal(t, float32(len(e.Chunk.Content)), e.Vector[0], "vectors stay aligned with their chunks")
	}
	assert.Equal(t, map[string]bool{"handbook.txt": true, "nested/faq.md": true, "people.csv": true}, sources)
}

func TestIngestDirectoryEmbeddingFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "some content")

	store := &memoryStore{}
	svc := NewService(store, &lengthEmbedder{err: errors.New("rate limited")}, zap.NewNop())

	_, err := svc.IngestDirectory(context.Background(), dir)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.Zero(t, store.saves, "a failed run leaves the previous index in place")
}

func TestIngestDirectoryCatalogFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "some content")

	svc := NewService(&memoryStore{}, &lengthEmbedder{}, zap.NewNop(), WithCatalog(&recordingCatalog{err: errors.New("neo4j down")}))

	result, err := svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, result.Built())
}

func TestIngestDirectoryPersistsToFileStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "persist me")

	store := vectorindex.NewFileStore(filepath.Join(t.TempDir(), "index"))
	svc := NewService(store, &lengthEmbedder{}, zap.NewNop())

	_, err := svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())
	assert.Equal(t, "persist me", loaded.Entries()[0].Chunk.Content)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("markdown", func(t *testing.T) {
		writeFile(t, dir, "a.md", "# Title\r\nBody  \r\n")
		docs, err := LoadFile(filepath.Join(dir, "a.md"), "a.md")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "# Title\nBody\n", docs[0].Content)
		assert.Equal(t, "a.md", docs[0].Source)
		assert.Zero(t, docs[0].Page)
	})

	t.Run("csv", func(t *testing.T) {
		writeFile(t, dir, "b.csv", "name,role\nAda,engineer,extra\n")
		docs, err := LoadFile(filepath.Join(dir, "b.csv"), "b.csv")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Row 1\nname: Ada\nrole: engineer\nExtra 3: extra", docs[0].Content)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		writeFile(t, dir, "c.txt", "\xff\xfe\xfd")
		_, err := LoadFile(filepath.Join(dir, "c.txt"), "c.txt")
		assert.Error(t, err)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "d.docx"), "d.docx")
		assert.Error(t, err)
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		writeFile(t, dir, "e.pdf", "%PDF-garbage")
		_, err := LoadFile(filepath.Join(dir, "e.pdf"), "e.pdf")
		assert.Error(t, err)
	})
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatText, DetectFormat("notes.TXT"))
	assert.Equal(t, FormatMarkdown, DetectFormat("readme.markdown"))
	assert.Equal(t, FormatPDF, DetectFormat("manual.pdf"))
	assert.Equal(t, FormatCSV, DetectFormat("table.csv"))
	assert.Equal(t, FormatUnknown, DetectFormat("photo.jpg"))
}
