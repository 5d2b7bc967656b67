package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
	"github.com/aslamsikder/VoiceRAG-Agent-System/ingestion"
	"github.com/aslamsikder/VoiceRAG-Agent-System/retrieval"
	"github.com/aslamsikder/VoiceRAG-Agent-System/vectorindex"
)

// topicEmbedder maps text onto two axes so retrieval is predictable.
type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.Contains(strings.ToLower(text), "leave") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.Index.Path = filepath.Join(t.TempDir(), "index")
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestNewBuildsComponents(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.NotNil(t, a.LLM)
	assert.NotNil(t, a.Orchestrator)
	assert.NotNil(t, a.Transcriber)
	assert.NotNil(t, a.Ingestion)
	assert.Len(t, a.Tools.Definitions(), 2)
	assert.Nil(t, a.graph, "catalog stays off without a neo4j uri")
}

func TestIngestSwapsLiveIndex(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "handbook.md"), []byte("Employees get twenty days of annual leave."), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "office.txt"), []byte("The office opens at nine."), 0o600))

	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)

	a.Retriever = retrieval.New(a.Store, topicEmbedder{}, nil)
	a.Ingestion = ingestion.NewService(a.Store, topicEmbedder{}, nil)

	res, err := a.Ingest(ctx, "")
	require.NoError(t, err)
	require.True(t, res.Built())
	assert.Equal(t, 2, res.Chunks)
	assert.True(t, a.Retriever.Loaded())

	text, err := a.Retriever.Retrieve(ctx, "How much leave do I get?", 1)
	require.NoError(t, err)
	assert.Equal(t, "Employees get twenty days of annual leave.", text)

	require.NoError(t, a.Clear(ctx))
	assert.False(t, a.Retriever.Loaded())
	_, err = a.Store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestMissingDirectory(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)

	_, err = a.Ingest(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// gatedStore holds the first Save until release is closed.
type gatedStore struct {
	vectorindex.Store
	once    sync.Once
	saving  chan struct{}
	release chan struct{}
}

func (s *gatedStore) Save(ctx context.Context, ix *vectorindex.Index) error {
	s.once.Do(func() {
		close(s.saving)
		<-s.release
	})
	return s.Store.Save(ctx, ix)
}

func TestClearWaitsForInFlightIngest(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "handbook.md"), []byte("Employees get twenty days of annual leave."), 0o600))

	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)

	store := &gatedStore{Store: a.Store, saving: make(chan struct{}), release: make(chan struct{})}
	a.Store = store
	a.Retriever = retrieval.New(store, topicEmbedder{}, nil)
	a.Ingestion = ingestion.NewService(store, topicEmbedder{}, nil)

	ingested := make(chan error, 1)
	go func() {
		_, err := a.Ingest(ctx, "")
		ingested <- err
	}()
	<-store.saving

	cleared := make(chan error, 1)
	go func() { cleared <- a.Clear(ctx) }()

	assert.Never(t, func() bool { return len(cleared) > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"clear must wait for the running ingest")

	close(store.release)
	require.NoError(t, <-ingested)
	require.NoError(t, <-cleared)

	assert.False(t, a.Retriever.Loaded())
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentIngestsKeepDiskAndMemoryInStep(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "handbook.md"), []byte("Employees get twenty days of annual leave."), 0o600))

	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(ctx)
	a.Retriever = retrieval.New(a.Store, topicEmbedder{}, nil)
	a.Ingestion = ingestion.NewService(a.Store, topicEmbedder{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 2 {
				assert.NoError(t, a.Clear(ctx))
				return
			}
			_, err := a.Ingest(ctx, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_, err = a.Store.Load(ctx)
	onDisk := err == nil
	if !onDisk {
		require.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, onDisk, a.Retriever.Loaded())
}
