package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
)

func TestNewEmbedderDefaults(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 3,
		},
		OllamaHost: "http://localhost:11434",
	}

	embedder, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.NotNil(t, embedder)
}

func TestNewEmbedderOpenAIMissingKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
	}

	_, err := NewEmbedder(cfg)
	assert.Error(t, err)
}

func TestNewEmbedderLocal(t *testing.T) {
	embedder, err := NewEmbedder(config.Config{Embeddings: config.EmbeddingConfig{Provider: config.ProviderLocal}})
	require.NoError(t, err)
	assert.IsType(t, &localEmbedder{}, embedder)
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0, 1]},
				{"object": "embedding", "index": 0, "embedding": [1, 0]}
			]
		}`))
	}))
	defer srv.Close()

	embedder := NewOpenAIEmbedder(Options{Model: "text-embedding-3-small", Dimension: 2, OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL + "/v1"})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		if len(req.Input) == 1 && req.Input[0] == "broken" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if len(req.Input) == 1 && req.Input[0] == "short" {
			_, _ = w.Write([]byte(`{"embeddings": []}`))
			return
		}
		vectors := make([][]float32, len(req.Input))
		for i := range req.Input {
			vectors[i] = []float32{0.5, 0.25, float32(i)}
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: vectors})
	}))
	defer srv.Close()

	t.Run("batched success", func(t *testing.T) {
		embedder := NewOllamaEmbedder(Options{Model: "nomic-embed-text", Dimension: 3, OllamaHost: srv.URL})
		vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{0.5, 0.25, 0}, {0.5, 0.25, 1}}, vectors)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		embedder := NewOllamaEmbedder(Options{Model: "nomic-embed-text", Dimension: 4, OllamaHost: srv.URL})
		_, err := embedder.Embed(context.Background(), []string{"a"})
		assert.ErrorContains(t, err, "dimension mismatch")
	})

	t.Run("count mismatch", func(t *testing.T) {
		embedder := NewOllamaEmbedder(Options{Model: "nomic-embed-text", OllamaHost: srv.URL})
		_, err := embedder.Embed(context.Background(), []string{"short"})
		assert.ErrorContains(t, err, "0 embeddings for 1 inputs")
	})

	t.Run("server error", func(t *testing.T) {
		embedder := NewOllamaEmbedder(Options{Model: "nomic-embed-text", OllamaHost: srv.URL})
		_, err := embedder.Embed(context.Background(), []string{"broken"})
		assert.ErrorContains(t, err, "boom")
	})
}

type flakyEmbedder struct {
	failures int32
	calls    atomic.Int32
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("transient")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

var _ Embedder = (*flakyEmbedder)(nil)

func TestWithRetry(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		inner := &flakyEmbedder{failures: 2}
		vectors, err := WithRetry(inner, 3, time.Millisecond).Embed(context.Background(), []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, vectors, 2)
		assert.EqualValues(t, 3, inner.calls.Load())
	})

	t.Run("gives up", func(t *testing.T) {
		inner := &flakyEmbedder{failures: 10}
		_, err := WithRetry(inner, 2, time.Millisecond).Embed(context.Background(), []string{"a"})
		require.Error(t, err)
		assert.EqualValues(t, 3, inner.calls.Load())
	})

	t.Run("zero retries passes through", func(t *testing.T) {
		inner := &flakyEmbedder{}
		assert.Same(t, Embedder(inner), WithRetry(inner, 0, time.Second))
	})
}

func TestLocalEmbedderLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "org_model"), 0o755))

	var loads atomic.Int32
	failFirst := true
	e := &localEmbedder{
		model:     "org/model",
		modelDir:  dir,
		dimension: 2,
		load: func(modelPath string) (embedFunc, error) {
			loads.Add(1)
			assert.Equal(t, filepath.Join(dir, "org_model"), modelPath)
			if failFirst {
				failFirst = false
				return nil, errors.New("onnx unavailable")
			}
			return func(texts []string) ([][]float32, error) {
				out := make([][]float32, len(texts))
				for i := range texts {
					out[i] = []float32{1, 0}
				}
				return out, nil
			}, nil
		},
	}

	_, err := e.Embed(context.Background(), []string{"x"})
	require.Error(t, err, "first load fails")

	vectors, err := e.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	_, err = e.Embed(context.Background(), []string{"z"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, loads.Load(), "a failed load is retried, a successful one is kept")
}
