package embeddings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

const defaultLocalModel = "sentence-transformers/all-MiniLM-L6-v2"

type embedFunc func(texts []string) ([][]float32, error)

// localEmbedder runs a sentence-transformer in-process. The model is fetched
// and loaded on the first Embed call; a failed load is retried next time.
type localEmbedder struct {
	model     string
	modelDir  string
	dimension int

	mu    sync.Mutex
	embed embedFunc
	load  func(modelPath string) (embedFunc, error)
}

func NewLocalEmbedder(opts Options) Embedder {
	model := opts.Model
	if model == "" {
		model = defaultLocalModel
	}
	dir := opts.ModelDir
	if dir == "" {
		dir = "models"
	}
	return &localEmbedder{
		model:     model,
		modelDir:  dir,
		dimension: opts.Dimension,
		load:      loadFeatureExtraction,
	}
}

func (e *localEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embed, err := e.pipeline()
	if err != nil {
		return nil, err
	}

	vectors, err := embed(texts)
	if err != nil {
		return nil, fmt.Errorf("run local embedding pipeline: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("local pipeline returned %d embeddings for %d inputs", len(vectors), len(texts))
	}
	for _, vec := range vectors {
		if e.dimension > 0 && len(vec) != e.dimension {
			return nil, fmt.Errorf("local embedding dimension mismatch: expected %d, got %d", e.dimension, len(vec))
		}
	}
	return vectors, nil
}

func (e *localEmbedder) pipeline() (embedFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.embed != nil {
		return e.embed, nil
	}

	modelPath, err := prepareModel(e.model, e.modelDir)
	if err != nil {
		return nil, err
	}
	embed, err := e.load(modelPath)
	if err != nil {
		return nil, err
	}
	e.embed = embed
	return embed, nil
}

// prepareModel downloads the ONNX export of model into dir unless a copy is
// already present.
func prepareModel(model, dir string) (string, error) {
	modelPath := filepath.Join(dir, strings.ReplaceAll(model, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat model directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloaded, err := hugot.DownloadModel(model, dir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", model, err)
	}
	return downloaded, nil
}

func loadFeatureExtraction(modelPath string) (embedFunc, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("create hugot session: %w", err)
	}

	pipeline, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "voicerag-embedder",
	})
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("create embedding pipeline: %w", err)
	}

	return func(texts []string) ([][]float32, error) {
		result, err := pipeline.RunPipeline(texts)
		if err != nil {
			return nil, err
		}
		return result.Embeddings, nil
	}, nil
}
