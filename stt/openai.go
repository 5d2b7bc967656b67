package stt

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls an OpenAI-compatible transcription endpoint.
type OpenAIBackend struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIBackend(apiKey, baseURL, model string, timeout time.Duration) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

func (b *OpenAIBackend) Transcribe(ctx context.Context, path string) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    b.model,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe with %s: %w", b.model, err)
	}
	return resp.Text, nil
}

// LocalServerLoader returns a Loader for a whisper model served locally
// behind an OpenAI-compatible API. Loading checks the server answers and
// offers model.
func LocalServerLoader(baseURL, model string, timeout time.Duration) Loader {
	return func(ctx context.Context) (Backend, error) {
		b := NewOpenAIBackend("local", baseURL, model, timeout)

		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		models, err := b.client.ListModels(checkCtx)
		if err != nil {
			return nil, fmt.Errorf("reach local whisper server at %s: %w", baseURL, err)
		}
		for _, m := range models.Models {
			if m.ID == model {
				return b, nil
			}
		}
		return nil, fmt.Errorf("local whisper server at %s does not serve model %q", baseURL, model)
	}
}
