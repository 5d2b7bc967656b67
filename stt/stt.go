// Package stt turns recorded audio into text with a hosted model first and
// a local model as fallback.
//
// The local model is not run in-process. It is a whisper model served by an
// OpenAI-compatible server on this host (faster-whisper-server, LocalAI or
// whisper.cpp's server), reached at STT.LocalBaseURL. That server must be
// running for the fallback to work; the handle to it is created on first use
// and kept for the life of the Transcriber.
package stt

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/aslamsikder/VoiceRAG-Agent-System/config"
	"github.com/aslamsikder/VoiceRAG-Agent-System/domain"
)

// Backend transcribes the audio file at path.
type Backend interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Loader produces the local backend. It is called lazily.
type Loader func(ctx context.Context) (Backend, error)

// Transcriber tries the hosted backend, then the local one. The local
// backend is initialised at most once; a failed initialisation is retried on
// the next call.
type Transcriber struct {
	hosted   Backend
	fallback bool
	loader   Loader
	logger   *zap.Logger

	mu    sync.Mutex
	local Backend
}

type Option func(*Transcriber)

// WithHosted sets the primary backend. Nil disables it.
func WithHosted(b Backend) Option {
	return func(t *Transcriber) { t.hosted = b }
}

// WithLocalFallback enables the fallback path using loader.
func WithLocalFallback(loader Loader) Option {
	return func(t *Transcriber) {
		t.loader = loader
		t.fallback = loader != nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Transcriber) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func New(opts ...Option) *Transcriber {
	t := &Transcriber{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewFromConfig wires the hosted OpenAI model when a key is present and the
// local whisper server when fallback is enabled.
func NewFromConfig(cfg config.Config, logger *zap.Logger) *Transcriber {
	opts := []Option{WithLogger(logger)}
	if cfg.OpenAIAPIKey != "" {
		opts = append(opts, WithHosted(NewOpenAIBackend(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.STT.HostedModel, cfg.STT.Timeout)))
	} else if logger != nil {
		logger.Info("no OpenAI key configured, transcription uses the local model only")
	}
	if cfg.STT.EnableLocalFallback {
		opts = append(opts, WithLocalFallback(LocalServerLoader(cfg.STT.LocalBaseURL, cfg.STT.LocalModel, cfg.STT.Timeout)))
	}
	return New(opts...)
}

// Transcribe returns the transcript of the audio at path. A missing file is
// domain.ErrNotFound. When every backend fails the result is "" with a nil
// error; only context cancellation is reported.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("audio file %s: %w: %w", path, domain.ErrNotFound, err)
	}

	if t.hosted != nil {
		text, err := t.hosted.Transcribe(ctx, path)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		t.logger.Warn("hosted transcription failed", zap.Error(err))
		if !t.fallback {
			return "", ctx.Err()
		}
		t.logger.Info("switching to local transcription")
	}

	if !t.fallback {
		return "", nil
	}

	local, err := t.localBackend(ctx)
	if err != nil {
		t.logger.Error("local transcription model unavailable", zap.Error(err))
		return "", ctx.Err()
	}

	text, err := local.Transcribe(ctx, path)
	if err != nil {
		t.logger.Error("local transcription failed", zap.Error(err))
		return "", ctx.Err()
	}
	return strings.TrimSpace(text), nil
}

func (t *Transcriber) localBackend(ctx context.Context) (Backend, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.local != nil {
		return t.local, nil
	}

	t.logger.Info("loading local transcription model")
	b, err := t.loader(ctx)
	if err != nil {
		return nil, err
	}
	t.local = b
	t.logger.Info("local transcription model loaded")
	return b, nil
}
