package embeddings

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type retryingEmbedder struct {
	next       Embedder
	maxRetries int
	delay      time.Duration
}

// WithRetry wraps next so failed calls are retried with exponential backoff,
// starting at delay, up to maxRetries extra attempts. A cancelled context
// stops retrying immediately.
func WithRetry(next Embedder, maxRetries int, delay time.Duration) Embedder {
	if maxRetries <= 0 {
		return next
	}
	return &retryingEmbedder{next: next, maxRetries: maxRetries, delay: delay}
}

func (r *retryingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	policy := backoff.NewExponentialBackOff()
	if r.delay > 0 {
		policy.InitialInterval = r.delay
	}
	policy.MaxElapsedTime = 0

	var vectors [][]float32
	op := func() error {
		out, err := r.next.Embed(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		vectors = out
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.maxRetries)), ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}
