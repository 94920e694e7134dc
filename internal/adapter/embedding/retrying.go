package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"nhp/internal/domain"
	"nhp/internal/metrics"
	"nhp/internal/port"
)

// RetryingEmbedder bounds every call with a timeout and retries transient failures
// with exponential backoff. Exhausted retries surface as *domain.EmbeddingError.
type RetryingEmbedder struct {
	inner       port.Embedder
	maxAttempts uint64
	timeout     time.Duration
	backoffBase time.Duration
	metrics     *metrics.Metrics
}

func NewRetryingEmbedder(inner port.Embedder, maxAttempts uint64, timeout time.Duration, m *metrics.Metrics) *RetryingEmbedder {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &RetryingEmbedder{
		inner:       inner,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		backoffBase: 200 * time.Millisecond,
		metrics:     m,
	}
}

// WithBackoffBase sets the first retry delay.
func (e *RetryingEmbedder) WithBackoffBase(d time.Duration) *RetryingEmbedder {
	e.backoffBase = d
	return e
}

func (e *RetryingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	backoff := retry.WithMaxRetries(e.maxAttempts-1, retry.WithJitter(e.backoffBase/4, retry.NewExponential(e.backoffBase)))

	var (
		out      [][]float32
		attempts int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		callCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}

		start := time.Now()
		vectors, err := e.inner.Embed(callCtx, texts)
		if err == nil && len(vectors) != len(texts) {
			err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		e.metrics.ObserveCall(metrics.CapabilityEmbedding, start, err)

		if err == nil {
			out = vectors
			return nil
		}
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return retry.RetryableError(fmt.Errorf("%w after %s: %v", domain.ErrTimeout, e.timeout, err))
		}
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, &domain.EmbeddingError{Attempts: attempts, Err: err}
	}
	return out, nil
}

func (e *RetryingEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *RetryingEmbedder) ModelName() string {
	return e.inner.ModelName()
}

// IsRetryable reports whether a provider error is worth repeating.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}
