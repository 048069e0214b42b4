package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/54b3r/docqa-go/internal/rag"
)

// DefaultBatchSize is the number of texts sent per embedding request when the
// caller does not configure one.
const DefaultBatchSize = 64

// Batched wraps an Embedder so large inputs are sent in fixed-size batches,
// optionally throttled by a token bucket. Results stay parallel to the input.
type Batched struct {
	// inner performs the actual embedding requests.
	inner rag.Embedder
	// size is the maximum number of texts per request.
	size int
	// limiter throttles requests; nil means unlimited.
	limiter *rate.Limiter
	// onBatch, when set, is called after each successful batch with its size.
	onBatch func(n int)
}

// BatchConfig configures a Batched embedder.
type BatchConfig struct {
	// Size is the maximum number of texts per request (default DefaultBatchSize).
	Size int
	// RequestsPerSecond caps the request rate. Zero or negative disables throttling.
	RequestsPerSecond float64
	// OnBatch is an optional hook invoked after each successful batch.
	OnBatch func(n int)
}

// NewBatched wraps inner with batching and rate limiting.
func NewBatched(inner rag.Embedder, cfg *BatchConfig) *Batched {
	if cfg == nil {
		cfg = &BatchConfig{}
	}
	size := cfg.Size
	if size <= 0 {
		size = DefaultBatchSize
	}
	b := &Batched{inner: inner, size: size, onBatch: cfg.OnBatch}
	if cfg.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return b
}

// Describe forwards the fingerprint of the wrapped embedder when it has one.
func (b *Batched) Describe() rag.IndexInfo {
	if d, ok := b.inner.(rag.Describer); ok {
		return d.Describe()
	}
	return rag.IndexInfo{}
}

// Embed embeds texts batch by batch and concatenates the results.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		end := min(start+b.size, len(texts))

		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("embedder: rate limit wait: %w", err)
			}
		}

		vecs, err := b.inner.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedder: batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedder: batch %d-%d returned %d embeddings", start, end, len(vecs))
		}
		out = append(out, vecs...)
		if b.onBatch != nil {
			b.onBatch(end - start)
		}
	}
	return out, nil
}
