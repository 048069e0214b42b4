// Package assistant answers questions about the ingested documentation. Each
// question is embedded, the nearest chunks are retrieved from the index, and
// the chunks and question are rendered into a fixed prompt that is streamed
// through the configured chat model.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/docqa-go/internal/budget"
	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/metrics"
	"github.com/54b3r/docqa-go/internal/rag"
)

// Config holds the dependencies and tuning knobs of an Assistant.
type Config struct {
	// Retriever fetches context chunks for each question. Required.
	Retriever rag.Retriever

	// ChatModel generates the answer. Required.
	ChatModel model.BaseChatModel

	// TopK is the number of chunks retrieved per question.
	// Defaults to rag.DefaultTopK.
	TopK int

	// MaxContextTokens is the estimated prompt size above which a warning is
	// logged. Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// Callbacks are attached to every run, e.g. a Langfuse tracer.
	Callbacks []callbacks.Handler

	// Metrics records answer counters. Nil disables recording.
	Metrics *metrics.Metrics
}

// Assistant is a compiled retrieval chain. It is safe for concurrent use.
type Assistant struct {
	runnable  compose.Runnable[string, *schema.Message]
	callbacks []callbacks.Handler
	metrics   *metrics.Metrics
	topK      int
}

// New validates cfg and compiles the retrieval chain.
func New(ctx context.Context, cfg *Config) (*Assistant, error) {
	if cfg == nil || cfg.Retriever == nil {
		return nil, fmt.Errorf("assistant: retriever must not be nil")
	}
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("assistant: chat model must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	maxTokens := cfg.MaxContextTokens
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}

	r, err := buildChain(ctx, cfg.Retriever, cfg.ChatModel, topK, maxTokens)
	if err != nil {
		return nil, err
	}
	return &Assistant{
		runnable:  r,
		callbacks: cfg.Callbacks,
		metrics:   cfg.Metrics,
		topK:      topK,
	}, nil
}

// Answer runs one question through the chain, streaming the answer text to w
// as it arrives. It returns the complete answer.
func (a *Assistant) Answer(ctx context.Context, question string, w io.Writer) (string, error) {
	start := time.Now()
	log := logging.FromContext(ctx)

	answer, n, err := a.answer(ctx, question, w)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	a.metrics.Answered(outcome, time.Since(start).Seconds())
	if err != nil {
		log.Error("assistant: answer failed", slog.Any("error", err))
		return "", err
	}

	a.metrics.Retrieved(n)
	log.Info("assistant: answered",
		slog.Int("documents", n),
		slog.Int("answer_chars", len(answer)),
		slog.Duration("duration", time.Since(start)),
	)
	return answer, nil
}

func (a *Assistant) answer(ctx context.Context, question string, w io.Writer) (string, int, error) {
	rec := &retrieval{}
	ctx = withRetrieval(ctx, rec)

	var opts []compose.Option
	if len(a.callbacks) > 0 {
		opts = append(opts, compose.WithCallbacks(a.callbacks...))
	}

	sr, err := a.runnable.Stream(ctx, question, opts...)
	if err != nil {
		return "", 0, fmt.Errorf("assistant: stream failed: %w", err)
	}
	defer sr.Close()

	var buf strings.Builder
	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("assistant: stream receive error: %w", err)
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		buf.WriteString(msg.Content)
		if w != nil {
			if _, err := io.WriteString(w, msg.Content); err != nil {
				return "", 0, fmt.Errorf("assistant: write error: %w", err)
			}
		}
	}
	return buf.String(), len(rec.docs), nil
}
