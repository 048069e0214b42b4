package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/54b3r/docqa-go/internal/assistant"
	"github.com/54b3r/docqa-go/internal/embedder"
	"github.com/54b3r/docqa-go/internal/metrics"
	"github.com/54b3r/docqa-go/internal/provider"
	"github.com/54b3r/docqa-go/internal/rag"
	"github.com/54b3r/docqa-go/internal/server"
	"github.com/54b3r/docqa-go/internal/tracing"
)

const (
	// defaultIndexDir is where the local index lives when INDEX_DIR is unset.
	defaultIndexDir = "docqa_index"

	backendLocal  = "local"
	backendQdrant = "qdrant"

	defaultQdrantCollection = "docqa-docs"
)

// indexSettings selects and locates the vector index.
type indexSettings struct {
	dir     string
	backend string
}

// resolveIndex combines the --index flag with INDEX_DIR and INDEX_BACKEND.
func resolveIndex(flagDir string) (indexSettings, error) {
	s := indexSettings{
		dir:     flagDir,
		backend: getEnvOrDefault("INDEX_BACKEND", backendLocal),
	}
	if s.dir == "" {
		s.dir = getEnvOrDefault("INDEX_DIR", defaultIndexDir)
	}
	switch s.backend {
	case backendLocal, backendQdrant:
		return s, nil
	default:
		return s, fmt.Errorf("unknown INDEX_BACKEND %q: valid values are %s, %s", s.backend, backendLocal, backendQdrant)
	}
}

// qdrantConfigFromEnv reads the QDRANT_* variables.
func qdrantConfigFromEnv(vectorSize int) *rag.QdrantConfig {
	return &rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", defaultQdrantCollection),
		VectorSize: uint64(max(vectorSize, 0)),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	}
}

// newProvider builds the provider from the environment, reporting each
// embedding batch to m under phase.
func newProvider(ctx context.Context, log *slog.Logger, m *metrics.Metrics, phase string) (provider.Provider, *provider.Config, error) {
	cfg := provider.ConfigFromEnv()
	embedder.Warn(log, string(cfg.Backend), cfg.Embedding.Model)

	p, err := provider.NewWithBatchHook(ctx, cfg, func(n int) { m.EmbeddingBatch(phase, n) })
	if err != nil {
		return nil, nil, err
	}
	log.Info("provider initialised",
		slog.String("provider", p.Name()),
		slog.String("model", cfg.Model),
		slog.String("embedding_model", cfg.Embedding.Model),
	)
	return p, cfg, nil
}

// fingerprint describes the embedding space of p's embedder.
func fingerprint(p provider.Provider, cfg *provider.Config) rag.IndexInfo {
	if d, ok := p.Embedder().(rag.Describer); ok {
		return d.Describe()
	}
	return rag.IndexInfo{Provider: p.Name(), Model: cfg.Embedding.Model, Dimensions: cfg.Embedding.Dimensions}
}

// queryIndex is an opened index ready for retrieval.
type queryIndex struct {
	store  rag.VectorStore
	pinger server.Pinger
	size   int
}

// openQueryIndex opens the index built by `docqa ingest` and checks that it
// was embedded in the same space as want. allowMismatch downgrades the check
// to a warning.
func openQueryIndex(ctx context.Context, log *slog.Logger, s indexSettings, want rag.IndexInfo, allowMismatch bool) (*queryIndex, error) {
	if s.backend == backendQdrant {
		qs, err := rag.NewQdrantStore(ctx, qdrantConfigFromEnv(want.Dimensions))
		if err != nil {
			return nil, err
		}
		log.Info("qdrant index ready", slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", defaultQdrantCollection)))
		return &queryIndex{store: qs, pinger: server.NewQdrantPinger(qs.Client()), size: -1}, nil
	}

	idx, err := rag.OpenLocalIndex(s.dir)
	if err != nil {
		return nil, err
	}
	info := idx.Info()
	if err := info.CheckCompatible(want); err != nil {
		if !allowMismatch {
			return nil, err
		}
		log.Warn("index embedding space differs from the configured embedder",
			slog.Any("error", err),
			slog.String("index_provider", info.Provider),
			slog.String("index_model", info.Model),
		)
	}
	if idx.Len() == 0 {
		log.Warn("index is empty; answers will have no context", slog.String("dir", s.dir))
	}
	log.Info("local index loaded",
		slog.String("dir", s.dir),
		slog.Int("chunks", idx.Len()),
		slog.String("source", info.Source),
		slog.Time("created_at", info.CreatedAt),
	)
	return &queryIndex{store: idx, pinger: server.NewIndexPinger(idx), size: idx.Len()}, nil
}

// session holds everything chat and ask need to answer questions.
type session struct {
	assistant *assistant.Assistant
	index     *queryIndex
	registry  *prometheus.Registry
	flush     func()
}

// Close flushes traces and releases the index.
func (s *session) Close() {
	if s.flush != nil {
		s.flush()
	}
	if s.index != nil {
		_ = s.index.store.Close()
	}
}

// queryOptions are the flags shared by chat and ask.
type queryOptions struct {
	indexDir      string
	topK          int
	allowMismatch bool
}

// newSession wires provider, index, tracing and metrics into an Assistant.
func newSession(ctx context.Context, log *slog.Logger, opts queryOptions) (*session, error) {
	settings, err := resolveIndex(opts.indexDir)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	p, cfg, err := newProvider(ctx, log, m, "query")
	if err != nil {
		return nil, err
	}

	idx, err := openQueryIndex(ctx, log, settings, fingerprint(p, cfg), opts.allowMismatch)
	if err != nil {
		return nil, err
	}
	if idx.size >= 0 {
		m.IndexSize(idx.size)
	}
	sess := &session{index: idx, registry: reg}

	topK := opts.topK
	if topK <= 0 {
		topK = getEnvInt("RETRIEVER_TOP_K", rag.DefaultTopK)
	}
	retriever, err := rag.NewRetriever(&rag.RetrieverConfig{Embedder: p.Embedder(), Store: idx.store, TopK: topK})
	if err != nil {
		sess.Close()
		return nil, err
	}

	acfg := &assistant.Config{
		Retriever: retriever,
		ChatModel: p.ChatModel(),
		TopK:      topK,
		Metrics:   m,
	}
	if handler, flush, ok := tracing.Setup(); ok {
		acfg.Callbacks = append(acfg.Callbacks, handler)
		sess.flush = flush
		log.Info("langfuse tracing enabled")
	} else {
		log.Debug("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
	}

	a, err := assistant.New(ctx, acfg)
	if err != nil {
		sess.Close()
		return nil, err
	}
	sess.assistant = a
	return sess, nil
}

// isCancelled reports whether err stems from an interrupted context.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if it is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt parses the named environment variable as an int, returning
// fallback if unset or unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
