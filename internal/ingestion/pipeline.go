// Package ingestion implements the documentation ingestion pipeline.
// It fetches documentation pages, splits the text into overlapping chunks,
// embeds each chunk, and writes the results into a freshly rebuilt vector index.
// This pipeline is invoked by the `docqa ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/metrics"
	"github.com/54b3r/docqa-go/internal/rag"
)

// DefaultURL is the page ingested when no source is given.
const DefaultURL = "https://python.langchain.com/v0.1/docs/modules/agents/"

// Source describes a documentation source to be ingested.
type Source struct {
	// URL is the HTTP(S) URL of the documentation page to fetch.
	URL string

	// Metadata is attached to every chunk of this source and overrides
	// inferred values.
	Metadata map[string]string
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of runes per chunk. Defaults to 1000.
	ChunkSize int

	// ChunkOverlap is the number of runes shared by consecutive chunks. It
	// defaults to 200 only when ChunkSize is also unset, so an explicit size
	// with zero overlap splits without overlap.
	ChunkOverlap int

	// Info fingerprints the embedder; Source and CreatedAt are filled per run.
	Info rag.IndexInfo

	// Progress receives human-readable progress lines. Defaults to io.Discard.
	Progress io.Writer

	// Metrics records pipeline counters. Nil disables recording.
	Metrics *metrics.Metrics
}

// Report summarises a completed ingestion run.
type Report struct {
	// Pages is the number of documents loaded.
	Pages int
	// Chunks is the number of chunks embedded and indexed.
	Chunks int
	// Info is the fingerprint the index was stamped with.
	Info rag.IndexInfo
	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Pipeline orchestrates the load → split → embed → index → persist flow.
type Pipeline struct {
	// loader fetches pages for each source.
	loader PageLoader

	// splitter cuts page text into chunks.
	splitter *Splitter

	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store receives the embedded chunks.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(loader PageLoader, embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if loader == nil {
		return nil, fmt.Errorf("ingestion: loader must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
		if cfg.ChunkOverlap == 0 {
			cfg.ChunkOverlap = DefaultChunkOverlap
		}
	}
	if cfg.Progress == nil {
		cfg.Progress = io.Discard
	}

	splitter, err := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// Run loads every source, then splits, embeds and indexes all chunks in one
// pass. Nothing is written to the store until every page has loaded and every
// chunk has been embedded, so a failed run leaves any existing index intact.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*Report, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	if len(sources) == 0 {
		sources = []Source{{URL: DefaultURL}}
	}

	p.progress("Starting the data ingestion process...")

	// ── Load ─────────────────────────────────────────────────────────────
	stageStart := time.Now()
	var pages []Page
	for _, src := range sources {
		log.Info("ingestion: loading source", slog.String("url", src.URL))
		loaded, err := p.loader.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("ingestion: load %s: %w", src.URL, err)
		}
		for i := range loaded {
			loaded[i].Metadata = mergeMetadata(src, loaded[i].Metadata)
		}
		pages = append(pages, loaded...)
	}
	p.cfg.Metrics.PagesLoaded(len(pages))
	p.cfg.Metrics.StageDone("load", time.Since(stageStart).Seconds())
	p.progress(fmt.Sprintf("Successfully loaded %d document(s).", len(pages)))

	// ── Split ────────────────────────────────────────────────────────────
	stageStart = time.Now()
	docs, err := p.splitter.SplitPages(pages)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.ChunksProduced(len(docs))
	p.cfg.Metrics.StageDone("split", time.Since(stageStart).Seconds())
	p.progress(fmt.Sprintf("Document split into %d chunks.", len(docs)))

	// ── Embed ────────────────────────────────────────────────────────────
	p.progress("Creating embeddings and building the vector store...")
	stageStart = time.Now()
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	var embeddings [][]float32
	if len(texts) > 0 {
		embeddings, err = p.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingestion: embedding failed: %w", err)
		}
		if len(embeddings) != len(docs) {
			return nil, fmt.Errorf("ingestion: embedder returned %d vectors for %d chunks", len(embeddings), len(docs))
		}
	}
	p.cfg.Metrics.StageDone("embed", time.Since(stageStart).Seconds())

	// ── Index ────────────────────────────────────────────────────────────
	stageStart = time.Now()
	if r, ok := p.store.(rag.Rebuilder); ok {
		if err := r.Reset(ctx); err != nil {
			return nil, fmt.Errorf("ingestion: reset index: %w", err)
		}
	}
	if len(docs) > 0 {
		if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
			return nil, fmt.Errorf("ingestion: upsert failed: %w", err)
		}
	}
	p.progress("Vector store created successfully.")

	info := p.cfg.Info
	info.Source = joinSources(sources)
	info.CreatedAt = time.Now().UTC()
	if len(embeddings) > 0 {
		info.Dimensions = len(embeddings[0])
	}

	if ps, ok := p.store.(rag.Persister); ok {
		if err := ps.Persist(ctx, info); err != nil {
			return nil, fmt.Errorf("ingestion: persist index: %w", err)
		}
	}
	if l, ok := p.store.(rag.Locator); ok {
		p.progress(fmt.Sprintf("Vector store saved %s.", l.Location()))
	}
	p.cfg.Metrics.StageDone("persist", time.Since(stageStart).Seconds())
	p.cfg.Metrics.IndexSize(len(docs))

	report := &Report{
		Pages:    len(pages),
		Chunks:   len(docs),
		Info:     info,
		Duration: time.Since(start),
	}
	log.Info("ingestion: complete",
		slog.Int("pages", report.Pages),
		slog.Int("chunks", report.Chunks),
		slog.String("embedding_provider", info.Provider),
		slog.String("embedding_model", info.Model),
		slog.Int("dimensions", info.Dimensions),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// progress writes one line to the progress writer.
func (p *Pipeline) progress(msg string) {
	fmt.Fprintln(p.cfg.Progress, msg)
}

// mergeMetadata layers URL-inferred metadata, loader metadata and explicit
// source metadata, later layers winning.
func mergeMetadata(src Source, loaded map[string]string) map[string]string {
	inferred := InferMetadata(src.URL)
	out := map[string]string{
		"site":     inferred.Site,
		"doc_type": inferred.DocType,
	}
	if inferred.Version != "" {
		out["version"] = inferred.Version
	}
	if inferred.Section != "" {
		out["section"] = inferred.Section
	}
	for k, v := range loaded {
		out[k] = v
	}
	for k, v := range src.Metadata {
		out[k] = v
	}
	return out
}

// joinSources returns the comma-separated source URLs recorded in the index.
func joinSources(sources []Source) string {
	urls := make([]string, len(sources))
	for i, s := range sources {
		urls[i] = s.URL
	}
	return strings.Join(urls, ",")
}
