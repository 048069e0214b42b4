package rag

import (
	"context"
	"fmt"
)

// DefaultTopK is the number of neighbours returned when no k is configured.
const DefaultTopK = 4

// RetrieverConfig holds the dependencies of a DefaultRetriever.
type RetrieverConfig struct {
	// Embedder converts the query text to a vector. It must produce vectors in
	// the same space as the ones the store was built with.
	Embedder Embedder

	// Store performs the similarity search.
	Store VectorStore

	// TopK is the fallback result count when Retrieve is called with topK <= 0.
	// Defaults to DefaultTopK.
	TopK int
}

// DefaultRetriever implements Retriever by embedding the query and delegating
// the nearest-neighbour lookup to a VectorStore.
type DefaultRetriever struct {
	embedder Embedder
	store    VectorStore
	topK     int
}

// NewRetriever constructs a DefaultRetriever from cfg.
func NewRetriever(cfg *RetrieverConfig) (*DefaultRetriever, error) {
	if cfg == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &DefaultRetriever{embedder: cfg.Embedder, store: cfg.Store, topK: topK}, nil
}

// TopK returns the configured default neighbour count.
func (r *DefaultRetriever) TopK() int { return r.topK }

// Retrieve embeds query and returns up to topK documents, most similar first.
func (r *DefaultRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.topK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	docs, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return docs, nil
}
