// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (the local snapshot index, Qdrant) satisfy these
// interfaces so the ingestion and query layers never depend on a specific backend.
package rag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrIncompatibleIndex is returned when an index was built with a different
// embedding space than the one configured for querying it.
var ErrIncompatibleIndex = errors.New("rag: index was built with an incompatible embedding space")

// Document represents a unit of retrieved or stored knowledge: one chunk of a
// source page.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin URL of the page the chunk was cut from.
	Source string

	// Metadata holds arbitrary key-value pairs (title, language, chunk_index, ...).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (cosine, -1.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// IndexInfo fingerprints the embedding space an index was built in.
type IndexInfo struct {
	// Provider is the embedding backend name (e.g. "openrouter", "gemini").
	Provider string

	// Model is the embedding model identifier.
	Model string

	// Dimensions is the embedding vector length. Zero means unknown.
	Dimensions int

	// Source is the URL (or comma-separated URLs) the index was built from.
	Source string

	// CreatedAt is when the index was built.
	CreatedAt time.Time
}

// CheckCompatible reports whether an index built as info can be queried with
// vectors produced by want. Provider and model must match; dimensions are only
// compared when both sides know them.
func (info IndexInfo) CheckCompatible(want IndexInfo) error {
	if info.Provider != want.Provider || info.Model != want.Model {
		return fmt.Errorf("%w: index built with %s/%s, querying with %s/%s",
			ErrIncompatibleIndex, info.Provider, info.Model, want.Provider, want.Model)
	}
	if info.Dimensions > 0 && want.Dimensions > 0 && info.Dimensions != want.Dimensions {
		return fmt.Errorf("%w: index has %d dimensions, embedder produces %d",
			ErrIncompatibleIndex, info.Dimensions, want.Dimensions)
	}
	return nil
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs: embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search performs a semantic similarity search and returns the top-k
	// most relevant documents for the given query embedding, most similar first.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Rebuilder is implemented by stores that can discard their whole content so an
// ingestion run starts from an empty index.
type Rebuilder interface {
	// Reset removes every stored document.
	Reset(ctx context.Context) error
}

// Persister is implemented by stores that buffer writes in memory and need an
// explicit save step once ingestion is complete.
type Persister interface {
	// Persist writes the store contents durably, stamped with info.
	Persist(ctx context.Context, info IndexInfo) error
}

// Locator is implemented by stores that can describe where their content is
// kept, as a phrase such as "locally in the 'docqa_index' folder".
type Locator interface {
	Location() string
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Describer is implemented by embedders that can report which embedding space
// they produce vectors in.
type Describer interface {
	// Describe returns the provider, model and (if configured) dimensions.
	Describe() IndexInfo
}

// Retriever is the high-level interface used by the assistant to fetch relevant
// context for a given query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
