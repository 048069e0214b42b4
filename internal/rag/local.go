package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/54b3r/docqa-go/internal/store"
)

// LocalIndex is an in-memory VectorStore searched by brute-force cosine
// similarity. It is built from scratch by ingestion, saved as a snapshot in a
// directory, and reopened read-only by the query process.
type LocalIndex struct {
	// mu guards entries and info.
	mu sync.RWMutex

	// dir is the directory the index is persisted to.
	dir string

	// entries holds documents in insertion order, keyed positionally to vectors.
	entries []localEntry

	// byID maps a document ID to its position in entries.
	byID map[string]int

	// info is the fingerprint loaded from, or last persisted to, disk.
	info IndexInfo
}

// localEntry pairs a stored document with its embedding.
type localEntry struct {
	doc    Document
	vector []float32
}

// NewLocalIndex returns an empty index that persists into dir.
func NewLocalIndex(dir string) *LocalIndex {
	return &LocalIndex{dir: dir, byID: make(map[string]int)}
}

// OpenLocalIndex loads the snapshot stored in dir. A missing snapshot is
// reported as an error wrapping store.ErrNotFound.
func OpenLocalIndex(dir string) (*LocalIndex, error) {
	snap, err := store.Load(dir)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("rag: no index in %q, run `docqa ingest` first: %w", dir, err)
		}
		return nil, fmt.Errorf("rag: open local index: %w", err)
	}

	idx := NewLocalIndex(dir)
	idx.info = IndexInfo{
		Provider:   snap.Meta.Provider,
		Model:      snap.Meta.Model,
		Dimensions: snap.Meta.Dimensions,
		Source:     snap.Meta.Source,
		CreatedAt:  snap.Meta.CreatedAt,
	}
	for _, e := range snap.Entries {
		idx.byID[e.ID] = len(idx.entries)
		idx.entries = append(idx.entries, localEntry{
			doc: Document{
				ID:       e.ID,
				Content:  e.Content,
				Source:   e.Source,
				Metadata: e.Metadata,
			},
			vector: e.Vector,
		})
	}
	return idx, nil
}

// Info returns the embedding-space fingerprint of the index.
func (x *LocalIndex) Info() IndexInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.info
}

// Location describes where Persist writes the index.
func (x *LocalIndex) Location() string {
	return fmt.Sprintf("locally in the '%s' folder", x.dir)
}

// Len returns the number of stored documents.
func (x *LocalIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Upsert stores or replaces documents with their embeddings. All vectors in the
// index must share one dimensionality.
func (x *LocalIndex) Upsert(_ context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("rag: upsert got %d documents but %d embeddings", len(docs), len(embeddings))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dims := 0
	if len(x.entries) > 0 {
		dims = len(x.entries[0].vector)
	}
	for i, doc := range docs {
		vec := embeddings[i]
		if len(vec) == 0 {
			return fmt.Errorf("rag: empty embedding for document %q", doc.ID)
		}
		if dims == 0 {
			dims = len(vec)
		}
		if len(vec) != dims {
			return fmt.Errorf("rag: embedding for %q has %d dimensions, index has %d", doc.ID, len(vec), dims)
		}

		entry := localEntry{doc: doc, vector: slices.Clone(vec)}
		entry.doc.Score = 0
		if pos, ok := x.byID[doc.ID]; ok {
			x.entries[pos] = entry
			continue
		}
		x.byID[doc.ID] = len(x.entries)
		x.entries = append(x.entries, entry)
	}
	return nil
}

// Search returns the topK documents with the highest cosine similarity to
// queryEmbedding. Ties keep insertion order.
func (x *LocalIndex) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 || topK <= 0 {
		return nil, nil
	}
	if dims := len(x.entries[0].vector); len(queryEmbedding) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			ErrIncompatibleIndex, len(queryEmbedding), dims)
	}

	scored := make([]Document, len(x.entries))
	for i, e := range x.entries {
		scored[i] = e.doc
		scored[i].Score = cosine(queryEmbedding, e.vector)
	}
	slices.SortStableFunc(scored, func(a, b Document) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// Delete removes documents by ID. Unknown IDs are ignored.
func (x *LocalIndex) Delete(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := x.entries[:0]
	for _, e := range x.entries {
		if !drop[e.doc.ID] {
			kept = append(kept, e)
		}
	}
	x.entries = kept
	x.reindex()
	return nil
}

// Reset discards every stored document.
func (x *LocalIndex) Reset(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	x.byID = make(map[string]int)
	return nil
}

// Persist writes the index to its directory as a fresh snapshot, replacing any
// snapshot already there.
func (x *LocalIndex) Persist(_ context.Context, info IndexInfo) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(x.entries) > 0 {
		info.Dimensions = len(x.entries[0].vector)
	}
	snap := &store.Snapshot{
		Meta: store.Meta{
			Provider:   info.Provider,
			Model:      info.Model,
			Dimensions: info.Dimensions,
			Source:     info.Source,
			CreatedAt:  info.CreatedAt,
		},
		Entries: make([]store.Entry, 0, len(x.entries)),
	}
	for _, e := range x.entries {
		snap.Entries = append(snap.Entries, store.Entry{
			ID:       e.doc.ID,
			Source:   e.doc.Source,
			Content:  e.doc.Content,
			Metadata: e.doc.Metadata,
			Vector:   e.vector,
		})
	}

	if err := store.Save(x.dir, snap); err != nil {
		return fmt.Errorf("rag: persist local index: %w", err)
	}
	x.info = info
	return nil
}

// Close is a no-op; the index holds no external resources.
func (x *LocalIndex) Close() error { return nil }

// reindex rebuilds byID after entries was compacted. Caller holds mu.
func (x *LocalIndex) reindex() {
	x.byID = make(map[string]int, len(x.entries))
	for i, e := range x.entries {
		x.byID[e.doc.ID] = i
	}
}

// cosine returns the cosine similarity of a and b, or 0 when either is a zero vector.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
