package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

// keywordEmbedder maps text to a 3-d vector counting the words "alpha",
// "beta" and "gamma", so similarity is predictable in tests.
type keywordEmbedder struct {
	calls int
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		out[i] = []float32{
			float32(strings.Count(lower, "alpha")),
			float32(strings.Count(lower, "beta")),
			float32(strings.Count(lower, "gamma")),
		}
	}
	return out, nil
}

// seedIndex fills a LocalIndex with three documents each dominated by one keyword.
func seedIndex(t *testing.T, dir string) *LocalIndex {
	t.Helper()
	ctx := context.Background()
	emb := &keywordEmbedder{}

	docs := []Document{
		{ID: "a", Content: "alpha alpha alpha beta", Source: "s", Metadata: map[string]string{"chunk_index": "0"}},
		{ID: "b", Content: "beta beta beta gamma", Source: "s", Metadata: map[string]string{"chunk_index": "1"}},
		{ID: "c", Content: "gamma gamma gamma alpha", Source: "s", Metadata: map[string]string{"chunk_index": "2"}},
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	idx := NewLocalIndex(dir)
	if err := idx.Upsert(ctx, docs, vecs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return idx
}

func TestLocalIndex_SearchNearestFirst(t *testing.T) {
	t.Parallel()
	idx := seedIndex(t, t.TempDir())

	tests := []struct {
		name  string
		query []float32
		want  string
	}{
		{"alpha query", []float32{1, 0, 0}, "a"},
		{"beta query", []float32{0, 1, 0}, "b"},
		{"gamma query", []float32{0, 0, 1}, "c"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := idx.Search(context.Background(), tc.query, 2)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("want 2 results, got %d", len(got))
			}
			if got[0].ID != tc.want {
				t.Errorf("top result: got %q, want %q", got[0].ID, tc.want)
			}
			if got[0].Score < got[1].Score {
				t.Errorf("results not sorted: %v then %v", got[0].Score, got[1].Score)
			}
		})
	}
}

func TestLocalIndex_TopKLargerThanIndex(t *testing.T) {
	t.Parallel()
	idx := seedIndex(t, t.TempDir())
	got, err := idx.Search(context.Background(), []float32{1, 1, 1}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("want all 3 documents, got %d", len(got))
	}
}

func TestLocalIndex_TiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewLocalIndex(t.TempDir())
	docs := []Document{{ID: "first"}, {ID: "second"}, {ID: "third"}}
	vecs := [][]float32{{1, 0}, {1, 0}, {0, 1}}
	if err := idx.Upsert(ctx, docs, vecs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := idx.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "first" || got[1].ID != "second" {
		t.Errorf("tied results out of insertion order: %+v", got)
	}
}

func TestLocalIndex_DimensionMismatch(t *testing.T) {
	t.Parallel()
	idx := seedIndex(t, t.TempDir())

	if _, err := idx.Search(context.Background(), []float32{1, 0}, 1); !errors.Is(err, ErrIncompatibleIndex) {
		t.Errorf("search: want ErrIncompatibleIndex, got %v", err)
	}
	err := idx.Upsert(context.Background(), []Document{{ID: "d"}}, [][]float32{{1, 2}})
	if err == nil {
		t.Error("upsert: want error for mismatched dimensions")
	}
}

func TestLocalIndex_UpsertReplacesAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := seedIndex(t, t.TempDir())

	if err := idx.Upsert(ctx, []Document{{ID: "a", Content: "replaced"}}, [][]float32{{0, 0, 1}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if idx.Len() != 3 {
		t.Errorf("want 3 documents after replace, got %d", idx.Len())
	}
	if err := idx.Delete(ctx, []string{"b", "missing"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("want 2 documents after delete, got %d", idx.Len())
	}
	got, err := idx.Search(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if got[0].ID != "a" && got[0].ID != "c" {
		t.Errorf("unexpected top result %q", got[0].ID)
	}
	if err := idx.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("want empty index after reset, got %d", idx.Len())
	}
}

func TestLocalIndex_PersistRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	idx := seedIndex(t, dir)

	info := IndexInfo{Provider: "test", Model: "keywords", Source: "s", CreatedAt: time.Now().UTC()}
	if err := idx.Persist(ctx, info); err != nil {
		t.Fatalf("persist: %v", err)
	}

	loaded, err := OpenLocalIndex(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if loaded.Len() != idx.Len() {
		t.Errorf("len: got %d, want %d", loaded.Len(), idx.Len())
	}
	if got := loaded.Info(); got.Provider != "test" || got.Model != "keywords" || got.Dimensions != 3 {
		t.Errorf("info: got %+v", got)
	}

	for i := range idx.entries {
		a, b := idx.entries[i].vector, loaded.entries[i].vector
		for j := range a {
			if math.Abs(float64(a[j]-b[j])) > 1e-6 {
				t.Errorf("entry %d vector[%d]: got %v, want %v", i, j, b[j], a[j])
			}
		}
	}

	query := []float32{0.2, 0.9, 0.1}
	want, err := idx.Search(ctx, query, 3)
	if err != nil {
		t.Fatalf("search original: %v", err)
	}
	got, err := loaded.Search(ctx, query, 3)
	if err != nil {
		t.Fatalf("search loaded: %v", err)
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Content != want[i].Content {
			t.Errorf("result %d: got %q, want %q", i, got[i].ID, want[i].ID)
		}
	}
}

func TestOpenLocalIndex_Missing(t *testing.T) {
	t.Parallel()
	if _, err := OpenLocalIndex(t.TempDir()); err == nil {
		t.Fatal("want error for directory without snapshot")
	}
}

func TestRetriever_ReturnsNearestChunk(t *testing.T) {
	t.Parallel()
	idx := seedIndex(t, t.TempDir())
	emb := &keywordEmbedder{}

	r, err := NewRetriever(&RetrieverConfig{Embedder: emb, Store: idx})
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if r.TopK() != DefaultTopK {
		t.Errorf("default topK: got %d, want %d", r.TopK(), DefaultTopK)
	}

	docs, err := r.Retrieve(context.Background(), "tell me about gamma", 0)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) == 0 || docs[0].ID != "c" {
		t.Errorf("want chunk c first, got %+v", docs)
	}
	if emb.calls != 1 {
		t.Errorf("want 1 embed call, got %d", emb.calls)
	}
}

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()
	if _, err := NewRetriever(&RetrieverConfig{Store: NewLocalIndex("")}); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewRetriever(&RetrieverConfig{Embedder: &keywordEmbedder{}}); err == nil {
		t.Error("want error for nil store")
	}
}

func TestIndexInfo_CheckCompatible(t *testing.T) {
	t.Parallel()
	base := IndexInfo{Provider: "gemini", Model: "text-embedding-004", Dimensions: 768}

	tests := []struct {
		name    string
		want    IndexInfo
		wantErr bool
	}{
		{"same space", base, false},
		{"unknown dimensions", IndexInfo{Provider: "gemini", Model: "text-embedding-004"}, false},
		{"other model", IndexInfo{Provider: "gemini", Model: "embedding-001", Dimensions: 768}, true},
		{"other provider", IndexInfo{Provider: "openrouter", Model: "text-embedding-004"}, true},
		{"other dimensions", IndexInfo{Provider: "gemini", Model: "text-embedding-004", Dimensions: 256}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := base.CheckCompatible(tc.want)
			if tc.wantErr && !errors.Is(err, ErrIncompatibleIndex) {
				t.Errorf("want ErrIncompatibleIndex, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
