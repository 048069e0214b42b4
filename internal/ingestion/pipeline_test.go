package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/docqa-go/internal/metrics"
	"github.com/54b3r/docqa-go/internal/rag"
)

// wordEmbedder maps text to a 3-d vector counting "agent", "tool" and
// "memory", which keeps similarity predictable.
type wordEmbedder struct {
	calls int
	err   error
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		out[i] = []float32{
			float32(strings.Count(lower, "agent")),
			float32(strings.Count(lower, "tool")),
			float32(strings.Count(lower, "memory")),
		}
	}
	return out, nil
}

const threeParagraphs = `<html lang="en"><head><title>Agents</title></head><body>
<p>An agent uses a language model to decide which actions to take.</p>

<p>Tools are functions that an agent can invoke.</p>

<p>Memory lets an agent remember previous interactions.</p>
</body></html>`

func newTestPipeline(t *testing.T, emb rag.Embedder, idx rag.VectorStore, progress *bytes.Buffer, m *metrics.Metrics) *Pipeline {
	t.Helper()
	loader, err := NewWebLoader(nil)
	if err != nil {
		t.Fatalf("NewWebLoader: %v", err)
	}
	var out io.Writer
	if progress != nil {
		out = progress
	}
	p, err := NewPipeline(loader, emb, idx, &Config{
		Info:     rag.IndexInfo{Provider: "test", Model: "words"},
		Progress: out,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestPipeline_EndToEnd(t *testing.T) {
	t.Parallel()
	srv := serve(t, http.StatusOK, "text/html", threeParagraphs)
	dir := t.TempDir()
	var progress bytes.Buffer
	reg := prometheus.NewRegistry()

	p := newTestPipeline(t, &wordEmbedder{}, rag.NewLocalIndex(dir), &progress, metrics.New(reg))
	report, err := p.Run(context.Background(), []Source{{URL: srv.URL}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Pages != 1 || report.Chunks != 1 {
		t.Fatalf("report: got pages=%d chunks=%d, want 1/1", report.Pages, report.Chunks)
	}
	if report.Info.Dimensions != 3 || report.Info.Source != srv.URL {
		t.Errorf("report info: %+v", report.Info)
	}

	for _, line := range []string{
		"Successfully loaded 1 document(s).",
		"Document split into 1 chunks.",
		"Vector store created successfully.",
		"Vector store saved locally in the '" + dir + "' folder.",
	} {
		if !strings.Contains(progress.String(), line) {
			t.Errorf("progress missing %q:\n%s", line, progress.String())
		}
	}

	// The persisted index is reloadable and searchable.
	idx, err := rag.OpenLocalIndex(dir)
	if err != nil {
		t.Fatalf("OpenLocalIndex: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("index size: got %d, want 1", idx.Len())
	}
	info := idx.Info()
	if info.Provider != "test" || info.Model != "words" || info.Dimensions != 3 {
		t.Errorf("persisted info: %+v", info)
	}

	hits, err := idx.Search(context.Background(), []float32{0, 1, 0}, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || !strings.Contains(hits[0].Content, "Tools are functions") {
		t.Errorf("search: %+v", hits)
	}
	meta := hits[0].Metadata
	if meta["title"] != "Agents" || meta["language"] != "en" || meta["chunk_index"] != "0" {
		t.Errorf("chunk metadata: %v", meta)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "docqa_ingest_chunks_total" {
			found = mf.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Error("docqa_ingest_chunks_total should be 1")
	}
}

func TestPipeline_RebuildReplacesPreviousIndex(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	first := serve(t, http.StatusOK, "text/plain", "agent agent agent")
	p := newTestPipeline(t, &wordEmbedder{}, rag.NewLocalIndex(dir), nil, nil)
	if _, err := p.Run(context.Background(), []Source{{URL: first.URL}}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := serve(t, http.StatusOK, "text/plain", "tool tool tool")
	p = newTestPipeline(t, &wordEmbedder{}, rag.NewLocalIndex(dir), nil, nil)
	if _, err := p.Run(context.Background(), []Source{{URL: second.URL}}); err != nil {
		t.Fatalf("second run: %v", err)
	}

	idx, err := rag.OpenLocalIndex(dir)
	if err != nil {
		t.Fatalf("OpenLocalIndex: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("want 1 chunk after rebuild, got %d", idx.Len())
	}
	hits, _ := idx.Search(context.Background(), []float32{0, 1, 0}, 1)
	if hits[0].Source != second.URL {
		t.Errorf("index still holds the first source: %+v", hits[0])
	}
}

func TestPipeline_LoadFailureKeepsExistingIndex(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	ok := serve(t, http.StatusOK, "text/plain", "memory memory")
	p := newTestPipeline(t, &wordEmbedder{}, rag.NewLocalIndex(dir), nil, nil)
	if _, err := p.Run(context.Background(), []Source{{URL: ok.URL}}); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	broken := serve(t, http.StatusInternalServerError, "text/plain", "boom")
	emb := &wordEmbedder{}
	p = newTestPipeline(t, emb, rag.NewLocalIndex(dir), nil, nil)
	_, err := p.Run(context.Background(), []Source{{URL: broken.URL}})
	if err == nil || !strings.Contains(err.Error(), "ingestion: load") {
		t.Fatalf("want load error, got %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times after a load failure", emb.calls)
	}

	idx, err := rag.OpenLocalIndex(dir)
	if err != nil {
		t.Fatalf("existing index was destroyed: %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("existing index changed: %d chunks", idx.Len())
	}
}

func TestPipeline_EmbeddingFailurePropagates(t *testing.T) {
	t.Parallel()
	srv := serve(t, http.StatusOK, "text/plain", "agent")
	quota := errors.New("quota exceeded")

	p := newTestPipeline(t, &wordEmbedder{err: quota}, rag.NewLocalIndex(t.TempDir()), nil, nil)
	_, err := p.Run(context.Background(), []Source{{URL: srv.URL}})
	if !errors.Is(err, quota) {
		t.Fatalf("want wrapped quota error, got %v", err)
	}
}

func TestPipeline_EmptyPageBuildsEmptyIndex(t *testing.T) {
	t.Parallel()
	srv := serve(t, http.StatusOK, "text/html", "<html><body></body></html>")
	dir := t.TempDir()
	var progress bytes.Buffer
	emb := &wordEmbedder{}

	p := newTestPipeline(t, emb, rag.NewLocalIndex(dir), &progress, nil)
	report, err := p.Run(context.Background(), []Source{{URL: srv.URL}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Pages != 0 || report.Chunks != 0 {
		t.Errorf("report: %+v", report)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called with no chunks")
	}
	if !strings.Contains(progress.String(), "Successfully loaded 0 document(s).") {
		t.Errorf("progress: %s", progress.String())
	}
	idx, err := rag.OpenLocalIndex(dir)
	if err != nil {
		t.Fatalf("OpenLocalIndex: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("want empty index, got %d", idx.Len())
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	t.Parallel()
	loader, _ := NewWebLoader(nil)
	idx := rag.NewLocalIndex(t.TempDir())

	if _, err := NewPipeline(nil, &wordEmbedder{}, idx, nil); err == nil {
		t.Error("want error for nil loader")
	}
	if _, err := NewPipeline(loader, nil, idx, nil); err == nil {
		t.Error("want error for nil embedder")
	}
	if _, err := NewPipeline(loader, &wordEmbedder{}, nil, nil); err == nil {
		t.Error("want error for nil store")
	}
	if _, err := NewPipeline(loader, &wordEmbedder{}, idx, &Config{ChunkSize: 100, ChunkOverlap: 150}); err == nil {
		t.Error("want error for overlap >= size")
	}
}

func TestNewPipeline_ChunkDefaults(t *testing.T) {
	t.Parallel()
	loader, _ := NewWebLoader(nil)
	idx := rag.NewLocalIndex(t.TempDir())

	tests := []struct {
		name                  string
		cfg                   Config
		wantSize, wantOverlap int
	}{
		{"unset", Config{}, DefaultChunkSize, DefaultChunkOverlap},
		{"explicit zero overlap", Config{ChunkSize: 500}, 500, 0},
		{"explicit both", Config{ChunkSize: 500, ChunkOverlap: 50}, 500, 50},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			if _, err := NewPipeline(loader, &wordEmbedder{}, idx, &cfg); err != nil {
				t.Fatalf("NewPipeline: %v", err)
			}
			if cfg.ChunkSize != tc.wantSize || cfg.ChunkOverlap != tc.wantOverlap {
				t.Errorf("got size=%d overlap=%d, want %d/%d", cfg.ChunkSize, cfg.ChunkOverlap, tc.wantSize, tc.wantOverlap)
			}
		})
	}
}

func TestMergeMetadata_Precedence(t *testing.T) {
	t.Parallel()
	src := Source{
		URL:      "https://python.langchain.com/v0.1/docs/modules/agents/",
		Metadata: map[string]string{"doc_type": "concept"},
	}
	got := mergeMetadata(src, map[string]string{"title": "Agents", "site": "override"})

	want := map[string]string{
		"site":     "override",
		"version":  "v0.1",
		"section":  "modules/agents",
		"doc_type": "concept",
		"title":    "Agents",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: got %q, want %q", k, got[k], v)
		}
	}
}
