package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gather returns the metric family named name from reg, failing the test when
// it is absent.
func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s not found in gathered metrics", name)
	return nil
}

func TestMetrics_IngestCounters(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PagesLoaded(1)
	m.ChunksProduced(7)
	m.EmbeddingBatch("ingest", 4)
	m.EmbeddingBatch("ingest", 3)

	if v := gather(t, reg, "docqa_ingest_pages_loaded_total").GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("pages: want 1, got %v", v)
	}
	if v := gather(t, reg, "docqa_ingest_chunks_total").GetMetric()[0].GetCounter().GetValue(); v != 7 {
		t.Errorf("chunks: want 7, got %v", v)
	}
	if v := gather(t, reg, "docqa_embedding_batches_total").GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("batches: want 2, got %v", v)
	}

	texts := gather(t, reg, "docqa_embedding_texts_total").GetMetric()[0]
	if texts.GetCounter().GetValue() != 7 {
		t.Errorf("texts: want 7, got %v", texts.GetCounter().GetValue())
	}
	if lp := texts.GetLabel(); len(lp) != 1 || lp[0].GetValue() != "ingest" {
		t.Errorf("texts label: got %v", lp)
	}
}

func TestMetrics_AnsweredByOutcome(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Answered(OutcomeOK, 1.5)
	m.Answered(OutcomeOK, 0.5)
	m.Answered(OutcomeError, 0.1)

	found := false
	for _, metric := range gather(t, reg, "docqa_assistant_questions_total").GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "outcome" && lp.GetValue() == OutcomeOK {
				if metric.GetCounter().GetValue() != 2 {
					t.Errorf("want ok=2, got %v", metric.GetCounter().GetValue())
				}
				found = true
			}
		}
	}
	if !found {
		t.Error(`docqa_assistant_questions_total{outcome="ok"} not found`)
	}
}

func TestMetrics_IndexGauge(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IndexSize(12)
	m.IndexSize(3)

	if v := gather(t, reg, "docqa_index_chunks").GetMetric()[0].GetGauge().GetValue(); v != 3 {
		t.Errorf("want 3, got %v", v)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.PagesLoaded(1)
	m.ChunksProduced(1)
	m.EmbeddingBatch("query", 1)
	m.StageDone("load", 1)
	m.Answered(OutcomeOK, 1)
	m.Retrieved(4)
	m.IndexSize(1)
}
