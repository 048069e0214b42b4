// Package metrics registers the Prometheus metrics shared by the ingestion
// pipeline and the query assistant. A single Metrics value is built per
// process against an injectable registry so tests stay hermetic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "docqa"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds every collector owned by docqa. A nil *Metrics is valid and
// records nothing, so callers never need to guard their calls.
type Metrics struct {
	// pagesLoaded counts documents returned by the loader.
	pagesLoaded prometheus.Counter

	// chunksProduced counts chunks emitted by the splitter.
	chunksProduced prometheus.Counter

	// embeddedTexts counts texts embedded, partitioned by phase ("ingest", "query").
	embeddedTexts *prometheus.CounterVec

	// embeddingBatches counts embedding requests sent.
	embeddingBatches prometheus.Counter

	// stageDurationSeconds records how long each ingestion stage took.
	stageDurationSeconds *prometheus.HistogramVec

	// questionsTotal counts answered questions, partitioned by outcome.
	questionsTotal *prometheus.CounterVec

	// answerDurationSeconds records the wall-clock time from question to the
	// end of the streamed answer.
	answerDurationSeconds *prometheus.HistogramVec

	// retrievedDocuments records how many chunks each retrieval returned.
	retrievedDocuments prometheus.Histogram

	// indexChunks is the number of chunks in the loaded or freshly built index.
	indexChunks prometheus.Gauge
}

// New registers all metrics against reg and returns the populated Metrics.
// promauto.With(reg) registers into the provided registry rather than the
// global default.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		pagesLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "pages_loaded_total",
			Help:      "Total number of documents returned by the web loader.",
		}),

		chunksProduced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks produced by the text splitter.",
		}),

		embeddedTexts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "texts_total",
			Help:      "Total number of texts embedded, partitioned by phase.",
		}, []string{"phase"}),

		embeddingBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "batches_total",
			Help:      "Total number of embedding requests sent.",
		}),

		stageDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each ingestion stage (load, split, embed, persist).",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),

		questionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "questions_total",
			Help:      "Total number of questions answered, partitioned by outcome.",
		}, []string{"outcome"}),

		answerDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "answer_duration_seconds",
			Help:      "Wall-clock duration from question to the end of the streamed answer.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		retrievedDocuments: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "retrieved_documents",
			Help:      "Number of chunks returned per retrieval.",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		}),

		indexChunks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Number of chunks held by the vector index.",
		}),
	}
}

// PagesLoaded adds n loaded documents.
func (m *Metrics) PagesLoaded(n int) {
	if m == nil {
		return
	}
	m.pagesLoaded.Add(float64(n))
}

// ChunksProduced adds n produced chunks.
func (m *Metrics) ChunksProduced(n int) {
	if m == nil {
		return
	}
	m.chunksProduced.Add(float64(n))
}

// EmbeddingBatch records one embedding request of n texts in phase.
func (m *Metrics) EmbeddingBatch(phase string, n int) {
	if m == nil {
		return
	}
	m.embeddingBatches.Inc()
	m.embeddedTexts.WithLabelValues(phase).Add(float64(n))
}

// StageDone records the duration of an ingestion stage in seconds.
func (m *Metrics) StageDone(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// Answered records one answered question.
func (m *Metrics) Answered(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.questionsTotal.WithLabelValues(outcome).Inc()
	m.answerDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// Retrieved records the size of one retrieval result.
func (m *Metrics) Retrieved(n int) {
	if m == nil {
		return
	}
	m.retrievedDocuments.Observe(float64(n))
}

// IndexSize sets the current index size.
func (m *Metrics) IndexSize(n int) {
	if m == nil {
		return
	}
	m.indexChunks.Set(float64(n))
}
