// Package metrics provides internal Prometheus metrics collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector groups the pipeline's Prometheus metrics. A nil *Collector is
// valid and records nothing, so instrumentation sites never branch.
type Collector struct {
	documentsIngested   prometheus.Counter
	fragmentsIndexed    prometheus.Counter
	ingestionFailures   prometheus.Counter
	retrievalQueries    prometheus.Counter
	retrievalDuration   prometheus.Histogram
	retrievalCandidates prometheus.Histogram
	answersTotal        *prometheus.CounterVec
	answerDuration      prometheus.Histogram

	logger *zap.Logger
}

// NewCollector creates a collector registered against reg. Tests pass a
// private registry to avoid global registration collisions.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		documentsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents successfully chunked into fragments.",
		}),
		fragmentsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_indexed_total",
			Help:      "Fragments embedded and written to the vector index.",
		}),
		ingestionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_failures_total",
			Help:      "Documents that failed to ingest.",
		}),
		retrievalQueries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_queries_total",
			Help:      "Retrieval invocations.",
		}),
		retrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "End-to-end retrieval latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalCandidates: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_candidates",
			Help:      "Candidates returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 10},
		}),
		answersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers composed, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		answerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "End-to-end answer composition latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// DocumentIngested records one successfully chunked document.
func (c *Collector) DocumentIngested() {
	if c == nil {
		return
	}
	c.documentsIngested.Inc()
}

// IngestionFailed records one failed document ingestion.
func (c *Collector) IngestionFailed() {
	if c == nil {
		return
	}
	c.ingestionFailures.Inc()
}

// FragmentsIndexed records fragments written to the vector index.
func (c *Collector) FragmentsIndexed(n int) {
	if c == nil {
		return
	}
	c.fragmentsIndexed.Add(float64(n))
}

// RetrievalObserved records one retrieval with its latency and result size.
func (c *Collector) RetrievalObserved(d time.Duration, candidates int) {
	if c == nil {
		return
	}
	c.retrievalQueries.Inc()
	c.retrievalDuration.Observe(d.Seconds())
	c.retrievalCandidates.Observe(float64(candidates))
}

// AnswerObserved records one composed answer. Outcome is "answered" or
// "refused".
func (c *Collector) AnswerObserved(mode string, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.answersTotal.WithLabelValues(mode, outcome).Inc()
	c.answerDuration.Observe(d.Seconds())
}
