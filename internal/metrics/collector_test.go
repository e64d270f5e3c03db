package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("docqa", reg, nil)

	c.DocumentIngested()
	c.DocumentIngested()
	c.IngestionFailed()
	c.FragmentsIndexed(7)
	c.RetrievalObserved(50*time.Millisecond, 4)
	c.AnswerObserved("strict", "answered", 100*time.Millisecond)
	c.AnswerObserved("strict", "refused", 10*time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(c.documentsIngested), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.ingestionFailures), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(c.fragmentsIndexed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.retrievalQueries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.answersTotal.WithLabelValues("strict", "answered")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.answersTotal.WithLabelValues("strict", "refused")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	// All recording methods must be no-ops on a nil collector.
	c.DocumentIngested()
	c.IngestionFailed()
	c.FragmentsIndexed(3)
	c.RetrievalObserved(time.Millisecond, 1)
	c.AnswerObserved("hybrid", "answered", time.Millisecond)
}
