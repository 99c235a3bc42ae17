package telemetry

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		buf.Add(q)
	}

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"q3", "q4", "q5"}, buf.Items())
}

func TestCircularBuffer_EmptyAndDefaultCapacity(t *testing.T) {
	buf := NewCircularBuffer[int](0)

	assert.Empty(t, buf.Items())
	assert.Equal(t, 100, buf.capacity)
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{20 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{200 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.d))
		})
	}
}

func TestExtractTerms_DropsOperatorsAndShortWords(t *testing.T) {
	assert.Equal(t, []string{"sqlite", "migrat", "error"},
		ExtractTerms(`SQLite AND migrat* OR "error" is`))
	assert.Nil(t, ExtractTerms("   "))
}

func TestQueryMetrics_Record_Aggregates(t *testing.T) {
	// Given: a collector with Prometheus attached
	prom := NewMetrics()
	m := NewQueryMetrics(DefaultQueryMetricsConfig(), prom)

	// When: recording a mix of searches
	m.Record(QueryEvent{Query: "docker compose", ResultCount: 3, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Query: "Docker Compose", ResultCount: 3, Latency: 5 * time.Millisecond, Cached: true})
	m.Record(QueryEvent{Query: "nothing here", ResultCount: 0, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Query: "bad\"", Failed: true})

	// Then: the snapshot reflects every event
	s := m.Snapshot()
	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, int64(1), s.FailedQueries)
	assert.Equal(t, int64(1), s.CachedQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, []string{"nothing here"}, s.ZeroResultQueries)
	assert.Equal(t, int64(1), s.ExactRepeatCount)
	assert.InDelta(t, 25.0, s.ZeroResultPercentage(), 0.001)
	require.NotEmpty(t, s.TopTerms)
	assert.Equal(t, TermCount{Term: "compose", Count: 2}, s.TopTerms[0])

	// Then: Prometheus counters agree
	assert.Equal(t, 2.0, testutil.ToFloat64(prom.SearchesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.SearchesTotal.WithLabelValues("empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.SearchesTotal.WithLabelValues("error")))
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(QueryMetricsConfig{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record(QueryEvent{Query: "parallel query", ResultCount: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), m.Snapshot().TotalQueries)
}

func TestMetrics_IndexLifecycle(t *testing.T) {
	prom := NewMetrics()

	prom.IndexStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.IndexRunning))

	prom.IndexFinished(time.Second, 120, nil)
	prom.IndexFinished(time.Second, 0, errors.New("boom"))

	assert.Equal(t, 0.0, testutil.ToFloat64(prom.IndexRunning))
	assert.Equal(t, 120.0, testutil.ToFloat64(prom.IndexedMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.IndexRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.IndexRunsTotal.WithLabelValues("failed")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var prom *Metrics

	assert.NotPanics(t, func() {
		prom.ObserveSearch(QueryEvent{})
		prom.ObserveCache(true)
		prom.IndexStarted()
		prom.IndexFinished(0, 0, nil)
		prom.ObserveHTTP("/search", "GET", 200, time.Millisecond)
	})
}

func TestMetrics_CacheCounters(t *testing.T) {
	prom := NewMetrics()

	prom.ObserveCache(true)
	prom.ObserveCache(false)
	prom.ObserveCache(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(prom.CacheTotal.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(prom.CacheTotal.WithLabelValues("miss")))
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	prom := NewMetrics()

	prom.ObserveHTTP("/search", "GET", 200, 5*time.Millisecond)
	prom.ObserveHTTP("/search", "GET", 200, 5*time.Millisecond)
	prom.ObserveHTTP("", "GET", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(prom.HTTPRequests.WithLabelValues("/search", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.HTTPRequests.WithLabelValues("unmatched", "GET", "404")))
}
