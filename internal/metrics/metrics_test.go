package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recording(t *testing.T) {
	m := New()

	m.Resolved("static")
	m.Resolved("static")
	m.Resolved("external")
	m.CacheLookup("enrichment", true)
	m.CacheLookup("enrichment", false)
	m.ManagerStarted()
	m.ManagerFinished("succeeded", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("static")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("external")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("enrichment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("enrichment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ManagerRuns.WithLabelValues("succeeded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveManagers))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Resolved("inline")
		m.BatchCall("ok")
		m.CacheLookup("x", true)
		m.EnrichFailed("eod")
		m.ManagerStarted()
		m.ManagerFinished("failed", time.Second)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.BatchCall("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `holdwise_resolver_batch_calls_total{result="ok"} 1`))
}
