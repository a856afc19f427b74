// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveSearchSource("geo", "ok")
	m.ObserveSearchSource("geo", "ok")
	m.ObserveSearchSource("europepmc", "timeout")
	m.ObserveAttempt("unpaywall", "success", 200*time.Millisecond)
	m.ObserveAttempt("europepmc", "not_found", 50*time.Millisecond)
	m.ObserveCache("raw", "hit")
	m.ObserveLimiterWait("europepmc")
	m.ObserveResolve("fetched")
	m.ObserveSearch(time.Second, 13)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.searchSource.WithLabelValues("geo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.searchSource.WithLabelValues("europepmc", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("unpaywall", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("raw", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.limiterWaits.WithLabelValues("europepmc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolveTotal.WithLabelValues("fetched")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.attempts))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSearchSource("geo", "ok")
		m.ObserveSearch(time.Second, 1)
		m.ObserveAttempt("doi", "error", time.Second)
		m.ObserveLimiterWait("doi")
		m.ObserveResolve("cached")
		m.ObserveCache("parsed", "miss")
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("ignored"))
}

func TestIndependentInstances(t *testing.T) {
	// Each instance owns its registry, so two can coexist.
	a, b := New(), New()
	a.ObserveCache("search", "hit")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.cacheRequests.WithLabelValues("search", "hit")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveAttempt("openalex", "rate_limited", time.Second)

	path := filepath.Join(t.TempDir(), "biosearch.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `biosearch_fulltext_attempts_total{outcome="rate_limited",source="openalex"} 1`)
}
