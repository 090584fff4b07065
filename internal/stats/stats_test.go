package stats

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.registry, "expected registry to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/metrics"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /metrics to be set")
	assert.Equal(t, "GET /metrics", pattern, "expected handler to be registered for GET method on /metrics")
}

func TestStatsUpdater_Counter(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterCounter("test_events_total", "Test events.")

	su.Incr("test_events_total")
	su.Incr("test_events_total")

	assert.Equal(t, 2.0, testutil.ToFloat64(su.counters["test_events_total"]))
}

func TestStatsUpdater_Gauge(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterGauge("test_active", "Test active count.")

	su.Incr("test_active")
	su.Incr("test_active")
	su.Decr("test_active")
	assert.Equal(t, 1.0, testutil.ToFloat64(su.gauges["test_active"]))

	su.Set("test_active", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(su.gauges["test_active"]))
}

func TestStatsUpdater_UnknownMetricPanics(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())

	assert.Panics(t, func() { su.Incr("nope") })
	assert.Panics(t, func() { su.Decr("nope") })
	assert.Panics(t, func() { su.Set("nope", 1) })
}
