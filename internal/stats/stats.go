package stats

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StatsProvider interface {
	RegisterCounter(name, help string)
	RegisterGauge(name, help string)
	Incr(name string)
	Decr(name string)
	Set(name string, value float64)
}

// StatsUpdater backs StatsProvider with a dedicated Prometheus registry
// served on GET /metrics. Metrics must be registered before use; updating
// an unregistered metric panics.
type StatsUpdater struct {
	registry *prometheus.Registry

	mu       sync.RWMutex
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

// NewStatsUpdater creates a stats updater and mounts its metrics handler.
func NewStatsUpdater(mux *http.ServeMux) *StatsUpdater {
	su := &StatsUpdater{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(su.registry, promhttp.HandlerOpts{}))
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "relay_uptime_seconds",
		Help: "Seconds since the relay process started.",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	}))
}

func (su *StatsUpdater) RegisterCounter(name, help string) {
	su.mu.Lock()
	defer su.mu.Unlock()

	su.counters[name] = promauto.With(su.registry).NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})
}

func (su *StatsUpdater) RegisterGauge(name, help string) {
	su.mu.Lock()
	defer su.mu.Unlock()

	su.gauges[name] = promauto.With(su.registry).NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

func (su *StatsUpdater) Incr(name string) {
	su.mu.RLock()
	defer su.mu.RUnlock()

	if counter, ok := su.counters[name]; ok {
		counter.Inc()
		return
	}
	if gauge, ok := su.gauges[name]; ok {
		gauge.Inc()
		return
	}

	panic("metric not found: " + name)
}

func (su *StatsUpdater) Decr(name string) {
	su.mu.RLock()
	defer su.mu.RUnlock()

	gauge, ok := su.gauges[name]
	if !ok {
		panic("gauge not found: " + name)
	}

	gauge.Dec()
}

func (su *StatsUpdater) Set(name string, value float64) {
	su.mu.RLock()
	defer su.mu.RUnlock()

	gauge, ok := su.gauges[name]
	if !ok {
		panic("gauge not found: " + name)
	}

	gauge.Set(value)
}
