package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultPort = 2112

// Config holds the telemetry server configuration.
type Config struct {
	Port int `yaml:"port"`
}

// Measurements collects measurements for prometheus.
// Each Measurements owns its registry so many instances may live in one process.
type Measurements struct {
	mux        sync.RWMutex
	factory    promauto.Factory
	registry   *prometheus.Registry
	histograms map[string]prometheus.Observer
	gauges     map[string]prometheus.Gauge
	counters   map[string]prometheus.Counter
}

// New creates Measurements with an empty registry.
func New() *Measurements {
	reg := prometheus.NewRegistry()
	return &Measurements{
		factory:    promauto.With(reg),
		registry:   reg,
		histograms: make(map[string]prometheus.Observer),
		gauges:     make(map[string]prometheus.Gauge),
		counters:   make(map[string]prometheus.Counter),
	}
}

// CreateObservableHistogram creates observable histogram if it doesn't exist yet.
func (m *Measurements) CreateObservableHistogram(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.histograms[name]; ok {
		return
	}
	m.histograms[name] = m.factory.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    description,
		Buckets: prometheus.ExponentialBuckets(100, 4, 10),
	})
}

// CreateObservableGauge creates observable gauge if it doesn't exist yet.
func (m *Measurements) CreateObservableGauge(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.gauges[name]; ok {
		return
	}
	m.gauges[name] = m.factory.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: description,
	})
}

// CreateObservableCounter creates observable counter if it doesn't exist yet.
func (m *Measurements) CreateObservableCounter(name, description string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.counters[name]; ok {
		return
	}
	m.counters[name] = m.factory.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: description,
	})
}

// RecordHistogramTime records histogram time in microseconds if entity with given name exists.
func (m *Measurements) RecordHistogramTime(name string, t time.Duration) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.histograms[name]; ok {
		v.Observe(float64(t.Microseconds()))
		return true
	}
	return false
}

// SetGauge sets the gauge to the value if entity with given name exists.
func (m *Measurements) SetGauge(name string, f float64) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.gauges[name]; ok {
		v.Set(f)
		return true
	}
	return false
}

// IncrementCounter increments the counter if entity with given name exists.
func (m *Measurements) IncrementCounter(name string) bool {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if v, ok := m.counters[name]; ok {
		v.Inc()
		return true
	}
	return false
}

// Gatherer returns the registry gathering all created measurements.
func (m *Measurements) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Run starts the server with prometheus telemetry endpoint serving given Measurements.
// Default port of 2112 is used if port value is set to 0.
// It blocks until ctx is done. Listen failure cancels the context.
func Run(ctx context.Context, cancel context.CancelFunc, cfg Config, m *Measurements) error {
	port := cfg.Port
	if port > 65535 || port < 0 {
		return fmt.Errorf("port range allowed is from 1 to 65535, received %d", port)
	}
	if port == 0 {
		port = defaultPort
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cancel()
		}
	}()

	<-ctx.Done()

	ctxx, cancelx := context.WithTimeout(context.Background(), time.Second*5)
	defer cancelx()
	return srv.Shutdown(ctxx)
}
