package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry maps (group, name, dimensions) onto Prometheus collectors,
// creating them lazily on first use. A metric's dimension key set is fixed
// by its first report; later reports with a different key set are dropped.
type Registry struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
}

var _defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return _defaultRegistry
}

// Handler returns an HTTP handler serving the default registry in the
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(_defaultRegistry.registry, promhttp.HandlerOpts{})
}

func labelNames(dims Dimension) []string {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IncrCounter adds value to the named counter.
func (r *Registry) IncrCounter(group, name string, value Value, dims Dimension) {
	r.mu.Lock()
	key := group + "_" + name
	vec, ok := r.counters[key]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: group,
			Name:      name,
		}, labelNames(dims))
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.counters[key] = vec
	}
	r.mu.Unlock()

	c, err := vec.GetMetricWith(prometheus.Labels(dims))
	if err != nil {
		return
	}
	c.Add(float64(value))
}

// UpdateGauge sets the named gauge to value.
func (r *Registry) UpdateGauge(group, name string, value Value, dims Dimension) {
	r.mu.Lock()
	key := group + "_" + name
	vec, ok := r.gauges[key]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: group,
			Name:      name,
		}, labelNames(dims))
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.gauges[key] = vec
	}
	r.mu.Unlock()

	g, err := vec.GetMetricWith(prometheus.Labels(dims))
	if err != nil {
		return
	}
	g.Set(float64(value))
}

// IncrCounterWithGroup adds value to a dimensionless counter in group.
func IncrCounterWithGroup(group, name string, value Value) {
	_defaultRegistry.IncrCounter(group, name, value, nil)
}

// IncrCounterWithDimGroup adds value to a dimensioned counter in group.
func IncrCounterWithDimGroup(group, name string, value Value, dims Dimension) {
	_defaultRegistry.IncrCounter(group, name, value, dims)
}

// UpdateGaugeWithGroup sets a dimensionless gauge in group.
func UpdateGaugeWithGroup(group, name string, value Value) {
	_defaultRegistry.UpdateGauge(group, name, value, nil)
}

// UpdateGaugeWithDimGroup sets a dimensioned gauge in group.
func UpdateGaugeWithDimGroup(group, name string, value Value, dims Dimension) {
	_defaultRegistry.UpdateGauge(group, name, value, dims)
}
