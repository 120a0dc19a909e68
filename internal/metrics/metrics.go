// Package metrics holds the Prometheus collectors for batch launches.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pivbatch",
			Name:      "launch_total",
			Help:      "Folders processed, by outcome.",
		}, []string{"outcome"},
	)
	pruneRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pivbatch",
			Name:      "prune_removed_total",
			Help:      "Registry entries removed because their process was gone.",
		},
	)
	registryInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pivbatch",
			Name:      "registry_instances",
			Help:      "Entries in the instance registry after the last update.",
		},
	)
	injectionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pivbatch",
			Name:      "injection_seconds",
			Help:      "Time spent typing one form, including scripted waits.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, pruneRemoved, registryInstances, injectionSeconds}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// HandlerFor serves metrics from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// WriteTextfile writes all metrics from g in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncLaunch(outcome string) {
	if regOK.Load() {
		launches.WithLabelValues(outcome).Inc()
	}
}

func AddPruned(n int) {
	if regOK.Load() && n > 0 {
		pruneRemoved.Add(float64(n))
	}
}

func SetRegistryInstances(n int) {
	if regOK.Load() {
		registryInstances.Set(float64(n))
	}
}

func ObserveInjection(seconds float64) {
	if regOK.Load() {
		injectionSeconds.Observe(seconds)
	}
}
