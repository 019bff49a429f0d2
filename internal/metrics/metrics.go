// Package metrics exposes Prometheus instruments for the configuration
// lifecycle: reload outcomes, the generation of the active configuration and
// the deployment mode it runs in. Each Recorder owns its registry so several
// servers can live in one process.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eugenenazirov/mcp-foundation/internal/config"
)

const namespace = "mcp"

// Recorder holds the configuration metrics of one server.
type Recorder struct {
	registry   *prometheus.Registry
	reloads    *prometheus.CounterVec
	generation prometheus.Gauge
	info       *prometheus.GaugeVec
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Configuration reload attempts by result (applied, failed, rejected).",
			},
			[]string{"result"},
		),
		generation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_generation",
				Help:      "Number of configurations published since start, including the initial one.",
			},
		),
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_info",
				Help:      "Always 1; labels describe the active configuration.",
			},
			[]string{"mode", "category", "storage_backend"},
		),
	}

	r.registry.MustRegister(
		r.reloads,
		r.generation,
		r.info,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveReload counts one reload outcome.
func (r *Recorder) ObserveReload(result config.ReloadResult) {
	r.reloads.WithLabelValues(result.String()).Inc()
}

// SetActive records cfg as the published configuration.
func (r *Recorder) SetActive(cfg *config.Config) {
	r.generation.Inc()
	r.info.Reset()
	r.info.WithLabelValues(
		cfg.Mode().String(),
		cfg.Category().String(),
		cfg.StorageBackend().String(),
	).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
