package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "canopy"

type config struct {
	namespace string
	buckets   []float64
	runtime   bool
}

// Option configures a Recorder.
type Option func(*config)

// WithNamespace sets the metric name prefix. Default "canopy".
func WithNamespace(ns string) Option {
	return func(c *config) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// WithBuckets sets the dispatch duration histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *config) {
		if len(buckets) > 0 {
			c.buckets = buckets
		}
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option {
	return func(c *config) {
		c.runtime = true
	}
}

// Recorder owns a private registry so several instances never collide.
type Recorder struct {
	registry         *prometheus.Registry
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	treeNodes        *prometheus.GaugeVec
	treeDense        *prometheus.GaugeVec
}

// New creates a Recorder and registers its collectors.
func New(opts ...Option) *Recorder {
	cfg := config{namespace: defaultNamespace, buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := prometheus.NewRegistry()
	if cfg.runtime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Name:      "dispatch_total",
			Help:      "Mode dispatches by unit kind and outcome.",
		}, []string{"kind", "outcome"}),
		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent resolving and invoking a mode.",
			Buckets:   cfg.buckets,
		}, []string{"kind"}),
		treeNodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "tree_nodes",
			Help:      "Rows in a nested set table at the last check.",
		}, []string{"table"}),
		treeDense: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Name:      "tree_dense",
			Help:      "1 when the last check found boundaries numbered 1..2n.",
		}, []string{"table"}),
	}
}

// ObserveDispatch records one dispatch.
func (r *Recorder) ObserveDispatch(kind, outcome string, d time.Duration) {
	r.dispatchTotal.WithLabelValues(kind, outcome).Inc()
	r.dispatchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveTree records the result of a tree check.
func (r *Recorder) ObserveTree(table string, nodes int, dense bool) {
	r.treeNodes.WithLabelValues(table).Set(float64(nodes))
	v := 0.0
	if dense {
		v = 1
	}
	r.treeDense.WithLabelValues(table).Set(v)
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
