// Package metrics counts duplication and annotation pipeline activity.
//
// Counters live on a private registry so tests and commands get isolated
// values. The CLI writes the registry to a node-exporter textfile when
// metrics_textfile is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Layer failure reasons used as label values.
const (
	ReasonParse   = "parse"
	ReasonUnknown = "unknown_operation"
	ReasonDecode  = "decode"
	ReasonOther   = "other"
)

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	duplicated        prometheus.Counter
	duplicateFailures prometheus.Counter
	layersApplied     *prometheus.CounterVec
	layerFailures     *prometheus.CounterVec
	imagesComposed    prometheus.Counter
}

// New creates the counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		duplicated: factory.NewCounter(prometheus.CounterOpts{
			Name: "glworb_entries_duplicated_total",
			Help: "Keyspace entries created by duplication, children included",
		}),
		duplicateFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "glworb_duplicate_child_failures_total",
			Help: "Child references left pointing at the original after a failed duplication",
		}),
		layersApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glworb_layers_applied_total",
			Help: "Annotation layers applied successfully by operation",
		}, []string{"operation"}),
		layerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "glworb_layer_failures_total",
			Help: "Annotation layers skipped by failure reason",
		}, []string{"reason"}),
		imagesComposed: factory.NewCounter(prometheus.CounterOpts{
			Name: "glworb_images_composed_total",
			Help: "Images pasted onto concatenation canvases",
		}),
	}
}

// Registry returns the registry holding the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Duplicated counts one created entry.
func (m *Metrics) Duplicated() {
	if m != nil {
		m.duplicated.Inc()
	}
}

// DuplicateFailed counts one child left stale.
func (m *Metrics) DuplicateFailed() {
	if m != nil {
		m.duplicateFailures.Inc()
	}
}

// LayerApplied counts one successful layer.
func (m *Metrics) LayerApplied(operation string) {
	if m != nil {
		m.layersApplied.WithLabelValues(operation).Inc()
	}
}

// LayerFailed counts one skipped layer.
func (m *Metrics) LayerFailed(reason string) {
	if m != nil {
		m.layerFailures.WithLabelValues(reason).Inc()
	}
}

// ImageComposed counts one image pasted onto a canvas.
func (m *Metrics) ImageComposed() {
	if m != nil {
		m.imagesComposed.Inc()
	}
}

// Totals gathers every counter and sums it across label values. The CLI logs
// it after a command; tests read single counters from it.
func (m *Metrics) Totals() (map[string]float64, error) {
	if m == nil {
		return map[string]float64{}, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(families))
	for _, mf := range families {
		var sum float64
		for _, metric := range mf.GetMetric() {
			sum += metric.GetCounter().GetValue()
		}
		totals[mf.GetName()] = sum
	}
	return totals, nil
}

// WriteTextfile writes the registry in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
