// Package metrics counts generation attempts and outcomes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultNamespace = "llm_synthdata"

// Attempt outcomes.
const (
	AttemptSucceeded  = "succeeded"
	AttemptBackend    = "backend_error"
	AttemptExtraction = "extraction_error"
	AttemptValidation = "validation_error"
)

// Generation outcomes.
const (
	GenerationSucceeded = "succeeded"
	GenerationExhausted = "exhausted"
	GenerationRejected  = "rejected"
	GenerationCanceled  = "canceled"
	GenerationPersist   = "persist_error"
)

// Collector holds the generation metrics. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	attemptsTotal    *prometheus.CounterVec
	generationsTotal *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	recordsGenerated prometheus.Histogram
}

// NewCollector registers the metrics on a private registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Backend attempts by outcome",
			},
			[]string{"outcome"},
		),
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Generate calls by final outcome",
			},
			[]string{"outcome"},
		),
		backendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Backend chat completion latency in seconds",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		recordsGenerated: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "records_generated",
				Help:      "Rows in successfully generated tables",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

func (c *Collector) ObserveAttempt(outcome string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveBackendCall(model string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.backendDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveGeneration(outcome string, records int) {
	if c == nil {
		return
	}
	c.generationsTotal.WithLabelValues(outcome).Inc()
	if outcome == GenerationSucceeded {
		c.recordsGenerated.Observe(float64(records))
	}
}

// Gatherer exposes the private registry.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}

// WriteTextfile dumps the current values in the node exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
