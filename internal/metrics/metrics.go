// Package metrics exposes Prometheus instrumentation for the content
// pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace prefixes all pipeline metrics.
	Namespace = "contentforge"
	// Subsystem groups the pipeline metrics.
	Subsystem = "pipeline"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	ItemsGenerated prometheus.Counter
	ItemsFailed    prometheus.Counter
	ItemsStopped   prometheus.Counter
	ItemsPublished prometheus.Counter

	// ProviderCalls is labeled by provider name and outcome
	// (success|error).
	ProviderCalls *prometheus.CounterVec

	JSONRepairs *prometheus.CounterVec

	// UploadsByLayer is labeled by the fallback layer that finally
	// served the upload (direct|relay|host|exhausted).
	UploadsByLayer *prometheus.CounterVec

	StageDuration *prometheus.HistogramVec
	WordCount     prometheus.Histogram
}

// New creates and registers the pipeline collectors. A nil registerer
// uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ItemsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "items_generated_total",
			Help:      "Content items that reached the done state",
		}),
		ItemsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "items_failed_total",
			Help:      "Content items that ended in the error state",
		}),
		ItemsStopped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "items_stopped_total",
			Help:      "Content items stopped by user request",
		}),
		ItemsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "items_published_total",
			Help:      "Content items published to the destination CMS",
		}),
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "provider_calls_total",
			Help:      "AI provider invocations by provider and outcome",
		}, []string{"provider", "outcome"}),
		JSONRepairs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "json_repairs_total",
			Help:      "JSON repair attempts by tier (local|ai) and outcome",
		}, []string{"tier", "outcome"}),
		UploadsByLayer: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "image_uploads_total",
			Help:      "Image uploads by the fallback layer that served them",
		}, []string{"layer"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Orchestrator stage duration",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage"}),
		WordCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "article_word_count",
			Help:      "Final article word counts",
			Buckets:   prometheus.LinearBuckets(500, 500, 10),
		}),
	}
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
