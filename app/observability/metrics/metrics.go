package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	EnvelopesEmittedTotal       metric.Int64Counter
	AdventuresStartedTotal      metric.Int64Counter
	ImageGenerationFailedTotal  metric.Int64Counter
	UpstreamCallDurationSeconds metric.Float64Histogram
	UpstreamCallErrorsTotal     metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once. It reads the
// Meter from the globally configured MeterProvider, so tracer setup must run
// first.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("CityAdventures")
		var err error
		m := &AppMetrics{}

		m.EnvelopesEmittedTotal, err = meter.Int64Counter(
			"relay_envelopes_emitted_total",
			metric.WithDescription("Total number of relay envelopes written to adventure streams"),
			metric.WithUnit("{envelope}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create relay_envelopes_emitted_total: %v", err)
		}

		m.AdventuresStartedTotal, err = meter.Int64Counter(
			"adventures_started_total",
			metric.WithDescription("Total number of adventure generations started"),
			metric.WithUnit("{adventure}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create adventures_started_total: %v", err)
		}

		m.ImageGenerationFailedTotal, err = meter.Int64Counter(
			"image_generation_failed_total",
			metric.WithDescription("Total number of per-card image generations that failed"),
			metric.WithUnit("{image}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create image_generation_failed_total: %v", err)
		}

		m.UpstreamCallDurationSeconds, err = meter.Float64Histogram(
			"upstream_call_duration_seconds",
			metric.WithDescription("Duration of upstream provider calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_call_duration_seconds: %v", err)
		}

		m.UpstreamCallErrorsTotal, err = meter.Int64Counter(
			"upstream_call_errors_total",
			metric.WithDescription("Total number of upstream provider calls that failed"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create upstream_call_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance, initializing it
// against the current MeterProvider on first use. Instruments created before
// tracer setup bind to the no-op provider, so main must install the real
// provider before the first Get.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
