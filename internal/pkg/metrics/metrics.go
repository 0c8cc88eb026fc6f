package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// GuideMetrics holds the tour core's metric instruments.
// Fields are public so they can be recorded from the domain packages.
type GuideMetrics struct {
	RegionsRegisteredTotal  metric.Int64Counter
	RegionUpdatesTotal      metric.Int64Counter
	MonitoredRegionsGauge   metric.Int64Gauge
	SessionsStartedTotal    metric.Int64Counter
	VisitsCompletedTotal    metric.Int64Counter
	SessionsCancelledTotal  metric.Int64Counter
	ValidationFailuresTotal metric.Int64Counter
	VisitDwellSeconds       metric.Float64Histogram
}

var (
	guideMetrics *GuideMetrics
	once         sync.Once
)

// InitGuideMetrics initializes the global metric instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitGuideMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("loci-guide")
		var err error
		m := &GuideMetrics{}

		m.RegionsRegisteredTotal, err = meter.Int64Counter(
			"geofence_regions_registered_total",
			metric.WithDescription("Total number of geofence regions registered with the location feed"),
			metric.WithUnit("{region}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create geofence_regions_registered_total: %v", err)
		}

		m.RegionUpdatesTotal, err = meter.Int64Counter(
			"geofence_region_updates_total",
			metric.WithDescription("Total number of full region set replacements"),
			metric.WithUnit("{update}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create geofence_region_updates_total: %v", err)
		}

		m.MonitoredRegionsGauge, err = meter.Int64Gauge(
			"geofence_monitored_regions_current",
			metric.WithDescription("Current number of monitored regions"),
			metric.WithUnit("{region}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create geofence_monitored_regions_current: %v", err)
		}

		m.SessionsStartedTotal, err = meter.Int64Counter(
			"visit_sessions_started_total",
			metric.WithDescription("Total number of visit sessions started"),
			metric.WithUnit("{session}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create visit_sessions_started_total: %v", err)
		}

		m.VisitsCompletedTotal, err = meter.Int64Counter(
			"visits_completed_total",
			metric.WithDescription("Total number of completed visits"),
			metric.WithUnit("{visit}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create visits_completed_total: %v", err)
		}

		m.SessionsCancelledTotal, err = meter.Int64Counter(
			"visit_sessions_cancelled_total",
			metric.WithDescription("Total number of cancelled visit sessions"),
			metric.WithUnit("{session}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create visit_sessions_cancelled_total: %v", err)
		}

		m.ValidationFailuresTotal, err = meter.Int64Counter(
			"visit_validation_failures_total",
			metric.WithDescription("Total number of failed visit validations, by reason"),
			metric.WithUnit("{failure}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create visit_validation_failures_total: %v", err)
		}

		m.VisitDwellSeconds, err = meter.Float64Histogram(
			"visit_dwell_seconds",
			metric.WithDescription("Dwell time of completed visits in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create visit_dwell_seconds: %v", err)
		}

		log.Println("Guide metrics instruments initialized.")
		guideMetrics = m
	})
}

// Get returns the globally initialized GuideMetrics instance.
// Panics if InitGuideMetrics was not called first.
func Get() *GuideMetrics {
	if guideMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitGuideMetrics() first.")
	}
	return guideMetrics
}
