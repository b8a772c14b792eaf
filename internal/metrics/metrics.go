// Package metrics collects counters and timings of a pipeline run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "phenozones"

// Collector holds the metrics of one run on its own registry.
type Collector struct {
	Registry *prometheus.Registry

	// Series metrics
	RastersTotal   *prometheus.CounterVec
	SkippedTotal   *prometheus.CounterVec
	RasterDuration prometheus.Histogram

	// Output metrics
	RowsTotal *prometheus.CounterVec

	// Prelude metrics
	StageDuration *prometheus.HistogramVec
	CacheHits     *prometheus.CounterVec
	Thresholds    *prometheus.GaugeVec
	AOIAreaKm2    prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Collector{
		Registry: reg,

		RastersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rasters_processed_total",
				Help:      "Rasters aggregated and sampled, by satellite",
			},
			[]string{"satellite"},
		),

		SkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rasters_skipped_total",
				Help:      "Rasters skipped for a missing band, by source",
			},
			[]string{"source"},
		),

		RasterDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "raster_duration_seconds",
				Help:      "Time spent aggregating and sampling one raster",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),

		RowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_written_total",
				Help:      "Rows written per output table",
			},
			[]string{"table"},
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of each pipeline stage",
				Buckets:   []float64{0.01, 0.1, 1, 5, 30, 120, 600},
			},
			[]string{"stage"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by artifact and result",
			},
			[]string{"artifact", "result"},
		),

		Thresholds: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "zone_threshold",
				Help:      "Elevation cut point per percentile",
			},
			[]string{"percentile"},
		),

		AOIAreaKm2: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "aoi_area_km2",
				Help:      "Geodesic area of the area of interest",
			},
		),
	}
}

// ObserveStage records how long stage took since start.
func (c *Collector) ObserveStage(stage string, start time.Time) {
	c.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (c *Collector) ObserveCache(artifact string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheHits.WithLabelValues(artifact, result).Inc()
}

// WriteTextfile dumps the registry in the node exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
