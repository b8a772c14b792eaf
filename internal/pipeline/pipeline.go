// Package pipeline runs a full zonal phenology export: it classifies
// elevation zones, draws sample points, fuses the satellite series and
// writes the zone and point tables.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/cache"
	"github.com/forest-guardian/phenology-zones/internal/catalog"
	"github.com/forest-guardian/phenology-zones/internal/collection"
	"github.com/forest-guardian/phenology-zones/internal/export"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/geotiff"
	"github.com/forest-guardian/phenology-zones/internal/log"
	"github.com/forest-guardian/phenology-zones/internal/metrics"
	"github.com/forest-guardian/phenology-zones/internal/properties"
	"github.com/forest-guardian/phenology-zones/internal/quality"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/forest-guardian/phenology-zones/internal/sample"
	"github.com/forest-guardian/phenology-zones/internal/zonal"
	"github.com/forest-guardian/phenology-zones/internal/zone"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// Inputs are the data sources of a run.
type Inputs struct {
	Area      *aoi.Area
	Elevation *raster.Layer
	Store     *raster.Store
}

// Context is what every raster of the series pass is processed against.
// It is built once and only read afterwards.
type Context struct {
	RunID  string
	Config *properties.Config
	Area   *aoi.Area
	Zones  *zone.Map
	Points []sample.Point
}

type Options struct {
	Metrics *metrics.Collector
	// Progress receives the progress bar. Nil hides it.
	Progress io.Writer
}

// Open loads the area of interest and elevation and indexes the raster root
// into the scene catalog. The returned close func releases the index.
func Open(ctx context.Context, cfg *properties.Config) (*Inputs, func() error, error) {
	area, err := aoi.Load(cfg.AOIPath)
	if err != nil {
		return nil, nil, err
	}
	elevation, err := geotiff.ReadLayer(cfg.ElevationPath, cfg.ElevationBand)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read elevation: %w", err)
	}

	indexPath := cfg.IndexPath
	if indexPath == "" {
		indexPath = ":memory:"
	}
	index, err := catalog.Open(indexPath)
	if err != nil {
		return nil, nil, err
	}
	if _, err := geotiff.Scan(ctx, cfg.RasterRoot, index); err != nil {
		index.Close()
		return nil, nil, fmt.Errorf("failed to index %s: %w", cfg.RasterRoot, err)
	}

	return &Inputs{
		Area:      area,
		Elevation: elevation,
		Store:     raster.NewStore(index, geotiff.Reader{}),
	}, index.Close, nil
}

// Prepare classifies the zones and draws the sample points concurrently,
// reusing cached results when the cache directory holds them.
func Prepare(ctx context.Context, cfg *properties.Config, in *Inputs, m *metrics.Collector) (*Context, error) {
	logger := log.GetSugaredLogger()
	pctx := &Context{
		RunID:  uuid.NewString(),
		Config: cfg,
		Area:   in.Area,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		zones := cache.NewFileCache[*zone.Map](cfg.CacheDir, "zones")
		key := zones.GenerateKey(in.Area.Polygons, cfg.ElevationPath, cfg.ElevationBand, in.Elevation.Digest(),
			cfg.Percentiles, cfg.TargetScale)
		zm, hit, err := cache.GetOrCompute[*zone.Map](zones, key, func() (*zone.Map, error) {
			return zone.Classify(gctx, in.Elevation, in.Area, cfg.Percentiles, cfg.TargetScale)
		})
		if err != nil {
			return err
		}
		m.ObserveCache("zones", hit)
		m.ObserveStage("classify", start)
		pctx.Zones = zm
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		points := cache.NewFileCache[[]sample.Point](cfg.CacheDir, "points")
		key := points.GenerateKey(in.Area.Polygons, cfg.SampleCount, cfg.Seed)
		pts, hit, err := cache.GetOrCompute[[]sample.Point](points, key, func() ([]sample.Point, error) {
			return sample.Draw(in.Area, cfg.SampleCount, cfg.Seed)
		})
		if err != nil {
			return err
		}
		m.ObserveCache("points", hit)
		m.ObserveStage("sample", start)
		pctx.Points = pts
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, p := range pctx.Zones.Percentiles {
		m.Thresholds.WithLabelValues(raster.PercentileKey(p)).Set(pctx.Zones.Thresholds[i])
	}
	m.AOIAreaKm2.Set(in.Area.AreaKm2)
	logger.Infow("prepared run",
		"run", pctx.RunID,
		"areaKm2", in.Area.AreaKm2,
		"thresholds", pctx.Zones.Thresholds,
		"zoneGrid", pctx.Zones.Layer.String(),
		"points", len(pctx.Points))
	return pctx, nil
}

// Sources turns the configured collections into fuser sources.
func Sources(cfg *properties.Config) []collection.Source {
	sources := make([]collection.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, collection.Source{
			ID:          s.ID,
			Satellite:   s.Satellite,
			ValueBand:   cfg.ValueBand,
			QABand:      cfg.QABand,
			ScaleFactor: cfg.ScaleFactor,
		})
	}
	return sources
}

// alignedZones hands out the zone map resampled to each raster grid met
// during the series pass. MODIS tiles of one run normally share one grid.
type alignedZones struct {
	zones *zone.Map
	mu    sync.Mutex
	grids map[string]*zone.Map
}

func (a *alignedZones) For(layer *raster.Layer) *zone.Map {
	if a.zones.SameGrid(layer) {
		return a.zones
	}
	key := fmt.Sprintf("%dx%d%v", layer.Width, layer.Height, layer.Transform)
	a.mu.Lock()
	defer a.mu.Unlock()
	if zm, ok := a.grids[key]; ok {
		return zm
	}
	zm := a.zones.Align(layer)
	a.grids[key] = zm
	return zm
}

// Run executes the whole export and writes zones.csv and points.csv under
// the configured output directory.
func Run(ctx context.Context, cfg *properties.Config, in *Inputs, opts Options) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewCollector()
	}
	logger := log.GetSugaredLogger()

	pctx, err := Prepare(ctx, cfg, in, m)
	if err != nil {
		return nil, err
	}

	fuser := collection.NewFuser(in.Store, in.Area, cfg.Start, cfg.End, quality.AtMost(cfg.KeepThreshold))
	zoneRows, pointRows, err := Series(ctx, pctx, fuser, opts.Progress, m)
	if failure.KindOf(err) == failure.DataUnavailable {
		logger.Warnw("no data in the requested window, writing empty tables", "run", pctx.RunID, "error", err)
	} else if err != nil {
		return nil, err
	}

	start := time.Now()
	export.SortZoneStats(zoneRows)
	export.SortPointValues(pointRows)
	nz, err := export.WriteCSV(zoneRows, cfg.ZonesPath(), export.ZoneColumns)
	if err != nil {
		return nil, err
	}
	np, err := export.WriteCSV(pointRows, cfg.PointsPath(), export.PointColumns)
	if err != nil {
		return nil, err
	}
	m.RowsTotal.WithLabelValues("zones").Add(float64(nz))
	m.RowsTotal.WithLabelValues("points").Add(float64(np))
	m.ObserveStage("export", start)

	report := fuser.Report()
	for source, n := range report.Skipped {
		m.SkippedTotal.WithLabelValues(source).Add(float64(n))
	}
	summary := &Summary{
		RunID:       pctx.RunID,
		AreaKm2:     in.Area.AreaKm2,
		Percentiles: pctx.Zones.Percentiles,
		Thresholds:  pctx.Zones.Thresholds,
		Points:      len(pctx.Points),
		Sources:     cfg.Sources,
		Report:      report,
		ZoneRows:    nz,
		PointRows:   np,
		ZonesPath:   cfg.ZonesPath(),
		PointsPath:  cfg.PointsPath(),
	}
	logger.Infow("run finished", "run", pctx.RunID, "zoneRows", nz, "pointRows", np,
		"observations", report.Total(), "skipped", report.TotalSkipped())
	return summary, nil
}

// Series aggregates and samples every raster of the fused series. Rows come
// back in completion order.
func Series(ctx context.Context, pctx *Context, fuser *collection.Fuser, progress io.Writer, m *metrics.Collector) ([]export.ZoneStat, []export.PointValue, error) {
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("Aggregating rasters"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSpinnerType(14),
	)
	defer bar.Finish()

	cfg := pctx.Config
	limits := zonal.Limits{MaxSamples: cfg.MaxSamples, BestEffort: cfg.BestEffort, TileScale: cfg.TileScale}
	aligned := &alignedZones{zones: pctx.Zones, grids: map[string]*zone.Map{}}

	var (
		zoneRows  []export.ZoneStat
		pointRows []export.PointValue
	)
	start := time.Now()
	err := zonal.Each(ctx, fuser.Merge(ctx, Sources(cfg)), cfg.Workers, func(ctx context.Context, r *collection.TimestampedRaster) (func(), error) {
		began := time.Now()
		stats, err := zonal.Aggregate(ctx, r, aligned.For(r.Layer), limits)
		if err != nil {
			return nil, err
		}
		values := sample.Extract(pctx.Points, r, pctx.Zones)
		m.RasterDuration.Observe(time.Since(began).Seconds())

		return func() {
			zoneRows = append(zoneRows, stats...)
			pointRows = append(pointRows, values...)
			m.RastersTotal.WithLabelValues(r.Satellite).Inc()
			_ = bar.Add(1)
		}, nil
	})
	m.ObserveStage("series", start)
	if err != nil && !errors.Is(err, failure.DataUnavailable) {
		return nil, nil, fmt.Errorf("failed to process series: %w", err)
	}
	return zoneRows, pointRows, err
}
