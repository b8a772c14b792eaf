// Package zonal computes per-zone statistics of raster series.
package zonal

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"sync"

	"github.com/forest-guardian/phenology-zones/internal/collection"
	"github.com/forest-guardian/phenology-zones/internal/export"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/forest-guardian/phenology-zones/internal/zone"
	"github.com/gammazero/workerpool"
)

var statistics = raster.Combine(raster.Mean(), raster.StdDev(), raster.Count())

// Limits bound a single reduction. The zero value reduces every pixel.
type Limits struct {
	MaxSamples int
	BestEffort bool
	TileScale  int
}

// Aggregate returns one row per zone holding at least one unmasked pixel of
// r. r must share the zone map's grid.
func Aggregate(ctx context.Context, r *collection.TimestampedRaster, zones *zone.Map, limits Limits) ([]export.ZoneStat, error) {
	red, err := raster.ReduceRegion(ctx, r.Layer, nil, statistics, raster.ReduceOptions{
		MaxSamples: limits.MaxSamples,
		BestEffort: limits.BestEffort,
		TileScale:  limits.TileScale,
		GroupBy:    zones.Layer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", r, err)
	}

	rows := make([]export.ZoneStat, 0, len(red.Groups))
	for _, g := range red.Groups {
		n := int(g.Values["count"])
		if n == 0 {
			continue
		}
		rows = append(rows, export.ZoneStat{
			Date:      export.NewDate(r.Date),
			Year:      r.Year,
			DOY:       r.DOY,
			Satellite: r.Satellite,
			ZoneID:    g.ID,
			ValueMean: g.Values["mean"],
			ValueStd:  g.Values["stdDev"],
			NPixels:   n,
		})
	}
	return rows, nil
}

// AggregateSeries aggregates every raster of series on a pool of workers.
// emit receives the rows of one raster at a time and is never called
// concurrently. Rasters are pulled from series as workers free up, so at
// most 2*workers rasters are held at once. The first error stops the pass.
func AggregateSeries(ctx context.Context, series iter.Seq2[*collection.TimestampedRaster, error], zones *zone.Map, limits Limits, workers int, emit func([]export.ZoneStat)) error {
	return Each(ctx, series, workers, func(ctx context.Context, r *collection.TimestampedRaster) (func(), error) {
		rows, err := Aggregate(ctx, r, zones, limits)
		if err != nil {
			return nil, err
		}
		return func() { emit(rows) }, nil
	})
}

// Each runs work for every raster of series on a workerpool. The function
// work returns is run under a lock, one raster at a time, to publish results.
func Each(ctx context.Context, series iter.Seq2[*collection.TimestampedRaster, error], workers int, work func(context.Context, *collection.TimestampedRaster) (func(), error)) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp := workerpool.New(workers)
	slots := make(chan struct{}, 2*workers)

	var (
		mu             sync.Mutex
		firstErr       error
		stopProcessing sync.Once
	)
	fail := func(err error) {
		stopProcessing.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for r, err := range series {
		if err != nil {
			fail(err)
			break
		}
		if ctx.Err() != nil {
			break
		}
		slots <- struct{}{}
		wp.Submit(func() {
			defer func() { <-slots }()
			if ctx.Err() != nil {
				return
			}
			publish, err := work(ctx, r)
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			publish()
		})
	}
	wp.StopWait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
