// Package sample draws reproducible random points inside an area and reads
// raster values under them.
package sample

import (
	"math/rand/v2"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/collection"
	"github.com/forest-guardian/phenology-zones/internal/export"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/zone"
	"github.com/paulmach/orb"
)

// pcgStream is the fixed PCG increment. Together with the seed it pins the
// point set across platforms and Go releases.
const pcgStream = 0x9e3779b97f4a7c15

// attemptsPerPoint bounds rejection sampling so a sliver polygon inside a
// large bound fails instead of spinning.
const attemptsPerPoint = 10_000

type Point struct {
	ID  int
	Lon float64
	Lat float64
}

func (p Point) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Draw returns count points uniformly distributed over area, numbered 0 to
// count-1. The same area, count and seed always give the same points.
func Draw(area *aoi.Area, count int, seed uint64) ([]Point, error) {
	if count <= 0 {
		return nil, failure.New(failure.InvalidConfig, "sampleCount", "sample count must be positive, got %d", count)
	}
	if area == nil || area.Degenerate() {
		return nil, failure.New(failure.InsufficientArea, "aoi", "cannot sample a degenerate area")
	}

	rng := rand.New(rand.NewPCG(seed, pcgStream))
	b := area.Bound
	width := b.Max[0] - b.Min[0]
	height := b.Max[1] - b.Min[1]

	points := make([]Point, 0, count)
	for attempts := 0; len(points) < count; attempts++ {
		if attempts >= count*attemptsPerPoint {
			return nil, failure.New(failure.InsufficientArea, "aoi", "only %d of %d points fell inside the area after %d attempts", len(points), count, attempts)
		}
		p := orb.Point{b.Min[0] + rng.Float64()*width, b.Min[1] + rng.Float64()*height}
		if !area.Contains(p) {
			continue
		}
		points = append(points, Point{ID: len(points), Lon: p[0], Lat: p[1]})
	}
	return points, nil
}

// Extract reads r under every point. A point gets a row only when both its
// raster cell and its zone cell are unmasked.
func Extract(points []Point, r *collection.TimestampedRaster, zones *zone.Map) []export.PointValue {
	var rows []export.PointValue
	for _, pt := range points {
		p := pt.Point()
		col, row, ok := r.Cell(p)
		if !ok {
			continue
		}
		v := r.At(col, row)
		if !r.IsValid(v) {
			continue
		}
		z, ok := zones.ZoneAt(p)
		if !ok {
			continue
		}
		rows = append(rows, export.PointValue{
			Date:      export.NewDate(r.Date),
			Year:      r.Year,
			DOY:       r.DOY,
			Value:     v,
			ZoneID:    z,
			Satellite: r.Satellite,
			Longitude: pt.Lon,
			Latitude:  pt.Lat,
			PointID:   pt.ID,
		})
	}
	return rows
}
