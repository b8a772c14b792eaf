// Package zone classifies an elevation layer into percentile zones.
package zone

import (
	"context"
	"fmt"
	"math"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/paulmach/orb"
)

// NoZone marks cells outside the area of interest or without elevation.
const NoZone = 0

var DefaultPercentiles = []float64{33, 67}

// Map is a categorical layer holding zone ids 1..len(Thresholds)+1.
type Map struct {
	*raster.Layer
	// Thresholds are the elevation cut points, ascending.
	Thresholds  []float64
	Percentiles []float64
}

// Zones is the number of zones the map distinguishes.
func (m *Map) Zones() int {
	return len(m.Thresholds) + 1
}

// ZoneAt returns the zone id under p, or false when p is off the map or in
// an unclassified cell.
func (m *Map) ZoneAt(p orb.Point) (int, bool) {
	col, row, ok := m.Cell(p)
	if !ok {
		return 0, false
	}
	v := m.At(col, row)
	if !m.IsValid(v) {
		return 0, false
	}
	return int(v), true
}

// ValidatePercentiles requires a strictly ascending list within [0,100].
func ValidatePercentiles(percentiles []float64) error {
	if len(percentiles) == 0 {
		return failure.New(failure.InvalidConfig, "percentiles", "at least one percentile is required")
	}
	for i, p := range percentiles {
		if math.IsNaN(p) || p < 0 || p > 100 {
			return failure.New(failure.InvalidConfig, "percentiles", "percentile %v is outside [0,100]", p)
		}
		if i > 0 && p <= percentiles[i-1] {
			return failure.New(failure.InvalidConfig, "percentiles", "percentiles must be strictly ascending, got %v", percentiles)
		}
	}
	return nil
}

// Thresholds computes the elevation value at each percentile over the
// unmasked pixels of elevation inside area, at native resolution.
func Thresholds(ctx context.Context, elevation *raster.Layer, area *aoi.Area, percentiles []float64) ([]float64, error) {
	if err := ValidatePercentiles(percentiles); err != nil {
		return nil, err
	}
	red, err := raster.ReduceRegion(ctx, elevation, area, raster.Percentile(percentiles...), raster.ReduceOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to compute elevation percentiles: %w", err)
	}

	thresholds := make([]float64, len(percentiles))
	for i, p := range percentiles {
		v := red.Values[raster.PercentileKey(p)]
		if math.IsNaN(v) {
			return nil, failure.New(failure.InsufficientArea, "aoi", "no unmasked elevation pixel inside the area of interest")
		}
		thresholds[i] = v
	}
	return thresholds, nil
}

// Of returns the zone of elevation v: one plus the number of thresholds
// strictly below v. A value equal to a threshold stays in the lower zone.
func Of(v float64, thresholds []float64) int {
	z := 1
	for _, t := range thresholds {
		if v > t {
			z++
		}
	}
	return z
}

// Classify assigns every pixel of elevation inside area to a zone and
// downsamples the result to targetScale metres.
func Classify(ctx context.Context, elevation *raster.Layer, area *aoi.Area, percentiles []float64, targetScale float64) (*Map, error) {
	if targetScale < 0 || math.IsNaN(targetScale) {
		return nil, failure.New(failure.InvalidConfig, "targetScale", "target scale must not be negative, got %v", targetScale)
	}
	thresholds, err := Thresholds(ctx, elevation, area, percentiles)
	if err != nil {
		return nil, err
	}

	inside := raster.InsideMask(elevation, area)
	data := make([]float64, len(elevation.Data))
	for i, v := range elevation.Data {
		if !inside[i] || !elevation.IsValid(v) {
			data[i] = NoZone
			continue
		}
		data[i] = float64(Of(v, thresholds))
	}
	zones := elevation.Derive(data, NoZone)

	factor := 1
	if native := elevation.ScaleMetres(); native > 0 && targetScale > native {
		factor = int(math.Round(targetScale / native))
	}
	if factor > 1 {
		zones, err = Downsample(zones, factor)
		if err != nil {
			return nil, err
		}
	}

	return &Map{
		Layer:       zones,
		Thresholds:  thresholds,
		Percentiles: append([]float64(nil), percentiles...),
	}, nil
}

// Downsample aggregates factor x factor blocks of a categorical layer by
// plurality. Ties go to the lowest id and blocks without a valid cell become
// nodata. Partial blocks at the right and bottom edges are kept.
func Downsample(layer *raster.Layer, factor int) (*raster.Layer, error) {
	if factor < 1 {
		return nil, failure.New(failure.InvalidConfig, "targetScale", "downsampling factor %d must be at least 1", factor)
	}
	width := (layer.Width + factor - 1) / factor
	height := (layer.Height + factor - 1) / factor
	data := make([]float64, width*height)

	mode := raster.Mode()
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			acc := mode.NewAccumulator()
			for y := row * factor; y < min(layer.Height, (row+1)*factor); y++ {
				for x := col * factor; x < min(layer.Width, (col+1)*factor); x++ {
					if v := layer.At(x, y); layer.IsValid(v) {
						acc.Add(v)
					}
				}
			}
			z := acc.Result()["mode"]
			if math.IsNaN(z) {
				z = layer.NoData
			}
			data[row*width+col] = z
		}
	}

	tr := layer.Transform
	tr[1] *= float64(factor)
	tr[2] *= float64(factor)
	tr[4] *= float64(factor)
	tr[5] *= float64(factor)
	out, err := raster.NewLayer(width, height, tr, layer.NoData, data)
	if err != nil {
		return nil, fmt.Errorf("failed to downsample zones: %w", err)
	}
	out.CRS = layer.CRS
	out.Geographic = layer.Geographic
	return out, nil
}

// Align resamples the map onto the grid of template by nearest cell, so it
// can group rasters on a different grid. The map is returned unchanged when
// the grids already match.
func (m *Map) Align(template *raster.Layer) *Map {
	if m.SameGrid(template) {
		return m
	}
	data := make([]float64, template.Width*template.Height)
	for row := 0; row < template.Height; row++ {
		for col := 0; col < template.Width; col++ {
			z, ok := m.ZoneAt(template.Center(col, row))
			if !ok {
				z = NoZone
			}
			data[template.Index(col, row)] = float64(z)
		}
	}
	return &Map{
		Layer:       template.Derive(data, NoZone),
		Thresholds:  m.Thresholds,
		Percentiles: m.Percentiles,
	}
}
