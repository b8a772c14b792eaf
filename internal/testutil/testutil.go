// Package testutil provides shared raster fixtures for tests.
package testutil

import (
	"math"
	"testing"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/paulmach/orb"
)

// UnitTransform maps an n x n grid onto the unit square [0,1]x[0,1], north up.
func UnitTransform(n int) raster.GeoTransform {
	size := 1 / float64(n)
	return raster.GeoTransform{0, size, 0, 1, 0, -size}
}

// Grid builds an n x n projected layer over the unit square, filled by fn of
// the pixel centre. Pixel size is 1/n coordinate units, which ScaleMetres
// reports as metres.
func Grid(t testing.TB, n int, nodata float64, fn func(x, y float64) float64) *raster.Layer {
	t.Helper()
	tr := UnitTransform(n)
	data := make([]float64, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			x, y := tr.Apply(float64(col)+0.5, float64(row)+0.5)
			data[row*n+col] = fn(x, y)
		}
	}
	layer, err := raster.NewLayer(n, n, tr, nodata, data)
	if err != nil {
		t.Fatalf("failed to build layer: %v", err)
	}
	layer.Geographic = false
	layer.CRS = "LOCAL"
	return layer
}

// Ramp is a west to east elevation ramp from 0 to 100.
func Ramp(t testing.TB, n int) *raster.Layer {
	return Grid(t, n, math.NaN(), func(x, _ float64) float64 { return 100 * x })
}

func Constant(t testing.TB, n int, v float64) *raster.Layer {
	return Grid(t, n, math.NaN(), func(_, _ float64) float64 { return v })
}

func UnitSquare(t testing.TB) *aoi.Area {
	t.Helper()
	area, err := aoi.FromBound(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}})
	if err != nil {
		t.Fatalf("failed to build unit square: %v", err)
	}
	return area
}

func Date(t testing.TB, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}
