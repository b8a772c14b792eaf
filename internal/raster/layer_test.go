package raster_test

import (
	"math"
	"testing"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/forest-guardian/phenology-zones/internal/testutil"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoTransformRoundTrip(t *testing.T) {
	gt := raster.GeoTransform{-110.9, 0.0025, 0, 32.5, 0, -0.0025}
	x, y := gt.Apply(10.5, 20.5)
	assert.InDelta(t, -110.87375, x, 1e-9)
	assert.InDelta(t, 32.44875, y, 1e-9)

	px, py, err := gt.Invert(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 10.5, px, 1e-9)
	assert.InDelta(t, 20.5, py, 1e-9)

	_, _, err = raster.GeoTransform{}.Invert(1, 1)
	assert.Error(t, err)
}

func TestLayerCells(t *testing.T) {
	layer := testutil.Ramp(t, 10)

	col, row, ok := layer.Cell(orb.Point{0.05, 0.95})
	require.True(t, ok)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)

	col, row, ok = layer.Cell(orb.Point{0.99, 0.01})
	require.True(t, ok)
	assert.Equal(t, 9, col)
	assert.Equal(t, 9, row)

	_, _, ok = layer.Cell(orb.Point{1.5, 0.5})
	assert.False(t, ok)

	center := layer.Center(3, 0)
	assert.InDelta(t, 0.35, center[0], 1e-12)
	assert.InDelta(t, 0.95, center[1], 1e-12)
	assert.InDelta(t, 35, layer.At(3, 0), 1e-9)
}

func TestLayerValidity(t *testing.T) {
	layer, err := raster.NewLayer(2, 1, testutil.UnitTransform(2), -9999, []float64{-9999, 4})
	require.NoError(t, err)
	assert.False(t, layer.ValidAt(0, 0))
	assert.True(t, layer.ValidAt(1, 0))
	assert.False(t, layer.IsValid(math.NaN()))
	assert.Equal(t, 1, layer.ValidCount())

	_, err = raster.NewLayer(2, 2, testutil.UnitTransform(2), 0, []float64{1})
	assert.Error(t, err)
}

func TestSameGridAndBound(t *testing.T) {
	a := testutil.Ramp(t, 8)
	b := testutil.Constant(t, 8, 1)
	c := testutil.Constant(t, 4, 1)
	assert.True(t, a.SameGrid(b))
	assert.False(t, a.SameGrid(c))

	bound := a.Bound()
	assert.InDelta(t, 0, bound.Min[0], 1e-12)
	assert.InDelta(t, 1, bound.Max[1], 1e-12)
	assert.InDelta(t, 0.125, a.ScaleMetres(), 1e-12)
}

func TestClip(t *testing.T) {
	layer := testutil.Constant(t, 10, 1)
	westHalf, err := aoi.FromBound(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.5, 1}})
	require.NoError(t, err)

	clipped := raster.Clip(layer, westHalf)
	assert.Equal(t, 50, clipped.ValidCount())
	assert.Equal(t, 100, layer.ValidCount(), "clip must not mutate its input")
	assert.True(t, clipped.ValidAt(4, 5))
	assert.False(t, clipped.ValidAt(5, 5))
}

func TestDigest(t *testing.T) {
	a := testutil.Ramp(t, 4)
	assert.Equal(t, a.Digest(), testutil.Ramp(t, 4).Digest())

	rewritten := a.Derive(append([]float64(nil), a.Data...), a.NoData)
	rewritten.Data[5] += 1
	assert.NotEqual(t, a.Digest(), rewritten.Digest(), "same grid, different samples")

	assert.NotEqual(t, a.Digest(), a.Derive(a.Data, -9999).Digest(), "nodata is part of the digest")
	assert.NotEqual(t, a.Digest(), testutil.Ramp(t, 8).Digest())
}
