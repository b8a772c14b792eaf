package geotiff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/phenology-zones/internal/catalog"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTiff creates a 4x4 single-band GeoTIFF over [-111,-110]x[32,33].
func writeTiff(t *testing.T, path string, value float64) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float64, 4, 4)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{-111, 0.25, 0, 33, 0, -0.25}))

	band := ds.Bands()[0]
	require.NoError(t, band.SetNoData(-3000))
	data := make([]float64, 16)
	for i := range data {
		data[i] = value
	}
	data[0] = -3000
	require.NoError(t, band.Write(0, 0, data, 4, 4))
	require.NoError(t, ds.Close())
}

func TestParseAcquired(t *testing.T) {
	for name, want := range map[string]string{
		"MOD13Q1_2020-03-05.tif":  "2020-03-05",
		"2019-12-31.tiff":         "2019-12-31",
		"/x/y/EVI_2021-01-01.TIF": "2021-01-01",
	} {
		got, err := ParseAcquired(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got.Format("2006-01-02"))
	}

	_, err := ParseAcquired("elevation.tif")
	assert.Error(t, err)
	_, err = ParseAcquired("MOD13Q1_2020-03-05.png")
	assert.Error(t, err)
}

func TestReadLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "MOD13Q1_2020-01-01.tif")
	writeTiff(t, path, 4200)

	layer, err := ReadLayer(path, "1")
	require.NoError(t, err)
	assert.Equal(t, 4, layer.Width)
	assert.Equal(t, 4, layer.Height)
	assert.Equal(t, -3000.0, layer.NoData)
	assert.Equal(t, 15, layer.ValidCount())
	assert.Equal(t, 4200.0, layer.At(3, 3))

	_, err = ReadLayer(path, "2")
	assert.True(t, errors.Is(err, raster.ErrBandMissing))
	_, err = ReadLayer(path, "SummaryQA")
	assert.True(t, errors.Is(err, raster.ErrBandMissing))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeTiff(t, filepath.Join(root, "MOD13Q1", "MOD13Q1_2020-01-01.tif"), 1)
	writeTiff(t, filepath.Join(root, "MOD13Q1", "MOD13Q1_2020-01-17.tif"), 2)
	writeTiff(t, filepath.Join(root, "MYD13Q1", "MYD13Q1_2020-01-09.tif"), 3)
	require.NoError(t, os.WriteFile(filepath.Join(root, "MOD13Q1", "README.txt"), []byte("x"), 0o644))

	idx, err := catalog.Open(":memory:")
	require.NoError(t, err)
	defer idx.Close()

	ctx := context.Background()
	n, err := Scan(ctx, root, idx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sources, err := idx.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"MOD13Q1", "MYD13Q1"}, sources)

	store := raster.NewStore(idx, Reader{})
	var ids []string
	for img, err := range store.Load(ctx, "MOD13Q1", nil, mustDate(t, "2020-01-01"), mustDate(t, "2020-02-01")) {
		require.NoError(t, err)
		ids = append(ids, img.ID)
		assert.InDelta(t, -111.0, img.Bound.Min[0], 1e-9)
		assert.InDelta(t, 33.0, img.Bound.Max[1], 1e-9)
	}
	assert.Equal(t, []string{"MOD13Q1_2020-01-01", "MOD13Q1_2020-01-17"}, ids)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseAcquired(s + ".tif")
	require.NoError(t, err)
	return d
}
