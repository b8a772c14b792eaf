package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thresholds struct {
	Percentiles []float64 `json:"percentiles"`
	Values      []float64 `json:"values"`
}

func TestFileCacheRoundTrip(t *testing.T) {
	fc := NewFileCache[thresholds](t.TempDir(), "zones")
	key := fc.GenerateKey("aoi.geojson", "dem.tif", []float64{33, 67}, 250.0)
	assert.Len(t, key, 40)
	assert.Equal(t, key, fc.GenerateKey("aoi.geojson", "dem.tif", []float64{33, 67}, 250.0))
	assert.NotEqual(t, key, fc.GenerateKey("aoi.geojson", "dem.tif", []float64{25, 75}, 250.0))

	_, ok := fc.Get(key)
	assert.False(t, ok)

	want := thresholds{Percentiles: []float64{33, 67}, Values: []float64{1520.5, 1788}}
	require.NoError(t, fc.Set(key, want))

	got, ok := fc.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestFileCacheRejectsTamperedEntry(t *testing.T) {
	dir := t.TempDir()
	fc := NewFileCache[thresholds](dir, "zones")
	require.NoError(t, fc.Set("k", thresholds{Values: []float64{1}}))

	path := filepath.Join(dir, "zones", "k.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"values":[1]`)
	tampered := strings.Replace(string(raw), `"values":[1]`, `"values":[2]`, 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0644))

	_, ok := fc.Get("k")
	assert.False(t, ok)
}

func TestDisabledCache(t *testing.T) {
	fc := NewFileCache[int]("", "points")
	assert.False(t, fc.Enabled())
	require.NoError(t, fc.Set("k", 1))
	_, ok := fc.Get("k")
	assert.False(t, ok)
}

func TestGetOrCompute(t *testing.T) {
	fc := NewFileCache[[]int](t.TempDir(), "points")
	calls := 0
	compute := func() ([]int, error) {
		calls++
		return []int{3, 1, 2}, nil
	}

	v, hit, err := GetOrCompute[[]int](fc, "k", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []int{3, 1, 2}, v)

	v, hit, err = GetOrCompute[[]int](fc, "k", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []int{3, 1, 2}, v)
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, _, err = GetOrCompute[[]int](fc, "other", func() ([]int, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	_, ok := fc.Get("other")
	assert.False(t, ok)
}

func TestGetOrComputeSurvivesUnwritableCache(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0644))
	fc := NewFileCache[[]int](root, "points")
	require.Error(t, fc.Set("k", []int{1}))

	v, hit, err := GetOrCompute[[]int](fc, "k", func() ([]int, error) { return []int{1, 2}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []int{1, 2}, v)
}

func TestFileCacheIsCacheService(t *testing.T) {
	var _ CacheService[int] = NewFileCache[int]("", "points")
}
