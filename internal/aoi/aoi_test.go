package aoi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleFeature = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "cat"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[0,2],[0,0]]]}},
    {"type": "Feature", "properties": {"name": "trail"},
     "geometry": {"type": "LineString", "coordinates": [[0,0],[1,1]]}}
  ]
}`

func TestLoadFeatureCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.geojson")
	require.NoError(t, os.WriteFile(path, []byte(triangleFeature), 0644))

	area, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, area.Polygons, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}, area.Bound)
	assert.InDelta(t, 2.0, area.PlanarArea(), 1e-9)
	assert.Greater(t, area.AreaKm2, 0.0)

	assert.True(t, area.Contains(orb.Point{0.5, 0.5}))
	assert.False(t, area.Contains(orb.Point{1.5, 1.5}))
	assert.False(t, area.Contains(orb.Point{3, 3}))
}

func TestParseBareGeometry(t *testing.T) {
	area, err := Parse([]byte(`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]],[[[5,5],[6,5],[6,6],[5,6],[5,5]]]]}`))
	require.NoError(t, err)
	assert.Len(t, area.Polygons, 2)
	assert.True(t, area.Contains(orb.Point{5.5, 5.5}))
	assert.False(t, area.Contains(orb.Point{3, 3}))
}

func TestParseWithoutPolygons(t *testing.T) {
	_, err := Parse([]byte(`{"type":"Point","coordinates":[1,1]}`))
	require.Error(t, err)
	assert.Equal(t, failure.InsufficientArea, failure.KindOf(err))

	_, err = Parse([]byte(`{"coordinates":[1,1]}`))
	assert.Error(t, err)
}

func TestDegenerate(t *testing.T) {
	square, err := FromBound(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}})
	require.NoError(t, err)
	assert.False(t, square.Degenerate())

	sliver, err := New(orb.MultiPolygon{{{{0, 0}, {1, 0}, {2, 0}, {0, 0}}}})
	require.NoError(t, err)
	assert.True(t, sliver.Degenerate())
}
