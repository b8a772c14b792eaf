// Package aoi loads the analysis polygon and answers containment queries on it.
package aoi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Area is an immutable area of interest in lon/lat coordinates.
type Area struct {
	Polygons orb.MultiPolygon
	Bound    orb.Bound
	AreaKm2  float64
}

func New(mp orb.MultiPolygon) (*Area, error) {
	if len(mp) == 0 {
		return nil, failure.New(failure.InsufficientArea, "aoi", "no polygon given")
	}
	for i, p := range mp {
		if len(p) == 0 || len(p[0]) < 4 {
			return nil, failure.New(failure.InsufficientArea, "aoi", "polygon %d has no closed outer ring", i)
		}
	}
	return &Area{
		Polygons: mp,
		Bound:    mp.Bound(),
		AreaKm2:  math.Abs(geo.Area(mp)) / 1e6,
	}, nil
}

// FromBound builds a rectangular area, mostly useful for tests and quick runs.
func FromBound(b orb.Bound) (*Area, error) {
	return New(orb.MultiPolygon{b.ToPolygon()})
}

func (a *Area) Contains(p orb.Point) bool {
	if !a.Bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(a.Polygons, p)
}

// PlanarArea is the polygon area in coordinate units, used to detect degenerate polygons.
func (a *Area) PlanarArea() float64 {
	return math.Abs(planar.Area(a.Polygons))
}

func (a *Area) Degenerate() bool {
	const epsilon = 1e-12
	return a.Bound.Max[0]-a.Bound.Min[0] <= epsilon ||
		a.Bound.Max[1]-a.Bound.Min[1] <= epsilon ||
		a.PlanarArea() <= epsilon
}

// Load reads a GeoJSON geometry, feature or feature collection. Every polygonal
// geometry found is unioned into the area; other geometry types are ignored.
func Load(path string) (*Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aoi file %s: %w", path, err)
	}
	area, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse aoi file %s: %w", path, err)
	}
	return area, nil
}

func Parse(data []byte) (*Area, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var geometries []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		geometries = append(geometries, f.Geometry)
	case "":
		return nil, errors.New("missing geojson type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		geometries = append(geometries, g.Coordinates)
	}

	var mp orb.MultiPolygon
	for _, g := range geometries {
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		}
	}
	return New(mp)
}
