// Package raster is the local replacement for the hosted imagery backend: a
// gridded layer model, region reductions over it, and a paged scene store.
package raster

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// metresPerDegree approximates the length of one degree at the equator and is
// used to express geographic pixel sizes in metres.
const metresPerDegree = 111_320.0

// GeoTransform holds the six GDAL affine coefficients mapping pixel/line to
// georeferenced coordinates.
type GeoTransform [6]float64

// Apply maps fractional pixel coordinates to georeferenced x/y.
func (g GeoTransform) Apply(px, py float64) (float64, float64) {
	x := g[0] + g[1]*px + g[2]*py
	y := g[3] + g[4]*px + g[5]*py
	return x, y
}

// Invert maps georeferenced x/y back to fractional pixel coordinates.
func (g GeoTransform) Invert(x, y float64) (float64, float64, error) {
	det := g[1]*g[5] - g[2]*g[4]
	if det == 0 {
		return 0, 0, fmt.Errorf("geotransform %v is not invertible", g)
	}
	dx, dy := x-g[0], y-g[3]
	px := (g[5]*dx - g[2]*dy) / det
	py := (-g[4]*dx + g[1]*dy) / det
	return px, py, nil
}

// Layer is a single band of samples on a regular grid. Layers are never
// mutated once built; operations return new layers.
type Layer struct {
	Width     int
	Height    int
	Transform GeoTransform
	CRS       string
	// Geographic is true when the transform is expressed in degrees.
	Geographic bool
	NoData     float64
	Data       []float64
}

func NewLayer(width, height int, transform GeoTransform, nodata float64, data []float64) (*Layer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid layer size %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, fmt.Errorf("layer data has %d samples, expected %d", len(data), width*height)
	}
	return &Layer{
		Width:      width,
		Height:     height,
		Transform:  transform,
		CRS:        "EPSG:4326",
		Geographic: true,
		NoData:     nodata,
		Data:       data,
	}, nil
}

// Derive returns a layer on the same grid carrying the given samples.
func (l *Layer) Derive(data []float64, nodata float64) *Layer {
	out := *l
	out.NoData = nodata
	out.Data = data
	return &out
}

func (l *Layer) Index(col, row int) int {
	return row*l.Width + col
}

func (l *Layer) At(col, row int) float64 {
	return l.Data[l.Index(col, row)]
}

// IsValid reports whether v is a real sample rather than nodata.
func (l *Layer) IsValid(v float64) bool {
	return !math.IsNaN(v) && v != l.NoData
}

func (l *Layer) ValidAt(col, row int) bool {
	return l.IsValid(l.At(col, row))
}

// ValidCount is the number of unmasked samples.
func (l *Layer) ValidCount() int {
	n := 0
	for _, v := range l.Data {
		if l.IsValid(v) {
			n++
		}
	}
	return n
}

// Center returns the georeferenced centre of a pixel.
func (l *Layer) Center(col, row int) orb.Point {
	x, y := l.Transform.Apply(float64(col)+0.5, float64(row)+0.5)
	return orb.Point{x, y}
}

// Cell returns the pixel containing p, or ok=false when p is off the grid.
func (l *Layer) Cell(p orb.Point) (col, row int, ok bool) {
	px, py, err := l.Transform.Invert(p[0], p[1])
	if err != nil {
		return 0, 0, false
	}
	col = int(math.Floor(px))
	row = int(math.Floor(py))
	if col < 0 || col >= l.Width || row < 0 || row >= l.Height {
		return 0, 0, false
	}
	return col, row, true
}

func (l *Layer) Bound() orb.Bound {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range [][2]float64{{0, 0}, {float64(l.Width), 0}, {0, float64(l.Height)}, {float64(l.Width), float64(l.Height)}} {
		x, y := l.Transform.Apply(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// ScaleMetres is the nominal pixel width in metres.
func (l *Layer) ScaleMetres() float64 {
	scale := math.Abs(l.Transform[1])
	if l.Geographic {
		scale *= metresPerDegree
	}
	return scale
}

// SameGrid reports whether both layers share size and transform.
func (l *Layer) SameGrid(o *Layer) bool {
	if l.Width != o.Width || l.Height != o.Height {
		return false
	}
	for i := range l.Transform {
		tol := 1e-9 * math.Max(1, math.Abs(l.Transform[i]))
		if math.Abs(l.Transform[i]-o.Transform[i]) > tol {
			return false
		}
	}
	return true
}

// Digest hashes the grid and every sample, so two layers with the same
// digest classify identically.
func (l *Layer) Digest() string {
	h := sha1.New()
	buf := make([]byte, 8)
	put := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}
	put(float64(l.Width))
	put(float64(l.Height))
	for _, v := range l.Transform {
		put(v)
	}
	put(l.NoData)
	for _, v := range l.Data {
		put(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Layer) String() string {
	return fmt.Sprintf("%dx%d@%.2fm", l.Width, l.Height, l.ScaleMetres())
}
