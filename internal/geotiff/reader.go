// Package geotiff reads raster layers from GeoTIFF files through GDAL and
// indexes a directory tree of per-source scenes.
package geotiff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/forest-guardian/phenology-zones/internal/utils"
)

func init() {
	godal.RegisterAll()
}

func ignoreWarnings(ec godal.ErrorCategory, code int, msg string) error {
	if ec == godal.CE_Warning {
		return nil
	}
	return errors.New(msg)
}

// open returns the dataset reprojected to EPSG:4326 when it is not already
// geographic, so pixel lookups work with lon/lat points.
func open(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path, godal.ErrLogger(ignoreWarnings))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if ds.Projection() == "" || ds.SpatialRef().Geographic() {
		return ds, nil
	}
	defer ds.Close()

	warped, err := ds.Warp("", []string{"-of", "MEM", "-t_srs", "EPSG:4326", "-r", "near"})
	if err != nil {
		return nil, fmt.Errorf("failed to reproject %s to EPSG:4326: %w", path, err)
	}
	return warped, nil
}

// Reader serves scene bands from the GeoTIFF path recorded in the scene.
// GDAL dataset access is serialised.
type Reader struct{}

func (Reader) ReadBand(ctx context.Context, scene raster.Scene, band string) (*raster.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadLayer(scene.Path, band)
}

// ReadLayer reads one band, chosen by description (case-insensitive) or by
// its 1-based index, into a layer.
func ReadLayer(path, band string) (*raster.Layer, error) {
	var (
		layer *raster.Layer
		err   error
	)
	utils.ExecuteWithMutex(func() {
		layer, err = readLayer(path, band)
	})
	return layer, err
}

func readLayer(path, band string) (*raster.Layer, error) {
	ds, err := open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	b, err := findBand(ds, band)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to get GeoTransform of %s: %w", path, err)
	}

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	data := make([]float64, width*height)
	if err := b.Read(0, 0, data, width, height); err != nil {
		return nil, fmt.Errorf("failed to read band %s of %s: %w", band, path, err)
	}

	nodata, ok := b.NoData()
	if !ok {
		nodata = math.NaN()
	}

	layer, err := raster.NewLayer(width, height, raster.GeoTransform(gt), nodata, data)
	if err != nil {
		return nil, fmt.Errorf("invalid raster %s: %w", path, err)
	}
	if wkt := ds.Projection(); wkt != "" {
		layer.CRS = wkt
		layer.Geographic = ds.SpatialRef().Geographic()
	}
	return layer, nil
}

func findBand(ds *godal.Dataset, name string) (godal.Band, error) {
	bands := ds.Bands()
	for _, b := range bands {
		if strings.EqualFold(b.Description(), name) {
			return b, nil
		}
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 1 && i <= len(bands) {
		return bands[i-1], nil
	}
	return godal.Band{}, fmt.Errorf("%w: %s", raster.ErrBandMissing, name)
}

// Bound returns the lon/lat bounds of a raster file.
func Bound(path string) ([4]float64, error) {
	var (
		bounds [4]float64
		err    error
	)
	utils.ExecuteWithMutex(func() {
		var ds *godal.Dataset
		ds, err = open(path)
		if err != nil {
			return
		}
		defer ds.Close()
		bounds, err = ds.Bounds()
	})
	if err != nil {
		return bounds, fmt.Errorf("failed to get bounds of %s: %w", path, err)
	}
	return bounds, nil
}
