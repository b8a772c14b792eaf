// Package quality masks value layers by a per-pixel quality band.
package quality

import (
	"slices"

	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/raster"
)

// MODIS SummaryQA classes.
const (
	Good     = 0
	Marginal = 1
	Snow     = 2
	Cloudy   = 3
)

// Keep decides from a QA code whether the matching value pixel survives.
type Keep func(qa int) bool

// AtMost keeps pixels whose QA code is at most threshold. AtMost(Marginal)
// keeps good and marginal pixels.
func AtMost(threshold int) Keep {
	return func(qa int) bool { return qa <= threshold }
}

// OneOf keeps pixels whose QA code is listed.
func OneOf(codes ...int) Keep {
	codes = slices.Clone(codes)
	return func(qa int) bool { return slices.Contains(codes, qa) }
}

// Mask returns a copy of layer where every pixel failing keep, or lacking a
// QA code, is set to nodata. layer itself is left untouched.
func Mask(layer, qa *raster.Layer, keep Keep) (*raster.Layer, error) {
	if !layer.SameGrid(qa) {
		return nil, failure.New(failure.GridMismatch, "qa", "value grid %s does not match QA grid %s", layer, qa)
	}
	data := make([]float64, len(layer.Data))
	for i, v := range layer.Data {
		q := qa.Data[i]
		if !qa.IsValid(q) || !keep(int(q)) {
			data[i] = layer.NoData
			continue
		}
		data[i] = v
	}
	return layer.Derive(data, layer.NoData), nil
}
