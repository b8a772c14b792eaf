package raster

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"gonum.org/v1/gonum/stat"
)

// Reducer builds a fresh accumulator for each region or group it reduces.
type Reducer interface {
	NewAccumulator() Accumulator
}

type Accumulator interface {
	Add(v float64)
	Result() map[string]float64
}

type reducerFunc func() Accumulator

func (f reducerFunc) NewAccumulator() Accumulator { return f() }

// welford keeps a running mean and sum of squared deviations.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) Add(v float64) {
	w.n++
	d := v - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (v - w.mean)
}

// sampleStdDev is zero for fewer than two samples.
func (w *welford) sampleStdDev() float64 {
	if w.n < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.n-1))
}

type meanAcc struct{ welford }

func (a *meanAcc) Result() map[string]float64 {
	if a.n == 0 {
		return map[string]float64{"mean": math.NaN()}
	}
	return map[string]float64{"mean": a.mean}
}

type stdDevAcc struct{ welford }

func (a *stdDevAcc) Result() map[string]float64 {
	if a.n == 0 {
		return map[string]float64{"stdDev": math.NaN()}
	}
	return map[string]float64{"stdDev": a.sampleStdDev()}
}

type countAcc struct{ n int }

func (a *countAcc) Add(float64) { a.n++ }

func (a *countAcc) Result() map[string]float64 {
	return map[string]float64{"count": float64(a.n)}
}

type percentileAcc struct {
	percentiles []float64
	values      []float64
}

func (a *percentileAcc) Add(v float64) { a.values = append(a.values, v) }

func (a *percentileAcc) Result() map[string]float64 {
	out := make(map[string]float64, len(a.percentiles))
	slices.Sort(a.values)
	for _, p := range a.percentiles {
		key := PercentileKey(p)
		if len(a.values) == 0 {
			out[key] = math.NaN()
			continue
		}
		out[key] = stat.Quantile(p/100, stat.Empirical, a.values, nil)
	}
	return out
}

type modeAcc struct{ counts map[float64]int }

func (a *modeAcc) Add(v float64) { a.counts[v]++ }

// Result picks the most frequent value, breaking ties towards the lowest.
func (a *modeAcc) Result() map[string]float64 {
	best, bestCount := math.NaN(), 0
	for v, c := range a.counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return map[string]float64{"mode": best}
}

type combinedAcc []Accumulator

func (c combinedAcc) Add(v float64) {
	for _, a := range c {
		a.Add(v)
	}
}

func (c combinedAcc) Result() map[string]float64 {
	out := map[string]float64{}
	for _, a := range c {
		for k, v := range a.Result() {
			out[k] = v
		}
	}
	return out
}

func Mean() Reducer {
	return reducerFunc(func() Accumulator { return &meanAcc{} })
}

// StdDev is the sample standard deviation.
func StdDev() Reducer {
	return reducerFunc(func() Accumulator { return &stdDevAcc{} })
}

func Count() Reducer {
	return reducerFunc(func() Accumulator { return &countAcc{} })
}

// Percentile computes empirical percentiles in [0,100]. Results are keyed by
// PercentileKey, e.g. "p33".
func Percentile(percentiles ...float64) Reducer {
	ps := slices.Clone(percentiles)
	return reducerFunc(func() Accumulator { return &percentileAcc{percentiles: ps} })
}

func Mode() Reducer {
	return reducerFunc(func() Accumulator { return &modeAcc{counts: map[float64]int{}} })
}

func Combine(reducers ...Reducer) Reducer {
	return reducerFunc(func() Accumulator {
		acc := make(combinedAcc, 0, len(reducers))
		for _, r := range reducers {
			acc = append(acc, r.NewAccumulator())
		}
		return acc
	})
}

func PercentileKey(p float64) string {
	return "p" + strconv.FormatFloat(p, 'f', -1, 64)
}

// ReduceOptions mirrors the knobs of a remote region reduction.
type ReduceOptions struct {
	// Scale is the output resolution in metres. Zero or anything finer than
	// the layer keeps native resolution.
	Scale float64
	// MaxSamples caps contributing pixels; zero disables the cap.
	MaxSamples int
	// BestEffort coarsens the sampling stride instead of failing when
	// MaxSamples would be exceeded.
	BestEffort bool
	// TileScale splits the pass into row chunks. It never changes results.
	TileScale int
	// GroupBy partitions pixels by the categorical value of this layer. Only
	// ids > 0 are grouped.
	GroupBy *Layer
}

type Group struct {
	ID     int
	Values map[string]float64
}

type Reduction struct {
	Values map[string]float64
	// Groups is sorted by ID and only holds non-empty groups.
	Groups []Group
	// Stride is the sampling step actually used, in native pixels.
	Stride int
	Pixels int
}

// ReduceRegion reduces the unmasked pixels of layer whose centre lies inside
// area. A nil area means the whole layer.
func ReduceRegion(ctx context.Context, layer *Layer, area *aoi.Area, reducer Reducer, opts ReduceOptions) (*Reduction, error) {
	if opts.GroupBy != nil && !layer.SameGrid(opts.GroupBy) {
		return nil, failure.New(failure.GridMismatch, "groupBy", "layer grid %s does not match group grid %s", layer, opts.GroupBy)
	}

	inside := InsideMask(layer, area)

	stride := 1
	if native := layer.ScaleMetres(); opts.Scale > native && native > 0 {
		stride = max(1, int(math.Round(opts.Scale/native)))
	}

	pixels := countContributing(layer, inside, opts.GroupBy, stride)
	if opts.MaxSamples > 0 && pixels > opts.MaxSamples {
		if !opts.BestEffort {
			return nil, failure.New(failure.ResourceExceeded, "maxSamples", "%d pixels exceed the limit of %d at %.1fm", pixels, opts.MaxSamples, layer.ScaleMetres()*float64(stride))
		}
		for pixels > opts.MaxSamples {
			stride *= 2
			pixels = countContributing(layer, inside, opts.GroupBy, stride)
		}
	}

	chunk := layer.Height
	if opts.TileScale > 1 {
		chunk = max(1, (layer.Height+opts.TileScale-1)/opts.TileScale)
	}

	total := reducer.NewAccumulator()
	groups := map[int]Accumulator{}
	for start := 0; start < layer.Height; start += chunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(layer.Height, start+chunk)
		for row := start; row < end; row++ {
			if row%stride != 0 {
				continue
			}
			for col := 0; col < layer.Width; col += stride {
				i := layer.Index(col, row)
				v := layer.Data[i]
				if !inside[i] || !layer.IsValid(v) {
					continue
				}
				if opts.GroupBy == nil {
					total.Add(v)
					continue
				}
				id, ok := groupID(opts.GroupBy, i)
				if !ok {
					continue
				}
				acc, exists := groups[id]
				if !exists {
					acc = reducer.NewAccumulator()
					groups[id] = acc
				}
				acc.Add(v)
			}
		}
	}

	result := &Reduction{Stride: stride, Pixels: pixels}
	if opts.GroupBy == nil {
		result.Values = total.Result()
		return result, nil
	}
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		result.Groups = append(result.Groups, Group{ID: id, Values: groups[id].Result()})
	}
	return result, nil
}

func groupID(groupBy *Layer, i int) (int, bool) {
	g := groupBy.Data[i]
	if !groupBy.IsValid(g) || g <= 0 {
		return 0, false
	}
	return int(g), true
}

func countContributing(layer *Layer, inside []bool, groupBy *Layer, stride int) int {
	n := 0
	for row := 0; row < layer.Height; row += stride {
		for col := 0; col < layer.Width; col += stride {
			i := layer.Index(col, row)
			if !inside[i] || !layer.IsValid(layer.Data[i]) {
				continue
			}
			if groupBy != nil {
				if _, ok := groupID(groupBy, i); !ok {
					continue
				}
			}
			n++
		}
	}
	return n
}

// InsideMask flags the pixels whose centre falls inside area.
func InsideMask(layer *Layer, area *aoi.Area) []bool {
	inside := make([]bool, layer.Width*layer.Height)
	for row := 0; row < layer.Height; row++ {
		for col := 0; col < layer.Width; col++ {
			inside[layer.Index(col, row)] = area == nil || area.Contains(layer.Center(col, row))
		}
	}
	return inside
}

// Clip masks every pixel whose centre falls outside area.
func Clip(layer *Layer, area *aoi.Area) *Layer {
	inside := InsideMask(layer, area)
	data := make([]float64, len(layer.Data))
	for i, v := range layer.Data {
		if inside[i] {
			data[i] = v
		} else {
			data[i] = layer.NoData
		}
	}
	return layer.Derive(data, layer.NoData)
}

func (r *Reduction) String() string {
	return fmt.Sprintf("reduction(%d pixels, stride %d, %d groups)", r.Pixels, r.Stride, len(r.Groups))
}
