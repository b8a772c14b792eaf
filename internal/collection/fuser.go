// Package collection fuses per-satellite raster series into one
// chronological, quality-masked series.
package collection

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/forest-guardian/phenology-zones/internal/log"
	"github.com/forest-guardian/phenology-zones/internal/quality"
	"github.com/forest-guardian/phenology-zones/internal/raster"
)

// Source is one satellite collection and the bands to read from it.
type Source struct {
	ID          string
	Satellite   string
	ValueBand   string
	QABand      string
	ScaleFactor float64
}

// TimestampedRaster is a rescaled, quality-masked value layer stamped with
// its acquisition and provenance.
type TimestampedRaster struct {
	*raster.Layer
	Date      time.Time
	Satellite string
	SourceID  string
	SceneID   string
	Year      int
	// DOY is the zero-based day of year: January 1st is 0.
	DOY int
}

func (r *TimestampedRaster) String() string {
	return r.Satellite + " " + r.Date.Format(time.DateOnly)
}

type Fuser struct {
	Store *raster.Store
	Area  *aoi.Area
	Start time.Time
	// End is exclusive.
	End  time.Time
	Keep quality.Keep

	mu     sync.Mutex
	report Report
}

func NewFuser(store *raster.Store, area *aoi.Area, start, end time.Time, keep quality.Keep) *Fuser {
	return &Fuser{
		Store:  store,
		Area:   area,
		Start:  start,
		End:    end,
		Keep:   keep,
		report: newReport(),
	}
}

// Report returns a snapshot of what the merges so far produced and skipped.
func (f *Fuser) Report() Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.report.clone()
}

type head struct {
	source Source
	next   func() (*raster.Image, error, bool)
	img    *raster.Image
	done   bool
}

// Merge streams the images of every source in ascending acquisition order.
// Images taken at the same instant are ordered by satellite label, then
// scene id. Each image is rescaled and masked as it is yielded.
//
// An image missing a declared band is skipped and counted. A source without
// data in the window is logged and left out; the merge fails with
// DataUnavailable only when no source has data.
func (f *Fuser) Merge(ctx context.Context, sources []Source) iter.Seq2[*TimestampedRaster, error] {
	return func(yield func(*TimestampedRaster, error) bool) {
		logger := log.GetSugaredLogger()

		heads := make([]*head, 0, len(sources))
		for _, src := range sources {
			next, stop := iter.Pull2(f.Store.Load(ctx, src.ID, f.Area, f.Start, f.End))
			defer stop()
			heads = append(heads, &head{source: src, next: next})
		}

		available := 0
		for _, h := range heads {
			if err := f.advance(h); err != nil {
				yield(nil, err)
				return
			}
			if !h.done {
				available++
			}
		}
		if available == 0 {
			yield(nil, failure.New(failure.DataUnavailable, "sources", "no source has data between %s and %s",
				f.Start.Format(time.DateOnly), f.End.Format(time.DateOnly)))
			return
		}

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			h := earliest(heads)
			if h == nil {
				return
			}
			img := h.img
			if err := f.advance(h); err != nil {
				yield(nil, err)
				return
			}

			r, err := f.prepare(ctx, h.source, img)
			if failure.KindOf(err) == failure.ScaleFactorMissing {
				logger.Warnw("skipping image", "source", h.source.ID, "scene", img.ID, "error", err)
				f.record(func(rep *Report) { rep.Skipped[h.source.ID]++ })
				continue
			}
			if err != nil {
				yield(nil, err)
				return
			}

			f.record(func(rep *Report) {
				rep.Observations[h.source.ID]++
				if rep.Annual[r.Year] == nil {
					rep.Annual[r.Year] = map[string]int{}
				}
				rep.Annual[r.Year][r.Satellite]++
			})
			if !yield(r, nil) {
				return
			}
		}
	}
}

// advance moves h to its next image. A source that turns out to have no data
// is marked done and reported rather than failing the merge.
func (f *Fuser) advance(h *head) error {
	h.img = nil
	img, err, ok := h.next()
	if !ok {
		h.done = true
		return nil
	}
	if failure.KindOf(err) == failure.DataUnavailable {
		log.GetSugaredLogger().Warnw("no data for source", "source", h.source.ID, "satellite", h.source.Satellite, "error", err)
		f.record(func(rep *Report) { rep.Unavailable = append(rep.Unavailable, h.source.ID) })
		h.done = true
		return nil
	}
	if err != nil {
		return err
	}
	h.img = img
	return nil
}

func earliest(heads []*head) *head {
	var best *head
	for _, h := range heads {
		if h.done || h.img == nil {
			continue
		}
		if best == nil || before(h, best) {
			best = h
		}
	}
	return best
}

func before(a, b *head) bool {
	if !a.img.Acquired.Equal(b.img.Acquired) {
		return a.img.Acquired.Before(b.img.Acquired)
	}
	if c := strings.Compare(a.source.Satellite, b.source.Satellite); c != 0 {
		return c < 0
	}
	return a.img.ID < b.img.ID
}

func (f *Fuser) prepare(ctx context.Context, src Source, img *raster.Image) (*TimestampedRaster, error) {
	value, err := readBand(ctx, img, src.ValueBand)
	if err != nil {
		return nil, err
	}
	qa, err := readBand(ctx, img, src.QABand)
	if err != nil {
		return nil, err
	}

	masked, err := quality.Mask(Rescale(value, src.ScaleFactor), qa, f.Keep)
	if err != nil {
		return nil, err
	}

	date := img.Acquired.UTC()
	return &TimestampedRaster{
		Layer:     masked,
		Date:      date,
		Satellite: src.Satellite,
		SourceID:  src.ID,
		SceneID:   img.ID,
		Year:      date.Year(),
		DOY:       date.YearDay() - 1,
	}, nil
}

func readBand(ctx context.Context, img *raster.Image, band string) (*raster.Layer, error) {
	layer, err := img.Band(ctx, band)
	if errors.Is(err, raster.ErrBandMissing) {
		return nil, failure.Wrap(failure.ScaleFactorMissing, band, err)
	}
	return layer, err
}

// Rescale multiplies every valid pixel by factor.
func Rescale(layer *raster.Layer, factor float64) *raster.Layer {
	data := make([]float64, len(layer.Data))
	for i, v := range layer.Data {
		if layer.IsValid(v) {
			data[i] = v * factor
		} else {
			data[i] = layer.NoData
		}
	}
	return layer.Derive(data, layer.NoData)
}

func (f *Fuser) record(fn func(*Report)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.report)
}
