package raster

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/aoi"
	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/paulmach/orb"
)

const DefaultPageSize = 64

var ErrBandMissing = errors.New("band missing")

// Scene is one acquisition of one source, as listed by a Catalog.
type Scene struct {
	SourceID string
	ID       string
	Acquired time.Time
	Bound    orb.Bound
	Path     string
}

// Catalog lists scenes acquired in [start, end), ordered by acquisition time
// then scene id, one page at a time.
type Catalog interface {
	Scenes(ctx context.Context, sourceID string, start, end time.Time, offset, limit int) ([]Scene, error)
}

// Reader materialises one band of a scene. Missing bands wrap ErrBandMissing.
type Reader interface {
	ReadBand(ctx context.Context, scene Scene, band string) (*Layer, error)
}

// Image is a scene whose bands are read on demand.
type Image struct {
	Scene
	reader Reader
}

func NewImage(scene Scene, reader Reader) *Image {
	return &Image{Scene: scene, reader: reader}
}

func (im *Image) Band(ctx context.Context, name string) (*Layer, error) {
	layer, err := im.reader.ReadBand(ctx, im.Scene, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read band %s of scene %s: %w", name, im.ID, err)
	}
	return layer, nil
}

type Store struct {
	Catalog  Catalog
	Reader   Reader
	PageSize int
}

func NewStore(catalog Catalog, reader Reader) *Store {
	return &Store{Catalog: catalog, Reader: reader, PageSize: DefaultPageSize}
}

// Load streams the images of sourceID acquired in [start, end) whose bounds
// intersect area. Pages are fetched as the sequence is consumed, so a long
// date range never sits in memory at once. When no scene matches, the
// sequence yields a single DataUnavailable error.
func (s *Store) Load(ctx context.Context, sourceID string, area *aoi.Area, start, end time.Time) iter.Seq2[*Image, error] {
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return func(yield func(*Image, error) bool) {
		found := 0
		for offset := 0; ; offset += pageSize {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			page, err := s.Catalog.Scenes(ctx, sourceID, start, end, offset, pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("failed to list scenes of %s: %w", sourceID, err))
				return
			}
			for _, scene := range page {
				if area != nil && !scene.Bound.Intersects(area.Bound) {
					continue
				}
				found++
				if !yield(NewImage(scene, s.Reader), nil) {
					return
				}
			}
			if len(page) < pageSize {
				break
			}
		}
		if found == 0 {
			yield(nil, failure.New(failure.DataUnavailable, sourceID, "no scenes between %s and %s intersect the area of interest",
				start.Format(time.DateOnly), end.Format(time.DateOnly)))
		}
	}
}
