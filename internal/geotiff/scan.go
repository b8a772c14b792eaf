package geotiff

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/catalog"
	"github.com/forest-guardian/phenology-zones/internal/log"
	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/paulmach/orb"
)

var acquiredPattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\.tiff?$`)

// ParseAcquired extracts the acquisition date from a file name ending in
// YYYY-MM-DD.tif.
func ParseAcquired(name string) (time.Time, error) {
	m := acquiredPattern.FindStringSubmatch(strings.ToLower(filepath.Base(name)))
	if m == nil {
		return time.Time{}, fmt.Errorf("no acquisition date in %s", name)
	}
	return time.Parse(time.DateOnly, m[1])
}

// Scan indexes every GeoTIFF under <root>/<sourceID>/ and returns how many
// scenes were inserted. Files without a date in their name are skipped.
func Scan(ctx context.Context, root string, index *catalog.Index) (int, error) {
	logger := log.GetSugaredLogger()

	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("failed to list raster root %s: %w", root, err)
	}

	total := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sourceID := entry.Name()
		scenes, err := scanSource(ctx, filepath.Join(root, sourceID), sourceID)
		if err != nil {
			return total, err
		}
		if err := index.Insert(ctx, scenes...); err != nil {
			return total, err
		}
		logger.Infow("indexed source", "source", sourceID, "scenes", len(scenes))
		total += len(scenes)
	}
	return total, nil
}

func scanSource(ctx context.Context, dir, sourceID string) ([]raster.Scene, error) {
	logger := log.GetSugaredLogger()

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var scenes []raster.Scene
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.IsDir() {
			continue
		}
		name := f.Name()
		acquired, err := ParseAcquired(name)
		if err != nil {
			logger.Debugw("skipping file", "path", filepath.Join(dir, name), "error", err)
			continue
		}

		path := filepath.Join(dir, name)
		b, err := Bound(path)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, raster.Scene{
			SourceID: sourceID,
			ID:       strings.TrimSuffix(name, filepath.Ext(name)),
			Acquired: acquired,
			Bound:    orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}},
			Path:     path,
		})
	}
	return scenes, nil
}
