package raster

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryCatalog keeps scenes and their bands in process. It serves as both
// Catalog and Reader.
type MemoryCatalog struct {
	mu     sync.RWMutex
	scenes []Scene
	bands  map[string]map[string]*Layer
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{bands: make(map[string]map[string]*Layer)}
}

func sceneKey(sourceID, id string) string {
	return sourceID + "/" + id
}

// Add registers a scene. An empty scene bound is taken from its first band.
func (m *MemoryCatalog) Add(scene Scene, bands map[string]*Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scene.Bound.IsZero() {
		for _, layer := range bands {
			scene.Bound = layer.Bound()
			break
		}
	}
	m.scenes = append(m.scenes, scene)
	m.bands[sceneKey(scene.SourceID, scene.ID)] = bands
}

func (m *MemoryCatalog) Scenes(ctx context.Context, sourceID string, start, end time.Time, offset, limit int) ([]Scene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Scene
	for _, s := range m.scenes {
		if s.SourceID != sourceID || s.Acquired.Before(start) || !s.Acquired.Before(end) {
			continue
		}
		matched = append(matched, s)
	}
	slices.SortFunc(matched, func(a, b Scene) int {
		if c := a.Acquired.Compare(b.Acquired); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if offset >= len(matched) {
		return nil, nil
	}
	return matched[offset:min(len(matched), offset+limit)], nil
}

func (m *MemoryCatalog) ReadBand(ctx context.Context, scene Scene, band string) (*Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	layer, ok := m.bands[sceneKey(scene.SourceID, scene.ID)][band]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBandMissing, band)
	}
	return layer, nil
}
