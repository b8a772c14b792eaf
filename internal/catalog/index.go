// Package catalog keeps a sqlite index of raster scenes so the store can page
// through long date ranges without listing directories on every query.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/raster"
	"github.com/paulmach/orb"
	_ "modernc.org/sqlite"
)

type Index struct {
	*sql.DB
}

// Open creates or opens the index at path. ":memory:" gives a throwaway index.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene index %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS scenes (
			source_id   TEXT    NOT NULL,
			scene_id    TEXT    NOT NULL,
			acquired    INTEGER NOT NULL,
			min_x       DOUBLE  NOT NULL,
			min_y       DOUBLE  NOT NULL,
			max_x       DOUBLE  NOT NULL,
			max_y       DOUBLE  NOT NULL,
			path        TEXT    NOT NULL,
			PRIMARY KEY (source_id, scene_id)
		);
		CREATE INDEX IF NOT EXISTS scenes_by_time ON scenes (source_id, acquired, scene_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create scene index schema: %w", err)
	}
	return &Index{db}, nil
}

// Insert adds or replaces scenes in one transaction.
func (idx *Index) Insert(ctx context.Context, scenes ...raster.Scene) error {
	tx, err := idx.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin scene insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO scenes (source_id, scene_id, acquired, min_x, min_y, max_x, max_y, path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare scene insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range scenes {
		_, err := stmt.ExecContext(ctx, s.SourceID, s.ID, s.Acquired.UTC().Unix(),
			s.Bound.Min[0], s.Bound.Min[1], s.Bound.Max[0], s.Bound.Max[1], s.Path)
		if err != nil {
			return fmt.Errorf("failed to insert scene %s/%s: %w", s.SourceID, s.ID, err)
		}
	}
	return tx.Commit()
}

func (idx *Index) Scenes(ctx context.Context, sourceID string, start, end time.Time, offset, limit int) ([]raster.Scene, error) {
	rows, err := idx.QueryContext(ctx, `
		SELECT source_id, scene_id, acquired, min_x, min_y, max_x, max_y, path
		FROM scenes
		WHERE source_id = ? AND acquired >= ? AND acquired < ?
		ORDER BY acquired, scene_id
		LIMIT ? OFFSET ?`,
		sourceID, start.UTC().Unix(), end.UTC().Unix(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	var scenes []raster.Scene
	for rows.Next() {
		var (
			s        raster.Scene
			acquired int64
			b        orb.Bound
		)
		if err := rows.Scan(&s.SourceID, &s.ID, &acquired, &b.Min[0], &b.Min[1], &b.Max[0], &b.Max[1], &s.Path); err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		s.Acquired = time.Unix(acquired, 0).UTC()
		s.Bound = b
		scenes = append(scenes, s)
	}
	return scenes, rows.Err()
}

// Count returns the number of indexed scenes of a source.
func (idx *Index) Count(ctx context.Context, sourceID string) (int, error) {
	var n int
	err := idx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes WHERE source_id = ?`, sourceID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count scenes of %s: %w", sourceID, err)
	}
	return n, nil
}

func (idx *Index) Sources(ctx context.Context) ([]string, error) {
	rows, err := idx.QueryContext(ctx, `SELECT DISTINCT source_id FROM scenes ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
