package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.RastersTotal.WithLabelValues("Terra").Add(3)
	c.RastersTotal.WithLabelValues("Aqua").Inc()
	c.ObserveCache("zones", true)
	c.ObserveCache("zones", false)
	c.ObserveCache("zones", false)
	c.ObserveStage("classify", time.Now().Add(-time.Second))

	assert.Equal(t, 3.0, testutil.ToFloat64(c.RastersTotal.WithLabelValues("Terra")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheHits.WithLabelValues("zones", "miss")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.StageDuration))

	// a second collector must not clash with the first
	other := NewCollector()
	assert.Equal(t, 0.0, testutil.ToFloat64(other.RastersTotal.WithLabelValues("Terra")))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.RowsTotal.WithLabelValues("zones").Add(42)
	c.AOIAreaKm2.Set(12.5)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, c.WriteTextfile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.True(t, strings.Contains(text, `phenozones_rows_written_total{table="zones"} 42`), text)
	assert.Contains(t, text, "phenozones_aoi_area_km2 12.5")
}
