package export

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) Date {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return NewDate(d)
}

func zoneStats(t *testing.T) []ZoneStat {
	return []ZoneStat{
		{Date: day(t, "2020-01-09"), Year: 2020, DOY: 8, Satellite: "Aqua", ZoneID: 2, ValueMean: 0.31, ValueStd: 0.02, NPixels: 40},
		{Date: day(t, "2020-01-01"), Year: 2020, DOY: 0, Satellite: "Terra", ZoneID: 1, ValueMean: 0.25, ValueStd: 0, NPixels: 1},
		{Date: day(t, "2020-01-01"), Year: 2020, DOY: 0, Satellite: "Aqua", ZoneID: 3, ValueMean: 0.125, ValueStd: 0.5, NPixels: 12},
	}
}

func TestWriteZoneStatsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "zones.csv")
	rows := zoneStats(t)

	n, err := WriteCSV(rows, path, ZoneColumns)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(ZoneColumns, ","), lines[0])
	assert.Equal(t, "2020-01-09,2020,8,Aqua,2,0.31,0.02,40", lines[1], "rows keep arrival order")

	back, err := ReadZoneStats(path)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}

func TestWritePointValuesColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.csv")
	rows := []PointValue{
		{Date: day(t, "2020-02-02"), Year: 2020, DOY: 32, Value: 0.4, ZoneID: 1, Satellite: "Terra", Longitude: -110.5, Latitude: 32.25, PointID: 7},
	}

	_, err := WriteCSV(rows, path, PointColumns)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "date,year,doy,value,zone_id,satellite,longitude,latitude\n2020-02-02,2020,32,0.4,1,Terra,-110.5,32.25\n", string(raw))

	reordered := filepath.Join(t.TempDir(), "reordered.csv")
	_, err = WriteCSV(rows, reordered, []string{"latitude", "longitude", "value"})
	require.NoError(t, err)
	raw, err = os.ReadFile(reordered)
	require.NoError(t, err)
	assert.Equal(t, "latitude,longitude,value\n32.25,-110.5,0.4\n", string(raw))

	back, err := ReadPointValues(path)
	require.NoError(t, err)
	require.Len(t, back, 1)
	rows[0].PointID = 0
	assert.Equal(t, rows, back)
}

func TestWriteCSVSchemaMismatch(t *testing.T) {
	dir := t.TempDir()

	t.Run("unknown column", func(t *testing.T) {
		_, err := WriteCSV(zoneStats(t), filepath.Join(dir, "a.csv"), []string{"date", "elevation"})
		require.Error(t, err)
		assert.Equal(t, failure.SchemaMismatch, failure.KindOf(err))
		assert.Equal(t, "elevation", failure.ParamOf(err))
	})

	t.Run("nan value", func(t *testing.T) {
		rows := zoneStats(t)
		rows[1].ValueStd = math.NaN()
		_, err := WriteCSV(rows, filepath.Join(dir, "b.csv"), ZoneColumns)
		assert.Equal(t, failure.SchemaMismatch, failure.KindOf(err))
		assert.Equal(t, "value_std", failure.ParamOf(err))
	})

	t.Run("missing date", func(t *testing.T) {
		rows := zoneStats(t)
		rows[0].Date = Date{}
		_, err := WriteCSV(rows, filepath.Join(dir, "c.csv"), ZoneColumns)
		assert.Equal(t, failure.SchemaMismatch, failure.KindOf(err))
		assert.Equal(t, "date", failure.ParamOf(err))
	})

	t.Run("no columns", func(t *testing.T) {
		_, err := WriteCSV(zoneStats(t), filepath.Join(dir, "d.csv"), nil)
		assert.Equal(t, failure.SchemaMismatch, failure.KindOf(err))
	})
}

func TestSort(t *testing.T) {
	rows := zoneStats(t)
	SortZoneStats(rows)
	assert.Equal(t, "Aqua", rows[0].Satellite)
	assert.Equal(t, 3, rows[0].ZoneID)
	assert.Equal(t, "Terra", rows[1].Satellite)
	assert.Equal(t, 8, rows[2].DOY)

	points := []PointValue{
		{Date: day(t, "2020-01-01"), Satellite: "Terra", PointID: 2},
		{Date: day(t, "2020-01-01"), Satellite: "Terra", PointID: 0},
		{Date: day(t, "2019-12-31"), Satellite: "Terra", PointID: 5},
	}
	SortPointValues(points)
	assert.Equal(t, []int{5, 0, 2}, []int{points[0].PointID, points[1].PointID, points[2].PointID})
}
