package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zoneRow(date, satellite string, zoneID int) export.ZoneStat {
	d, _ := time.Parse(time.DateOnly, date)
	return export.ZoneStat{Date: export.NewDate(d), Year: d.Year(), Satellite: satellite, ZoneID: zoneID, NPixels: 1}
}

func TestSummarizeZones(t *testing.T) {
	zones := []export.ZoneStat{
		zoneRow("2021-01-09", "Aqua", 1),
		zoneRow("2020-12-18", "Terra", 1),
		zoneRow("2020-12-18", "Terra", 2),
		zoneRow("2021-01-01", "Terra", 1),
		zoneRow("2020-12-26", "Aqua", 1),
		zoneRow("2021-02-02", "Terra", 3),
	}
	s := summarizeZones(zones)

	assert.Equal(t, []string{"Aqua", "Terra"}, s.satellites)
	assert.Equal(t, "2020-12-18", s.first.Format(time.DateOnly))
	assert.Equal(t, "2021-02-02", s.last.Format(time.DateOnly))
	assert.Equal(t, 24, s.maxGapDays)

	require.Contains(t, s.years, 2020)
	assert.Equal(t, 3, s.years[2020].rows)
	assert.Equal(t, map[string]int{"Terra": 1, "Aqua": 1}, s.years[2020].rasters)
	assert.Equal(t, 3, s.years[2021].rows)
	assert.Equal(t, map[string]int{"Terra": 2, "Aqua": 1}, s.years[2021].rasters)

	var out bytes.Buffer
	s.print(&out)
	assert.Contains(t, out.String(), "2020-12-18 to 2021-02-02, longest gap 24 days")
}

func TestSummarizeNoZones(t *testing.T) {
	var out bytes.Buffer
	summarizeZones(nil).print(&out)
	assert.Contains(t, out.String(), "no observations")
}
