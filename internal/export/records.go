// Package export writes zone statistics and point samples as CSV tables
// with a fixed column order.
package export

import (
	"cmp"
	"slices"
	"time"
)

var (
	ZoneColumns  = []string{"date", "year", "doy", "satellite", "zone_id", "value_mean", "value_std", "n_pixels"}
	PointColumns = []string{"date", "year", "doy", "value", "zone_id", "satellite", "longitude", "latitude"}
)

// Date is a calendar day written as YYYY-MM-DD. The zero Date is written as
// an empty cell.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalCSV() (string, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(time.DateOnly), nil
}

func (d *Date) UnmarshalCSV(s string) error {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ZoneStat holds the statistics of one zone in one raster.
type ZoneStat struct {
	Date      Date    `csv:"date"`
	Year      int     `csv:"year"`
	DOY       int     `csv:"doy"`
	Satellite string  `csv:"satellite"`
	ZoneID    int     `csv:"zone_id"`
	ValueMean float64 `csv:"value_mean"`
	ValueStd  float64 `csv:"value_std"`
	NPixels   int     `csv:"n_pixels"`
}

// PointValue is the value of one raster under one sample point.
type PointValue struct {
	Date      Date    `csv:"date"`
	Year      int     `csv:"year"`
	DOY       int     `csv:"doy"`
	Value     float64 `csv:"value"`
	ZoneID    int     `csv:"zone_id"`
	Satellite string  `csv:"satellite"`
	Longitude float64 `csv:"longitude"`
	Latitude  float64 `csv:"latitude"`
	PointID   int     `csv:"-"`
}

func compareRaster(a, b Date, satA, satB string) int {
	if c := a.Compare(b.Time); c != 0 {
		return c
	}
	return cmp.Compare(satA, satB)
}

// SortZoneStats orders rows by date, satellite, then zone.
func SortZoneStats(rows []ZoneStat) {
	slices.SortStableFunc(rows, func(a, b ZoneStat) int {
		if c := compareRaster(a.Date, b.Date, a.Satellite, b.Satellite); c != 0 {
			return c
		}
		return cmp.Compare(a.ZoneID, b.ZoneID)
	})
}

// SortPointValues orders rows by date, satellite, then point.
func SortPointValues(rows []PointValue) {
	slices.SortStableFunc(rows, func(a, b PointValue) int {
		if c := compareRaster(a.Date, b.Date, a.Satellite, b.Satellite); c != 0 {
			return c
		}
		return cmp.Compare(a.PointID, b.PointID)
	})
}
