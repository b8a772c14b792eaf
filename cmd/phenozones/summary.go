package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/forest-guardian/phenology-zones/internal/export"
	"github.com/forest-guardian/phenology-zones/internal/utils"
)

type yearSummary struct {
	rows int
	// rasters counts acquisition dates per satellite.
	rasters map[string]int
}

type tableSummary struct {
	satellites []string
	years      map[int]*yearSummary
	first      time.Time
	last       time.Time
	maxGapDays int
}

// summarizeZones walks the zone table in date order and counts rows and
// rasters per year, and the longest gap between consecutive dates.
func summarizeZones(zones []export.ZoneStat) tableSummary {
	byDate := map[time.Time]map[string]int{}
	for _, z := range zones {
		if byDate[z.Date.Time] == nil {
			byDate[z.Date.Time] = map[string]int{}
		}
		byDate[z.Date.Time][z.Satellite]++
	}

	s := tableSummary{years: map[int]*yearSummary{}}
	var prev time.Time
	for i, date := range utils.GetSortedKeys(byDate, true) {
		if i == 0 {
			s.first = date
		} else if gap := int(date.Sub(prev).Hours() / 24); gap > s.maxGapDays {
			s.maxGapDays = gap
		}
		prev, s.last = date, date

		ys, ok := s.years[date.Year()]
		if !ok {
			ys = &yearSummary{rasters: map[string]int{}}
			s.years[date.Year()] = ys
		}
		for sat, rows := range byDate[date] {
			ys.rows += rows
			ys.rasters[sat]++
			if !slices.Contains(s.satellites, sat) {
				s.satellites = append(s.satellites, sat)
			}
		}
	}
	slices.Sort(s.satellites)
	return s
}

func (s tableSummary) print(w io.Writer) {
	if s.first.IsZero() {
		fmt.Fprintln(w, "  no observations")
		return
	}
	fmt.Fprintf(w, "  %s to %s, longest gap %d days\n",
		s.first.Format(time.DateOnly), s.last.Format(time.DateOnly), s.maxGapDays)
	fmt.Fprintf(w, "  %-6s %6s", "year", "rows")
	for _, sat := range s.satellites {
		fmt.Fprintf(w, " %6s", sat)
	}
	fmt.Fprintln(w)
	for _, year := range utils.SortedKeys(s.years) {
		fmt.Fprintf(w, "  %-6d %6d", year, s.years[year].rows)
		for _, sat := range s.satellites {
			fmt.Fprintf(w, " %6d", s.years[year].rasters[sat])
		}
		fmt.Fprintln(w)
	}
}
