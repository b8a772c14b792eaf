package collection

import (
	"maps"
	"slices"

	"github.com/forest-guardian/phenology-zones/internal/utils"
)

const (
	// CompositeDays is the compositing period of one satellite.
	CompositeDays = 16
	// PeriodsPerYear is the number of composites a single satellite
	// delivers per year.
	PeriodsPerYear = 23
)

type Report struct {
	// Observations counts merged images per source id.
	Observations map[string]int
	// Skipped counts images dropped for a missing band, per source id.
	Skipped map[string]int
	// Unavailable lists the sources without data in the window.
	Unavailable []string
	// Annual counts merged images per year and satellite label.
	Annual map[int]map[string]int
}

func newReport() Report {
	return Report{
		Observations: map[string]int{},
		Skipped:      map[string]int{},
		Annual:       map[int]map[string]int{},
	}
}

func (r Report) clone() Report {
	out := Report{
		Observations: maps.Clone(r.Observations),
		Skipped:      maps.Clone(r.Skipped),
		Unavailable:  slices.Clone(r.Unavailable),
		Annual:       make(map[int]map[string]int, len(r.Annual)),
	}
	for y, m := range r.Annual {
		out.Annual[y] = maps.Clone(m)
	}
	return out
}

func (r Report) Total() int {
	n := 0
	for _, c := range r.Observations {
		n += c
	}
	return n
}

func (r Report) TotalSkipped() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

func (r Report) Years() []int {
	return utils.SortedKeys(r.Annual)
}

// YearTotal is the number of merged images acquired in year.
func (r Report) YearTotal(year int) int {
	n := 0
	for _, c := range r.Annual[year] {
		n += c
	}
	return n
}

// Density is the share of 16-day periods covered in year. Two interleaved
// satellites can reach 2.
func (r Report) Density(year int) float64 {
	return float64(r.YearTotal(year)) / PeriodsPerYear
}
