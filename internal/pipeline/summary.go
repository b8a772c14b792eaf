package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/forest-guardian/phenology-zones/internal/collection"
	"github.com/forest-guardian/phenology-zones/internal/properties"
)

// Summary is the diagnostic record of a finished run.
type Summary struct {
	RunID       string
	AreaKm2     float64
	Percentiles []float64
	Thresholds  []float64
	Points      int
	Sources     []properties.SourceSpec
	Report      collection.Report
	ZoneRows    int
	PointRows   int
	ZonesPath   string
	PointsPath  string
}

// Cadence is the expected spacing of the fused series in days: each source
// delivers a 16-day composite, offset from the others.
func (s *Summary) Cadence() int {
	if len(s.Sources) == 0 {
		return 0
	}
	return collection.CompositeDays / len(s.Sources)
}

// ZoneLegend describes every zone by its elevation range.
func (s *Summary) ZoneLegend() string {
	k := len(s.Thresholds)
	parts := make([]string, 0, k+1)
	for z := 1; z <= k+1; z++ {
		switch {
		case k == 0:
			parts = append(parts, fmt.Sprintf("%d=All", z))
		case z == 1:
			parts = append(parts, fmt.Sprintf("1=Low(≤%.1fm)", s.Thresholds[0]))
		case z == k+1:
			parts = append(parts, fmt.Sprintf("%d=High(>%.1fm)", z, s.Thresholds[k-1]))
		default:
			parts = append(parts, fmt.Sprintf("%d=Mid(%.1f-%.1fm)", z, s.Thresholds[z-2], s.Thresholds[z-1]))
		}
	}
	return strings.Join(parts, ", ")
}

func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	fmt.Fprintf(w, "AOI area (km²): %.2f\n", s.AreaKm2)
	fmt.Fprintln(w, "=== PHENOLOGY DATA SUMMARY ===")
	for _, src := range s.Sources {
		fmt.Fprintf(w, "%s observations: %d\n", src.Satellite, s.Report.Observations[src.ID])
	}
	fmt.Fprintf(w, "Combined observations: %d\n", s.Report.Total())
	fmt.Fprintf(w, "Skipped images: %d\n", s.Report.TotalSkipped())
	if len(s.Report.Unavailable) > 0 {
		fmt.Fprintf(w, "Sources without data: %s\n", strings.Join(s.Report.Unavailable, ", "))
	}
	fmt.Fprintf(w, "Expected temporal resolution: ~%d days\n", s.Cadence())
	fmt.Fprintf(w, "Elevation bands: %s\n", s.ZoneLegend())
	fmt.Fprintf(w, "Sample points: %d\n", s.Points)

	fmt.Fprintln(w, "Annual data summary:")
	fmt.Fprintf(w, "  %-6s %6s", "year", "total")
	for _, src := range s.Sources {
		fmt.Fprintf(w, " %6s", strings.ToLower(src.Satellite))
	}
	fmt.Fprintf(w, " %8s\n", "density")
	for _, year := range s.Report.Years() {
		fmt.Fprintf(w, "  %-6d %6d", year, s.Report.YearTotal(year))
		for _, src := range s.Sources {
			fmt.Fprintf(w, " %6d", s.Report.Annual[year][src.Satellite])
		}
		fmt.Fprintf(w, " %8.2f\n", s.Report.Density(year))
	}

	fmt.Fprintf(w, "Wrote %d rows to %s\n", s.ZoneRows, s.ZonesPath)
	fmt.Fprintf(w, "Wrote %d rows to %s\n", s.PointRows, s.PointsPath)
}
