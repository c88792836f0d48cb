// Package export converts a live region collection into its exportable
// form: ordered tabular records, aggregate statistics, and geometry-bearing
// GeoJSON FeatureCollections reprojected to the display coordinate system.
package export

import (
	"sort"
	"strings"

	"github.com/ctessum/geom"

	"github.com/geobr-tools/munimerge/pkg/region"
)

// Record is one output row for a region. The same shape serves both the
// pre-merge collection (singleton regions, where RegionID is the original
// municipality id and RepresentativeName its name) and the post-merge one.
type Record struct {
	RegionID           string
	Population         int
	MemberCount        int
	States             string
	RepresentativeName string
	Geometry           geom.Polygonal
}

// Records projects the region table into records ordered by region id.
// The ordering makes output byte-for-byte reproducible across runs.
func Records(regions map[string]*region.Region) []Record {
	records := make([]Record, 0, len(regions))
	for _, r := range regions {
		records = append(records, Record{
			RegionID:           r.ID,
			Population:         r.Population,
			MemberCount:        len(r.Members),
			States:             strings.Join(r.StateCodes(), ","),
			RepresentativeName: RepresentativeName(r.Names),
			Geometry:           r.Geometry,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RegionID < records[j].RegionID })
	return records
}

// RepresentativeName picks the display name for a region: the longest of
// its folded-in names, ties broken by first occurrence.
func RepresentativeName(names []string) string {
	best := ""
	for _, n := range names {
		if len(n) > len(best) {
			best = n
		}
	}
	return best
}

// Stats summarizes one pipeline run: the configured parameters plus counts
// and population extremes for the original and merged collections.
type Stats struct {
	Threshold             int `json:"threshold"`
	PopulationYear        int `json:"population_year"`
	OriginalCount         int `json:"original_count"`
	MergedCount           int `json:"merged_count"`
	OriginalMinPopulation int `json:"original_min_population"`
	OriginalMaxPopulation int `json:"original_max_population"`
	MergedMinPopulation   int `json:"merged_min_population"`
	MergedMaxPopulation   int `json:"merged_max_population"`
}

// Summarize computes run statistics from the original and merged record
// sets. Empty collections yield zero min/max rather than an error.
func Summarize(original, merged []Record, threshold, populationYear int) Stats {
	s := Stats{
		Threshold:      threshold,
		PopulationYear: populationYear,
		OriginalCount:  len(original),
		MergedCount:    len(merged),
	}
	s.OriginalMinPopulation, s.OriginalMaxPopulation = populationRange(original)
	s.MergedMinPopulation, s.MergedMaxPopulation = populationRange(merged)
	return s
}

func populationRange(records []Record) (min, max int) {
	if len(records) == 0 {
		return 0, 0
	}
	min, max = records[0].Population, records[0].Population
	for _, r := range records[1:] {
		if r.Population < min {
			min = r.Population
		}
		if r.Population > max {
			max = r.Population
		}
	}
	return min, max
}
