package merge

import (
	"context"
	"errors"
	"testing"

	"github.com/ctessum/geom"

	"github.com/geobr-tools/munimerge/pkg/adjacency"
	"github.com/geobr-tools/munimerge/pkg/region"
)

func square(x, y, size float64) geom.Polygon {
	return geom.Polygon{{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}}
}

// table builds a live region table from a row of adjacent unit squares plus
// optional detached islands.
func table(t *testing.T, populations map[string]int, islands map[string]geom.Polygon) map[string]*region.Region {
	t.Helper()

	var units []region.Unit
	x := 0.0
	ids := make([]string, 0, len(populations))
	for id := range populations {
		ids = append(ids, id)
	}
	// Deterministic placement order.
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	for _, id := range ids {
		if g, ok := islands[id]; ok {
			units = append(units, region.Unit{ID: id, Name: id, Geometry: g})
			continue
		}
		units = append(units, region.Unit{ID: id, Name: id, Geometry: square(x, 0, 1)})
		x++
	}

	return region.Initialize(units, populations, adjacency.Build(units))
}

func totalPopulation(regions map[string]*region.Region) int {
	total := 0
	for _, r := range regions {
		total += r.Population
	}
	return total
}

func TestRunFixedPoint(t *testing.T) {
	// A(100) B(200) C(5000) in a row, threshold 1000. The scheduler fuses
	// A into B, then A+B into C, ending with a single region.
	regions := table(t, map[string]int{"A": 100, "B": 200, "C": 5000}, nil)

	iterations, err := Run(context.Background(), regions, 1000, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if iterations != 2 {
		t.Errorf("iterations = %d, want 2", iterations)
	}
	if len(regions) != 1 {
		t.Fatalf("len(regions) = %d, want 1", len(regions))
	}

	final, ok := regions["A+B+C"]
	if !ok {
		t.Fatalf("final region id missing, table: %v", keys(regions))
	}
	if final.Population != 5300 {
		t.Errorf("final population = %d, want 5300", final.Population)
	}
	if len(final.Neighbors) != 0 {
		t.Errorf("final region neighbors = %v, want none", final.Neighbors)
	}
}

func TestRunAlreadySatisfied(t *testing.T) {
	regions := table(t, map[string]int{"A": 2000, "B": 3000}, nil)

	iterations, err := Run(context.Background(), regions, 1000, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if iterations != 0 {
		t.Errorf("iterations = %d, want 0 for satisfied input", iterations)
	}
	if len(regions) != 2 {
		t.Errorf("len(regions) = %d, want 2 (untouched)", len(regions))
	}
}

func TestRunIdempotent(t *testing.T) {
	regions := table(t, map[string]int{"A": 100, "B": 200, "C": 5000}, nil)

	if _, err := Run(context.Background(), regions, 1000, Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	iterations, err := Run(context.Background(), regions, 1000, Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if iterations != 0 {
		t.Errorf("second run iterations = %d, want 0", iterations)
	}
}

func TestRunPreservesPopulation(t *testing.T) {
	populations := map[string]int{"A": 10, "B": 20, "C": 30, "D": 40, "E": 9000}
	regions := table(t, populations, nil)
	want := totalPopulation(regions)

	if _, err := Run(context.Background(), regions, 500, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := totalPopulation(regions); got != want {
		t.Errorf("total population = %d, want %d (conserved)", got, want)
	}
}

func TestRunPreservesPartition(t *testing.T) {
	populations := map[string]int{"A": 10, "B": 20, "C": 30, "D": 5000}
	regions := table(t, populations, nil)

	if _, err := Run(context.Background(), regions, 100, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := make(map[string]int)
	for _, r := range regions {
		for id := range r.Members {
			seen[id]++
		}
	}
	for id := range populations {
		if seen[id] != 1 {
			t.Errorf("municipality %s appears %d times across regions, want exactly 1", id, seen[id])
		}
	}
}

func TestRunIslandFallback(t *testing.T) {
	// The island has no neighbors; the global fallback must fuse it with
	// the mainland despite the geometric gap.
	regions := table(t,
		map[string]int{"A": 50, "B": 8000},
		map[string]geom.Polygon{"A": square(100, 100, 1)})

	if len(regions["A"].Neighbors) != 0 {
		t.Fatalf("test setup: island has neighbors %v", regions["A"].Neighbors)
	}

	iterations, err := Run(context.Background(), regions, 1000, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if iterations != 1 {
		t.Errorf("iterations = %d, want 1", iterations)
	}
	if _, ok := regions["A+B"]; !ok {
		t.Errorf("fallback fusion missing, table: %v", keys(regions))
	}
}

func TestRunNoCandidate(t *testing.T) {
	// A single under-threshold region has nothing to merge with.
	regions := table(t, map[string]int{"A": 50}, nil)

	_, err := Run(context.Background(), regions, 1000, Options{})
	var noCandidate *NoCandidateError
	if !errors.As(err, &noCandidate) {
		t.Fatalf("err = %v, want NoCandidateError", err)
	}
	if noCandidate.RegionID != "A" {
		t.Errorf("RegionID = %q, want A", noCandidate.RegionID)
	}
}

func TestRunDeterministicTieBreak(t *testing.T) {
	// B and C tie on population; the lexicographically smaller id B must
	// be picked first, so the first fusion is B with a neighbor.
	for range 5 {
		regions := table(t, map[string]int{"B": 100, "C": 100, "D": 9000}, nil)
		if _, err := Run(context.Background(), regions, 500, Options{}); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if _, ok := regions["B+C+D"]; !ok {
			t.Fatalf("unexpected final table %v", keys(regions))
		}
	}
}

func TestPickSmallest(t *testing.T) {
	regions := table(t, map[string]int{"A": 300, "B": 100, "C": 100}, nil)

	got := pickSmallest(regions, 1000)
	if got == nil || got.ID != "B" {
		t.Errorf("pickSmallest = %v, want B (population tie broken by id)", got)
	}
	if r := pickSmallest(regions, 50); r != nil {
		t.Errorf("pickSmallest with low threshold = %v, want nil", r.ID)
	}
}

func keys(regions map[string]*region.Region) []string {
	out := make([]string, 0, len(regions))
	for id := range regions {
		out = append(out, id)
	}
	return out
}
