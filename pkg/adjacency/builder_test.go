package adjacency

import (
	"testing"

	"github.com/ctessum/geom"

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

func unit(id string, g geom.Polygonal) region.Unit {
	return region.Unit{ID: id, Name: id, Geometry: g}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		units []region.Unit
		want  map[string][]string
	}{
		{
			name: "Chain",
			// Three squares in a row sharing vertical edges: A-B-C.
			units: []region.Unit{
				unit("A", square(0, 0, 1)),
				unit("B", square(1, 0, 1)),
				unit("C", square(2, 0, 1)),
			},
			want: map[string][]string{
				"A": {"B"},
				"B": {"A", "C"},
				"C": {"B"},
			},
		},
		{
			name: "Island",
			units: []region.Unit{
				unit("A", square(0, 0, 1)),
				unit("I", square(50, 50, 1)),
			},
			want: map[string][]string{
				"A": {},
				"I": {},
			},
		},
		{
			name: "CornerTouch",
			// Diagonal squares meeting at a single vertex still touch.
			units: []region.Unit{
				unit("A", square(0, 0, 1)),
				unit("B", square(1, 1, 1)),
			},
			want: map[string][]string{
				"A": {"B"},
				"B": {"A"},
			},
		},
		{
			name: "Grid",
			// 2x2 grid: every square touches every other (diagonals via
			// the shared center vertex).
			units: []region.Unit{
				unit("NW", square(0, 1, 1)),
				unit("NE", square(1, 1, 1)),
				unit("SW", square(0, 0, 1)),
				unit("SE", square(1, 0, 1)),
			},
			want: map[string][]string{
				"NW": {"NE", "SE", "SW"},
				"NE": {"NW", "SE", "SW"},
				"SW": {"NE", "NW", "SE"},
				"SE": {"NE", "NW", "SW"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := Build(tt.units)

			if len(adj) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(adj), len(tt.want))
			}
			for id, wantNeighbors := range tt.want {
				got, ok := adj[id]
				if !ok {
					t.Fatalf("missing entry for %s", id)
				}
				if len(got) != len(wantNeighbors) {
					t.Errorf("%s: neighbors = %v, want %v", id, got, wantNeighbors)
					continue
				}
				for _, n := range wantNeighbors {
					if _, ok := got[n]; !ok {
						t.Errorf("%s: missing neighbor %s", id, n)
					}
				}
			}
		})
	}
}

func TestBuildSymmetric(t *testing.T) {
	units := []region.Unit{
		unit("A", square(0, 0, 1)),
		unit("B", square(1, 0, 1)),
		unit("C", square(2, 0, 1)),
		unit("I", square(9, 9, 1)),
	}

	adj := Build(units)
	for id, neighbors := range adj {
		for n := range neighbors {
			if _, ok := adj[n][id]; !ok {
				t.Errorf("relation not symmetric: %s lists %s but not vice versa", id, n)
			}
		}
		if _, ok := neighbors[id]; ok {
			t.Errorf("relation not irreflexive: %s lists itself", id)
		}
	}
}

func TestBuildOverlapIsNotTouch(t *testing.T) {
	// Heavily overlapping squares share interior, not just boundary.
	units := []region.Unit{
		unit("A", square(0, 0, 2)),
		unit("B", square(1, 0, 2)),
	}

	adj := Build(units)
	if _, ok := adj["A"]["B"]; ok {
		t.Error("overlapping polygons must not count as touching")
	}
}

func TestWithTolerance(t *testing.T) {
	// A 0.5-unit gap: invisible at the default tolerance, bridged at 1.
	units := []region.Unit{
		unit("A", square(0, 0, 1)),
		unit("B", square(1.5, 0, 1)),
	}

	if adj := Build(units); len(adj["A"]) != 0 {
		t.Errorf("default tolerance bridged a 0.5 gap: %v", adj["A"])
	}
	adj := Build(units, WithTolerance(1))
	if _, ok := adj["A"]["B"]; !ok {
		t.Error("tolerance 1 should bridge a 0.5 gap")
	}
}
