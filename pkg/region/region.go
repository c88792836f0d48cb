// Package region defines the mutable composite entity at the heart of the
// municipality merge: a Region is one or more original municipalities fused
// into a single unit with aggregated population, geometry and naming.
//
// Regions are stored in an id-keyed table and reference each other by id,
// never by pointer. Fusion constructs a new Region and leaves both inputs
// untouched; the caller retires the inputs from the table.
package region

import (
	"math"
	"sort"
	"strings"

	"github.com/ctessum/geom"
)

// Unit is one original municipality as delivered by the boundary source,
// already expressed in the planar calculation projection.
type Unit struct {
	ID       string
	Name     string
	State    string
	Geometry geom.Polygonal
}

// Region is a merged (possibly singleton) composite of original units.
//
// Members and States are sets; Names preserves folding order (oldest
// first); Neighbors holds the ids of currently adjacent regions and must be
// kept in sync with the live region table by whoever mutates that table.
type Region struct {
	ID         string
	Members    map[string]struct{}
	Population int
	Geometry   geom.Polygonal
	Names      []string
	States     map[string]struct{}
	Neighbors  map[string]struct{}
}

// New creates a singleton region for a single original unit. Missing
// population entries are treated as zero by the caller.
func New(u Unit, population int, neighbors []string) *Region {
	r := &Region{
		ID:         u.ID,
		Members:    map[string]struct{}{u.ID: {}},
		Population: population,
		Geometry:   u.Geometry,
		Names:      []string{u.Name},
		States:     map[string]struct{}{u.State: {}},
		Neighbors:  make(map[string]struct{}, len(neighbors)),
	}
	for _, n := range neighbors {
		if n != u.ID {
			r.Neighbors[n] = struct{}{}
		}
	}
	return r
}

// Initialize builds the initial region table, one singleton region per
// unit. Units without a population entry get population zero; units
// without an adjacency entry get an empty neighbor set (islands).
func Initialize(units []Unit, population map[string]int, adjacency map[string]map[string]struct{}) map[string]*Region {
	regions := make(map[string]*Region, len(units))
	for _, u := range units {
		var neighbors []string
		for n := range adjacency[u.ID] {
			neighbors = append(neighbors, n)
		}
		regions[u.ID] = New(u, population[u.ID], neighbors)
	}
	return regions
}

// MemberIDs returns the member set in sorted order.
func (r *Region) MemberIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for id := range r.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StateCodes returns the covered jurisdiction codes in sorted order.
func (r *Region) StateCodes() []string {
	states := make([]string, 0, len(r.States))
	for s := range r.States {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// CentroidDistance returns the Euclidean distance between the projected
// centroids of two regions. Both geometries must be in the same planar,
// distance-preserving projection.
func (r *Region) CentroidDistance(other *Region) float64 {
	a := r.Geometry.Centroid()
	b := other.Geometry.Centroid()
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// MergedID derives the successor id for fusing two regions: the union of
// their member ids, sorted and joined by "+". The id is a pure function of
// the member set, so distinct member sets can never collide.
func MergedID(a, b *Region) string {
	ids := make([]string, 0, len(a.Members)+len(b.Members))
	for id := range a.Members {
		ids = append(ids, id)
	}
	for id := range b.Members {
		if _, dup := a.Members[id]; !dup {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, "+")
}

// Fuse combines two live regions into their successor. Neither input is
// mutated; the caller is responsible for retiring both from the live table
// and inserting the result.
//
// The successor's geometry is the topological union of the inputs (the
// boolean-op construction emits a normalized ring set, so no separate
// repair pass is needed), its population is the sum, members and states are
// unioned, names are concatenated preserving first-then-second order, and
// the neighbor set is the union of both inputs' neighbors minus the two
// retiring ids.
func Fuse(a, b *Region) *Region {
	members := make(map[string]struct{}, len(a.Members)+len(b.Members))
	for id := range a.Members {
		members[id] = struct{}{}
	}
	for id := range b.Members {
		members[id] = struct{}{}
	}

	states := make(map[string]struct{}, len(a.States)+len(b.States))
	for s := range a.States {
		states[s] = struct{}{}
	}
	for s := range b.States {
		states[s] = struct{}{}
	}

	names := make([]string, 0, len(a.Names)+len(b.Names))
	names = append(names, a.Names...)
	names = append(names, b.Names...)

	neighbors := make(map[string]struct{}, len(a.Neighbors)+len(b.Neighbors))
	for id := range a.Neighbors {
		neighbors[id] = struct{}{}
	}
	for id := range b.Neighbors {
		neighbors[id] = struct{}{}
	}
	delete(neighbors, a.ID)
	delete(neighbors, b.ID)

	return &Region{
		ID:         MergedID(a, b),
		Members:    members,
		Population: a.Population + b.Population,
		Geometry:   a.Geometry.Union(b.Geometry),
		Names:      names,
		States:     states,
		Neighbors:  neighbors,
	}
}
