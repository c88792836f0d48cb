// Package adjacency computes the symmetric "touches" relation over a set of
// labeled polygons: two units are adjacent when their boundaries meet
// without their interiors overlapping.
//
// Candidate pairs come from an R-tree query on expanded bounding boxes, so
// the builder never does an O(N²) pairwise sweep. Units whose polygons
// touch nothing (islands) get an empty neighbor set; downstream code must
// tolerate that rather than treat it as an error.
package adjacency

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"

	"github.com/geobr-tools/munimerge/pkg/region"
)

// DefaultTolerance is the maximum gap, in projection units, at which two
// boundary points are still considered coincident. The IBGE mesh is
// topologically consistent, so a sub-millimeter tolerance in a metric
// projection is enough to absorb float noise.
const DefaultTolerance = 1e-6

// Option configures the builder.
type Option func(*builder)

// WithTolerance overrides the boundary-contact tolerance. Use a larger
// value for meshes whose shared borders were digitized independently.
func WithTolerance(tol float64) Option {
	return func(b *builder) { b.tolerance = tol }
}

type builder struct {
	tolerance float64
}

// indexedUnit adapts a unit to the rtree.Spatial interface with bounds
// expanded by the tolerance, so near-touching pairs still intersect in
// index space.
type indexedUnit struct {
	unit   *region.Unit
	bounds *geom.Bounds
}

func (u *indexedUnit) Bounds() *geom.Bounds { return u.bounds }

func (u *indexedUnit) Similar(g geom.Geom, tol float64) bool {
	return u.unit.Geometry.Similar(g, tol)
}

func (u *indexedUnit) Transform(t proj.Transformer) (geom.Geom, error) {
	return u.unit.Geometry.Transform(t)
}

func (u *indexedUnit) Len() int { return u.unit.Geometry.Len() }

func (u *indexedUnit) Points() func() geom.Point { return u.unit.Geometry.Points() }

// Build returns the neighbor-id set for every unit id. The relation is
// symmetric and irreflexive; every input id appears as a key even when its
// neighbor set is empty.
func Build(units []region.Unit, opts ...Option) map[string]map[string]struct{} {
	b := &builder{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(b)
	}

	tree := rtree.NewTree(25, 50)
	indexed := make([]*indexedUnit, len(units))
	for i := range units {
		iu := &indexedUnit{
			unit:   &units[i],
			bounds: expand(units[i].Geometry.Bounds(), b.tolerance),
		}
		indexed[i] = iu
		tree.Insert(iu)
	}

	adj := make(map[string]map[string]struct{}, len(units))
	for _, iu := range indexed {
		adj[iu.unit.ID] = make(map[string]struct{})
	}

	for _, iu := range indexed {
		for _, hit := range tree.SearchIntersect(iu.bounds) {
			other := hit.(*indexedUnit)
			if other.unit.ID == iu.unit.ID {
				continue
			}
			if _, seen := adj[iu.unit.ID][other.unit.ID]; seen {
				continue
			}
			if b.touches(iu.unit.Geometry, other.unit.Geometry) {
				adj[iu.unit.ID][other.unit.ID] = struct{}{}
				adj[other.unit.ID][iu.unit.ID] = struct{}{}
			}
		}
	}
	return adj
}

// touches reports whether the boundaries of a and b meet without interior
// overlap. Contact is detected by testing every boundary vertex of one
// polygon against the boundary segments of the other, in both directions;
// a positive-area intersection disqualifies the pair (overlap, not touch).
func (b *builder) touches(a, other geom.Polygonal) bool {
	if !boundaryContact(a, other, b.tolerance) && !boundaryContact(other, a, b.tolerance) {
		return false
	}
	inter := a.Intersection(other)
	return math.Abs(inter.Area()) <= b.tolerance
}

// boundaryContact reports whether any vertex of a lies within tol of a
// boundary segment of b.
func boundaryContact(a, b geom.Polygonal, tol float64) bool {
	for _, ap := range a.Polygons() {
		for _, ring := range ap {
			for _, pt := range ring {
				if pointOnBoundary(pt, b, tol) {
					return true
				}
			}
		}
	}
	return false
}

func pointOnBoundary(pt geom.Point, p geom.Polygonal, tol float64) bool {
	bounds := p.Bounds()
	if pt.X < bounds.Min.X-tol || pt.X > bounds.Max.X+tol ||
		pt.Y < bounds.Min.Y-tol || pt.Y > bounds.Max.Y+tol {
		return false
	}
	for _, poly := range p.Polygons() {
		for _, ring := range poly {
			n := len(ring)
			if n < 2 {
				continue
			}
			for i := 0; i < n; i++ {
				if pointSegmentDistance(pt, ring[i], ring[(i+1)%n]) <= tol {
					return true
				}
			}
		}
	}
	return false
}

// pointSegmentDistance returns the distance from pt to the segment (a, b).
func pointSegmentDistance(pt, a, b geom.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(pt.X-a.X, pt.Y-a.Y)
	}
	t := ((pt.X-a.X)*dx + (pt.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(pt.X-(a.X+t*dx), pt.Y-(a.Y+t*dy))
}

func expand(b *geom.Bounds, tol float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X - tol, Y: b.Min.Y - tol},
		Max: geom.Point{X: b.Max.X + tol, Y: b.Max.Y + tol},
	}
}
