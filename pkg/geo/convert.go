package geo

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
)

// ToOrb converts a computation geometry into an orb geometry for GeoJSON
// encoding. A single-polygon input becomes an orb.Polygon; anything else
// becomes an orb.MultiPolygon. Rings are closed on the way out because
// GeoJSON requires the first and last positions to coincide.
func ToOrb(p geom.Polygonal) orb.Geometry {
	polys := p.Polygons()
	mp := make(orb.MultiPolygon, 0, len(polys))
	for _, poly := range polys {
		op := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			if len(ring) == 0 {
				continue
			}
			or := make(orb.Ring, 0, len(ring)+1)
			for _, pt := range ring {
				or = append(or, orb.Point{pt.X, pt.Y})
			}
			if or[0] != or[len(or)-1] {
				or = append(or, or[0])
			}
			op = append(op, or)
		}
		if len(op) > 0 {
			mp = append(mp, op)
		}
	}
	if len(mp) == 1 {
		return mp[0]
	}
	return mp
}

// FromOrb converts an orb polygonal geometry into a computation geometry.
// Point, line and collection geometries are rejected: the municipal mesh
// consists of polygons only, so anything else indicates malformed input.
func FromOrb(g orb.Geometry) (geom.Polygonal, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return polygonFromOrb(v), nil
	case orb.MultiPolygon:
		mp := make(geom.MultiPolygon, 0, len(v))
		for _, p := range v {
			mp = append(mp, polygonFromOrb(p))
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}
}

func polygonFromOrb(p orb.Polygon) geom.Polygon {
	poly := make(geom.Polygon, 0, len(p))
	for _, ring := range p {
		r := make([]geom.Point, 0, len(ring))
		for _, pt := range ring {
			r = append(r, geom.Point{X: pt[0], Y: pt[1]})
		}
		poly = append(poly, r)
	}
	return poly
}
