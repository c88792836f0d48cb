package export

import (
	"fmt"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb/geojson"

	"github.com/geobr-tools/munimerge/pkg/geo"
	"github.com/geobr-tools/munimerge/pkg/region"
)

// FeatureCollection encodes records as a GeoJSON FeatureCollection,
// reprojecting each geometry with t before encoding. Pass a nil transformer
// to keep geometries in their current coordinate system.
//
// Merged regions that were fused through the global-nearest fallback carry
// disjoint multi-part geometries; these encode as MultiPolygon features.
func FeatureCollection(records []Record, t proj.Transformer) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		g := rec.Geometry
		if t != nil {
			transformed, err := g.Transform(t)
			if err != nil {
				return nil, fmt.Errorf("reproject region %s: %w", rec.RegionID, err)
			}
			polygonal, ok := transformed.(geom.Polygonal)
			if !ok {
				return nil, fmt.Errorf("reproject region %s: unexpected geometry type %T", rec.RegionID, transformed)
			}
			g = polygonal
		}

		f := geojson.NewFeature(geo.ToOrb(g))
		f.ID = rec.RegionID
		f.Properties = geojson.Properties{
			"region_id":           rec.RegionID,
			"population":          rec.Population,
			"member_count":        rec.MemberCount,
			"states":              rec.States,
			"representative_name": rec.RepresentativeName,
		}
		fc.Append(f)
	}
	return fc, nil
}

// Neighbors echoes the neighbor relation of a region table as sorted id
// slices, suitable for serialization and for rendering the region graph.
func Neighbors(regions map[string]*region.Region) map[string][]string {
	out := make(map[string][]string, len(regions))
	for id, r := range regions {
		ids := make([]string, 0, len(r.Neighbors))
		for nid := range r.Neighbors {
			ids = append(ids, nid)
		}
		sort.Strings(ids)
		out[id] = ids
	}
	return out
}
