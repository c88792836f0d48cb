// Package geo holds the coordinate systems used by munimerge and converts
// between the computation geometry types (ctessum/geom) and the interchange
// geometry types (paulmach/orb).
//
// All distance and area computations run in a planar, metric projection
// centered on Brazil; interchange artifacts (GeoJSON) use geographic
// SIRGAS 2000 coordinates, matching what map clients expect.
package geo

import (
	"fmt"

	"github.com/ctessum/geom/proj"
)

// Proj4 definitions for the two coordinate systems.
const (
	// CalculationProj is a Lambert conformal conic centered on Brazil with
	// metric units. Centroid distances and touch tolerances are meaningful
	// in meters only in this system.
	CalculationProj = "+proj=lcc +lat_1=-5 +lat_2=-30 +lat_0=-17.5 +lon_0=-54 +x_0=0 +y_0=0 +ellps=GRS80 +units=m +no_defs"

	// OutputProj is geographic SIRGAS 2000 (EPSG:4674), the system the IBGE
	// mesh is published in and the one exported GeoJSON uses.
	OutputProj = "+proj=longlat +ellps=GRS80 +no_defs"
)

// NewTransform builds a transformer from one proj4 definition to another.
func NewTransform(src, dst string) (proj.Transformer, error) {
	srcSR, err := proj.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse source projection: %w", err)
	}
	dstSR, err := proj.Parse(dst)
	if err != nil {
		return nil, fmt.Errorf("parse target projection: %w", err)
	}
	t, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, fmt.Errorf("create transform: %w", err)
	}
	return t, nil
}

// OutputToCalculation returns the transformer applied to freshly downloaded
// boundaries before the merge algorithm sees them.
func OutputToCalculation() (proj.Transformer, error) {
	return NewTransform(OutputProj, CalculationProj)
}

// CalculationToOutput returns the transformer applied to final geometries
// before they are exported.
func CalculationToOutput() (proj.Transformer, error) {
	return NewTransform(CalculationProj, OutputProj)
}
