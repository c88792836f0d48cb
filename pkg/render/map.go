package render

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Comparison map layout constants.
const (
	mapPadding   = 20.0
	titleHeight  = 28.0
	strokeWidth  = 0.6
	minPanelSize = 100
)

// ComparisonMap draws the before/after view as a single PNG: the original
// municipalities on the left panel, the merged regions on the right, both
// fitted to the same geographic extent. Each feature gets a stable color
// derived from its region id, so a region keeps its hue across renders.
func ComparisonMap(original, merged *geojson.FeatureCollection, width, height int) ([]byte, error) {
	if width < 2*minPanelSize || height < minPanelSize {
		return nil, fmt.Errorf("canvas %dx%d too small for two panels", width, height)
	}
	if original == nil || merged == nil {
		return nil, fmt.Errorf("both feature collections are required")
	}

	bounds, ok := collectionsBound(original, merged)
	if !ok {
		return nil, fmt.Errorf("no geometry to draw")
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	panelWidth := float64(width) / 2
	left := panel{x: 0, y: 0, w: panelWidth, h: float64(height)}
	right := panel{x: panelWidth, y: 0, w: panelWidth, h: float64(height)}

	drawPanel(dc, original, bounds, left, fmt.Sprintf("Original (%d)", len(original.Features)))
	drawPanel(dc, merged, bounds, right, fmt.Sprintf("Merged (%d)", len(merged.Features)))

	// Divider between the panels.
	dc.SetRGB(0.7, 0.7, 0.7)
	dc.SetLineWidth(1)
	dc.DrawLine(panelWidth, 0, panelWidth, float64(height))
	dc.Stroke()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type panel struct{ x, y, w, h float64 }

func drawPanel(dc *gg.Context, fc *geojson.FeatureCollection, bounds orb.Bound, p panel, title string) {
	project := fitProjection(bounds, p)

	for _, f := range fc.Features {
		id := featureID(f)
		r, g, b := featureColor(id)
		forEachRing(f.Geometry, func(ring orb.Ring) {
			if len(ring) < 3 {
				return
			}
			dc.NewSubPath()
			for i, pt := range ring {
				x, y := project(pt)
				if i == 0 {
					dc.MoveTo(x, y)
				} else {
					dc.LineTo(x, y)
				}
			}
			dc.ClosePath()
		})
		dc.SetRGBA(r, g, b, 0.85)
		dc.FillPreserve()
		dc.SetRGB(0.25, 0.25, 0.25)
		dc.SetLineWidth(strokeWidth)
		dc.Stroke()
	}

	dc.SetRGB(0.1, 0.1, 0.1)
	dc.DrawStringAnchored(title, p.x+p.w/2, p.y+titleHeight/2, 0.5, 0.5)
}

// fitProjection maps geographic coordinates into the panel, preserving
// aspect ratio and flipping the y axis for image space.
func fitProjection(bounds orb.Bound, p panel) func(orb.Point) (float64, float64) {
	spanX := bounds.Max[0] - bounds.Min[0]
	spanY := bounds.Max[1] - bounds.Min[1]

	availW := p.w - 2*mapPadding
	availH := p.h - titleHeight - 2*mapPadding
	scale := math.Min(availW/spanX, availH/spanY)

	offsetX := p.x + mapPadding + (availW-spanX*scale)/2
	offsetY := p.y + titleHeight + mapPadding + (availH-spanY*scale)/2

	return func(pt orb.Point) (float64, float64) {
		x := offsetX + (pt[0]-bounds.Min[0])*scale
		y := offsetY + (bounds.Max[1]-pt[1])*scale
		return x, y
	}
}

// collectionsBound returns the combined extent of all features. The bool is
// false when no feature carries geometry.
func collectionsBound(collections ...*geojson.FeatureCollection) (orb.Bound, bool) {
	var bound orb.Bound
	found := false
	for _, fc := range collections {
		for _, f := range fc.Features {
			if f.Geometry == nil {
				continue
			}
			if !found {
				bound = f.Geometry.Bound()
				found = true
				continue
			}
			bound = bound.Union(f.Geometry.Bound())
		}
	}
	return bound, found
}

func forEachRing(g orb.Geometry, fn func(orb.Ring)) {
	switch geometry := g.(type) {
	case orb.Polygon:
		for _, ring := range geometry {
			fn(ring)
		}
	case orb.MultiPolygon:
		for _, poly := range geometry {
			for _, ring := range poly {
				fn(ring)
			}
		}
	}
}

func featureID(f *geojson.Feature) string {
	if s, ok := f.ID.(string); ok {
		return s
	}
	return f.Properties.MustString("region_id", "")
}

// featureColor derives a muted fill color from the region id. FNV keeps it
// stable across runs without any palette state.
func featureColor(id string) (r, g, b float64) {
	h := fnv.New32a()
	h.Write([]byte(id))
	v := h.Sum32()

	// Spread hues over the wheel, keep saturation and value in a band
	// that reads well on white.
	hue := float64(v%360) / 360
	return hsv(hue, 0.45, 0.92)
}

func hsv(h, s, v float64) (float64, float64, float64) {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
