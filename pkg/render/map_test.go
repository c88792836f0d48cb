package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func collection(ids ...string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, id := range ids {
		x := float64(i)
		f := geojson.NewFeature(orb.Polygon{{
			{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0},
		}})
		f.ID = id
		f.Properties = geojson.Properties{"region_id": id}
		fc.Append(f)
	}
	return fc
}

func TestComparisonMap(t *testing.T) {
	original := collection("A", "B", "C")
	merged := collection("A+B+C")

	data, err := ComparisonMap(original, merged, 800, 400)
	if err != nil {
		t.Fatalf("ComparisonMap: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a valid PNG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 800 || b.Dy() != 400 {
		t.Errorf("image size = %dx%d, want 800x400", b.Dx(), b.Dy())
	}
}

func TestComparisonMapRejectsTinyCanvas(t *testing.T) {
	fc := collection("A")
	if _, err := ComparisonMap(fc, fc, 50, 50); err == nil {
		t.Error("expected error for undersized canvas")
	}
}

func TestComparisonMapRejectsEmptyInput(t *testing.T) {
	empty := geojson.NewFeatureCollection()
	if _, err := ComparisonMap(empty, empty, 800, 400); err == nil {
		t.Error("expected error for empty collections")
	}
	if _, err := ComparisonMap(nil, collection("A"), 800, 400); err == nil {
		t.Error("expected error for nil collection")
	}
}

func TestFeatureColorStable(t *testing.T) {
	r1, g1, b1 := featureColor("3550308")
	r2, g2, b2 := featureColor("3550308")
	if r1 != r2 || g1 != g2 || b1 != b2 {
		t.Error("color not stable for identical id")
	}

	r3, g3, b3 := featureColor("3106200")
	if r1 == r3 && g1 == g3 && b1 == b3 {
		t.Error("distinct ids mapped to identical colors")
	}
}
