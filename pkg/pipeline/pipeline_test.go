package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ctessum/geom"

	"github.com/geobr-tools/munimerge/pkg/cache"
	"github.com/geobr-tools/munimerge/pkg/region"
)

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"ZeroValueGetsDefaults", Options{}, false},
		{"ExplicitValues", Options{Threshold: 50000, PopulationYear: 2019}, false},
		{"NegativeThreshold", Options{Threshold: -1}, true},
		{"YearTooEarly", Options{PopulationYear: 1999}, true},
		{"YearTooLate", Options{PopulationYear: 2050}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if tt.opts.Threshold == 0 || tt.opts.PopulationYear == 0 || tt.opts.Logger == nil {
				t.Errorf("defaults not applied: %+v", tt.opts)
			}
		})
	}
}

// stubSource serves a fixed row of squares. Coordinates are planar meters
// in the calculation system, roughly central Brazil.
type stubSource struct {
	calls int
}

func metricSquare(x, y, size float64) geom.Polygon {
	return geom.Polygon{{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}}
}

func (s *stubSource) Units(ctx context.Context) ([]region.Unit, error) {
	s.calls++
	const size = 10000 // 10 km squares
	return []region.Unit{
		{ID: "A", Name: "Alfa", State: "GO", Geometry: metricSquare(0, 0, size)},
		{ID: "B", Name: "Bravo", State: "GO", Geometry: metricSquare(size, 0, size)},
		{ID: "C", Name: "Charlie", State: "GO", Geometry: metricSquare(2*size, 0, size)},
	}, nil
}

func (s *stubSource) Population(ctx context.Context, year int) (map[string]int, error) {
	return map[string]int{"A": 5000, "B": 8000, "C": 90000}, nil
}

func TestRunnerExecute(t *testing.T) {
	source := &stubSource{}
	runner := NewRunner(source, nil, nil)

	result, err := runner.Execute(context.Background(), Options{Threshold: 30000, PopulationYear: 2021})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.RunID == "" {
		t.Error("missing run id")
	}
	if result.Stats.OriginalCount != 3 {
		t.Errorf("OriginalCount = %d, want 3", result.Stats.OriginalCount)
	}
	// A and B both fold into C: 5000+8000+90000 over the threshold.
	if result.Stats.MergedCount != 1 {
		t.Errorf("MergedCount = %d, want 1", result.Stats.MergedCount)
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}
	if len(result.Original.Features) != 3 || len(result.Merged.Features) != 1 {
		t.Errorf("feature counts = (%d, %d), want (3, 1)",
			len(result.Original.Features), len(result.Merged.Features))
	}
	if result.Stats.MergedMinPopulation != 103000 {
		t.Errorf("MergedMinPopulation = %d, want 103000", result.Stats.MergedMinPopulation)
	}
	if result.CacheHit {
		t.Error("fresh run should not be marked as cache hit")
	}

	// Exported geometry is geographic: longitudes in Brazil's range.
	f := result.Merged.Features[0]
	lon, lat := f.Geometry.Bound().Min[0], f.Geometry.Bound().Min[1]
	if lon > -30 || lon < -80 || lat > 10 || lat < -40 {
		t.Errorf("exported geometry not geographic: bound min (%v, %v)", lon, lat)
	}
}

func TestRunnerCaching(t *testing.T) {
	source := &stubSource{}
	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := NewRunner(source, fileCache, nil)
	opts := Options{Threshold: 30000, PopulationYear: 2021}

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if !second.CacheHit {
		t.Error("second run should hit the cache")
	}
	if second.RunID != first.RunID {
		t.Errorf("cached run id = %s, want %s", second.RunID, first.RunID)
	}
	if second.Elapsed != 0 {
		t.Errorf("cached Elapsed = %v, want 0", second.Elapsed)
	}
	if source.calls != 1 {
		t.Errorf("source called %d times, want 1", source.calls)
	}

	// Refresh bypasses the cache and produces a new run.
	third, err := runner.Execute(context.Background(), Options{
		Threshold: 30000, PopulationYear: 2021, Refresh: true,
	})
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if third.CacheHit {
		t.Error("refresh run must not be served from cache")
	}
	if source.calls != 2 {
		t.Errorf("source called %d times after refresh, want 2", source.calls)
	}
}

// faultyCache misses on every read and fails every write with a permanent
// error.
type faultyCache struct {
	sets int
}

func (c *faultyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *faultyCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.sets++
	return errors.New("disk full")
}

func (c *faultyCache) Delete(ctx context.Context, key string) error { return nil }
func (c *faultyCache) Close() error                                 { return nil }

func TestRunnerSurvivesCacheFailure(t *testing.T) {
	source := &stubSource{}
	faulty := &faultyCache{}
	runner := NewRunner(source, faulty, nil)
	opts := Options{Threshold: 30000, PopulationYear: 2021}

	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute with failing cache: %v", err)
	}
	if result.CacheHit {
		t.Error("run with failing cache cannot be a cache hit")
	}
	// A permanent write failure is not retried.
	if faulty.sets != 1 {
		t.Errorf("Set called %d times, want 1", faulty.sets)
	}

	// Nothing was stored, so the next run recomputes.
	if _, err := runner.Execute(context.Background(), opts); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("source called %d times, want 2", source.calls)
	}
}

func TestRunnerValidation(t *testing.T) {
	runner := NewRunner(&stubSource{}, nil, nil)

	_, err := runner.Execute(context.Background(), Options{PopulationYear: 1900})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestEdgeCount(t *testing.T) {
	neighbors := map[string]map[string]struct{}{
		"A": {"B": {}},
		"B": {"A": {}, "C": {}},
		"C": {"B": {}},
	}
	if got := edgeCount(neighbors); got != 2 {
		t.Errorf("edgeCount = %d, want 2", got)
	}
}
