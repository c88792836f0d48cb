package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/geobr-tools/munimerge/pkg/adjacency"
	"github.com/geobr-tools/munimerge/pkg/cache"
	"github.com/geobr-tools/munimerge/pkg/export"
	"github.com/geobr-tools/munimerge/pkg/geo"
	"github.com/geobr-tools/munimerge/pkg/merge"
	"github.com/geobr-tools/munimerge/pkg/observability"
	"github.com/geobr-tools/munimerge/pkg/region"
)

// Source supplies the pipeline inputs. pkg/ibge implements it against the
// production APIs; tests substitute fixtures.
type Source interface {
	// Units returns one labeled polygon per municipality, already in the
	// planar calculation coordinate system.
	Units(ctx context.Context) ([]region.Unit, error)

	// Population returns the population estimate per municipality id for
	// the given year.
	Population(ctx context.Context, year int) (map[string]int, error)
}

// Result is the complete output of one pipeline run. It serializes to JSON
// for the result cache and for the server's status endpoint; geometry is
// carried as GeoJSON in geographic SIRGAS 2000 coordinates.
type Result struct {
	RunID          string    `json:"run_id"`
	Threshold      int       `json:"threshold"`
	PopulationYear int       `json:"population_year"`
	GeneratedAt    time.Time `json:"generated_at"`

	Original *geojson.FeatureCollection `json:"original"`
	Merged   *geojson.FeatureCollection `json:"merged"`

	Stats     export.Stats        `json:"stats"`
	Adjacency map[string][]string `json:"adjacency"`

	// Iterations is the number of fusions the scheduler performed.
	Iterations int `json:"iterations"`

	// Elapsed is the wall-clock cost of the run, zero for cache hits.
	Elapsed time.Duration `json:"elapsed"`

	// CacheHit reports whether this result was served from cache.
	CacheHit bool `json:"-"`
}

// Runner executes pipeline runs against a Source, memoizing results per
// parameter set.
type Runner struct {
	source Source
	cache  cache.Cache
	keyer  cache.Keyer

	// TTL is how long cached results stay fresh. Zero means
	// cache.TTLResult.
	TTL time.Duration
}

// NewRunner creates a runner. The cache may be nil to disable result
// memoization; a nil keyer falls back to the default.
func NewRunner(source Source, c cache.Cache, keyer cache.Keyer) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Runner{source: source, cache: c, keyer: keyer}
}

// Execute runs the full pipeline for the given options, serving a cached
// result when one is fresh and opts.Refresh is unset.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	key := r.keyer.ResultKey(opts.Threshold, opts.PopulationYear)
	if r.cache != nil && !opts.Refresh {
		if cached := r.lookup(ctx, key); cached != nil {
			logger.Info("serving cached result",
				"threshold", opts.Threshold, "year", opts.PopulationYear)
			return cached, nil
		}
	}

	result, err := r.run(ctx, opts)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		ttl := r.TTL
		if ttl == 0 {
			ttl = cache.TTLResult
		}
		if data, err := json.Marshal(result); err == nil {
			// A result is expensive to recompute, so transient backend
			// trouble gets a few retries before the write is abandoned.
			err := cache.RetryWithBackoff(ctx, func() error {
				return r.cache.Set(ctx, key, data, ttl)
			})
			if err != nil {
				logger.Warn("could not cache result", "err", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "result", len(data))
			}
		}
	}
	return result, nil
}

// lookup returns the cached result for key, or nil on miss or decode
// failure. Cache trouble never fails a run.
func (r *Runner) lookup(ctx context.Context, key string) *Result {
	data, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		observability.Cache().OnCacheMiss(ctx, "result")
		return nil
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	observability.Cache().OnCacheHit(ctx, "result")
	result.CacheHit = true
	// The stored Elapsed measured the original computation; serving the
	// hit costs nothing.
	result.Elapsed = 0
	return &result
}

func (r *Runner) run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	runStart := time.Now()

	// Stage 1: fetch.
	observability.Pipeline().OnFetchStart(ctx, opts.PopulationYear)
	fetchStart := time.Now()
	units, err := r.source.Units(ctx)
	if err != nil {
		observability.Pipeline().OnFetchComplete(ctx, opts.PopulationYear, 0, time.Since(fetchStart), err)
		return nil, fmt.Errorf("fetch units: %w", err)
	}
	population, err := r.source.Population(ctx, opts.PopulationYear)
	if err != nil {
		observability.Pipeline().OnFetchComplete(ctx, opts.PopulationYear, len(units), time.Since(fetchStart), err)
		return nil, fmt.Errorf("fetch population: %w", err)
	}
	observability.Pipeline().OnFetchComplete(ctx, opts.PopulationYear, len(units), time.Since(fetchStart), nil)
	logger.Info("inputs ready", "municipalities", len(units), "year", opts.PopulationYear)

	// Stage 2: adjacency.
	observability.Pipeline().OnAdjacencyStart(ctx, len(units))
	adjStart := time.Now()
	neighbors := adjacency.Build(units)
	observability.Pipeline().OnAdjacencyComplete(ctx, edgeCount(neighbors), time.Since(adjStart), nil)
	logger.Info("adjacency built", "edges", edgeCount(neighbors))

	// Stage 3: merge. The original records are captured before the table
	// is mutated.
	regions := region.Initialize(units, population, neighbors)
	originalRecords := export.Records(regions)

	iterations, err := merge.Run(ctx, regions, opts.Threshold, merge.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	// Stage 4: export.
	observability.Pipeline().OnExportStart(ctx, len(regions))
	exportStart := time.Now()
	mergedRecords := export.Records(regions)

	toOutput, err := geo.CalculationToOutput()
	if err != nil {
		observability.Pipeline().OnExportComplete(ctx, time.Since(exportStart), err)
		return nil, err
	}
	original, err := export.FeatureCollection(originalRecords, toOutput)
	if err != nil {
		observability.Pipeline().OnExportComplete(ctx, time.Since(exportStart), err)
		return nil, fmt.Errorf("encode original collection: %w", err)
	}
	merged, err := export.FeatureCollection(mergedRecords, toOutput)
	if err != nil {
		observability.Pipeline().OnExportComplete(ctx, time.Since(exportStart), err)
		return nil, fmt.Errorf("encode merged collection: %w", err)
	}
	observability.Pipeline().OnExportComplete(ctx, time.Since(exportStart), nil)

	result := &Result{
		RunID:          uuid.NewString(),
		Threshold:      opts.Threshold,
		PopulationYear: opts.PopulationYear,
		GeneratedAt:    time.Now().UTC(),
		Original:       original,
		Merged:         merged,
		Stats:          export.Summarize(originalRecords, mergedRecords, opts.Threshold, opts.PopulationYear),
		Adjacency:      export.Neighbors(regions),
		Iterations:     iterations,
		Elapsed:        time.Since(runStart),
	}
	logger.Info("pipeline complete",
		"run_id", result.RunID,
		"original", result.Stats.OriginalCount,
		"merged", result.Stats.MergedCount,
		"fusions", iterations,
		"elapsed", result.Elapsed)
	return result, nil
}

// edgeCount counts undirected edges in a symmetric neighbor relation.
func edgeCount(neighbors map[string]map[string]struct{}) int {
	total := 0
	for _, set := range neighbors {
		total += len(set)
	}
	return total / 2
}
