// Package pipeline provides the end-to-end munimerge run for CLI and
// server entry points.
//
// # Architecture
//
// A run consists of four stages:
//
//  1. Fetch: population estimates and municipal boundaries from IBGE
//  2. Adjacency: build the touches relation over the boundary polygons
//  3. Merge: drive the region table to its population fixed point
//  4. Export: project records, statistics and GeoJSON collections
//
// By centralizing this sequence, CLI and server behave identically and
// share one result cache.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(source, resultCache, nil)
//	opts := pipeline.Options{Threshold: 30000, PopulationYear: 2021}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stats.MergedCount)
package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultThreshold is the population floor every merged region must
	// reach. 30 000 inhabitants is the cutoff commonly used for small
	// Brazilian municipalities.
	DefaultThreshold = 30000

	// DefaultPopulationYear selects the IBGE population estimate series.
	DefaultPopulationYear = 2021
)

// Population estimates exist for a bounded range of years; outside it the
// agregados API returns an empty series.
const (
	minPopulationYear = 2001
	maxPopulationYear = 2021
)

// ErrValidation wraps option validation failures so transports can map them
// to a client error instead of a server one.
var ErrValidation = errors.New("invalid pipeline options")

// Options are the parameters of one pipeline run.
type Options struct {
	// Threshold is the population floor. Zero means DefaultThreshold.
	Threshold int

	// PopulationYear selects the estimate series. Zero means
	// DefaultPopulationYear.
	PopulationYear int

	// Refresh bypasses the result cache and recomputes.
	Refresh bool

	// Logger receives progress output. Nil discards it.
	Logger *log.Logger
}

// ValidateAndSetDefaults fills zero values and rejects out-of-range
// parameters. Violations are wrapped in ErrValidation.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.PopulationYear == 0 {
		o.PopulationYear = DefaultPopulationYear
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	if o.Threshold < 0 {
		return fmt.Errorf("%w: threshold must be positive, got %d", ErrValidation, o.Threshold)
	}
	if o.PopulationYear < minPopulationYear || o.PopulationYear > maxPopulationYear {
		return fmt.Errorf("%w: population year must be between %d and %d, got %d",
			ErrValidation, minPopulationYear, maxPopulationYear, o.PopulationYear)
	}
	return nil
}
