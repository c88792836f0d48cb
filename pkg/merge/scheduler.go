// Package merge implements the greedy fixed-point loop that fuses
// under-threshold regions with their closest eligible partner until every
// live region satisfies the population floor.
//
// Each iteration picks the globally smallest under-threshold region, picks
// its nearest live neighbor (falling back to the globally nearest region
// when the neighbor set is empty or dead — the escape valve for islands
// and enclaves), fuses the pair, and rewires all affected adjacency. Two
// regions retire and one successor is inserted per iteration, so the loop
// terminates in at most N−1 iterations or fails earlier.
//
// Selection is deterministic: population ties and distance ties are both
// broken by the lexicographically smallest region id, so identical inputs
// always produce identical output regions.
package merge

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/geobr-tools/munimerge/pkg/observability"
	"github.com/geobr-tools/munimerge/pkg/region"
)

// DefaultProgressEvery is how many fusions pass between progress log lines.
const DefaultProgressEvery = 100

// NoCandidateError is returned when an under-threshold region has no
// possible merge partner: its neighbor set is empty (or dead) and no other
// live region exists. The run cannot make progress and aborts.
type NoCandidateError struct {
	RegionID string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("region %s has no available merge partner", e.RegionID)
}

// Options configures a scheduler run. The zero value is usable: logging is
// discarded and progress is reported every DefaultProgressEvery fusions.
type Options struct {
	Logger        *log.Logger
	ProgressEvery int
}

// Run drives the region table to its fixed point: when it returns nil,
// every region in the table has population ≥ threshold. The table is
// mutated in place; on error it is left mid-run and should be discarded.
//
// The returned count is the number of fusions performed — zero when the
// input already satisfied the threshold everywhere, which also makes Run
// idempotent on its own output.
//
// The context is passed to observability hooks only; a started run is never
// cancelled.
func Run(ctx context.Context, regions map[string]*region.Region, threshold int, opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	progressEvery := opts.ProgressEvery
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}

	start := time.Now()
	observability.Pipeline().OnMergeStart(ctx, len(regions), threshold)

	iterations := 0
	for {
		// Scanning: the smallest under-threshold region, ties by id.
		current := pickSmallest(regions, threshold)
		if current == nil {
			break
		}

		// Selecting-Partner: nearest live neighbor, else global fallback.
		partner := pickPartner(current, regions)
		if partner == nil {
			err := &NoCandidateError{RegionID: current.ID}
			observability.Pipeline().OnMergeComplete(ctx, iterations, len(regions), time.Since(start), err)
			return iterations, err
		}

		// Fusing: build the successor; inputs stay untouched.
		merged := region.Fuse(current, partner)

		// Rewiring: point every surviving neighbor at the successor, then
		// atomically swap the two retiring regions for it.
		for nid := range merged.Neighbors {
			nr, live := regions[nid]
			if !live {
				delete(merged.Neighbors, nid)
				continue
			}
			delete(nr.Neighbors, current.ID)
			delete(nr.Neighbors, partner.ID)
			nr.Neighbors[merged.ID] = struct{}{}
		}
		delete(regions, current.ID)
		delete(regions, partner.ID)
		regions[merged.ID] = merged

		iterations++
		observability.Pipeline().OnMergeStep(ctx, iterations, merged.ID, merged.Population)
		if iterations%progressEvery == 0 {
			logger.Info("merge progress",
				"step", iterations,
				"fused", fmt.Sprintf("%s + %s", current.ID, partner.ID),
				"population", merged.Population,
				"live", len(regions))
		}
	}

	observability.Pipeline().OnMergeComplete(ctx, iterations, len(regions), time.Since(start), nil)
	logger.Info("merge complete", "fusions", iterations, "regions", len(regions))
	return iterations, nil
}

// pickSmallest returns the under-threshold region with the lowest
// population, ties broken by lexicographically smallest id. Returns nil
// when every region satisfies the threshold (the fixed point).
func pickSmallest(regions map[string]*region.Region, threshold int) *region.Region {
	var best *region.Region
	for _, r := range regions {
		if r.Population >= threshold {
			continue
		}
		if best == nil || r.Population < best.Population ||
			(r.Population == best.Population && r.ID < best.ID) {
			best = r
		}
	}
	return best
}

// pickPartner returns the merge partner for r: the live neighbor with the
// smallest centroid distance, ties by id. When no live neighbor exists the
// search widens to every other live region — the resulting fusion may be
// geometrically disjoint, which downstream consumers must tolerate. Returns
// nil only when r is the last live region.
func pickPartner(r *region.Region, regions map[string]*region.Region) *region.Region {
	best := nearest(r, regions, func(candidate *region.Region) bool {
		_, ok := r.Neighbors[candidate.ID]
		return ok
	})
	if best != nil {
		return best
	}
	return nearest(r, regions, func(*region.Region) bool { return true })
}

func nearest(r *region.Region, regions map[string]*region.Region, eligible func(*region.Region) bool) *region.Region {
	var best *region.Region
	var bestDist float64
	for _, candidate := range regions {
		if candidate.ID == r.ID || !eligible(candidate) {
			continue
		}
		d := r.CentroidDistance(candidate)
		if best == nil || d < bestDist || (d == bestDist && candidate.ID < best.ID) {
			best = candidate
			bestDist = d
		}
	}
	return best
}
