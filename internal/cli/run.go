package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/geobr-tools/munimerge/pkg/cache"
	"github.com/geobr-tools/munimerge/pkg/httputil"
	"github.com/geobr-tools/munimerge/pkg/ibge"
	"github.com/geobr-tools/munimerge/pkg/pipeline"
	"github.com/geobr-tools/munimerge/pkg/render"
)

// Output file names, matching what downstream map viewers expect.
const (
	fileOriginal = "municipios_original.geojson"
	fileMerged   = "municipios_merged.geojson"
	fileStats    = "estatisticas.json"
	fileMap      = "mapa_comparativo.png"
)

// Comparison map canvas.
const (
	mapWidth  = 1600
	mapHeight = 900
)

// responseTTL is how long cached IBGE responses stay fresh. Both datasets
// change at most yearly, so a month keeps repeat runs off the network
// without risking truly stale data.
const responseTTL = 30 * 24 * time.Hour

// newRunCmd creates the "run" command: one full pipeline execution with
// file outputs.
func newRunCmd() *cobra.Command {
	var (
		threshold int
		year      int
		outputDir string
		refresh   bool
		noCache   bool
		skipMap   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the merge pipeline and write GeoJSON outputs",
		Long: `Run downloads IBGE population estimates and municipal boundaries,
merges municipalities below the population threshold, and writes the
original and merged GeoJSON collections, run statistics, and a
comparison map to the output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			runner, closeCache, err := buildRunner(logger, noCache)
			if err != nil {
				return err
			}
			defer closeCache()

			spinner := newSpinner(ctx, "Running merge pipeline...")
			spinner.Start()
			tracker := newProgress(logger)

			result, err := runner.Execute(ctx, pipeline.Options{
				Threshold:      threshold,
				PopulationYear: year,
				Refresh:        refresh,
				Logger:         logger,
			})
			spinner.Stop()
			if err != nil {
				printError("Pipeline failed: %v", err)
				return err
			}
			tracker.done(fmt.Sprintf("Merged %d municipalities into %d regions",
				result.Stats.OriginalCount, result.Stats.MergedCount))

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			written, err := writeOutputs(outputDir, result, !skipMap)
			if err != nil {
				return err
			}

			printSuccess("Run %s complete", result.RunID)
			printStats(result.Stats.OriginalCount, result.Stats.MergedCount, result.Iterations, result.CacheHit)
			for _, path := range written {
				printFile(path)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&threshold, "threshold", "t", pipeline.DefaultThreshold, "population floor for merged regions")
	cmd.Flags().IntVarP(&year, "year", "y", pipeline.DefaultPopulationYear, "population estimate year")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "directory for output files")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even if a cached result exists")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result and response caching")
	cmd.Flags().BoolVar(&skipMap, "skip-map", false, "skip rendering the comparison map")
	return cmd
}

// buildRunner wires the production pipeline: an IBGE client with a
// file-backed response cache plus a file-backed result cache. The returned
// closer releases the result cache.
func buildRunner(logger *log.Logger, noCache bool) (*pipeline.Runner, func(), error) {
	if noCache {
		source := ibge.NewClient(nil, logger)
		return pipeline.NewRunner(source, nil, nil), func() {}, nil
	}

	httpCache, err := httputil.NewCache("", responseTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("open response cache: %w", err)
	}
	resultCache, err := cache.NewFileCache("")
	if err != nil {
		return nil, nil, fmt.Errorf("open result cache: %w", err)
	}

	source := ibge.NewClient(httpCache, logger)
	closer := func() {
		if err := resultCache.Close(); err != nil {
			logger.Warn("close result cache", "err", err)
		}
	}
	return pipeline.NewRunner(source, resultCache, nil), closer, nil
}

// writeOutputs writes the GeoJSON collections, statistics, and optionally
// the comparison map, returning the paths written.
func writeOutputs(dir string, result *pipeline.Result, withMap bool) ([]string, error) {
	var written []string

	write := func(name string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if err := write(fileOriginal, result.Original); err != nil {
		return nil, err
	}
	if err := write(fileMerged, result.Merged); err != nil {
		return nil, err
	}
	if err := write(fileStats, result.Stats); err != nil {
		return nil, err
	}

	if withMap {
		png, err := render.ComparisonMap(result.Original, result.Merged, mapWidth, mapHeight)
		if err != nil {
			return nil, fmt.Errorf("render comparison map: %w", err)
		}
		path := filepath.Join(dir, fileMap)
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", fileMap, err)
		}
		written = append(written, path)
	}
	return written, nil
}
