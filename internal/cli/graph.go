package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/geobr-tools/munimerge/pkg/pipeline"
	"github.com/geobr-tools/munimerge/pkg/render"
)

// newGraphCmd creates the "graph" command: the merged adjacency graph as
// DOT, SVG, or PNG.
func newGraphCmd() *cobra.Command {
	var (
		threshold int
		year      int
		format    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the merged region adjacency graph",
		Long: `Graph runs the pipeline (or reuses a cached result) and renders the
neighbor relation of the merged regions as a node-link diagram. Regions
that absorbed more than one municipality are highlighted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			runner, closeCache, err := buildRunner(logger, false)
			if err != nil {
				return err
			}
			defer closeCache()

			spinner := newSpinner(ctx, "Preparing region graph...")
			spinner.Start()
			result, err := runner.Execute(ctx, pipeline.Options{
				Threshold:      threshold,
				PopulationYear: year,
				Logger:         logger,
			})
			spinner.Stop()
			if err != nil {
				printError("Pipeline failed: %v", err)
				return err
			}

			dot := render.AdjacencyDOT(result.Adjacency, graphOptions(result.Merged))

			var data []byte
			switch strings.ToLower(format) {
			case "dot":
				data = []byte(dot)
			case "svg":
				data, err = render.RenderSVG(dot)
			case "png":
				data, err = render.RenderPNG(dot)
			default:
				return fmt.Errorf("unknown format %q (want dot, svg, or png)", format)
			}
			if err != nil {
				return fmt.Errorf("render graph: %w", err)
			}

			if output == "" {
				output = "region_graph." + strings.ToLower(format)
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}

			printSuccess("Rendered graph with %d regions", len(result.Adjacency))
			printFile(output)
			return nil
		},
	}

	cmd.Flags().IntVarP(&threshold, "threshold", "t", pipeline.DefaultThreshold, "population floor for merged regions")
	cmd.Flags().IntVarP(&year, "year", "y", pipeline.DefaultPopulationYear, "population estimate year")
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "output format: dot, svg, or png")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default region_graph.<format>)")
	return cmd
}

// graphOptions labels nodes with representative names and highlights the
// regions that absorbed more than one municipality.
func graphOptions(merged *geojson.FeatureCollection) render.GraphOptions {
	opts := render.GraphOptions{
		Labels:    make(map[string]string, len(merged.Features)),
		Highlight: make(map[string]bool),
	}
	for _, f := range merged.Features {
		id := f.Properties.MustString("region_id", "")
		if id == "" {
			continue
		}
		opts.Labels[id] = f.Properties.MustString("representative_name", id)
		if count, ok := f.Properties["member_count"].(float64); ok && count > 1 {
			opts.Highlight[id] = true
		}
		if count, ok := f.Properties["member_count"].(int); ok && count > 1 {
			opts.Highlight[id] = true
		}
	}
	return opts
}
