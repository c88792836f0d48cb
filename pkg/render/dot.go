// Package render produces the visual artifacts of a pipeline run: the
// adjacency graph as Graphviz DOT (with SVG and PNG rendering) and the
// before/after comparison map as PNG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"
)

// GraphOptions configures adjacency graph rendering.
type GraphOptions struct {
	// Labels maps region ids to display names. Missing entries fall back
	// to the id.
	Labels map[string]string

	// Highlight marks the region ids drawn with an accent fill, typically
	// the multi-member merged regions.
	Highlight map[string]bool
}

// AdjacencyDOT converts a neighbor relation to Graphviz DOT format for an
// undirected node-link view. The relation is assumed symmetric; each edge
// is emitted once. The resulting DOT string can be rendered with
// [RenderSVG] or [RenderPNG].
func AdjacencyDOT(neighbors map[string][]string, opts GraphOptions) string {
	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  overlap=false;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, margin=\"0.15,0.08\"];\n")
	buf.WriteString("\n")

	for _, id := range slices.Sorted(maps.Keys(neighbors)) {
		attrs := []string{fmt.Sprintf("label=%q", nodeLabel(id, opts.Labels))}
		if opts.Highlight[id] {
			attrs = append(attrs, "fillcolor=lightgoldenrod")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, id := range slices.Sorted(maps.Keys(neighbors)) {
		for _, nid := range neighbors[id] {
			// Symmetric relation: keep the lexicographically ordered copy.
			if id < nid {
				fmt.Fprintf(&buf, "  %q -- %q;\n", id, nid)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeLabel(id string, labels map[string]string) string {
	if name, ok := labels[id]; ok && name != "" {
		return name
	}
	return id
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	return renderDOT(dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return renderDOT(dot, graphviz.PNG)
}

func renderDOT(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
