package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
	"github.com/chazu/facet/pkg/scene"
)

// writeScene prints one row per live element.
func writeScene(w io.Writer, elems []scene.Element) {
	fmt.Fprintf(w, "elements: %d\n", len(elems))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, el := range elems {
		bb := el.WorldBounds()
		fmt.Fprintf(tw, "  %s\t%s\tat %s\tbounds %s..%s\n",
			el.NodeID, kind(el.Body), vec(geom.FromVec(el.Position)), vec(bb.Min), vec(bb.Max))
	}
	tw.Flush()
}

func kind(b geom.Body) string {
	switch b := b.(type) {
	case *geom.Brep:
		return fmt.Sprintf("brep(%d faces)", len(b.Faces))
	case *geom.Compound:
		if b.Degraded() {
			return fmt.Sprintf("compound(%d, unfused)", b.Len())
		}
		return fmt.Sprintf("compound(%d)", b.Len())
	}
	return "empty"
}

func vec(v geom.Vertex) string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// writeProvenance prints, for each live element with history, the operands
// that produced it and how far back its history goes.
func writeProvenance(w io.Writer, g *graph.Graph, elems []scene.Element) {
	fmt.Fprintf(w, "provenance: %d nodes\n", g.NodeCount())
	for _, el := range elems {
		sources := g.Sources(el.NodeID)
		if len(sources) == 0 {
			continue
		}
		byType := lo.GroupBy(sources, func(s graph.Source) graph.ConnectionType { return s.Type })
		types := lo.Uniq(lo.Map(sources, func(s graph.Source, _ int) graph.ConnectionType { return s.Type }))
		parts := lo.Map(types, func(t graph.ConnectionType, _ int) string {
			ids := lo.Map(byType[t], func(s graph.Source, _ int) string { return s.ID.String() })
			return fmt.Sprintf("%s(%s)", t, strings.Join(ids, ", "))
		})
		fmt.Fprintf(w, "  %s <- %s; %d ancestors\n",
			el.NodeID, strings.Join(parts, " "), len(g.History(el.NodeID)))
	}
}
