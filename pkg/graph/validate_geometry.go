package graph

import (
	"fmt"

	"github.com/chazu/facet/pkg/geom"
)

// ---------------------------------------------------------------------------
// Geometric validation of recorded bodies
// ---------------------------------------------------------------------------

// validateGeometry runs the per-body checks. Broken indices are errors;
// degenerate but usable geometry is a warning.
func validateGeometry(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.sortedIDs() {
		n := g.Nodes[id]
		if n.Body == nil {
			continue
		}
		errs = append(errs, validateBody(id, n.Body, "")...)
	}
	errs = append(errs, validateDuplicateConnections(g)...)
	return errs
}

// validateBody checks one body; path locates a compound child in messages.
func validateBody(id NodeID, b geom.Body, path string) []ValidationError {
	switch b := b.(type) {
	case *geom.Brep:
		return validateBrep(id, b, path)
	case *geom.Compound:
		var errs []ValidationError
		for i, child := range b.Children() {
			errs = append(errs, validateBody(id, child, fmt.Sprintf("%schild %d: ", path, i))...)
		}
		return errs
	}
	return nil
}

func validateBrep(id NodeID, b *geom.Brep, path string) []ValidationError {
	var errs []ValidationError
	add := func(sev ValidationSeverity, format string, args ...any) {
		errs = append(errs, ValidationError{
			NodeID:   id,
			Message:  path + fmt.Sprintf(format, args...),
			Severity: sev,
		})
	}

	if b.IsEmpty() {
		add(SeverityWarning, "body has no vertices")
		return errs
	}

	for fi, f := range b.Faces {
		distinct := make(map[int]bool, len(f.Indices))
		for _, idx := range f.Indices {
			if idx < 0 || idx >= len(b.Vertices) {
				add(SeverityError, "face %d references vertex %d of %d", fi, idx, len(b.Vertices))
				continue
			}
			distinct[idx] = true
		}
		if len(distinct) < 3 {
			add(SeverityWarning, "face %d has %d distinct vertices, need 3", fi, len(distinct))
		}
	}

	// A sheet is flat along one axis; anything thinner has no area.
	size := b.Bounds().Size()
	extent := 0
	for _, d := range []float64{size.X, size.Y, size.Z} {
		if d > 0 {
			extent++
		}
	}
	if extent < 2 {
		add(SeverityError, "body extent is %.4g x %.4g x %.4g, must span at least two axes", size.X, size.Y, size.Z)
	}
	return errs
}

// validateDuplicateConnections flags the same operand feeding the same
// result twice.
func validateDuplicateConnections(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.sortedIDs() {
		seen := make(map[NodeID]bool)
		for _, c := range g.Nodes[id].Connections {
			if seen[c.TargetID] {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("duplicate connection to %s", c.TargetID),
					Severity: SeverityWarning,
				})
			}
			seen[c.TargetID] = true
		}
	}
	return errs
}
