package graph

import "fmt"

// ValidationSeverity indicates whether a finding is a structural error or
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // broken invariant
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	NodeID   NodeID             // which node has the problem (zero if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID, e.Message)
}

// Validate runs the structural checks on the provenance graph and returns
// every finding. An empty slice means the graph is a well-formed DAG. It
// never mutates the graph.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(g)...)
	errs = append(errs, validateReferences(g)...)
	errs = append(errs, validateDirection(g)...)
	errs = append(errs, validateBodies(g)...)
	errs = append(errs, validateGeometry(g)...)
	return errs
}

// validateDAG checks for cycles using DFS with 3-color marking.
// White (0) = unvisited, gray (1) = in current DFS path, black (2) = fully explored.
func validateDAG(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node, ok := g.Nodes[id]
		if !ok {
			// Dangling target; reported by validateReferences.
			color[id] = black
			return false
		}
		for _, c := range node.Connections {
			if visit(c.TargetID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range g.sortedIDs() {
		if color[id] == white && visit(id) {
			break
		}
	}
	return errs
}

// validateReferences checks that every connection targets an existing node.
func validateReferences(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.sortedIDs() {
		for _, c := range g.Nodes[id].Connections {
			if _, ok := g.Nodes[c.TargetID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("%s connection target %s does not exist", c.Type, c.TargetID),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateDirection checks that results are newer than their operands. IDs
// are monotonic, so an edge pointing at an older node means it was recorded
// backwards.
func validateDirection(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.sortedIDs() {
		for _, c := range g.Nodes[id].Connections {
			if c.TargetID <= id {
				errs = append(errs, ValidationError{
					NodeID:   id,
					Message:  fmt.Sprintf("%s connection to %s runs from result to operand", c.Type, c.TargetID),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateBodies warns about nodes recorded without geometry.
func validateBodies(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, id := range g.sortedIDs() {
		if g.Nodes[id].Body == nil {
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  "node has no body",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
