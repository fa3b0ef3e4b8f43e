// Package graph defines the provenance graph for facet scenes.
// The graph is an append-only DAG: every body a scene operation creates is
// a node, and every operand that fed it has a connection pointing at the
// result. Nodes are never removed.
package graph
