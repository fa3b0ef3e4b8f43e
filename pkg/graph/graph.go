package graph

import (
	"slices"

	"github.com/samber/lo"
)

// Graph is the append-only provenance DAG. There is no deletion API; nodes
// stay even after the scene element holding them is consumed or removed.
type Graph struct {
	Nodes map[NodeID]*Node
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{Nodes: make(map[NodeID]*Node)}
}

// AddNode inserts n by ID, overwriting any node already stored there.
func (g *Graph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
}

// AddConnection appends c to the source node's connections. It is a no-op if
// source is not in the graph.
func (g *Graph) AddConnection(source NodeID, c Connection) {
	n, ok := g.Nodes[source]
	if !ok {
		return
	}
	n.Connections = append(n.Connections, c)
}

// Get returns the node with the given ID, or nil.
func (g *Graph) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// Connections returns a copy of the outgoing connections of id.
func (g *Graph) Connections(id NodeID) []Connection {
	n := g.Nodes[id]
	if n == nil {
		return nil
	}
	return slices.Clone(n.Connections)
}

// Source is an operand that fed a node, with the operation that consumed it.
type Source struct {
	ID   NodeID
	Type ConnectionType
}

// Sources returns the nodes with a connection targeting id, ordered by ID.
func (g *Graph) Sources(id NodeID) []Source {
	var out []Source
	for _, sid := range g.sortedIDs() {
		for _, c := range g.Nodes[sid].Connections {
			if c.TargetID == id {
				out = append(out, Source{ID: sid, Type: c.Type})
			}
		}
	}
	return out
}

// History returns every ancestor of id in breadth-first order, nearest first.
// id itself is not included.
func (g *Graph) History(id NodeID) []NodeID {
	parents := make(map[NodeID][]NodeID)
	for _, sid := range g.sortedIDs() {
		for _, c := range g.Nodes[sid].Connections {
			parents[c.TargetID] = append(parents[c.TargetID], sid)
		}
	}

	seen := map[NodeID]bool{id: true}
	var out []NodeID
	queue := []NodeID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, p := range parents[current] {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
			queue = append(queue, p)
		}
	}
	return out
}

func (g *Graph) sortedIDs() []NodeID {
	ids := lo.Keys(g.Nodes)
	slices.Sort(ids)
	return ids
}
