package graph

import (
	"fmt"
	"strconv"

	"github.com/chazu/facet/pkg/geom"
)

// NodeID identifies a graph node and the scene element that holds its body.
// IDs are allocated by an IDCounter and are never reused.
type NodeID int64

// IsZero reports whether the ID is unset.
func (id NodeID) IsZero() bool {
	return id == 0
}

func (id NodeID) String() string {
	return "#" + strconv.FormatInt(int64(id), 10)
}

// IDCounter hands out monotonically increasing node IDs starting at 1.
// The zero value is ready to use.
type IDCounter struct {
	last NodeID
}

// NewIDCounter returns a counter whose next ID is last+1.
func NewIDCounter(last NodeID) *IDCounter {
	return &IDCounter{last: last}
}

// Next allocates a new ID.
func (c *IDCounter) Next() NodeID {
	c.last++
	return c.last
}

// Peek returns the most recently allocated ID (zero if none).
func (c *IDCounter) Peek() NodeID {
	return c.last
}

// ConnectionType names the scene operation that produced a connection.
type ConnectionType int

const (
	ConnUnion        ConnectionType = iota // boolean union
	ConnDifference                         // boolean difference
	ConnIntersection                       // boolean intersection
	ConnAssembly                           // grouping without fusion
	ConnUngroup                            // decomposition of a compound
)

func (t ConnectionType) String() string {
	switch t {
	case ConnUnion:
		return "union"
	case ConnDifference:
		return "difference"
	case ConnIntersection:
		return "intersection"
	case ConnAssembly:
		return "assembly"
	case ConnUngroup:
		return "ungroup"
	default:
		return fmt.Sprintf("ConnectionType(%d)", int(t))
	}
}

// Connection is an outgoing edge from an operand node to the node its body
// contributed to.
type Connection struct {
	TargetID NodeID         `json:"target_id"`
	Type     ConnectionType `json:"type"`
}

// Node is one body in the provenance history.
type Node struct {
	ID          NodeID       `json:"id"`
	Body        geom.Body    `json:"-"`
	Connections []Connection `json:"connections,omitempty"`
}
