package geom

import (
	"fmt"
	"math"
)

// VertexIndex is a vertex arena with tolerance-based lookup. Vertices are
// bucketed on a grid of cell size Tolerance so a lookup only scans the 27
// cells around the query point; the match rule is still EqualsTol.
type VertexIndex struct {
	tol      float64
	vertices []Vertex
	cells    map[cellKey][]int
}

type cellKey struct{ x, y, z int64 }

// NewVertexIndex returns an empty index. A non-positive tolerance falls back
// to DefaultTolerance.
func NewVertexIndex(tol float64) *VertexIndex {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return &VertexIndex{tol: tol, cells: make(map[cellKey][]int)}
}

// Tolerance returns the match tolerance.
func (ix *VertexIndex) Tolerance() float64 {
	return ix.tol
}

// Len returns the number of vertices in the arena.
func (ix *VertexIndex) Len() int {
	return len(ix.vertices)
}

// Vertices returns the arena. The slice is shared with the index.
func (ix *VertexIndex) Vertices() []Vertex {
	return ix.vertices
}

// Append adds v unconditionally and returns its index.
func (ix *VertexIndex) Append(v Vertex) int {
	i := len(ix.vertices)
	ix.vertices = append(ix.vertices, v)
	if k, ok := ix.key(v); ok {
		ix.cells[k] = append(ix.cells[k], i)
	}
	return i
}

// Insert returns the index of an existing vertex within tolerance of v, or
// appends v.
func (ix *VertexIndex) Insert(v Vertex) int {
	if i, ok := ix.Find(v); ok {
		return i
	}
	return ix.Append(v)
}

// Find returns the lowest index whose vertex is within tolerance of v.
func (ix *VertexIndex) Find(v Vertex) (int, bool) {
	k, ok := ix.key(v)
	if !ok {
		return -1, false
	}
	best := -1
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, i := range ix.cells[cellKey{k.x + dx, k.y + dy, k.z + dz}] {
					if (best < 0 || i < best) && ix.vertices[i].EqualsTol(v, ix.tol) {
						best = i
					}
				}
			}
		}
	}
	return best, best >= 0
}

// Lookup is Find that reports a miss as ErrVertexNotFound.
func (ix *VertexIndex) Lookup(v Vertex) (int, error) {
	if i, ok := ix.Find(v); ok {
		return i, nil
	}
	return -1, fmt.Errorf("geom: no vertex within %g of %v: %w", ix.tol, v, ErrVertexNotFound)
}

// key returns the grid cell of v. Non-finite coordinates have no cell.
func (ix *VertexIndex) key(v Vertex) (cellKey, bool) {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return cellKey{}, false
		}
	}
	return cellKey{
		x: int64(math.Floor(v.X / ix.tol)),
		y: int64(math.Floor(v.Y / ix.tol)),
		z: int64(math.Floor(v.Z / ix.tol)),
	}, true
}
