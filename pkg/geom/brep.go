package geom

import "fmt"

// Body is either a *Brep or a *Compound. The marker method keeps other
// implementations out of the package; switch on the concrete type.
type Body interface {
	isBody()
}

// Edge is an ordered pair of indices into the owning Brep's vertex arena.
type Edge struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Face is a planar polygon given as an ordered loop of vertex indices.
type Face struct {
	Indices []int `json:"indices"`
}

// NewFace builds a face from at least three vertex indices.
func NewFace(indices ...int) (Face, error) {
	if len(indices) < 3 {
		return Face{}, fmt.Errorf("geom: face needs at least 3 vertices, got %d: %w", len(indices), ErrInvalidGeometry)
	}
	return Face{Indices: append([]int(nil), indices...)}, nil
}

// MustFace is NewFace for literals known to be valid. It panics on error.
func MustFace(indices ...int) Face {
	f, err := NewFace(indices...)
	if err != nil {
		panic(err)
	}
	return f
}

// Brep is a body described by vertices, edges and faces in local coordinates.
type Brep struct {
	Vertices []Vertex `json:"vertices"`
	Edges    []Edge   `json:"edges"`
	Faces    []Face   `json:"faces"`
}

func (*Brep) isBody() {}

// NewBrep validates every edge and face index against the vertex arena.
// The slices are retained, not copied.
func NewBrep(vertices []Vertex, edges []Edge, faces []Face) (*Brep, error) {
	n := len(vertices)
	for i, e := range edges {
		if e.Start < 0 || e.Start >= n || e.End < 0 || e.End >= n {
			return nil, fmt.Errorf("geom: edge %d (%d->%d) out of range for %d vertices: %w", i, e.Start, e.End, n, ErrInvalidGeometry)
		}
	}
	for i, f := range faces {
		if len(f.Indices) < 3 {
			return nil, fmt.Errorf("geom: face %d has %d vertices: %w", i, len(f.Indices), ErrInvalidGeometry)
		}
		for _, idx := range f.Indices {
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("geom: face %d index %d out of range for %d vertices: %w", i, idx, n, ErrInvalidGeometry)
			}
		}
	}
	return &Brep{Vertices: vertices, Edges: edges, Faces: faces}, nil
}

// IsEmpty reports whether the brep has no vertices.
func (b *Brep) IsEmpty() bool {
	return b == nil || len(b.Vertices) == 0
}

// Direction returns end - start for the edge.
func (b *Brep) Direction(e Edge) Vertex {
	return b.Vertices[e.End].Sub(b.Vertices[e.Start])
}

// Length returns the length of the edge.
func (b *Brep) Length(e Edge) float64 {
	return b.Direction(e).Length()
}

// Normal returns (v1-v0)×(v2-v0), unnormalized. Collinear or duplicate
// vertices give a zero vector; NaN coordinates propagate.
func (b *Brep) Normal(f Face) Vertex {
	v0 := b.Vertices[f.Indices[0]]
	v1 := b.Vertices[f.Indices[1]]
	v2 := b.Vertices[f.Indices[2]]
	return v1.Sub(v0).Cross(v2.Sub(v0))
}

// FaceVertices resolves a face's index loop to vertex values.
func (b *Brep) FaceVertices(f Face) []Vertex {
	out := make([]Vertex, len(f.Indices))
	for i, idx := range f.Indices {
		out[i] = b.Vertices[idx]
	}
	return out
}

// Bounds returns the axis-aligned bounds of the vertex arena.
func (b *Brep) Bounds() Bounds {
	bb := NewBounds()
	if b == nil {
		return bb
	}
	for _, v := range b.Vertices {
		bb.Extend(v)
	}
	return bb
}

// Clone returns a deep copy.
func (b *Brep) Clone() *Brep {
	out := &Brep{
		Vertices: append([]Vertex(nil), b.Vertices...),
		Edges:    append([]Edge(nil), b.Edges...),
		Faces:    make([]Face, len(b.Faces)),
	}
	for i, f := range b.Faces {
		out.Faces[i] = Face{Indices: append([]int(nil), f.Indices...)}
	}
	return out
}

// EdgesOf derives the unique undirected boundary edges of a face list, in
// face order.
func EdgesOf(faces []Face) []Edge {
	type key struct{ lo, hi int }
	seen := make(map[key]bool)
	var edges []Edge
	for _, f := range faces {
		n := len(f.Indices)
		for i := 0; i < n; i++ {
			a, b := f.Indices[i], f.Indices[(i+1)%n]
			k := key{a, b}
			if b < a {
				k = key{b, a}
			}
			if seen[k] {
				continue
			}
			seen[k] = true
			edges = append(edges, Edge{Start: a, End: b})
		}
	}
	return edges
}
