package geom

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFaceRequiresThreeVertices(t *testing.T) {
	for _, n := range []int{0, 1, 2} {
		idx := make([]int, n)
		_, err := NewFace(idx...)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidGeometry), "n=%d: %v", n, err)
	}

	f, err := NewFace(0, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, f.Indices)
}

func TestNewFaceCopiesIndices(t *testing.T) {
	idx := []int{0, 1, 2}
	f, err := NewFace(idx...)
	require.NoError(t, err)
	idx[0] = 9
	assert.Equal(t, 0, f.Indices[0])
}

func TestMustFacePanics(t *testing.T) {
	assert.Panics(t, func() { MustFace(0, 1) })
}

func TestNewBrepValidatesIndices(t *testing.T) {
	verts := []Vertex{V(0, 0, 0), V(1, 0, 0), V(0, 1, 0)}

	_, err := NewBrep(verts, []Edge{{0, 3}}, nil)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = NewBrep(verts, nil, []Face{{Indices: []int{0, 1, -1}}})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = NewBrep(verts, nil, []Face{{Indices: []int{0, 1}}})
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	b, err := NewBrep(verts, []Edge{{0, 1}}, []Face{MustFace(0, 1, 2)})
	require.NoError(t, err)
	assert.Len(t, b.Vertices, 3)
}

func TestNormal(t *testing.T) {
	b := Rect(2, 2)
	n := b.Normal(b.Faces[0])
	assert.InDelta(t, 0, n.X, 1e-12)
	assert.InDelta(t, 0, n.Y, 1e-12)
	assert.Greater(t, n.Z, 0.0)
}

func TestNormalDegenerate(t *testing.T) {
	collinear := &Brep{
		Vertices: []Vertex{V(0, 0, 0), V(1, 0, 0), V(2, 0, 0)},
		Faces:    []Face{MustFace(0, 1, 2)},
	}
	assert.Equal(t, 0.0, collinear.Normal(collinear.Faces[0]).Length())

	withNaN := &Brep{
		Vertices: []Vertex{V(0, 0, 0), V(math.NaN(), 0, 0), V(0, 1, 0)},
		Faces:    []Face{MustFace(0, 1, 2)},
	}
	n := withNaN.Normal(withNaN.Faces[0])
	assert.True(t, math.IsNaN(n.Length()))
}

func TestEdgeDirectionAndLength(t *testing.T) {
	b := &Brep{Vertices: []Vertex{V(1, 1, 1), V(4, 5, 1)}, Edges: []Edge{{0, 1}}}
	assert.Equal(t, V(3, 4, 0), b.Direction(b.Edges[0]))
	assert.InDelta(t, 5.0, b.Length(b.Edges[0]), 1e-12)
}

func TestVertexEquality(t *testing.T) {
	a := V(1, 2, 3)
	assert.True(t, a.Equals(V(1, 2, 3)))
	assert.False(t, a.Equals(V(1, 2, 3+1e-9)))
	assert.True(t, a.ApproxEquals(V(1, 2, 3+1e-9)))
	assert.True(t, a.ApproxEquals(V(1+5e-7, 2-5e-7, 3)))
	assert.False(t, a.ApproxEquals(V(1+2e-6, 2, 3)))
	assert.True(t, a.EqualsTol(V(1.05, 2, 3), 0.1))
	assert.False(t, V(math.NaN(), 0, 0).EqualsTol(V(math.NaN(), 0, 0), 1))
}

func TestEdgesOf(t *testing.T) {
	b := Box(1, 1, 1)
	assert.Len(t, b.Edges, 12)

	r := Rect(1, 1)
	assert.Len(t, r.Edges, 4)
}

func TestShapesAreCentered(t *testing.T) {
	for name, b := range map[string]*Brep{
		"rect": Rect(4, 2),
		"box":  Box(4, 2, 6),
	} {
		c := b.Bounds().Center()
		assert.True(t, c.ApproxEquals(Vertex{}), "%s center %v", name, c)
	}
	assert.Equal(t, V(4, 2, 6), Box(4, 2, 6).Bounds().Size())
}

func TestPolygon(t *testing.T) {
	_, err := Polygon(V(0, 0, 0), V(1, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	pts := []Vertex{V(0, 0, 0), V(1, 0, 0), V(1, 1, 0), V(0, 1, 0)}
	b, err := Polygon(pts...)
	require.NoError(t, err)
	assert.Equal(t, pts, b.Vertices)
	assert.Len(t, b.Faces, 1)
	assert.Len(t, b.Edges, 4)
}

func TestClone(t *testing.T) {
	b := Box(1, 1, 1)
	c := b.Clone()
	c.Vertices[0] = V(9, 9, 9)
	c.Faces[0].Indices[0] = 7
	assert.NotEqual(t, b.Vertices[0], c.Vertices[0])
	assert.Equal(t, 0, b.Faces[0].Indices[0])
}

func TestBounds(t *testing.T) {
	bb := NewBounds()
	assert.True(t, bb.Empty())
	assert.Equal(t, Vertex{}, bb.Center())

	bb.Extend(V(-1, 0, 2))
	bb.Extend(V(3, 4, 2))
	assert.False(t, bb.Empty())
	assert.Equal(t, V(1, 2, 2), bb.Center())
	assert.Equal(t, V(4, 4, 0), bb.Size())

	moved := bb.Translate(V(1, 1, 1))
	assert.Equal(t, V(2, 3, 3), moved.Center())

	other := NewBounds()
	bb.Union(other)
	assert.Equal(t, V(1, 2, 2), bb.Center())
}

func TestConcat(t *testing.T) {
	a := Rect(1, 1)
	b := Rect(2, 2)
	c := Concat(a, nil, b)
	assert.Len(t, c.Vertices, 8)
	assert.Len(t, c.Faces, 2)
	assert.Len(t, c.Edges, 8)
	assert.Equal(t, []int{4, 5, 6, 7}, c.Faces[1].Indices)
	assert.Equal(t, Edge{Start: 4, End: 5}, c.Edges[4])
}
