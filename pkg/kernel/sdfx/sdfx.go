// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
//
// Flat breps (every vertex at one z) become extruded polygon sheets so that
// 2-D sketches have volume for the boolean operators. Other breps are
// treated as closed triangle meshes and evaluated as a polyhedron SDF.
// Results come back through marching cubes, so every round-trip
// approximates the input to within one mesh cell.
package sdfx

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

const (
	// DefaultMeshCells controls marching cubes tessellation resolution.
	DefaultMeshCells = 100
	// DefaultSheetThickness is the extrusion depth given to flat breps.
	DefaultSheetThickness = 0.1
)

// sdfxShape wraps an sdf.SDF3 to implement kernel.Shape. The surface is
// meshed at most once and shared by BoundingBox, ShapeToBrep and ToMesh.
//
// sdfx boolean boxes are conservative (Difference3D keeps the minuend's),
// so for boolean results BoundingBox reports the bounds of the meshed
// surface instead.
type sdfxShape struct {
	s     sdf.SDF3
	cells int
	tight bool

	once sync.Once
	tris []*sdf.Triangle3
	bb   geom.Bounds
}

// BoundingBox returns the axis-aligned bounding box. An empty boolean
// result reports an inverted box.
func (s *sdfxShape) BoundingBox() (min, max [3]float64) {
	if !s.tight {
		bb := s.s.BoundingBox()
		return [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}, [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	}
	s.mesh()
	return [3]float64{s.bb.Min.X, s.bb.Min.Y, s.bb.Min.Z}, [3]float64{s.bb.Max.X, s.bb.Max.Y, s.bb.Max.Z}
}

// mesh runs marching cubes over the sdfx box and records the triangles and
// their bounds.
func (s *sdfxShape) mesh() []*sdf.Triangle3 {
	s.once.Do(func() {
		s.tris = render.ToTriangles(s.s, render.NewMarchingCubesUniform(s.cells))
		s.bb = geom.NewBounds()
		for _, tri := range s.tris {
			for _, v := range tri {
				s.bb.Extend(geom.V(v.X, v.Y, v.Z))
			}
		}
	})
	return s.tris
}

// clipped narrows an SDF's reported box without changing its field.
type clipped struct {
	sdf.SDF3
	bb sdf.Box3
}

func (c clipped) BoundingBox() sdf.Box3 {
	return c.bb
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct {
	meshCells int
	thickness float64
	tolerance float64
}

// Option configures an SdfxKernel.
type Option func(*SdfxKernel)

// WithMeshCells sets the marching cubes resolution along the longest axis.
func WithMeshCells(n int) Option {
	return func(k *SdfxKernel) {
		if n > 0 {
			k.meshCells = n
		}
	}
}

// WithSheetThickness sets the extrusion depth for flat breps.
func WithSheetThickness(t float64) Option {
	return func(k *SdfxKernel) {
		if t > 0 {
			k.thickness = t
		}
	}
}

// WithTolerance sets the weld tolerance used by ShapeToBrep.
func WithTolerance(tol float64) Option {
	return func(k *SdfxKernel) {
		if tol > 0 {
			k.tolerance = tol
		}
	}
}

// New returns a new SdfxKernel.
func New(opts ...Option) *SdfxKernel {
	k := &SdfxKernel{
		meshCells: DefaultMeshCells,
		thickness: DefaultSheetThickness,
		tolerance: geom.DefaultTolerance,
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Factory returns a kernel.Factory that builds an SdfxKernel.
func Factory(opts ...Option) kernel.Factory {
	return func(ctx context.Context) (kernel.Kernel, error) {
		return New(opts...), nil
	}
}

// unwrap extracts the underlying sdf.SDF3 from a kernel.Shape.
func unwrap(s kernel.Shape) (sdf.SDF3, error) {
	w, ok := s.(*sdfxShape)
	if !ok || w == nil {
		return nil, fmt.Errorf("sdfx: foreign shape %T", s)
	}
	return w.s, nil
}

// wrap creates a kernel.Shape from an sdf.SDF3 with an exact box.
func (k *SdfxKernel) wrap(s sdf.SDF3) kernel.Shape {
	return &sdfxShape{s: s, cells: k.meshCells}
}

// wrapResult creates a kernel.Shape for a boolean result.
func (k *SdfxKernel) wrapResult(s sdf.SDF3) kernel.Shape {
	return &sdfxShape{s: s, cells: k.meshCells, tight: true}
}

// ShapeFromBrep converts b and places it at the world position at.
func (k *SdfxKernel) ShapeFromBrep(ctx context.Context, b *geom.Brep, at mgl64.Vec3) (kernel.Shape, error) {
	if b.IsEmpty() || len(b.Faces) == 0 {
		return nil, fmt.Errorf("sdfx: brep has no faces: %w", kernel.ErrEmptyShape)
	}
	var (
		s   sdf.SDF3
		err error
	)
	if z, ok := k.planar(b); ok {
		s, err = k.sheet(b, z)
	} else {
		s, err = newPolyhedron(b)
	}
	if err != nil {
		return nil, err
	}
	m := sdf.Translate3d(v3.Vec{X: at[0], Y: at[1], Z: at[2]})
	return k.wrap(sdf.Transform3D(s, m)), nil
}

// planar reports whether every vertex lies at one z, and which.
func (k *SdfxKernel) planar(b *geom.Brep) (float64, bool) {
	z := b.Vertices[0].Z
	for _, v := range b.Vertices[1:] {
		if math.Abs(v.Z-z) > k.tolerance {
			return 0, false
		}
	}
	return z, true
}

// sheet extrudes the union of b's face polygons symmetrically about z.
func (k *SdfxKernel) sheet(b *geom.Brep, z float64) (sdf.SDF3, error) {
	polys := make([]sdf.SDF2, 0, len(b.Faces))
	for i, f := range b.Faces {
		pts := make([]v2.Vec, len(f.Indices))
		for j, idx := range f.Indices {
			v := b.Vertices[idx]
			pts[j] = v2.Vec{X: v.X, Y: v.Y}
		}
		p, err := sdf.Polygon2D(pts)
		if err != nil {
			return nil, fmt.Errorf("sdfx: face %d: %w", i, err)
		}
		polys = append(polys, p)
	}
	s := sdf.Extrude3D(sdf.Union2D(polys...), k.thickness)
	if z == 0 {
		return s, nil
	}
	return sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: z})), nil
}

// Union returns the union of two shapes.
func (k *SdfxKernel) Union(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	return k.wrapResult(sdf.Union3D(sa, sb)), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	return k.wrapResult(sdf.Difference3D(sa, sb)), nil
}

// Intersection returns the intersection of two shapes, meshed over the
// overlap of the operand boxes. Disjoint boxes are reported as
// ErrEmptyShape up front.
func (k *SdfxKernel) Intersection(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	sa, sb, err := unwrap2(a, b)
	if err != nil {
		return nil, err
	}
	x, y := sa.BoundingBox(), sb.BoundingBox()
	overlap := sdf.Box3{Min: x.Min.Max(y.Min), Max: x.Max.Min(y.Max)}
	if overlap.Min.X > overlap.Max.X || overlap.Min.Y > overlap.Max.Y || overlap.Min.Z > overlap.Max.Z {
		return nil, fmt.Errorf("sdfx: intersection of disjoint shapes: %w", kernel.ErrEmptyShape)
	}
	return k.wrapResult(clipped{SDF3: sdf.Intersect3D(sa, sb), bb: overlap}), nil
}

func unwrap2(a, b kernel.Shape) (sdf.SDF3, sdf.SDF3, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, nil, err
	}
	return sa, sb, nil
}

// triangles returns the meshed surface of s, or ErrEmptyShape.
func (k *SdfxKernel) triangles(ctx context.Context, s kernel.Shape) ([]*sdf.Triangle3, error) {
	w, ok := s.(*sdfxShape)
	if !ok || w == nil {
		return nil, fmt.Errorf("foreign shape %T", s)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tris := w.mesh()
	if len(tris) == 0 {
		return nil, kernel.ErrEmptyShape
	}
	return tris, nil
}

// ShapeToBrep welds the meshed surface into an indexed brep, one face per
// triangle, centered on the shape's bounding-box center.
func (k *SdfxKernel) ShapeToBrep(ctx context.Context, s kernel.Shape) (*geom.Brep, error) {
	tris, err := k.triangles(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("sdfx: shape to brep: %w", err)
	}
	center := kernel.Bounds(s).Center()

	ix := geom.NewVertexIndex(k.tolerance)
	faces := make([]geom.Face, 0, len(tris))
	for _, tri := range tris {
		var idx [3]int
		for j := 0; j < 3; j++ {
			v := tri[j]
			idx[j] = ix.Insert(geom.V(v.X, v.Y, v.Z).Sub(center))
		}
		if idx[0] == idx[1] || idx[1] == idx[2] || idx[0] == idx[2] {
			continue
		}
		faces = append(faces, geom.Face{Indices: idx[:]})
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("sdfx: shape to brep: only degenerate triangles: %w", kernel.ErrEmptyShape)
	}
	return &geom.Brep{Vertices: ix.Vertices(), Edges: geom.EdgesOf(faces), Faces: faces}, nil
}

// ToMesh converts a shape to a triangle mesh in world coordinates.
func (k *SdfxKernel) ToMesh(ctx context.Context, s kernel.Shape) (*kernel.Mesh, error) {
	triangles, err := k.triangles(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("sdfx: to mesh: %w", err)
	}

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
