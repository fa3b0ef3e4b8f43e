//go:build manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library (https://github.com/elalish/manifold). Manifold provides
// guaranteed-manifold mesh boolean operations, so results are exact meshes
// rather than resampled fields.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Shape = (*manifoldSolid)(nil)

// manifoldSolid wraps a C ManifoldManifold pointer and implements kernel.Shape.
type manifoldSolid struct {
	ptr *C.ManifoldManifold
}

// BoundingBox returns the axis-aligned bounding box of the solid.
func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	bbox := C.manifold_bounding_box(unsafe.Pointer(C.manifold_alloc_box()), s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

// newSolid wraps a C ManifoldManifold pointer with Go-side finalizer
// for automatic memory management.
func newSolid(ptr *C.ManifoldManifold) *manifoldSolid {
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, func(s *manifoldSolid) {
		if s.ptr != nil {
			C.manifold_delete_manifold(s.ptr)
			s.ptr = nil
		}
	})
	return s
}

// solidMem and meshMem allocate the memory Manifold constructs results in.
func solidMem() unsafe.Pointer { return unsafe.Pointer(C.manifold_alloc_manifold()) }
func meshMem() unsafe.Pointer  { return unsafe.Pointer(C.manifold_alloc_meshgl()) }

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct {
	settings
}

// New creates a new ManifoldKernel.
func New(opts ...Option) (kernel.Kernel, error) {
	return &ManifoldKernel{settings: newSettings(opts)}, nil
}

func unwrap(s kernel.Shape) (*manifoldSolid, error) {
	m, ok := s.(*manifoldSolid)
	if !ok || m == nil || m.ptr == nil {
		return nil, fmt.Errorf("manifold: foreign shape %T", s)
	}
	return m, nil
}

// ShapeFromBrep converts b and places it at the world position at. Flat
// breps become one prism per face, the thickness of a sheet.
func (k *ManifoldKernel) ShapeFromBrep(ctx context.Context, b *geom.Brep, at mgl64.Vec3) (kernel.Shape, error) {
	if b.IsEmpty() || len(b.Faces) == 0 {
		return nil, fmt.Errorf("manifold: brep has no faces: %w", kernel.ErrEmptyShape)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		s   *manifoldSolid
		err error
	)
	if k.planar(b) {
		s, err = k.sheet(b)
	} else {
		s, err = k.solid(b.Vertices, b.Faces)
	}
	if err != nil {
		return nil, err
	}
	ptr := C.manifold_translate(solidMem(), s.ptr, C.double(at[0]), C.double(at[1]), C.double(at[2]))
	return newSolid(ptr), nil
}

// planar reports whether every vertex lies at one z.
func (k *ManifoldKernel) planar(b *geom.Brep) bool {
	z := b.Vertices[0].Z
	for _, v := range b.Vertices[1:] {
		if math.Abs(v.Z-z) > k.tolerance {
			return false
		}
	}
	return true
}

// sheet unions a prism per face, centered on the faces' plane.
func (k *ManifoldKernel) sheet(b *geom.Brep) (*manifoldSolid, error) {
	var acc *manifoldSolid
	half := geom.V(0, 0, k.thickness/2)
	for i, f := range b.Faces {
		n := len(f.Indices)
		verts := make([]geom.Vertex, 0, 2*n)
		for _, idx := range f.Indices {
			verts = append(verts, b.Vertices[idx].Sub(half))
		}
		for _, idx := range f.Indices {
			verts = append(verts, b.Vertices[idx].Add(half))
		}

		bottom := make([]int, n)
		top := make([]int, n)
		for j := 0; j < n; j++ {
			bottom[j] = n - 1 - j
			top[j] = n + j
		}
		faces := []geom.Face{{Indices: bottom}, {Indices: top}}
		for j := 0; j < n; j++ {
			next := (j + 1) % n
			faces = append(faces, geom.Face{Indices: []int{j, next, n + next, n + j}})
		}

		// Faces wound clockwise in the xy-plane give an inside-out prism.
		if b.Normal(f).Z < 0 {
			for _, pf := range faces {
				reverse(pf.Indices)
			}
		}

		p, err := k.solid(verts, faces)
		if err != nil {
			return nil, fmt.Errorf("manifold: face %d: %w", i, err)
		}
		if acc == nil {
			acc = p
			continue
		}
		acc = newSolid(C.manifold_union(solidMem(), acc.ptr, p.ptr))
	}
	return acc, nil
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// solid builds a manifold from polygon faces, fan-triangulated.
func (k *ManifoldKernel) solid(verts []geom.Vertex, faces []geom.Face) (*manifoldSolid, error) {
	props := make([]float32, 0, len(verts)*3)
	for _, v := range verts {
		props = append(props, float32(v.X), float32(v.Y), float32(v.Z))
	}
	var tris []uint32
	for _, f := range faces {
		for i := 1; i+1 < len(f.Indices); i++ {
			tris = append(tris, uint32(f.Indices[0]), uint32(f.Indices[i]), uint32(f.Indices[i+1]))
		}
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("manifold: no triangles: %w", kernel.ErrEmptyShape)
	}

	mesh := C.manifold_meshgl(meshMem(),
		(*C.float)(unsafe.Pointer(&props[0])), C.size_t(len(verts)), C.size_t(3),
		(*C.uint32_t)(unsafe.Pointer(&tris[0])), C.size_t(len(tris)/3),
	)
	defer C.manifold_delete_meshgl(mesh)

	s := newSolid(C.manifold_of_meshgl(solidMem(), mesh))
	if status := C.manifold_status(s.ptr); status != C.MANIFOLD_NO_ERROR {
		return nil, fmt.Errorf("manifold: mesh is not a closed manifold (status %d)", int(status))
	}
	return s, nil
}

// Union returns the boolean union of two solids.
func (k *ManifoldKernel) Union(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	return k.boolean(ctx, a, b, func(alloc unsafe.Pointer, x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_union(alloc, x, y)
	})
}

// Difference returns the boolean difference (a minus b).
func (k *ManifoldKernel) Difference(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	return k.boolean(ctx, a, b, func(alloc unsafe.Pointer, x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_difference(alloc, x, y)
	})
}

// Intersection returns the boolean intersection of two solids. An empty
// result is ErrEmptyShape.
func (k *ManifoldKernel) Intersection(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	s, err := k.boolean(ctx, a, b, func(alloc unsafe.Pointer, x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_intersection(alloc, x, y)
	})
	if err != nil {
		return nil, err
	}
	if C.manifold_is_empty(s.(*manifoldSolid).ptr) != 0 {
		return nil, fmt.Errorf("manifold: intersection is empty: %w", kernel.ErrEmptyShape)
	}
	return s, nil
}

func (k *ManifoldKernel) boolean(ctx context.Context, a, b kernel.Shape,
	op func(alloc unsafe.Pointer, x, y *C.ManifoldManifold) *C.ManifoldManifold) (kernel.Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sa, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	return newSolid(op(solidMem(), sa.ptr, sb.ptr)), nil
}

// meshGL returns positions and triangle indices of s.
func meshGL(s *manifoldSolid) (verts []float32, numProp int, tris []uint32) {
	meshGL := C.manifold_get_meshgl(meshMem(), s.ptr)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return nil, 0, nil
	}

	// MeshGL stores vertex properties in a flat float array; the first 3 of
	// numProp properties are the position.
	numProp = int(C.manifold_meshgl_num_prop(meshGL))
	verts = make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties((*C.float)(unsafe.Pointer(&verts[0])), meshGL)

	tris = make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts((*C.uint32_t)(unsafe.Pointer(&tris[0])), meshGL)
	return verts, numProp, tris
}

// ShapeToBrep welds the solid's triangles into an indexed brep, one face per
// triangle, centered on the shape's bounding-box center.
func (k *ManifoldKernel) ShapeToBrep(ctx context.Context, s kernel.Shape) (*geom.Brep, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	props, numProp, tris := meshGL(ms)
	if len(tris) == 0 {
		return nil, fmt.Errorf("manifold: shape to brep: %w", kernel.ErrEmptyShape)
	}
	center := kernel.Bounds(s).Center()

	ix := geom.NewVertexIndex(k.tolerance)
	faces := make([]geom.Face, 0, len(tris)/3)
	for t := 0; t+2 < len(tris); t += 3 {
		var idx [3]int
		for j := 0; j < 3; j++ {
			base := int(tris[t+j]) * numProp
			v := geom.V(float64(props[base]), float64(props[base+1]), float64(props[base+2]))
			idx[j] = ix.Insert(v.Sub(center))
		}
		if idx[0] == idx[1] || idx[1] == idx[2] || idx[0] == idx[2] {
			continue
		}
		faces = append(faces, geom.Face{Indices: idx[:]})
	}
	return &geom.Brep{Vertices: ix.Vertices(), Edges: geom.EdgesOf(faces), Faces: faces}, nil
}

// ToMesh extracts a triangle mesh from the solid using Manifold's MeshGL
// format. Positions are separated from any extra vertex properties into the
// kernel.Mesh flat-array layout; normals are always recomputed.
func (k *ManifoldKernel) ToMesh(ctx context.Context, s kernel.Shape) (*kernel.Mesh, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	props, numProp, tris := meshGL(ms)
	if len(tris) == 0 {
		return nil, fmt.Errorf("manifold: to mesh: %w", kernel.ErrEmptyShape)
	}

	numVert := len(props) / numProp
	vertices := make([]float32, numVert*3)
	for i := 0; i < numVert; i++ {
		copy(vertices[i*3:i*3+3], props[i*numProp:i*numProp+3])
	}

	mesh := &kernel.Mesh{
		Vertices: vertices,
		Normals:  vertexNormals(vertices, tris),
		Indices:  tris,
	}
	if mesh.VertexCount() != numVert {
		return nil, fmt.Errorf("manifold: vertex count mismatch: got %d, expected %d",
			mesh.VertexCount(), numVert)
	}
	return mesh, nil
}

// vertexNormals averages the face normals of all triangles incident on each
// vertex.
func vertexNormals(vertices []float32, indices []uint32) []float32 {
	normals := make([]float32, len(vertices))
	at := func(i uint32) mgl64.Vec3 {
		return mgl64.Vec3{float64(vertices[i*3]), float64(vertices[i*3+1]), float64(vertices[i*3+2])}
	}

	for t := 0; t+2 < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		a := at(i0)
		n := at(i1).Sub(a).Cross(at(i2).Sub(a))
		for _, idx := range []uint32{i0, i1, i2} {
			normals[idx*3+0] += float32(n[0])
			normals[idx*3+1] += float32(n[1])
			normals[idx*3+2] += float32(n[2])
		}
	}

	for i := 0; i+2 < len(normals); i += 3 {
		n := mgl64.Vec3{float64(normals[i]), float64(normals[i+1]), float64(normals[i+2])}
		if l := n.Len(); l > 1e-12 {
			n = n.Mul(1 / l)
			normals[i], normals[i+1], normals[i+2] = float32(n[0]), float32(n[1]), float32(n[2])
		}
	}
	return normals
}
