// Package kerneltest provides a deterministic in-memory kernel for tests.
// Shapes are axis-aligned boxes: conversions and booleans operate on world
// bounding boxes only, which is enough to exercise orchestration without a
// real CSG backend.
package kerneltest

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
)

// Compile-time interface check.
var _ kernel.Kernel = (*Kernel)(nil)

// Op names used for call counting and failure injection.
const (
	OpShapeFromBrep = "ShapeFromBrep"
	OpShapeToBrep   = "ShapeToBrep"
	OpUnion         = "Union"
	OpDifference    = "Difference"
	OpIntersection  = "Intersection"
	OpToMesh        = "ToMesh"
)

// Box is the shape type. Ops records the boolean operations that produced it.
type Box struct {
	Bounds geom.Bounds
	Ops    []string
}

// BoundingBox returns the axis-aligned bounding box.
func (b *Box) BoundingBox() (min, max [3]float64) {
	return [3]float64{b.Bounds.Min.X, b.Bounds.Min.Y, b.Bounds.Min.Z},
		[3]float64{b.Bounds.Max.X, b.Bounds.Max.Y, b.Bounds.Max.Z}
}

// Kernel is a box-arithmetic kernel with call counting and failure
// injection. The zero value is ready to use.
type Kernel struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
	panic map[string]any
}

// New returns an empty Kernel.
func New() *Kernel {
	return &Kernel{}
}

// Handle returns a ready handle around k.
func (k *Kernel) Handle() *kernel.Handle {
	return kernel.ReadyHandle(k)
}

// FailOn makes every later call to op return err. A nil err clears it.
func (k *Kernel) FailOn(op string, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.fail == nil {
		k.fail = make(map[string]error)
	}
	if err == nil {
		delete(k.fail, op)
		return
	}
	k.fail[op] = err
}

// PanicOn makes every later call to op panic with v.
func (k *Kernel) PanicOn(op string, v any) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.panic == nil {
		k.panic = make(map[string]any)
	}
	k.panic[op] = v
}

// Calls returns how many times op has been called.
func (k *Kernel) Calls(op string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[op]
}

func (k *Kernel) enter(op string) error {
	k.mu.Lock()
	if k.calls == nil {
		k.calls = make(map[string]int)
	}
	k.calls[op]++
	p, shouldPanic := k.panic[op]
	err := k.fail[op]
	k.mu.Unlock()
	if shouldPanic {
		panic(p)
	}
	return err
}

// ShapeFromBrep returns the brep's bounds shifted to at.
func (k *Kernel) ShapeFromBrep(ctx context.Context, b *geom.Brep, at mgl64.Vec3) (kernel.Shape, error) {
	if err := k.enter(OpShapeFromBrep); err != nil {
		return nil, err
	}
	if b.IsEmpty() {
		return nil, fmt.Errorf("kerneltest: brep has no vertices: %w", kernel.ErrEmptyShape)
	}
	return &Box{Bounds: b.Bounds().Translate(geom.FromVec(at))}, nil
}

// ShapeToBrep returns a box (or a rectangle for flat shapes) of the shape's
// size centered on the origin.
func (k *Kernel) ShapeToBrep(ctx context.Context, s kernel.Shape) (*geom.Brep, error) {
	if err := k.enter(OpShapeToBrep); err != nil {
		return nil, err
	}
	size := kernel.Bounds(s).Size()
	if size.Z == 0 {
		return geom.Rect(size.X, size.Y), nil
	}
	return geom.Box(size.X, size.Y, size.Z), nil
}

// Union returns the bounding box of both operands.
func (k *Kernel) Union(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	if err := k.enter(OpUnion); err != nil {
		return nil, err
	}
	bb := kernel.Bounds(a)
	bb.Union(kernel.Bounds(b))
	return &Box{Bounds: bb, Ops: ops(a, OpUnion)}, nil
}

// Difference returns a unchanged, recording the operation.
func (k *Kernel) Difference(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	if err := k.enter(OpDifference); err != nil {
		return nil, err
	}
	return &Box{Bounds: kernel.Bounds(a), Ops: ops(a, OpDifference)}, nil
}

// Intersection returns the overlap of the operands, or ErrEmptyShape.
func (k *Kernel) Intersection(ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
	if err := k.enter(OpIntersection); err != nil {
		return nil, err
	}
	x, y := kernel.Bounds(a), kernel.Bounds(b)
	bb := geom.Bounds{
		Min: geom.V(math.Max(x.Min.X, y.Min.X), math.Max(x.Min.Y, y.Min.Y), math.Max(x.Min.Z, y.Min.Z)),
		Max: geom.V(math.Min(x.Max.X, y.Max.X), math.Min(x.Max.Y, y.Max.Y), math.Min(x.Max.Z, y.Max.Z)),
	}
	if bb.Empty() {
		return nil, fmt.Errorf("kerneltest: disjoint operands: %w", kernel.ErrEmptyShape)
	}
	return &Box{Bounds: bb, Ops: ops(a, OpIntersection)}, nil
}

// ToMesh returns the eight corners of the shape's bounds as a point mesh.
func (k *Kernel) ToMesh(ctx context.Context, s kernel.Shape) (*kernel.Mesh, error) {
	if err := k.enter(OpToMesh); err != nil {
		return nil, err
	}
	bb := kernel.Bounds(s)
	m := &kernel.Mesh{}
	for i := 0; i < 8; i++ {
		x, y, z := bb.Min.X, bb.Min.Y, bb.Min.Z
		if i&1 != 0 {
			x = bb.Max.X
		}
		if i&2 != 0 {
			y = bb.Max.Y
		}
		if i&4 != 0 {
			z = bb.Max.Z
		}
		m.Vertices = append(m.Vertices, float32(x), float32(y), float32(z))
		m.Normals = append(m.Normals, 0, 0, 1)
	}
	return m, nil
}

func ops(s kernel.Shape, op string) []string {
	var prev []string
	if b, ok := s.(*Box); ok {
		prev = b.Ops
	}
	return append(append([]string(nil), prev...), op)
}
