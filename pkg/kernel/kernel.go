// Package kernel defines the solid-modeling kernel service boundary.
// The scene layer only ever holds opaque Shape handles and passes them back
// into a Kernel; implementations (sdfx) own the actual CSG math. A Handle
// wraps kernel construction in an explicit initialization state machine so
// the service can be injected and awaited instead of living in a global.
package kernel

import (
	"context"
	"errors"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
)

// ErrEmptyShape is returned when a kernel operation produces no geometry,
// such as the intersection of disjoint operands.
var ErrEmptyShape = errors.New("kernel: empty shape")

// Shape is an opaque handle to a kernel solid, in world coordinates.
// Implementations wrap their internal representation.
type Shape interface {
	// BoundingBox returns the axis-aligned bounding box of the geometry
	// itself. Callers use its center as the shape's position.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the solid-modeling service. Every call may block and takes a
// context; implementations are not required to honor cancellation mid-call.
type Kernel interface {
	// Conversion
	ShapeFromBrep(ctx context.Context, b *geom.Brep, at mgl64.Vec3) (Shape, error)
	ShapeToBrep(ctx context.Context, s Shape) (*geom.Brep, error) // centered on the shape's bbox center

	// Boolean operations
	Union(ctx context.Context, a, b Shape) (Shape, error)
	Difference(ctx context.Context, a, b Shape) (Shape, error)
	Intersection(ctx context.Context, a, b Shape) (Shape, error)

	// Mesh output
	ToMesh(ctx context.Context, s Shape) (*Mesh, error)
}

// Bounds returns the shape's bounding box as geom.Bounds.
func Bounds(s Shape) geom.Bounds {
	return geom.BoundsOf(s.BoundingBox())
}

// Center returns the world-space center of the shape's bounding box.
func Center(s Shape) mgl64.Vec3 {
	return Bounds(s).Center().Vec()
}
