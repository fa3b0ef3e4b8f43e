package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
)

// Compile-time interface check.
var _ geom.Unifier = Unifier{}

// Unifier fuses compound children through the kernel held by Handle. It is
// the geom.Unifier used by the scene layer.
type Unifier struct {
	Handle *Handle
}

// Unify places each child at its placement, folds the shapes with Union in
// order and returns the result expressed relative to origin. Nested
// compounds are unified first. A kernel panic is returned as an error
// wrapping geom.ErrKernelOperationFailed.
func (u Unifier) Unify(ctx context.Context, children []geom.Body, placements []mgl64.Vec3, origin mgl64.Vec3) (b *geom.Brep, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("kernel: unify: panic: %w: %v", geom.ErrKernelOperationFailed, r)
		}
	}()

	if u.Handle == nil {
		return nil, errors.New("kernel: unify: no handle")
	}
	k, err := u.Handle.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	var acc Shape
	for i, child := range children {
		b, err := geom.Resolve(ctx, child, u)
		if err != nil {
			return nil, fmt.Errorf("kernel: unify child %d: %w", i, err)
		}
		var at mgl64.Vec3
		if i < len(placements) {
			at = placements[i]
		}
		s, err := k.ShapeFromBrep(ctx, b, at)
		if err != nil {
			return nil, fmt.Errorf("kernel: unify child %d: %w", i, err)
		}
		if acc == nil {
			acc = s
			continue
		}
		if acc, err = k.Union(ctx, acc, s); err != nil {
			return nil, fmt.Errorf("kernel: unify child %d: %w", i, err)
		}
	}
	if acc == nil {
		return &geom.Brep{}, nil
	}
	fused, err := k.ShapeToBrep(ctx, acc)
	if err != nil {
		return nil, err
	}
	// ShapeToBrep centers on the shape's bounding-box center.
	return offset(fused, geom.FromVec(Center(acc).Sub(origin))), nil
}

func offset(b *geom.Brep, d geom.Vertex) *geom.Brep {
	if d == (geom.Vertex{}) {
		return b
	}
	out := b.Clone()
	for i, v := range out.Vertices {
		out.Vertices[i] = v.Add(d)
	}
	return out
}
