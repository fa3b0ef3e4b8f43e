package geom

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Unifier fuses a list of bodies, each placed at the matching world
// position, into a single brep whose coordinates are relative to origin.
// kernel.Unifier is the production implementation.
type Unifier interface {
	Unify(ctx context.Context, children []Body, placements []mgl64.Vec3, origin mgl64.Vec3) (*Brep, error)
}

// Compound is a composite body. It has no geometry of its own: it keeps the
// operand bodies a boolean or grouping operation consumed, the world
// position each had at that moment, and a lazily computed merged result.
//
// Until a merged result exists the compound's local frame is centered on
// its origin, the world point the children are laid out around.
type Compound struct {
	children   []Body
	placements []mgl64.Vec3
	origin     mgl64.Vec3
	unified    *Brep
	degraded   bool
}

func (*Compound) isBody() {}

// NewCompound copies children and placements. Missing placements default to
// the origin; extras are dropped. The compound's origin is the center of the
// children's combined world bounds.
func NewCompound(children []Body, placements []mgl64.Vec3) *Compound {
	c := &Compound{
		children:   append([]Body(nil), children...),
		placements: make([]mgl64.Vec3, len(children)),
	}
	copy(c.placements, placements)
	bb := NewBounds()
	for i, child := range c.children {
		bb.Union(BodyBounds(child).Translate(FromVec(c.placements[i])))
	}
	c.origin = bb.Center().Vec()
	return c
}

// NewCompoundAt is NewCompound with an explicit origin.
func NewCompoundAt(children []Body, placements []mgl64.Vec3, origin mgl64.Vec3) *Compound {
	c := NewCompound(children, placements)
	c.origin = origin
	return c
}

// Origin returns the world point the children are laid out around.
func (c *Compound) Origin() mgl64.Vec3 {
	return c.origin
}

// Len returns the number of children.
func (c *Compound) Len() int {
	return len(c.children)
}

// Children returns a copy of the child list, in operand order.
func (c *Compound) Children() []Body {
	return append([]Body(nil), c.children...)
}

// Child returns the i-th child.
func (c *Compound) Child(i int) Body {
	return c.children[i]
}

// Placements returns a copy of the world position snapshot for each child.
func (c *Compound) Placements() []mgl64.Vec3 {
	return append([]mgl64.Vec3(nil), c.placements...)
}

// Contains reports whether b is one of the direct children, by reference.
func (c *Compound) Contains(b Body) bool {
	for _, child := range c.children {
		if child == b {
			return true
		}
	}
	return false
}

// Cached returns the unified brep if one has been computed or injected.
func (c *Compound) Cached() *Brep {
	return c.unified
}

// SetUnified injects an already computed result, bypassing the default
// union-of-children semantics.
func (c *Compound) SetUnified(b *Brep) {
	c.unified = b
}

// MarkDegraded flags a compound whose unified brep is a plain concatenation
// of its children rather than a kernel fusion.
func (c *Compound) MarkDegraded() {
	c.degraded = true
}

// Degraded reports whether MarkDegraded was called.
func (c *Compound) Degraded() bool {
	return c.degraded
}

// Unified returns the merged brep, computing it on first use:
//   - no children: an empty brep (cached)
//   - one child: that child, unchanged
//   - two or more: a sequential kernel fuse, cached on success
//
// When the kernel fails Unified returns the first child's brep together with
// an error wrapping ErrKernelOperationFailed. Failures are not cached.
func (c *Compound) Unified(ctx context.Context, u Unifier) (*Brep, error) {
	if c.unified != nil {
		return c.unified, nil
	}
	switch len(c.children) {
	case 0:
		c.unified = &Brep{}
		return c.unified, nil
	case 1:
		return Resolve(ctx, c.children[0], u)
	}
	if u == nil {
		return firstBrep(c), fmt.Errorf("geom: unify %d children: no kernel: %w", len(c.children), ErrKernelOperationFailed)
	}
	b, err := u.Unify(ctx, c.children, c.placements, c.origin)
	if err != nil {
		return firstBrep(c), fmt.Errorf("geom: unify %d children: %w: %w", len(c.children), ErrKernelOperationFailed, err)
	}
	c.unified = b
	return b, nil
}

// Resolve flattens a body to a single brep: a Brep is returned as is and a
// Compound is unified.
func Resolve(ctx context.Context, b Body, u Unifier) (*Brep, error) {
	switch v := b.(type) {
	case *Brep:
		return v, nil
	case *Compound:
		return v.Unified(ctx, u)
	case nil:
		return &Brep{}, nil
	default:
		panic(fmt.Sprintf("geom: unknown body type %T", b))
	}
}

// firstBrep walks down first children without touching the kernel.
func firstBrep(c *Compound) *Brep {
	for {
		if c.unified != nil {
			return c.unified
		}
		if len(c.children) == 0 {
			return &Brep{}
		}
		switch v := c.children[0].(type) {
		case *Brep:
			return v
		case *Compound:
			c = v
		default:
			return &Brep{}
		}
	}
}
