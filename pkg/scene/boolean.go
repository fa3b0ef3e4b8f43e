package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
	"github.com/chazu/facet/pkg/kernel"
)

// Result is the outcome of a boolean orchestration. ID is zero when the
// call was a no-op or failed, in which case Elements is the input slice.
type Result struct {
	Elements []Element
	ID       graph.NodeID
	Degraded bool // union fell back to concatenation
}

// operation binds a connection type to the kernel call that performs it.
type operation struct {
	conn  graph.ConnectionType
	apply func(k kernel.Kernel, ctx context.Context, a, b kernel.Shape) (kernel.Shape, error)
}

var (
	opUnion = operation{graph.ConnUnion, func(k kernel.Kernel, ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
		return k.Union(ctx, a, b)
	}}
	opDifference = operation{graph.ConnDifference, func(k kernel.Kernel, ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
		return k.Difference(ctx, a, b)
	}}
	opIntersection = operation{graph.ConnIntersection, func(k kernel.Kernel, ctx context.Context, a, b kernel.Shape) (kernel.Shape, error) {
		return k.Intersection(ctx, a, b)
	}}
)

// UnionSelectedElements fuses the selected elements. If the kernel fails
// and the fallback is enabled, the result is a degraded compound whose
// geometry is the operands concatenated without fusion.
func (e *Editor) UnionSelectedElements(ctx context.Context, elems []Element, sel []graph.NodeID) (Result, error) {
	return e.combine(ctx, elems, sel, opUnion)
}

// DifferenceSelectedElements subtracts every later selected element from
// the first selected one.
func (e *Editor) DifferenceSelectedElements(ctx context.Context, elems []Element, sel []graph.NodeID) (Result, error) {
	return e.combine(ctx, elems, sel, opDifference)
}

// IntersectionSelectedElements keeps the volume common to all selected
// elements.
func (e *Editor) IntersectionSelectedElements(ctx context.Context, elems []Element, sel []graph.NodeID) (Result, error) {
	return e.combine(ctx, elems, sel, opIntersection)
}

// combine runs the shared pipeline. Nothing in the scene changes until the
// kernel work has succeeded (or the union fallback has produced geometry).
func (e *Editor) combine(ctx context.Context, elems []Element, sel []graph.NodeID, op operation) (Result, error) {
	res := Result{Elements: elems}
	operands := resolveSelection(elems, sel)
	if len(operands) < 2 {
		return res, nil
	}

	resolved := e.resolveOperands(ctx, operands)

	local, center, err := e.runKernel(ctx, op, operands, resolved)
	if err != nil {
		if op.conn != graph.ConnUnion || !e.fallback || ctx.Err() != nil {
			e.log.Error("boolean operation failed", "op", op.conn.String(), "operands", idsOf(operands), "err", err)
			return res, err
		}
		e.log.Warn("union kernel failed; concatenating operands without fusion",
			"operands", idsOf(operands), "err", err)
		local, center = e.concat(operands, resolved)
		res.Degraded = true
	}

	bodies := make([]geom.Body, len(resolved))
	placements := make([]mgl64.Vec3, len(operands))
	for i := range resolved {
		bodies[i] = resolved[i]
		placements[i] = operands[i].Position
	}
	c := geom.NewCompound(bodies, placements)
	c.SetUnified(local)
	if res.Degraded {
		c.MarkDegraded()
	}

	el := Element{NodeID: e.record(c), Body: c, Position: center}
	for _, operand := range operands {
		e.graph.AddConnection(operand.NodeID, graph.Connection{TargetID: el.NodeID, Type: op.conn})
	}
	res.Elements = e.replace(elems, operands, el)
	res.ID = el.NodeID

	e.log.Info("boolean operation", "op", op.conn.String(), "operands", idsOf(operands),
		"result", el.NodeID.String(), "degraded", res.Degraded)
	return res, nil
}

// resolveOperands flattens each operand body to one brep. A compound that
// fails to unify falls back to its first child with a warning.
func (e *Editor) resolveOperands(ctx context.Context, operands []Element) []*geom.Brep {
	out := make([]*geom.Brep, len(operands))
	for i, op := range operands {
		b, err := geom.Resolve(ctx, op.Body, e.unifier())
		if err != nil {
			e.log.Warn("compound unification failed; using first child",
				"node", op.NodeID.String(), "err", err)
		}
		out[i] = b
	}
	return out
}

// runKernel converts the operands at their positions, folds them pairwise
// in selection order, finds the result center and localizes the result
// around it. Kernel panics are reported as errors.
func (e *Editor) runKernel(ctx context.Context, op operation, operands []Element, resolved []*geom.Brep) (local *geom.Brep, center mgl64.Vec3, err error) {
	defer func() {
		if r := recover(); r != nil {
			local = nil
			err = kernelErr(op, "panic", fmt.Errorf("%v", r))
		}
	}()

	if e.kernel == nil {
		return nil, center, kernelErr(op, "acquire", errors.New("no kernel"))
	}
	k, err := e.kernel.Acquire(ctx)
	if err != nil {
		return nil, center, kernelErr(op, "acquire", err)
	}

	var acc kernel.Shape
	for i, b := range resolved {
		s, err := k.ShapeFromBrep(ctx, b, operands[i].Position)
		if err != nil {
			return nil, center, kernelErr(op, fmt.Sprintf("convert %s", operands[i].NodeID), err)
		}
		if acc == nil {
			acc = s
			continue
		}
		if acc, err = op.apply(k, ctx, acc, s); err != nil {
			return nil, center, kernelErr(op, fmt.Sprintf("combine %s", operands[i].NodeID), err)
		}
	}

	if op.conn == graph.ConnUnion {
		mesh, err := k.ToMesh(ctx, acc)
		if err != nil {
			return nil, center, kernelErr(op, "mesh", err)
		}
		if mesh.IsEmpty() {
			return nil, center, kernelErr(op, "mesh", kernel.ErrEmptyShape)
		}
		center = mesh.Bounds().Center().Vec()
	} else {
		if kernel.Bounds(acc).Empty() {
			return nil, center, kernelErr(op, "bounds", kernel.ErrEmptyShape)
		}
		center = kernel.Center(acc)
	}

	b, err := k.ShapeToBrep(ctx, acc)
	if err != nil {
		return nil, center, kernelErr(op, "to brep", err)
	}
	// ShapeToBrep is centered on the shape's bbox center; re-anchor on center.
	return e.xf.ApplyBrep(b, center, kernel.Center(acc), nil), center, nil
}

// concat lays the operands out around the center of their world bounds and
// merges them into one arena.
func (e *Editor) concat(operands []Element, resolved []*geom.Brep) (*geom.Brep, mgl64.Vec3) {
	bb := geom.NewBounds()
	for i, b := range resolved {
		bb.Union(b.Bounds().Translate(geom.FromVec(operands[i].Position)))
	}
	center := bb.Center().Vec()
	parts := make([]*geom.Brep, len(resolved))
	for i, b := range resolved {
		parts[i] = e.xf.ApplyBrep(b, center, operands[i].Position, nil)
	}
	return geom.Concat(parts...), center
}

func kernelErr(op operation, stage string, err error) error {
	return fmt.Errorf("scene: %s: %s: %w: %w", op.conn, stage, geom.ErrKernelOperationFailed, err)
}

func idsOf(elems []Element) []string {
	return lo.Map(elems, func(el Element, _ int) string { return el.NodeID.String() })
}
