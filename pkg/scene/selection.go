package scene

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
)

// linked returns id followed by every element reachable from it through
// shared body references or direct compound membership, breadth-first.
// Siblings of one compound are reached through the compound's element.
func linked(elems []Element, id graph.NodeID) []graph.NodeID {
	start, ok := Find(elems, id)
	if !ok {
		return nil
	}
	seen := map[graph.NodeID]bool{id: true}
	out := []graph.NodeID{id}
	queue := []Element{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, other := range elems {
			if seen[other.NodeID] || !related(cur.Body, other.Body) {
				continue
			}
			seen[other.NodeID] = true
			out = append(out, other.NodeID)
			queue = append(queue, other)
		}
	}
	return out
}

// related compares bodies by reference, never by value.
func related(a, b geom.Body) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	if c, ok := a.(*geom.Compound); ok && c.Contains(b) {
		return true
	}
	if c, ok := b.(*geom.Compound); ok && c.Contains(a) {
		return true
	}
	return false
}

// SelectElement selects id and every element linked to it. The returned
// selection keeps prior order and appends newly selected IDs, id first.
func (e *Editor) SelectElement(elems []Element, sel []graph.NodeID, id graph.NodeID) ([]Element, []graph.NodeID) {
	group := linked(elems, id)
	if group == nil {
		return elems, sel
	}
	next := slices.Clone(sel)
	for _, gid := range group {
		if !slices.Contains(next, gid) {
			next = append(next, gid)
		}
	}
	return setSelected(elems, group, true), next
}

// DeselectElement deselects id and every element linked to it.
func (e *Editor) DeselectElement(elems []Element, sel []graph.NodeID, id graph.NodeID) ([]Element, []graph.NodeID) {
	group := linked(elems, id)
	if group == nil {
		return elems, sel
	}
	next := lo.Filter(sel, func(s graph.NodeID, _ int) bool { return !slices.Contains(group, s) })
	return setSelected(elems, group, false), next
}

func setSelected(elems []Element, ids []graph.NodeID, on bool) []Element {
	return lo.Map(elems, func(el Element, _ int) Element {
		if slices.Contains(ids, el.NodeID) {
			el.Selected = on
		}
		return el
	})
}

// UngroupSelectedElement splits the single selected compound element into
// one element per child, all at the compound's position, and records an
// ungroup connection from the compound to each. Any other selection state
// returns elems unchanged and no IDs.
func (e *Editor) UngroupSelectedElement(elems []Element) ([]Element, []graph.NodeID) {
	selected := lo.Filter(elems, func(el Element, _ int) bool { return el.Selected })
	if len(selected) != 1 {
		return elems, nil
	}
	target := selected[0]
	c, ok := target.Body.(*geom.Compound)
	if !ok || c.Len() == 0 {
		return elems, nil
	}

	children := make([]Element, 0, c.Len())
	for _, child := range c.Children() {
		id := e.record(child)
		e.graph.AddConnection(target.NodeID, graph.Connection{TargetID: id, Type: graph.ConnUngroup})
		el := Element{NodeID: id, Body: child, Position: target.Position}
		e.build(el)
		children = append(children, el)
	}
	delete(e.objects, target.NodeID)

	rest := lo.Filter(elems, func(el Element, _ int) bool { return el.NodeID != target.NodeID })
	return slices.Concat(rest, children), lo.Map(children, func(el Element, _ int) graph.NodeID { return el.NodeID })
}

// GroupSelectedElements combines the selected elements into one assembly
// compound without calling the kernel. The children are the operand bodies
// as they are, the placements their positions, and the new element sits at
// the center of their world bounds. Fewer than two live selected IDs is a
// no-op returning elems and a zero ID.
func (e *Editor) GroupSelectedElements(elems []Element, sel []graph.NodeID) ([]Element, graph.NodeID) {
	operands := resolveSelection(elems, sel)
	if len(operands) < 2 {
		return elems, 0
	}

	bodies := make([]geom.Body, len(operands))
	placements := make([]mgl64.Vec3, len(operands))
	for i, op := range operands {
		bodies[i] = op.Body
		placements[i] = op.Position
	}
	c := geom.NewCompound(bodies, placements)
	el := Element{NodeID: e.record(c), Body: c, Position: c.Origin()}
	for _, op := range operands {
		e.graph.AddConnection(op.NodeID, graph.Connection{TargetID: el.NodeID, Type: graph.ConnAssembly})
	}
	return e.replace(elems, operands, el), el.NodeID
}

// resolveSelection maps selected IDs to live elements in selection order,
// skipping unknown and repeated IDs.
func resolveSelection(elems []Element, sel []graph.NodeID) []Element {
	var out []Element
	for _, id := range lo.Uniq(sel) {
		if el, ok := Find(elems, id); ok {
			out = append(out, el)
		}
	}
	return out
}

// replace removes the consumed elements and their objects and appends el
// with a freshly built object.
func (e *Editor) replace(elems []Element, consumed []Element, el Element) []Element {
	gone := lo.Map(consumed, func(c Element, _ int) graph.NodeID { return c.NodeID })
	for _, id := range gone {
		delete(e.objects, id)
	}
	e.build(el)
	rest := lo.Filter(elems, func(x Element, _ int) bool { return !slices.Contains(gone, x.NodeID) })
	return slices.Concat(rest, []Element{el})
}
