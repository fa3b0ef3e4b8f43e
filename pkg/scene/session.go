package scene

import (
	"context"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
)

// Session holds the current element list and selection on top of an
// Editor. It is what the desktop bindings and the script console drive.
// A Session is not safe for concurrent use.
type Session struct {
	*Editor
	elems []Element
	sel   []graph.NodeID
}

// NewSession returns an empty session over e.
func NewSession(e *Editor) *Session {
	return &Session{Editor: e}
}

// Elements returns the live elements. The slice must not be modified.
func (s *Session) Elements() []Element { return s.elems }

// Selection returns the selected IDs in selection order.
func (s *Session) Selection() []graph.NodeID { return slices.Clone(s.sel) }

// Element returns the live element with the given ID.
func (s *Session) Element(id graph.NodeID) (Element, bool) { return Find(s.elems, id) }

// Add places body at position.
func (s *Session) Add(body geom.Body, position mgl64.Vec3) graph.NodeID {
	var id graph.NodeID
	s.elems, id = s.AddElement(s.elems, body, position)
	return id
}

// Instance adds another element sharing id's body by reference. Selecting
// either one selects both. It returns false if id is not live.
func (s *Session) Instance(id graph.NodeID, position mgl64.Vec3) (graph.NodeID, bool) {
	el, ok := Find(s.elems, id)
	if !ok {
		return 0, false
	}
	return s.Add(el.Body, position), true
}

// Remove deletes the element. It reports whether id was live.
func (s *Session) Remove(id graph.NodeID) bool {
	before := len(s.elems)
	s.elems = s.RemoveElement(s.elems, id)
	s.prune()
	return len(s.elems) != before
}

// Move sets the element position. It reports whether id was live.
func (s *Session) Move(id graph.NodeID, position mgl64.Vec3) bool {
	if _, ok := Find(s.elems, id); !ok {
		return false
	}
	s.elems = s.UpdateElementPosition(s.elems, id, position)
	return true
}

// Select selects id and everything linked to it.
func (s *Session) Select(id graph.NodeID) {
	s.elems, s.sel = s.SelectElement(s.elems, s.sel, id)
}

// Deselect deselects id and everything linked to it.
func (s *Session) Deselect(id graph.NodeID) {
	s.elems, s.sel = s.DeselectElement(s.elems, s.sel, id)
}

// ClearSelection deselects everything.
func (s *Session) ClearSelection() {
	s.elems = setSelected(s.elems, s.sel, false)
	s.sel = nil
}

// Union fuses the selection.
func (s *Session) Union(ctx context.Context) (Result, error) {
	return s.apply(s.UnionSelectedElements(ctx, s.elems, s.sel))
}

// Difference subtracts the rest of the selection from its first element.
func (s *Session) Difference(ctx context.Context) (Result, error) {
	return s.apply(s.DifferenceSelectedElements(ctx, s.elems, s.sel))
}

// Intersection intersects the selection.
func (s *Session) Intersection(ctx context.Context) (Result, error) {
	return s.apply(s.IntersectionSelectedElements(ctx, s.elems, s.sel))
}

// Group assembles the selection into one compound element.
func (s *Session) Group() graph.NodeID {
	var id graph.NodeID
	s.elems, id = s.GroupSelectedElements(s.elems, s.sel)
	s.prune()
	return id
}

// Ungroup splits the single selected compound.
func (s *Session) Ungroup() []graph.NodeID {
	var ids []graph.NodeID
	s.elems, ids = s.UngroupSelectedElement(s.elems)
	s.prune()
	return ids
}

func (s *Session) apply(res Result, err error) (Result, error) {
	if err != nil {
		return res, err
	}
	s.elems = res.Elements
	s.prune()
	return res, nil
}

// prune drops selection entries for elements that are no longer live.
func (s *Session) prune() {
	s.sel = lo.Filter(s.sel, func(id graph.NodeID, _ int) bool {
		_, ok := Find(s.elems, id)
		return ok
	})
}
