package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
)

// Element is a placed body in the live scene. Its NodeID is also the ID of
// the provenance node that recorded the body.
type Element struct {
	NodeID   graph.NodeID
	Body     geom.Body
	Position mgl64.Vec3 // world anchor of the body's local origin
	Selected bool
}

// Object is the rendering collaborator's visual for one element.
type Object any

// ObjectMap maps live element IDs to their visual objects.
type ObjectMap map[graph.NodeID]Object

// Renderer builds visual objects for elements.
type Renderer interface {
	Build(el Element) (Object, error)
}

// bodyRenderer is the default Renderer: the object is the body itself.
type bodyRenderer struct{}

func (bodyRenderer) Build(el Element) (Object, error) {
	return el.Body, nil
}

// Find returns the element with the given ID.
func Find(elems []Element, id graph.NodeID) (Element, bool) {
	return lo.Find(elems, func(e Element) bool { return e.NodeID == id })
}

// SelectedIDs returns the IDs of selected elements in element order.
func SelectedIDs(elems []Element) []graph.NodeID {
	return lo.FilterMap(elems, func(e Element, _ int) (graph.NodeID, bool) {
		return e.NodeID, e.Selected
	})
}

// WorldBounds returns the element's bounds in world coordinates.
func (e Element) WorldBounds() geom.Bounds {
	return geom.BodyBounds(e.Body).Translate(geom.FromVec(e.Position))
}
