package scene

import (
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/transform"
)

// Editor owns the persistent scene state (the ID counter, the provenance
// graph and the object map) and the collaborators operations need. Element
// slices and selections are passed in and returned, never stored.
type Editor struct {
	ids      *graph.IDCounter
	graph    *graph.Graph
	objects  ObjectMap
	renderer Renderer
	kernel   *kernel.Handle
	xf       transform.Transformer
	log      *slog.Logger
	fallback bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger for warnings and kernel failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) { e.log = l }
}

// WithRenderer sets the visual object builder. Without one the object map
// holds each element's body.
func WithRenderer(r Renderer) Option {
	return func(e *Editor) { e.renderer = r }
}

// WithUnionFallback enables or disables the non-kernel union fallback.
func WithUnionFallback(on bool) Option {
	return func(e *Editor) { e.fallback = on }
}

// WithTolerance sets the vertex reconciliation tolerance.
func WithTolerance(tol float64) Option {
	return func(e *Editor) { e.xf.Tolerance = tol }
}

// WithIDCounter shares an existing ID counter.
func WithIDCounter(c *graph.IDCounter) Option {
	return func(e *Editor) { e.ids = c }
}

// WithGraph records provenance into an existing graph.
func WithGraph(g *graph.Graph) Option {
	return func(e *Editor) { e.graph = g }
}

// WithObjects mirrors elements into an existing object map.
func WithObjects(m ObjectMap) Option {
	return func(e *Editor) { e.objects = m }
}

// NewEditor returns an editor using the kernel behind k. The union
// fallback is on by default.
func NewEditor(k *kernel.Handle, opts ...Option) *Editor {
	e := &Editor{
		ids:      &graph.IDCounter{},
		graph:    graph.New(),
		objects:  make(ObjectMap),
		renderer: bodyRenderer{},
		kernel:   k,
		log:      slog.Default(),
		fallback: true,
	}
	for _, o := range opts {
		o(e)
	}
	e.xf.Logger = e.log
	return e
}

// Graph returns the provenance graph.
func (e *Editor) Graph() *graph.Graph { return e.graph }

// Objects returns the object map.
func (e *Editor) Objects() ObjectMap { return e.objects }

// IDs returns the ID counter.
func (e *Editor) IDs() *graph.IDCounter { return e.ids }

// Kernel returns the kernel handle.
func (e *Editor) Kernel() *kernel.Handle { return e.kernel }

// unifier returns the geom.Unifier backed by the editor's kernel.
func (e *Editor) unifier() geom.Unifier {
	return kernel.Unifier{Handle: e.kernel}
}

// build creates the visual object for el and stores it. A renderer error
// is logged and leaves a nil object so the map still mirrors the element.
func (e *Editor) build(el Element) {
	obj, err := e.renderer.Build(el)
	if err != nil {
		e.log.Warn("render failed", "node", el.NodeID.String(), "err", err)
	}
	e.objects[el.NodeID] = obj
}

// record allocates an ID and a provenance node for body.
func (e *Editor) record(body geom.Body) graph.NodeID {
	id := e.ids.Next()
	e.graph.AddNode(&graph.Node{ID: id, Body: body})
	return id
}

// ---------------------------------------------------------------------------
// Element store
// ---------------------------------------------------------------------------

// AddElement places body at position as a new element and returns the new
// slice and the element's ID.
func (e *Editor) AddElement(elems []Element, body geom.Body, position mgl64.Vec3) ([]Element, graph.NodeID) {
	el := Element{NodeID: e.record(body), Body: body, Position: position}
	e.build(el)
	return slices.Concat(elems, []Element{el}), el.NodeID
}

// RemoveElement drops the element and its object. Provenance is kept. An
// unknown ID returns elems unchanged.
func (e *Editor) RemoveElement(elems []Element, id graph.NodeID) []Element {
	if _, ok := Find(elems, id); !ok {
		return elems
	}
	delete(e.objects, id)
	return lo.Filter(elems, func(el Element, _ int) bool { return el.NodeID != id })
}

// UpdateElementPosition moves the element and rebuilds its object. An
// unknown ID returns elems unchanged.
func (e *Editor) UpdateElementPosition(elems []Element, id graph.NodeID, position mgl64.Vec3) []Element {
	if _, ok := Find(elems, id); !ok {
		return elems
	}
	return lo.Map(elems, func(el Element, _ int) Element {
		if el.NodeID == id {
			el.Position = position
			e.build(el)
		}
		return el
	})
}
