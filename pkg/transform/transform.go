// Package transform repositions and rescales bodies, rebuilding edge and face
// indices by tolerance matching so that geometry which has been through a
// kernel round-trip still lines up.
package transform

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
)

// Transformer carries the reconciliation settings. The zero value uses
// geom.DefaultTolerance and slog.Default().
type Transformer struct {
	Tolerance float64
	Logger    *slog.Logger
}

// Default is the Transformer used by the package-level helpers.
var Default = Transformer{}

// TransformBrepVertices applies Default.Apply.
func TransformBrepVertices(body geom.Body, source, target mgl64.Vec3, scale *mgl64.Mat3) geom.Body {
	return Default.Apply(body, source, target, scale)
}

// Apply maps every vertex v to scale*v + (target - source). When source and
// target are equal and scale is nil the input is returned as is. Otherwise
// the result is a new body; compounds are rebuilt child by child along with
// their cached unified brep.
func (t Transformer) Apply(body geom.Body, source, target mgl64.Vec3, scale *mgl64.Mat3) geom.Body {
	if source == target && scale == nil {
		return body
	}
	switch b := body.(type) {
	case *geom.Brep:
		return t.brep(b, source, target, scale)
	case *geom.Compound:
		return t.compound(b, source, target, scale)
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("transform: unknown body type %T", body))
	}
}

// ApplyBrep is Apply for a plain brep.
func (t Transformer) ApplyBrep(b *geom.Brep, source, target mgl64.Vec3, scale *mgl64.Mat3) *geom.Brep {
	if source == target && scale == nil {
		return b
	}
	return t.brep(b, source, target, scale)
}

// compound rebuilds children and the cached result. Placements and origin
// are world snapshots and stay as recorded, so each child is moved within
// its own frame to where the compound-frame transform puts it: a child
// vertex v sits at v+d in the compound frame, d = placement - origin, and
// must end up at scale*(v+d) + (target-source).
func (t Transformer) compound(c *geom.Compound, source, target mgl64.Vec3, scale *mgl64.Mat3) *geom.Compound {
	children := c.Children()
	placements := c.Placements()
	for i, child := range children {
		to := target
		if scale != nil {
			d := placements[i].Sub(c.Origin())
			to = to.Add(scale.Mul3x1(d)).Sub(d)
		}
		children[i] = t.Apply(child, source, to, scale)
	}
	out := geom.NewCompoundAt(children, placements, c.Origin())
	if u := c.Cached(); u != nil {
		out.SetUnified(t.brep(u, source, target, scale))
	}
	if c.Degraded() {
		out.MarkDegraded()
	}
	return out
}

func (t Transformer) brep(b *geom.Brep, source, target mgl64.Vec3, scale *mgl64.Mat3) *geom.Brep {
	if b == nil {
		return nil
	}
	delta := target.Sub(source)
	move := func(v geom.Vertex) geom.Vertex {
		p := v.Vec()
		if scale != nil {
			p = scale.Mul3x1(p)
		}
		return geom.FromVec(p.Add(delta))
	}

	ix := geom.NewVertexIndex(t.Tolerance)
	for _, v := range b.Vertices {
		ix.Append(move(v))
	}

	// Edges and faces are re-resolved by position: each old vertex is moved
	// again and looked up in the new arena.
	resolve := func(old int) int {
		want := move(b.Vertices[old])
		i, err := ix.Lookup(want)
		if err != nil {
			t.warn(err, old, want)
			return old
		}
		return i
	}

	out := &geom.Brep{
		Vertices: ix.Vertices(),
		Edges:    make([]geom.Edge, len(b.Edges)),
		Faces:    make([]geom.Face, len(b.Faces)),
	}
	for i, e := range b.Edges {
		out.Edges[i] = geom.Edge{Start: resolve(e.Start), End: resolve(e.End)}
	}
	for i, f := range b.Faces {
		idx := make([]int, len(f.Indices))
		for j, v := range f.Indices {
			idx[j] = resolve(v)
		}
		out.Faces[i] = geom.Face{Indices: idx}
	}
	return out
}

func (t Transformer) warn(err error, old int, want geom.Vertex) {
	log := t.Logger
	if log == nil {
		log = slog.Default()
	}
	if errors.Is(err, geom.ErrVertexNotFound) {
		log.Warn("vertex reconciliation missed; keeping arena index",
			"index", old, "position", want.String(), "err", err)
		return
	}
	log.Warn("vertex reconciliation failed", "index", old, "err", err)
}

// Scale returns a diagonal scale matrix.
func Scale(x, y, z float64) *mgl64.Mat3 {
	m := mgl64.Diag3(mgl64.Vec3{x, y, z})
	return &m
}
