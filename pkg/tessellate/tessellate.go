// Package tessellate turns scene bodies into triangle meshes for display.
// It is the rendering collaborator of the scene layer: faces come from
// geom.GetAllFaces and are fan-triangulated at the element's world
// position, with no kernel involvement.
package tessellate

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/scene"
)

// Compile-time interface check.
var _ scene.Renderer = Renderer{}

// Renderer builds a *kernel.Mesh object for each scene element.
type Renderer struct{}

// Build tessellates the element's body at its position.
func (Renderer) Build(el scene.Element) (scene.Object, error) {
	if el.Body == nil {
		return nil, fmt.Errorf("tessellate: element %s has no body", el.NodeID)
	}
	m := Body(el.Body, el.Position)
	m.Name = el.NodeID.String()
	return m, nil
}

// Tessellate produces one mesh per element, in element order. Elements
// without a body are skipped.
func Tessellate(elems []scene.Element) []*kernel.Mesh {
	meshes := make([]*kernel.Mesh, 0, len(elems))
	for _, el := range elems {
		if el.Body == nil {
			continue
		}
		m := Body(el.Body, el.Position)
		m.Name = el.NodeID.String()
		meshes = append(meshes, m)
	}
	return meshes
}

// Body fan-triangulates every face of b, shifted by at. Vertices are not
// shared between triangles so each carries its face normal (flat shading).
// Degenerate faces get a zero normal.
func Body(b geom.Body, at mgl64.Vec3) *kernel.Mesh {
	loops := geom.GetAllFaces(b)
	m := &kernel.Mesh{}
	offset := geom.FromVec(at)

	for _, loop := range loops {
		if len(loop) < 3 {
			continue
		}
		n := faceNormal(loop)
		for i := 1; i+1 < len(loop); i++ {
			for _, v := range [3]geom.Vertex{loop[0], loop[i], loop[i+1]} {
				w := v.Add(offset)
				m.Indices = append(m.Indices, uint32(m.VertexCount()))
				m.Vertices = append(m.Vertices, float32(w.X), float32(w.Y), float32(w.Z))
				m.Normals = append(m.Normals, n[0], n[1], n[2])
			}
		}
	}
	return m
}

// faceNormal returns the unit normal of the first three loop vertices.
func faceNormal(loop geom.Loop) [3]float32 {
	n := loop[1].Sub(loop[0]).Cross(loop[2].Sub(loop[0])).Vec()
	l := n.Len()
	if !(l > 0) {
		return [3]float32{}
	}
	n = n.Mul(1 / l)
	return [3]float32{float32(n[0]), float32(n[1]), float32(n[2])}
}
