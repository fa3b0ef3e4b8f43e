package geom

import "fmt"

// Loop is a face resolved to vertex values.
type Loop []Vertex

// GetAllFaces flattens a body into resolved face loops for rendering. A
// compound contributes its cached unified brep when one exists and its
// children's faces otherwise, each child shifted from its placement into the
// compound's frame.
func GetAllFaces(b Body) []Loop {
	switch v := b.(type) {
	case *Brep:
		if v == nil {
			return nil
		}
		loops := make([]Loop, 0, len(v.Faces))
		for _, f := range v.Faces {
			loops = append(loops, v.FaceVertices(f))
		}
		return loops
	case *Compound:
		if v.unified != nil {
			return GetAllFaces(v.unified)
		}
		var loops []Loop
		for i, child := range v.children {
			d := FromVec(v.placements[i].Sub(v.origin))
			for _, loop := range GetAllFaces(child) {
				if d != (Vertex{}) {
					for j := range loop {
						loop[j] = loop[j].Add(d)
					}
				}
				loops = append(loops, loop)
			}
		}
		return loops
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("geom: unknown body type %T", b))
	}
}

// BodyBounds returns the local bounds of any body via its face loops, plus
// the vertices of face-less breps.
func BodyBounds(b Body) Bounds {
	if br, ok := b.(*Brep); ok {
		return br.Bounds()
	}
	bb := NewBounds()
	for _, loop := range GetAllFaces(b) {
		for _, v := range loop {
			bb.Extend(v)
		}
	}
	return bb
}

// Concat merges breps into one arena without any boolean fusion. Faces and
// edges are re-indexed; overlapping geometry is kept as is.
func Concat(breps ...*Brep) *Brep {
	out := &Brep{}
	for _, b := range breps {
		if b == nil {
			continue
		}
		base := len(out.Vertices)
		out.Vertices = append(out.Vertices, b.Vertices...)
		for _, e := range b.Edges {
			out.Edges = append(out.Edges, Edge{Start: e.Start + base, End: e.End + base})
		}
		for _, f := range b.Faces {
			idx := make([]int, len(f.Indices))
			for i, v := range f.Indices {
				idx[i] = v + base
			}
			out.Faces = append(out.Faces, Face{Indices: idx})
		}
	}
	return out
}
