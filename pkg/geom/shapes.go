package geom

// ---------------------------------------------------------------------------
// Builders for finalized sketch shapes. Each result is centered on its
// local origin unless the caller supplies explicit vertices.
// ---------------------------------------------------------------------------

// Rect returns a w×h rectangle in the z=0 plane, counter-clockwise.
func Rect(w, h float64) *Brep {
	hw, hh := w/2, h/2
	vertices := []Vertex{
		{-hw, -hh, 0},
		{hw, -hh, 0},
		{hw, hh, 0},
		{-hw, hh, 0},
	}
	faces := []Face{MustFace(0, 1, 2, 3)}
	return &Brep{Vertices: vertices, Edges: EdgesOf(faces), Faces: faces}
}

// Polygon returns a single-face brep with the given vertex loop, kept as
// given (not recentered).
func Polygon(points ...Vertex) (*Brep, error) {
	indices := make([]int, len(points))
	for i := range points {
		indices[i] = i
	}
	f, err := NewFace(indices...)
	if err != nil {
		return nil, err
	}
	faces := []Face{f}
	return &Brep{
		Vertices: append([]Vertex(nil), points...),
		Edges:    EdgesOf(faces),
		Faces:    faces,
	}, nil
}

// Box returns a closed w×h×d box with outward-facing quads.
func Box(w, h, d float64) *Brep {
	x, y, z := w/2, h/2, d/2
	vertices := []Vertex{
		{-x, -y, -z}, // 0
		{x, -y, -z},  // 1
		{x, y, -z},   // 2
		{-x, y, -z},  // 3
		{-x, -y, z},  // 4
		{x, -y, z},   // 5
		{x, y, z},    // 6
		{-x, y, z},   // 7
	}
	faces := []Face{
		MustFace(0, 3, 2, 1), // bottom
		MustFace(4, 5, 6, 7), // top
		MustFace(0, 1, 5, 4), // front
		MustFace(2, 3, 7, 6), // back
		MustFace(0, 4, 7, 3), // left
		MustFace(1, 2, 6, 5), // right
	}
	return &Brep{Vertices: vertices, Edges: EdgesOf(faces), Faces: faces}
}
