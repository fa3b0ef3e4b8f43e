package graph

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
)

// ---------------------------------------------------------------------------
// Geometric validation tests
// ---------------------------------------------------------------------------

func singleNode(b geom.Body) *Graph {
	g := New()
	g.AddNode(&Node{ID: 1, Body: b})
	return g
}

func TestValidateGeometryCleanBodies(t *testing.T) {
	for name, b := range map[string]geom.Body{
		"rect": geom.Rect(2, 1),
		"box":  geom.Box(1, 2, 3),
		"compound": geom.NewCompound(
			[]geom.Body{geom.Rect(1, 1), geom.Box(1, 1, 1)},
			[]mgl64.Vec3{{0, 0, 0}, {3, 0, 0}},
		),
	} {
		if errs := Validate(singleNode(b)); len(errs) != 0 {
			t.Errorf("%s: Validate() = %v, want no findings", name, errs)
		}
	}
}

func TestValidateGeometryBadIndex(t *testing.T) {
	b := geom.Rect(1, 1)
	b.Faces[0].Indices[2] = 9

	errs := Validate(singleNode(b))
	if !hasFinding(errs, SeverityError, "face 0 references vertex 9 of 4") {
		t.Errorf("expected index error, got %v", errs)
	}
}

func TestValidateGeometryDegenerateFace(t *testing.T) {
	b := geom.Rect(1, 1)
	b.Faces = append(b.Faces, geom.Face{Indices: []int{0, 1, 1}})

	errs := Validate(singleNode(b))
	if !hasFinding(errs, SeverityWarning, "face 1 has 2 distinct vertices") {
		t.Errorf("expected degenerate face warning, got %v", errs)
	}
	if hasFinding(errs, SeverityError, "") {
		t.Errorf("degenerate face should not be an error, got %v", errs)
	}
}

func TestValidateGeometryNoExtent(t *testing.T) {
	b := &geom.Brep{
		Vertices: []geom.Vertex{geom.V(0, 0, 0), geom.V(1, 0, 0), geom.V(2, 0, 0)},
		Faces:    []geom.Face{{Indices: []int{0, 1, 2}}},
	}

	errs := Validate(singleNode(b))
	if !hasFinding(errs, SeverityError, "must span at least two axes") {
		t.Errorf("expected extent error, got %v", errs)
	}
}

func TestValidateGeometryCompoundChild(t *testing.T) {
	bad := geom.Rect(1, 1)
	bad.Faces[0].Indices[0] = -1
	c := geom.NewCompound(
		[]geom.Body{geom.Rect(1, 1), bad},
		[]mgl64.Vec3{{0, 0, 0}, {2, 0, 0}},
	)

	errs := Validate(singleNode(c))
	if !hasFinding(errs, SeverityError, "child 1: face 0 references vertex -1") {
		t.Errorf("expected child index error, got %v", errs)
	}
}

func TestValidateGeometryEmptyBody(t *testing.T) {
	errs := Validate(singleNode(&geom.Brep{}))
	if !hasFinding(errs, SeverityWarning, "no vertices") {
		t.Errorf("expected empty body warning, got %v", errs)
	}
}

func TestValidateDuplicateConnections(t *testing.T) {
	g := buildHistory()
	g.AddConnection(1, Connection{TargetID: 3, Type: ConnUnion})

	errs := Validate(g)
	if !hasFinding(errs, SeverityWarning, "duplicate connection to #3") {
		t.Errorf("expected duplicate connection warning, got %v", errs)
	}
}
