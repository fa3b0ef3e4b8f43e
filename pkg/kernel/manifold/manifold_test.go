//go:build manifold

package manifold

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
)

func mustNew(t *testing.T) kernel.Kernel {
	t.Helper()
	k, err := New(WithSheetThickness(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return k
}

func shapeAt(t *testing.T, k kernel.Kernel, b *geom.Brep, x, y, z float64) kernel.Shape {
	t.Helper()
	s, err := k.ShapeFromBrep(context.Background(), b, mgl64.Vec3{x, y, z})
	if err != nil {
		t.Fatalf("ShapeFromBrep() error = %v", err)
	}
	return s
}

func checkBounds(t *testing.T, s kernel.Shape, wantMin, wantMax [3]float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		if math.Abs(min[i]-wantMin[i]) > 1e-6 {
			t.Errorf("min[%d] = %f, want %f", i, min[i], wantMin[i])
		}
		if math.Abs(max[i]-wantMax[i]) > 1e-6 {
			t.Errorf("max[%d] = %f, want %f", i, max[i], wantMax[i])
		}
	}
}

func TestBox(t *testing.T) {
	k := mustNew(t)
	s := shapeAt(t, k, geom.Box(10, 20, 30), 1, 0, 0)
	checkBounds(t, s, [3]float64{-4, -10, -15}, [3]float64{6, 10, 15})
}

func TestSheet(t *testing.T) {
	k := mustNew(t)
	s := shapeAt(t, k, geom.Rect(4, 2), 0, 0, 0)
	checkBounds(t, s, [3]float64{-2, -1, -0.5}, [3]float64{2, 1, 0.5})
}

func TestUnion(t *testing.T) {
	k := mustNew(t)
	ctx := context.Background()
	a := shapeAt(t, k, geom.Box(2, 2, 2), 0, 0, 0)
	b := shapeAt(t, k, geom.Box(2, 2, 2), 1, 0, 0)

	u, err := k.Union(ctx, a, b)
	if err != nil {
		t.Fatalf("Union() error = %v", err)
	}
	checkBounds(t, u, [3]float64{-1, -1, -1}, [3]float64{2, 1, 1})

	m, err := k.ToMesh(ctx, u)
	if err != nil {
		t.Fatalf("ToMesh() error = %v", err)
	}
	if m.IsEmpty() || len(m.Normals) != len(m.Vertices) {
		t.Errorf("mesh: %d vertex floats, %d normal floats", len(m.Vertices), len(m.Normals))
	}

	b2, err := k.ShapeToBrep(ctx, u)
	if err != nil {
		t.Fatalf("ShapeToBrep() error = %v", err)
	}
	bb := b2.Bounds()
	if math.Abs(bb.Min.X+1.5) > 1e-6 || math.Abs(bb.Max.X-1.5) > 1e-6 {
		t.Errorf("brep not centered: %+v", bb)
	}
}

func TestDifference(t *testing.T) {
	k := mustNew(t)
	a := shapeAt(t, k, geom.Box(4, 4, 4), 0, 0, 0)
	b := shapeAt(t, k, geom.Box(4, 4, 4), 2, 0, 0)

	d, err := k.Difference(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Difference() error = %v", err)
	}
	checkBounds(t, d, [3]float64{-2, -2, -2}, [3]float64{0, 2, 2})
}

func TestIntersectionDisjoint(t *testing.T) {
	k := mustNew(t)
	a := shapeAt(t, k, geom.Box(1, 1, 1), 0, 0, 0)
	b := shapeAt(t, k, geom.Box(1, 1, 1), 5, 0, 0)

	_, err := k.Intersection(context.Background(), a, b)
	if !errors.Is(err, kernel.ErrEmptyShape) {
		t.Fatalf("Intersection() error = %v, want ErrEmptyShape", err)
	}
}
