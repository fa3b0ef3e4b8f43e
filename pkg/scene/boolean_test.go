package scene_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/kerneltest"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/chazu/facet/pkg/scene"
)

func newEditor(t *testing.T, opts ...scene.Option) (*scene.Editor, *kerneltest.Kernel, *bytes.Buffer) {
	t.Helper()
	k := kerneltest.New()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := scene.NewEditor(k.Handle(), append([]scene.Option{scene.WithLogger(log)}, opts...)...)
	return e, k, &buf
}

func square(t *testing.T, x, y float64) *geom.Brep {
	t.Helper()
	b, err := geom.Polygon(geom.V(x, y, 0), geom.V(x+1, y, 0), geom.V(x+1, y+1, 0), geom.V(x, y+1, 0))
	require.NoError(t, err)
	return b
}

func compoundOf(t *testing.T, elems []scene.Element, id graph.NodeID) *geom.Compound {
	t.Helper()
	el, ok := scene.Find(elems, id)
	require.True(t, ok, "element %s not live", id)
	c, ok := el.Body.(*geom.Compound)
	require.True(t, ok, "element %s holds %T", id, el.Body)
	return c
}

func TestIntersectionOfOverlappingSquares(t *testing.T) {
	e, _, _ := newEditor(t)
	a, b := square(t, 0, 0), square(t, 0.5, 0.5)

	elems, idA := e.AddElement(nil, a, mgl64.Vec3{})
	elems, idB := e.AddElement(elems, b, mgl64.Vec3{})

	res, err := e.IntersectionSelectedElements(context.Background(), elems, []graph.NodeID{idA, idB})
	require.NoError(t, err)
	require.Len(t, res.Elements, 1)
	assert.False(t, res.Degraded)

	c := compoundOf(t, res.Elements, res.ID)
	require.Equal(t, 2, c.Len())
	assert.Same(t, a, c.Child(0))
	assert.Same(t, b, c.Child(1))

	want := graph.Connection{TargetID: res.ID, Type: graph.ConnIntersection}
	assert.Contains(t, e.Graph().Connections(idA), want)
	assert.Contains(t, e.Graph().Connections(idB), want)

	el := res.Elements[0]
	assert.True(t, geom.FromVec(el.Position).ApproxEquals(geom.V(0.75, 0.75, 0)), "position %v", el.Position)
	require.NotNil(t, c.Cached())
	assert.True(t, c.Cached().Bounds().Size().ApproxEquals(geom.V(0.5, 0.5, 0)))
}

func TestIntersectionOfOverlappingSquaresSDFX(t *testing.T) {
	if testing.Short() {
		t.Skip("marching cubes")
	}
	h := kernel.NewHandle(sdfx.Factory(sdfx.WithMeshCells(30)))
	e := scene.NewEditor(h, scene.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	elems, a := e.AddElement(nil, square(t, 0, 0), mgl64.Vec3{})
	elems, b := e.AddElement(elems, square(t, 0.5, 0.5), mgl64.Vec3{})
	res, err := e.IntersectionSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	require.NoError(t, err)

	el, ok := scene.Find(res.Elements, res.ID)
	require.True(t, ok)
	assert.True(t, geom.FromVec(el.Position).EqualsTol(geom.V(0.75, 0.75, 0), 0.02), "position %v", el.Position)

	local := compoundOf(t, res.Elements, res.ID).Cached()
	require.NotNil(t, local)
	bb := local.Bounds()
	assert.True(t, bb.Center().EqualsTol(geom.Vertex{}, 1e-5), "local center %v", bb.Center())
	assert.InDelta(t, 0.5, bb.Size().X, 0.04)
	assert.InDelta(t, 0.5, bb.Size().Y, 0.04)
}

func TestDifferenceKeepsFirstSelectedAsBase(t *testing.T) {
	for _, tc := range []struct {
		name  string
		order func(a, b graph.NodeID) []graph.NodeID
		base  int
	}{
		{"a then b", func(a, b graph.NodeID) []graph.NodeID { return []graph.NodeID{a, b} }, 0},
		{"b then a", func(a, b graph.NodeID) []graph.NodeID { return []graph.NodeID{b, a} }, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e, k, _ := newEditor(t)
			bodies := []*geom.Brep{geom.Rect(2, 2), geom.Rect(1, 1)}
			elems, idA := e.AddElement(nil, bodies[0], mgl64.Vec3{})
			elems, idB := e.AddElement(elems, bodies[1], mgl64.Vec3{0.5, 0, 0})

			res, err := e.DifferenceSelectedElements(context.Background(), elems, tc.order(idA, idB))
			require.NoError(t, err)

			c := compoundOf(t, res.Elements, res.ID)
			assert.Same(t, bodies[tc.base], c.Child(0))
			assert.Same(t, bodies[1-tc.base], c.Child(1))
			assert.Equal(t, 1, k.Calls(kerneltest.OpDifference))
		})
	}
}

func TestBooleanWithFewerThanTwoOperandsIsNoop(t *testing.T) {
	ops := map[string]func(*scene.Editor, []scene.Element, []graph.NodeID) (scene.Result, error){
		"union": func(e *scene.Editor, elems []scene.Element, sel []graph.NodeID) (scene.Result, error) {
			return e.UnionSelectedElements(context.Background(), elems, sel)
		},
		"difference": func(e *scene.Editor, elems []scene.Element, sel []graph.NodeID) (scene.Result, error) {
			return e.DifferenceSelectedElements(context.Background(), elems, sel)
		},
		"intersection": func(e *scene.Editor, elems []scene.Element, sel []graph.NodeID) (scene.Result, error) {
			return e.IntersectionSelectedElements(context.Background(), elems, sel)
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			e, k, _ := newEditor(t)
			elems, id := e.AddElement(nil, geom.Rect(1, 1), mgl64.Vec3{})
			last := e.IDs().Peek()

			for _, sel := range [][]graph.NodeID{nil, {id}, {id, id}, {id, 99}} {
				res, err := op(e, elems, sel)
				require.NoError(t, err)
				assert.Same(t, &elems[0], &res.Elements[0], "selection %v", sel)
				assert.Len(t, res.Elements, 1)
				assert.True(t, res.ID.IsZero())
			}
			assert.Equal(t, last, e.IDs().Peek())
			assert.Zero(t, k.Calls(kerneltest.OpShapeFromBrep))
		})
	}
}

func TestBooleanProvenance(t *testing.T) {
	cases := []struct {
		conn graph.ConnectionType
		run  func(*scene.Editor, context.Context, []scene.Element, []graph.NodeID) (scene.Result, error)
	}{
		{graph.ConnUnion, (*scene.Editor).UnionSelectedElements},
		{graph.ConnDifference, (*scene.Editor).DifferenceSelectedElements},
		{graph.ConnIntersection, (*scene.Editor).IntersectionSelectedElements},
	}
	for _, tc := range cases {
		t.Run(tc.conn.String(), func(t *testing.T) {
			e, _, _ := newEditor(t)
			elems, a := e.AddElement(nil, geom.Box(2, 2, 2), mgl64.Vec3{})
			elems, b := e.AddElement(elems, geom.Box(2, 2, 2), mgl64.Vec3{1, 0, 0})
			elems, c := e.AddElement(elems, geom.Box(2, 2, 2), mgl64.Vec3{0, 1, 0})
			elems, other := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{10, 0, 0})

			res, err := tc.run(e, context.Background(), elems, []graph.NodeID{a, b, c})
			require.NoError(t, err)
			r := res.ID
			require.False(t, r.IsZero())

			for _, id := range []graph.NodeID{a, b, c} {
				assert.Contains(t, e.Graph().Connections(id), graph.Connection{TargetID: r, Type: tc.conn})
				_, live := scene.Find(res.Elements, id)
				assert.False(t, live, "operand %s still live", id)
				assert.NotContains(t, e.Objects(), id)
				assert.NotNil(t, e.Graph().Get(id), "operand %s dropped from history", id)
			}
			_, live := scene.Find(res.Elements, r)
			assert.True(t, live)
			assert.Contains(t, e.Objects(), r)
			_, live = scene.Find(res.Elements, other)
			assert.True(t, live)
			assert.Len(t, res.Elements, 2)

			// input slice untouched
			assert.Len(t, elems, 4)
			assert.Empty(t, graph.Validate(e.Graph()))
		})
	}
}

func TestUnionCenter(t *testing.T) {
	e, k, _ := newEditor(t)
	elems, a := e.AddElement(nil, geom.Box(2, 2, 2), mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Box(2, 2, 2), mgl64.Vec3{4, 0, 0})

	res, err := e.UnionSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	require.NoError(t, err)

	el, _ := scene.Find(res.Elements, res.ID)
	assert.True(t, geom.FromVec(el.Position).ApproxEquals(geom.V(2, 0, 0)), "position %v", el.Position)
	wb := el.WorldBounds()
	assert.True(t, wb.Min.ApproxEquals(geom.V(-1, -1, -1)), "min %v", wb.Min)
	assert.True(t, wb.Max.ApproxEquals(geom.V(5, 1, 1)), "max %v", wb.Max)
	assert.Equal(t, 1, k.Calls(kerneltest.OpToMesh))
}

func TestKernelFailureLeavesStateUntouched(t *testing.T) {
	e, k, logs := newEditor(t)
	boom := errors.New("boom")
	k.FailOn(kerneltest.OpDifference, boom)

	elems, a := e.AddElement(nil, geom.Rect(2, 2), mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{})
	nodes, objects, last := e.Graph().NodeCount(), len(e.Objects()), e.IDs().Peek()

	res, err := e.DifferenceSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	require.Error(t, err)
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.ErrorIs(t, err, boom)
	assert.True(t, res.ID.IsZero())
	assert.Same(t, &elems[0], &res.Elements[0])

	assert.Equal(t, nodes, e.Graph().NodeCount())
	assert.Equal(t, objects, len(e.Objects()))
	assert.Equal(t, last, e.IDs().Peek())
	assert.Empty(t, e.Graph().Connections(a))
	assert.Contains(t, logs.String(), "boolean operation failed")

	// retry succeeds once the kernel recovers
	k.FailOn(kerneltest.OpDifference, nil)
	res, err = e.DifferenceSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	require.NoError(t, err)
	assert.False(t, res.ID.IsZero())
}

func TestIntersectionOfDisjointShapesFails(t *testing.T) {
	e, _, _ := newEditor(t)
	elems, a := e.AddElement(nil, geom.Rect(1, 1), mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{5, 0, 0})

	res, err := e.IntersectionSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.ErrorIs(t, err, kernel.ErrEmptyShape)
	assert.Len(t, res.Elements, 2)
}

func TestKernelPanicIsRecovered(t *testing.T) {
	e, k, _ := newEditor(t, scene.WithUnionFallback(false))
	k.PanicOn(kerneltest.OpUnion, "segfault in kernel")

	elems, a := e.AddElement(nil, geom.Rect(1, 1), mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{1, 0, 0})

	var (
		res scene.Result
		err error
	)
	require.NotPanics(t, func() {
		res, err = e.UnionSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	})
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.Contains(t, err.Error(), "segfault in kernel")
	assert.Len(t, res.Elements, 2)
}

func TestKernelPanicDuringGroupUnificationIsRecovered(t *testing.T) {
	e, k, logs := newEditor(t)
	first := geom.Rect(1, 1)
	elems, a := e.AddElement(nil, first, mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{2, 0, 0})
	elems, group := e.GroupSelectedElements(elems, []graph.NodeID{a, b})
	elems, tool := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{})

	k.PanicOn(kerneltest.OpUnion, "segfault in kernel")
	var (
		res scene.Result
		err error
	)
	require.NotPanics(t, func() {
		res, err = e.DifferenceSelectedElements(context.Background(), elems, []graph.NodeID{group, tool})
	})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "compound unification failed")
	assert.Contains(t, logs.String(), "segfault in kernel")

	c := compoundOf(t, res.Elements, res.ID)
	assert.Same(t, first, c.Child(0))
	assert.Nil(t, compoundOf(t, elems, group).Cached())
}

func TestUnionFallbackIsDegraded(t *testing.T) {
	e, k, logs := newEditor(t)
	k.FailOn(kerneltest.OpUnion, errors.New("boom"))

	a, b := geom.Rect(1, 1), geom.Rect(1, 1)
	elems, idA := e.AddElement(nil, a, mgl64.Vec3{})
	elems, idB := e.AddElement(elems, b, mgl64.Vec3{3, 0, 0})

	res, err := e.UnionSelectedElements(context.Background(), elems, []graph.NodeID{idA, idB})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, logs.String(), "concatenating operands")

	c := compoundOf(t, res.Elements, res.ID)
	assert.True(t, c.Degraded())
	assert.Same(t, a, c.Child(0))

	el, _ := scene.Find(res.Elements, res.ID)
	assert.True(t, geom.FromVec(el.Position).ApproxEquals(geom.V(1.5, 0, 0)))

	u := c.Cached()
	require.NotNil(t, u)
	assert.Len(t, u.Vertices, 8)
	assert.Len(t, u.Faces, 2)
	assert.True(t, u.Bounds().Min.ApproxEquals(geom.V(-2, -0.5, 0)))
	assert.True(t, u.Bounds().Max.ApproxEquals(geom.V(2, 0.5, 0)))
	assert.Contains(t, e.Graph().Connections(idA), graph.Connection{TargetID: res.ID, Type: graph.ConnUnion})
}

func TestUnionFallbackDisabled(t *testing.T) {
	e, k, _ := newEditor(t, scene.WithUnionFallback(false))
	k.FailOn(kerneltest.OpToMesh, errors.New("boom"))

	elems, a := e.AddElement(nil, geom.Rect(1, 1), mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{3, 0, 0})

	res, err := e.UnionSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.False(t, res.Degraded)
	assert.True(t, res.ID.IsZero())
}

func TestFailedKernelHandle(t *testing.T) {
	h := kernel.NewHandle(func(ctx context.Context) (kernel.Kernel, error) {
		return nil, errors.New("backend missing")
	})
	e := scene.NewEditor(h, scene.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	elems, a := e.AddElement(nil, geom.Rect(1, 1), mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{})

	_, err := e.DifferenceSelectedElements(context.Background(), elems, []graph.NodeID{a, b})
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.Equal(t, kernel.StateFailed, h.State())
}

func TestBooleanOnGroupUnifiesThroughKernel(t *testing.T) {
	e, k, _ := newEditor(t)
	elems, a := e.AddElement(nil, geom.Rect(1, 1), mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{2, 0, 0})
	elems, group := e.GroupSelectedElements(elems, []graph.NodeID{a, b})
	require.False(t, group.IsZero())
	gc := compoundOf(t, elems, group)
	assert.Nil(t, gc.Cached())

	elems, tool := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{1, 0, 0})
	res, err := e.DifferenceSelectedElements(context.Background(), elems, []graph.NodeID{group, tool})
	require.NoError(t, err)

	require.NotNil(t, gc.Cached())
	assert.Equal(t, 1, k.Calls(kerneltest.OpUnion))
	c := compoundOf(t, res.Elements, res.ID)
	assert.Same(t, gc.Cached(), c.Child(0))
	assert.True(t, gc.Cached().Bounds().Size().ApproxEquals(geom.V(3, 1, 0)))
}

func TestBooleanOnGroupFallsBackToFirstChild(t *testing.T) {
	e, k, logs := newEditor(t)
	first := geom.Rect(1, 1)
	elems, a := e.AddElement(nil, first, mgl64.Vec3{})
	elems, b := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{2, 0, 0})
	elems, group := e.GroupSelectedElements(elems, []graph.NodeID{a, b})
	elems, tool := e.AddElement(elems, geom.Rect(1, 1), mgl64.Vec3{})

	k.FailOn(kerneltest.OpUnion, errors.New("boom"))
	res, err := e.DifferenceSelectedElements(context.Background(), elems, []graph.NodeID{group, tool})
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "compound unification failed")
	c := compoundOf(t, res.Elements, res.ID)
	assert.Same(t, first, c.Child(0))
	assert.Nil(t, compoundOf(t, elems, group).Cached())
}
