package kernel_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/kerneltest"
)

func TestHandleInitializesOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fake := kerneltest.New()
	h := kernel.NewHandle(func(ctx context.Context) (kernel.Kernel, error) {
		calls.Add(1)
		<-release
		return fake, nil
	})
	assert.Equal(t, kernel.StateUninitialized, h.State())

	var wg sync.WaitGroup
	results := make([]kernel.Kernel, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := h.Acquire(context.Background())
			assert.NoError(t, err)
			results[i] = k
		}(i)
	}

	require.Eventually(t, func() bool { return h.State() == kernel.StateInitializing }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, kernel.StateReady, h.State())
	assert.Equal(t, int32(1), calls.Load())
	for _, k := range results {
		assert.Same(t, fake, k)
	}
}

func TestHandleFailure(t *testing.T) {
	boom := errors.New("no backend")
	h := kernel.NewHandle(func(ctx context.Context) (kernel.Kernel, error) {
		return nil, boom
	})

	_, err := h.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.Equal(t, kernel.StateFailed, h.State())

	// Failed is terminal.
	_, err2 := h.Acquire(context.Background())
	assert.ErrorIs(t, err2, boom)
}

func TestHandleFactoryPanic(t *testing.T) {
	h := kernel.NewHandle(func(ctx context.Context) (kernel.Kernel, error) {
		panic("wasm trap")
	})
	_, err := h.Acquire(context.Background())
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.Contains(t, err.Error(), "wasm trap")
	assert.Equal(t, kernel.StateFailed, h.State())
}

func TestHandleNilKernel(t *testing.T) {
	h := kernel.NewHandle(func(ctx context.Context) (kernel.Kernel, error) {
		return nil, nil
	})
	_, err := h.Acquire(context.Background())
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
}

func TestHandleAcquireCanceled(t *testing.T) {
	release := make(chan struct{})
	fake := kerneltest.New()
	h := kernel.NewHandle(func(ctx context.Context) (kernel.Kernel, error) {
		<-release
		return fake, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Initialization continues for later callers.
	close(release)
	k, err := h.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, fake, k)
}

func TestReadyHandle(t *testing.T) {
	fake := kerneltest.New()
	h := kernel.ReadyHandle(fake)
	assert.Equal(t, kernel.StateReady, h.State())
	k, err := h.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, fake, k)
}

func TestUnifier(t *testing.T) {
	fake := kerneltest.New()
	u := kernel.Unifier{Handle: fake.Handle()}

	c := geom.NewCompound(
		[]geom.Body{geom.Rect(2, 2), geom.Rect(2, 2)},
		[]mgl64.Vec3{{0, 0, 0}, {2, 0, 0}},
	)
	b, err := c.Unified(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, geom.V(4, 2, 0), b.Bounds().Size())
	assert.Equal(t, 2, fake.Calls(kerneltest.OpShapeFromBrep))
	assert.Equal(t, 1, fake.Calls(kerneltest.OpUnion))

	again, err := c.Unified(context.Background(), u)
	require.NoError(t, err)
	assert.Same(t, b, again)
	assert.Equal(t, 1, fake.Calls(kerneltest.OpUnion))
}

func TestUnifierNested(t *testing.T) {
	fake := kerneltest.New()
	u := kernel.Unifier{Handle: fake.Handle()}

	inner := geom.NewCompound(
		[]geom.Body{geom.Rect(1, 1), geom.Rect(1, 1)},
		[]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}},
	)
	outer := geom.NewCompound([]geom.Body{inner, geom.Rect(1, 1)}, []mgl64.Vec3{{0, 0, 0}, {0, 5, 0}})

	b, err := outer.Unified(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, b.IsEmpty())
	assert.NotNil(t, inner.Cached())
	assert.Equal(t, 2, fake.Calls(kerneltest.OpUnion))
}

func TestUnifierKernelFailure(t *testing.T) {
	fake := kerneltest.New()
	boom := errors.New("boolean failed")
	fake.FailOn(kerneltest.OpUnion, boom)
	u := kernel.Unifier{Handle: fake.Handle()}

	first := geom.Rect(1, 1)
	c := geom.NewCompound([]geom.Body{first, geom.Rect(1, 1)}, nil)
	b, err := c.Unified(context.Background(), u)
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.ErrorIs(t, err, boom)
	assert.Same(t, first, b)
}

func TestUnifierKernelPanic(t *testing.T) {
	fake := kerneltest.New()
	fake.PanicOn(kerneltest.OpUnion, "segfault in kernel")
	u := kernel.Unifier{Handle: fake.Handle()}

	first := geom.Rect(1, 1)
	c := geom.NewCompound([]geom.Body{first, geom.Rect(1, 1)}, []mgl64.Vec3{{0, 0, 0}, {2, 0, 0}})
	var (
		b   *geom.Brep
		err error
	)
	require.NotPanics(t, func() { b, err = c.Unified(context.Background(), u) })
	assert.ErrorIs(t, err, geom.ErrKernelOperationFailed)
	assert.Contains(t, err.Error(), "segfault in kernel")
	assert.Same(t, first, b)
	assert.Nil(t, c.Cached())
}

func TestUnifierRelativeToOrigin(t *testing.T) {
	u := kernel.Unifier{Handle: kerneltest.New().Handle()}

	c := geom.NewCompoundAt(
		[]geom.Body{geom.Rect(2, 2), geom.Rect(2, 2)},
		[]mgl64.Vec3{{0, 0, 0}, {2, 0, 0}},
		mgl64.Vec3{},
	)
	b, err := c.Unified(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, b.Bounds().Min.ApproxEquals(geom.V(-1, -1, 0)), "min %v", b.Bounds().Min)
	assert.True(t, b.Bounds().Max.ApproxEquals(geom.V(3, 1, 0)), "max %v", b.Bounds().Max)
}
