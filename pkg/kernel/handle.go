package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chazu/facet/pkg/geom"
)

// State is the lifecycle stage of a Handle.
type State int

const (
	StateUninitialized State = iota // factory not yet called
	StateInitializing               // factory running
	StateReady                      // kernel available
	StateFailed                     // factory returned an error or panicked; terminal
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Factory constructs a kernel. It is called at most once per Handle.
type Factory func(ctx context.Context) (Kernel, error)

// Handle is an injectable, lazily initialized kernel service. The first
// Acquire starts the factory; every caller, concurrent or later, waits on the
// same result.
type Handle struct {
	factory Factory
	log     *slog.Logger

	mu    sync.Mutex
	state State
	done  chan struct{}
	k     Kernel
	err   error
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithHandleLogger sets the logger used for lifecycle events.
func WithHandleLogger(l *slog.Logger) HandleOption {
	return func(h *Handle) { h.log = l }
}

// NewHandle returns an uninitialized handle around f.
func NewHandle(f Factory, opts ...HandleOption) *Handle {
	h := &Handle{factory: f, log: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ReadyHandle wraps an already constructed kernel.
func ReadyHandle(k Kernel) *Handle {
	done := make(chan struct{})
	close(done)
	return &Handle{log: slog.Default(), state: StateReady, done: done, k: k}
}

// State returns the current lifecycle stage.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Acquire returns the kernel, initializing it on first use. If ctx ends
// while initialization is in flight, Acquire returns ctx.Err() and the
// initialization keeps running for the next caller.
func (h *Handle) Acquire(ctx context.Context) (Kernel, error) {
	h.mu.Lock()
	if h.state == StateUninitialized {
		h.state = StateInitializing
		h.done = make(chan struct{})
		go h.initialize(context.WithoutCancel(ctx))
	}
	done := h.done
	h.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateReady {
		return h.k, nil
	}
	return nil, h.err
}

func (h *Handle) initialize(ctx context.Context) {
	var (
		k   Kernel
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if h.factory == nil {
			err = errors.New("no kernel factory")
			return
		}
		k, err = h.factory(ctx)
		if err == nil && k == nil {
			err = errors.New("factory returned nil kernel")
		}
	}()

	h.mu.Lock()
	if err != nil {
		h.state = StateFailed
		h.err = fmt.Errorf("kernel: initialize: %w: %w", geom.ErrKernelOperationFailed, err)
		h.log.Error("kernel initialization failed", "err", err)
	} else {
		h.state = StateReady
		h.k = k
		h.log.Debug("kernel ready")
	}
	close(h.done)
	h.mu.Unlock()
}
