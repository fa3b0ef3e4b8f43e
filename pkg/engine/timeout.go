package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// evalResult passes evaluation output through the result channel.
type evalResult struct {
	result *EvalResult
	err    error
}

// waitWithTimeout waits for a result from ch until ctx ends. It uses a
// generation counter to discard stale results from previous evaluations.
//
// On timeout the goroutine may still be running; it holds the engine's run
// lock until it finishes, so the next evaluation waits for it, and the
// generation check discards its result.
func waitWithTimeout(
	ctx context.Context,
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (*EvalResult, error) {
	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, errors.New("evaluation superseded by newer request")
		}
		return res.result, res.err

	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("evaluation timed out after %s", timeout)
		}
		return nil, fmt.Errorf("evaluation canceled: %w", ctx.Err())
	}
}
