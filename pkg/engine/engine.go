// Package engine is the facet script console. It evaluates Lisp source in a
// sandboxed zygomys environment whose builtins drive a scene.Session: they
// place shapes, change the selection and run the boolean orchestrators.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/facet/pkg/graph"
	"github.com/chazu/facet/pkg/scene"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or a failed kernel
// operation.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal warning produced during evaluation.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
	NodeID  graph.NodeID
}

// EvalResult bundles the full output of an evaluation for use by UI bindings.
type EvalResult struct {
	Value    string         // printed value of the last expression
	Created  []graph.NodeID // elements created, in order
	Errors   []EvalError
	Warnings []EvalWarning
}

// OK reports whether evaluation finished without errors.
func (r *EvalResult) OK() bool {
	return len(r.Errors) == 0
}

// Engine evaluates scripts against one session. Evaluations are serialized;
// each gets a fresh sandbox, but scene changes persist across calls the way
// they would at an interactive prompt. Statements before an error stay
// applied.
type Engine struct {
	mu         sync.Mutex // guards generation
	generation uint64

	run     sync.Mutex // held while a sandbox touches the session
	session *scene.Session
	timeout time.Duration
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-evaluation limit. Zero or negative keeps
// EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates an Engine driving s.
func NewEngine(s *scene.Session, opts ...Option) *Engine {
	e := &Engine{session: s, timeout: EvalTimeout, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Session returns the session the engine drives.
func (e *Engine) Session() *scene.Session {
	return e.session
}

// Do runs fn with exclusive use of the session, after any evaluation in
// progress has finished.
func (e *Engine) Do(fn func(s *scene.Session)) {
	e.run.Lock()
	defer e.run.Unlock()
	fn(e.session)
}

// Evaluate runs source against the session.
//
// Return semantics:
//   - On success: returns a result with no Errors and nil error
//   - On parse/eval failure: returns a result with Errors and nil error
//   - On fatal failure (timeout, panic, superseded): returns nil and an error
//
// The context passed to kernel calls is canceled when the timeout expires,
// so an evaluation stuck in the kernel stops at its next suspension point.
func (e *Engine) Evaluate(ctx context.Context, source string) (*EvalResult, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("panic during evaluation", "panic", r)
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		e.run.Lock()
		defer e.run.Unlock()
		res, err := e.evaluate(ctx, source)
		ch <- evalResult{result: res, err: err}
	}()

	return waitWithTimeout(ctx, ch, gen, &e.mu, &e.generation, e.timeout)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(ctx context.Context, source string) (*EvalResult, error) {
	res := &EvalResult{}
	if strings.TrimSpace(source) == "" {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	st := &evalState{ctx: ctx, session: e.session}
	registerBuiltins(env, st)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		res.Errors = parseZygomysError(err)
		return res, nil
	}

	v, err := env.Run()
	res.Created = st.created
	res.Warnings = st.warnings
	if err != nil {
		res.Errors = parseZygomysError(err)
		e.log.Debug("script failed", "err", err, "created", len(st.created))
		return res, nil
	}
	if v != nil {
		res.Value = v.SexpString(nil)
	}
	return res, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
