package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
	"github.com/chazu/facet/pkg/scene"
)

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef wraps a scene element ID so it can be passed between builtins.
type sexpNodeRef struct {
	id graph.NodeID
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %d)", int64(n.id))
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps a position.
type sexpVec3 struct {
	vec mgl64.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// at returns the :at keyword position, or the origin.
func (a kwArgs) at(fn string) (mgl64.Vec3, error) {
	v, ok := a.kw["at"]
	if !ok {
		return mgl64.Vec3{}, nil
	}
	p, err := toVec3(v)
	if err != nil {
		return p, fmt.Errorf("%s: at: %w", fn, err)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toPositive extracts a strictly positive dimension.
func toPositive(s zygo.Sexp) (float64, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("expected a positive size, got %g", f)
	}
	return f, nil
}

// toNodeID accepts a node reference or a bare integer ID.
func toNodeID(s zygo.Sexp) (graph.NodeID, error) {
	switch v := s.(type) {
	case *sexpNodeRef:
		return v.id, nil
	case *zygo.SexpInt:
		return graph.NodeID(v.Val), nil
	}
	return 0, fmt.Errorf("expected node reference, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a position from a sexpVec3.
func toVec3(s zygo.Sexp) (mgl64.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return mgl64.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func refs(ids []graph.NodeID) zygo.Sexp {
	out := make([]zygo.Sexp, len(ids))
	for i, id := range ids {
		out[i] = &sexpNodeRef{id: id}
	}
	return zygo.MakeList(out)
}

// ---------------------------------------------------------------------------
// Evaluation state
// ---------------------------------------------------------------------------

// evalState is what the builtins of one evaluation share.
type evalState struct {
	ctx      context.Context
	session  *scene.Session
	created  []graph.NodeID
	warnings []EvalWarning
}

// live fails for IDs that are not in the scene.
func (st *evalState) live(fn string, s zygo.Sexp) (graph.NodeID, error) {
	id, err := toNodeID(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", fn, err)
	}
	if _, ok := st.session.Element(id); !ok {
		return 0, fmt.Errorf("%s: no element %s", fn, id)
	}
	return id, nil
}

// reselect replaces the selection with args, in order, when any are given.
func (st *evalState) reselect(fn string, args []zygo.Sexp) error {
	if len(args) == 0 {
		return nil
	}
	ids := make([]graph.NodeID, 0, len(args))
	for _, a := range args {
		id, err := st.live(fn, a)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	st.session.ClearSelection()
	for _, id := range ids {
		st.session.Select(id)
	}
	return nil
}

func (st *evalState) add(body geom.Body, at mgl64.Vec3) zygo.Sexp {
	id := st.session.Add(body, at)
	st.created = append(st.created, id)
	return &sexpNodeRef{id: id}
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

type builtin = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// guarded stops scene mutation once the evaluation context has ended.
func (st *evalState) guarded(fn builtin) builtin {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := st.ctx.Err(); err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
		}
		return fn(env, name, args)
	}
}

// boolean adapts one of the session's orchestrators. Positional arguments,
// if any, become the selection first; their order is the operand order.
func (st *evalState) boolean(run func(context.Context) (scene.Result, error)) builtin {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := st.reselect(name, args); err != nil {
			return zygo.SexpNull, err
		}
		res, err := run(st.ctx)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
		}
		if res.ID.IsZero() {
			return zygo.SexpNull, nil
		}
		st.created = append(st.created, res.ID)
		if res.Degraded {
			st.warnings = append(st.warnings, EvalWarning{
				Message: "union kernel failed; result is an unfused concatenation",
				NodeID:  res.ID,
			})
		}
		return &sexpNodeRef{id: res.ID}, nil
	}
}

// registerBuiltins installs the facet builtins into a zygomys environment.
// Source code must be preprocessed with preprocessSource() before evaluation
// so that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, st *evalState) {
	add := func(name string, fn builtin) {
		env.AddFunction(name, st.guarded(fn))
	}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	add("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v mgl64.Vec3
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			v[i] = f
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (node 3)
	// -----------------------------------------------------------------------
	add("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("node requires an ID argument")
		}
		id, err := st.live("node", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (rect 2 1 :at (vec3 0 0 0))
	// -----------------------------------------------------------------------
	add("rect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("rect requires width and height")
		}
		w, err := toPositive(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: width: %w", err)
		}
		h, err := toPositive(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rect: height: %w", err)
		}
		at, err := pa.at("rect")
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.add(geom.Rect(w, h), at), nil
	})

	// -----------------------------------------------------------------------
	// (box 1 2 3 :at (vec3 0 0 0))
	// -----------------------------------------------------------------------
	add("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 3 {
			return zygo.SexpNull, fmt.Errorf("box requires width, height and depth")
		}
		var dims [3]float64
		for i, label := range []string{"width", "height", "depth"} {
			f, err := toPositive(pa.positional[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: %s: %w", label, err)
			}
			dims[i] = f
		}
		at, err := pa.at("box")
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.add(geom.Box(dims[0], dims[1], dims[2]), at), nil
	})

	// -----------------------------------------------------------------------
	// (polygon (vec3 0 0 0) (vec3 1 0 0) (vec3 0 1 0) :at (vec3 5 0 0))
	// -----------------------------------------------------------------------
	add("polygon", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		points := make([]geom.Vertex, 0, len(pa.positional))
		for i, p := range pa.positional {
			v, err := toVec3(p)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("polygon: point %d: %w", i, err)
			}
			points = append(points, geom.FromVec(v))
		}
		b, err := geom.Polygon(points...)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polygon: %w", err)
		}
		at, err := pa.at("polygon")
		if err != nil {
			return zygo.SexpNull, err
		}
		return st.add(b, at), nil
	})

	// -----------------------------------------------------------------------
	// (instance ref :at (vec3 4 0 0)) shares ref's body
	// -----------------------------------------------------------------------
	add("instance", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("instance requires a node reference")
		}
		src, err := st.live("instance", pa.positional[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		at, err := pa.at("instance")
		if err != nil {
			return zygo.SexpNull, err
		}
		id, _ := st.session.Instance(src, at)
		st.created = append(st.created, id)
		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (move ref (vec3 1 0 0))
	// -----------------------------------------------------------------------
	add("move", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("move requires a node reference and a vec3")
		}
		id, err := st.live("move", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		to, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move: %w", err)
		}
		st.session.Move(id, to)
		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (delete ref)
	// -----------------------------------------------------------------------
	add("delete", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("delete requires a node reference")
		}
		id, err := st.live("delete", args[0])
		if err != nil {
			return zygo.SexpNull, err
		}
		st.session.Remove(id)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (select ref ...) (deselect ref ...) (clear-selection) (selection)
	// -----------------------------------------------------------------------
	add("select", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		for _, a := range args {
			id, err := st.live("select", a)
			if err != nil {
				return zygo.SexpNull, err
			}
			st.session.Select(id)
		}
		return refs(st.session.Selection()), nil
	})
	add("deselect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		for _, a := range args {
			id, err := st.live("deselect", a)
			if err != nil {
				return zygo.SexpNull, err
			}
			st.session.Deselect(id)
		}
		return refs(st.session.Selection()), nil
	})
	add("clear_selection", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		st.session.ClearSelection()
		return zygo.SexpNull, nil
	})
	add("selection", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return refs(st.session.Selection()), nil
	})

	// -----------------------------------------------------------------------
	// (union [ref ...]) (difference [base tool ...]) (intersection [ref ...])
	// -----------------------------------------------------------------------
	add("union", st.boolean(st.session.Union))
	add("difference", st.boolean(st.session.Difference))
	add("intersection", st.boolean(st.session.Intersection))

	// -----------------------------------------------------------------------
	// (group [ref ...]) (ungroup [ref])
	// -----------------------------------------------------------------------
	add("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := st.reselect("group", args); err != nil {
			return zygo.SexpNull, err
		}
		id := st.session.Group()
		if id.IsZero() {
			return zygo.SexpNull, nil
		}
		st.created = append(st.created, id)
		return &sexpNodeRef{id: id}, nil
	})
	add("ungroup", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) > 1 {
			return zygo.SexpNull, fmt.Errorf("ungroup takes at most one node reference")
		}
		if err := st.reselect("ungroup", args); err != nil {
			return zygo.SexpNull, err
		}
		ids := st.session.Ungroup()
		st.created = append(st.created, ids...)
		return refs(ids), nil
	})

	// -----------------------------------------------------------------------
	// (count) (history ref)
	// -----------------------------------------------------------------------
	add("count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return &zygo.SexpInt{Val: int64(len(st.session.Elements()))}, nil
	})
	add("history", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("history requires a node reference")
		}
		id, err := toNodeID(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("history: %w", err)
		}
		if st.session.Graph().Get(id) == nil {
			return zygo.SexpNull, fmt.Errorf("history: no node %s", id)
		}
		return refs(st.session.Graph().History(id)), nil
	})
}
