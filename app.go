package main

import (
	"context"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/engine"
	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/graph"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to elements.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// selectedColor highlights selected elements.
const selectedColor = "#FFD54F"

// App is the Wails backend. It exposes methods to the frontend via bindings.
type App struct {
	ctx    context.Context
	log    *slog.Logger
	engine *engine.Engine
}

// MeshData is the JSON-serializable mesh format sent to the frontend.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	NodeID   int64     `json:"nodeId"`
	Name     string    `json:"name"`
	Color    string    `json:"color"`
	Selected bool      `json:"selected"`
	Degraded bool      `json:"degraded"`
}

// EvalErrorData is a JSON-serializable eval error or warning for the frontend.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
	NodeID  int64  `json:"nodeId,omitempty"`
}

// EvalResult is the full result returned to the frontend: the scene after
// the call plus whatever went wrong on the way.
type EvalResult struct {
	Value     string          `json:"value"`
	Meshes    []MeshData      `json:"meshes"`
	Selection []int64         `json:"selection"`
	Errors    []EvalErrorData `json:"errors"`
	Warnings  []EvalErrorData `json:"warnings"`
}

// NewApp creates a new App on the configured kernel.
func NewApp(cfg *config.Config, log *slog.Logger) *App {
	return &App{log: log, engine: engine.New(cfg, log)}
}

// newAppWithEngine is used by tests to run the bindings on another kernel.
func newAppWithEngine(eng *engine.Engine, log *slog.Logger) *App {
	return &App{log: log, engine: eng}
}

// startup is called by Wails on app startup. The context is saved
// so we can call Wails runtime methods later if needed.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

func (a *App) context() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// Evaluate runs script source against the scene and returns the resulting
// meshes and diagnostics. This is the primary binding called by the
// frontend editor.
func (a *App) Evaluate(source string) EvalResult {
	res, err := a.engine.Evaluate(a.context(), source)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		a.log.Error("evaluate failed", "err", err)
		result := a.Scene()
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	result := a.Scene()
	result.Value = res.Value
	for _, e := range res.Errors {
		result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Line:    w.Line,
			Col:     w.Col,
			Message: w.Message,
			NodeID:  int64(w.NodeID),
		})
	}
	return result
}

// Scene returns the current scene without changing it.
func (a *App) Scene() EvalResult {
	return a.edit(func(*scene.Session) {})
}

// Select adds the element, and everything sharing its body, to the selection.
func (a *App) Select(id int64) EvalResult {
	return a.edit(func(s *scene.Session) { s.Select(graph.NodeID(id)) })
}

// Deselect removes the element from the selection.
func (a *App) Deselect(id int64) EvalResult {
	return a.edit(func(s *scene.Session) { s.Deselect(graph.NodeID(id)) })
}

// ClearSelection empties the selection.
func (a *App) ClearSelection() EvalResult {
	return a.edit(func(s *scene.Session) { s.ClearSelection() })
}

// Move places an element at a new world position.
func (a *App) Move(id int64, x, y, z float64) EvalResult {
	return a.edit(func(s *scene.Session) { s.Move(graph.NodeID(id), mgl64.Vec3{x, y, z}) })
}

// Delete removes an element from the scene. Its history is kept.
func (a *App) Delete(id int64) EvalResult {
	return a.edit(func(s *scene.Session) { s.Remove(graph.NodeID(id)) })
}

// Union combines the selection.
func (a *App) Union() EvalResult {
	return a.boolean((*scene.Session).Union)
}

// Difference subtracts the rest of the selection from the first pick.
func (a *App) Difference() EvalResult {
	return a.boolean((*scene.Session).Difference)
}

// Intersection keeps what the selection has in common.
func (a *App) Intersection() EvalResult {
	return a.boolean((*scene.Session).Intersection)
}

// Group collects the selection into one element.
func (a *App) Group() EvalResult {
	return a.edit(func(s *scene.Session) { s.Group() })
}

// Ungroup splits the selected group back into its children.
func (a *App) Ungroup() EvalResult {
	return a.edit(func(s *scene.Session) { s.Ungroup() })
}

func (a *App) boolean(run func(*scene.Session, context.Context) (scene.Result, error)) EvalResult {
	var (
		res scene.Result
		err error
	)
	result := a.edit(func(s *scene.Session) { res, err = run(s, a.context()) })
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if res.Degraded {
		result.Warnings = append(result.Warnings, EvalErrorData{
			Message: "union kernel failed; result is an unfused concatenation",
			NodeID:  int64(res.ID),
		})
	}
	return result
}

// edit applies fn to the session and snapshots the result under the same
// lock.
func (a *App) edit(fn func(s *scene.Session)) EvalResult {
	var result EvalResult
	a.engine.Do(func(s *scene.Session) {
		fn(s)
		result = snapshot(s)
	})
	return result
}

// snapshot converts the live scene to the frontend format. Slices are
// non-nil so they serialize as [] rather than null.
func snapshot(s *scene.Session) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
		Selection: lo.Map(s.Selection(), func(id graph.NodeID, _ int) int64 {
			return int64(id)
		}),
	}

	objects := s.Objects()
	for i, el := range s.Elements() {
		m, ok := objects[el.NodeID].(*kernel.Mesh)
		if !ok {
			m = tessellate.Body(el.Body, el.Position)
		}
		color := colorPalette[i%len(colorPalette)]
		if el.Selected {
			color = selectedColor
		}
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			NodeID:   int64(el.NodeID),
			Name:     el.NodeID.String(),
			Color:    color,
			Selected: el.Selected,
			Degraded: isDegraded(el),
		})
	}
	return result
}

func isDegraded(el scene.Element) bool {
	c, ok := el.Body.(*geom.Compound)
	return ok && c.Degraded()
}
