package engine

import (
	"log/slog"

	"github.com/chazu/facet/pkg/config"
	"github.com/chazu/facet/pkg/kernel"
	"github.com/chazu/facet/pkg/kernel/manifold"
	"github.com/chazu/facet/pkg/kernel/sdfx"
	"github.com/chazu/facet/pkg/scene"
	"github.com/chazu/facet/pkg/tessellate"
)

// KernelHandle returns an uninitialized handle for the configured backend.
// The backend is built on first use.
func KernelHandle(cfg *config.Config, log *slog.Logger) *kernel.Handle {
	var f kernel.Factory
	switch cfg.Kernel.Backend {
	case config.BackendManifold:
		f = manifold.Factory(
			manifold.WithSheetThickness(cfg.Kernel.SheetThickness),
			manifold.WithTolerance(cfg.Geometry.Tolerance),
		)
	default:
		f = sdfx.Factory(
			sdfx.WithMeshCells(cfg.Kernel.MeshCells),
			sdfx.WithSheetThickness(cfg.Kernel.SheetThickness),
			sdfx.WithTolerance(cfg.Geometry.Tolerance),
		)
	}
	return kernel.NewHandle(f, kernel.WithHandleLogger(log))
}

// NewSession builds a session over h with the configured tolerance and
// union fallback, rendering elements to meshes. Extra options are applied
// last.
func NewSession(cfg *config.Config, h *kernel.Handle, log *slog.Logger, opts ...scene.Option) *scene.Session {
	base := []scene.Option{
		scene.WithLogger(log),
		scene.WithTolerance(cfg.Geometry.Tolerance),
		scene.WithUnionFallback(cfg.Union.FallbackEnabled()),
		scene.WithRenderer(tessellate.Renderer{}),
	}
	return scene.NewSession(scene.NewEditor(h, append(base, opts...)...))
}

// New wires a config into a ready-to-use engine on the sdfx kernel.
func New(cfg *config.Config, log *slog.Logger) *Engine {
	s := NewSession(cfg, KernelHandle(cfg, log), log)
	return NewEngine(s, WithTimeout(cfg.Script.Timeout.Duration()), WithLogger(log))
}
