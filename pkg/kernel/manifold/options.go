package manifold

import (
	"context"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
)

// DefaultSheetThickness is the extrusion depth given to flat breps.
const DefaultSheetThickness = 0.1

type settings struct {
	thickness float64
	tolerance float64
}

// Option configures the manifold kernel.
type Option func(*settings)

// WithSheetThickness sets the extrusion depth for flat breps.
func WithSheetThickness(t float64) Option {
	return func(s *settings) {
		if t > 0 {
			s.thickness = t
		}
	}
}

// WithTolerance sets the weld tolerance used by ShapeToBrep and the
// flatness test for sheets.
func WithTolerance(tol float64) Option {
	return func(s *settings) {
		if tol > 0 {
			s.tolerance = tol
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{thickness: DefaultSheetThickness, tolerance: geom.DefaultTolerance}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Factory returns a kernel.Factory that builds the manifold kernel. In
// builds without the manifold tag the factory fails, and so does the handle
// wrapping it.
func Factory(opts ...Option) kernel.Factory {
	return func(ctx context.Context) (kernel.Kernel, error) {
		return New(opts...)
	}
}
