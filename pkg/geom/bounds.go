package geom

import "math"

// Bounds is an axis-aligned bounding box. The zero value is not empty; use
// NewBounds for an accumulator.
type Bounds struct {
	Min Vertex
	Max Vertex
}

// NewBounds returns an empty (inverted) box ready for Extend.
func NewBounds() Bounds {
	return Bounds{
		Min: Vertex{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		Max: Vertex{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
}

// BoundsOf converts a kernel-style min/max pair.
func BoundsOf(min, max [3]float64) Bounds {
	return Bounds{
		Min: Vertex{X: min[0], Y: min[1], Z: min[2]},
		Max: Vertex{X: max[0], Y: max[1], Z: max[2]},
	}
}

// Empty reports whether nothing has been added.
func (b Bounds) Empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend grows the box to include v.
func (b *Bounds) Extend(v Vertex) {
	b.Min = Vertex{math.Min(b.Min.X, v.X), math.Min(b.Min.Y, v.Y), math.Min(b.Min.Z, v.Z)}
	b.Max = Vertex{math.Max(b.Max.X, v.X), math.Max(b.Max.Y, v.Y), math.Max(b.Max.Z, v.Z)}
}

// Union grows the box to include o.
func (b *Bounds) Union(o Bounds) {
	if o.Empty() {
		return
	}
	b.Extend(o.Min)
	b.Extend(o.Max)
}

// Translate returns the box shifted by d.
func (b Bounds) Translate(d Vertex) Bounds {
	if b.Empty() {
		return b
	}
	return Bounds{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Center returns the midpoint. An empty box has center at the origin.
func (b Bounds) Center() Vertex {
	if b.Empty() {
		return Vertex{}
	}
	return Vertex{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// Size returns the box dimensions.
func (b Bounds) Size() Vertex {
	if b.Empty() {
		return Vertex{}
	}
	return b.Max.Sub(b.Min)
}
