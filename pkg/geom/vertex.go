package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultTolerance is the absolute per-component tolerance used when matching
// vertices that have been through a kernel round-trip.
const DefaultTolerance = 1e-6

// Vertex is a point in local (object-relative) coordinates.
type Vertex struct {
	X, Y, Z float64
}

// V is shorthand for Vertex{X: x, Y: y, Z: z}.
func V(x, y, z float64) Vertex {
	return Vertex{X: x, Y: y, Z: z}
}

// FromVec converts an mgl64 vector to a Vertex.
func FromVec(v mgl64.Vec3) Vertex {
	return Vertex{X: v[0], Y: v[1], Z: v[2]}
}

// Vec returns the vertex as an mgl64 vector.
func (v Vertex) Vec() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// Add returns v + o.
func (v Vertex) Add(o Vertex) Vertex {
	return Vertex{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vertex) Sub(o Vertex) Vertex {
	return Vertex{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Cross returns the cross product v × o.
func (v Vertex) Cross(o Vertex) Vertex {
	return FromVec(v.Vec().Cross(o.Vec()))
}

// Length returns the Euclidean norm of v.
func (v Vertex) Length() float64 {
	return v.Vec().Len()
}

// Equals reports exact componentwise equality. Use it for identity checks on
// geometry that has not left the process.
func (v Vertex) Equals(o Vertex) bool {
	return v == o
}

// EqualsTol reports whether every component of v is within tol of o.
// NaN components never compare equal.
func (v Vertex) EqualsTol(o Vertex, tol float64) bool {
	return math.Abs(v.X-o.X) <= tol &&
		math.Abs(v.Y-o.Y) <= tol &&
		math.Abs(v.Z-o.Z) <= tol
}

// ApproxEquals is EqualsTol with DefaultTolerance.
func (v Vertex) ApproxEquals(o Vertex) bool {
	return v.EqualsTol(o, DefaultTolerance)
}

func (v Vertex) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}
