package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/chazu/facet/pkg/geom"
	"github.com/chazu/facet/pkg/kernel"
)

// polyhedron is an SDF3 over a closed triangle mesh. The distance is exact
// (closest point over all triangles); the sign comes from the generalized
// winding number, so face orientation does not matter.
//
// Every exact evaluation visits all triangles. Points further than margin
// from the bounding box get the distance to the box instead, a lower bound
// that keeps the sign and skips the scan.
type polyhedron struct {
	tris   [][3]mgl64.Vec3
	bb     sdf.Box3
	margin float64
}

// newPolyhedron fan-triangulates every face of b.
func newPolyhedron(b *geom.Brep) (*polyhedron, error) {
	p := &polyhedron{}
	for _, f := range b.Faces {
		v := b.FaceVertices(f)
		for i := 1; i+1 < len(v); i++ {
			t := [3]mgl64.Vec3{v[0].Vec(), v[i].Vec(), v[i+1].Vec()}
			n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
			if !(n.Len() > 0) {
				continue
			}
			p.tris = append(p.tris, t)
		}
	}
	if len(p.tris) == 0 {
		return nil, fmt.Errorf("sdfx: brep has only degenerate faces: %w", kernel.ErrEmptyShape)
	}
	bb := b.Bounds()
	p.bb = sdf.Box3{
		Min: v3.Vec{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z},
		Max: v3.Vec{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z},
	}
	p.margin = 0.1 * bb.Size().Length()
	return p, nil
}

// Evaluate returns the signed distance from q to the surface.
func (p *polyhedron) Evaluate(q v3.Vec) float64 {
	if d := p.boxDistance(q); d > p.margin {
		return d
	}
	return p.exact(q)
}

// boxDistance is the distance from q to the bounding box, zero inside it.
func (p *polyhedron) boxDistance(q v3.Vec) float64 {
	dx := math.Max(math.Max(p.bb.Min.X-q.X, q.X-p.bb.Max.X), 0)
	dy := math.Max(math.Max(p.bb.Min.Y-q.Y, q.Y-p.bb.Max.Y), 0)
	dz := math.Max(math.Max(p.bb.Min.Z-q.Z, q.Z-p.bb.Max.Z), 0)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// exact scans every triangle.
func (p *polyhedron) exact(q v3.Vec) float64 {
	x := mgl64.Vec3{q.X, q.Y, q.Z}
	d := math.Inf(1)
	var winding float64
	for _, t := range p.tris {
		c := closestPointTriangle(x, t[0], t[1], t[2])
		d = math.Min(d, c.Sub(x).Len())
		winding += solidAngle(x, t[0], t[1], t[2])
	}
	if math.Abs(winding) > 2*math.Pi {
		return -d
	}
	return d
}

// BoundingBox returns the bounds of the source brep.
func (p *polyhedron) BoundingBox() sdf.Box3 {
	return p.bb
}

// solidAngle is the signed solid angle subtended by triangle abc at x
// (Van Oosterom and Strackee).
func solidAngle(x, a, b, c mgl64.Vec3) float64 {
	a, b, c = a.Sub(x), b.Sub(x), c.Sub(x)
	la, lb, lc := a.Len(), b.Len(), c.Len()
	num := a.Dot(b.Cross(c))
	den := la*lb*lc + a.Dot(b)*lc + a.Dot(c)*lb + b.Dot(c)*la
	return 2 * math.Atan2(num, den)
}

// closestPointTriangle returns the point of triangle abc nearest to p,
// walking the Voronoi regions of the vertices, edges and face in turn.
func closestPointTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}

	denom := 1 / (va + vb + vc)
	return a.Add(ab.Mul(vb * denom)).Add(ac.Mul(vc * denom))
}
