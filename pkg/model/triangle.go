package model

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/geom"
)

// Triangle is a planar surface primitive. Polygonal faces are fanned into
// triangles at build time, so the triangle is the only planar primitive
// the index ever sees.
type Triangle struct {
	A, B, C v3.Vec

	elem   ElementID
	normal v3.Vec // unit normal, (B-A)x(C-A) orientation
	area   float64
}

var _ SurfacePrimitive = (*Triangle)(nil)

// NewTriangle builds a triangle primitive owned by elem. Returns false if
// the triangle is degenerate (zero area within tolerance).
func NewTriangle(elem ElementID, a, b, c v3.Vec) (*Triangle, bool) {
	cross := b.Sub(a).Cross(c.Sub(a))
	twice := cross.Length()
	if twice < 1e-12 || !finiteVec(a) || !finiteVec(b) || !finiteVec(c) {
		return nil, false
	}
	return &Triangle{
		A:      a,
		B:      b,
		C:      c,
		elem:   elem,
		normal: cross.DivScalar(twice),
		area:   twice / 2,
	}, true
}

func (t *Triangle) Element() ElementID { return t.elem }

func (t *Triangle) Bounds() geom.Box { return geom.BoxOf(t.A, t.B, t.C) }

func (t *Triangle) Area() float64 { return t.area }

// Normal returns the unit normal of the triangle plane.
func (t *Triangle) Normal() v3.Vec { return t.normal }

// Closest returns the point on the triangle nearest to p, computed by
// classifying p against the triangle's Voronoi regions.
func (t *Triangle) Closest(p v3.Vec) v3.Vec {
	ab := t.B.Sub(t.A)
	ac := t.C.Sub(t.A)
	ap := p.Sub(t.A)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return t.A
	}

	bp := p.Sub(t.B)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return t.B
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return t.A.Add(ab.MulScalar(v))
	}

	cp := p.Sub(t.C)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return t.C
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return t.A.Add(ac.MulScalar(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return t.B.Add(t.C.Sub(t.B).MulScalar(w))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return t.A.Add(ab.MulScalar(v)).Add(ac.MulScalar(w))
}

func (t *Triangle) Distance(p v3.Vec) float64 {
	return p.Sub(t.Closest(p)).Length()
}

func (t *Triangle) SignedDistance(p v3.Vec) float64 {
	d := t.Distance(p)
	if p.Sub(t.A).Dot(t.normal) < 0 {
		return -d
	}
	return d
}

// subdivide splits the triangle at the midpoint of its longest edge until
// no edge exceeds maxSize, appending the pieces to out. maxSize <= 0
// disables subdivision.
func (t *Triangle) subdivide(maxSize float64, out []SurfacePrimitive) []SurfacePrimitive {
	if maxSize <= 0 || t.longestEdge() <= maxSize {
		return append(out, t)
	}
	a, b, c := t.A, t.B, t.C
	// Rotate vertices so (a,b) is the longest edge.
	lab := b.Sub(a).Length2()
	lbc := c.Sub(b).Length2()
	lca := a.Sub(c).Length2()
	switch {
	case lbc >= lab && lbc >= lca:
		a, b, c = b, c, a
	case lca >= lab && lca >= lbc:
		a, b, c = c, a, b
	}
	mid := a.Add(b).MulScalar(0.5)
	if left, ok := NewTriangle(t.elem, a, mid, c); ok {
		out = left.subdivide(maxSize, out)
	}
	if right, ok := NewTriangle(t.elem, mid, b, c); ok {
		out = right.subdivide(maxSize, out)
	}
	return out
}

func (t *Triangle) longestEdge() float64 {
	return math.Sqrt(math.Max(t.B.Sub(t.A).Length2(),
		math.Max(t.C.Sub(t.B).Length2(), t.A.Sub(t.C).Length2())))
}

func finiteVec(v v3.Vec) bool {
	for _, f := range []float64{v.X, v.Y, v.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
