package model

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/geom"
)

// CylinderPatch is the lateral surface of a cylinder section: pipes,
// columns and dowel-like elements decompose into axial bands of these.
// End caps are not part of the patch; loaders that need capped solids
// supply the caps as polygons.
type CylinderPatch struct {
	Base   v3.Vec // center of the lower rim
	Axis   v3.Vec // unit axis direction
	Height float64
	Radius float64

	elem ElementID
}

var _ SurfacePrimitive = (*CylinderPatch)(nil)

// NewCylinderPatch builds a lateral cylinder patch owned by elem.
// Returns false for degenerate dimensions or a zero axis.
func NewCylinderPatch(elem ElementID, base, axis v3.Vec, height, radius float64) (*CylinderPatch, bool) {
	if height <= 0 || radius <= 0 || axis.Length2() < 1e-24 {
		return nil, false
	}
	if !finiteVec(base) || !finiteVec(axis) ||
		math.IsNaN(height) || math.IsInf(height, 0) ||
		math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, false
	}
	return &CylinderPatch{
		Base:   base,
		Axis:   axis.Normalize(),
		Height: height,
		Radius: radius,
		elem:   elem,
	}, true
}

func (c *CylinderPatch) Element() ElementID { return c.elem }

func (c *CylinderPatch) Bounds() geom.Box {
	top := c.Base.Add(c.Axis.MulScalar(c.Height))
	r := v3.Vec{X: c.Radius, Y: c.Radius, Z: c.Radius}
	b := geom.BoxOf(c.Base.Sub(r), c.Base.Add(r), top.Sub(r), top.Add(r))
	return b
}

func (c *CylinderPatch) Area() float64 {
	return 2 * math.Pi * c.Radius * c.Height
}

// Closest returns the nearest point on the lateral surface. Points on the
// axis project to an arbitrary but fixed azimuth so the result is
// deterministic.
func (c *CylinderPatch) Closest(p v3.Vec) v3.Vec {
	d := p.Sub(c.Base)
	h := d.Dot(c.Axis)
	radial := d.Sub(c.Axis.MulScalar(h))
	rl := radial.Length()
	if rl < 1e-12 {
		radial = perpendicular(c.Axis)
		rl = radial.Length()
	}
	hc := math.Min(math.Max(h, 0), c.Height)
	return c.Base.Add(c.Axis.MulScalar(hc)).Add(radial.MulScalar(c.Radius / rl))
}

func (c *CylinderPatch) Distance(p v3.Vec) float64 {
	return p.Sub(c.Closest(p)).Length()
}

func (c *CylinderPatch) SignedDistance(p v3.Vec) float64 {
	d := p.Sub(c.Base)
	h := d.Dot(c.Axis)
	radial := d.Sub(c.Axis.MulScalar(h))
	dist := c.Distance(p)
	if radial.Length() < c.Radius {
		return -dist
	}
	return dist
}

// subdivide splits the patch into axial bands no taller than maxSize.
// The circumference is left whole; the radial bounding box of a band is
// already tight enough for index pruning.
func (c *CylinderPatch) subdivide(maxSize float64, out []SurfacePrimitive) []SurfacePrimitive {
	if maxSize <= 0 || c.Height <= maxSize {
		return append(out, c)
	}
	n := int(math.Ceil(c.Height / maxSize))
	band := c.Height / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, &CylinderPatch{
			Base:   c.Base.Add(c.Axis.MulScalar(float64(i) * band)),
			Axis:   c.Axis,
			Height: band,
			Radius: c.Radius,
			elem:   c.elem,
		})
	}
	return out
}

// perpendicular returns some unit vector perpendicular to the unit
// vector a, chosen deterministically.
func perpendicular(a v3.Vec) v3.Vec {
	ref := v3.Vec{X: 1}
	if math.Abs(a.X) > 0.9 {
		ref = v3.Vec{Y: 1}
	}
	return a.Cross(ref).Normalize()
}
