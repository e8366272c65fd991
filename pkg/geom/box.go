// Package geom provides the shared geometric vocabulary for the
// segmentation engine: axis-aligned boxes and rigid/affine transforms.
// Vectors are sdfx vectors (vec/v3.Vec) so geometry can flow into sdfx
// utilities without conversion.
package geom

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

// Box is an axis-aligned bounding box. It aliases the sdfx box type.
type Box = sdf.Box3

// BoxOf returns the smallest box enclosing the given points.
// Panics if called with no points; callers always have at least one.
func BoxOf(pts ...v3.Vec) Box {
	if len(pts) == 0 {
		panic("geom: BoxOf called with no points")
	}
	b := Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

// BoxDist2 returns the squared distance from p to the box.
// Zero if p lies inside the box. This is an admissible lower bound on the
// distance to anything contained in the box.
func BoxDist2(b Box, p v3.Vec) float64 {
	var d2 float64
	d2 += axisDist2(p.X, b.Min.X, b.Max.X)
	d2 += axisDist2(p.Y, b.Min.Y, b.Max.Y)
	d2 += axisDist2(p.Z, b.Min.Z, b.Max.Z)
	return d2
}

func axisDist2(v, lo, hi float64) float64 {
	if v < lo {
		return (lo - v) * (lo - v)
	}
	if v > hi {
		return (v - hi) * (v - hi)
	}
	return 0
}

// BoxRect converts a box to an rtreego rectangle. Degenerate extents
// (planar or linear boxes) are padded so the R-tree never sees a
// zero-length side.
func BoxRect(b Box, pad float64) (rtreego.Rect, error) {
	if pad <= 0 {
		pad = 1e-9
	}
	size := b.Size()
	lengths := []float64{size.X, size.Y, size.Z}
	for i := range lengths {
		if lengths[i] < pad {
			lengths[i] = pad
		}
	}
	r, err := rtreego.NewRect(rtreego.Point{b.Min.X, b.Min.Y, b.Min.Z}, lengths)
	if err != nil {
		return rtreego.Rect{}, fmt.Errorf("geom: box to rect: %w", err)
	}
	return r, nil
}

// Diagonal returns the length of the box diagonal.
func Diagonal(b Box) float64 {
	return b.Size().Length()
}

// Finite reports whether all box coordinates are finite numbers.
func Finite(b Box) bool {
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
