// Package cloud holds the generic point buffer handed to the engine by an
// external point-cloud loader. Points are ephemeral: they exist for the
// duration of a processing pass and carry their capture attributes through
// untouched.
package cloud

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/geom"
)

// Point is a single captured point in capture-space coordinates with its
// optional pass-through attributes.
type Point struct {
	Pos       v3.Vec
	Intensity uint16
	R, G, B   uint8
}

// Cloud is an unordered set of captured points.
type Cloud struct {
	points []Point
	bounds geom.Box
}

// New builds a cloud from a point slice. The slice is owned by the cloud
// afterwards and must not be mutated by the caller.
func New(points []Point) *Cloud {
	c := &Cloud{points: points}
	if len(points) > 0 {
		b := geom.Box{Min: points[0].Pos, Max: points[0].Pos}
		for _, p := range points[1:] {
			b.Min = b.Min.Min(p.Pos)
			b.Max = b.Max.Max(p.Pos)
		}
		c.bounds = b
	}
	return c
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	return len(c.points)
}

// At returns the point at index i.
func (c *Cloud) At(i int) Point {
	return c.points[i]
}

// Pos returns the coordinate of the point at index i.
func (c *Cloud) Pos(i int) v3.Vec {
	return c.points[i].Pos
}

// Bounds returns the capture-space bounding box. Meaningless for an empty
// cloud.
func (c *Cloud) Bounds() geom.Box {
	return c.bounds
}

// Radius returns half the bounding-box diagonal, a characteristic scene
// scale used to weigh rotation against translation.
func (c *Cloud) Radius() float64 {
	return geom.Diagonal(c.bounds) / 2
}

// Transformed returns a new cloud with every coordinate mapped through tr.
// Attributes are copied through untouched.
func (c *Cloud) Transformed(tr geom.Transform) *Cloud {
	out := make([]Point, len(c.points))
	for i, p := range c.points {
		p.Pos = tr.Apply(p.Pos)
		out[i] = p
	}
	return New(out)
}
