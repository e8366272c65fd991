package model

import (
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

func mustTriangle(t *testing.T, a, b, c v3.Vec) *Triangle {
	t.Helper()
	tri, ok := NewTriangle("elem", a, b, c)
	if !ok {
		t.Fatalf("NewTriangle(%v, %v, %v) degenerate", a, b, c)
	}
	return tri
}

func TestNewTriangleDegenerate(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c v3.Vec
	}{
		{"collinear", v3.Vec{}, v3.Vec{X: 1}, v3.Vec{X: 2}},
		{"repeated vertex", v3.Vec{}, v3.Vec{}, v3.Vec{Y: 1}},
		{"nan vertex", v3.Vec{X: math.NaN()}, v3.Vec{X: 1}, v3.Vec{Y: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := NewTriangle("e", tt.a, tt.b, tt.c); ok {
				t.Error("NewTriangle accepted degenerate geometry")
			}
		})
	}
}

func TestTriangleClosest(t *testing.T) {
	// Unit right triangle in the z=0 plane.
	tri := mustTriangle(t, v3.Vec{}, v3.Vec{X: 1}, v3.Vec{Y: 1})

	tests := []struct {
		name string
		p    v3.Vec
		want v3.Vec
	}{
		{"above interior", v3.Vec{X: 0.25, Y: 0.25, Z: 5}, v3.Vec{X: 0.25, Y: 0.25}},
		{"beyond vertex A", v3.Vec{X: -1, Y: -1, Z: 0}, v3.Vec{}},
		{"beyond vertex B", v3.Vec{X: 3, Y: -1, Z: 0}, v3.Vec{X: 1}},
		{"beyond vertex C", v3.Vec{X: -1, Y: 3, Z: 0}, v3.Vec{Y: 1}},
		{"beside edge AB", v3.Vec{X: 0.5, Y: -2, Z: 0}, v3.Vec{X: 0.5}},
		{"beside edge AC", v3.Vec{X: -2, Y: 0.5, Z: 0}, v3.Vec{Y: 0.5}},
		{"beside hypotenuse", v3.Vec{X: 1, Y: 1, Z: 0}, v3.Vec{X: 0.5, Y: 0.5}},
		{"on surface", v3.Vec{X: 0.1, Y: 0.1, Z: 0}, v3.Vec{X: 0.1, Y: 0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tri.Closest(tt.p)
			if got.Sub(tt.want).Length() > 1e-12 {
				t.Errorf("Closest(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestTriangleDistanceSigned(t *testing.T) {
	tri := mustTriangle(t, v3.Vec{}, v3.Vec{X: 1}, v3.Vec{Y: 1})
	p := v3.Vec{X: 0.25, Y: 0.25, Z: 0.5}
	if d := tri.Distance(p); math.Abs(d-0.5) > 1e-12 {
		t.Errorf("Distance = %g, want 0.5", d)
	}
	if d := tri.SignedDistance(p); math.Abs(d-0.5) > 1e-12 {
		t.Errorf("SignedDistance above = %g, want +0.5", d)
	}
	below := v3.Vec{X: 0.25, Y: 0.25, Z: -0.5}
	if d := tri.SignedDistance(below); math.Abs(d+0.5) > 1e-12 {
		t.Errorf("SignedDistance below = %g, want -0.5", d)
	}
}

func TestTriangleArea(t *testing.T) {
	tri := mustTriangle(t, v3.Vec{}, v3.Vec{X: 2}, v3.Vec{Y: 2})
	if math.Abs(tri.Area()-2) > 1e-12 {
		t.Errorf("Area = %g, want 2", tri.Area())
	}
}

func TestTriangleSubdivide(t *testing.T) {
	tri := mustTriangle(t, v3.Vec{}, v3.Vec{X: 4}, v3.Vec{Y: 4})
	pieces := tri.subdivide(1.0, nil)
	if len(pieces) < 2 {
		t.Fatalf("subdivide produced %d pieces, want several", len(pieces))
	}
	var area float64
	for _, p := range pieces {
		area += p.Area()
		if pt, ok := p.(*Triangle); !ok {
			t.Fatalf("subdivide produced %T", p)
		} else if pt.longestEdge() > 1.0+1e-9 {
			t.Errorf("piece edge %g exceeds max size", pt.longestEdge())
		}
		if p.Element() != tri.Element() {
			t.Errorf("piece element = %q, want %q", p.Element(), tri.Element())
		}
	}
	if math.Abs(area-tri.Area()) > 1e-9 {
		t.Errorf("subdivision area = %g, want %g", area, tri.Area())
	}
}

func TestTriangleSubdivideDisabled(t *testing.T) {
	tri := mustTriangle(t, v3.Vec{}, v3.Vec{X: 4}, v3.Vec{Y: 4})
	pieces := tri.subdivide(0, nil)
	if len(pieces) != 1 {
		t.Errorf("subdivide(0) produced %d pieces, want 1", len(pieces))
	}
}
