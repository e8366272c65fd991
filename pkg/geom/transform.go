package geom

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Kind distinguishes rigid transforms (rotation + translation) from
// general affine ones.
type Kind int

const (
	Rigid Kind = iota
	Affine
)

func (k Kind) String() string {
	if k == Rigid {
		return "rigid"
	}
	return "affine"
}

// RigidTolerance is the default tolerance used to decide whether a linear
// part is orthonormal-within-tolerance and may be declared rigid.
const RigidTolerance = 1e-6

// Transform maps capture-space points into reference-model space:
// p' = R*p + T. The zero value is not valid; use Identity.
type Transform struct {
	R    [3][3]float64
	T    v3.Vec
	Kind Kind
}

// Identity returns the identity rigid transform.
func Identity() Transform {
	return Transform{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// NewRigid builds a rigid transform from a rotation matrix and a
// translation. It fails if the matrix is not orthonormal within
// RigidTolerance or is a reflection.
func NewRigid(r [3][3]float64, t v3.Vec) (Transform, error) {
	tr := Transform{R: r, T: t, Kind: Rigid}
	if !tr.orthonormal(RigidTolerance) {
		return Transform{}, fmt.Errorf("geom: rotation matrix is not orthonormal within %g", RigidTolerance)
	}
	if det3(r) < 0 {
		return Transform{}, fmt.Errorf("geom: rotation matrix is a reflection (det < 0)")
	}
	return tr, nil
}

// NewAffine builds an affine transform. It fails if the linear part is
// singular, since segmentation requires mapping back and forth.
func NewAffine(r [3][3]float64, t v3.Vec) (Transform, error) {
	if math.Abs(det3(r)) < 1e-12 {
		return Transform{}, fmt.Errorf("geom: affine linear part is singular")
	}
	return Transform{R: r, T: t, Kind: Affine}, nil
}

// FromColumnMajor parses a 4x4 matrix given as 16 column-major values,
// the layout the surrounding tooling passes on the command line. The
// bottom row must be (0 0 0 1). The result is classified as rigid when
// the linear part is orthonormal within RigidTolerance.
func FromColumnMajor(vals []float64) (Transform, error) {
	if len(vals) != 16 {
		return Transform{}, fmt.Errorf("geom: expected 16 matrix values, got %d", len(vals))
	}
	at := func(row, col int) float64 { return vals[col*4+row] }
	for col := 0; col < 4; col++ {
		want := 0.0
		if col == 3 {
			want = 1.0
		}
		if math.Abs(at(3, col)-want) > 1e-9 {
			return Transform{}, fmt.Errorf("geom: bottom matrix row must be (0 0 0 1)")
		}
	}
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = at(i, j)
		}
	}
	t := v3.Vec{X: at(0, 3), Y: at(1, 3), Z: at(2, 3)}
	tr := Transform{R: r, T: t, Kind: Affine}
	if tr.orthonormal(RigidTolerance) && det3(r) > 0 {
		tr.Kind = Rigid
	}
	if math.Abs(det3(r)) < 1e-12 {
		return Transform{}, fmt.Errorf("geom: matrix is singular")
	}
	return tr, nil
}

// ToColumnMajor serializes the transform as 16 column-major values with
// a (0 0 0 1) bottom row, the inverse of FromColumnMajor.
func (a Transform) ToColumnMajor() [16]float64 {
	var vals [16]float64
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			vals[col*4+row] = a.R[row][col]
		}
	}
	vals[12], vals[13], vals[14] = a.T.X, a.T.Y, a.T.Z
	vals[15] = 1
	return vals
}

// FromM44 converts an sdfx matrix into a Transform by probing the basis
// vectors. The matrix must be affine (no projective component).
func FromM44(m sdf.M44) Transform {
	o := m.MulPosition(v3.Vec{})
	ex := m.MulPosition(v3.Vec{X: 1}).Sub(o)
	ey := m.MulPosition(v3.Vec{Y: 1}).Sub(o)
	ez := m.MulPosition(v3.Vec{Z: 1}).Sub(o)
	tr := Transform{
		R: [3][3]float64{
			{ex.X, ey.X, ez.X},
			{ex.Y, ey.Y, ez.Y},
			{ex.Z, ey.Z, ez.Z},
		},
		T:    o,
		Kind: Affine,
	}
	if tr.orthonormal(RigidTolerance) && det3(tr.R) > 0 {
		tr.Kind = Rigid
	}
	return tr
}

// RotationX returns the rigid rotation by angle radians about the X axis.
func RotationX(angle float64) Transform {
	s, c := math.Sin(angle), math.Cos(angle)
	return Transform{R: [3][3]float64{{1, 0, 0}, {0, c, -s}, {0, s, c}}}
}

// RotationY returns the rigid rotation by angle radians about the Y axis.
func RotationY(angle float64) Transform {
	s, c := math.Sin(angle), math.Cos(angle)
	return Transform{R: [3][3]float64{{c, 0, s}, {0, 1, 0}, {-s, 0, c}}}
}

// RotationZ returns the rigid rotation by angle radians about the Z axis.
func RotationZ(angle float64) Transform {
	s, c := math.Sin(angle), math.Cos(angle)
	return Transform{R: [3][3]float64{{c, -s, 0}, {s, c, 0}, {0, 0, 1}}}
}

// Translation returns the rigid translation by t.
func Translation(t v3.Vec) Transform {
	tr := Identity()
	tr.T = t
	return tr
}

// Apply maps a point through the transform.
func (a Transform) Apply(p v3.Vec) v3.Vec {
	return v3.Vec{
		X: a.R[0][0]*p.X + a.R[0][1]*p.Y + a.R[0][2]*p.Z + a.T.X,
		Y: a.R[1][0]*p.X + a.R[1][1]*p.Y + a.R[1][2]*p.Z + a.T.Y,
		Z: a.R[2][0]*p.X + a.R[2][1]*p.Y + a.R[2][2]*p.Z + a.T.Z,
	}
}

// ApplyDir maps a direction (no translation) through the transform.
func (a Transform) ApplyDir(d v3.Vec) v3.Vec {
	return v3.Vec{
		X: a.R[0][0]*d.X + a.R[0][1]*d.Y + a.R[0][2]*d.Z,
		Y: a.R[1][0]*d.X + a.R[1][1]*d.Y + a.R[1][2]*d.Z,
		Z: a.R[2][0]*d.X + a.R[2][1]*d.Y + a.R[2][2]*d.Z,
	}
}

// Compose returns a∘b: the transform that applies b first, then a.
func (a Transform) Compose(b Transform) Transform {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = a.R[i][0]*b.R[0][j] + a.R[i][1]*b.R[1][j] + a.R[i][2]*b.R[2][j]
		}
	}
	out := Transform{R: r, T: a.Apply(b.T), Kind: Affine}
	if a.Kind == Rigid && b.Kind == Rigid {
		out.Kind = Rigid
	}
	return out
}

// Inverse returns the inverse transform. Rigid transforms invert by
// transposition; affine ones require a non-singular linear part.
func (a Transform) Inverse() (Transform, error) {
	var inv [3][3]float64
	if a.Kind == Rigid {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				inv[i][j] = a.R[j][i]
			}
		}
	} else {
		var ok bool
		inv, ok = inv3(a.R)
		if !ok {
			return Transform{}, fmt.Errorf("geom: transform is singular, cannot invert")
		}
	}
	out := Transform{R: inv, Kind: a.Kind}
	out.T = out.ApplyDir(a.T.Neg())
	return out, nil
}

// IsRigid reports whether the linear part is orthonormal within tol and
// orientation preserving, regardless of the declared Kind.
func (a Transform) IsRigid(tol float64) bool {
	return a.orthonormal(tol) && det3(a.R) > 0
}

// Delta measures the magnitude of this transform as an update: the
// Frobenius norm of (R - I) scaled by radius, plus the translation norm.
// radius should be a characteristic scene radius so rotation and
// translation are in comparable units.
func (a Transform) Delta(radius float64) float64 {
	var fr float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := a.R[i][j]
			if i == j {
				d -= 1
			}
			fr += d * d
		}
	}
	return math.Sqrt(fr)*radius + a.T.Length()
}

func (a Transform) orthonormal(tol float64) bool {
	// R * R^T must be the identity within tol.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var dot float64
			for k := 0; k < 3; k++ {
				dot += a.R[i][k] * a.R[j][k]
			}
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(dot-want) > tol {
				return false
			}
		}
	}
	return true
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

func inv3(m [3][3]float64) ([3][3]float64, bool) {
	d := det3(m)
	if math.Abs(d) < 1e-12 {
		return [3][3]float64{}, false
	}
	id := 1.0 / d
	var inv [3][3]float64
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * id
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * id
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * id
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * id
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * id
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * id
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * id
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * id
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * id
	return inv, true
}
