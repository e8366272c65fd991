package align

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/refseg/refseg/pkg/geom"
)

// solveRigid computes the rigid transform minimizing total squared
// distance between matched point pairs (Kabsch, via SVD of the cross
// covariance). The reflection case is corrected so the result is always
// a proper rotation.
func solveRigid(src, dst []v3.Vec) (geom.Transform, error) {
	n := len(src)
	if n < 3 {
		return geom.Transform{}, fmt.Errorf("align: need at least 3 point pairs, got %d", n)
	}

	cs := centroid(src)
	cd := centroid(dst)

	// Cross covariance H = sum (src-cs)(dst-cd)^T, row major.
	h := make([]float64, 9)
	for i := 0; i < n; i++ {
		a := src[i].Sub(cs)
		b := dst[i].Sub(cd)
		h[0] += a.X * b.X
		h[1] += a.X * b.Y
		h[2] += a.X * b.Z
		h[3] += a.Y * b.X
		h[4] += a.Y * b.Y
		h[5] += a.Y * b.Z
		h[6] += a.Z * b.X
		h[7] += a.Z * b.Y
		h[8] += a.Z * b.Z
	}

	var svd mat.SVD
	if ok := svd.Factorize(mat.NewDense(3, 3, h), mat.SVDFull); !ok {
		return geom.Transform{}, fmt.Errorf("align: SVD of cross covariance failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V * diag(1,1,s) * U^T with s chosen so det(R) = +1.
	r := mulT(&v, &u)
	if det3(r) < 0 {
		// Flip the smallest singular direction: negate V's last column.
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r = mulT(&v, &u)
	}

	t := cd.Sub(apply3(r, cs))
	return geom.NewRigid(r, t)
}

// solveAffine computes the general affine least-squares fit. Requires
// enough pairs in general position to determine 12 parameters.
func solveAffine(src, dst []v3.Vec) (geom.Transform, error) {
	n := len(src)
	if n < 4 {
		return geom.Transform{}, fmt.Errorf("align: need at least 4 point pairs for affine, got %d", n)
	}

	a := mat.NewDense(n, 4, nil)
	b := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, src[i].X)
		a.Set(i, 1, src[i].Y)
		a.Set(i, 2, src[i].Z)
		a.Set(i, 3, 1)
		b.Set(i, 0, dst[i].X)
		b.Set(i, 1, dst[i].Y)
		b.Set(i, 2, dst[i].Z)
	}

	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		return geom.Transform{}, fmt.Errorf("align: affine least squares: %w", err)
	}

	var r [3][3]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			// dst[row] = sum_col x[col][row] * src[col] + x[3][row]
			r[row][col] = x.At(col, row)
		}
	}
	t := v3.Vec{X: x.At(3, 0), Y: x.At(3, 1), Z: x.At(3, 2)}
	return geom.NewAffine(r, t)
}

func centroid(pts []v3.Vec) v3.Vec {
	var c v3.Vec
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.DivScalar(float64(len(pts)))
}

// mulT returns V * U^T as a 3x3 array.
func mulT(v, u *mat.Dense) [3][3]float64 {
	var r [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += v.At(i, k) * u.At(j, k)
			}
			r[i][j] = s
		}
	}
	return r
}

func apply3(r [3][3]float64, p v3.Vec) v3.Vec {
	return v3.Vec{
		X: r[0][0]*p.X + r[0][1]*p.Y + r[0][2]*p.Z,
		Y: r[1][0]*p.X + r[1][1]*p.Y + r[1][2]*p.Z,
		Z: r[2][0]*p.X + r[2][1]*p.Y + r[2][2]*p.Z,
	}
}

func det3(m [3][3]float64) float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}
