// Package align verifies or refines the transform mapping a captured
// point cloud into the reference model's coordinate frame. Refinement is
// iterative-closest-point style: sample points, match each against the
// nearest reference surface through the spatial index, solve for the
// transform minimizing the matched squared distances, compose, repeat
// until the update falls below the convergence threshold.
package align

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/cloud"
	"github.com/refseg/refseg/pkg/geom"
	"github.com/refseg/refseg/pkg/index"
)

// Options configures alignment. The zero value is usable: every field
// has a working default.
type Options struct {
	// MaxIterations bounds the refinement loop. Default 100: the
	// point-to-point solve shrinks the update geometrically, so tight
	// thresholds routinely need several dozen iterations.
	MaxIterations int
	// ConvergenceThreshold is the update magnitude, in scene units,
	// below which refinement stops. Default 1e-4.
	ConvergenceThreshold float64
	// SampleSize bounds how many points participate per iteration.
	// Default 2000. The whole cloud is used when smaller than this.
	SampleSize int
	// Seed drives the deterministic point sampling.
	Seed int64
	// Workers is the matching parallelism. Default NumCPU.
	Workers int
	// Candidates is the k for nearest-primitive queries. Default 8.
	Candidates int
	// AllowAffine switches the per-iteration solve from rigid Kabsch to
	// a general affine least-squares fit.
	AllowAffine bool
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 100
	}
	if o.ConvergenceThreshold <= 0 {
		o.ConvergenceThreshold = 1e-4
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 2000
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Candidates <= 0 {
		o.Candidates = 8
	}
	return o
}

// FitQuality summarizes how well the transform maps the sampled points
// onto reference surfaces.
type FitQuality struct {
	MeanResidual   float64
	MedianResidual float64
	Iterations     int
	Converged      bool
	Diverged       bool
	SampleCount    int
}

// Result is a refined transform plus its fit quality.
type Result struct {
	Transform geom.Transform
	Fit       FitQuality
}

// AlignmentDivergenceError reports refinement that failed to converge
// within the iteration budget or actively diverged. It accompanies the
// last transform reached, so the caller can decide to proceed with it,
// abort, or fall back to the initial transform.
type AlignmentDivergenceError struct {
	Iterations   int
	LastResidual float64
	Diverging    bool
}

func (e *AlignmentDivergenceError) Error() string {
	if e.Diverging {
		return fmt.Sprintf("alignment diverged after %d iterations (residual %g)", e.Iterations, e.LastResidual)
	}
	return fmt.Sprintf("alignment did not converge within %d iterations (residual %g)", e.Iterations, e.LastResidual)
}

// Refine runs ICP refinement from the initial transform. On divergence
// or a blown iteration budget it still returns the last Result alongside
// an *AlignmentDivergenceError. Cancellation is checked between
// iterations; a cancelled run returns only the context error.
func Refine(ctx context.Context, c *cloud.Cloud, ix *index.Index, initial geom.Transform, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if c.Len() == 0 {
		return Result{}, fmt.Errorf("align: empty point cloud")
	}

	samples := samplePoints(c, opts.SampleSize, opts.Seed)
	radius := c.Radius()
	if radius <= 0 {
		radius = 1
	}

	current := initial
	fit := FitQuality{SampleCount: len(samples)}
	prevResidual := 0.0
	firstDelta := 0.0
	increases := 0

	for it := 1; it <= opts.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		fit.Iterations = it

		src, dst, res, err := matchSamples(ctx, c, ix, current, samples, opts)
		if err != nil {
			return Result{}, err
		}
		mean := meanOf(res)

		if it > 1 && mean > prevResidual {
			increases++
			if increases >= 2 {
				fit.Diverged = true
				break
			}
		} else {
			increases = 0
		}
		prevResidual = mean

		update, err := solveUpdate(src, dst, opts.AllowAffine)
		if err != nil {
			// A degenerate sampling (all matches coplanar collapse the
			// solve) is reported as divergence, not silently accepted.
			fit.Diverged = true
			break
		}
		current = update.Compose(current)

		delta := update.Delta(radius)
		if it == 1 {
			firstDelta = delta
		} else if firstDelta > 0 && delta > 10*firstDelta {
			fit.Diverged = true
			break
		}
		if delta < opts.ConvergenceThreshold {
			fit.Converged = true
			break
		}
	}

	// Final residuals are always measured against the transform we hand
	// back, not the one from the last solve input.
	_, _, res, err := matchSamples(ctx, c, ix, current, samples, opts)
	if err != nil {
		return Result{}, err
	}
	fit.MeanResidual = meanOf(res)
	fit.MedianResidual = medianOf(res)

	result := Result{Transform: current, Fit: fit}
	if !fit.Converged {
		return result, &AlignmentDivergenceError{
			Iterations:   fit.Iterations,
			LastResidual: fit.MeanResidual,
			Diverging:    fit.Diverged,
		}
	}
	return result, nil
}

// Verify runs a single matching pass with no transform update and
// surfaces the residual. Callers asserting "already aligned" still get
// this check, so misalignment is diagnosable instead of silently
// mis-segmenting. Converged stays false: it reports refinement
// convergence, which a measurement-only pass cannot claim.
func Verify(ctx context.Context, c *cloud.Cloud, ix *index.Index, tr geom.Transform, opts Options) (FitQuality, error) {
	opts = opts.withDefaults()
	if c.Len() == 0 {
		return FitQuality{}, fmt.Errorf("align: empty point cloud")
	}
	samples := samplePoints(c, opts.SampleSize, opts.Seed)
	_, _, res, err := matchSamples(ctx, c, ix, tr, samples, opts)
	if err != nil {
		return FitQuality{}, err
	}
	return FitQuality{
		MeanResidual:   meanOf(res),
		MedianResidual: medianOf(res),
		SampleCount:    len(samples),
	}, nil
}

func solveUpdate(src, dst []v3.Vec, allowAffine bool) (geom.Transform, error) {
	if allowAffine {
		return solveAffine(src, dst)
	}
	return solveRigid(src, dst)
}

// samplePoints picks a bounded, deterministic subset of point indices.
func samplePoints(c *cloud.Cloud, size int, seed int64) []int {
	n := c.Len()
	if size >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	rng := rand.New(rand.NewSource(seed))
	idx := rng.Perm(n)[:size]
	sort.Ints(idx)
	return idx
}

// matchSamples finds, for every sampled point transformed by tr, the
// closest reference surface point. Workers fill disjoint ranges of the
// output slices; nothing is shared mutable.
func matchSamples(ctx context.Context, c *cloud.Cloud, ix *index.Index, tr geom.Transform, samples []int, opts Options) (src, dst []v3.Vec, res []float64, err error) {
	n := len(samples)
	src = make([]v3.Vec, n)
	dst = make([]v3.Vec, n)
	res = make([]float64, n)

	workers := opts.Workers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if ctx.Err() != nil {
					return
				}
				q := tr.Apply(c.Pos(samples[i]))
				_, cp, d := ix.NearestSurface(q, opts.Candidates)
				src[i] = q
				dst[i] = cp
				res[i] = d
			}
		}(lo, hi)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}
	return src, dst, res, nil
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func medianOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	tmp := make([]float64, len(xs))
	copy(tmp, xs)
	sort.Float64s(tmp)
	mid := len(tmp) / 2
	if len(tmp)%2 == 1 {
		return tmp[mid]
	}
	return (tmp[mid-1] + tmp[mid]) / 2
}
