// Package classify assigns every captured point to a reference element
// or to the unassigned sentinel. Classification is a pure function of
// the aligned cloud, the spatial index and the run configuration:
// identical inputs produce identical results, including tie-breaks.
package classify

import (
	"context"
	"math"
	"runtime"
	"sync"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/cloud"
	"github.com/refseg/refseg/pkg/geom"
	"github.com/refseg/refseg/pkg/index"
	"github.com/refseg/refseg/pkg/model"
)

// DefaultTypePriority orders element categories for ambiguity
// tie-breaks, structural elements first. Types not listed rank after
// all listed types.
var DefaultTypePriority = []model.ElementType{
	model.TypeWall,
	model.TypeSlab,
	model.TypeColumn,
	model.TypeBeam,
	model.TypeRoof,
	model.TypePipe,
	model.TypeDoor,
	model.TypeWindow,
}

// Options configures a classification pass. The zero value selects
// usable defaults via withDefaults.
type Options struct {
	// DistanceThreshold is the maximum point-to-surface distance for an
	// assignment. Points farther from every primitive stay unassigned.
	// Default 0.05.
	DistanceThreshold float64
	// AmbiguityMargin is the distance band above the best candidate
	// within which competing elements trigger the ambiguity tie-break.
	// Default 0.01.
	AmbiguityMargin float64
	// Candidates is the number of primitives fetched per point from the
	// spatial index before exact distance refinement. Default 8.
	Candidates int
	// Workers is the parallelism degree. Default runtime.NumCPU.
	Workers int
	// TypePriority ranks element types for tie-breaking, highest
	// priority first. Default DefaultTypePriority.
	TypePriority []model.ElementType
	// ConfidenceExponent shapes the confidence curve
	// (1-d/threshold)^exponent. 1 is linear. Default 1.
	ConfidenceExponent float64
}

func (o Options) withDefaults() Options {
	if o.DistanceThreshold <= 0 {
		o.DistanceThreshold = 0.05
	}
	if o.AmbiguityMargin <= 0 {
		o.AmbiguityMargin = 0.01
	}
	if o.Candidates <= 0 {
		o.Candidates = 8
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.TypePriority == nil {
		o.TypePriority = DefaultTypePriority
	}
	if o.ConfidenceExponent <= 0 {
		o.ConfidenceExponent = 1
	}
	return o
}

// Result is the per-point classification outcome. One Result is
// produced per input point per run; the slice index matches the point
// index in the cloud.
type Result struct {
	// Element is the assigned reference element, or model.Unassigned.
	Element model.ElementID
	// Distance is the unsigned distance to the chosen primitive.
	// Undefined (0) for unassigned points.
	Distance float64
	// Signed is the orientation-carrying distance to the chosen
	// primitive, for diagnostics only.
	Signed float64
	// Confidence is in [0,1]; 0 for unassigned points.
	Confidence float64
	// Ambiguous marks points whose assignment required the tie-break
	// because a competing element sat within the ambiguity margin.
	Ambiguous bool
}

// candidate is the best primitive of one element near a query point.
type candidate struct {
	element model.ElementID
	dist    float64
	signed  float64
}

// Run classifies every point of c under the transform tr. Workers fill
// disjoint ranges of the output slice; cancellation is observed between
// partitions and aborts the whole pass.
func Run(ctx context.Context, c *cloud.Cloud, ix *index.Index, m *model.Model, tr geom.Transform, opts Options) ([]Result, error) {
	opts = opts.withDefaults()
	n := c.Len()
	out := make([]Result, n)
	if n == 0 {
		return out, nil
	}

	rank := priorityRank(opts.TypePriority)
	workers := opts.Workers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

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
			const stride = 256
			for start := lo; start < hi; start += stride {
				if ctx.Err() != nil {
					return
				}
				end := start + stride
				if end > hi {
					end = hi
				}
				for i := start; i < end; i++ {
					out[i] = classifyPoint(tr.Apply(c.Pos(i)), ix, m, rank, opts)
				}
			}
		}(lo, hi)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// classifyPoint resolves one transformed point against the index.
func classifyPoint(q v3.Vec, ix *index.Index, m *model.Model, rank map[model.ElementType]int, opts Options) Result {
	prims := ix.Nearest(q, opts.Candidates)
	if len(prims) == 0 {
		return Result{Element: model.Unassigned}
	}

	// Estimate the best distance from the k nearest bounding boxes.
	best := math.Inf(1)
	for _, prim := range prims {
		if d := prim.Distance(q); d < best {
			best = d
		}
	}
	if best > opts.DistanceThreshold {
		return Result{Element: model.Unassigned}
	}

	// The k candidates can all belong to one element, so competitors
	// for the tie-break come from a range query over the whole margin
	// band. The bounding-box distance is a lower bound on the surface
	// distance, so the band is a superset of every true competitor; it
	// also catches a true nearest the bounding-box ordering missed.
	within := ix.Within(q, best+opts.AmbiguityMargin)
	dists := make([]float64, len(within))
	for i, prim := range within {
		dists[i] = prim.Distance(q)
		if dists[i] < best {
			best = dists[i]
		}
	}

	// Exact distances, one best candidate per element.
	byElem := make(map[model.ElementID]candidate)
	for i, prim := range within {
		d := dists[i]
		if d > best+opts.AmbiguityMargin || d > opts.DistanceThreshold {
			continue
		}
		id := prim.Element()
		if cur, ok := byElem[id]; !ok || d < cur.dist {
			byElem[id] = candidate{element: id, dist: d, signed: prim.SignedDistance(q)}
		}
	}

	contenders := make([]candidate, 0, len(byElem))
	for _, cand := range byElem {
		contenders = append(contenders, cand)
	}
	chosen := contenders[0]
	for _, cand := range contenders[1:] {
		if beats(cand, chosen, m, rank) {
			chosen = cand
		}
	}

	return Result{
		Element:    chosen.element,
		Distance:   chosen.dist,
		Signed:     chosen.signed,
		Confidence: confidence(chosen.dist, opts),
		Ambiguous:  len(contenders) > 1,
	}
}

// beats reports whether candidate a wins the tie-break over b: higher
// type priority first, then the lexically lower element identifier.
func beats(a, b candidate, m *model.Model, rank map[model.ElementType]int) bool {
	ra, rb := elementRank(a.element, m, rank), elementRank(b.element, m, rank)
	if ra != rb {
		return ra < rb
	}
	return a.element < b.element
}

func elementRank(id model.ElementID, m *model.Model, rank map[model.ElementType]int) int {
	if elem, ok := m.Element(id); ok {
		if r, ok := rank[elem.Type]; ok {
			return r
		}
	}
	return len(rank)
}

func priorityRank(order []model.ElementType) map[model.ElementType]int {
	rank := make(map[model.ElementType]int, len(order))
	for i, t := range order {
		if _, ok := rank[t]; !ok {
			rank[t] = i
		}
	}
	return rank
}

// confidence maps a distance within the threshold onto [0,1] with the
// configured curve. Zero distance scores 1, the threshold scores 0.
func confidence(d float64, opts Options) float64 {
	x := 1 - d/opts.DistanceThreshold
	if x < 0 {
		x = 0
	} else if x > 1 {
		x = 1
	}
	return math.Pow(x, opts.ConfidenceExponent)
}
