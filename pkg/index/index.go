// Package index provides the read-only spatial index used for
// nearest-primitive queries. It wraps an R-tree over primitive bounding
// boxes: queries rank candidates by distance to their bounding volume,
// an admissible lower bound, and callers refine the top candidates with
// exact surface distances. Construction is a one-time batch step; the
// built index is safe for concurrent readers without locking.
package index

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"

	"github.com/refseg/refseg/pkg/geom"
	"github.com/refseg/refseg/pkg/model"
)

// R-tree branching factors. 8/32 keeps the tree shallow for the
// multi-million primitive models the index must serve.
const (
	minBranch = 8
	maxBranch = 32
)

// degeneratePad keeps planar primitive boxes representable as R-tree
// rectangles with strictly positive side lengths.
const degeneratePad = 1e-9

// EmptyIndexError reports an attempt to build an index from zero usable
// primitives, e.g. when every element was excluded as malformed.
type EmptyIndexError struct{}

func (e *EmptyIndexError) Error() string {
	return "spatial index: no usable primitives"
}

// entry adapts a surface primitive to the R-tree's Spatial interface.
type entry struct {
	prim model.SurfacePrimitive
	rect rtreego.Rect
}

func (e *entry) Bounds() rtreego.Rect {
	return e.rect
}

var _ rtreego.Spatial = (*entry)(nil)

// Index is the immutable spatial index over a model's primitives.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// Build bulk-loads the index from the primitive collection.
func Build(prims []model.SurfacePrimitive) (*Index, error) {
	if len(prims) == 0 {
		return nil, &EmptyIndexError{}
	}
	entries := make([]rtreego.Spatial, 0, len(prims))
	for _, p := range prims {
		rect, err := geom.BoxRect(p.Bounds(), degeneratePad)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry{prim: p, rect: rect})
	}
	return &Index{
		tree: rtreego.NewTree(3, minBranch, maxBranch, entries...),
		size: len(prims),
	}, nil
}

// Size returns the number of indexed primitives.
func (ix *Index) Size() int {
	return ix.size
}

// Nearest returns up to k candidate primitives ordered by ascending
// distance from p to their bounding boxes. The bounding-box distance is
// a lower bound on the true surface distance, so the true nearest
// surface is found by refining these candidates with exact distances.
func (ix *Index) Nearest(p v3.Vec, k int) []model.SurfacePrimitive {
	if k <= 0 {
		return nil
	}
	hits := ix.tree.NearestNeighbors(k, rtreego.Point{p.X, p.Y, p.Z})
	out := make([]model.SurfacePrimitive, 0, len(hits))
	for _, h := range hits {
		if h == nil {
			break
		}
		out = append(out, h.(*entry).prim)
	}
	return out
}

// Within returns every primitive whose bounding box intersects the cube
// of half-width radius around p. As with Nearest, the box test is a
// lower bound: callers filter by exact distance.
func (ix *Index) Within(p v3.Vec, radius float64) []model.SurfacePrimitive {
	if radius <= 0 {
		return nil
	}
	bb := rtreego.Point{p.X, p.Y, p.Z}.ToRect(radius)
	hits := ix.tree.SearchIntersect(bb)
	out := make([]model.SurfacePrimitive, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(*entry).prim)
	}
	return out
}

// NearestSurface refines the k nearest candidates with exact distances
// and returns the closest primitive, the closest surface point, and the
// unsigned distance. Ties resolve to the lower element identifier so the
// result is deterministic.
func (ix *Index) NearestSurface(p v3.Vec, k int) (model.SurfacePrimitive, v3.Vec, float64) {
	var best model.SurfacePrimitive
	var bestPt v3.Vec
	bestDist := 0.0
	for _, cand := range ix.Nearest(p, k) {
		cp := cand.Closest(p)
		d := p.Sub(cp).Length()
		if best == nil || d < bestDist ||
			(d == bestDist && cand.Element() < best.Element()) {
			best, bestPt, bestDist = cand, cp, d
		}
	}
	return best, bestPt, bestDist
}
