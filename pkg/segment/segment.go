// Package segment aggregates per-point classification results into
// per-element segment groups with summary statistics. Groups are
// rebuilt from scratch every run and emitted in identifier order.
package segment

import (
	"sort"

	"github.com/refseg/refseg/pkg/classify"
	"github.com/refseg/refseg/pkg/model"
)

// Group collects the points assigned to one reference element, or the
// unassigned bucket when Element is model.Unassigned.
type Group struct {
	// Element identifies the reference element, empty for unassigned.
	Element model.ElementID
	// Type is the element's category, TypeUnknown for the unassigned
	// bucket.
	Type model.ElementType
	// Indices are the cloud point indices in this group, ascending.
	Indices []int
	// Count is len(Indices).
	Count int
	// MeanResidual and MedianResidual summarize the unsigned distances
	// of the group's points to their chosen primitive. Zero for the
	// unassigned bucket.
	MeanResidual   float64
	MedianResidual float64
	// Coverage is the group's point density relative to the median
	// density over all assigned groups: 1 means typical coverage,
	// below 1 sparse, above 1 dense. -1 when the element's surface
	// area is unknown or for the unassigned bucket.
	Coverage float64
	// AmbiguousCount is the number of points in the group whose
	// assignment required a tie-break.
	AmbiguousCount int
}

// Aggregate builds the segment group collection from one classification
// pass. Every point index of results appears in exactly one group; the
// unassigned bucket is present only when at least one point is
// unassigned. Groups are ordered by element identifier with the
// unassigned bucket last.
func Aggregate(results []classify.Result, m *model.Model) []Group {
	byElem := make(map[model.ElementID]*Group)
	for i, r := range results {
		g, ok := byElem[r.Element]
		if !ok {
			g = &Group{Element: r.Element, Type: model.TypeUnknown, Coverage: -1}
			if elem, found := m.Element(r.Element); found {
				g.Type = elem.Type
			}
			byElem[r.Element] = g
		}
		g.Indices = append(g.Indices, i)
		if r.Ambiguous {
			g.AmbiguousCount++
		}
	}

	groups := make([]Group, 0, len(byElem))
	for _, g := range byElem {
		g.Count = len(g.Indices)
		if g.Element != model.Unassigned {
			residuals := make([]float64, g.Count)
			for j, idx := range g.Indices {
				residuals[j] = results[idx].Distance
			}
			g.MeanResidual = mean(residuals)
			g.MedianResidual = median(residuals)
		}
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		// Empty identifier (unassigned) sorts after every real one.
		if (groups[i].Element == model.Unassigned) != (groups[j].Element == model.Unassigned) {
			return groups[j].Element == model.Unassigned
		}
		return groups[i].Element < groups[j].Element
	})

	fillCoverage(groups, m)
	return groups
}

// fillCoverage sets each assigned group's coverage to its point density
// normalized by the median density over all assigned groups with known
// area. Groups without a known element area keep coverage -1.
func fillCoverage(groups []Group, m *model.Model) {
	densities := make([]float64, 0, len(groups))
	idx := make([]int, 0, len(groups))
	for i := range groups {
		g := &groups[i]
		if g.Element == model.Unassigned {
			continue
		}
		elem, ok := m.Element(g.Element)
		if !ok || elem.Area <= 0 {
			continue
		}
		d := float64(g.Count) / elem.Area
		densities = append(densities, d)
		idx = append(idx, i)
	}
	if len(densities) == 0 {
		return
	}
	sorted := append([]float64(nil), densities...)
	sort.Float64s(sorted)
	ref := median(sorted)
	if ref <= 0 {
		return
	}
	for j, i := range idx {
		groups[i].Coverage = densities[j] / ref
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// median expects no particular order and does not modify xs.
func median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
