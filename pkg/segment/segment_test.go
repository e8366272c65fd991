package segment

import (
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/classify"
	"github.com/refseg/refseg/pkg/model"
)

func twoWallModel(t *testing.T) *model.Model {
	t.Helper()
	square := func(id string, x0 float64) model.RawElement {
		return model.RawElement{ID: id, Type: "wall", Polygons: [][]v3.Vec{{
			{X: x0}, {X: x0 + 10}, {X: x0 + 10, Y: 10}, {X: x0, Y: 10},
		}}}
	}
	return model.Build([]model.RawElement{square("wall-a", 0), square("wall-b", 10)}, model.BuildOptions{})
}

func TestAggregateGroupsAndOrder(t *testing.T) {
	m := twoWallModel(t)
	results := []classify.Result{
		{Element: "wall-b", Distance: 0.02, Confidence: 0.6},
		{Element: "wall-a", Distance: 0.01, Confidence: 0.8},
		{Element: model.Unassigned},
		{Element: "wall-a", Distance: 0.03, Confidence: 0.4, Ambiguous: true},
	}

	groups := Aggregate(results, m)
	if len(groups) != 3 {
		t.Fatalf("len(groups) = %d, want 3", len(groups))
	}
	if groups[0].Element != "wall-a" || groups[1].Element != "wall-b" || groups[2].Element != model.Unassigned {
		t.Fatalf("group order %q, %q, %q", groups[0].Element, groups[1].Element, groups[2].Element)
	}

	a := groups[0]
	if a.Count != 2 || len(a.Indices) != 2 {
		t.Errorf("wall-a count = %d, want 2", a.Count)
	}
	if a.Indices[0] != 1 || a.Indices[1] != 3 {
		t.Errorf("wall-a indices = %v, want [1 3]", a.Indices)
	}
	if a.Type != model.TypeWall {
		t.Errorf("wall-a type = %q", a.Type)
	}
	if diff := a.MeanResidual - 0.02; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("wall-a mean residual = %g, want 0.02", a.MeanResidual)
	}
	if diff := a.MedianResidual - 0.02; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("wall-a median residual = %g, want 0.02", a.MedianResidual)
	}
	if a.AmbiguousCount != 1 {
		t.Errorf("wall-a ambiguous count = %d, want 1", a.AmbiguousCount)
	}

	u := groups[2]
	if u.Count != 1 || u.Indices[0] != 2 {
		t.Errorf("unassigned bucket = %+v", u)
	}
	if u.Coverage != -1 {
		t.Errorf("unassigned coverage = %g, want -1", u.Coverage)
	}
	if u.Type != model.TypeUnknown {
		t.Errorf("unassigned type = %q", u.Type)
	}
}

func TestAggregateCompleteness(t *testing.T) {
	m := twoWallModel(t)
	results := make([]classify.Result, 500)
	for i := range results {
		switch i % 3 {
		case 0:
			results[i] = classify.Result{Element: "wall-a", Distance: 0.01}
		case 1:
			results[i] = classify.Result{Element: "wall-b", Distance: 0.02}
		default:
			results[i] = classify.Result{Element: model.Unassigned}
		}
	}

	groups := Aggregate(results, m)
	seen := make(map[int]int)
	for _, g := range groups {
		for _, idx := range g.Indices {
			seen[idx]++
		}
	}
	if len(seen) != len(results) {
		t.Fatalf("groups cover %d indices, want %d", len(seen), len(results))
	}
	for idx, n := range seen {
		if n != 1 {
			t.Fatalf("index %d appears %d times", idx, n)
		}
	}
}

func TestCoverageRelativeToMedianDensity(t *testing.T) {
	// Both walls have area 100. wall-a gets 4x the points of wall-b,
	// so its density sits above the median and wall-b's below.
	m := twoWallModel(t)
	var results []classify.Result
	for i := 0; i < 400; i++ {
		results = append(results, classify.Result{Element: "wall-a", Distance: 0.01})
	}
	for i := 0; i < 100; i++ {
		results = append(results, classify.Result{Element: "wall-b", Distance: 0.01})
	}

	groups := Aggregate(results, m)
	a, b := groups[0], groups[1]
	// Median density is (4+1)/2 / 100 = 0.025 points per unit area.
	if diff := a.Coverage - 1.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("wall-a coverage = %g, want 1.6", a.Coverage)
	}
	if diff := b.Coverage - 0.4; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("wall-b coverage = %g, want 0.4", b.Coverage)
	}
}

func TestCoverageUnknownArea(t *testing.T) {
	m := twoWallModel(t)
	// An identifier absent from the model has no area to normalize by.
	results := []classify.Result{{Element: "ghost", Distance: 0.01}}
	groups := Aggregate(results, m)
	if groups[0].Coverage != -1 {
		t.Errorf("coverage = %g, want -1 for unknown area", groups[0].Coverage)
	}
}

func TestAggregateEmpty(t *testing.T) {
	m := twoWallModel(t)
	if groups := Aggregate(nil, m); len(groups) != 0 {
		t.Errorf("len(groups) = %d, want 0", len(groups))
	}
}
