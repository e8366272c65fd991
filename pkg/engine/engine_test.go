package engine

import (
	"context"
	"errors"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/align"
	"github.com/refseg/refseg/pkg/cloud"
	"github.com/refseg/refseg/pkg/geom"
	"github.com/refseg/refseg/pkg/index"
	"github.com/refseg/refseg/pkg/model"
)

// cornerElements is a room corner: floor plus two walls meeting at the
// origin, which constrains alignment in every direction.
func cornerElements() []model.RawElement {
	return []model.RawElement{
		{ID: "floor", Type: "slab", Polygons: [][]v3.Vec{{
			{}, {X: 10}, {X: 10, Y: 10}, {Y: 10},
		}}},
		{ID: "wall-x", Type: "wall", Polygons: [][]v3.Vec{{
			{}, {Y: 10}, {Y: 10, Z: 10}, {Z: 10},
		}}},
		{ID: "wall-y", Type: "wall", Polygons: [][]v3.Vec{{
			{}, {X: 10}, {X: 10, Z: 10}, {Z: 10},
		}}},
	}
}

// cornerCloud samples interior points of all three surfaces under tr.
func cornerCloud(tr geom.Transform) *cloud.Cloud {
	var pts []cloud.Point
	for i := 1; i < 9; i++ {
		for j := 1; j < 9; j++ {
			u, v := float64(i)+0.5, float64(j)+0.25
			for _, p := range []v3.Vec{
				{X: u, Y: v},
				{Y: u, Z: v},
				{X: u, Z: v},
			} {
				pts = append(pts, cloud.Point{Pos: tr.Apply(p)})
			}
		}
	}
	return cloud.New(pts)
}

func defaultOptions() Options {
	return Options{
		Build: model.BuildOptions{MaxPrimitiveSize: 2},
		Align: align.Options{Seed: 3},
	}
}

func TestRunAlignedCloud(t *testing.T) {
	result, err := Run(context.Background(), cornerElements(), cornerCloud(geom.Identity()), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Fit.Converged {
		t.Error("Fit.Converged = false for an aligned cloud")
	}
	if result.Diagnostics.UnassignedPoints != 0 {
		t.Errorf("UnassignedPoints = %d, want 0", result.Diagnostics.UnassignedPoints)
	}
	if result.Diagnostics.AssignedPoints != result.Diagnostics.TotalPoints {
		t.Errorf("AssignedPoints = %d, TotalPoints = %d",
			result.Diagnostics.AssignedPoints, result.Diagnostics.TotalPoints)
	}
	if result.Diagnostics.RunID == "" {
		t.Error("RunID is empty")
	}
	if len(result.Groups) != 3 {
		t.Errorf("len(Groups) = %d, want 3", len(result.Groups))
	}
	if len(result.Results) != result.Diagnostics.TotalPoints {
		t.Errorf("len(Results) = %d, want %d", len(result.Results), result.Diagnostics.TotalPoints)
	}
}

func TestRunRecoversShiftedCloud(t *testing.T) {
	shift := geom.Translation(v3.Vec{X: 0.2, Y: -0.1, Z: 0.15})
	result, err := Run(context.Background(), cornerElements(), cornerCloud(shift), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Fit.Converged {
		t.Fatal("refinement did not converge")
	}
	if result.Diagnostics.UnassignedPoints != 0 {
		t.Errorf("UnassignedPoints = %d after refinement, want 0", result.Diagnostics.UnassignedPoints)
	}
}

// Applying the recovered transform to the cloud and re-running with an
// asserted identity alignment must reproduce the same segment groups.
func TestRunRoundTrip(t *testing.T) {
	shift := geom.Translation(v3.Vec{X: 0.2, Z: 0.1})
	c := cornerCloud(shift)

	first, err := Run(context.Background(), cornerElements(), c, defaultOptions())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	aligned := c.Transformed(first.Transform)
	opts := defaultOptions()
	opts.AssumeAligned = true
	second, err := Run(context.Background(), cornerElements(), aligned, opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if len(first.Groups) != len(second.Groups) {
		t.Fatalf("group counts differ: %d vs %d", len(first.Groups), len(second.Groups))
	}
	for i := range first.Groups {
		a, b := first.Groups[i], second.Groups[i]
		if a.Element != b.Element || a.Count != b.Count {
			t.Errorf("group %d differs: %q/%d vs %q/%d", i, a.Element, a.Count, b.Element, b.Count)
		}
	}
}

func TestRunEmptyCloud(t *testing.T) {
	_, err := Run(context.Background(), cornerElements(), cloud.New(nil), Options{})
	var empty *EmptyPointCloudError
	if !errors.As(err, &empty) {
		t.Errorf("err = %v, want EmptyPointCloudError", err)
	}
}

func TestRunNoUsablePrimitives(t *testing.T) {
	raw := []model.RawElement{{ID: "bad"}} // no geometry, skipped
	c := cloud.New([]cloud.Point{{Pos: v3.Vec{X: 1}}})
	_, err := Run(context.Background(), raw, c, Options{})
	var emptyIx *index.EmptyIndexError
	if !errors.As(err, &emptyIx) {
		t.Errorf("err = %v, want EmptyIndexError", err)
	}
}

func TestRunReportsSkippedElements(t *testing.T) {
	raw := append(cornerElements(), model.RawElement{
		ID:   "degenerate",
		Type: "wall",
		Polygons: [][]v3.Vec{{
			{}, {X: 1}, {X: 2}, // collinear
		}},
	})
	result, err := Run(context.Background(), raw, cornerCloud(geom.Identity()), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Diagnostics.Skipped) != 1 {
		t.Fatalf("Skipped = %v, want one entry", result.Diagnostics.Skipped)
	}
	if result.Diagnostics.Skipped[0].ID != "degenerate" {
		t.Errorf("skipped ID = %q", result.Diagnostics.Skipped[0].ID)
	}
	if result.Diagnostics.Elements != 3 {
		t.Errorf("Elements = %d, want 3", result.Diagnostics.Elements)
	}
}

func TestRunAssumeAlignedVerifies(t *testing.T) {
	// A badly-shifted cloud with asserted alignment: the run still
	// succeeds, but verification exposes the misalignment.
	opts := defaultOptions()
	opts.AssumeAligned = true
	result, err := Run(context.Background(), cornerElements(), cornerCloud(geom.Translation(v3.Vec{X: 3, Y: 3, Z: 3})), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Fit.MeanResidual < 0.5 {
		t.Errorf("MeanResidual = %g, want large for a misaligned assertion", result.Fit.MeanResidual)
	}
	if result.Fit.Converged {
		t.Error("Fit.Converged = true for a verification-only run")
	}
	if result.Diagnostics.AssignedPoints != 0 {
		t.Errorf("AssignedPoints = %d, want 0 for a misaligned assertion", result.Diagnostics.AssignedPoints)
	}
}

func TestRunDivergenceAbort(t *testing.T) {
	opts := defaultOptions()
	opts.Align.MaxIterations = 1
	opts.Align.ConvergenceThreshold = 1e-15
	opts.Divergence = DivergenceAbort
	_, err := Run(context.Background(), cornerElements(), cornerCloud(geom.Translation(v3.Vec{X: 0.5})), opts)
	var div *align.AlignmentDivergenceError
	if !errors.As(err, &div) {
		t.Errorf("err = %v, want AlignmentDivergenceError", err)
	}
}

func TestRunDivergenceFallback(t *testing.T) {
	opts := defaultOptions()
	opts.Align.MaxIterations = 1
	opts.Align.ConvergenceThreshold = 1e-15
	opts.Divergence = DivergenceFallback
	result, err := Run(context.Background(), cornerElements(), cornerCloud(geom.Translation(v3.Vec{X: 0.5})), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Fallback keeps the initial transform.
	if result.Fit.Converged {
		t.Error("fallback fit reported converged")
	}
	p := v3.Vec{X: 3, Y: 4, Z: 5}
	if result.Transform.Apply(p).Sub(p).Length() > 1e-12 {
		t.Error("fallback did not keep the initial transform")
	}
}

func TestRunCancelledProducesNoResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Run(ctx, cornerElements(), cornerCloud(geom.Identity()), defaultOptions())
	if err == nil {
		t.Fatal("Run ignored a cancelled context")
	}
	if result != nil {
		t.Error("cancelled run returned a partial result")
	}
}
