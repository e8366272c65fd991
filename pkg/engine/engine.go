// Package engine orchestrates a full segmentation run: it compiles the
// reference model into primitives, indexes them, aligns the captured
// cloud, classifies every point and aggregates the segment groups. The
// engine owns stage sequencing and failure semantics; parsing of input
// files, argument handling and report export live outside it.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/refseg/refseg/pkg/align"
	"github.com/refseg/refseg/pkg/classify"
	"github.com/refseg/refseg/pkg/cloud"
	"github.com/refseg/refseg/pkg/geom"
	"github.com/refseg/refseg/pkg/index"
	"github.com/refseg/refseg/pkg/model"
	"github.com/refseg/refseg/pkg/segment"
)

// DivergencePolicy selects how a run handles alignment that failed to
// converge.
type DivergencePolicy int

const (
	// DivergenceProceed classifies with the last transform the
	// estimator produced, flagging the fit as not converged. Default.
	DivergenceProceed DivergencePolicy = iota
	// DivergenceFallback discards the refinement and classifies with
	// the initial transform instead.
	DivergenceFallback
	// DivergenceAbort fails the run.
	DivergenceAbort
)

// EmptyPointCloudError reports a run invoked with no points.
type EmptyPointCloudError struct{}

func (e *EmptyPointCloudError) Error() string {
	return "point cloud is empty"
}

// Options configures one segmentation run. The zero value is usable:
// identity initial transform, refinement enabled, defaults from the
// component option structs.
type Options struct {
	// Build configures reference-model decomposition.
	Build model.BuildOptions
	// Align configures transform refinement and verification.
	Align align.Options
	// Classify configures per-point assignment.
	Classify classify.Options
	// InitialTransform maps capture space into model space before
	// refinement. Nil means identity.
	InitialTransform *geom.Transform
	// AssumeAligned asserts InitialTransform is already correct: the
	// estimator runs a verification pass only, never refinement. The
	// verification residuals are still mandatory run output.
	AssumeAligned bool
	// Divergence selects the reaction to non-converged refinement.
	Divergence DivergencePolicy
}

// Diagnostics summarizes one run for reporting.
type Diagnostics struct {
	// RunID uniquely identifies this run.
	RunID string
	// Elements and Primitives count the usable reference model.
	Elements   int
	Primitives int
	// Skipped lists reference elements excluded for malformed geometry.
	Skipped []model.SkippedElement
	// TotalPoints, AssignedPoints, UnassignedPoints and AmbiguousPoints
	// partition the cloud; Assigned + Unassigned = Total.
	TotalPoints      int
	AssignedPoints   int
	UnassignedPoints int
	AmbiguousPoints  int
}

// Result is the complete output artifact of a run. It is produced
// atomically: a cancelled or failed run yields an error and no Result.
type Result struct {
	// Transform is the final capture-to-model mapping used for
	// classification.
	Transform geom.Transform
	// Fit is the alignment quality under Transform.
	Fit align.FitQuality
	// Results holds one classification outcome per cloud point.
	Results []classify.Result
	// Groups is the segment group collection, identifier-ordered.
	Groups []segment.Group
	// Diagnostics summarizes the run.
	Diagnostics Diagnostics
}

// Run executes the full pipeline against raw reference elements and a
// captured cloud.
//
// Failure semantics:
//   - no points: *EmptyPointCloudError
//   - no usable primitives: *index.EmptyIndexError
//   - refinement diverged under DivergenceAbort: *align.AlignmentDivergenceError
//   - cancellation: the context's error
//
// Malformed reference elements are never fatal; they are skipped and
// reported in Diagnostics.
func Run(ctx context.Context, raw []model.RawElement, c *cloud.Cloud, opts Options) (*Result, error) {
	if c.Len() == 0 {
		return nil, &EmptyPointCloudError{}
	}
	runID := uuid.NewString()
	glog.Infof("run %s: %d reference elements, %d points", runID, len(raw), c.Len())

	m := model.Build(raw, opts.Build)
	for _, s := range m.Skipped() {
		glog.Warningf("run %s: skipping element %q: %s", runID, s.ID, s.Err.Reason)
	}
	glog.V(1).Infof("run %s: model has %d elements, %d primitives", runID, m.Len(), len(m.Primitives()))

	ix, err := index.Build(m.Primitives())
	if err != nil {
		return nil, fmt.Errorf("indexing reference model: %w", err)
	}

	initial := geom.Identity()
	if opts.InitialTransform != nil {
		initial = *opts.InitialTransform
	}
	tr, fit, err := alignStage(ctx, c, ix, initial, opts)
	if err != nil {
		return nil, err
	}
	glog.Infof("run %s: alignment mean residual %.6f over %d samples (converged=%v)",
		runID, fit.MeanResidual, fit.SampleCount, fit.Converged)

	results, err := classify.Run(ctx, c, ix, m, tr, opts.Classify)
	if err != nil {
		return nil, fmt.Errorf("classifying points: %w", err)
	}
	groups := segment.Aggregate(results, m)

	diag := Diagnostics{
		RunID:       runID,
		Elements:    m.Len(),
		Primitives:  len(m.Primitives()),
		Skipped:     m.Skipped(),
		TotalPoints: c.Len(),
	}
	for _, r := range results {
		if r.Element == model.Unassigned {
			diag.UnassignedPoints++
			continue
		}
		diag.AssignedPoints++
		if r.Ambiguous {
			diag.AmbiguousPoints++
		}
	}
	glog.Infof("run %s: %d assigned, %d unassigned, %d ambiguous across %d groups",
		runID, diag.AssignedPoints, diag.UnassignedPoints, diag.AmbiguousPoints, len(groups))

	return &Result{
		Transform:   tr,
		Fit:         fit,
		Results:     results,
		Groups:      groups,
		Diagnostics: diag,
	}, nil
}

// alignStage produces the transform classification will use. An
// asserted alignment still pays for a verification pass; a diverged
// refinement is resolved per the configured policy.
func alignStage(ctx context.Context, c *cloud.Cloud, ix *index.Index, initial geom.Transform, opts Options) (geom.Transform, align.FitQuality, error) {
	if opts.AssumeAligned {
		fit, err := align.Verify(ctx, c, ix, initial, opts.Align)
		if err != nil {
			return geom.Transform{}, align.FitQuality{}, fmt.Errorf("verifying asserted alignment: %w", err)
		}
		return initial, fit, nil
	}

	result, err := align.Refine(ctx, c, ix, initial, opts.Align)
	if err == nil {
		return result.Transform, result.Fit, nil
	}
	var div *align.AlignmentDivergenceError
	if !errors.As(err, &div) {
		return geom.Transform{}, align.FitQuality{}, fmt.Errorf("refining alignment: %w", err)
	}

	switch opts.Divergence {
	case DivergenceAbort:
		return geom.Transform{}, align.FitQuality{}, err
	case DivergenceFallback:
		glog.Warningf("alignment did not converge after %d iterations, falling back to the initial transform", div.Iterations)
		fit, verr := align.Verify(ctx, c, ix, initial, opts.Align)
		if verr != nil {
			return geom.Transform{}, align.FitQuality{}, fmt.Errorf("verifying fallback transform: %w", verr)
		}
		return initial, fit, nil
	default:
		glog.Warningf("alignment did not converge after %d iterations, proceeding with the last estimate", div.Iterations)
		return result.Transform, result.Fit, nil
	}
}
