package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/refseg/refseg/internal/report"
	"github.com/refseg/refseg/pkg/align"
	"github.com/refseg/refseg/pkg/classify"
	"github.com/refseg/refseg/pkg/engine"
	"github.com/refseg/refseg/pkg/loader"
	"github.com/refseg/refseg/pkg/model"
)

var segmentFlags struct {
	out              string
	transform        []float64
	assumeAligned    bool
	threshold        float64
	margin           float64
	priority         []string
	confidenceExp    float64
	candidates       int
	workers          int
	maxIterations    int
	convergence      float64
	sampleSize       int
	seed             int64
	affine           bool
	maxPrimitiveSize float64
	onDivergence     string
}

var segmentCmd = &cobra.Command{
	Use:   "segment <model.json> <cloud.xyz>",
	Short: "Run the full segmentation pipeline and write a JSON report",
	Long: `Segment loads a reference-element collection and a point cloud, refines
the cloud-to-model alignment (unless --assume-aligned), classifies every
point, and writes the segment-group report as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runSegment,
}

func init() {
	f := segmentCmd.Flags()
	f.StringVarP(&segmentFlags.out, "out", "o", "", "report output path (default stdout)")
	f.Float64SliceVarP(&segmentFlags.transform, "transform", "t", nil,
		"initial capture-to-model transform as 16 column-major matrix values")
	f.BoolVar(&segmentFlags.assumeAligned, "assume-aligned", false,
		"assert the initial transform is correct and only verify it")
	f.Float64Var(&segmentFlags.threshold, "threshold", 0.05,
		"maximum point-to-surface distance for an assignment")
	f.Float64Var(&segmentFlags.margin, "margin", 0.01,
		"ambiguity margin above the best candidate distance")
	f.StringSliceVar(&segmentFlags.priority, "priority", nil,
		"element type priority for ambiguity tie-breaks, highest first")
	f.Float64Var(&segmentFlags.confidenceExp, "confidence-exponent", 1,
		"exponent of the confidence curve (1 is linear)")
	f.IntVar(&segmentFlags.candidates, "candidates", 8,
		"nearest primitives fetched per point before exact refinement")
	f.IntVar(&segmentFlags.workers, "workers", 0,
		"parallelism degree (default all CPUs)")
	f.IntVar(&segmentFlags.maxIterations, "max-iterations", 100,
		"alignment iteration budget")
	f.Float64Var(&segmentFlags.convergence, "convergence", 1e-4,
		"alignment convergence threshold on the update magnitude")
	f.IntVar(&segmentFlags.sampleSize, "sample-size", 2000,
		"points sampled per alignment iteration")
	f.Int64Var(&segmentFlags.seed, "seed", 0, "alignment sampling seed")
	f.BoolVar(&segmentFlags.affine, "affine", false,
		"allow an affine alignment solve instead of rigid-only")
	f.Float64Var(&segmentFlags.maxPrimitiveSize, "max-primitive-size", 0,
		"decomposition threshold for reference surfaces (0 disables)")
	f.StringVar(&segmentFlags.onDivergence, "on-divergence", "proceed",
		"reaction to non-converged alignment: proceed, fallback or abort")
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
	raw, c, initial, err := loadInputs(args[0], args[1], segmentFlags.transform)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "model: %s\n", loader.ElementSummary(raw))
	fmt.Fprintf(os.Stderr, "cloud: %s\n", loader.CloudSummary(c))

	policy, err := divergencePolicy(segmentFlags.onDivergence)
	if err != nil {
		return err
	}
	priority, err := typePriority(segmentFlags.priority)
	if err != nil {
		return err
	}

	opts := engine.Options{
		Build: model.BuildOptions{MaxPrimitiveSize: segmentFlags.maxPrimitiveSize},
		Align: align.Options{
			MaxIterations:        segmentFlags.maxIterations,
			ConvergenceThreshold: segmentFlags.convergence,
			SampleSize:           segmentFlags.sampleSize,
			Seed:                 segmentFlags.seed,
			Workers:              segmentFlags.workers,
			Candidates:           segmentFlags.candidates,
			AllowAffine:          segmentFlags.affine,
		},
		Classify: classify.Options{
			DistanceThreshold:  segmentFlags.threshold,
			AmbiguityMargin:    segmentFlags.margin,
			Candidates:         segmentFlags.candidates,
			Workers:            segmentFlags.workers,
			TypePriority:       priority,
			ConfidenceExponent: segmentFlags.confidenceExp,
		},
		InitialTransform: initial,
		AssumeAligned:    segmentFlags.assumeAligned,
		Divergence:       policy,
	}

	result, err := engine.Run(cmd.Context(), raw, c, opts)
	if err != nil {
		return err
	}

	if segmentFlags.out == "" {
		return report.Write(os.Stdout, result)
	}
	if err := report.WriteFile(segmentFlags.out, result); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "report written to %s\n", segmentFlags.out)
	return nil
}

func divergencePolicy(s string) (engine.DivergencePolicy, error) {
	switch s {
	case "proceed":
		return engine.DivergenceProceed, nil
	case "fallback":
		return engine.DivergenceFallback, nil
	case "abort":
		return engine.DivergenceAbort, nil
	default:
		return 0, fmt.Errorf("unknown --on-divergence value %q", s)
	}
}

func typePriority(names []string) ([]model.ElementType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]model.ElementType, len(names))
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("empty element type in --priority")
		}
		out[i] = model.ElementType(n)
	}
	return out, nil
}
