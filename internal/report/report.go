// Package report serializes a segmentation run into a JSON document for
// downstream tooling. Floating-point statistics are rounded through
// decimals so reports diff cleanly across runs and platforms.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/refseg/refseg/pkg/engine"
)

// Places is the number of decimal places kept for every rounded
// statistic in the report.
const Places = 6

// Document is the top-level JSON report shape.
type Document struct {
	RunID     string     `json:"run_id"`
	Transform Transform  `json:"transform"`
	Fit       Fit        `json:"fit"`
	Model     ModelStats `json:"model"`
	Points    PointStats `json:"points"`
	Groups    []Group    `json:"groups"`
}

// Transform is the final capture-to-model mapping, column-major with a
// (0 0 0 1) bottom row, in the same layout the CLI accepts.
type Transform struct {
	Kind        string    `json:"kind"`
	ColumnMajor []float64 `json:"column_major"`
}

// Fit mirrors the alignment quality metrics.
type Fit struct {
	MeanResidual   float64 `json:"mean_residual"`
	MedianResidual float64 `json:"median_residual"`
	Iterations     int     `json:"iterations"`
	Converged      bool    `json:"converged"`
	Diverged       bool    `json:"diverged"`
	SampleCount    int     `json:"sample_count"`
}

// ModelStats summarizes the usable reference model and its exclusions.
type ModelStats struct {
	Elements   int       `json:"elements"`
	Primitives int       `json:"primitives"`
	Skipped    []Skipped `json:"skipped,omitempty"`
}

// Skipped records one reference element excluded for malformed geometry.
type Skipped struct {
	Element string `json:"element"`
	Reason  string `json:"reason"`
}

// PointStats partitions the cloud by classification outcome.
type PointStats struct {
	Total      int `json:"total"`
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`
	Ambiguous  int `json:"ambiguous"`
}

// Group is one segment group. The unassigned bucket has an empty
// element identifier. Point indices are omitted from the report; they
// are bulk data for programmatic consumers of the engine API.
type Group struct {
	Element        string  `json:"element"`
	Type           string  `json:"type"`
	Count          int     `json:"count"`
	MeanResidual   float64 `json:"mean_residual"`
	MedianResidual float64 `json:"median_residual"`
	Coverage       float64 `json:"coverage"`
	Ambiguous      int     `json:"ambiguous"`
}

// Build converts an engine result into the report document.
func Build(res *engine.Result) Document {
	cm := res.Transform.ToColumnMajor()
	rounded := make([]float64, len(cm))
	for i, v := range cm {
		rounded[i] = round(v)
	}

	doc := Document{
		RunID: res.Diagnostics.RunID,
		Transform: Transform{
			Kind:        res.Transform.Kind.String(),
			ColumnMajor: rounded,
		},
		Fit: Fit{
			MeanResidual:   round(res.Fit.MeanResidual),
			MedianResidual: round(res.Fit.MedianResidual),
			Iterations:     res.Fit.Iterations,
			Converged:      res.Fit.Converged,
			Diverged:       res.Fit.Diverged,
			SampleCount:    res.Fit.SampleCount,
		},
		Model: ModelStats{
			Elements:   res.Diagnostics.Elements,
			Primitives: res.Diagnostics.Primitives,
		},
		Points: PointStats{
			Total:      res.Diagnostics.TotalPoints,
			Assigned:   res.Diagnostics.AssignedPoints,
			Unassigned: res.Diagnostics.UnassignedPoints,
			Ambiguous:  res.Diagnostics.AmbiguousPoints,
		},
	}
	for _, s := range res.Diagnostics.Skipped {
		doc.Model.Skipped = append(doc.Model.Skipped, Skipped{
			Element: string(s.ID),
			Reason:  s.Err.Reason,
		})
	}
	for _, g := range res.Groups {
		doc.Groups = append(doc.Groups, Group{
			Element:        string(g.Element),
			Type:           string(g.Type),
			Count:          g.Count,
			MeanResidual:   round(g.MeanResidual),
			MedianResidual: round(g.MedianResidual),
			Coverage:       round(g.Coverage),
			Ambiguous:      g.AmbiguousCount,
		})
	}
	return doc
}

// Write emits the report for res as indented JSON.
func Write(w io.Writer, res *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Build(res)); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteFile writes the report to path, replacing any existing file.
func WriteFile(path string, res *engine.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := Write(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// round keeps Places decimal places. The -1 unknown-coverage sentinel
// and other exact values pass through unchanged.
func round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(Places).InexactFloat64()
}
