package report

import (
	"bytes"
	"encoding/json"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/align"
	"github.com/refseg/refseg/pkg/engine"
	"github.com/refseg/refseg/pkg/geom"
	"github.com/refseg/refseg/pkg/model"
	"github.com/refseg/refseg/pkg/segment"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		Transform: geom.Translation(v3.Vec{X: 0.123456789, Z: -2}),
		Fit: align.FitQuality{
			MeanResidual:   0.0123456789,
			MedianResidual: 0.01,
			Iterations:     5,
			Converged:      true,
			SampleCount:    2000,
		},
		Groups: []segment.Group{
			{Element: "wall-1", Type: model.TypeWall, Count: 80, MeanResidual: 0.0111111111, MedianResidual: 0.01, Coverage: 1.2, AmbiguousCount: 2},
			{Element: model.Unassigned, Type: model.TypeUnknown, Count: 20, Coverage: -1},
		},
		Diagnostics: engine.Diagnostics{
			RunID:      "run-42",
			Elements:   1,
			Primitives: 2,
			Skipped: []model.SkippedElement{{
				ID:  "bad",
				Err: &model.MalformedGeometryError{ID: "bad", Reason: "element has no geometry"},
			}},
			TotalPoints:      100,
			AssignedPoints:   80,
			UnassignedPoints: 20,
			AmbiguousPoints:  2,
		},
	}
}

func TestBuild(t *testing.T) {
	doc := Build(sampleResult())

	if doc.RunID != "run-42" {
		t.Errorf("RunID = %q", doc.RunID)
	}
	if doc.Transform.Kind != "rigid" {
		t.Errorf("Transform.Kind = %q", doc.Transform.Kind)
	}
	if len(doc.Transform.ColumnMajor) != 16 {
		t.Fatalf("ColumnMajor has %d values", len(doc.Transform.ColumnMajor))
	}
	if doc.Transform.ColumnMajor[12] != 0.123457 {
		t.Errorf("tx = %v, want rounded 0.123457", doc.Transform.ColumnMajor[12])
	}
	if doc.Transform.ColumnMajor[15] != 1 {
		t.Errorf("bottom-right = %v, want 1", doc.Transform.ColumnMajor[15])
	}

	if doc.Fit.MeanResidual != 0.012346 {
		t.Errorf("Fit.MeanResidual = %v, want rounded 0.012346", doc.Fit.MeanResidual)
	}
	if doc.Points.Total != 100 || doc.Points.Assigned != 80 {
		t.Errorf("Points = %+v", doc.Points)
	}
	if len(doc.Model.Skipped) != 1 || doc.Model.Skipped[0].Element != "bad" {
		t.Errorf("Model.Skipped = %+v", doc.Model.Skipped)
	}

	if len(doc.Groups) != 2 {
		t.Fatalf("len(Groups) = %d", len(doc.Groups))
	}
	if doc.Groups[0].MeanResidual != 0.011111 {
		t.Errorf("group mean residual = %v, want rounded 0.011111", doc.Groups[0].MeanResidual)
	}
	if doc.Groups[1].Element != "" || doc.Groups[1].Coverage != -1 {
		t.Errorf("unassigned group = %+v", doc.Groups[1])
	}
}

func TestWriteRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if doc.RunID != "run-42" || len(doc.Groups) != 2 {
		t.Errorf("decoded document = %+v", doc)
	}
}
