package main

import (
	"fmt"

	"github.com/refseg/refseg/pkg/cloud"
	"github.com/refseg/refseg/pkg/geom"
	"github.com/refseg/refseg/pkg/loader"
	"github.com/refseg/refseg/pkg/model"
)

// loadInputs reads the reference elements and point cloud and parses the
// optional column-major transform. A nil transform means identity.
func loadInputs(modelPath, cloudPath string, transform []float64) ([]model.RawElement, *cloud.Cloud, *geom.Transform, error) {
	raw, err := loader.ReadElementsFile(modelPath)
	if err != nil {
		return nil, nil, nil, err
	}
	c, err := loader.ReadPointsFile(cloudPath)
	if err != nil {
		return nil, nil, nil, err
	}

	var initial *geom.Transform
	if len(transform) > 0 {
		tr, err := geom.FromColumnMajor(transform)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parsing --transform: %w", err)
		}
		initial = &tr
	}
	return raw, c, initial, nil
}

func geomOrIdentity(tr *geom.Transform) geom.Transform {
	if tr == nil {
		return geom.Identity()
	}
	return *tr
}
