// Package loader reads the generic boundary formats the engine consumes:
// a JSON reference-element collection and XYZ/PTS text point buffers.
// Native schematic formats (IFC and friends) are converted to the JSON
// form by external tooling; the loader never interprets semantics beyond
// the generic geometry, and malformed geometry is the model builder's
// concern, not the loader's.
package loader

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/model"
)

// elementFile is the on-disk JSON shape of a reference-element set.
type elementFile struct {
	Elements []jsonElement `json:"elements"`
}

type jsonElement struct {
	ID        string         `json:"id"`
	Type      string         `json:"type,omitempty"`
	Polygons  [][][3]float64 `json:"polygons,omitempty"`
	Cylinders []jsonCylinder `json:"cylinders,omitempty"`
}

type jsonCylinder struct {
	Base   [3]float64 `json:"base"`
	Axis   [3]float64 `json:"axis"`
	Height float64    `json:"height"`
	Radius float64    `json:"radius"`
}

// ReadElements decodes a JSON element collection.
func ReadElements(r io.Reader) ([]model.RawElement, error) {
	var file elementFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding element collection: %w", err)
	}

	out := make([]model.RawElement, 0, len(file.Elements))
	for _, je := range file.Elements {
		re := model.RawElement{ID: je.ID, Type: je.Type}
		for _, loop := range je.Polygons {
			verts := make([]v3.Vec, len(loop))
			for i, p := range loop {
				verts[i] = vec(p)
			}
			re.Polygons = append(re.Polygons, verts)
		}
		for _, jc := range je.Cylinders {
			re.Cylinders = append(re.Cylinders, model.RawCylinder{
				Base:   vec(jc.Base),
				Axis:   vec(jc.Axis),
				Height: jc.Height,
				Radius: jc.Radius,
			})
		}
		out = append(out, re)
	}
	return out, nil
}

// ReadElementsFile decodes the JSON element collection at path.
func ReadElementsFile(path string) ([]model.RawElement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening element collection: %w", err)
	}
	defer f.Close()
	elems, err := ReadElements(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return elems, nil
}

func vec(p [3]float64) v3.Vec {
	return v3.Vec{X: p[0], Y: p[1], Z: p[2]}
}
