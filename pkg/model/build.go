package model

import (
	"fmt"
	"sort"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/geom"
)

// RawElement is the generic geometric-element form produced by an
// external reference-model loader: an identifier, a type tag, and
// geometry as planar polygon loops and/or cylinder solids.
type RawElement struct {
	ID        string
	Type      string
	Polygons  [][]v3.Vec
	Cylinders []RawCylinder
}

// RawCylinder describes a cylindrical solid in loader form.
type RawCylinder struct {
	Base   v3.Vec
	Axis   v3.Vec
	Height float64
	Radius float64
}

// BuildOptions configures model construction.
type BuildOptions struct {
	// MaxPrimitiveSize is the decomposition threshold: no primitive edge
	// or band exceeds this length. Zero disables decomposition.
	MaxPrimitiveSize float64
}

// SkippedElement records one element excluded during the build and why.
type SkippedElement struct {
	ID  ElementID
	Err *MalformedGeometryError
}

// Model is the immutable collection of reference elements and their
// primitives. Primitives refer to their element by identifier only; the
// model is the side table that resolves the reference.
type Model struct {
	elements   map[ElementID]*ReferenceElement
	order      []ElementID
	primitives []SurfacePrimitive
	skipped    []SkippedElement
}

// Build normalizes loader output into a Model. Elements with degenerate
// geometry (zero-area face, invalid cylinder, duplicate identifier, no
// geometry at all) are excluded and recorded, never fatal: inspect
// Skipped for the report. Polygon loops are assumed planar and convex,
// per the loader contract, and are fanned into triangles.
func Build(raw []RawElement, opts BuildOptions) *Model {
	m := &Model{elements: make(map[ElementID]*ReferenceElement)}

	for _, re := range raw {
		id := ElementID(re.ID)
		if id == Unassigned {
			m.skip(id, "empty identifier")
			continue
		}
		if _, dup := m.elements[id]; dup {
			m.skip(id, "duplicate identifier")
			continue
		}
		prims, reason := decompose(id, re, opts.MaxPrimitiveSize)
		if reason != "" {
			m.skip(id, reason)
			continue
		}

		elem := &ReferenceElement{
			ID:         id,
			Type:       elementType(re.Type),
			Primitives: prims,
		}
		elem.Bounds = prims[0].Bounds()
		for _, p := range prims {
			elem.Bounds = elem.Bounds.Extend(p.Bounds())
			elem.Area += p.Area()
		}

		m.elements[id] = elem
		m.order = append(m.order, id)
		m.primitives = append(m.primitives, prims...)
	}

	sort.Slice(m.order, func(i, j int) bool { return m.order[i] < m.order[j] })
	return m
}

// decompose turns one raw element into primitives, or a non-empty reason
// why the element is malformed.
func decompose(id ElementID, re RawElement, maxSize float64) ([]SurfacePrimitive, string) {
	if len(re.Polygons) == 0 && len(re.Cylinders) == 0 {
		return nil, "element has no geometry"
	}

	var prims []SurfacePrimitive
	for fi, loop := range re.Polygons {
		if len(loop) < 3 {
			return nil, fmt.Sprintf("face %d has %d vertices", fi, len(loop))
		}
		for i := 1; i < len(loop)-1; i++ {
			tri, ok := NewTriangle(id, loop[0], loop[i], loop[i+1])
			if !ok {
				return nil, fmt.Sprintf("face %d has a zero-area or non-finite triangle", fi)
			}
			prims = tri.subdivide(maxSize, prims)
		}
	}
	for ci, rc := range re.Cylinders {
		cyl, ok := NewCylinderPatch(id, rc.Base, rc.Axis, rc.Height, rc.Radius)
		if !ok {
			return nil, fmt.Sprintf("cylinder %d has degenerate dimensions", ci)
		}
		prims = cyl.subdivide(maxSize, prims)
	}

	if len(prims) == 0 {
		return nil, "element decomposed to no primitives"
	}
	for _, p := range prims {
		if !geom.Finite(p.Bounds()) {
			return nil, "primitive bounds are not finite"
		}
	}
	return prims, ""
}

func (m *Model) skip(id ElementID, reason string) {
	m.skipped = append(m.skipped, SkippedElement{
		ID:  id,
		Err: &MalformedGeometryError{ID: id, Reason: reason},
	})
}

// Element resolves an element identifier.
func (m *Model) Element(id ElementID) (*ReferenceElement, bool) {
	e, ok := m.elements[id]
	return e, ok
}

// Elements returns all elements in ascending identifier order.
func (m *Model) Elements() []*ReferenceElement {
	out := make([]*ReferenceElement, len(m.order))
	for i, id := range m.order {
		out[i] = m.elements[id]
	}
	return out
}

// Primitives returns every primitive in the model.
func (m *Model) Primitives() []SurfacePrimitive {
	return m.primitives
}

// Skipped returns the elements excluded during the build.
func (m *Model) Skipped() []SkippedElement {
	return m.skipped
}

// Len returns the number of usable elements.
func (m *Model) Len() int {
	return len(m.order)
}

func elementType(s string) ElementType {
	if s == "" {
		return TypeUnknown
	}
	return ElementType(s)
}
