// Package model normalizes reference-model elements into immutable
// collections of surface primitives suitable for nearest-feature queries.
// Elements arrive from an external loader as generic polygon/solid
// geometry; the builder decomposes them into primitives small enough for
// reliable point-to-surface distance computation and excludes degenerate
// geometry element by element.
package model

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/refseg/refseg/pkg/geom"
)

// ElementID is the stable identifier of a reference element. IDs are
// stable across runs for the same input model.
type ElementID string

// Unassigned is the sentinel element identifier for points that matched
// no reference element.
const Unassigned ElementID = ""

// ElementType tags a reference element with its schematic category.
// The enumeration is open: loaders may pass types not listed here.
type ElementType string

const (
	TypeWall    ElementType = "wall"
	TypeSlab    ElementType = "slab"
	TypeColumn  ElementType = "column"
	TypeBeam    ElementType = "beam"
	TypePipe    ElementType = "pipe"
	TypeDoor    ElementType = "door"
	TypeWindow  ElementType = "window"
	TypeRoof    ElementType = "roof"
	TypeUnknown ElementType = "unknown"
)

// SurfacePrimitive is the atomic unit for distance queries: a small
// planar or curved surface patch. A primitive belongs to exactly one
// reference element and carries only the element's identifier, never a
// pointer back to it; the owning Model resolves identifiers.
type SurfacePrimitive interface {
	// Element returns the identifier of the owning reference element.
	Element() ElementID
	// Bounds returns the primitive's axis-aligned bounding box.
	Bounds() geom.Box
	// Area returns the surface area of the patch.
	Area() float64
	// Closest returns the point on the patch nearest to p.
	Closest(p v3.Vec) v3.Vec
	// Distance returns the unsigned distance from p to the patch.
	Distance(p v3.Vec) float64
	// SignedDistance returns the distance with surface orientation:
	// negative on the back/inside of the patch. Diagnostic only; all
	// classification math uses the unsigned distance.
	SignedDistance(p v3.Vec) float64
}

// ReferenceElement is one schematic element, decomposed into primitives.
// Immutable once constructed for a session.
type ReferenceElement struct {
	ID         ElementID
	Type       ElementType
	Primitives []SurfacePrimitive
	Bounds     geom.Box
	Area       float64
}
