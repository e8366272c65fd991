package model

import "fmt"

// MalformedGeometryError reports a reference element whose geometry could
// not be decomposed into valid primitives. The element is excluded from
// the model and reported; the load itself continues.
type MalformedGeometryError struct {
	ID     ElementID
	Reason string
}

func (e *MalformedGeometryError) Error() string {
	return fmt.Sprintf("element %q: malformed geometry: %s", string(e.ID), e.Reason)
}
