package source

import "fmt"

// GeometryError reports degenerate source or rupture geometry.
type GeometryError struct {
	Reason string
	Err    error
}

func (e *GeometryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geometry: %s: %v", e.Reason, e.Err)
	}
	return "geometry: " + e.Reason
}

func (e *GeometryError) Unwrap() error {
	return e.Err
}

// NewGeometryError builds a GeometryError with a formatted reason.
func NewGeometryError(format string, args ...any) *GeometryError {
	return &GeometryError{Reason: fmt.Sprintf(format, args...)}
}
