// Package source defines the seismic source and rupture collaborators
// consumed by the filtering pipeline, plus a point-source implementation.
package source

import (
	"github.com/sells-group/hazard-cli/internal/geo"
)

// Source is a seismic source able to enumerate its ruptures.
type Source interface {
	ID() string
	TRT() string
	MinMaxMag() (minMag, maxMag float64)
	// Extent returns the bounding box of the source geometry, not enlarged.
	Extent() (geo.BBox, error)
	Ruptures() ([]Rupture, error)
}

// Rupture is a single earthquake scenario generated by a source.
type Rupture interface {
	Mag() float64
	Hypocenter() geo.Point
	Surface() Surface
}

// Surface computes rupture-to-site distances, one value per mesh point.
type Surface interface {
	MinDistance(mesh geo.Mesh) ([]float64, error)
	JoynerBooreDistance(mesh geo.Mesh) ([]float64, error)
	RxDistance(mesh geo.Mesh) ([]float64, error)
	Ry0Distance(mesh geo.Mesh) ([]float64, error)
	Azimuth(mesh geo.Mesh) ([]float64, error)
}

// DirectivityRupture is implemented by ruptures that can compute the
// direct-point parameter used by directivity models.
type DirectivityRupture interface {
	Rupture
	CDPPValue(mesh geo.Mesh) ([]float64, error)
}
