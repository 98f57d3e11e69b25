package source

import (
	"math"

	"github.com/sells-group/hazard-cli/internal/geo"
)

// PointSource is a source concentrated at a single hypocenter, producing one
// rupture per magnitude bin.
type PointSource struct {
	SourceID   string
	Region     string
	Location   geo.Point
	Magnitudes []float64
}

var _ Source = (*PointSource)(nil)

// ID returns the source identifier.
func (s *PointSource) ID() string { return s.SourceID }

// TRT returns the tectonic region type.
func (s *PointSource) TRT() string { return s.Region }

// MinMaxMag returns the magnitude range covered by the bins.
func (s *PointSource) MinMaxMag() (float64, float64) {
	if len(s.Magnitudes) == 0 {
		return 0, 0
	}
	lo, hi := s.Magnitudes[0], s.Magnitudes[0]
	for _, m := range s.Magnitudes[1:] {
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	return lo, hi
}

// Extent returns the degenerate box at the source location.
func (s *PointSource) Extent() (geo.BBox, error) {
	if err := checkPoint(s.Location); err != nil {
		return geo.BBox{}, err
	}
	p := s.Location
	return geo.BBox{MinLon: p.Lon, MinLat: p.Lat, MaxLon: p.Lon, MaxLat: p.Lat}, nil
}

// Ruptures returns one rupture per magnitude bin, in bin order.
func (s *PointSource) Ruptures() ([]Rupture, error) {
	if err := checkPoint(s.Location); err != nil {
		return nil, err
	}
	out := make([]Rupture, 0, len(s.Magnitudes))
	for _, m := range s.Magnitudes {
		if math.IsNaN(m) || m <= 0 {
			return nil, NewGeometryError("invalid magnitude %v", m)
		}
		out = append(out, &PointRupture{Magnitude: m, Hypo: s.Location})
	}
	return out, nil
}

func checkPoint(p geo.Point) error {
	switch {
	case math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0):
		return NewGeometryError("invalid longitude %v", p.Lon)
	case math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90:
		return NewGeometryError("invalid latitude %v", p.Lat)
	case math.IsNaN(p.Depth) || p.Depth < 0:
		return NewGeometryError("invalid hypocentral depth %v", p.Depth)
	}
	return nil
}

// PointRupture is a rupture with no spatial extent.
type PointRupture struct {
	Magnitude float64
	Hypo      geo.Point
}

var _ Rupture = (*PointRupture)(nil)

func (r *PointRupture) Mag() float64          { return r.Magnitude }
func (r *PointRupture) Hypocenter() geo.Point { return r.Hypo }
func (r *PointRupture) Surface() Surface      { return PointSurface{Hypo: r.Hypo} }

// PointSurface measures every distance from the hypocenter. Epicentral
// distance stands in for the Joyner-Boore distance and the hypocentral
// distance for the closest distance; the strike-relative offsets are zero.
type PointSurface struct {
	Hypo geo.Point
}

var _ Surface = PointSurface{}

func (s PointSurface) epicentral(mesh geo.Mesh) ([]float64, error) {
	if err := checkPoint(s.Hypo); err != nil {
		return nil, err
	}
	if len(mesh.Lats) != len(mesh.Lons) {
		return nil, NewGeometryError("mesh has %d longitudes and %d latitudes", len(mesh.Lons), len(mesh.Lats))
	}
	out := make([]float64, mesh.Len())
	for i := range out {
		out[i] = geo.GeodeticDistance(s.Hypo.Lon, s.Hypo.Lat, mesh.Lons[i], mesh.Lats[i])
	}
	return out, nil
}

// MinDistance returns the hypocentral distance.
func (s PointSurface) MinDistance(mesh geo.Mesh) ([]float64, error) {
	d, err := s.epicentral(mesh)
	if err != nil {
		return nil, err
	}
	for i := range d {
		d[i] = math.Hypot(d[i], s.Hypo.Depth)
	}
	return d, nil
}

// JoynerBooreDistance returns the epicentral distance.
func (s PointSurface) JoynerBooreDistance(mesh geo.Mesh) ([]float64, error) {
	return s.epicentral(mesh)
}

func (s PointSurface) RxDistance(mesh geo.Mesh) ([]float64, error) {
	return s.zeros(mesh)
}

func (s PointSurface) Ry0Distance(mesh geo.Mesh) ([]float64, error) {
	return s.zeros(mesh)
}

func (s PointSurface) zeros(mesh geo.Mesh) ([]float64, error) {
	if err := checkPoint(s.Hypo); err != nil {
		return nil, err
	}
	return make([]float64, mesh.Len()), nil
}

// Azimuth returns the bearing from the hypocenter to each site.
func (s PointSurface) Azimuth(mesh geo.Mesh) ([]float64, error) {
	if err := checkPoint(s.Hypo); err != nil {
		return nil, err
	}
	if len(mesh.Lats) != len(mesh.Lons) {
		return nil, NewGeometryError("mesh has %d longitudes and %d latitudes", len(mesh.Lons), len(mesh.Lats))
	}
	out := make([]float64, mesh.Len())
	for i := range out {
		out[i] = geo.Azimuth(s.Hypo.Lon, s.Hypo.Lat, mesh.Lons[i], mesh.Lats[i])
	}
	return out, nil
}
