// Package geo provides the geodesy helpers used by site filtering: bounding
// boxes in longitude/latitude space, angular conversions and great-circle
// distances.
package geo

import (
	"math"
)

const (
	// EarthRadiusKM is the mean Earth radius used for great-circle distances.
	EarthRadiusKM = 6371.0

	// KMToDegrees converts a great-circle distance in kilometers to degrees
	// of arc (360 / (2 * pi * EarthRadiusKM)).
	KMToDegrees = 0.0089932

	degreesToRad = math.Pi / 180.0
)

// Point is a geographic location. Depth is in kilometers, positive down.
type Point struct {
	Lon   float64 `json:"lon" yaml:"lon"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Depth float64 `json:"depth,omitempty" yaml:"depth,omitempty"`
}

// Mesh is a set of points stored as parallel coordinate slices.
type Mesh struct {
	Lons   []float64
	Lats   []float64
	Depths []float64
}

// Len returns the number of points in the mesh.
func (m Mesh) Len() int {
	return len(m.Lons)
}

// AngularDistance returns the longitude span in degrees covered by km
// kilometers at the given latitude.
func AngularDistance(km, lat float64) float64 {
	return km * KMToDegrees / math.Cos(lat*degreesToRad)
}

// AngularDistanceBetween is AngularDistance evaluated at the latitude of
// largest magnitude between lat1 and lat2, where degrees of longitude are
// shortest.
func AngularDistanceBetween(km, lat1, lat2 float64) float64 {
	return AngularDistance(km, math.Max(math.Abs(lat1), math.Abs(lat2)))
}

// NormalizeLon maps a longitude into [0, 360).
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// CrossesAntimeridian reports whether the shortest span between two
// longitudes crosses the 180th meridian.
func CrossesAntimeridian(lon1, lon2 float64) bool {
	if lon1 > lon2 {
		lon1, lon2 = lon2, lon1
	}
	return lon2-lon1 > 180
}

// GeodeticDistance returns the great-circle distance in km between two
// points using the haversine formula.
func GeodeticDistance(lon1, lat1, lon2, lat2 float64) float64 {
	lon1, lat1 = lon1*degreesToRad, lat1*degreesToRad
	lon2, lat2 = lon2*degreesToRad, lat2*degreesToRad
	a := math.Pow(math.Sin((lat1-lat2)/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin((lon1-lon2)/2), 2)
	return 2 * EarthRadiusKM * math.Asin(math.Sqrt(a))
}

// Azimuth returns the initial bearing in degrees, clockwise from north and
// in [0, 360), from the first point towards the second.
func Azimuth(lon1, lat1, lon2, lat2 float64) float64 {
	lon1, lat1 = lon1*degreesToRad, lat1*degreesToRad
	lon2, lat2 = lon2*degreesToRad, lat2*degreesToRad
	cosLat2 := math.Cos(lat2)
	trueCourse := math.Atan2(
		math.Sin(lon2-lon1)*cosLat2,
		math.Cos(lat1)*math.Sin(lat2)-math.Sin(lat1)*cosLat2*math.Cos(lon2-lon1),
	)
	return math.Mod(trueCourse/degreesToRad+360, 360)
}
