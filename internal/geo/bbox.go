package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// BBox represents a geographic bounding box in degrees.
//
// Once normalized, longitudes are in [0, 360); a box whose MinLon is greater
// than its MaxLon wraps across the 0/360 meridian.
type BBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Normalized returns the box with both longitudes mapped into [0, 360).
// A box spanning 360 degrees or more of longitude becomes the full band.
func (b BBox) Normalized() BBox {
	if b.MaxLon-b.MinLon >= 360 {
		return BBox{MinLon: 0, MinLat: b.MinLat, MaxLon: 360, MaxLat: b.MaxLat}
	}
	return BBox{
		MinLon: NormalizeLon(b.MinLon),
		MinLat: b.MinLat,
		MaxLon: NormalizeLon(b.MaxLon),
		MaxLat: b.MaxLat,
	}
}

// Wraps reports whether the box crosses the 0/360 meridian.
func (b BBox) Wraps() bool {
	return b.MinLon > b.MaxLon
}

// Parts splits a normalized box into one or two non-wrapping boxes.
func (b BBox) Parts() []BBox {
	if !b.Wraps() {
		return []BBox{b}
	}
	return []BBox{
		{MinLon: b.MinLon, MinLat: b.MinLat, MaxLon: 360, MaxLat: b.MaxLat},
		{MinLon: 0, MinLat: b.MinLat, MaxLon: b.MaxLon, MaxLat: b.MaxLat},
	}
}

// Bounds converts a non-wrapping box into go-geom bounds.
func (b BBox) Bounds() *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Contains reports whether the point lies inside the box, borders included.
// The longitude is normalized before the test, so the box must be
// normalized too.
func (b BBox) Contains(lon, lat float64) bool {
	coord := geom.Coord{NormalizeLon(lon), lat}
	for _, part := range b.Parts() {
		if part.Bounds().OverlapsPoint(geom.XY, coord) {
			return true
		}
	}
	return false
}

// Width returns the longitude span of a normalized box in degrees.
func (b BBox) Width() float64 {
	return math.Mod(b.MaxLon-b.MinLon+360, 360)
}

// Height returns the latitude span of the box in degrees.
func (b BBox) Height() float64 {
	return b.MaxLat - b.MinLat
}

// Enlarge expands the box by km kilometers on every side. The latitude
// margin is capped at 90 degrees and the longitude margin at 180 degrees.
// The result is not normalized.
func (b BBox) Enlarge(km float64) BBox {
	a1 := math.Min(km*KMToDegrees, 90)
	a2 := math.Min(AngularDistanceBetween(km, b.MinLat, b.MaxLat), 180)
	return BBox{
		MinLon: b.MinLon - a2,
		MinLat: b.MinLat - a1,
		MaxLon: b.MaxLon + a2,
		MaxLat: b.MaxLat + a1,
	}
}

// PointBBox returns the box of half-size km around a point. The result is
// not normalized.
func PointBBox(lon, lat, km float64) BBox {
	a1 := math.Min(km*KMToDegrees, 90)
	a2 := math.Min(AngularDistance(km, lat), 180)
	return BBox{MinLon: lon - a2, MinLat: lat - a1, MaxLon: lon + a2, MaxLat: lat + a1}
}

// ExtentOf returns the smallest box holding all points. Longitudes are
// shifted into [0, 360) when the points straddle the antimeridian.
func ExtentOf(points []Point) BBox {
	if len(points) == 0 {
		return BBox{}
	}
	b := BBox{
		MinLon: math.Inf(1), MinLat: math.Inf(1),
		MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	for _, p := range points {
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
	}
	if CrossesAntimeridian(b.MinLon, b.MaxLon) {
		b.MinLon, b.MaxLon = math.Inf(1), math.Inf(-1)
		for _, p := range points {
			lon := NormalizeLon(p.Lon)
			b.MinLon = math.Min(b.MinLon, lon)
			b.MaxLon = math.Max(b.MaxLon, lon)
		}
	}
	return b
}
