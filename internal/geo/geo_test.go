package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKMToDegrees(t *testing.T) {
	// One degree of great circle is about 111.2 km.
	assert.InDelta(t, 1.0, 111.195*KMToDegrees, 0.001)
}

func TestAngularDistance(t *testing.T) {
	tests := []struct {
		name     string
		km       float64
		lat      float64
		expected float64
	}{
		{name: "equator", km: 100, lat: 0, expected: 0.89932},
		{name: "60 degrees doubles the span", km: 100, lat: 60, expected: 1.79864},
		{name: "southern hemisphere is symmetric", km: 100, lat: -60, expected: 1.79864},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AngularDistance(tt.km, tt.lat), 1e-4)
		})
	}
}

func TestAngularDistanceBetween_UsesLargestLatitude(t *testing.T) {
	assert.InDelta(t, AngularDistance(50, 60), AngularDistanceBetween(50, 10, -60), 1e-12)
}

func TestNormalizeLon(t *testing.T) {
	tests := []struct {
		in, out float64
	}{
		{0, 0},
		{11, 11},
		{181, 181},
		{-1, 359},
		{-182, 178},
		{360, 0},
		{725, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.out, NormalizeLon(tt.in), 1e-9, "lon %v", tt.in)
	}
}

func TestCrossesAntimeridian(t *testing.T) {
	assert.False(t, CrossesAntimeridian(10, 20))
	assert.True(t, CrossesAntimeridian(-179, 179))
	assert.True(t, CrossesAntimeridian(179, -179))
}

func TestGeodeticDistance(t *testing.T) {
	// One degree along the equator.
	assert.InDelta(t, 111.195, GeodeticDistance(0, 0, 1, 0), 0.01)
	// Same point.
	assert.InDelta(t, 0, GeodeticDistance(12.5, 41.9, 12.5, 41.9), 1e-9)
	// Symmetric.
	d1 := GeodeticDistance(10, 45, 12, 46)
	d2 := GeodeticDistance(12, 46, 10, 45)
	assert.InDelta(t, d1, d2, 1e-9)
	// Across the antimeridian is short.
	assert.InDelta(t, 2*111.195, GeodeticDistance(179, 0, -179, 0), 0.05)
}

func TestAzimuth(t *testing.T) {
	assert.InDelta(t, 0, Azimuth(0, 0, 0, 1), 1e-9)
	assert.InDelta(t, 90, Azimuth(0, 0, 1, 0), 1e-9)
	assert.InDelta(t, 180, Azimuth(0, 1, 0, 0), 1e-9)
	assert.InDelta(t, 270, Azimuth(1, 0, 0, 0), 1e-9)
}

func TestMeshLen(t *testing.T) {
	m := Mesh{Lons: []float64{1, 2, 3}, Lats: []float64{0, 0, 0}}
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 0, Mesh{}.Len())
}
