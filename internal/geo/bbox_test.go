package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBox_Normalized(t *testing.T) {
	b := BBox{MinLon: -10, MinLat: 0, MaxLon: 10, MaxLat: 5}.Normalized()
	assert.InDelta(t, 350, b.MinLon, 1e-9)
	assert.InDelta(t, 10, b.MaxLon, 1e-9)
	assert.True(t, b.Wraps())

	full := BBox{MinLon: -200, MinLat: -1, MaxLon: 200, MaxLat: 1}.Normalized()
	assert.Equal(t, 0.0, full.MinLon)
	assert.Equal(t, 360.0, full.MaxLon)
	assert.False(t, full.Wraps())
}

func TestBBox_Parts(t *testing.T) {
	plain := BBox{MinLon: 10, MinLat: 0, MaxLon: 20, MaxLat: 1}
	assert.Len(t, plain.Parts(), 1)

	wrapped := BBox{MinLon: 350, MinLat: 0, MaxLon: 10, MaxLat: 1}
	parts := wrapped.Parts()
	require.Len(t, parts, 2)
	assert.Equal(t, BBox{MinLon: 350, MinLat: 0, MaxLon: 360, MaxLat: 1}, parts[0])
	assert.Equal(t, BBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 1}, parts[1])
}

func TestBBox_Contains(t *testing.T) {
	tests := []struct {
		name     string
		box      BBox
		lon, lat float64
		expected bool
	}{
		{name: "inside", box: BBox{10, 40, 20, 50}, lon: 15, lat: 45, expected: true},
		{name: "on border", box: BBox{10, 40, 20, 50}, lon: 10, lat: 50, expected: true},
		{name: "outside latitude", box: BBox{10, 40, 20, 50}, lon: 15, lat: 51, expected: false},
		{name: "outside longitude", box: BBox{10, 40, 20, 50}, lon: 21, lat: 45, expected: false},
		{name: "negative longitude in normalized box", box: BBox{340, -5, 350, 5}, lon: -15, lat: 0, expected: true},
		{name: "wrapped east side", box: BBox{350, -5, 10, 5}, lon: 5, lat: 0, expected: true},
		{name: "wrapped west side", box: BBox{350, -5, 10, 5}, lon: -5, lat: 0, expected: true},
		{name: "wrapped gap", box: BBox{350, -5, 10, 5}, lon: 180, lat: 0, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.box.Contains(tt.lon, tt.lat))
		})
	}
}

func TestBBox_WidthHeight(t *testing.T) {
	b := BBox{MinLon: 350, MinLat: -5, MaxLon: 10, MaxLat: 5}
	assert.InDelta(t, 20, b.Width(), 1e-9)
	assert.InDelta(t, 10, b.Height(), 1e-9)
}

func TestBBox_Enlarge(t *testing.T) {
	b := BBox{MinLon: 10, MinLat: 0, MaxLon: 11, MaxLat: 1}.Enlarge(100)
	assert.InDelta(t, 10-AngularDistance(100, 1), b.MinLon, 1e-9)
	assert.InDelta(t, 11+AngularDistance(100, 1), b.MaxLon, 1e-9)
	assert.InDelta(t, -0.89932, b.MinLat, 1e-9)
	assert.InDelta(t, 1.89932, b.MaxLat, 1e-9)
}

func TestBBox_EnlargeCapped(t *testing.T) {
	b := BBox{MinLon: 0, MinLat: 89, MaxLon: 0, MaxLat: 89}.Enlarge(20000)
	assert.InDelta(t, -1, b.MinLat, 1e-9)
	assert.InDelta(t, 179, b.MaxLat, 1e-9)
	assert.InDelta(t, -180, b.MinLon, 1e-9)
	assert.InDelta(t, 180, b.MaxLon, 1e-9)
}

func TestPointBBox(t *testing.T) {
	b := PointBBox(0, 0, 111.195)
	assert.InDelta(t, -1, b.MinLon, 1e-3)
	assert.InDelta(t, 1, b.MaxLon, 1e-3)
	assert.InDelta(t, -1, b.MinLat, 1e-3)
	assert.InDelta(t, 1, b.MaxLat, 1e-3)
}

func TestExtentOf(t *testing.T) {
	assert.Equal(t, BBox{}, ExtentOf(nil))

	b := ExtentOf([]Point{{Lon: 1, Lat: 2}, {Lon: 3, Lat: -1}, {Lon: 2, Lat: 5}})
	assert.Equal(t, BBox{MinLon: 1, MinLat: -1, MaxLon: 3, MaxLat: 5}, b)

	idl := ExtentOf([]Point{{Lon: 179, Lat: 0}, {Lon: -179, Lat: 1}})
	assert.InDelta(t, 179, idl.MinLon, 1e-9)
	assert.InDelta(t, 181, idl.MaxLon, 1e-9)
}
