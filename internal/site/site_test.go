package site

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hazard-cli/internal/geo"
)

func grid(t *testing.T) *Collection {
	t.Helper()
	c, err := New([]geo.Point{
		{Lon: 10, Lat: 45},
		{Lon: 11, Lat: 45},
		{Lon: 12, Lat: 46, Depth: 0.5},
		{Lon: 13, Lat: 46},
		{Lon: -179.5, Lat: 0},
	})
	require.NoError(t, err)
	return c
}

func TestNew_AssignsContiguousIDs(t *testing.T) {
	c := grid(t)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, c.SIDs())
	assert.True(t, c.IsComplete())
	assert.Same(t, c, c.Complete())
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, 0.5, c.At(2).Depth)
}

func TestNew_RejectsInvalidPoints(t *testing.T) {
	tests := []struct {
		name  string
		point geo.Point
	}{
		{name: "latitude above 90", point: geo.Point{Lon: 0, Lat: 91}},
		{name: "latitude below -90", point: geo.Point{Lon: 0, Lat: -90.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]geo.Point{{Lon: 1, Lat: 1}, tt.point})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "point 1")
		})
	}
}

func TestFiltered(t *testing.T) {
	c := grid(t)

	sub, err := c.Filtered([]uint32{3, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, sub.SIDs())
	assert.False(t, sub.IsComplete())
	assert.Same(t, c, sub.Complete())
	assert.Equal(t, []float64{11, 13}, sub.Lons())
	assert.Equal(t, []float64{45, 46}, sub.Lats())

	// A view of a view still indexes the complete collection.
	again, err := sub.Filtered([]uint32{0, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 4}, again.SIDs())

	all, err := sub.Filtered([]uint32{0, 1, 2, 3, 4})
	require.NoError(t, err)
	assert.Same(t, c, all)

	_, err = c.Filtered([]uint32{7})
	require.Error(t, err)

	// As many ids as sites, one of them out of range.
	_, err = c.Filtered([]uint32{0, 1, 2, 3, 99})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id 99 out of range")
}

func TestRestrict(t *testing.T) {
	c := grid(t)
	view, err := c.Filtered([]uint32{1, 2, 3})
	require.NoError(t, err)

	tests := []struct {
		name     string
		sids     []uint32
		expected []uint32
	}{
		{name: "subset", sids: []uint32{3, 1}, expected: []uint32{1, 3}},
		{name: "ids outside the view are ignored", sids: []uint32{0, 2, 4}, expected: []uint32{2}},
		{name: "whole view", sids: []uint32{0, 1, 2, 3, 4}, expected: []uint32{1, 2, 3}},
		{name: "no overlap", sids: []uint32{0, 4}},
		{name: "empty", sids: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := view.Restrict(tt.sids)
			if tt.expected == nil {
				assert.Nil(t, sub)
				return
			}
			require.NotNil(t, sub)
			assert.Equal(t, tt.expected, sub.SIDs())
			assert.Same(t, c, sub.Complete())
		})
	}
}

func TestFilter(t *testing.T) {
	c := grid(t)

	sub, err := c.Filter([]bool{false, true, true, false, false})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, sub.SIDs())

	none, err := c.Filter(make([]bool, 5))
	require.NoError(t, err)
	assert.Nil(t, none)

	same, err := c.Filter([]bool{true, true, true, true, true})
	require.NoError(t, err)
	assert.Same(t, c, same)

	_, err = c.Filter([]bool{true})
	require.Error(t, err)
}

func TestWithinBBox(t *testing.T) {
	c := grid(t)

	sub := c.WithinBBox(geo.BBox{MinLon: 10.5, MinLat: 44, MaxLon: 12.5, MaxLat: 47})
	require.NotNil(t, sub)
	assert.Equal(t, []uint32{1, 2}, sub.SIDs())

	idlBox := geo.BBox{MinLon: -181, MinLat: -1, MaxLon: -178, MaxLat: 1}.Normalized()
	idl := c.WithinBBox(idlBox)
	require.NotNil(t, idl)
	assert.Equal(t, []uint32{4}, idl.SIDs())

	assert.Nil(t, c.WithinBBox(geo.BBox{MinLon: 100, MinLat: 0, MaxLon: 101, MaxLat: 1}))
}

func TestMesh(t *testing.T) {
	c := grid(t)
	sub, err := c.Filtered([]uint32{2})
	require.NoError(t, err)

	m := sub.Mesh()
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []float64{12}, m.Lons)
	assert.Equal(t, []float64{46}, m.Lats)
	assert.Equal(t, []float64{0.5}, m.Depths)
}

func TestCollection_JSONRoundTrip(t *testing.T) {
	c := grid(t)
	sub, err := c.Filtered([]uint32{1, 4})
	require.NoError(t, err)

	data, err := json.Marshal(sub)
	require.NoError(t, err)

	var back Collection
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []uint32{1, 4}, back.SIDs())
	assert.Equal(t, 5, back.Complete().Len())
	assert.False(t, back.IsComplete())

	data, err = json.Marshal(c)
	require.NoError(t, err)
	var full Collection
	require.NoError(t, json.Unmarshal(data, &full))
	assert.True(t, full.IsComplete())
	assert.Same(t, &full, full.Complete())
	assert.Equal(t, c.Sites(), full.Sites())
}

func TestString(t *testing.T) {
	c := grid(t)
	sub, err := c.Filtered([]uint32{0})
	require.NoError(t, err)
	assert.Equal(t, "<SiteCollection with 1/5 sites>", sub.String())
}
