// Package site models the ordered collection of geographic sites a hazard
// calculation runs on.
package site

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hazard-cli/internal/geo"
)

// Site is a single location with its stable site id.
type Site struct {
	SID   uint32  `json:"sid"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
	Depth float64 `json:"depth,omitempty"`
}

// Point returns the site location.
func (s Site) Point() geo.Point {
	return geo.Point{Lon: s.Lon, Lat: s.Lat, Depth: s.Depth}
}

// Collection is an ordered, index-addressable set of sites.
//
// A complete collection holds sites with contiguous ids 0..N-1. Views
// produced by Filtered, Filter and WithinBBox share the complete
// collection and hold a strictly increasing subset of its ids. A
// collection is never mutated after construction.
type Collection struct {
	sites    []Site
	complete *Collection
}

// New builds a complete collection, assigning ids in input order.
func New(points []geo.Point) (*Collection, error) {
	sites := make([]Site, len(points))
	for i, p := range points {
		if err := validate(p); err != nil {
			return nil, eris.Wrapf(err, "site: point %d", i)
		}
		sites[i] = Site{SID: uint32(i), Lon: p.Lon, Lat: p.Lat, Depth: p.Depth}
	}
	c := &Collection{sites: sites}
	c.complete = c
	return c, nil
}

func validate(p geo.Point) error {
	switch {
	case math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0):
		return eris.Errorf("invalid longitude %v", p.Lon)
	case math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90:
		return eris.Errorf("invalid latitude %v", p.Lat)
	case math.IsNaN(p.Depth) || math.IsInf(p.Depth, 0):
		return eris.Errorf("invalid depth %v", p.Depth)
	}
	return nil
}

// Len returns the number of sites in the collection.
func (c *Collection) Len() int {
	return len(c.sites)
}

// At returns the i-th site of the collection (not the site with id i).
func (c *Collection) At(i int) Site {
	return c.sites[i]
}

// Sites returns a copy of the sites in the collection.
func (c *Collection) Sites() []Site {
	return slices.Clone(c.sites)
}

// Complete returns the complete collection this one is a view of.
func (c *Collection) Complete() *Collection {
	return c.complete
}

// IsComplete reports whether the collection holds every site of its
// complete collection.
func (c *Collection) IsComplete() bool {
	return c.Len() == c.complete.Len()
}

// SIDs returns the site ids of the collection in increasing order.
func (c *Collection) SIDs() []uint32 {
	sids := make([]uint32, len(c.sites))
	for i, s := range c.sites {
		sids[i] = s.SID
	}
	return sids
}

// Lons returns the site longitudes.
func (c *Collection) Lons() []float64 {
	out := make([]float64, len(c.sites))
	for i, s := range c.sites {
		out[i] = s.Lon
	}
	return out
}

// Lats returns the site latitudes.
func (c *Collection) Lats() []float64 {
	out := make([]float64, len(c.sites))
	for i, s := range c.sites {
		out[i] = s.Lat
	}
	return out
}

// Mesh returns the site coordinates as a mesh.
func (c *Collection) Mesh() geo.Mesh {
	m := geo.Mesh{
		Lons:   make([]float64, len(c.sites)),
		Lats:   make([]float64, len(c.sites)),
		Depths: make([]float64, len(c.sites)),
	}
	for i, s := range c.sites {
		m.Lons[i], m.Lats[i], m.Depths[i] = s.Lon, s.Lat, s.Depth
	}
	return m
}

// Filtered returns the view of the complete collection restricted to the
// given site ids. Ids are sorted and deduplicated; an id outside the
// complete collection is an error. Requesting every id returns the
// complete collection itself.
func (c *Collection) Filtered(sids []uint32) (*Collection, error) {
	ids := slices.Clone(sids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	all := c.complete
	if n := len(ids); n > 0 && int(ids[n-1]) >= all.Len() {
		return nil, eris.Errorf("site: id %d out of range for %d sites", ids[n-1], all.Len())
	}
	if len(ids) == all.Len() {
		return all, nil
	}
	sites := make([]Site, len(ids))
	for i, sid := range ids {
		sites[i] = all.sites[sid]
	}
	return &Collection{sites: sites, complete: all}, nil
}

// Restrict keeps the sites of c whose id is in sids. Ids not in c are
// ignored. It returns nil when no site survives.
func (c *Collection) Restrict(sids []uint32) *Collection {
	keep := make(map[uint32]struct{}, len(sids))
	for _, sid := range sids {
		keep[sid] = struct{}{}
	}
	mask := make([]bool, len(c.sites))
	for i, s := range c.sites {
		_, mask[i] = keep[s.SID]
	}
	sub, _ := c.Filter(mask)
	return sub
}

// Filter keeps the sites whose mask entry is true. It returns nil when no
// site survives.
func (c *Collection) Filter(mask []bool) (*Collection, error) {
	if len(mask) != len(c.sites) {
		return nil, eris.Errorf("site: mask has %d entries for %d sites", len(mask), len(c.sites))
	}
	var sites []Site
	for i, keep := range mask {
		if keep {
			sites = append(sites, c.sites[i])
		}
	}
	switch len(sites) {
	case 0:
		return nil, nil
	case len(c.sites):
		return c, nil
	}
	return &Collection{sites: sites, complete: c.complete}, nil
}

// WithinBBox returns the sites inside a normalized bounding box, or nil if
// there are none.
func (c *Collection) WithinBBox(b geo.BBox) *Collection {
	mask := make([]bool, len(c.sites))
	for i, s := range c.sites {
		mask[i] = b.Contains(s.Lon, s.Lat)
	}
	sub, _ := c.Filter(mask)
	return sub
}

// String implements fmt.Stringer.
func (c *Collection) String() string {
	return fmt.Sprintf("<SiteCollection with %d/%d sites>", c.Len(), c.complete.Len())
}

// collectionJSON is the serialized form: the complete site list plus the
// ids of the view.
type collectionJSON struct {
	Sites []Site   `json:"sites"`
	SIDs  []uint32 `json:"sids,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (c *Collection) MarshalJSON() ([]byte, error) {
	out := collectionJSON{Sites: c.complete.sites}
	if !c.IsComplete() {
		out.SIDs = c.SIDs()
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var in collectionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return eris.Wrap(err, "site: decode collection")
	}
	points := make([]geo.Point, len(in.Sites))
	for i, s := range in.Sites {
		points[i] = s.Point()
	}
	all, err := New(points)
	if err != nil {
		return err
	}
	if in.SIDs == nil {
		*c = *all
		c.complete = c
		return nil
	}
	view, err := all.Filtered(in.SIDs)
	if err != nil {
		return err
	}
	*c = *view
	return nil
}
