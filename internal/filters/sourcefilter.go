package filters

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	"github.com/sells-group/hazard-cli/internal/geo"
	"github.com/sells-group/hazard-cli/internal/site"
	"github.com/sells-group/hazard-cli/internal/source"
)

// Prefilter selects how a SourceFilter finds the sites near a source.
type Prefilter string

const (
	// PrefilterIndex queries an R-tree built over the site coordinates.
	PrefilterIndex Prefilter = "index"
	// PrefilterDirect tests every site against the affected box.
	PrefilterDirect Prefilter = "direct"
	// PrefilterNone passes every source through with the full site set.
	PrefilterNone Prefilter = "none"
)

// ParsePrefilter accepts the strategy names plus the legacy aliases
// rtree, numpy and no. An empty name selects the index.
func ParsePrefilter(name string) (Prefilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "index", "rtree":
		return PrefilterIndex, nil
	case "direct", "numpy":
		return PrefilterDirect, nil
	case "none", "no":
		return PrefilterNone, nil
	}
	return "", configErrorf("unknown prefilter %q", name)
}

// SourceFilter finds the sites within the integration distance of each
// source. The site collection and distance table are shared read-only; the
// per-source results are kept in a side table owned by the filter.
type SourceFilter struct {
	sites     *site.Collection
	distance  *IntegrationDistance
	prefilter Prefilter
	index     *rtree.RTreeG[uint32]

	mu    sync.RWMutex
	cache map[string][]uint32 // source id -> site ids in range
}

// NewSourceFilter builds a filter over a complete site collection. The
// strategy is forced to none when sites or distances are missing.
func NewSourceFilter(sites *site.Collection, distance *IntegrationDistance, prefilter Prefilter) (*SourceFilter, error) {
	if sites != nil && !sites.IsComplete() {
		return nil, configErrorf("%s is not complete", sites)
	}
	switch prefilter {
	case "":
		prefilter = PrefilterIndex
	case PrefilterIndex, PrefilterDirect, PrefilterNone:
	default:
		return nil, configErrorf("unknown prefilter %q", prefilter)
	}
	if sites == nil || distance.IsEmpty() {
		prefilter = PrefilterNone
	}

	f := &SourceFilter{
		sites:     sites,
		distance:  distance,
		prefilter: prefilter,
		cache:     make(map[string][]uint32),
	}
	if prefilter == PrefilterIndex {
		f.index = buildIndex(sites)
	}
	return f, nil
}

// NoFilter returns a filter that passes every source through unfiltered.
func NoFilter() *SourceFilter {
	return &SourceFilter{prefilter: PrefilterNone, cache: make(map[string][]uint32)}
}

func buildIndex(sites *site.Collection) *rtree.RTreeG[uint32] {
	tr := &rtree.RTreeG[uint32]{}
	for i := range sites.Len() {
		s := sites.At(i)
		pt := [2]float64{geo.NormalizeLon(s.Lon), s.Lat}
		tr.Insert(pt, pt, s.SID)
	}
	return tr
}

// Prefilter returns the strategy in use.
func (f *SourceFilter) Prefilter() Prefilter { return f.prefilter }

// Sites returns the complete site collection, or nil for a no-op filter.
func (f *SourceFilter) Sites() *site.Collection { return f.sites }

// IntegrationDistance returns the distance table.
func (f *SourceFilter) IntegrationDistance() *IntegrationDistance { return f.distance }

// AffectedBox returns the source extent enlarged by the integration
// distance at the source's maximum magnitude, normalized to [0, 360).
func (f *SourceFilter) AffectedBox(src source.Source) (geo.BBox, error) {
	_, maxMag := src.MinMaxMag()
	dist, err := f.distance.Distance(src.TRT(), maxMag)
	if err != nil {
		return geo.BBox{}, err
	}
	extent, err := src.Extent()
	if err != nil {
		return geo.BBox{}, err
	}
	return extent.Enlarge(dist).Normalized(), nil
}

// Rectangle is an affected box as origin plus extent, for plotting.
type Rectangle struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rectangle returns the affected box of the source as a rectangle.
func (f *SourceFilter) Rectangle(src source.Source) (Rectangle, error) {
	b, err := f.AffectedBox(src)
	if err != nil {
		return Rectangle{}, err
	}
	return Rectangle{MinLon: b.MinLon, MinLat: b.MinLat, Width: b.Width(), Height: b.Height()}, nil
}

// BoundingBoxes returns one integration-distance box per site.
func (f *SourceFilter) BoundingBoxes(trt string, mag *float64) ([]geo.BBox, error) {
	if f.sites == nil {
		return nil, nil
	}
	out := make([]geo.BBox, f.sites.Len())
	for i := range out {
		s := f.sites.At(i)
		b, err := f.distance.BoundingBox(s.Lon, s.Lat, trt, mag)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// CloseSites returns the sites within range of a single source, or nil.
func (f *SourceFilter) CloseSites(src source.Source) (*site.Collection, error) {
	stream := f.Filter([]source.Source{src}, nil)
	if stream.Next() {
		return stream.Value().Sites, nil
	}
	return nil, stream.Err()
}

// CachedSIDs returns the site ids recorded for a source by an earlier
// filtering pass.
func (f *SourceFilter) CachedSIDs(sourceID string) ([]uint32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	sids, ok := f.cache[sourceID]
	return sids, ok
}

func (f *SourceFilter) remember(sourceID string, sids []uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cache[sourceID]; !ok {
		f.cache[sourceID] = sids
	}
}

// SourceSites pairs a source with the sites it can affect.
type SourceSites struct {
	Source source.Source
	Sites  *site.Collection
}

// Filter returns a lazy stream of the sources with sites in range, in input
// order. Sources with no site in range are dropped. A nil sites argument
// uses the filter's own collection.
func (f *SourceFilter) Filter(sources []source.Source, sites *site.Collection) *SourceSiteStream {
	if sites == nil {
		sites = f.sites
	}
	return &SourceSiteStream{filter: f, sources: sources, sites: sites}
}

// SourceSiteStream is a single-pass iterator over filtered sources. Work
// for a source is done only when Next reaches it.
type SourceSiteStream struct {
	filter  *SourceFilter
	sources []source.Source
	sites   *site.Collection
	pos     int
	cur     SourceSites
	err     error
}

// Next advances to the next source with sites in range. It returns false
// at the end of the input or after an error.
func (s *SourceSiteStream) Next() bool {
	for s.err == nil && s.pos < len(s.sources) {
		src := s.sources[s.pos]
		s.pos++
		sub, ok, err := s.filter.closeSites(src, s.sites)
		if err != nil {
			s.err = &SourceError{SourceID: src.ID(), Err: err}
			return false
		}
		if !ok {
			zap.L().Debug("filters: source out of range",
				zap.String("source_id", src.ID()),
				zap.String("trt", src.TRT()),
			)
			continue
		}
		s.cur = SourceSites{Source: src, Sites: sub}
		return true
	}
	return false
}

// Value returns the current pair.
func (s *SourceSiteStream) Value() SourceSites { return s.cur }

// Err returns the error that stopped the stream, if any.
func (s *SourceSiteStream) Err() error { return s.err }

// Collect drains the stream.
func (s *SourceSiteStream) Collect() ([]SourceSites, error) {
	var out []SourceSites
	for s.Next() {
		out = append(out, s.Value())
	}
	return out, s.Err()
}

// closeSites reports the sites of the sites view in range of src and
// whether the source should be kept. The side table holds the ids in range
// over the complete collection, so every view is served from one lookup.
func (f *SourceFilter) closeSites(src source.Source, sites *site.Collection) (*site.Collection, bool, error) {
	if sids, ok := f.CachedSIDs(src.ID()); ok {
		sub := sites.Restrict(sids)
		return sub, sub != nil, nil
	}
	if f.prefilter == PrefilterNone {
		return sites, true, nil
	}

	box, err := f.AffectedBox(src)
	if err != nil {
		return nil, false, err
	}

	var sids []uint32
	switch f.prefilter {
	case PrefilterIndex:
		sids = f.search(box)
	default:
		if all := sites.Complete().WithinBBox(box); all != nil {
			sids = all.SIDs()
		}
	}
	if len(sids) == 0 {
		return nil, false, nil
	}
	slices.Sort(sids)
	f.remember(src.ID(), sids)
	sub := sites.Restrict(sids)
	return sub, sub != nil, nil
}

func (f *SourceFilter) search(box geo.BBox) []uint32 {
	var sids []uint32
	for _, part := range box.Parts() {
		f.index.Search(
			[2]float64{part.MinLon, part.MinLat},
			[2]float64{part.MaxLon, part.MaxLat},
			func(_, _ [2]float64, sid uint32) bool {
				sids = append(sids, sid)
				return true
			},
		)
	}
	return sids
}

// filterState is the transmitted form of a SourceFilter. It never carries
// the spatial index or the per-source cache.
type filterState struct {
	Sites               *site.Collection     `json:"sites,omitempty"`
	IntegrationDistance *IntegrationDistance `json:"integration_distance,omitempty"`
	Prefilter           Prefilter            `json:"prefilter"`
}

// MarshalJSON writes the site collection, the distance table and the
// sender's strategy.
func (f *SourceFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(filterState{
		Sites:               f.sites,
		IntegrationDistance: f.distance,
		Prefilter:           f.prefilter,
	})
}

// RestoreSourceFilter rebuilds a filter from its transmitted form. The
// index is never rebuilt on the receiving side: a sender using the index
// strategy is restored with the direct strategy.
func RestoreSourceFilter(data []byte) (*SourceFilter, error) {
	var st filterState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, eris.Wrap(err, "filters: decode source filter")
	}
	prefilter := st.Prefilter
	if prefilter == PrefilterIndex {
		prefilter = PrefilterDirect
		zap.L().Info("filters: spatial index not transferred, using direct strategy",
			zap.String("sender_prefilter", string(st.Prefilter)),
			zap.Int("sites", siteCount(st.Sites)),
		)
	}
	return NewSourceFilter(st.Sites, st.IntegrationDistance, prefilter)
}

func siteCount(c *site.Collection) int {
	if c == nil {
		return 0
	}
	return c.Len()
}
