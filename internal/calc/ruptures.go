// Package calc runs the two-stage rupture filtering pipeline: sources are
// pruned against the site index, then each generated rupture is pruned by
// its exact distance to the surviving sites.
package calc

import (
	"github.com/sells-group/hazard-cli/internal/filters"
	"github.com/sells-group/hazard-cli/internal/geo"
	"github.com/sells-group/hazard-cli/internal/monitoring"
	"github.com/sells-group/hazard-cli/internal/site"
	"github.com/sells-group/hazard-cli/internal/source"
)

// SourceRuptureSites is a rupture together with its source and the sites
// within its integration distance.
type SourceRuptureSites struct {
	Source  source.Source
	Rupture source.Rupture
	Sites   *site.Collection
}

type options struct {
	monitor *monitoring.Monitor
	metric  filters.DistanceMetric
}

// Option configures GenRuptures.
type Option func(*options)

// WithMonitor times the three pipeline stages on m.
func WithMonitor(m *monitoring.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithDistanceMetric selects the rupture distance used by the second stage.
// The default is the Joyner-Boore distance.
func WithDistanceMetric(m filters.DistanceMetric) Option {
	return func(o *options) { o.metric = m }
}

func newOptions(opts []Option) options {
	o := options{metric: filters.RJB}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// GenRuptures returns a lazy stream of the ruptures of sources that lie
// within the integration distance of at least one site. Ruptures come in
// generation order within a source and sources in input order.
func GenRuptures(sources []source.Source, f *filters.SourceFilter, opts ...Option) *RuptureStream {
	return &RuptureStream{
		opts:     newOptions(opts),
		distance: f.IntegrationDistance(),
		sources:  f.Filter(sources, nil),
	}
}

// RuptureStream is a single-pass iterator over SourceRuptureSites. Stopping
// early skips every distance computation not yet reached.
type RuptureStream struct {
	opts     options
	distance *filters.IntegrationDistance
	sources  *filters.SourceSiteStream

	src      source.Source
	sites    *site.Collection
	mesh     geo.Mesh
	ruptures []source.Rupture
	pos      int

	cur  SourceRuptureSites
	err  error
	done bool
}

// Next advances to the next rupture with sites in range.
func (s *RuptureStream) Next() bool {
	for !s.done {
		if s.pos < len(s.ruptures) {
			rup := s.ruptures[s.pos]
			s.pos++

			stop := s.opts.monitor.Start(monitoring.StageFilterRuptures)
			sub, err := s.closeSites(rup)
			stop()
			if err != nil {
				s.fail(&filters.SourceError{SourceID: s.src.ID(), Err: err})
				return false
			}
			if sub == nil {
				continue
			}
			s.cur = SourceRuptureSites{Source: s.src, Rupture: rup, Sites: sub}
			return true
		}

		if !s.nextSource() {
			return false
		}
	}
	return false
}

func (s *RuptureStream) nextSource() bool {
	for {
		stop := s.opts.monitor.Start(monitoring.StageFilterSources)
		ok := s.sources.Next()
		stop()
		if !ok {
			s.fail(s.sources.Err())
			return false
		}
		pair := s.sources.Value()
		if pair.Sites == nil || pair.Sites.Len() == 0 {
			continue
		}

		stop = s.opts.monitor.Start(monitoring.StageGenerateRuptures)
		rups, err := pair.Source.Ruptures()
		stop()
		if err != nil {
			s.fail(&filters.SourceError{SourceID: pair.Source.ID(), Err: err})
			return false
		}
		if len(rups) == 0 {
			continue
		}
		s.src, s.sites, s.ruptures, s.pos = pair.Source, pair.Sites, rups, 0
		s.mesh = pair.Sites.Mesh()
		return true
	}
}

func (s *RuptureStream) fail(err error) {
	s.err = err
	s.done = true
	s.ruptures = nil
}

// closeSites keeps the sites within the integration distance of rup, or
// returns nil when the rupture is too far from all of them.
func (s *RuptureStream) closeSites(rup source.Rupture) (*site.Collection, error) {
	if s.distance.IsEmpty() {
		return s.sites, nil
	}
	maxDist, err := s.distance.Distance(s.src.TRT(), rup.Mag())
	if err != nil {
		return nil, err
	}
	dists, err := filters.Distances(rup, s.mesh, s.opts.metric)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(dists))
	for i, d := range dists {
		mask[i] = d <= maxDist
	}
	return s.sites.Filter(mask)
}

// Value returns the current rupture.
func (s *RuptureStream) Value() SourceRuptureSites { return s.cur }

// Err returns the error that stopped the stream, if any.
func (s *RuptureStream) Err() error { return s.err }

// Collect drains the stream.
func (s *RuptureStream) Collect() ([]SourceRuptureSites, error) {
	var out []SourceRuptureSites
	for s.Next() {
		out = append(out, s.Value())
	}
	return out, s.Err()
}
