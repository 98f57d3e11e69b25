package calc

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/hazard-cli/internal/filters"
	"github.com/sells-group/hazard-cli/internal/geo"
	"github.com/sells-group/hazard-cli/internal/site"
	"github.com/sells-group/hazard-cli/internal/source"
)

// SourceRuptures groups the ruptures of one source.
type SourceRuptures struct {
	Source   source.Source
	Ruptures []source.Rupture
}

// GenRupturesForSite returns, per source, the ruptures within the
// integration distance of a single site. Sources with no such rupture are
// omitted.
func GenRupturesForSite(s site.Site, sources []source.Source, distance *filters.IntegrationDistance, opts ...Option) ([]SourceRuptures, error) {
	sites, err := site.New([]geo.Point{s.Point()})
	if err != nil {
		return nil, eris.Wrap(err, "calc: site collection")
	}
	f, err := filters.NewSourceFilter(sites, distance, filters.PrefilterDirect)
	if err != nil {
		return nil, err
	}

	var out []SourceRuptures
	stream := GenRuptures(sources, f, opts...)
	for stream.Next() {
		row := stream.Value()
		if n := len(out); n > 0 && out[n-1].Source.ID() == row.Source.ID() {
			out[n-1].Ruptures = append(out[n-1].Ruptures, row.Rupture)
			continue
		}
		out = append(out, SourceRuptures{Source: row.Source, Ruptures: []source.Rupture{row.Rupture}})
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
