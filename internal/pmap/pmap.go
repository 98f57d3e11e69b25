// Package pmap holds hazard curves: per-site arrays of probabilities of
// exceedance, one value per intensity measure level.
package pmap

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
)

// ProbabilityCurve is the probability of exceedance of each level of a
// site, with the levels of every intensity measure type concatenated.
type ProbabilityCurve []float64

// Validate checks that every value is a probability.
func (c ProbabilityCurve) Validate() error {
	for i, p := range c {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return eris.Errorf("pmap: value %v at level %d is not a probability", p, i)
		}
	}
	return nil
}

// ProbabilityMap maps site ids to curves of a fixed length. A map is
// assembled once and then only read.
type ProbabilityMap struct {
	numLevels int
	curves    map[uint32]ProbabilityCurve
}

// New returns an empty map for curves of numLevels values.
func New(numLevels int) *ProbabilityMap {
	return &ProbabilityMap{numLevels: numLevels, curves: make(map[uint32]ProbabilityCurve)}
}

// NumLevels returns the curve length.
func (m *ProbabilityMap) NumLevels() int { return m.numLevels }

// Len returns the number of sites.
func (m *ProbabilityMap) Len() int { return len(m.curves) }

// Set stores a copy of the curve of a site.
func (m *ProbabilityMap) Set(sid uint32, c ProbabilityCurve) error {
	if len(c) != m.numLevels {
		return eris.Errorf("pmap: curve for site %d has %d levels, want %d", sid, len(c), m.numLevels)
	}
	if err := c.Validate(); err != nil {
		return eris.Wrapf(err, "pmap: site %d", sid)
	}
	m.curves[sid] = slices.Clone(c)
	return nil
}

// Get returns the curve of a site.
func (m *ProbabilityMap) Get(sid uint32) (ProbabilityCurve, bool) {
	c, ok := m.curves[sid]
	return c, ok
}

// SIDs returns the site ids in increasing order.
func (m *ProbabilityMap) SIDs() []uint32 {
	sids := make([]uint32, 0, len(m.curves))
	for sid := range m.curves {
		sids = append(sids, sid)
	}
	slices.Sort(sids)
	return sids
}

// Matrix returns the [start, end) levels of the curves of the given sites,
// one row per site. A site with no curve gives a row of zeros.
func (m *ProbabilityMap) Matrix(sids []uint32, start, end int) ([][]float64, error) {
	if start < 0 || end > m.numLevels || start > end {
		return nil, eris.Errorf("pmap: level range [%d, %d) outside %d levels", start, end, m.numLevels)
	}
	out := make([][]float64, len(sids))
	for i, sid := range sids {
		row := make([]float64, end-start)
		if c, ok := m.curves[sid]; ok {
			copy(row, c[start:end])
		}
		out[i] = row
	}
	return out, nil
}
