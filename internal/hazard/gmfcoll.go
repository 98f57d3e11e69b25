package hazard

import (
	"slices"
	"sync"

	"github.com/rotisserie/eris"
)

// GmfCollector accumulates ground motion fields in memory, per
// realization. It is safe for concurrent use.
type GmfCollector struct {
	mu   sync.Mutex
	data map[int][]GMV
}

// NewGmfCollector returns an empty collector.
func NewGmfCollector() *GmfCollector {
	return &GmfCollector{data: make(map[int][]GMV)}
}

// Save records the field of one event for one intensity measure type. gmf
// and sids are parallel.
func (c *GmfCollector) Save(eid uint32, imti uint8, rlz int, gmf []float64, sids []uint32) error {
	if len(gmf) != len(sids) {
		return eris.Errorf("hazard: %d ground motion values for %d sites", len(gmf), len(sids))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range gmf {
		c.data[rlz] = append(c.data[rlz], GMV{SID: sids[i], EID: eid, IMTI: imti, Value: v})
	}
	return nil
}

// ByRealization returns a copy of the records of every realization.
func (c *GmfCollector) ByRealization() map[int][]GMV {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int][]GMV, len(c.data))
	for rlz, recs := range c.data {
		out[rlz] = slices.Clone(recs)
	}
	return out
}
