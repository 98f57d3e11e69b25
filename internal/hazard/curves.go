// Package hazard turns ground motion samples into hazard curves, hazard
// maps and uniform hazard spectra.
package hazard

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hazard-cli/internal/imt"
	"github.com/sells-group/hazard-cli/internal/pmap"
)

// GMV is one simulated ground motion value at a site for one event and one
// intensity measure type.
type GMV struct {
	SID   uint32  `json:"sid"`
	EID   uint32  `json:"eid"`
	IMTI  uint8   `json:"imti"`
	Value float64 `json:"gmv"`
}

// ExceedanceCurve returns, for each level, the probability that ground
// motion reaches or exceeds it within the investigation time, given the
// values simulated over duration years:
//
//	poe = 1 - exp(-(investigationTime / duration) * count(gmv >= level))
//
// The formula assumes Poissonian event occurrence; non-Poissonian event
// sets are not supported.
func ExceedanceCurve(gmvs, imls []float64, investigationTime, duration float64) ([]float64, error) {
	if !(duration > 0) {
		return nil, eris.Errorf("hazard: duration must be positive, got %v", duration)
	}
	if investigationTime < 0 {
		return nil, eris.Errorf("hazard: investigation time must not be negative, got %v", investigationTime)
	}
	rate := investigationTime / duration
	out := make([]float64, len(imls))
	for i, level := range imls {
		n := 0
		for _, v := range gmvs {
			if v >= level {
				n++
			}
		}
		out[i] = 1 - math.Exp(-rate*float64(n))
	}
	return out, nil
}

// GroupBySite splits ground motion records by site id, keeping their order.
func GroupBySite(gmvs []GMV) map[uint32][]GMV {
	out := make(map[uint32][]GMV)
	for _, g := range gmvs {
		out[g.SID] = append(out[g.SID], g)
	}
	return out
}

// BuildProbabilityMap builds one curve per site. Each curve concatenates
// the exceedance curves of the intensity measure types in imtls order. The
// inputs are not modified.
func BuildProbabilityMap(gmvsBySID map[uint32][]GMV, imtls imt.IMTLs, investigationTime, duration float64) (*pmap.ProbabilityMap, error) {
	pm := pmap.New(imtls.NumLevels())
	for sid, records := range gmvsBySID {
		curve := make(pmap.ProbabilityCurve, 0, imtls.NumLevels())
		for imti, lv := range imtls {
			var values []float64
			for _, r := range records {
				if int(r.IMTI) == imti {
					values = append(values, r.Value)
				}
			}
			poes, err := ExceedanceCurve(values, lv.Levels, investigationTime, duration)
			if err != nil {
				return nil, err
			}
			curve = append(curve, poes...)
		}
		if err := pm.Set(sid, curve); err != nil {
			return nil, err
		}
	}
	return pm, nil
}
