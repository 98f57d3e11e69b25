package hazard

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/hazard-cli/internal/imt"
)

// Spectrum is the uniform hazard spectrum of a site at one probability of
// exceedance, ordered by increasing period.
type Spectrum struct {
	PoE     float64   `json:"poe"`
	IMTs    []string  `json:"imts"`
	Periods []float64 `json:"periods"`
	Values  []float64 `json:"values"`
}

// UHS holds the spectra of one site, one per probability of exceedance.
type UHS struct {
	SID     uint32     `json:"sid"`
	Spectra []Spectrum `json:"spectra"`
}

// MakeUHS reshapes hazard maps into one uniform hazard spectrum per site
// and probability. Only spectral accelerations are used, PGA counting as
// period zero. Every (type, probability) column must be present.
func MakeUHS(maps *HazardMaps, imtls imt.IMTLs, poes []float64) ([]UHS, error) {
	names, periods, err := imt.SpectralPeriods(imtls)
	if err != nil {
		return nil, err
	}

	columns := make([][][]float64, len(poes))
	for p, poe := range poes {
		columns[p] = make([][]float64, len(names))
		for k, name := range names {
			key := MapKey(name, poe)
			col, ok := maps.Column(key)
			if !ok {
				return nil, eris.Errorf("hazard: hazard maps have no column %s", key)
			}
			if len(col) != len(maps.SIDs) {
				return nil, eris.Errorf("hazard: column %s has %d values for %d sites", key, len(col), len(maps.SIDs))
			}
			columns[p][k] = col
		}
	}

	out := make([]UHS, len(maps.SIDs))
	for i, sid := range maps.SIDs {
		u := UHS{SID: sid, Spectra: make([]Spectrum, len(poes))}
		for p, poe := range poes {
			values := make([]float64, len(names))
			for k := range names {
				values[k] = columns[p][k][i]
			}
			u.Spectra[p] = Spectrum{PoE: poe, IMTs: names, Periods: periods, Values: values}
		}
		out[i] = u
	}
	return out, nil
}
