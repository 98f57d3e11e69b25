package hazard

import (
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/hazard-cli/internal/imt"
	"github.com/sells-group/hazard-cli/internal/pmap"
)

// Epsilon is the floor applied to curve probabilities before taking logs.
const Epsilon = 1e-30

// ComputeHazardMap interpolates a single curve. The result has one row.
func ComputeHazardMap(curve, imls, poes []float64) (*mat.Dense, error) {
	return ComputeHazardMaps([][]float64{curve}, imls, poes)
}

// ComputeHazardMaps interpolates, for each curve and each target
// probability, the level exceeded with that probability. Curves list the
// probabilities of increasing levels, so they are non-increasing. The
// result is an N x P matrix in curve and poe order.
//
// Interpolation is linear in log(poe) against log(level). A target above
// the largest probability of a curve gives level 0; in particular an
// all-zero curve maps every positive target to 0.
func ComputeHazardMaps(curves [][]float64, imls, poes []float64) (*mat.Dense, error) {
	if len(poes) == 0 {
		return nil, eris.New("hazard: no probabilities of exceedance to interpolate")
	}
	if len(imls) == 0 {
		return nil, eris.New("hazard: no intensity measure levels")
	}
	if len(curves) == 0 {
		return &mat.Dense{}, nil
	}

	l := len(imls)
	logIMLs := make([]float64, l)
	for i, v := range imls {
		if !(v > 0) {
			return nil, eris.Errorf("hazard: intensity measure level %v must be positive", v)
		}
		logIMLs[l-1-i] = math.Log(v)
	}

	out := mat.NewDense(len(curves), len(poes), nil)
	logCutoff := make([]float64, l)
	for row, curve := range curves {
		if len(curve) != l {
			return nil, eris.Errorf("hazard: curve %d has %d values for %d levels", row, len(curve), l)
		}
		for i, p := range curve {
			logCutoff[l-1-i] = math.Log(math.Max(p, Epsilon))
		}
		maxPoE := math.Max(curve[0], Epsilon)
		for col, poe := range poes {
			if poe > maxPoE {
				continue
			}
			out.Set(row, col, math.Exp(interp(math.Log(poe), logCutoff, logIMLs)))
		}
	}
	return out, nil
}

// interp evaluates the piecewise linear function through (xp, fp) at x,
// clamping outside the range. xp is non-decreasing; on repeated xp values
// the last segment starting at or below x is used.
func interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	j := sort.Search(n, func(i int) bool { return xp[i] > x }) - 1
	switch {
	case j < 0:
		return fp[0]
	case j >= n-1:
		return fp[n-1]
	}
	slope := (fp[j+1] - fp[j]) / (xp[j+1] - xp[j])
	return fp[j] + slope*(x-xp[j])
}

// MapKey names the hazard map column of an intensity measure type at a
// probability of exceedance, e.g. "PGA-0.1".
func MapKey(imtName string, poe float64) string {
	return imtName + "-" + strconv.FormatFloat(poe, 'g', -1, 64)
}

// HazardMaps holds one column of levels per (intensity measure type,
// probability) pair, one row per site.
type HazardMaps struct {
	SIDs    []uint32             `json:"sids"`
	Columns map[string][]float64 `json:"columns"`
}

// Column returns the column with the given key.
func (h *HazardMaps) Column(key string) ([]float64, bool) {
	col, ok := h.Columns[key]
	return col, ok
}

// Keys returns the column keys in sorted order.
func (h *HazardMaps) Keys() []string {
	keys := make([]string, 0, len(h.Columns))
	for k := range h.Columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildHazardMaps interpolates the curves of the given sites for every
// intensity measure type and probability.
func BuildHazardMaps(pm *pmap.ProbabilityMap, sids []uint32, imtls imt.IMTLs, poes []float64) (*HazardMaps, error) {
	if pm.NumLevels() != imtls.NumLevels() {
		return nil, eris.Errorf("hazard: probability map has %d levels, intensity measure types have %d", pm.NumLevels(), imtls.NumLevels())
	}
	maps := &HazardMaps{SIDs: sids, Columns: make(map[string][]float64)}
	for imti, lv := range imtls {
		start, end := imtls.Slice(imti)
		curves, err := pm.Matrix(sids, start, end)
		if err != nil {
			return nil, err
		}
		dense, err := ComputeHazardMaps(curves, lv.Levels, poes)
		if err != nil {
			return nil, eris.Wrapf(err, "hazard: maps for %s", lv.IMT)
		}
		for p, poe := range poes {
			col := make([]float64, len(sids))
			if len(sids) > 0 {
				mat.Col(col, p, dense)
			}
			maps.Columns[MapKey(lv.IMT, poe)] = col
		}
	}
	return maps, nil
}
