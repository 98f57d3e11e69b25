// Package imt parses intensity measure types and holds the ordered
// intensity measure levels of a calculation.
package imt

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Known scalar intensity measure types.
const (
	PGA = "PGA"
	PGV = "PGV"
	PGD = "PGD"
	SA  = "SA"
	MMI = "MMI"
)

// IMT is a parsed intensity measure type. Period is set for spectral
// acceleration and is zero for PGA.
type IMT struct {
	Name   string
	Period float64
}

// Parse reads names such as "PGA", "PGV" or "SA(0.5)".
func Parse(s string) (IMT, error) {
	s = strings.TrimSpace(s)
	switch s {
	case PGA, PGV, PGD, MMI:
		return IMT{Name: s}, nil
	}
	if strings.HasPrefix(s, SA+"(") && strings.HasSuffix(s, ")") {
		inner := strings.TrimSuffix(strings.TrimPrefix(s, SA+"("), ")")
		period, err := strconv.ParseFloat(strings.TrimSpace(inner), 64)
		if err != nil || period < 0 || math.IsInf(period, 0) {
			return IMT{}, eris.Errorf("imt: invalid period in %q", s)
		}
		return IMT{Name: SA, Period: period}, nil
	}
	return IMT{}, eris.Errorf("imt: unknown intensity measure type %q", s)
}

// IsSpectral reports whether the type is a spectral acceleration, PGA
// counting as SA at period zero.
func (i IMT) IsSpectral() bool {
	return i.Name == SA || i.Name == PGA
}

// String formats the type back to its canonical name.
func (i IMT) String() string {
	if i.Name == SA {
		return "SA(" + strconv.FormatFloat(i.Period, 'g', -1, 64) + ")"
	}
	return i.Name
}

// Levels pairs an intensity measure type name with its levels.
type Levels struct {
	IMT    string    `yaml:"imt" json:"imt"`
	Levels []float64 `yaml:"levels" json:"levels"`
}

// IMTLs is the ordered list of intensity measure types and their levels.
// Curves built from it concatenate the levels in this order.
type IMTLs []Levels

// NumLevels returns the total number of levels over all types.
func (l IMTLs) NumLevels() int {
	n := 0
	for _, lv := range l {
		n += len(lv.Levels)
	}
	return n
}

// Slice returns the [start, end) range of the imti-th type in a
// concatenated curve.
func (l IMTLs) Slice(imti int) (int, int) {
	start := 0
	for i := range imti {
		start += len(l[i].Levels)
	}
	return start, start + len(l[imti].Levels)
}

// Index returns the position of the named type, or -1.
func (l IMTLs) Index(name string) int {
	for i, lv := range l {
		if lv.IMT == name {
			return i
		}
	}
	return -1
}

// Names returns the type names in order.
func (l IMTLs) Names() []string {
	out := make([]string, len(l))
	for i, lv := range l {
		out[i] = lv.IMT
	}
	return out
}

// Validate checks that names parse and are unique and that each type has
// positive, strictly increasing levels.
func (l IMTLs) Validate() error {
	if len(l) == 0 {
		return eris.New("imt: no intensity measure types")
	}
	seen := make(map[string]bool, len(l))
	for _, lv := range l {
		if _, err := Parse(lv.IMT); err != nil {
			return err
		}
		if seen[lv.IMT] {
			return eris.Errorf("imt: duplicate intensity measure type %q", lv.IMT)
		}
		seen[lv.IMT] = true
		if len(lv.Levels) == 0 {
			return eris.Errorf("imt: no levels for %s", lv.IMT)
		}
		for i, v := range lv.Levels {
			if !(v > 0) {
				return eris.Errorf("imt: level %v of %s must be positive", v, lv.IMT)
			}
			if i > 0 && !(v > lv.Levels[i-1]) {
				return eris.Errorf("imt: levels of %s must be strictly increasing", lv.IMT)
			}
		}
	}
	return nil
}

// SpectralPeriods returns the spectral types of l sorted by period, with
// PGA at period zero, together with their periods. Names are returned as
// they appear in l.
func SpectralPeriods(l IMTLs) ([]string, []float64, error) {
	type entry struct {
		name   string
		period float64
	}
	var entries []entry
	for _, lv := range l {
		parsed, err := Parse(lv.IMT)
		if err != nil {
			return nil, nil, err
		}
		if parsed.IsSpectral() {
			entries = append(entries, entry{name: lv.IMT, period: parsed.Period})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].period < entries[j].period })

	names := make([]string, len(entries))
	periods := make([]float64, len(entries))
	for i, e := range entries {
		names[i], periods[i] = e.name, e.period
	}
	return names, periods, nil
}
