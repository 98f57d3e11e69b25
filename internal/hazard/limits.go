package hazard

import (
	"fmt"

	"github.com/sells-group/hazard-cli/internal/filters"
)

// Storage ceilings of the event based ground motion records.
const (
	MaxSites  = 1 << 16
	MaxEvents = 1 << 32
	MaxIMTs   = 1 << 8
)

const defaultKey = "default"

// CapacityError reports a dimension that exceeds its storage ceiling.
type CapacityError struct {
	Dimension string
	Limit     int64
	Got       int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("the event based calculator is restricted to %d %s, got %d", e.Limit, e.Dimension, e.Got)
}

// CheckOverflow verifies the site, event and intensity measure type counts
// against the storage ceilings, in that order.
func CheckOverflow(sites, events, imts int64) error {
	checks := []struct {
		dim   string
		limit int64
		got   int64
	}{
		{"sites", MaxSites, sites},
		{"events", MaxEvents, events},
		{"imts", MaxIMTs, imts},
	}
	for _, c := range checks {
		if c.got > c.limit {
			return &CapacityError{Dimension: c.dim, Limit: c.limit, Got: c.got}
		}
	}
	return nil
}

// FixMinimumIntensity resolves the minimum intensity of every type, falling
// back to the "default" entry. It returns the values in imts order and the
// resolved table without the default key. The input is not modified. An
// empty table gives zero for every type.
func FixMinimumIntensity(minIML map[string]float64, imts []string) ([]float64, map[string]float64, error) {
	resolved := make(map[string]float64, len(imts))
	values := make([]float64, len(imts))
	if len(minIML) == 0 {
		return values, resolved, nil
	}
	def, hasDefault := minIML[defaultKey]
	for i, name := range imts {
		v, ok := minIML[name]
		if !ok {
			if !hasDefault {
				return nil, nil, &filters.ConfigError{
					Msg: fmt.Sprintf("the parameter minimum_intensity is missing the IMT %q", name),
				}
			}
			v = def
		}
		resolved[name] = v
		values[i] = v
	}
	for name, v := range minIML {
		if name != defaultKey {
			if _, ok := resolved[name]; !ok {
				resolved[name] = v
			}
		}
	}
	return values, resolved, nil
}
