// Package filters prunes the source/site search space: per tectonic region
// integration distances, the spatial source filter and the exact rupture
// distance metrics.
package filters

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hazard-cli/internal/geo"
)

const (
	// MaxDistance is the distance ceiling in km, used above the last control
	// point and for magnitude-less queries.
	MaxDistance = 2000.0

	// DefaultTRT is the fallback key for tectonic region types with no entry.
	DefaultTRT = "default"

	// ceilingMag is the magnitude at which the ceiling is reached when the
	// control points stop earlier.
	ceilingMag = 11.0
)

// MagDist is a (magnitude, distance in km) control point.
type MagDist struct {
	Mag  float64
	Dist float64
}

// DistanceValue is either a scalar distance or a list of control points.
type DistanceValue struct {
	Scalar float64
	Points []MagDist
}

// Scalar returns a magnitude-independent distance.
func Scalar(km float64) DistanceValue {
	return DistanceValue{Scalar: km}
}

// MagnitudeDependent returns a distance defined by control points.
func MagnitudeDependent(points ...MagDist) DistanceValue {
	return DistanceValue{Points: points}
}

// IsScalar reports whether the value ignores magnitude.
func (v DistanceValue) IsScalar() bool {
	return len(v.Points) == 0
}

func (v DistanceValue) validate(trt string) error {
	if v.IsScalar() {
		if math.IsNaN(v.Scalar) || v.Scalar <= 0 {
			return configErrorf("integration distance for %q must be positive, got %v", trt, v.Scalar)
		}
		return nil
	}
	for i, p := range v.Points {
		if math.IsNaN(p.Dist) || p.Dist <= 0 {
			return configErrorf("integration distance for %q: distance %v at magnitude %v must be positive", trt, p.Dist, p.Mag)
		}
		if i == 0 {
			continue
		}
		prev := v.Points[i-1]
		if !(p.Mag > prev.Mag) {
			return configErrorf("integration distance for %q: magnitudes must be strictly ascending, got %v after %v", trt, p.Mag, prev.Mag)
		}
		if p.Dist < prev.Dist {
			return configErrorf("integration distance for %q: distances must be non-decreasing, got %v after %v", trt, p.Dist, prev.Dist)
		}
	}
	return nil
}

// Piecewise maps x to the y of the nearest control point at or above x.
// Values below the first control point map to the first y and values above
// the last to the last y.
type Piecewise struct {
	xs []float64
	ys []float64
}

// NewPiecewise builds a step function over strictly ascending xs.
func NewPiecewise(xs, ys []float64) (*Piecewise, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return nil, configErrorf("piecewise needs matching non-empty inputs, got %d and %d", len(xs), len(ys))
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, configErrorf("piecewise x values must be strictly ascending")
		}
	}
	return &Piecewise{xs: slices.Clone(xs), ys: slices.Clone(ys)}, nil
}

// At evaluates the function.
func (p *Piecewise) At(x float64) float64 {
	i := sort.SearchFloat64s(p.xs, x)
	if i >= len(p.xs) {
		i = len(p.xs) - 1
	}
	return p.ys[i]
}

// IntegrationDistance holds the maximum source-to-site distance per
// tectonic region type. It is safe for concurrent use; the per-region step
// functions are built on first use and published atomically.
type IntegrationDistance struct {
	values    map[string]DistanceValue
	piecewise sync.Map // resolved TRT -> *Piecewise
}

// NewIntegrationDistance validates the table and returns the distance.
func NewIntegrationDistance(values map[string]DistanceValue) (*IntegrationDistance, error) {
	copied := make(map[string]DistanceValue, len(values))
	for trt, v := range values {
		if err := v.validate(trt); err != nil {
			return nil, err
		}
		copied[trt] = DistanceValue{Scalar: v.Scalar, Points: slices.Clone(v.Points)}
	}
	return &IntegrationDistance{values: copied}, nil
}

// IsEmpty reports whether there is no entry at all. A nil distance is empty.
func (d *IntegrationDistance) IsEmpty() bool {
	return d == nil || len(d.values) == 0
}

// TRTs returns the configured keys in sorted order, "default" included.
func (d *IntegrationDistance) TRTs() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *IntegrationDistance) lookup(trt string) (string, DistanceValue, error) {
	if d != nil {
		if v, ok := d.values[trt]; ok {
			return trt, v, nil
		}
		if v, ok := d.values[DefaultTRT]; ok {
			return DefaultTRT, v, nil
		}
	}
	return "", DistanceValue{}, configErrorf("no integration distance for tectonic region type %q and no %q entry", trt, DefaultTRT)
}

// Check verifies that every given tectonic region type resolves to an entry.
func (d *IntegrationDistance) Check(trts ...string) error {
	for _, trt := range trts {
		if _, _, err := d.lookup(trt); err != nil {
			return err
		}
	}
	return nil
}

// Distance returns the integration distance for a rupture of magnitude mag
// in the given tectonic region type.
func (d *IntegrationDistance) Distance(trt string, mag float64) (float64, error) {
	return d.resolve(trt, &mag)
}

// Ceiling returns the distance used when no magnitude is known: the scalar
// value if there is one, MaxDistance otherwise.
func (d *IntegrationDistance) Ceiling(trt string) (float64, error) {
	return d.resolve(trt, nil)
}

func (d *IntegrationDistance) resolve(trt string, mag *float64) (float64, error) {
	key, v, err := d.lookup(trt)
	if err != nil {
		return 0, err
	}
	if v.IsScalar() {
		return v.Scalar, nil
	}
	if mag == nil {
		return MaxDistance, nil
	}
	pw, err := d.piecewiseFor(key, v)
	if err != nil {
		return 0, err
	}
	return pw.At(*mag), nil
}

func (d *IntegrationDistance) piecewiseFor(key string, v DistanceValue) (*Piecewise, error) {
	if cached, ok := d.piecewise.Load(key); ok {
		return cached.(*Piecewise), nil
	}
	mags := make([]float64, 0, len(v.Points)+1)
	dists := make([]float64, 0, len(v.Points)+1)
	for _, p := range v.Points {
		mags = append(mags, p.Mag)
		dists = append(dists, p.Dist)
	}
	if mags[len(mags)-1] < ceilingMag {
		mags = append(mags, ceilingMag)
		dists = append(dists, MaxDistance)
	}
	pw, err := NewPiecewise(mags, dists)
	if err != nil {
		return nil, eris.Wrapf(err, "filters: build piecewise for %q", key)
	}
	actual, _ := d.piecewise.LoadOrStore(key, pw)
	return actual.(*Piecewise), nil
}

// MaxOver returns the largest distance over every configured tectonic
// region type, at the given magnitude or at the ceiling when mag is nil.
func (d *IntegrationDistance) MaxOver(mag *float64) (float64, error) {
	if d.IsEmpty() {
		return 0, configErrorf("integration distance is empty")
	}
	best := 0.0
	for _, trt := range d.TRTs() {
		dist, err := d.resolve(trt, mag)
		if err != nil {
			return 0, err
		}
		best = math.Max(best, dist)
	}
	return best, nil
}

// BoundingBox returns the box around (lon, lat) covered by the integration
// distance. An empty trt uses the largest distance over all regions and a
// nil mag the magnitude-less ceiling. The box is not normalized.
func (d *IntegrationDistance) BoundingBox(lon, lat float64, trt string, mag *float64) (geo.BBox, error) {
	var (
		dist float64
		err  error
	)
	if trt == "" {
		dist, err = d.MaxOver(mag)
	} else {
		dist, err = d.resolve(trt, mag)
	}
	if err != nil {
		return geo.BBox{}, err
	}
	return geo.PointBBox(lon, lat, dist), nil
}

// String implements fmt.Stringer.
func (d *IntegrationDistance) String() string {
	if d == nil {
		return "{}"
	}
	return fmt.Sprint(d.raw())
}

func (d *IntegrationDistance) raw() map[string]any {
	out := make(map[string]any, len(d.values))
	for trt, v := range d.values {
		if v.IsScalar() {
			out[trt] = v.Scalar
			continue
		}
		pairs := make([][2]float64, len(v.Points))
		for i, p := range v.Points {
			pairs[i] = [2]float64{p.Mag, p.Dist}
		}
		out[trt] = pairs
	}
	return out
}

// MarshalJSON writes the table in the same shape ParseIntegrationDistance
// reads. The step-function cache is not serialized.
func (d *IntegrationDistance) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.raw())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *IntegrationDistance) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "filters: decode integration distance")
	}
	parsed, err := ParseIntegrationDistance(raw)
	if err != nil {
		return err
	}
	d.values = parsed.values
	d.piecewise.Clear()
	return nil
}

// ParseIntegrationDistance converts a decoded configuration value, mapping
// each tectonic region type to a number or to a list of [magnitude,
// distance] pairs.
func ParseIntegrationDistance(raw map[string]any) (*IntegrationDistance, error) {
	values := make(map[string]DistanceValue, len(raw))
	for trt, v := range raw {
		if km, ok := toFloat(v); ok {
			values[trt] = Scalar(km)
			continue
		}
		list, ok := v.([]any)
		if !ok {
			return nil, configErrorf("integration distance for %q must be a number or a list of pairs, got %T", trt, v)
		}
		points := make([]MagDist, len(list))
		for i, item := range list {
			pair, ok := item.([]any)
			if !ok || len(pair) != 2 {
				return nil, configErrorf("integration distance for %q: entry %d is not a [magnitude, distance] pair", trt, i)
			}
			mag, okMag := toFloat(pair[0])
			dist, okDist := toFloat(pair[1])
			if !okMag || !okDist {
				return nil, configErrorf("integration distance for %q: entry %d is not numeric", trt, i)
			}
			points[i] = MagDist{Mag: mag, Dist: dist}
		}
		values[trt] = MagnitudeDependent(points...)
	}
	return NewIntegrationDistance(values)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
