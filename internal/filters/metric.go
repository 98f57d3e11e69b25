package filters

import (
	"math"
	"strings"

	"github.com/sells-group/hazard-cli/internal/geo"
	"github.com/sells-group/hazard-cli/internal/source"
)

// DistanceMetric names a rupture-to-site distance.
type DistanceMetric string

const (
	RRup    DistanceMetric = "rrup"
	RJB     DistanceMetric = "rjb"
	RX      DistanceMetric = "rx"
	RY0     DistanceMetric = "ry0"
	RHypo   DistanceMetric = "rhypo"
	REpi    DistanceMetric = "repi"
	RCDPP   DistanceMetric = "rcdpp"
	Azimuth DistanceMetric = "azimuth"
	// RVolc is the volcanic path distance. It is not computed yet and is
	// zero for every site.
	RVolc DistanceMetric = "rvolc"
)

var metrics = []DistanceMetric{RRup, RJB, RX, RY0, RHypo, REpi, RCDPP, Azimuth, RVolc}

// ParseDistanceMetric validates a metric name.
func ParseDistanceMetric(name string) (DistanceMetric, error) {
	m := DistanceMetric(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range metrics {
		if m == known {
			return m, nil
		}
	}
	return "", &UnsupportedParameterError{Param: "distance metric", Value: name}
}

// Distances computes the metric from the rupture to every mesh point.
func Distances(rup source.Rupture, mesh geo.Mesh, metric DistanceMetric) ([]float64, error) {
	switch metric {
	case RRup:
		return rup.Surface().MinDistance(mesh)
	case RJB:
		return rup.Surface().JoynerBooreDistance(mesh)
	case RX:
		return rup.Surface().RxDistance(mesh)
	case RY0:
		return rup.Surface().Ry0Distance(mesh)
	case RHypo:
		return hypocentral(rup.Hypocenter(), mesh, true), nil
	case REpi:
		return hypocentral(rup.Hypocenter(), mesh, false), nil
	case RCDPP:
		dr, ok := rup.(source.DirectivityRupture)
		if !ok {
			return nil, &UnsupportedParameterError{
				Param:  "distance metric",
				Value:  string(metric),
				Detail: "rupture does not support directivity",
			}
		}
		return dr.CDPPValue(mesh)
	case Azimuth:
		return rup.Surface().Azimuth(mesh)
	case RVolc:
		return make([]float64, mesh.Len()), nil
	}
	return nil, &UnsupportedParameterError{Param: "distance metric", Value: string(metric)}
}

func hypocentral(hypo geo.Point, mesh geo.Mesh, withDepth bool) []float64 {
	out := make([]float64, mesh.Len())
	for i := range out {
		d := geo.GeodeticDistance(hypo.Lon, hypo.Lat, mesh.Lons[i], mesh.Lats[i])
		if withDepth {
			depth := 0.0
			if i < len(mesh.Depths) {
				depth = mesh.Depths[i]
			}
			d = math.Hypot(d, hypo.Depth-depth)
		}
		out[i] = d
	}
	return out
}
