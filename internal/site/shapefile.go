package site

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hazard-cli/internal/geo"
)

// DepthField is the optional shapefile attribute holding the site depth in km.
const DepthField = "depth"

// LoadShapefile reads a point shapefile into a complete site collection.
// Records are numbered in file order. Non-point records are rejected.
func LoadShapefile(path string) (*Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "site: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	depthIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(strings.TrimSpace(name), DepthField) {
			depthIdx = i
		}
	}

	var points []geo.Point
	for reader.Next() {
		n, shape := reader.Shape()
		pt, ok := shape.(*shp.Point)
		if !ok {
			return nil, eris.Errorf("site: record %d of %s is %T, want a point", n, path, shape)
		}
		p := geo.Point{Lon: pt.X, Lat: pt.Y}
		if depthIdx >= 0 {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(depthIdx), "\x00"))
			if val != "" {
				depth, perr := strconv.ParseFloat(val, 64)
				if perr != nil {
					return nil, eris.Wrapf(perr, "site: record %d depth %q", n, val)
				}
				p.Depth = depth
			}
		}
		points = append(points, p)
	}

	zap.L().Debug("site: loaded shapefile",
		zap.String("path", path),
		zap.Int("sites", len(points)),
		zap.Bool("has_depth", depthIdx >= 0),
	)

	return New(points)
}
