// Package job reads calculation inputs from a YAML job file.
package job

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hazard-cli/internal/filters"
	"github.com/sells-group/hazard-cli/internal/geo"
	"github.com/sells-group/hazard-cli/internal/hazard"
	"github.com/sells-group/hazard-cli/internal/imt"
	"github.com/sells-group/hazard-cli/internal/site"
	"github.com/sells-group/hazard-cli/internal/source"
)

// Job is the parsed content of a job file.
type Job struct {
	Description         string             `yaml:"description"`
	InvestigationTime   float64            `yaml:"investigation_time"`
	SESPerLogicTreePath int                `yaml:"ses_per_logic_tree_path"`
	MaximumDistance     map[string]any     `yaml:"maximum_distance"`
	Prefilter           string             `yaml:"prefilter"`
	Sites               []geo.Point        `yaml:"sites"`
	SitesShapefile      string             `yaml:"sites_shapefile"`
	Sources             []SourceConfig     `yaml:"sources"`
	IMTLevels           imt.IMTLs          `yaml:"intensity_measure_types_and_levels"`
	PoEs                []float64          `yaml:"poes"`
	MinimumIntensity    map[string]float64 `yaml:"minimum_intensity"`
	GMFs                []GMFRecord        `yaml:"gmfs"`

	dir string
}

// SourceConfig describes a point source.
type SourceConfig struct {
	ID         string    `yaml:"id"`
	TRT        string    `yaml:"trt"`
	Lon        float64   `yaml:"lon"`
	Lat        float64   `yaml:"lat"`
	Depth      float64   `yaml:"depth"`
	Magnitudes []float64 `yaml:"magnitudes"`
}

// GMFRecord is one ground motion value of an event at a site.
type GMFRecord struct {
	SID   uint32  `yaml:"sid"`
	EID   uint32  `yaml:"eid"`
	IMT   string  `yaml:"imt"`
	Value float64 `yaml:"gmv"`
}

// Load reads a job file. The YAML has a top-level "job" key.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "job: read %s", path)
	}

	var wrapper struct {
		Job Job `yaml:"job"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "job: parse")
	}

	j := &wrapper.Job
	j.dir = filepath.Dir(path)
	if j.InvestigationTime == 0 {
		j.InvestigationTime = 1
	}
	if j.SESPerLogicTreePath == 0 {
		j.SESPerLogicTreePath = 1
	}
	return j, nil
}

// SiteCollection builds the complete site collection, from the inline
// points or from the shapefile. A relative shapefile path is resolved
// against the job file directory.
func (j *Job) SiteCollection() (*site.Collection, error) {
	switch {
	case len(j.Sites) > 0 && j.SitesShapefile != "":
		return nil, eris.New("job: give either sites or sites_shapefile, not both")
	case j.SitesShapefile != "":
		path := j.SitesShapefile
		if !filepath.IsAbs(path) {
			path = filepath.Join(j.dir, path)
		}
		return site.LoadShapefile(path)
	case len(j.Sites) > 0:
		return site.New(j.Sites)
	}
	return nil, eris.New("job: no sites")
}

// PointSources builds the point sources in file order.
func (j *Job) PointSources() ([]source.Source, error) {
	seen := make(map[string]bool, len(j.Sources))
	out := make([]source.Source, 0, len(j.Sources))
	for i, sc := range j.Sources {
		if sc.ID == "" {
			return nil, eris.Errorf("job: source %d has no id", i)
		}
		if seen[sc.ID] {
			return nil, eris.Errorf("job: duplicate source id %q", sc.ID)
		}
		seen[sc.ID] = true
		trt := sc.TRT
		if trt == "" {
			trt = filters.DefaultTRT
		}
		out = append(out, &source.PointSource{
			SourceID:   sc.ID,
			Region:     trt,
			Location:   geo.Point{Lon: sc.Lon, Lat: sc.Lat, Depth: sc.Depth},
			Magnitudes: sc.Magnitudes,
		})
	}
	return out, nil
}

// IntegrationDistance parses the maximum_distance table. A missing table
// gives an empty distance, which disables filtering.
func (j *Job) IntegrationDistance() (*filters.IntegrationDistance, error) {
	if len(j.MaximumDistance) == 0 {
		return filters.NewIntegrationDistance(nil)
	}
	return filters.ParseIntegrationDistance(j.MaximumDistance)
}

// IMTLs returns the validated intensity measure types and levels.
func (j *Job) IMTLs() (imt.IMTLs, error) {
	if len(j.IMTLevels) == 0 {
		return nil, eris.New("job: no intensity_measure_types_and_levels")
	}
	if err := j.IMTLevels.Validate(); err != nil {
		return nil, err
	}
	return j.IMTLevels, nil
}

// Duration is the effective time span of the stochastic event sets.
func (j *Job) Duration() float64 {
	return j.InvestigationTime * float64(j.SESPerLogicTreePath)
}

// MinimumIntensityValues resolves the minimum intensity of every type, in
// imtls order.
func (j *Job) MinimumIntensityValues(imtls imt.IMTLs) ([]float64, error) {
	values, _, err := hazard.FixMinimumIntensity(j.MinimumIntensity, imtls.Names())
	return values, err
}

// GMVsBySite converts the ground motion records and groups them by site.
// Values below the minimum intensity of their type are discarded.
func (j *Job) GMVsBySite(imtls imt.IMTLs) (map[uint32][]hazard.GMV, error) {
	minIML, err := j.MinimumIntensityValues(imtls)
	if err != nil {
		return nil, err
	}
	gmvs := make([]hazard.GMV, 0, len(j.GMFs))
	for i, r := range j.GMFs {
		imti := imtls.Index(strings.TrimSpace(r.IMT))
		if imti < 0 {
			return nil, eris.Errorf("job: gmf record %d has unknown intensity measure type %q", i, r.IMT)
		}
		if r.Value < minIML[imti] {
			continue
		}
		gmvs = append(gmvs, hazard.GMV{SID: r.SID, EID: r.EID, IMTI: uint8(imti), Value: r.Value})
	}
	return hazard.GroupBySite(gmvs), nil
}

// NumEvents counts the distinct event ids of the ground motion records.
func (j *Job) NumEvents() int {
	seen := make(map[uint32]struct{})
	for _, r := range j.GMFs {
		seen[r.EID] = struct{}{}
	}
	return len(seen)
}
