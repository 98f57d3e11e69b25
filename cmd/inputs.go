package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hazard-cli/internal/config"
	"github.com/sells-group/hazard-cli/internal/filters"
	"github.com/sells-group/hazard-cli/internal/job"
	"github.com/sells-group/hazard-cli/internal/monitoring"
	"github.com/sells-group/hazard-cli/internal/site"
	"github.com/sells-group/hazard-cli/internal/source"
)

var jobPath string

func addJobFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&jobPath, "job", "job.yaml", "path to the job file")
}

// inputs are the filtering inputs built from a job file.
type inputs struct {
	job      *job.Job
	sites    *site.Collection
	sources  []source.Source
	distance *filters.IntegrationDistance
}

func loadInputs(path string) (*inputs, error) {
	j, err := job.Load(path)
	if err != nil {
		return nil, err
	}
	sites, err := j.SiteCollection()
	if err != nil {
		return nil, err
	}
	sources, err := j.PointSources()
	if err != nil {
		return nil, err
	}
	distance, err := j.IntegrationDistance()
	if err != nil {
		return nil, err
	}
	return &inputs{job: j, sites: sites, sources: sources, distance: distance}, nil
}

// sourceFilter builds the filter with the job's prefilter, falling back to
// the configured one.
func (in *inputs) sourceFilter(c *config.Config) (*filters.SourceFilter, error) {
	name := in.job.Prefilter
	if name == "" {
		name = c.Calculation.Prefilter
	}
	prefilter, err := filters.ParsePrefilter(name)
	if err != nil {
		return nil, err
	}
	return filters.NewSourceFilter(in.sites, in.distance, prefilter)
}

// trts lists the distinct tectonic region types of the sources.
func (in *inputs) trts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, src := range in.sources {
		if !seen[src.TRT()] {
			seen[src.TRT()] = true
			out = append(out, src.TRT())
		}
	}
	return out
}

// newMonitor returns nil when metrics are disabled.
func newMonitor(c *config.Config, reg prometheus.Registerer) (*monitoring.Monitor, error) {
	if !c.Metrics.Enabled {
		return nil, nil
	}
	mon, err := monitoring.NewMonitor(reg)
	if err != nil {
		return nil, eris.Wrap(err, "init monitor")
	}
	return mon, nil
}
