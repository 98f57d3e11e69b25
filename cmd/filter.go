package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/hazard-cli/internal/calc"
	"github.com/sells-group/hazard-cli/internal/config"
	"github.com/sells-group/hazard-cli/internal/filters"
	"github.com/sells-group/hazard-cli/internal/monitoring"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter sources and ruptures by integration distance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("filter"); err != nil {
			return err
		}
		in, err := loadInputs(jobPath)
		if err != nil {
			return err
		}
		report, err := runFilter(ctx, cfg, in, mon)
		if err != nil {
			return err
		}
		report.print(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	addJobFlag(filterCmd)
	rootCmd.AddCommand(filterCmd)
}

// trtCount is the filtering outcome for one tectonic region type.
type trtCount struct {
	TRT      string
	Sources  int
	Ruptures int
	Pairs    int // rupture-site pairs within range
}

type filterReport struct {
	Summary calc.BlockSummary
	ByTRT   []trtCount
	Stages  monitoring.MetricsSnapshot
}

func runFilter(ctx context.Context, c *config.Config, in *inputs, m *monitoring.Monitor) (*filterReport, error) {
	if !in.distance.IsEmpty() {
		if err := in.distance.Check(in.trts()...); err != nil {
			return nil, err
		}
	}
	f, err := in.sourceFilter(c)
	if err != nil {
		return nil, err
	}
	metric, err := filters.ParseDistanceMetric(c.Calculation.DistanceMetric)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		counts  = make(map[string]*trtCount)
		sources = make(map[string]bool)
	)
	handle := func(_ context.Context, _ int, item calc.SourceRuptureSites) error {
		mu.Lock()
		defer mu.Unlock()
		trt := item.Source.TRT()
		tc, ok := counts[trt]
		if !ok {
			tc = &trtCount{TRT: trt}
			counts[trt] = tc
		}
		if !sources[item.Source.ID()] {
			sources[item.Source.ID()] = true
			tc.Sources++
		}
		tc.Ruptures++
		tc.Pairs += item.Sites.Len()
		return nil
	}

	summary, err := calc.ProcessBlocks(ctx, f, in.sources, calc.BlockConfig{
		BlockSize: c.Calculation.BlockSize,
		Workers:   c.Calculation.Workers,
		Options:   []calc.Option{calc.WithMonitor(m), calc.WithDistanceMetric(metric)},
	}, handle)
	if err != nil {
		return nil, err
	}

	report := &filterReport{Summary: summary, Stages: m.Snapshot()}
	for _, tc := range counts {
		report.ByTRT = append(report.ByTRT, *tc)
	}
	sort.Slice(report.ByTRT, func(i, j int) bool { return report.ByTRT[i].TRT < report.ByTRT[j].TRT })
	return report, nil
}

func (r *filterReport) print(w io.Writer) {
	fmt.Fprintf(w, "blocks: %d  sources: %d  ruptures kept: %d\n", r.Summary.Blocks, r.Summary.Sources, r.Summary.Ruptures)
	for _, tc := range r.ByTRT {
		fmt.Fprintf(w, "  %-30s sources=%d ruptures=%d pairs=%d\n", tc.TRT, tc.Sources, tc.Ruptures, tc.Pairs)
	}
	for _, st := range r.Stages.Stages {
		fmt.Fprintf(w, "  stage %-18s count=%d time=%s\n", st.Stage, st.Count, st.Duration)
	}
}
