package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hazard-cli/internal/config"
	"github.com/sells-group/hazard-cli/internal/monitoring"
)

var (
	cfg *config.Config
	// mon times the filtering stages of one invocation; nil when metrics
	// are disabled.
	mon *monitoring.Monitor
)

var rootCmd = &cobra.Command{
	Use:   "hazard-cli",
	Short: "Probabilistic seismic hazard pipeline",
	Long:  "Filters sources and ruptures by integration distance, aggregates ground motion fields into hazard curves, and derives hazard maps and uniform hazard spectra.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		mon, err = newMonitor(cfg, prometheus.NewRegistry())
		if err != nil {
			return err
		}

		zap.L().Debug("hazard-cli starting",
			zap.String("command", cmd.Name()),
			zap.String("prefilter", cfg.Calculation.Prefilter),
			zap.String("distance_metric", cfg.Calculation.DistanceMetric),
			zap.Int("workers", cfg.Calculation.Workers),
			zap.Bool("metrics", mon != nil),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logStages(mon)
		_ = zap.L().Sync()
	},
}

// logStages logs the totals of every stage that did any work.
func logStages(m *monitoring.Monitor) {
	for _, st := range m.Snapshot().Stages {
		if st.Count == 0 {
			continue
		}
		zap.L().Info("stage totals",
			zap.String("stage", string(st.Stage)),
			zap.Int("count", st.Count),
			zap.Duration("duration", st.Duration),
		)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
