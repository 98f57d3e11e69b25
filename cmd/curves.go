package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hazard-cli/internal/config"
	"github.com/sells-group/hazard-cli/internal/hazard"
	"github.com/sells-group/hazard-cli/internal/imt"
	"github.com/sells-group/hazard-cli/internal/job"
	"github.com/sells-group/hazard-cli/internal/pmap"
	"github.com/sells-group/hazard-cli/internal/site"
	"github.com/sells-group/hazard-cli/internal/store"
)

var curvesSave bool

var curvesCmd = &cobra.Command{
	Use:   "curves",
	Short: "Build hazard curves, maps and uniform hazard spectra from ground motion fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := "curves"
		if curvesSave {
			mode = "save"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}
		j, err := job.Load(jobPath)
		if err != nil {
			return err
		}
		res, err := buildResults(j)
		if err != nil {
			return err
		}
		res.print(cmd.OutOrStdout())

		if !curvesSave {
			return nil
		}
		calcID, err := saveResults(cmd.Context(), cfg.Store, j.Description, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved calculation %s\n", calcID)
		return nil
	},
}

func init() {
	addJobFlag(curvesCmd)
	curvesCmd.Flags().BoolVar(&curvesSave, "save", false, "persist results to the configured store")
	rootCmd.AddCommand(curvesCmd)
}

// results are the outputs of the post-processing chain.
type results struct {
	sites *site.Collection
	imtls imt.IMTLs
	poes  []float64
	pm    *pmap.ProbabilityMap
	maps  *hazard.HazardMaps
	uhs   []hazard.UHS
}

func buildResults(j *job.Job) (*results, error) {
	sites, err := j.SiteCollection()
	if err != nil {
		return nil, err
	}
	imtls, err := j.IMTLs()
	if err != nil {
		return nil, err
	}
	if err := hazard.CheckOverflow(int64(sites.Len()), int64(j.NumEvents()), int64(len(imtls))); err != nil {
		return nil, err
	}
	gmvs, err := j.GMVsBySite(imtls)
	if err != nil {
		return nil, err
	}
	pm, err := hazard.BuildProbabilityMap(gmvs, imtls, j.InvestigationTime, j.Duration())
	if err != nil {
		return nil, err
	}

	res := &results{sites: sites, imtls: imtls, poes: j.PoEs, pm: pm}
	if len(j.PoEs) == 0 {
		zap.L().Info("no poes given, skipping hazard maps and spectra")
		return res, nil
	}
	res.maps, err = hazard.BuildHazardMaps(pm, sites.SIDs(), imtls, j.PoEs)
	if err != nil {
		return nil, err
	}
	res.uhs, err = hazard.MakeUHS(res.maps, imtls, j.PoEs)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *results) print(w io.Writer) {
	fmt.Fprintf(w, "sites: %d  curves: %d  levels: %d\n", r.sites.Len(), r.pm.Len(), r.pm.NumLevels())
	if r.maps == nil {
		return
	}
	for _, key := range r.maps.Keys() {
		col, _ := r.maps.Column(key)
		hi := 0.0
		for _, v := range col {
			hi = max(hi, v)
		}
		fmt.Fprintf(w, "  map %-20s max=%.6g\n", key, hi)
	}
	fmt.Fprintf(w, "  spectra: %d sites x %d poes\n", len(r.uhs), len(r.poes))
}

// saveResults writes everything to a new calculation and marks it complete,
// or failed when a write fails.
func saveResults(ctx context.Context, sc config.StoreConfig, description string, r *results) (string, error) {
	st, err := store.New(ctx, sc)
	if err != nil {
		return "", err
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return "", err
	}
	c, err := st.CreateCalculation(ctx, description, r.sites)
	if err != nil {
		return "", err
	}

	if err := writeResults(ctx, st, c.ID, r); err != nil {
		if uerr := st.UpdateCalculationStatus(ctx, c.ID, store.StatusFailed); uerr != nil {
			zap.L().Warn("mark calculation failed", zap.String("calc_id", c.ID), zap.Error(uerr))
		}
		return "", eris.Wrapf(err, "save calculation %s", c.ID)
	}
	if err := st.UpdateCalculationStatus(ctx, c.ID, store.StatusComplete); err != nil {
		return "", err
	}
	return c.ID, nil
}

func writeResults(ctx context.Context, st store.Store, calcID string, r *results) error {
	n, err := st.SaveHazardCurves(ctx, calcID, r.pm, r.imtls)
	if err != nil {
		return err
	}
	zap.L().Info("saved hazard curves", zap.String("calc_id", calcID), zap.Int64("rows", n))
	if r.maps == nil {
		return nil
	}
	if n, err = st.SaveHazardMaps(ctx, calcID, r.maps); err != nil {
		return err
	}
	zap.L().Info("saved hazard maps", zap.String("calc_id", calcID), zap.Int64("rows", n))
	if n, err = st.SaveUHS(ctx, calcID, r.uhs); err != nil {
		return err
	}
	zap.L().Info("saved uniform hazard spectra", zap.String("calc_id", calcID), zap.Int64("rows", n))
	return nil
}
