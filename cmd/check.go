package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/hazard-cli/internal/filters"
	"github.com/sells-group/hazard-cli/internal/hazard"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a job file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("check"); err != nil {
			return err
		}
		in, err := loadInputs(jobPath)
		if err != nil {
			return err
		}
		return runCheck(in, cmd.OutOrStdout())
	},
}

func init() {
	addJobFlag(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

// runCheck verifies that every source has an integration distance, that
// the calculation fits the storage ceilings and that every intensity
// measure type has a minimum intensity.
func runCheck(in *inputs, w io.Writer) error {
	if !in.distance.IsEmpty() {
		if err := in.distance.Check(in.trts()...); err != nil {
			return err
		}
	}
	for _, src := range in.sources {
		if _, err := src.Extent(); err != nil {
			return &filters.SourceError{SourceID: src.ID(), Err: err}
		}
	}

	imtls, err := in.job.IMTLs()
	if err != nil {
		return err
	}
	if err := hazard.CheckOverflow(int64(in.sites.Len()), int64(in.job.NumEvents()), int64(len(imtls))); err != nil {
		return err
	}
	minIML, err := in.job.MinimumIntensityValues(imtls)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "sites: %d  sources: %d  events: %d\n", in.sites.Len(), len(in.sources), in.job.NumEvents())
	fmt.Fprintf(w, "integration distance: %s\n", in.distance)
	for i, name := range imtls.Names() {
		fmt.Fprintf(w, "  %-12s levels=%d minimum_intensity=%g\n", name, len(imtls[i].Levels), minIML[i])
	}
	fmt.Fprintln(w, "ok")
	return nil
}
