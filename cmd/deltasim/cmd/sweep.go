package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/deltasim/models"
	"github.com/sarchlab/deltasim/sim"
)

type sweepResult struct {
	Duration sim.VTime
	Term     *sim.Termination
	Summary  map[string]any
}

func newSweepCmd() *cobra.Command {
	var (
		configPath string
		durations  []uint
	)

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a design once per duration, in parallel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := models.LoadConfig(configPath)
			if err != nil {
				return err
			}

			if len(durations) == 0 {
				return fmt.Errorf("no duration given")
			}

			ds := make([]sim.VTime, len(durations))
			for i, d := range durations {
				if d == 0 {
					return fmt.Errorf("sweep durations must be positive")
				}

				ds[i] = sim.VTime(d)
			}

			results, err := sweep(cmd.Context(), cfg, ds)
			if err != nil {
				return err
			}

			printSweep(cmd.OutOrStdout(), results)

			return nil
		},
	}

	sweepCmd.Flags().StringVarP(&configPath, "config", "c", "model.yaml",
		"Design description")
	sweepCmd.Flags().UintSliceVar(&durations, "durations", nil,
		"Comma-separated durations to simulate")

	return sweepCmd
}

// sweep runs an independent simulation per duration. Each run has its own
// environment, so runs share nothing.
func sweep(
	ctx context.Context,
	cfg *models.Config,
	durations []sim.VTime,
) ([]sweepResult, error) {
	results := make([]sweepResult, len(durations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, d := range durations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			term, design, err := runDesign(cfg,
				runOptions{duration: &d, quiet: true}, io.Discard)
			if err != nil {
				return fmt.Errorf("duration %d: %w", d, err)
			}

			results[i] = sweepResult{
				Duration: d,
				Term:     term,
				Summary:  design.Summary(),
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func printSweep(w io.Writer, results []sweepResult) {
	for _, r := range results {
		keys := make([]string, 0, len(r.Summary))
		for k := range r.Summary {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make([]string, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, fmt.Sprintf("%s=%v", k, r.Summary[k]))
		}

		fmt.Fprintf(w, "duration=%d time=%d reason=%s status=%d %s\n",
			r.Duration, r.Term.Time, r.Term.Reason, r.Term.Status(),
			strings.Join(fields, " "))
	}
}
