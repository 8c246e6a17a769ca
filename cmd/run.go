package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var opts pipeline.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect, score and commit one batch of articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !a.Config().Retention.Enabled {
				opts.SkipSweep = true
			}
			rep, err := a.Run(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("run pipeline: %w", err)
			}
			a.Logger().Info("run finished",
				zap.String("run_id", rep.RunID),
				zap.Int("committed", rep.Committed),
				zap.Duration("duration", rep.Duration()),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d committed, %d duplicates, %d abandoned\n",
				rep.RunID, rep.Committed, rep.Duplicates, rep.Abandoned)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.SkipSweep, "skip-sweep", false, "do not delete expired rows before committing")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "score and rank but never write to the store")
	return cmd
}
