package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/newsdesk/internal/retention"
)

func newSweepCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete rows older than the retention window, keeping 5-star rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if days <= 0 {
				days = a.Config().Retention.Days
			}
			return runMaintenance(cmd, "sweep", func(ctx context.Context) (retention.Result, error) {
				return a.Sweep(ctx, days)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "retention window in days (default from config)")
	return cmd
}

func newDedupeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Delete repeated rows, keeping the first occurrence in each sheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runMaintenance(cmd, "dedupe", a.RemoveDuplicates)
		},
	}
}

func newPurgeUndatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-undated",
		Short: "Delete rows with a blank date cell",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runMaintenance(cmd, "purge-undated", a.PurgeUndated)
		},
	}
}

func runMaintenance(cmd *cobra.Command, name string, fn func(context.Context) (retention.Result, error)) error {
	res, err := fn(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d deleted, %d preserved, %d failed\n", name, res.Deleted, res.Preserved, res.Failed)
	return nil
}
