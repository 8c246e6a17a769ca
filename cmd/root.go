// Package cmd defines the newsdesk command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/app"
	"github.com/JakeFAU/newsdesk/internal/config"
	"github.com/JakeFAU/newsdesk/internal/pipeline"
	"github.com/JakeFAU/newsdesk/internal/report"
	"github.com/JakeFAU/newsdesk/internal/retention"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the commands need from the application. Tests inject a fake.
type App interface {
	Logger() *zap.Logger
	Config() config.Config
	Run(ctx context.Context, opts pipeline.Options) (*report.Report, error)
	Sweep(ctx context.Context, days int) (retention.Result, error)
	RemoveDuplicates(ctx context.Context) (retention.Result, error)
	PurgeUndated(ctx context.Context) (retention.Result, error)
	Serve(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.Build(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "newsdesk",
		Short: "Collects, scores and files AI business news into a spreadsheet",
		Long: `newsdesk scrapes a fixed set of Japanese AI news sites, keeps the
articles that match its keyword sets, scores them with a language model and
appends the best of each run to one sheet per category.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is normal outside local development.
			_ = godotenv.Load()
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				_ = appInstance.Close(context.WithoutCancel(cmd.Context()))
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables override it")

	cmd.AddCommand(
		newRunCmd(),
		newSweepCmd(),
		newDedupeCmd(),
		newPurgeUndatedCmd(),
		newServeCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
