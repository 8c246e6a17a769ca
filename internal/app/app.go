// Package app builds the long-lived services of newsdesk from configuration
// and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/api"
	"github.com/JakeFAU/newsdesk/internal/catalog"
	"github.com/JakeFAU/newsdesk/internal/classify"
	"github.com/JakeFAU/newsdesk/internal/clock/system"
	"github.com/JakeFAU/newsdesk/internal/config"
	"github.com/JakeFAU/newsdesk/internal/id/uuid"
	"github.com/JakeFAU/newsdesk/internal/logging"
	"github.com/JakeFAU/newsdesk/internal/metrics"
	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/pipeline"
	"github.com/JakeFAU/newsdesk/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/newsdesk/internal/publisher/pubsub"
	"github.com/JakeFAU/newsdesk/internal/report"
	"github.com/JakeFAU/newsdesk/internal/retention"
	"github.com/JakeFAU/newsdesk/internal/retry"
	"github.com/JakeFAU/newsdesk/internal/scorer"
	"github.com/JakeFAU/newsdesk/internal/selection"
	"github.com/JakeFAU/newsdesk/internal/sheets"
	googlesheets "github.com/JakeFAU/newsdesk/internal/sheets/google"
	memorysheets "github.com/JakeFAU/newsdesk/internal/sheets/memory"
	"github.com/JakeFAU/newsdesk/internal/source"
	"github.com/JakeFAU/newsdesk/internal/storage"
	gcsstorage "github.com/JakeFAU/newsdesk/internal/storage/gcs"
	localstorage "github.com/JakeFAU/newsdesk/internal/storage/local"
	memorystorage "github.com/JakeFAU/newsdesk/internal/storage/memory"
	pgstore "github.com/JakeFAU/newsdesk/internal/storage/postgres"
)

// Ledger records runs and serves them back to the API.
type Ledger interface {
	report.Ledger
	api.RunLedger
}

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     sheets.Store
	policy    *retry.Policy
	clock     news.Clock
	sweeper   *retention.Sweeper
	pipeline  *pipeline.Pipeline
	catalog   *catalog.Catalog
	apiServer *api.Server
	ledger    Ledger

	gemini    *scorer.Gemini
	blobs     *gcsstorage.BlobStore
	runStore  *pgstore.RunStore
	publisher *gcppublisher.Publisher
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	a := &App{cfg: cfg, logger: logger, clock: system.New()}
	logger.Info("building application dependencies",
		zap.String("sheets_backend", cfg.Sheets.Backend),
		zap.String("scorer", cfg.Scorer.Provider),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	if err := a.build(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	var err error
	if a.store, err = a.setupSheets(ctx); err != nil {
		return err
	}
	a.policy = retry.New(retry.Config{
		Attempts:  a.cfg.Retry.Attempts,
		Step:      a.cfg.Retry.Step,
		FinalWait: a.cfg.Retry.FinalWait,
		Pause:     a.cfg.Retry.Pause,
	}, retry.TimerSleeper, a.logger)
	a.sweeper = retention.New(a.store, a.policy, a.clock, a.logger)

	classifier, err := a.setupClassifier()
	if err != nil {
		return err
	}
	sources, err := a.setupSources()
	if err != nil {
		return err
	}
	sc, err := a.setupScorer(ctx)
	if err != nil {
		return err
	}
	blobs, err := a.setupStorage(ctx)
	if err != nil {
		return err
	}
	if err := a.setupLedger(ctx); err != nil {
		return err
	}
	publisher, err := a.setupPublisher(ctx)
	if err != nil {
		return err
	}
	selector, err := selection.New(a.cfg.Run.MaxArticles, a.cfg.Run.QuotaSource, a.cfg.Run.QuotaLimit)
	if err != nil {
		return fmt.Errorf("selector init failed: %w", err)
	}

	a.pipeline, err = pipeline.New(pipeline.Deps{
		Sources:    sources,
		Classifier: classifier,
		Selector:   selector,
		Scorer:     sc,
		Store:      a.store,
		Policy:     a.policy,
		Sweeper:    a.sweeper,
		Archiver:   report.NewArchiver(blobs, a.ledger, a.logger),
		Publisher:  publisher,
		Clock:      a.clock,
		IDs:        uuid.New(),
		Logger:     a.logger,
	}, pipeline.Config{
		MaxPages:      a.cfg.Run.MaxPages,
		MaxPerSource:  a.cfg.Run.MaxPerSource,
		RetentionDays: a.cfg.Retention.Days,
		Topic:         a.cfg.PubSub.TopicName,
	})
	if err != nil {
		return fmt.Errorf("pipeline init failed: %w", err)
	}

	a.catalog = catalog.New(a.store, a.clock, catalog.Config{
		TTL:         a.cfg.Catalog.TTL,
		Concurrency: a.cfg.Catalog.Concurrency,
	}, a.logger)
	a.apiServer = api.NewServer(a.catalog, a.ledger, api.Config{
		APIKey:  a.cfg.Server.APIKey,
		Timeout: a.cfg.ServerTimeout(),
	}, a.logger)
	return nil
}

func (a *App) setupSheets(ctx context.Context) (sheets.Store, error) {
	switch a.cfg.Sheets.Backend {
	case "memory":
		a.logger.Warn("using in-memory sheets backend; nothing is persisted")
		return memorysheets.New(), nil
	default:
		store, err := googlesheets.New(ctx, googlesheets.Config{
			DocumentID:      a.cfg.Sheets.DocumentID,
			DocumentName:    a.cfg.Sheets.DocumentName,
			CredentialsFile: a.cfg.Sheets.CredentialsFile,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("sheets init failed: %w", err)
		}
		a.logger.Info("google sheets document opened",
			zap.String("url", store.URL()),
			zap.Bool("created", store.Created()),
		)
		return store, nil
	}
}

func (a *App) setupClassifier() (*classify.Classifier, error) {
	if a.cfg.Classify.File == "" {
		return classify.Default(), nil
	}
	c, err := classify.LoadFile(a.cfg.Classify.File)
	if err != nil {
		return nil, fmt.Errorf("classifier init failed: %w", err)
	}
	a.logger.Info("keyword file loaded", zap.String("path", a.cfg.Classify.File), zap.Strings("categories", c.Names()))
	return c, nil
}

func (a *App) setupSources() ([]news.Source, error) {
	cfgs := source.Defaults()
	if a.cfg.Sources.File != "" {
		var err error
		if cfgs, err = source.LoadFile(a.cfg.Sources.File); err != nil {
			return nil, fmt.Errorf("sources init failed: %w", err)
		}
	}
	sources, err := source.Build(cfgs, source.Options{
		UserAgent: a.cfg.Sources.UserAgent,
		Timeout:   a.cfg.Sources.Timeout,
		Pacer:     ratelimit.Every(a.cfg.Sources.Interval),
		Logger:    a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("sources init failed: %w", err)
	}
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name())
	}
	a.logger.Info("sources configured", zap.Strings("sources", names))
	return sources, nil
}

func (a *App) setupScorer(ctx context.Context) (news.Scorer, error) {
	if a.cfg.Scorer.Provider == "static" {
		a.logger.Warn("using static scorer; articles get a fixed score")
		return scorer.Static{}, nil
	}
	var err error
	a.gemini, err = scorer.NewGemini(ctx, scorer.GeminiConfig{
		APIKey:          a.cfg.Scorer.APIKey,
		Model:           a.cfg.Scorer.Model,
		Temperature:     a.cfg.Scorer.Temperature,
		MaxOutputTokens: a.cfg.Scorer.MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("scorer init failed: %w", err)
	}
	a.logger.Info("gemini scorer configured",
		zap.String("model", a.cfg.Scorer.Model),
		zap.Duration("interval", a.cfg.Scorer.Interval),
	)
	return scorer.New(a.gemini, ratelimit.Every(a.cfg.Scorer.Interval), a.logger), nil
}

func (a *App) setupStorage(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "gcs":
		var err error
		a.blobs, err = gcsstorage.Dial(ctx, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS report storage", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return a.blobs, nil
	case "local":
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local report storage", zap.String("path", a.cfg.Storage.LocalDir))
		return blobs, nil
	case "memory":
		a.logger.Info("using in-memory report storage")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("report archiving disabled")
		return nil, nil
	}
}

func (a *App) setupLedger(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no DSN specified for database, keeping run history in memory")
		a.ledger = memorystorage.NewRunStore()
		return nil
	}
	var err error
	a.runStore, err = pgstore.NewRunStore(ctx, pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	if a.cfg.DB.Migrate {
		if err := a.runStore.Migrate(ctx); err != nil {
			return fmt.Errorf("run store migrate failed: %w", err)
		}
	}
	a.ledger = a.runStore
	a.logger.Info("run store initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (news.Publisher, error) {
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Info("no Pub/Sub topic configured, commit events disabled")
		return nil, nil
	}
	var err error
	a.publisher, err = gcppublisher.Dial(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.publisher, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Run executes one pipeline pass.
func (a *App) Run(ctx context.Context, opts pipeline.Options) (*report.Report, error) {
	return a.pipeline.Run(ctx, opts)
}

// Sweep deletes rows older than days, keeping top-scored rows.
func (a *App) Sweep(ctx context.Context, days int) (retention.Result, error) {
	return a.sweeper.Sweep(ctx, days)
}

// RemoveDuplicates deletes repeated rows within each sheet.
func (a *App) RemoveDuplicates(ctx context.Context) (retention.Result, error) {
	return a.sweeper.RemoveDuplicates(ctx)
}

// PurgeUndated deletes rows with a blank date.
func (a *App) PurgeUndated(ctx context.Context) (retention.Result, error) {
	return a.sweeper.PurgeUndated(ctx)
}

// Handler returns the HTTP handler of the API.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Serve runs the HTTP API until ctx is canceled or a signal arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases every client the app opened.
func (a *App) Close(_ context.Context) error {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.runStore != nil {
		a.runStore.Close()
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.logger.Warn("gemini client close failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	return nil
}
