// Package pipeline runs one collection pass: collect, filter, sweep,
// deduplicate, admit, score, rank and commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/classify"
	"github.com/JakeFAU/newsdesk/internal/dedup"
	"github.com/JakeFAU/newsdesk/internal/metrics"
	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/report"
	"github.com/JakeFAU/newsdesk/internal/retention"
	"github.com/JakeFAU/newsdesk/internal/retry"
	"github.com/JakeFAU/newsdesk/internal/selection"
	"github.com/JakeFAU/newsdesk/internal/sheets"
	"github.com/JakeFAU/newsdesk/internal/source"
	"github.com/JakeFAU/newsdesk/internal/writer"
)

// Config holds the per-run limits.
type Config struct {
	MaxPages      int
	MaxPerSource  int
	RetentionDays int
	// Topic receives commit events when a publisher is set.
	Topic string
}

// Deps are the collaborators of a Pipeline. Archiver and Publisher may be nil.
type Deps struct {
	Sources    []news.Source
	Classifier *classify.Classifier
	Selector   selection.Selector
	Scorer     news.Scorer
	Store      sheets.Store
	Policy     *retry.Policy
	Sweeper    *retention.Sweeper
	Archiver   *report.Archiver
	Publisher  news.Publisher
	Clock      news.Clock
	IDs        news.IDGenerator
	Logger     *zap.Logger
}

// Options alter a single run.
type Options struct {
	SkipSweep bool
	// DryRun reads the store but never mutates it.
	DryRun bool
}

// Pipeline wires the stages together.
type Pipeline struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New validates deps and applies default limits.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	switch {
	case deps.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case deps.Scorer == nil:
		return nil, errors.New("pipeline: scorer is required")
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Policy == nil:
		return nil, errors.New("pipeline: retry policy is required")
	case deps.Clock == nil || deps.IDs == nil:
		return nil, errors.New("pipeline: clock and id generator are required")
	}
	if deps.Sweeper == nil {
		deps.Sweeper = retention.New(deps.Store, deps.Policy, deps.Clock, deps.Logger)
	}
	if deps.Selector.MaxPerRun <= 0 {
		deps.Selector = selection.Default()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = source.DefaultMaxPages
	}
	if cfg.MaxPerSource <= 0 {
		cfg.MaxPerSource = source.DefaultMaxArticles
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = retention.DefaultRetentionDays
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, cfg: cfg, logger: logger.Named("pipeline")}, nil
}

// Run executes one pass and returns its report. The report is archived
// whether or not the run succeeds; archive failures are only logged.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*report.Report, error) {
	runID, err := p.deps.IDs.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	rep := report.New(runID, p.deps.Clock.Now())
	rep.DryRun = opts.DryRun
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("run started", zap.Int("sources", len(p.deps.Sources)), zap.Bool("dry_run", opts.DryRun))

	runErr := p.run(ctx, logger, rep, opts)

	rep.Finish(p.deps.Clock.Now(), runErr)
	metrics.ObserveRun(rep.Status)
	if p.deps.Archiver != nil {
		if err := p.deps.Archiver.Archive(context.WithoutCancel(ctx), rep); err != nil {
			logger.Warn("run report not fully archived", zap.Error(err))
		}
	}
	return rep, runErr
}

func (p *Pipeline) run(ctx context.Context, logger *zap.Logger, rep *report.Report, opts Options) error {
	collection, err := source.Collect(ctx, p.deps.Sources, p.cfg.MaxPages, p.cfg.MaxPerSource, logger)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	for _, s := range collection.Sources {
		rep.Source(s.Name).Error = s.Error
	}
	rep.CountCollected(collection.Articles)

	filtered := p.deps.Classifier.Filter(collection.Articles)
	rep.CountFiltered(filtered)
	for _, s := range rep.Sources {
		metrics.ObserveArticles(metrics.StageFiltered, s.Name, s.Filtered)
	}
	logger.Info("articles filtered", zap.Int("collected", rep.Collected), zap.Int("filtered", rep.Filtered))

	if !opts.SkipSweep && !opts.DryRun {
		res, err := p.deps.Sweeper.Sweep(ctx, p.cfg.RetentionDays)
		rep.Sweep = &res
		if err != nil {
			return fmt.Errorf("retention sweep: %w", err)
		}
	}

	var (
		index *dedup.Index
		w     *writer.Writer
	)
	if opts.DryRun {
		index, _, err = dedup.Load(ctx, p.deps.Store, logger)
		if err != nil {
			return fmt.Errorf("load dedup index: %w", err)
		}
	} else {
		w = writer.New(p.deps.Store, p.deps.Classifier, p.deps.Policy, logger, writer.Options{
			Publisher: p.deps.Publisher,
			Topic:     p.cfg.Topic,
			Clock:     p.deps.Clock,
			RunID:     rep.RunID,
		})
		if err := w.Prepare(ctx); err != nil {
			return fmt.Errorf("prepare store: %w", err)
		}
		index = w.Index()
	}

	fresh := make([]news.Article, 0, len(filtered))
	for _, a := range filtered {
		if existing, dup := index.Match(a.URL, a.Title); dup {
			rep.Duplicates++
			metrics.ObserveArticles(metrics.StageDuplicate, a.Source, 1)
			logger.Debug("duplicate skipped", zap.String("title", a.Title), zap.String("existing", existing))
			continue
		}
		fresh = append(fresh, a)
	}
	if len(fresh) == 0 {
		logger.Info("no new articles")
		return nil
	}

	admitted := p.deps.Selector.Admit(fresh)
	rep.Admitted = len(admitted)
	rep.Deferred = len(fresh) - len(admitted)
	for _, a := range admitted {
		metrics.ObserveArticles(metrics.StageAdmitted, a.Source, 1)
	}
	logger.Info("articles admitted", zap.Int("new", len(fresh)), zap.Int("admitted", len(admitted)))

	scored := make([]news.ScoredCandidate, 0, len(admitted))
	for i, a := range admitted {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := p.deps.Scorer.Score(ctx, a)
		logger.Info("article scored",
			zap.Int("n", i+1),
			zap.Int("of", len(admitted)),
			zap.String("source", a.Source),
			zap.Int("score", c.Score),
		)
		scored = append(scored, c)
	}

	final := p.deps.Selector.Rank(scored)
	rep.Deferred += len(scored) - len(final)
	for _, c := range final {
		rep.AddScore(c.Score)
	}

	if opts.DryRun {
		for _, c := range final {
			logger.Info("would commit", zap.String("title", c.Article.Title), zap.Int("score", c.Score))
		}
		return nil
	}

	for _, c := range final {
		outcome, err := w.Commit(ctx, c)
		switch outcome {
		case writer.OutcomeCommitted:
			rep.Committed++
		case writer.OutcomeDuplicate:
			rep.Duplicates++
		case writer.OutcomeAbandoned:
			rep.Abandoned++
		}
		if err != nil {
			return fmt.Errorf("commit %q: %w", c.Article.Title, err)
		}
	}
	logger.Info("articles committed", zap.Int("committed", rep.Committed), zap.Int("abandoned", rep.Abandoned))
	return nil
}
