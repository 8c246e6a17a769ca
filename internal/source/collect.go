package source

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/metrics"
	"github.com/JakeFAU/newsdesk/internal/news"
)

// Defaults for Collect limits.
const (
	DefaultMaxPages    = 10
	DefaultMaxArticles = 15
)

// SourceResult is the outcome of one source.
type SourceResult struct {
	Name     string `json:"name"`
	Articles int    `json:"articles"`
	Error    string `json:"error,omitempty"`
}

// Collection holds every article of a run in source order.
type Collection struct {
	Articles []news.Article
	Sources  []SourceResult
}

// Failed returns the number of sources that returned an error.
func (c Collection) Failed() int {
	n := 0
	for _, s := range c.Sources {
		if s.Error != "" {
			n++
		}
	}
	return n
}

// Collect scrapes each source in turn. A failing source is logged and
// recorded; the others still run. Only context cancellation stops early.
func Collect(ctx context.Context, sources []news.Source, maxPages, maxArticles int, logger *zap.Logger) (Collection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var out Collection
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		name := src.Name()
		articles, err := src.Scrape(ctx, maxPages, maxArticles)
		res := SourceResult{Name: name, Articles: len(articles)}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			res.Error = err.Error()
			metrics.ObserveSourceError(name)
			logger.Error("source failed", zap.String("source", name), zap.Error(err))
		}
		for i := range articles {
			if articles[i].Source == "" {
				articles[i].Source = name
			}
		}
		metrics.ObserveArticles(metrics.StageCollected, name, len(articles))
		out.Articles = append(out.Articles, articles...)
		out.Sources = append(out.Sources, res)
	}
	logger.Info("collection finished",
		zap.Int("sources", len(sources)),
		zap.Int("failed", out.Failed()),
		zap.Int("articles", len(out.Articles)),
	)
	return out, nil
}
