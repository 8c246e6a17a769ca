package news

import (
	"context"
	"time"
)

// Source scrapes one site and returns raw article records tagged with its name.
type Source interface {
	Name() string
	Scrape(ctx context.Context, maxPages, maxArticles int) ([]Article, error)
}

// Scorer turns article text into a summary and a 1-5 importance score.
// Implementations never fail; a degraded candidate is returned instead.
type Scorer interface {
	Score(ctx context.Context, article Article) ScoredCandidate
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator creates run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher delivers commit events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
