// Package selection decides which candidates a run scores and which it
// commits. One source is held to a fixed quota so it cannot crowd out the
// rest of the batch.
package selection

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/JakeFAU/newsdesk/internal/dateparse"
	"github.com/JakeFAU/newsdesk/internal/news"
)

// Defaults used when a Selector field is zero.
const (
	DefaultMaxPerRun   = 10
	DefaultQuotaSource = "PR TIMES"
	DefaultQuotaLimit  = 4
)

// Selector holds the admission limits of a run.
type Selector struct {
	MaxPerRun   int
	QuotaSource string
	QuotaLimit  int
}

// New returns a Selector, rejecting limits that cannot be satisfied.
func New(maxPerRun int, quotaSource string, quotaLimit int) (Selector, error) {
	if maxPerRun <= 0 {
		return Selector{}, fmt.Errorf("max per run must be > 0, got %d", maxPerRun)
	}
	if quotaLimit < 0 || quotaLimit > maxPerRun {
		return Selector{}, fmt.Errorf("quota limit must be between 0 and %d, got %d", maxPerRun, quotaLimit)
	}
	return Selector{MaxPerRun: maxPerRun, QuotaSource: quotaSource, QuotaLimit: quotaLimit}, nil
}

// Default returns the Selector used when nothing is configured.
func Default() Selector {
	return Selector{MaxPerRun: DefaultMaxPerRun, QuotaSource: DefaultQuotaSource, QuotaLimit: DefaultQuotaLimit}
}

func (s Selector) others() int {
	if n := s.MaxPerRun - s.QuotaLimit; n > 0 {
		return n
	}
	return 0
}

// Admit is the recency gate applied before scoring. Quota-source articles
// are kept in arrival order up to the quota; the rest are ordered newest
// first and cut to the remaining slots. The quota bucket comes first.
func (s Selector) Admit(candidates []news.Article) []news.Article {
	var quota, rest []news.Article
	for _, a := range candidates {
		if a.Source == s.QuotaSource {
			if len(quota) < s.QuotaLimit {
				quota = append(quota, a)
			}
			continue
		}
		rest = append(rest, a)
	}

	type dated struct {
		article news.Article
		key     int64
	}
	byDate := make([]dated, len(rest))
	for i, a := range rest {
		byDate[i] = dated{article: a, key: dateparse.SortKey(a.Date).Unix()}
	}
	slices.SortStableFunc(byDate, func(a, b dated) int {
		return cmp.Compare(b.key, a.key)
	})
	if len(byDate) > s.others() {
		byDate = byDate[:s.others()]
	}

	out := make([]news.Article, 0, len(quota)+len(byDate))
	out = append(out, quota...)
	for _, d := range byDate {
		out = append(out, d.article)
	}
	return out
}

// Rank orders scored candidates by score, highest first, and walks them in
// that order keeping at most QuotaLimit quota-source candidates, at most
// MaxPerRun-QuotaLimit others, and MaxPerRun overall. Equal scores keep
// their input order.
func (s Selector) Rank(scored []news.ScoredCandidate) []news.ScoredCandidate {
	sorted := slices.Clone(scored)
	slices.SortStableFunc(sorted, func(a, b news.ScoredCandidate) int {
		return b.Score - a.Score
	})

	out := make([]news.ScoredCandidate, 0, min(len(sorted), s.MaxPerRun))
	quota, others := 0, 0
	for _, c := range sorted {
		if len(out) >= s.MaxPerRun {
			break
		}
		if c.Article.Source == s.QuotaSource {
			if quota >= s.QuotaLimit {
				continue
			}
			quota++
		} else {
			if others >= s.others() {
				continue
			}
			others++
		}
		out = append(out, c)
	}
	return out
}
