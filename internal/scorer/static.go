package scorer

import (
	"context"
	"strings"

	"github.com/JakeFAU/newsdesk/internal/news"
)

// Static scores every article with a fixed score and uses the opening of
// the article text as its summary. It stands in for the model in dry runs
// and when no API key is configured.
type Static struct {
	Fixed        int
	SummaryChars int
}

// Score implements news.Scorer.
func (s Static) Score(_ context.Context, a news.Article) news.ScoredCandidate {
	if strings.TrimSpace(a.Content) == "" {
		return news.ScoredCandidate{Article: a, Summary: EmptyContentSummary, Score: news.MinScore}
	}
	n := s.SummaryChars
	if n <= 0 {
		n = 200
	}
	score := s.Fixed
	if score == 0 {
		score = news.DefaultScore
	}
	return news.ScoredCandidate{
		Article: a,
		Summary: truncate(strings.Join(strings.Fields(a.Content), " "), n),
		Score:   news.ClampScore(score),
	}
}
