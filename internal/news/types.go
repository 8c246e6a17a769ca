package news

import (
	"strings"
	"time"
)

// Article is a raw record produced by a source adapter. The same physical
// article may appear several times across sources or listing pages.
type Article struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags,omitempty"`
	Content string   `json:"content,omitempty"`
	Source  string   `json:"source"`
}

// TagLine joins the tags the way they are rendered in a sheet row.
func (a Article) TagLine() string {
	return strings.Join(a.Tags, ", ")
}

// ID returns the deep-link identifier of the article.
func (a Article) ID() string {
	return ArticleID(a.Title, a.Date, a.Source)
}

// Score bounds.
const (
	MinScore     = 1
	MaxScore     = 5
	DefaultScore = 3
)

// ClampScore forces a score into [MinScore, MaxScore].
func ClampScore(score int) int {
	switch {
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}

// ScoredCandidate is an article paired with its summary and importance score.
type ScoredCandidate struct {
	Article Article `json:"article"`
	Summary string  `json:"summary"`
	Score   int     `json:"score"`
}

// Row is one persisted article inside a category sheet. Index is the
// physical 1-based row number; the header occupies row 1.
type Row struct {
	Sheet      string   `json:"sheet"`
	Index      int      `json:"row"`
	No         string   `json:"no"`
	Source     string   `json:"source"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Tags       string   `json:"tags"`
	Stars      string   `json:"stars"`
	Score      int      `json:"score"`
	Summary    string   `json:"summary"`
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

// ID returns the deep-link identifier of the row.
func (r Row) ID() string {
	return ArticleID(r.Title, r.Date, r.Source)
}

// CommitEvent is emitted for every article committed to the store.
type CommitEvent struct {
	RunID       string    `json:"run_id"`
	ArticleID   string    `json:"article_id"`
	Sheet       string    `json:"sheet"`
	Row         int       `json:"row"`
	Score       int       `json:"score"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	CommittedAt time.Time `json:"committed_at"`
}

// Attributes are the message attributes subscribers can filter on.
func (e CommitEvent) Attributes() map[string]string {
	return map[string]string{
		"run_id":     e.RunID,
		"article_id": e.ArticleID,
		"sheet":      e.Sheet,
		"source":     e.Source,
	}
}
