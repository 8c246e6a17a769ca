// Package scorer asks a language model for a short summary and a 1-5
// importance score of each article. Scoring never fails: model errors and
// unusable replies degrade to the lowest score.
package scorer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/metrics"
	"github.com/JakeFAU/newsdesk/internal/news"
)

// Summaries used without a model reply.
const (
	EmptyContentSummary = "記事本文が取得できませんでした。"
	errorSummaryPrefix  = "要約エラー: "
)

// MaxContentChars bounds the article text sent to the model.
const MaxContentChars = 3000

const (
	summaryMarker = "【要約】"
	scoreMarker   = "【スコア】"
	limiterKey    = "scorer"
)

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Waiter paces calls to the model.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Scorer implements news.Scorer on top of a Generator.
type Scorer struct {
	gen    Generator
	pacer  Waiter
	logger *zap.Logger
}

// New builds a Scorer. pacer may be nil.
func New(gen Generator, pacer Waiter, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{gen: gen, pacer: pacer, logger: logger.Named("scorer")}
}

// Score summarizes and rates a.
func (s *Scorer) Score(ctx context.Context, a news.Article) news.ScoredCandidate {
	if strings.TrimSpace(a.Content) == "" {
		return news.ScoredCandidate{Article: a, Summary: EmptyContentSummary, Score: news.MinScore}
	}
	if s.pacer != nil {
		if err := s.pacer.Wait(ctx, limiterKey); err != nil {
			return s.degraded(a, err)
		}
	}

	start := time.Now()
	reply, err := s.gen.Generate(ctx, SystemPrompt, Prompt(a))
	if err != nil {
		metrics.ObserveScoring("error", time.Since(start))
		return s.degraded(a, err)
	}
	metrics.ObserveScoring("ok", time.Since(start))

	summary, score := Parse(reply)
	s.logger.Debug("article scored", zap.String("title", a.Title), zap.Int("score", score))
	return news.ScoredCandidate{Article: a, Summary: summary, Score: score}
}

func (s *Scorer) degraded(a news.Article, err error) news.ScoredCandidate {
	s.logger.Warn("scoring failed", zap.String("title", truncate(a.Title, 50)), zap.Error(err))
	return news.ScoredCandidate{
		Article: a,
		Summary: errorSummaryPrefix + err.Error(),
		Score:   news.MinScore,
	}
}

// SystemPrompt sets the model's role.
const SystemPrompt = "あなたはAI・テクノロジー分野に精通したビジネスアナリストです。" +
	"ニュース記事を的確に要約し、ビジネスパーソンにとっての重要度を評価します。"

// Prompt renders the scoring request for a.
func Prompt(a news.Article) string {
	return fmt.Sprintf(`以下のAIニュース記事を分析してください。

【タイトル】
%s

【本文】
%s

---
以下の2つを出力してください：

## 1. 要約（150〜200文字）
- 何が発表/発生したのか（Who/What）
- ビジネスへの影響や意義
- 今後の展望（あれば）

## 2. 重要度スコア（1〜5の整数）
以下の基準で評価：
- 5: 業界全体に影響する重大ニュース（大手企業の大規模導入、画期的な技術発表など）
- 4: 注目すべき重要ニュース（具体的な成果・数値あり、国内大手企業の事例）
- 3: 参考になるニュース（一般的な導入事例、技術解説）
- 2: 軽い情報（イベント告知、小規模な取り組み）
- 1: 重要度低い（プレスリリースのみ、内容薄い）

---
以下の形式で出力してください：
%s
（要約文）

%s
（1〜5の数字のみ）`, a.Title, truncate(a.Content, MaxContentChars), summaryMarker, scoreMarker)
}

// Parse extracts the summary and score from a model reply. Without the
// summary marker the whole reply is the summary. The score is the first
// digit after the score marker, defaulting to news.DefaultScore, and is
// clamped to the valid range.
func Parse(reply string) (string, int) {
	reply = strings.TrimSpace(reply)
	score := news.DefaultScore
	if !strings.Contains(reply, summaryMarker) {
		return reply, score
	}
	summaryPart, scorePart, found := strings.Cut(reply, scoreMarker)
	summary := strings.TrimSpace(strings.ReplaceAll(summaryPart, summaryMarker, ""))
	if found {
		for _, r := range scorePart {
			if unicode.IsDigit(r) {
				score = digitValue(r)
				break
			}
		}
	}
	return summary, news.ClampScore(score)
}

// digitValue maps ASCII and full-width digits to their value.
func digitValue(r rune) int {
	if r >= '０' && r <= '９' {
		return int(r - '０')
	}
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	return news.DefaultScore
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
