package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdesk/internal/news"
)

func article(source, title, date string) news.Article {
	return news.Article{Source: source, Title: title, Date: date, URL: "https://example.com/" + title}
}

func titles(articles []news.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Title
	}
	return out
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(0, "PR TIMES", 0)
	require.Error(t, err)
	_, err = New(3, "PR TIMES", 4)
	require.Error(t, err)
	s, err := New(10, "PR TIMES", 4)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestAdmitQuotaKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	var in []news.Article
	for i := 1; i <= 6; i++ {
		// Later arrivals carry newer dates; arrival order must still win.
		in = append(in, article("PR TIMES", fmt.Sprintf("p%d", i), fmt.Sprintf("2025/01/%02d", i)))
	}
	in = append(in, article("AINOW", "a1", "2025/01/01"))

	out := Default().Admit(in)
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "a1"}, titles(out))
}

func TestAdmitOrdersOthersByDate(t *testing.T) {
	t.Parallel()

	in := []news.Article{
		article("AINOW", "old", "2024/12/01"),
		article("Ledge.ai", "undated", "不明"),
		article("AINOW", "new", "2025年1月20日"),
		article("Ledge.ai", "mid", "2025-01-10"),
		article("AINOW", "mid-twin", "2025/01/10"),
	}
	out := Selector{MaxPerRun: 10, QuotaSource: "PR TIMES", QuotaLimit: 4}.Admit(in)
	assert.Equal(t, []string{"new", "mid", "mid-twin", "old", "undated"}, titles(out))
}

func TestAdmitCutsOthersToRemainingSlots(t *testing.T) {
	t.Parallel()

	var in []news.Article
	for i := 1; i <= 9; i++ {
		in = append(in, article("AINOW", fmt.Sprintf("a%d", i), fmt.Sprintf("2025/02/%02d", i)))
	}
	in = append(in, article("PR TIMES", "p1", "2020/01/01"))

	out := Default().Admit(in)
	require.Len(t, out, 7)
	assert.Equal(t, "p1", out[0].Title)
	assert.Equal(t, []string{"a9", "a8", "a7", "a6", "a5", "a4"}, titles(out[1:]))
}

func TestAdmitFewerThanQuota(t *testing.T) {
	t.Parallel()

	in := []news.Article{article("PR TIMES", "p1", ""), article("AINOW", "a1", "")}
	assert.Len(t, Default().Admit(in), 2)
	assert.Empty(t, Default().Admit(nil))
}

func scored(source, title string, score int) news.ScoredCandidate {
	return news.ScoredCandidate{Article: article(source, title, ""), Score: score}
}

func TestRankStableByScoreWithQuota(t *testing.T) {
	t.Parallel()

	in := []news.ScoredCandidate{
		scored("AINOW", "a-3", 3),
		scored("PR TIMES", "p-5a", 5),
		scored("PR TIMES", "p-5b", 5),
		scored("Ledge.ai", "l-5", 5),
		scored("PR TIMES", "p-4", 4),
		scored("PR TIMES", "p-3", 3),
		scored("AINOW", "a-3b", 3),
	}
	s := Selector{MaxPerRun: 5, QuotaSource: "PR TIMES", QuotaLimit: 2}
	out := s.Rank(in)

	got := make([]string, len(out))
	for i, c := range out {
		got[i] = c.Article.Title
	}
	assert.Equal(t, []string{"p-5a", "p-5b", "l-5", "a-3", "a-3b"}, got)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []news.ScoredCandidate{scored("A", "low", 1), scored("A", "high", 5)}
	_ = Default().Rank(in)
	assert.Equal(t, "low", in[0].Article.Title)
}

func TestRankCapsOtherSources(t *testing.T) {
	t.Parallel()

	in := make([]news.ScoredCandidate, 0, 12)
	for i := range 10 {
		in = append(in, scored("AINOW", fmt.Sprintf("a-%d", i), 5))
	}
	out := Default().Rank(in)
	require.Len(t, out, DefaultMaxPerRun-DefaultQuotaLimit)
	assert.Equal(t, "a-5", out[len(out)-1].Article.Title)

	in = append(in, scored("PR TIMES", "p-1", 1), scored("PR TIMES", "p-2", 1))
	out = Default().Rank(in)
	require.Len(t, out, 8)
	assert.Equal(t, "p-2", out[len(out)-1].Article.Title)
}
