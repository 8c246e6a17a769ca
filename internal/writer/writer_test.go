package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/newsdesk/internal/classify"
	"github.com/JakeFAU/newsdesk/internal/clock/system"
	"github.com/JakeFAU/newsdesk/internal/layout"
	"github.com/JakeFAU/newsdesk/internal/news"
	pubmemory "github.com/JakeFAU/newsdesk/internal/publisher/memory"
	"github.com/JakeFAU/newsdesk/internal/retry"
	"github.com/JakeFAU/newsdesk/internal/sheets/memory"
)

type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

var errQuota = &googleapi.Error{Code: 429, Message: "Quota exceeded"}

func newWriter(t *testing.T, store *memory.Store, opts Options) (*Writer, *fakeSleeper) {
	t.Helper()
	sleeper := &fakeSleeper{}
	w := New(store, classify.Default(), retry.New(retry.DefaultConfig(), sleeper, nil), nil, opts)
	require.NoError(t, w.Prepare(context.Background()))
	return w, sleeper
}

func candidate(title, url string, score int) news.ScoredCandidate {
	return news.ScoredCandidate{
		Article: news.Article{
			URL:    url,
			Title:  title,
			Date:   "2025/01/15",
			Tags:   []string{"AI", "業務"},
			Source: "PR TIMES",
		},
		Summary: "要約",
		Score:   score,
	}
}

func TestPrepareCreatesSheetsAndDropsDefault(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.MarkCreated()
	store.Seed("Sheet1", 1000)
	_, _ = newWriter(t, store, Options{})

	infos, err := store.Sheets(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
		assert.Equal(t, layout.InitialRows, info.RowCount)
		assert.Equal(t, layout.NumColumns, info.ColCount)
	}
	assert.Equal(t, classify.Default().Names(), names)

	rows, err := store.ReadAll(context.Background(), "その他")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, layout.Header(), rows[0])
	formats := store.Formats("その他")
	require.Len(t, formats, 1)
	assert.Equal(t, 1, formats[0].FrozenRows)
}

func TestPrepareKeepsNonEmptyDefaultSheet(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.MarkCreated()
	store.Seed("Sheet1", 10, []string{"notes"})
	_, _ = newWriter(t, store, Options{})

	_, err := store.ReadAll(context.Background(), "Sheet1")
	assert.NoError(t, err)
}

func TestPrepareKeepsDefaultSheetOfExistingDocument(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.Seed("Sheet1", 1000)
	_, _ = newWriter(t, store, Options{})

	rows, err := store.ReadAll(context.Background(), "Sheet1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, store.Calls(memory.OpDeleteSheet))
}

func TestCommitAppendsRowWithLink(t *testing.T) {
	t.Parallel()

	store := memory.New()
	pub := pubmemory.New()
	clock := system.NewFixed(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	w, _ := newWriter(t, store, Options{Publisher: pub, Topic: "commits", Clock: clock, RunID: "run-1"})

	c := candidate("業務効率化でAI導入", "https://prtimes.jp/a", 4)
	out, err := w.Commit(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, out.Committed())

	rows, err := store.ReadAll(context.Background(), "企業効率化")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Equal(t, "1", row[layout.ColNo])
	assert.Equal(t, "⭐⭐⭐⭐☆", row[layout.ColScore])
	assert.Equal(t, "AI, 業務", row[layout.ColTags])
	assert.Equal(t, "https://prtimes.jp/a", row[layout.ColURL])
	assert.Equal(t, "企業効率化, AI・テクノロジー", row[layout.ColCategories])

	link, ok := store.Link("企業効率化", 2, layout.ColLink+1)
	require.True(t, ok)
	assert.Equal(t, "https://prtimes.jp/a", link)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	event, ok := msgs[0].Payload.(news.CommitEvent)
	require.True(t, ok)
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, c.Article.ID(), event.ArticleID)
	assert.Equal(t, 2, event.Row)
	assert.Equal(t, clock.Now(), event.CommittedAt)
}

func TestCommitDuplicateGuard(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w, _ := newWriter(t, store, Options{})

	out, err := w.Commit(context.Background(), candidate("業務効率化", "https://x.com/a/", 3))
	require.NoError(t, err)
	require.True(t, out.Committed())

	out, err = w.Commit(context.Background(), candidate("別タイトル", "https://x.com/a?utm_source=rss", 5))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)
	assert.Equal(t, 1, store.Calls(memory.OpUpdateRow)-len(classify.Default().Names()))
}

func TestCommitRetriesRateLimitsThenWritesOnce(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w, sleeper := newWriter(t, store, Options{})
	before := store.Calls(memory.OpUpdateRow)
	store.Fail(memory.OpUpdateRow, errQuota, errQuota, errQuota)

	out, err := w.Commit(context.Background(), candidate("業務効率化の新手法", "https://x.com/b", 3))
	require.NoError(t, err)
	assert.True(t, out.Committed())
	assert.Equal(t, 4, store.Calls(memory.OpUpdateRow)-before)
	assert.Contains(t, sleeper.waits, 60*time.Second)

	rows, err := store.ReadAll(context.Background(), "企業効率化")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "exactly one data row")
}

func TestCommitAbandonsPersistentRateLimit(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w, _ := newWriter(t, store, Options{})
	store.Fail(memory.OpUpdateRow, errQuota, errQuota, errQuota, errQuota)

	c := candidate("業務効率化の新手法", "https://x.com/c", 3)
	out, err := w.Commit(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAbandoned, out)
	assert.False(t, w.Index().IsDuplicate(c.Article.URL, c.Article.Title), "abandoned rows are not indexed")

	out, err = w.Commit(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, out)
	rows, err := store.ReadAll(context.Background(), "企業効率化")
	require.NoError(t, err)
	assert.Equal(t, "1", rows[1][layout.ColNo])
}

func TestCommitPropagatesOtherErrors(t *testing.T) {
	t.Parallel()

	store := memory.New()
	w, _ := newWriter(t, store, Options{})
	boom := errors.New("invalid credentials")
	store.Fail(memory.OpUpdateRow, boom)

	_, err := w.Commit(context.Background(), candidate("業務効率化", "https://x.com/d", 3))
	require.ErrorIs(t, err, boom)
}

func TestCommitGrowsFullSheet(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.Seed("その他", 3,
		layout.Header(),
		[]string{"1", "S", "one"},
		[]string{"2", "S", "two"},
	)
	w, _ := newWriter(t, store, Options{})

	c := candidate("無関係な話題", "https://x.com/e", 2)
	c.Article.Tags = nil
	out, err := w.Commit(context.Background(), c)
	require.NoError(t, err)
	require.True(t, out.Committed())

	infos, err := store.Sheets(context.Background())
	require.NoError(t, err)
	for _, info := range infos {
		if info.Name == "その他" {
			assert.Equal(t, 3+(4-3+layout.GrowthSlack), info.RowCount)
		}
	}
	rows, err := store.ReadAll(context.Background(), "その他")
	require.NoError(t, err)
	assert.Equal(t, "無関係な話題", rows[3][layout.ColTitle])
}

func TestCommitBeforePrepare(t *testing.T) {
	t.Parallel()

	w := New(memory.New(), classify.Default(), retry.New(retry.DefaultConfig(), nil, nil), nil, Options{})
	_, err := w.Commit(context.Background(), candidate("x", "https://x.com", 3))
	require.ErrorIs(t, err, ErrNotPrepared)
}

func TestNextRow(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, nextRow(nil))
	assert.Equal(t, 2, nextRow([][]string{layout.Header()}))
	assert.Equal(t, 3, nextRow([][]string{layout.Header(), {"1"}, {"", "orphan"}}))
}
