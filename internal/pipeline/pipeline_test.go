package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/newsdesk/internal/classify"
	"github.com/JakeFAU/newsdesk/internal/clock/system"
	"github.com/JakeFAU/newsdesk/internal/id/uuid"
	"github.com/JakeFAU/newsdesk/internal/layout"
	"github.com/JakeFAU/newsdesk/internal/news"
	pubmemory "github.com/JakeFAU/newsdesk/internal/publisher/memory"
	"github.com/JakeFAU/newsdesk/internal/report"
	"github.com/JakeFAU/newsdesk/internal/retention"
	"github.com/JakeFAU/newsdesk/internal/retry"
	"github.com/JakeFAU/newsdesk/internal/scorer"
	"github.com/JakeFAU/newsdesk/internal/selection"
	"github.com/JakeFAU/newsdesk/internal/sheets/memory"
	storememory "github.com/JakeFAU/newsdesk/internal/storage/memory"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)

const aiSheet = "AI・テクノロジー"

type fakeSource struct {
	name     string
	articles []news.Article
	err      error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Scrape(context.Context, int, int) ([]news.Article, error) {
	return f.articles, f.err
}

func article(source string, n int) news.Article {
	return news.Article{
		URL:     fmt.Sprintf("https://%s.example.com/articles/%d", source, n),
		Title:   fmt.Sprintf("%s 生成AIの新機能 %d", source, n),
		Date:    now.AddDate(0, 0, -n).Format("2006/01/02"),
		Content: "生成AIを使った新しいサービスが発表された。",
		Source:  source,
	}
}

func articles(source string, n int) []news.Article {
	out := make([]news.Article, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, article(source, i))
	}
	return out
}

type harness struct {
	store     *memory.Store
	runs      *storememory.RunStore
	blobs     *storememory.BlobStore
	publisher *pubmemory.Publisher
	pipeline  *Pipeline
}

func newHarness(t *testing.T, sources ...news.Source) *harness {
	t.Helper()
	h := &harness{
		store:     memory.New(),
		runs:      storememory.NewRunStore(),
		blobs:     storememory.NewBlobStore(),
		publisher: pubmemory.New(),
	}
	noSleep := retry.SleeperFunc(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	p, err := New(Deps{
		Sources:    sources,
		Classifier: classify.Default(),
		Selector:   selection.Default(),
		Scorer:     scorer.Static{Fixed: 3},
		Store:      h.store,
		Policy:     retry.New(retry.DefaultConfig(), noSleep, nil),
		Archiver:   report.NewArchiver(h.blobs, h.runs, nil),
		Publisher:  h.publisher,
		Clock:      system.NewFixed(now),
		IDs:        uuid.New(),
	}, Config{Topic: "articles"})
	require.NoError(t, err)
	h.pipeline = p
	return h
}

func (h *harness) rows(t *testing.T, sheet string) [][]string {
	t.Helper()
	rows, err := h.store.ReadAll(context.Background(), sheet)
	require.NoError(t, err)
	return rows
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Config{})
	require.Error(t, err)
}

func TestRunCommitsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	offTopic := news.Article{URL: "https://AINOW.example.com/sports", Title: "野球の結果", Date: "2025/02/28", Source: "AINOW"}
	h := newHarness(t,
		&fakeSource{name: "PR TIMES", articles: articles("PR TIMES", 4)},
		&fakeSource{name: "AINOW", articles: append(articles("AINOW", 3), offTopic)},
	)

	rep, err := h.pipeline.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, report.StatusSucceeded, rep.Status)
	assert.Equal(t, 8, rep.Collected)
	assert.Equal(t, 7, rep.Filtered)
	assert.Equal(t, 0, rep.Duplicates)
	assert.Equal(t, 7, rep.Admitted)
	assert.Equal(t, 7, rep.Committed)
	assert.Equal(t, map[int]int{3: 7}, rep.Scores)
	require.NotNil(t, rep.Sweep)

	rows := h.rows(t, aiSheet)
	require.Len(t, rows, 8)
	assert.Equal(t, layout.Header(), rows[0])
	assert.Len(t, h.publisher.Events(), 7)
	for _, e := range h.publisher.Events() {
		assert.Equal(t, rep.RunID, e.RunID)
	}

	stored, ok, err := h.runs.Run(context.Background(), rep.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, stored.Committed)
	assert.Equal(t, []string{rep.Path()}, h.blobs.Paths())
	assert.Equal(t, "memory://"+rep.Path(), rep.ArchiveURI)

	again, err := h.pipeline.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 7, again.Duplicates)
	assert.Equal(t, 0, again.Committed)
	assert.Len(t, h.rows(t, aiSheet), 8)
	assert.NotEqual(t, rep.RunID, again.RunID)
}

func TestRunAppliesQuota(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		&fakeSource{name: "PR TIMES", articles: articles("PR TIMES", 8)},
		&fakeSource{name: "AINOW", articles: articles("AINOW", 8)},
	)

	rep, err := h.pipeline.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Admitted)
	assert.Equal(t, 6, rep.Deferred)
	assert.Equal(t, 10, rep.Committed)

	quota := 0
	for _, row := range h.rows(t, aiSheet)[1:] {
		if layout.Cell(row, layout.ColSource) == "PR TIMES" {
			quota++
		}
	}
	assert.Equal(t, 4, quota)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		&fakeSource{name: "Ledge.ai", err: errors.New("connection refused")},
		&fakeSource{name: "AINOW", articles: articles("AINOW", 2)},
	)

	rep, err := h.pipeline.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Committed)
	assert.Contains(t, rep.Source("Ledge.ai").Error, "connection refused")
	assert.Empty(t, rep.Source("AINOW").Error)
}

func TestRunAbortsOnStoreError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeSource{name: "AINOW", articles: articles("AINOW", 3)})
	for _, name := range classify.Default().Names() {
		h.store.Seed(name, 100, layout.Header())
	}
	h.store.Fail(memory.OpUpdateRow, errors.New("permission denied"))

	rep, err := h.pipeline.Run(context.Background(), Options{SkipSweep: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Equal(t, 0, rep.Committed)
	assert.Nil(t, rep.Sweep)

	stored, ok, err := h.runs.Run(context.Background(), rep.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, report.StatusFailed, stored.Status)
}

func TestRunDryRunLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeSource{name: "AINOW", articles: articles("AINOW", 3)})

	rep, err := h.pipeline.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 3, rep.Admitted)
	assert.Equal(t, 0, rep.Committed)
	assert.Equal(t, map[int]int{3: 3}, rep.Scores)
	assert.Nil(t, rep.Sweep)
	assert.Zero(t, h.store.Calls(memory.OpCreateSheet))
	assert.Zero(t, h.store.Calls(memory.OpUpdateRow))
	assert.Zero(t, h.store.Calls(memory.OpDeleteRow))
	assert.Empty(t, h.publisher.Events())
}

func TestRunSweepsBeforeCommitting(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeSource{name: "AINOW", articles: articles("AINOW", 1)})
	old := now.AddDate(0, 0, -(retention.DefaultRetentionDays + 10)).Format("2006/01/02")
	h.store.Seed(classify.FallbackCategory, 100,
		layout.Header(),
		[]string{"1", "AINOW", "古い記事", old, "", "⭐⭐☆☆☆", "要約", "", "https://old.example.com/1", "その他"},
	)

	rep, err := h.pipeline.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, rep.Sweep)
	assert.Equal(t, 1, rep.Sweep.Deleted)
	assert.Len(t, h.rows(t, classify.FallbackCategory), 1)
	assert.Equal(t, 1, rep.Committed)
}

func TestRunStopsWhenCanceled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeSource{name: "AINOW", articles: articles("AINOW", 2)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := h.pipeline.Run(ctx, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, report.StatusFailed, rep.Status)
	_, ok, lookupErr := h.runs.Run(context.Background(), rep.RunID)
	require.NoError(t, lookupErr)
	assert.True(t, ok)
}
