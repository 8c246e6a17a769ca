// Package writer commits scored articles to the category sheets of the
// store. It owns the dedup index for the run and keeps a per-sheet cursor
// so appends never re-read the sheet.
package writer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/classify"
	"github.com/JakeFAU/newsdesk/internal/dedup"
	"github.com/JakeFAU/newsdesk/internal/layout"
	"github.com/JakeFAU/newsdesk/internal/metrics"
	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/retry"
	"github.com/JakeFAU/newsdesk/internal/sheets"
)

// DefaultSheetNames are the sheets a freshly created document starts with.
var DefaultSheetNames = []string{"Sheet1", "シート1"}

// ErrNotPrepared is returned by Commit before Prepare succeeded.
var ErrNotPrepared = errors.New("writer not prepared")

// Outcome is the result of one Commit.
type Outcome int

// Commit outcomes.
const (
	OutcomeCommitted Outcome = iota + 1
	OutcomeDuplicate
	OutcomeAbandoned
)

// Committed reports whether the article was written.
func (o Outcome) Committed() bool {
	return o == OutcomeCommitted
}

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Options configures optional collaborators.
type Options struct {
	Publisher news.Publisher
	Topic     string
	Clock     news.Clock
	RunID     string
}

type cursor struct {
	next     int
	capacity int
}

// Writer appends articles to the store.
type Writer struct {
	store      sheets.Store
	classifier *classify.Classifier
	policy     *retry.Policy
	logger     *zap.Logger
	opts       Options

	index   *dedup.Index
	cursors map[string]*cursor
}

// New constructs a Writer. Prepare must be called before Commit.
func New(store sheets.Store, classifier *classify.Classifier, policy *retry.Policy, logger *zap.Logger, opts Options) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:      store,
		classifier: classifier,
		policy:     policy,
		logger:     logger.Named("writer"),
		opts:       opts,
	}
}

// Prepare loads the dedup index and creates any missing category sheet.
// When the store reports a newly created document, its empty default sheet
// is removed as well.
func (w *Writer) Prepare(ctx context.Context) error {
	infos, err := w.store.Sheets(ctx)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	index, snapshot, err := dedup.Load(ctx, w.store, w.logger)
	if err != nil {
		return fmt.Errorf("load dedup index: %w", err)
	}
	w.index = index
	w.cursors = make(map[string]*cursor, len(infos))
	for _, info := range infos {
		w.cursors[info.Name] = &cursor{next: nextRow(snapshot[info.Name]), capacity: info.RowCount}
	}

	for _, name := range w.classifier.Names() {
		if _, err := w.ensureSheet(ctx, name); err != nil {
			return err
		}
	}

	if !createdDocument(w.store) {
		return nil
	}
	for _, name := range DefaultSheetNames {
		info, ok := sheets.Find(infos, name)
		if !ok || len(snapshot[info.Name]) > 0 || len(w.cursors) <= 1 {
			continue
		}
		op := func(ctx context.Context) error { return w.store.DeleteSheet(ctx, name) }
		// Losing the default sheet is cosmetic; failures are only logged.
		if ok, err := w.policy.Do(ctx, "delete_sheet", op); err != nil || !ok {
			w.logger.Warn("default sheet not removed", zap.String("sheet", name), zap.Error(err))
			continue
		}
		delete(w.cursors, name)
		w.logger.Info("removed default sheet", zap.String("sheet", name))
	}
	return nil
}

func createdDocument(store sheets.Store) bool {
	r, ok := store.(sheets.CreationReporter)
	return ok && r.Created()
}

// Index returns the dedup index loaded by Prepare.
func (w *Writer) Index() *dedup.Index {
	return w.index
}

// Commit writes one candidate to the sheet of its main category. A
// duplicate is skipped; a write that is rate limited until the final try,
// and then fails that try, is abandoned. Any other store error is returned.
func (w *Writer) Commit(ctx context.Context, c news.ScoredCandidate) (Outcome, error) {
	if w.index == nil {
		return 0, ErrNotPrepared
	}
	a := c.Article
	if w.index.IsDuplicate(a.URL, a.Title) {
		metrics.ObserveArticles(metrics.StageDuplicate, a.Source, 1)
		return OutcomeDuplicate, nil
	}

	categories := w.classifier.Categorize(a)
	sheet := categories[0]
	cur, err := w.ensureSheet(ctx, sheet)
	if err != nil {
		return 0, err
	}
	if cur == nil {
		return w.abandon(a, sheet, "create_sheet"), nil
	}

	row := cur.next
	if row > cur.capacity {
		if err := w.grow(ctx, sheet, cur, row-cur.capacity+layout.GrowthSlack); err != nil {
			return 0, err
		}
	}

	values := layout.Values(row, c, categories)
	ok, err := w.policy.Do(ctx, "update_row", func(ctx context.Context) error {
		return w.store.UpdateRow(ctx, sheet, row, values)
	})
	if err != nil {
		return 0, fmt.Errorf("write row %d of %q: %w", row, sheet, err)
	}
	if !ok {
		return w.abandon(a, sheet, "update_row"), nil
	}
	cur.next++
	w.index.Add(a.URL, a.Title)

	format := layout.RowFormatting(row, c.Score, a.URL)
	ok, err = w.policy.Do(ctx, "format_row", func(ctx context.Context) error {
		return w.store.Format(ctx, sheet, format)
	})
	if err != nil {
		return OutcomeCommitted, fmt.Errorf("format row %d of %q: %w", row, sheet, err)
	}
	if !ok {
		w.logger.Warn("row written without formatting", zap.String("sheet", sheet), zap.Int("row", row))
	}

	metrics.ObserveArticles(metrics.StageCommitted, a.Source, 1)
	w.logger.Info("article committed",
		zap.String("sheet", sheet),
		zap.Int("row", row),
		zap.Int("score", c.Score),
		zap.String("title", a.Title),
	)
	w.publish(ctx, c, sheet, row)
	return OutcomeCommitted, nil
}

func (w *Writer) abandon(a news.Article, sheet, op string) Outcome {
	metrics.ObserveArticles(metrics.StageAbandoned, a.Source, 1)
	w.logger.Warn("article abandoned after rate limiting",
		zap.String("sheet", sheet),
		zap.String("op", op),
		zap.String("title", a.Title),
	)
	return OutcomeAbandoned
}

// ensureSheet returns the cursor of name, creating and styling the sheet
// when it does not exist. A nil cursor means creation was abandoned.
func (w *Writer) ensureSheet(ctx context.Context, name string) (*cursor, error) {
	if cur, ok := w.cursors[name]; ok {
		return cur, nil
	}
	ok, err := w.policy.Do(ctx, "create_sheet", func(ctx context.Context) error {
		return w.store.CreateSheet(ctx, name, layout.InitialRows, layout.NumColumns)
	})
	if err != nil {
		return nil, fmt.Errorf("create sheet %q: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	// Row 1 is reserved for the header even if writing it is abandoned.
	cur := &cursor{next: 2, capacity: layout.InitialRows}
	w.cursors[name] = cur

	header := layout.Header()
	if _, err := w.policy.Do(ctx, "write_header", func(ctx context.Context) error {
		return w.store.UpdateRow(ctx, name, 1, header)
	}); err != nil {
		return nil, fmt.Errorf("write header of %q: %w", name, err)
	}
	style := layout.HeaderFormatting(name)
	if _, err := w.policy.Do(ctx, "format_header", func(ctx context.Context) error {
		return w.store.Format(ctx, name, style)
	}); err != nil {
		return nil, fmt.Errorf("format header of %q: %w", name, err)
	}
	w.logger.Info("created sheet", zap.String("sheet", name))
	return cur, nil
}

// grow adds n rows to sheet. An abandoned grow is logged and the write is
// attempted anyway.
func (w *Writer) grow(ctx context.Context, sheet string, cur *cursor, n int) error {
	ok, err := w.policy.Do(ctx, "append_rows", func(ctx context.Context) error {
		return w.store.AppendRows(ctx, sheet, n)
	})
	if err != nil {
		return fmt.Errorf("grow %q by %d rows: %w", sheet, n, err)
	}
	if !ok {
		w.logger.Warn("sheet not grown", zap.String("sheet", sheet), zap.Int("rows", n))
		return nil
	}
	w.logger.Info("grew sheet",
		zap.String("sheet", sheet),
		zap.Int("from", cur.capacity),
		zap.Int("to", cur.capacity+n),
	)
	cur.capacity += n
	return nil
}

func (w *Writer) publish(ctx context.Context, c news.ScoredCandidate, sheet string, row int) {
	if w.opts.Publisher == nil {
		return
	}
	event := news.CommitEvent{
		RunID:     w.opts.RunID,
		ArticleID: c.Article.ID(),
		Sheet:     sheet,
		Row:       row,
		Score:     c.Score,
		Title:     c.Article.Title,
		URL:       c.Article.URL,
		Source:    c.Article.Source,
	}
	if w.opts.Clock != nil {
		event.CommittedAt = w.opts.Clock.Now().UTC()
	}
	if _, err := w.opts.Publisher.Publish(ctx, w.opts.Topic, event); err != nil {
		w.logger.Warn("commit event not published", zap.String("article_id", event.ArticleID), zap.Error(err))
	}
}

// nextRow is one past the last row with a value in column A.
func nextRow(rows [][]string) int {
	last := 0
	for i, row := range rows {
		if layout.Cell(row, layout.ColNo) != "" {
			last = i + 1
		}
	}
	return last + 1
}
