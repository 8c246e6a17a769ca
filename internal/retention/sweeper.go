// Package retention deletes rows from the category sheets: articles past the
// retention window, rows without a date and in-sheet duplicates. Rows are
// always deleted bottom-up so pending row numbers stay valid.
package retention

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/dateparse"
	"github.com/JakeFAU/newsdesk/internal/layout"
	"github.com/JakeFAU/newsdesk/internal/metrics"
	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/normalize"
	"github.com/JakeFAU/newsdesk/internal/retry"
	"github.com/JakeFAU/newsdesk/internal/sheets"
)

// DefaultRetentionDays is the age after which articles are swept.
const DefaultRetentionDays = 45

// Result counts what a sweep did. Preserved is only used by Sweep.
type Result struct {
	Deleted   int `json:"deleted"`
	Preserved int `json:"preserved"`
	Failed    int `json:"failed"`
}

func (r *Result) add(o Result) {
	r.Deleted += o.Deleted
	r.Preserved += o.Preserved
	r.Failed += o.Failed
}

// Sweeper deletes rows through the store retry policy.
type Sweeper struct {
	store  sheets.Store
	policy *retry.Policy
	clock  news.Clock
	logger *zap.Logger
}

// New constructs a Sweeper.
func New(store sheets.Store, policy *retry.Policy, clock news.Clock, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, policy: policy, clock: clock, logger: logger.Named("retention")}
}

// selector picks the rows of one sheet to delete. Row numbers are physical
// and 1-based; rows[0] is the header.
type selector func(sheet string, rows [][]string) (victims []int, preserved int)

// Sweep deletes articles older than days. Rows rated five stars and rows
// whose date cannot be parsed are kept.
func (s *Sweeper) Sweep(ctx context.Context, days int) (Result, error) {
	if days <= 0 {
		return Result{}, fmt.Errorf("retention days must be > 0, got %d", days)
	}
	cutoff := s.clock.Now().AddDate(0, 0, -days)
	s.logger.Info("retention sweep started", zap.Int("days", days), zap.Time("cutoff", cutoff))
	return s.run(ctx, "retention", func(_ string, rows [][]string) ([]int, int) {
		return expired(rows, cutoff)
	})
}

func expired(rows [][]string, cutoff time.Time) (victims []int, preserved int) {
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= layout.ColDate {
			continue
		}
		date, title := layout.Cell(row, layout.ColDate), layout.Cell(row, layout.ColTitle)
		if date == "" || title == "" {
			continue
		}
		if layout.Permanent(layout.Cell(row, layout.ColScore)) {
			preserved++
			continue
		}
		day, ok := dateparse.Day(date)
		if !ok {
			continue
		}
		if day.Before(cutoff) {
			victims = append(victims, i+1)
		}
	}
	return victims, preserved
}

// PurgeUndated deletes data rows whose date cell is blank.
func (s *Sweeper) PurgeUndated(ctx context.Context) (Result, error) {
	return s.run(ctx, "undated", func(_ string, rows [][]string) ([]int, int) {
		var victims []int
		for i := 1; i < len(rows); i++ {
			row := rows[i]
			if len(row) <= layout.ColDate {
				continue
			}
			if strings.TrimSpace(layout.Cell(row, layout.ColDate)) == "" {
				victims = append(victims, i+1)
			}
		}
		return victims, 0
	})
}

// RemoveDuplicates deletes every row whose normalized URL or title already
// appeared higher up in the same sheet. The first occurrence survives.
func (s *Sweeper) RemoveDuplicates(ctx context.Context) (Result, error) {
	return s.run(ctx, "duplicates", func(_ string, rows [][]string) ([]int, int) {
		seenURLs := make(map[string]struct{})
		seenTitles := make(map[string]struct{})
		var victims []int
		for i := 1; i < len(rows); i++ {
			row := rows[i]
			if len(row) <= layout.ColSummary {
				continue
			}
			u := normalize.URL(layout.RowURL(row))
			t := normalize.Title(layout.Cell(row, layout.ColTitle))
			if _, dup := seenURLs[u]; u != "" && dup {
				victims = append(victims, i+1)
				continue
			}
			if _, dup := seenTitles[t]; t != "" && dup {
				victims = append(victims, i+1)
				continue
			}
			if u != "" {
				seenURLs[u] = struct{}{}
			}
			if t != "" {
				seenTitles[t] = struct{}{}
			}
		}
		return victims, 0
	})
}

func (s *Sweeper) run(ctx context.Context, sweep string, pick selector) (Result, error) {
	infos, err := s.store.Sheets(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list sheets: %w", err)
	}
	var total Result
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("%s sweep: %w", sweep, err)
		}
		rows, err := s.store.ReadAll(ctx, info.Name)
		if err != nil {
			s.logger.Error("sheet skipped", zap.String("sweep", sweep), zap.String("sheet", info.Name), zap.Error(err))
			continue
		}
		if len(rows) <= 1 {
			continue
		}
		victims, preserved := pick(info.Name, rows)
		res, err := s.deleteRows(ctx, sweep, info.Name, victims)
		res.Preserved = preserved
		total.add(res)
		if err != nil {
			return total, err
		}
	}

	metrics.ObserveSweep(sweep, "deleted", total.Deleted)
	metrics.ObserveSweep(sweep, "preserved", total.Preserved)
	metrics.ObserveSweep(sweep, "failed", total.Failed)
	s.logger.Info("sweep finished",
		zap.String("sweep", sweep),
		zap.Int("deleted", total.Deleted),
		zap.Int("preserved", total.Preserved),
		zap.Int("failed", total.Failed),
	)
	return total, nil
}

// deleteRows removes rows in descending order. A failed row is logged and
// skipped; only context cancellation stops the loop.
func (s *Sweeper) deleteRows(ctx context.Context, sweep, sheet string, rows []int) (Result, error) {
	var res Result
	slices.SortFunc(rows, func(a, b int) int { return b - a })
	for _, row := range rows {
		ok, err := s.policy.Do(ctx, "delete_row", func(ctx context.Context) error {
			return s.store.DeleteRow(ctx, sheet, row)
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s sweep: %w", sweep, ctxErr)
		}
		if err != nil || !ok {
			res.Failed++
			s.logger.Warn("row not deleted",
				zap.String("sweep", sweep),
				zap.String("sheet", sheet),
				zap.Int("row", row),
				zap.Error(err),
			)
			continue
		}
		res.Deleted++
		s.logger.Debug("row deleted", zap.String("sweep", sweep), zap.String("sheet", sheet), zap.Int("row", row))
	}
	return res, nil
}
