// Package catalog serves the persisted articles to readers. Rows are read
// from every category sheet and kept for a bounded time.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/newsdesk/internal/dateparse"
	"github.com/JakeFAU/newsdesk/internal/layout"
	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/sheets"
)

// Defaults.
const (
	DefaultTTL         = 60 * time.Second
	DefaultConcurrency = 4
)

// Config tunes the catalog.
type Config struct {
	TTL         time.Duration
	Concurrency int
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Category string
	Source   string
	MinScore int
	Query    string
	Limit    int
}

func (f Filter) match(r news.Row) bool {
	if f.Category != "" && !slices.Contains(r.Categories, f.Category) {
		return false
	}
	if f.Source != "" && r.Source != f.Source {
		return false
	}
	if r.Score < f.MinScore {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

type snapshot struct {
	rows     []news.Row
	byID     map[string]int
	loadedAt time.Time
}

// Catalog memoizes the rows of a sheets.Reader.
type Catalog struct {
	reader sheets.Reader
	clock  news.Clock
	cfg    Config
	logger *zap.Logger

	loadMu sync.Mutex
	mu     sync.RWMutex
	snap   *snapshot
}

// New builds a Catalog.
func New(reader sheets.Reader, clock news.Clock, cfg Config, logger *zap.Logger) *Catalog {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{reader: reader, clock: clock, cfg: cfg, logger: logger.Named("catalog")}
}

// List returns matching rows, newest first then highest score first.
func (c *Catalog) List(ctx context.Context, f Filter) ([]news.Row, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]news.Row, 0, len(snap.rows))
	for _, r := range snap.rows {
		if !f.match(r) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Get returns the row with deep-link id.
func (c *Catalog) Get(ctx context.Context, id string) (news.Row, bool, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return news.Row{}, false, err
	}
	i, ok := snap.byID[id]
	if !ok {
		return news.Row{}, false, nil
	}
	return snap.rows[i], true, nil
}

// Invalidate drops the cached rows; the next read reloads.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

// Refresh reloads immediately and returns the number of rows.
func (c *Catalog) Refresh(ctx context.Context) (int, error) {
	c.Invalidate()
	snap, err := c.current(ctx)
	if err != nil {
		return 0, err
	}
	return len(snap.rows), nil
}

// LoadedAt reports when the cached rows were read, zero when empty.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return time.Time{}
	}
	return c.snap.loadedAt
}

func (c *Catalog) fresh() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap != nil && c.clock.Now().Sub(c.snap.loadedAt) < c.cfg.TTL {
		return c.snap
	}
	return nil
}

func (c *Catalog) current(ctx context.Context) (*snapshot, error) {
	if snap := c.fresh(); snap != nil {
		return snap, nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if snap := c.fresh(); snap != nil {
		return snap, nil
	}
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return snap, nil
}

func (c *Catalog) load(ctx context.Context) (*snapshot, error) {
	infos, err := c.reader.Sheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	perSheet := make([][]news.Row, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, info := range infos {
		g.Go(func() error {
			cells, err := c.reader.ReadAll(gctx, info.Name)
			if err != nil {
				return fmt.Errorf("read sheet %q: %w", info.Name, err)
			}
			for idx, row := range cells {
				if idx == 0 {
					continue
				}
				if r, ok := layout.Parse(info.Name, idx+1, row); ok {
					perSheet[i] = append(perSheet[i], r)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []news.Row
	for _, rs := range perSheet {
		rows = append(rows, rs...)
	}
	slices.SortStableFunc(rows, func(a, b news.Row) int {
		ka, kb := dateparse.SortKey(a.Date).Unix(), dateparse.SortKey(b.Date).Unix()
		if d := cmp.Compare(kb, ka); d != 0 {
			return d
		}
		return cmp.Compare(b.Score, a.Score)
	})

	byID := make(map[string]int, len(rows))
	for i, r := range rows {
		if _, dup := byID[r.ID()]; !dup {
			byID[r.ID()] = i
		}
	}
	snap := &snapshot{rows: rows, byID: byID, loadedAt: c.clock.Now()}
	c.logger.Debug("catalog loaded", zap.Int("sheets", len(infos)), zap.Int("rows", len(rows)))
	return snap, nil
}
