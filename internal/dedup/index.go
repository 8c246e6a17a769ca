// Package dedup tracks the articles already committed to the store so a run
// never writes the same article twice.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/layout"
	"github.com/JakeFAU/newsdesk/internal/normalize"
	"github.com/JakeFAU/newsdesk/internal/sheets"
)

// Index answers "has this article been committed?". Two articles are the
// same when their URLs or their titles match, raw or normalized; any single
// match is enough. Raw sets catch legacy rows written before normalization.
type Index struct {
	mu        sync.RWMutex
	urls      map[string]struct{}
	titles    map[string]struct{}
	normURLs  map[string]string
	normTitle map[string]string
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		urls:      make(map[string]struct{}),
		titles:    make(map[string]struct{}),
		normURLs:  make(map[string]string),
		normTitle: make(map[string]string),
	}
}

// Add records a committed article.
func (x *Index) Add(url, title string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if url != "" {
		x.urls[url] = struct{}{}
		if n := normalize.URL(url); n != "" {
			x.normURLs[n] = url
		}
	}
	if title != "" {
		x.titles[title] = struct{}{}
		if n := normalize.Title(title); n != "" {
			x.normTitle[n] = title
		}
	}
}

// IsDuplicate reports whether url or title matches a recorded article.
func (x *Index) IsDuplicate(url, title string) bool {
	_, ok := x.Match(url, title)
	return ok
}

// Match is IsDuplicate that also returns the recorded value that matched.
func (x *Index) Match(url, title string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if n := normalize.URL(url); n != "" {
		if orig, ok := x.normURLs[n]; ok {
			return orig, true
		}
	}
	if url != "" {
		if _, ok := x.urls[url]; ok {
			return url, true
		}
	}
	if n := normalize.Title(title); n != "" {
		if orig, ok := x.normTitle[n]; ok {
			return orig, true
		}
	}
	if title != "" {
		if _, ok := x.titles[title]; ok {
			return title, true
		}
	}
	return "", false
}

// Len returns the number of distinct raw titles and URLs recorded.
func (x *Index) Len() (urls, titles int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.urls), len(x.titles)
}

// Load builds an Index from every data row of every sheet. It also returns
// the rows read per sheet so callers can reuse them without reading again.
func Load(ctx context.Context, store sheets.Reader, logger *zap.Logger) (*Index, map[string][][]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	infos, err := store.Sheets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list sheets: %w", err)
	}
	x := New()
	snapshot := make(map[string][][]string, len(infos))
	total := 0
	for _, info := range infos {
		rows, err := store.ReadAll(ctx, info.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet %q: %w", info.Name, err)
		}
		snapshot[info.Name] = rows
		for i, row := range rows {
			if i == 0 || len(row) <= layout.ColTitle {
				continue
			}
			x.Add(layout.RowURL(row), layout.Cell(row, layout.ColTitle))
			total++
		}
	}
	urls, titles := x.Len()
	logger.Info("dedup index loaded",
		zap.Int("sheets", len(infos)),
		zap.Int("rows", total),
		zap.Int("urls", urls),
		zap.Int("titles", titles),
	)
	return x, snapshot, nil
}
