package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/newsdesk/internal/report"
)

// RunStore is an in-memory run ledger.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]report.Report
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]report.Report)}
}

// RecordRun stores a copy of r, replacing any earlier record of the run.
func (s *RunStore) RecordRun(_ context.Context, r *report.Report) error {
	if r == nil || r.RunID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.RunID] = clone(*r)
	return nil
}

// Run returns one recorded run.
func (s *RunStore) Run(_ context.Context, runID string) (report.Report, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[runID]
	if !ok {
		return report.Report{}, false, nil
	}
	return clone(r), true, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *RunStore) RecentRuns(_ context.Context, limit int) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Report, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(r report.Report) report.Report {
	r.Sources = append([]report.SourceCount(nil), r.Sources...)
	scores := make(map[int]int, len(r.Scores))
	for k, v := range r.Scores {
		scores[k] = v
	}
	r.Scores = scores
	if r.Sweep != nil {
		sweep := *r.Sweep
		r.Sweep = &sweep
	}
	return r
}
