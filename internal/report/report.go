// Package report summarizes one pipeline run and archives the summary.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/newsdesk/internal/news"
	"github.com/JakeFAU/newsdesk/internal/retention"
	"github.com/JakeFAU/newsdesk/internal/storage"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// SourceCount holds per-source totals.
type SourceCount struct {
	Name      string `json:"name"`
	Collected int    `json:"collected"`
	Filtered  int    `json:"filtered"`
	Error     string `json:"error,omitempty"`
}

// Report is the outcome of one run.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DryRun     bool      `json:"dry_run,omitempty"`

	Sources    []SourceCount `json:"sources"`
	Collected  int           `json:"collected"`
	Filtered   int           `json:"filtered"`
	Duplicates int           `json:"duplicates"`
	Admitted   int           `json:"admitted"`
	// Deferred counts candidates cut by the admission quota or the run cap.
	Deferred  int         `json:"deferred"`
	Scores    map[int]int `json:"scores"`
	Committed int         `json:"committed"`
	Abandoned int         `json:"abandoned"`

	Sweep      *retention.Result `json:"sweep,omitempty"`
	ArchiveURI string            `json:"archive_uri,omitempty"`
}

// New starts a report for runID.
func New(runID string, startedAt time.Time) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: startedAt.UTC(),
		Status:    StatusRunning,
		Scores:    make(map[int]int),
	}
}

// Source returns the entry for name, adding it on first use.
func (r *Report) Source(name string) *SourceCount {
	for i := range r.Sources {
		if r.Sources[i].Name == name {
			return &r.Sources[i]
		}
	}
	r.Sources = append(r.Sources, SourceCount{Name: name})
	return &r.Sources[len(r.Sources)-1]
}

// CountCollected tallies collected articles per source.
func (r *Report) CountCollected(articles []news.Article) {
	for _, a := range articles {
		r.Source(a.Source).Collected++
	}
	r.Collected += len(articles)
}

// CountFiltered tallies on-topic articles per source.
func (r *Report) CountFiltered(articles []news.Article) {
	for _, a := range articles {
		r.Source(a.Source).Filtered++
	}
	r.Filtered += len(articles)
}

// AddScore records the score of one scored candidate.
func (r *Report) AddScore(score int) {
	if r.Scores == nil {
		r.Scores = make(map[int]int)
	}
	r.Scores[news.ClampScore(score)]++
}

// Finish stamps the end of the run. A nil err marks it succeeded.
func (r *Report) Finish(at time.Time, err error) {
	r.FinishedAt = at.UTC()
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusSucceeded
}

// Duration is the wall time of a finished run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Path is the archive object path: reports/YYYY/MM/DD/<run-id>.json.
func (r *Report) Path() string {
	return fmt.Sprintf("reports/%s/%s.json", r.StartedAt.UTC().Format("2006/01/02"), r.RunID)
}

// Fields renders the report for structured logging.
func (r *Report) Fields() []zap.Field {
	scores := make([]int, 0, len(r.Scores))
	for s := range r.Scores {
		scores = append(scores, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	dist := make([]string, 0, len(scores))
	for _, s := range scores {
		dist = append(dist, fmt.Sprintf("%d:%d", s, r.Scores[s]))
	}
	fields := []zap.Field{
		zap.String("run_id", r.RunID),
		zap.String("status", r.Status),
		zap.Duration("duration", r.Duration()),
		zap.Int("collected", r.Collected),
		zap.Int("filtered", r.Filtered),
		zap.Int("duplicates", r.Duplicates),
		zap.Int("admitted", r.Admitted),
		zap.Int("deferred", r.Deferred),
		zap.Strings("scores", dist),
		zap.Int("committed", r.Committed),
		zap.Int("abandoned", r.Abandoned),
	}
	if r.Sweep != nil {
		fields = append(fields, zap.Int("swept", r.Sweep.Deleted), zap.Int("sweep_failed", r.Sweep.Failed))
	}
	if r.Error != "" {
		fields = append(fields, zap.String("error", r.Error))
	}
	return fields
}

// Ledger records finished runs.
type Ledger interface {
	RecordRun(ctx context.Context, r *Report) error
}

// Archiver writes reports to blob storage and the run ledger. Either sink
// may be nil.
type Archiver struct {
	blobs  storage.BlobStore
	ledger Ledger
	logger *zap.Logger
}

// NewArchiver builds an Archiver.
func NewArchiver(blobs storage.BlobStore, ledger Ledger, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{blobs: blobs, ledger: ledger, logger: logger.Named("report")}
}

// Archive logs the report, uploads it and records it in the ledger. Sink
// failures are logged and joined into the returned error; every sink is
// attempted.
func (a *Archiver) Archive(ctx context.Context, r *Report) error {
	a.logger.Info("run report", r.Fields()...)

	var errs []error
	if a.blobs != nil {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		uri, err := a.blobs.PutObject(ctx, r.Path(), "application/json", bytes.NewReader(data))
		if err != nil {
			a.logger.Error("report upload failed", zap.String("path", r.Path()), zap.Error(err))
			errs = append(errs, fmt.Errorf("upload report: %w", err))
		} else {
			r.ArchiveURI = uri
			a.logger.Info("report archived", zap.String("uri", uri))
		}
	}
	if a.ledger != nil {
		if err := a.ledger.RecordRun(ctx, r); err != nil {
			a.logger.Error("run ledger insert failed", zap.String("run_id", r.RunID), zap.Error(err))
			errs = append(errs, fmt.Errorf("record run: %w", err))
		}
	}
	return errors.Join(errs...)
}
