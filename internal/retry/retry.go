// Package retry runs store mutations under the rate-limit policy of the
// tabular store API. Rate-limited calls back off linearly and then get one
// last chance after a long wait; every other error fails fast.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/newsdesk/internal/metrics"
)

// ErrRateLimited marks an error as a rate-limit rejection.
var ErrRateLimited = errors.New("rate limited")

// IsRateLimited reports whether err is a rate-limit rejection from the store.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Quota exceeded")
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
})

// Config tunes a Policy.
type Config struct {
	// Attempts is the number of tries before the final wait.
	Attempts int
	// Step is multiplied by the attempt number to get the wait after a
	// rate-limited try.
	Step time.Duration
	// FinalWait precedes the last try.
	FinalWait time.Duration
	// Pause follows every successful call.
	Pause time.Duration
}

// DefaultConfig waits 3s, 6s, 9s, then 60s, and pauses 200ms after success.
func DefaultConfig() Config {
	return Config{
		Attempts:  3,
		Step:      3 * time.Second,
		FinalWait: 60 * time.Second,
		Pause:     200 * time.Millisecond,
	}
}

// Policy retries rate-limited calls.
type Policy struct {
	cfg     Config
	sleeper Sleeper
	logger  *zap.Logger
}

// New builds a Policy. A non-positive attempt count or a negative duration
// takes its default; a nil sleeper uses TimerSleeper.
func New(cfg Config, sleeper Sleeper, logger *zap.Logger) *Policy {
	def := DefaultConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Step < 0 {
		cfg.Step = def.Step
	}
	if cfg.FinalWait < 0 {
		cfg.FinalWait = def.FinalWait
	}
	if cfg.Pause < 0 {
		cfg.Pause = def.Pause
	}
	if sleeper == nil {
		sleeper = TimerSleeper
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{cfg: cfg, sleeper: sleeper, logger: logger}
}

// ShouldRetry decides whether a failed attempt gets another regular try.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.cfg.Attempts {
		return false
	}
	return IsRateLimited(err)
}

// Backoff returns the wait after the given rate-limited attempt (1-based).
func (p *Policy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.cfg.Step
}

// Do runs fn until it succeeds, fails with a non-rate-limit error, or runs
// out of tries. It returns (true, nil) on success and (false, err) for a
// non-rate-limit failure before the retries run out. A call that fails the
// final try after the long wait, for any reason, is abandoned with
// (false, nil). Context cancellation during a wait returns
// the context error.
func (p *Policy) Do(ctx context.Context, op string, fn func(context.Context) error) (bool, error) {
	var err error
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return true, p.pause(ctx)
		}
		if !IsRateLimited(err) {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		wait := p.Backoff(attempt)
		metrics.ObserveStoreRetry(op)
		p.logger.Warn("store rate limited; backing off",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("attempts", p.cfg.Attempts),
			zap.Duration("wait", wait),
		)
		if serr := p.sleeper.Sleep(ctx, wait); serr != nil {
			return false, serr
		}
	}

	p.logger.Warn("store retries exhausted; final attempt after long wait",
		zap.String("op", op),
		zap.Duration("wait", p.cfg.FinalWait),
	)
	if serr := p.sleeper.Sleep(ctx, p.cfg.FinalWait); serr != nil {
		return false, serr
	}
	if err = fn(ctx); err == nil {
		p.logger.Info("final attempt succeeded", zap.String("op", op))
		return true, p.pause(ctx)
	}
	metrics.ObserveStoreAbandoned(op)
	p.logger.Warn("store call abandoned", zap.String("op", op), zap.Error(err))
	return false, nil
}

func (p *Policy) pause(ctx context.Context) error {
	if p.cfg.Pause <= 0 {
		return nil
	}
	return p.sleeper.Sleep(ctx, p.cfg.Pause)
}
