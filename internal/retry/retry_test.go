package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

// recordingSleeper records waits without sleeping.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

// scriptedOp fails with the queued errors, then succeeds.
type scriptedOp struct {
	errs  []error
	calls int
}

func (o *scriptedOp) run(context.Context) error {
	o.calls++
	if len(o.errs) == 0 {
		return nil
	}
	err := o.errs[0]
	o.errs = o.errs[1:]
	return err
}

var errQuota = &googleapi.Error{Code: 429, Message: "Quota exceeded for quota metric 'Write requests'"}

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", fmt.Errorf("update: %w", ErrRateLimited), true},
		{"googleapi 429", errQuota, true},
		{"wrapped googleapi 429", fmt.Errorf("batch: %w", &googleapi.Error{Code: 429}), true},
		{"googleapi 403", &googleapi.Error{Code: 403, Message: "forbidden"}, false},
		{"message 429", errors.New("APIError: [429]: too many"), true},
		{"message quota", errors.New("Quota exceeded for this project"), true},
		{"other", errors.New("invalid range"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsRateLimited(tc.err))
		})
	}
}

func TestDoSucceedsAfterThreeRateLimits(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	p := New(DefaultConfig(), sleeper, nil)
	op := &scriptedOp{errs: []error{errQuota, errQuota, errQuota}}

	ok, err := p.Do(context.Background(), "update_row", op.run)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, op.calls)
	assert.Equal(t, []time.Duration{
		3 * time.Second, 6 * time.Second, 9 * time.Second, 60 * time.Second, 200 * time.Millisecond,
	}, sleeper.waits)
}

func TestDoAbandonsAfterFinalRateLimit(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	p := New(DefaultConfig(), sleeper, nil)
	op := &scriptedOp{errs: []error{errQuota, errQuota, errQuota, errQuota}}

	ok, err := p.Do(context.Background(), "format", op.run)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, op.calls)
}

func TestDoFailsFastOnOtherErrors(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	p := New(DefaultConfig(), sleeper, nil)
	boom := errors.New("permission denied")
	op := &scriptedOp{errs: []error{errQuota, boom}}

	ok, err := p.Do(context.Background(), "delete_row", op.run)
	require.ErrorIs(t, err, boom)
	assert.False(t, ok)
	assert.Equal(t, 2, op.calls)
	assert.Equal(t, []time.Duration{3 * time.Second}, sleeper.waits)
}

func TestDoSuccessPauses(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	p := New(Config{Pause: 0}, sleeper, nil)
	op := &scriptedOp{}
	ok, err := p.Do(context.Background(), "update_row", op.run)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, sleeper.waits, "zero pause skips the sleep")
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(DefaultConfig(), TimerSleeper, nil)
	op := &scriptedOp{errs: []error{errQuota}}

	ok, err := p.Do(ctx, "update_row", op.run)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Equal(t, 1, op.calls)
}

func TestBackoffAndShouldRetry(t *testing.T) {
	t.Parallel()

	p := New(DefaultConfig(), nil, nil)
	assert.Equal(t, 6*time.Second, p.Backoff(2))
	assert.True(t, p.ShouldRetry(errQuota, 1))
	assert.False(t, p.ShouldRetry(errQuota, 3))
	assert.False(t, p.ShouldRetry(errors.New("bad request"), 1))
	assert.False(t, p.ShouldRetry(nil, 1))
}

func TestDoAbandonsAnyFinalFailure(t *testing.T) {
	t.Parallel()

	sleeper := &recordingSleeper{}
	p := New(DefaultConfig(), sleeper, nil)
	op := &scriptedOp{errs: []error{errQuota, errQuota, errQuota, errors.New("500 backend error")}}

	ok, err := p.Do(context.Background(), "update_row", op.run)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, op.calls)
	assert.Equal(t, []time.Duration{
		3 * time.Second, 6 * time.Second, 9 * time.Second, 60 * time.Second,
	}, sleeper.waits)
}
