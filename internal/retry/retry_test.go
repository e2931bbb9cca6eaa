package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func testPolicy() Policy {
	return Policy{MaxAttempts: 4, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
}

func TestDo_SucceedsFirstTime(t *testing.T) {
	clock := &recordingSleep{}
	calls := 0

	got, err := Do(context.Background(), testPolicy(), isTransient, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	}, WithSleep(clock.sleep))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.delays)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	clock := &recordingSleep{}
	var retried []int
	calls := 0

	got, err := Do(context.Background(), testPolicy(), isTransient, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	}, WithSleep(clock.sleep), WithOnRetry(func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
	}))

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, clock.delays)
	assert.Equal(t, []int{2, 3}, retried)
}

func TestDo_Exhausted(t *testing.T) {
	clock := &recordingSleep{}
	calls := 0

	_, err := Do(context.Background(), testPolicy(), isTransient, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	}, WithSleep(clock.sleep))

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls)
	assert.Len(t, clock.delays, 3)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0

	_, err := Do(context.Background(), testPolicy(), isTransient, func(context.Context) (int, error) {
		calls++
		return 0, fatal
	})

	assert.Same(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Hour, Multiplier: 2}

	_, err := Do(ctx, policy, isTransient, func(context.Context) (int, error) {
		cancel()
		return 0, errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicy_DelayIsNonDecreasing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := Policy{
			MaxAttempts: 10,
			BaseDelay:   time.Duration(rapid.Int64Range(0, int64(time.Minute)).Draw(rt, "base")),
			MaxDelay:    time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(rt, "max")),
			Multiplier:  rapid.Float64Range(1, 5).Draw(rt, "multiplier"),
		}
		prev := time.Duration(0)
		for attempt := 1; attempt <= 64; attempt++ {
			d := p.Delay(attempt)
			if d < prev {
				rt.Fatalf("delay decreased at attempt %d: %v < %v", attempt, d, prev)
			}
			if p.MaxDelay > 0 && d > p.MaxDelay {
				rt.Fatalf("delay %v exceeds cap %v", d, p.MaxDelay)
			}
			prev = d
		}
	})
}
