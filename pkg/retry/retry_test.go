package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "tweetvault/pkg/errors"
	"tweetvault/pkg/logger"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestConstantBackoffIsFlat(t *testing.T) {
	b := &ConstantBackoff{Delay: 15 * time.Minute}
	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 15*time.Minute, b.NextDelay(attempt))
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 2*time.Second, b.NextDelay(2))
	assert.Equal(t, 8*time.Second, b.NextDelay(4))
	assert.Equal(t, 10*time.Second, b.NextDelay(5))
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	b := &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, JitterFactor: 0.2}

	for i := 0; i < 50; i++ {
		d := b.NextDelay(2)
		assert.GreaterOrEqual(t, d, 1600*time.Millisecond)
		assert.LessOrEqual(t, d, 2400*time.Millisecond)
	}
}

func TestLinearBackoff(t *testing.T) {
	b := &LinearBackoff{BaseDelay: time.Second, Increment: 2 * time.Second, MaxDelay: 6 * time.Second}

	assert.Equal(t, time.Second, b.NextDelay(1))
	assert.Equal(t, 3*time.Second, b.NextDelay(2))
	assert.Equal(t, 5*time.Second, b.NextDelay(3))
	assert.Equal(t, 6*time.Second, b.NextDelay(4))
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, s.NextDelay(3))

	s, err = NewStrategy("linear", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, s.NextDelay(2))
	assert.Equal(t, 4*time.Minute, s.NextDelay(9))

	s, err = NewStrategy("Exponential", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 4*time.Minute, s.NextDelay(3))

	_, err = NewStrategy("fibonacci", time.Minute)
	assert.Error(t, err)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Wait(ctx, 0), context.Canceled)
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	sleeper := &recordingSleeper{}
	calls := 0

	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeNetwork, "connection reset")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Second},
		Sleep:       sleeper.Sleep,
		Logger:      logger.NewNopLogger(),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sleeper.delays)
}

func TestDoMaxAttemptsExceeded(t *testing.T) {
	sleeper := &recordingSleeper{}
	var retried []int
	cause := errs.New(errs.ErrorTypeRateLimit, "429")

	err := Do(func() error { return cause }, &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Minute},
		Sleep:       sleeper.Sleep,
		OnRetry:     func(attempt int, err error, delay time.Duration) { retried = append(retried, attempt) },
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.ErrorIs(t, err, cause)
	// no sleep after the final attempt
	assert.Len(t, sleeper.delays, 2)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoNonRetryable(t *testing.T) {
	calls := 0
	authErr := errs.New(errs.ErrorTypeAuth, "cookie rejected")

	err := Do(func() error {
		calls++
		return authErr
	}, &Config{MaxAttempts: 5, Sleep: (&recordingSleeper{}).Sleep})

	assert.Equal(t, authErr, err)
	assert.Equal(t, 1, calls)
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(func() error {
		calls++
		return errors.New("flaky")
	}, &Config{MaxAttempts: 5, Context: ctx, Backoff: &ConstantBackoff{Delay: time.Hour}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeMalformedManifest, "bad")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeTransientIO, "reset")))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(func() (string, error) {
		calls++
		if calls == 1 {
			return "", errs.New(errs.ErrorTypeServerError, "502")
		}
		return "ok", nil
	}, &Config{MaxAttempts: 2, Sleep: (&recordingSleeper{}).Sleep})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
