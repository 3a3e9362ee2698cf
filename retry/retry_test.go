package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	boom := errors.New("boom")
	var calls, recoveries []int

	err := Do(context.Background(), Policy{MaxAttempts: 3, Sleep: noSleep},
		func(attempt int) error {
			calls = append(calls, attempt)
			return boom
		},
		func(attempt int) error {
			recoveries = append(recoveries, attempt)
			return errors.New("recovery also fails")
		},
	)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1, 2, 3}, calls)
	require.Equal(t, []int{1, 2}, recoveries)
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, Sleep: noSleep}, func(attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("not yet")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 3, Delay: time.Hour}, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	}, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestDoWaitsDelayBetweenAttempts(t *testing.T) {
	var waited []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}
	_ = Do(context.Background(), Policy{MaxAttempts: 3, Delay: 10 * time.Second, Sleep: sleep},
		func(int) error { return errors.New("fail") }, nil)
	require.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, waited)
}
