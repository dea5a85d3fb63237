// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterBurstThenPacing(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 60 * 50, // one token every 20ms
		Burst:             3,
	})
	ctx := context.Background()

	// The initial burst passes without blocking.
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx))
	}
	assert.Less(t, time.Since(start), 15*time.Millisecond)

	// The fourth request waits for a refill.
	start = time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 1, // one token per minute
		Burst:             1,
	})
	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx))

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(cancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiterDoRetriesThrottledCalls(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 60 * 100,
		Burst:             10,
		MaxRetries:        3,
		RetryBackoff:      time.Millisecond,
	})

	calls := 0
	err := rl.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrThrottled
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRateLimiterDoGivesUpAfterMaxRetries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerMinute: 60 * 100,
		Burst:             10,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
	})

	calls := 0
	err := rl.Do(context.Background(), func(context.Context) error {
		calls++
		return ErrThrottled
	})
	require.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 3, calls) // initial attempt plus two retries
}

func TestRateLimiterDoPassesThroughOtherErrors(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerMinute: 60 * 100, Burst: 10})

	boom := errors.New("boom")
	calls := 0
	err := rl.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestNilRateLimiterIsUnlimited(t *testing.T) {
	var rl *RateLimiter
	require.NoError(t, rl.Wait(context.Background()))

	calls := 0
	require.NoError(t, rl.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
}
