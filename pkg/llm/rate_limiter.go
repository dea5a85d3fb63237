// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrThrottled signals that the API rejected a request for rate
// reasons. Callers return it (or wrap it) to ask the limiter to back
// off and retry.
var ErrThrottled = errors.New("request throttled")

// RateLimiterConfig configures request pacing toward the provider API.
// One limiter is shared by every agent session.
type RateLimiterConfig struct {
	// RequestsPerMinute is the sustained request rate. Default 30.
	RequestsPerMinute float64
	// Burst is how many requests may fire back to back. Default 5.
	Burst int
	// MaxRetries bounds retries of throttled calls. Default 5.
	MaxRetries int
	// RetryBackoff is the initial retry delay; it doubles per attempt.
	// Default 1s.
	RetryBackoff time.Duration

	Logger *zap.Logger
}

// RateLimiter is a token bucket pacing API requests, with exponential
// backoff retries for throttled calls. A nil *RateLimiter is valid and
// imposes no limit.
type RateLimiter struct {
	config RateLimiterConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time

	logger *zap.Logger
}

// NewRateLimiter creates a limiter with the bucket initially full.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 30
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		config:     config,
		tokens:     float64(config.Burst),
		lastRefill: time.Now(),
		logger:     logger.Named("rate_limiter"),
	}
}

// Wait blocks until a request token is available or the context ends.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	for {
		delay, ok := rl.take()
		if ok {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take consumes a token, or reports how long until one refills.
func (rl *RateLimiter) take() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	perSecond := rl.config.RequestsPerMinute / 60
	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * perSecond
	if ceiling := float64(rl.config.Burst); rl.tokens > ceiling {
		rl.tokens = ceiling
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	return time.Duration((1 - rl.tokens) / perSecond * float64(time.Second)), false
}

// Do runs the call under the limiter, retrying with doubling backoff
// when it reports ErrThrottled. With a nil limiter the call runs once,
// unpaced.
func (rl *RateLimiter) Do(ctx context.Context, call func(context.Context) error) error {
	if rl == nil {
		return call(ctx)
	}

	backoff := rl.config.RetryBackoff
	var err error
	for attempt := 0; attempt <= rl.config.MaxRetries; attempt++ {
		if attempt > 0 {
			rl.logger.Warn("throttled, backing off",
				zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff *= 2
		}

		if err = rl.Wait(ctx); err != nil {
			return err
		}
		if err = call(ctx); err == nil || !errors.Is(err, ErrThrottled) {
			return err
		}
	}
	return err
}
