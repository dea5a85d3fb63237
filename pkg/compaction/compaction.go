// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package compaction condenses agent session context when it grows too
// large. Above the critical threshold the context is in danger of
// overflowing and compaction happens immediately; above the pre-sleep
// threshold it only happens when the agent is going to sleep anyway.
package compaction

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/llm"
)

// Thresholds in tokens.
const (
	CriticalThreshold = 150_000
	PreSleepThreshold = 100_000
)

// Service runs compaction through the provider and tracks which agents
// are mid-compaction so a slow compact is never started twice.
type Service struct {
	provider llm.Provider
	logger   *zap.Logger

	mu         sync.Mutex
	compacting map[domain.AgentName]bool
}

// NewService creates a compaction service over the provider.
func NewService(provider llm.Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:   provider,
		logger:     logger,
		compacting: make(map[domain.AgentName]bool),
	}
}

// IsCompacting reports whether any agent is currently compacting.
func (s *Service) IsCompacting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.compacting) > 0
}

// TokenCount returns the agent's cumulative session token count.
func (s *Service) TokenCount(agent domain.AgentName) int {
	return s.provider.TokenCount(agent)
}

// ExecuteCompact compacts one agent's session and returns the
// post-compaction token count. Failures are absorbed: the pre-compaction
// count is returned and the session is left as it was.
func (s *Service) ExecuteCompact(ctx context.Context, agent domain.AgentName, critical bool) int {
	s.mu.Lock()
	if s.compacting[agent] {
		s.mu.Unlock()
		s.logger.Warn("agent is already compacting, skipping", zap.String("agent", string(agent)))
		return s.provider.TokenCount(agent)
	}
	s.compacting[agent] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.compacting, agent)
		s.mu.Unlock()
	}()

	preTokens := s.provider.TokenCount(agent)
	threshold := "pre-sleep"
	if critical {
		threshold = "critical"
	}
	s.logger.Info("compaction started",
		zap.String("agent", string(agent)),
		zap.String("threshold", threshold),
		zap.Int("tokens", preTokens))

	postTokens, err := s.provider.Compact(ctx, agent)
	if err != nil {
		s.logger.Error("compaction failed",
			zap.String("agent", string(agent)), zap.Error(err))
		return preTokens
	}

	// Delta accounting for later turns starts from the new baseline.
	s.provider.ResetSessionAfterCompaction(agent, postTokens)

	s.logger.Info("compaction complete",
		zap.String("agent", string(agent)),
		zap.Int("pre_tokens", preTokens),
		zap.Int("post_tokens", postTokens),
		zap.Int("saved", preTokens-postTokens))
	return postTokens
}
