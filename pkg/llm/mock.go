// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"context"
	"sync"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// ScriptedProvider is a Provider for tests. Each agent's queued results
// are returned in order; once exhausted, Default is returned.
type ScriptedProvider struct {
	mu sync.Mutex

	// Results holds per-agent queues of turn results, consumed in order.
	Results map[domain.AgentName][]TurnResult
	// Default is returned when an agent's queue is empty.
	Default TurnResult
	// Err, when set, is returned by every ExecuteTurn call.
	Err error
	// TokenCounts backs TokenCount; Compact and
	// ResetSessionAfterCompaction mutate it.
	TokenCounts map[domain.AgentName]int
	// CompactedTo is the token count Compact reports.
	CompactedTo int

	// Calls records the agents whose turns were executed, in order.
	Calls []domain.AgentName
	// Compacted records the agents compacted, in order.
	Compacted []domain.AgentName
	// Restored records whether RestoreTokenCounts was called.
	Restored bool
	// Disconnected records whether DisconnectAll was called.
	Disconnected bool
}

// NewScriptedProvider creates an empty scripted provider.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{
		Results:     make(map[domain.AgentName][]TurnResult),
		TokenCounts: make(map[domain.AgentName]int),
	}
}

// Queue appends a result to an agent's script.
func (p *ScriptedProvider) Queue(agent domain.AgentName, result TurnResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Results[agent] = append(p.Results[agent], result)
}

// ExecuteTurn pops the next scripted result for the agent.
func (p *ScriptedProvider) ExecuteTurn(_ context.Context, agentCtx AgentContext, _ ToolContext, _ map[string]Tool, _ string) (TurnResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	agent := agentCtx.Agent.Name
	p.Calls = append(p.Calls, agent)
	if p.Err != nil {
		return TurnResult{}, p.Err
	}
	if queue := p.Results[agent]; len(queue) > 0 {
		result := queue[0]
		p.Results[agent] = queue[1:]
		return result, nil
	}
	return p.Default, nil
}

// TokenCount returns the configured count for the agent.
func (p *ScriptedProvider) TokenCount(agent domain.AgentName) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TokenCounts[agent]
}

// RestoreTokenCounts seeds counts from the snapshots.
func (p *ScriptedProvider) RestoreTokenCounts(agents map[domain.AgentName]domain.AgentSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Restored = true
	for name, agent := range agents {
		p.TokenCounts[name] = agent.TokenUsage.SessionTokens
	}
}

// Compact records the call and drops the agent's count to CompactedTo.
func (p *ScriptedProvider) Compact(_ context.Context, agent domain.AgentName) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Compacted = append(p.Compacted, agent)
	p.TokenCounts[agent] = p.CompactedTo
	return p.CompactedTo, nil
}

// ResetSessionAfterCompaction sets the agent's count.
func (p *ScriptedProvider) ResetSessionAfterCompaction(agent domain.AgentName, postTokens int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TokenCounts[agent] = postTokens
}

// DisconnectAll records the call.
func (p *ScriptedProvider) DisconnectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Disconnected = true
}

var _ Provider = (*ScriptedProvider)(nil)
