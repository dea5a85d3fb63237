// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package llm defines the provider contract for agent turns: the
// context handed to the model, the conversation tools it may call, and
// the result the pipeline consumes. The anthropic session provider is
// the production implementation; tests use the mock.
package llm

import (
	"context"
	"time"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// TickState is the read-only world state tool processors validate
// against. It is a plain copy of the tick's view, never mutated.
type TickState struct {
	Tick           int
	Timestamp      time.Time
	World          domain.WorldSnapshot
	Agents         map[domain.AgentName]domain.AgentSnapshot
	Conversations  map[domain.ConversationID]domain.Conversation
	PendingInvites map[domain.AgentName]domain.Invitation
}

// ToolContext is passed to tool processors during a turn.
type ToolContext struct {
	AgentName domain.AgentName
	Agent     domain.AgentSnapshot
	State     TickState
}

// AgentContext carries everything the prompt builder needs for one
// agent's turn.
type AgentContext struct {
	Agent               domain.AgentSnapshot
	LocationDescription string
	Weather             string
	TimeDescription     string
	OthersPresent       []domain.AgentName
	AvailablePaths      []domain.LocationID

	// Conversation context, when the agent is in one.
	Conversation  *domain.Conversation
	UnseenHistory []domain.ConversationTurn
	IsOpener      bool
	IsGroup       bool

	// Pending invite, when one is waiting on this agent.
	PendingInvite *domain.Invitation

	// Conversations at the location the agent is not part of. Public
	// ones are joinable; private ones are mentioned for awareness only.
	JoinableConversations []domain.Conversation
	PrivateConversations  []domain.Conversation

	// Endings of conversations the agent left or that ended without
	// them noticing.
	UnseenEndings []domain.UnseenConversationEnding

	// SharedDirs are the shared directory names mounted at the agent's
	// location; SharedFiles are the synced file paths inside them.
	SharedDirs   []string
	SharedFiles  []string
	RecentEvents []string
	UnseenDreams []string
}

// TurnTokenUsage is the per-turn usage reported by the provider. The
// values are fresh each turn; the event store accumulates them.
type TurnTokenUsage struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
	ModelID                  string
}

// TurnResult is what a provider returns for one agent turn.
type TurnResult struct {
	Narrative          string
	NarrativeWithTools string
	Effects            []domain.Effect
	TokenUsage         *TurnTokenUsage
}

// Provider executes agent turns against an LLM, keeping a persistent
// session per agent so conversation context carries across turns.
type Provider interface {
	// ExecuteTurn runs one turn: builds prompts from agentCtx, runs the
	// agentic loop executing conversation tools against toolCtx, and
	// returns the narrative plus the effects the tools produced.
	// agentDir, when non-empty, is the agent's working directory.
	ExecuteTurn(ctx context.Context, agentCtx AgentContext, toolCtx ToolContext, tools map[string]Tool, agentDir string) (TurnResult, error)

	// TokenCount returns the agent's current context window size, used
	// for compaction threshold decisions.
	TokenCount(agent domain.AgentName) int

	// RestoreTokenCounts seeds context window tracking from persisted
	// agent snapshots after a restart.
	RestoreTokenCounts(agents map[domain.AgentName]domain.AgentSnapshot)

	// Compact shrinks the agent's session context and returns the
	// post-compaction token count.
	Compact(ctx context.Context, agent domain.AgentName) (int, error)

	// ResetSessionAfterCompaction updates local tracking after a
	// compaction completed.
	ResetSessionAfterCompaction(agent domain.AgentName, postTokens int)

	// DisconnectAll tears down all agent sessions.
	DisconnectAll()
}
