// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/compaction"
	"github.com/teradata-labs/hamlet/pkg/conversation"
	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/eventstore"
	"github.com/teradata-labs/hamlet/pkg/llm"
	"github.com/teradata-labs/hamlet/pkg/village"
)

const recentEventLimit = 20

// AgentTurnPhase runs LLM turns for the agents scheduled to act. Turns
// execute in parallel; a failed turn is logged and the agent simply
// does not act this tick.
type AgentTurnPhase struct {
	provider    llm.Provider
	convs       *conversation.Service
	store       *eventstore.Store
	villageRoot string
	logger      *zap.Logger
}

func NewAgentTurnPhase(provider llm.Provider, convs *conversation.Service, store *eventstore.Store, villageRoot string, logger *zap.Logger) *AgentTurnPhase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentTurnPhase{
		provider:    provider,
		convs:       convs,
		store:       store,
		villageRoot: villageRoot,
		logger:      logger.Named("agent_turn"),
	}
}

func (p *AgentTurnPhase) Name() string { return "agent_turn" }

type turnOutcome struct {
	result llm.TurnResult
	err    error
}

func (p *AgentTurnPhase) Execute(ctx context.Context, tc TickContext) (TickContext, error) {
	if len(tc.AgentsToAct) == 0 {
		return tc, nil
	}

	recentEvents := p.recentEvents()
	tools := llm.ConversationTools()
	state := llm.TickState{
		Tick:           tc.Tick,
		Timestamp:      tc.Timestamp,
		World:          tc.World,
		Agents:         tc.Agents,
		Conversations:  tc.Conversations,
		PendingInvites: tc.PendingInvites,
	}

	outcomes := make([]turnOutcome, len(tc.AgentsToAct))
	var wg sync.WaitGroup
	for i, name := range tc.AgentsToAct {
		wg.Add(1)
		go func(i int, name domain.AgentName) {
			defer wg.Done()
			result, err := p.executeTurn(ctx, tc, state, tools, name, recentEvents)
			outcomes[i] = turnOutcome{result: result, err: err}
		}(i, name)
	}
	wg.Wait()

	for i, name := range tc.AgentsToAct {
		out := outcomes[i]
		if out.err != nil {
			p.logger.Error("agent turn failed",
				zap.String("agent", string(name)), zap.Error(out.err))
			continue
		}

		tc = tc.WithTurnResult(name, TurnOutput{
			Narrative:          out.result.Narrative,
			NarrativeWithTools: out.result.NarrativeWithTools,
		})
		tc = tc.WithEffects(out.result.Effects...)
		tc = tc.WithEffect(domain.UpdateLastActiveTickEffect{Agent: name})

		if usage := out.result.TokenUsage; usage != nil {
			tc = tc.WithEffect(domain.RecordTokenUsageEffect{
				Agent:                    name,
				InputTokens:              usage.InputTokens,
				OutputTokens:             usage.OutputTokens,
				CacheCreationInputTokens: usage.CacheCreationInputTokens,
				CacheReadInputTokens:     usage.CacheReadInputTokens,
				ModelID:                  usage.ModelID,
			})
		}

		// Endings shown in this turn's context are now seen.
		for _, ending := range tc.UnseenEndings[name] {
			tc = tc.WithEffect(domain.MarkEndingSeenEffect{
				Agent:          name,
				ConversationID: ending.ConversationID,
			})
		}

		switch count := p.provider.TokenCount(name); {
		case count >= compaction.CriticalThreshold:
			tc = tc.WithEffect(domain.ShouldCompactEffect{Agent: name, Critical: true})
		case count >= compaction.PreSleepThreshold:
			tc = tc.WithEffect(domain.ShouldCompactEffect{Agent: name, Critical: false})
		}

		tc = tc.WithAgentActed(name)
	}
	return tc, nil
}

func (p *AgentTurnPhase) executeTurn(ctx context.Context, tc TickContext, state llm.TickState, tools map[string]llm.Tool, name domain.AgentName, recentEvents []domain.Event) (llm.TurnResult, error) {
	agent := tc.Agents[name]
	startLocation := agent.Location

	var agentDir string
	var sharedFiles []string
	var unseenDreams []string
	if p.villageRoot != "" {
		if err := village.EnsureSharedDirectories(p.villageRoot); err != nil {
			return llm.TurnResult{}, fmt.Errorf("preparing shared directories: %w", err)
		}
		dir, err := village.EnsureAgentDirectory(p.villageRoot, name)
		if err != nil {
			return llm.TurnResult{}, fmt.Errorf("preparing agent directory: %w", err)
		}
		agentDir = dir

		masterDir := filepath.Join(p.villageRoot, "shared")
		sharedFiles, err = village.SyncSharedFilesIn(agentDir, startLocation, masterDir)
		if err != nil {
			return llm.TurnResult{}, fmt.Errorf("syncing shared files in: %w", err)
		}
		defer func() {
			if err := village.SyncSharedFilesOut(agentDir, startLocation, masterDir); err != nil {
				p.logger.Warn("syncing shared files out",
					zap.String("agent", string(name)), zap.Error(err))
			}
		}()

		unseenDreams = village.UnseenDreams(agentDir, agent.LastActiveTick)
	}

	agentCtx := p.buildContext(tc, agent, recentEvents)
	agentCtx.SharedFiles = sharedFiles
	agentCtx.UnseenDreams = unseenDreams

	toolCtx := llm.ToolContext{AgentName: name, Agent: agent, State: state}
	return p.provider.ExecuteTurn(ctx, agentCtx, toolCtx, tools, agentDir)
}

func (p *AgentTurnPhase) buildContext(tc TickContext, agent domain.AgentSnapshot, recentEvents []domain.Event) llm.AgentContext {
	loc := tc.World.Locations[agent.Location]

	var others []domain.AgentName
	for _, name := range tc.SortedAgentNames() {
		other := tc.Agents[name]
		if name == agent.Name || other.Location != agent.Location || other.IsSleeping {
			continue
		}
		others = append(others, name)
	}

	agentCtx := llm.AgentContext{
		Agent:               agent,
		LocationDescription: p.locationDescription(agent.Location, loc),
		Weather:             string(tc.World.Weather),
		TimeDescription:     formatWorldTime(tc.TimeSnapshot),
		OthersPresent:       others,
		AvailablePaths:      loc.Connections,
		UnseenEndings:       tc.UnseenEndings[agent.Name],
		SharedDirs:          village.SharedDirsForLocation(agent.Location),
		RecentEvents:        renderRecentEvents(recentEvents, agent),
	}

	if convs := p.convs.ForAgent(agent.Name); len(convs) > 0 {
		if turnCtx, ok := p.convs.TurnContextFor(convs[0].ID, agent.Name, agent.LastActiveTick); ok {
			conv := turnCtx.Conversation
			agentCtx.Conversation = &conv
			agentCtx.UnseenHistory = turnCtx.UnseenHistory
			agentCtx.IsOpener = turnCtx.IsOpener
			agentCtx.IsGroup = turnCtx.IsGroup
		}
	}

	if invite, ok := tc.PendingInvites[agent.Name]; ok {
		agentCtx.PendingInvite = &invite
	}

	for _, conv := range tc.ConversationsAt(agent.Location, domain.PrivacyPublic) {
		if !conv.HasParticipant(agent.Name) {
			agentCtx.JoinableConversations = append(agentCtx.JoinableConversations, conv)
		}
	}
	for _, conv := range tc.ConversationsAt(agent.Location, domain.PrivacyPrivate) {
		if !conv.HasParticipant(agent.Name) {
			agentCtx.PrivateConversations = append(agentCtx.PrivateConversations, conv)
		}
	}
	return agentCtx
}

func (p *AgentTurnPhase) locationDescription(id domain.LocationID, loc domain.Location) string {
	if p.villageRoot != "" {
		if desc := village.ReadLocationDescription(p.villageRoot, id); desc != "" {
			return desc
		}
	}
	return loc.Description
}

func (p *AgentTurnPhase) recentEvents() []domain.Event {
	if p.store == nil {
		return nil
	}
	events, err := p.store.RecentEvents(recentEventLimit, map[string]bool{
		domain.TypeWorldEvent:     true,
		domain.TypeWeatherChanged: true,
	}, 0)
	if err != nil {
		p.logger.Warn("fetching recent events", zap.Error(err))
		return nil
	}
	return events
}

// renderRecentEvents turns world events into prompt lines the agent
// would plausibly know about: events at their location, events they
// were involved in, and village-wide happenings.
func renderRecentEvents(events []domain.Event, agent domain.AgentSnapshot) []string {
	var lines []string
	for _, ev := range events {
		switch e := ev.(type) {
		case *domain.WorldEventOccurred:
			if len(e.AgentsInvolved) == 1 && e.AgentsInvolved[0] == agent.Name {
				// Personal events like dreams are delivered separately.
				continue
			}
			involved := false
			for _, a := range e.AgentsInvolved {
				if a == agent.Name {
					involved = true
					break
				}
			}
			if e.Location == "" || e.Location == agent.Location || involved {
				lines = append(lines, e.Description)
			}
		case *domain.WeatherChangedEvent:
			lines = append(lines, fmt.Sprintf("The weather has changed to %s.", e.NewWeather))
		}
	}
	return lines
}

func formatWorldTime(ts domain.TimeSnapshot) string {
	hour := ts.WorldTime.Hour()
	var clock string
	switch {
	case hour == 0:
		clock = "midnight"
	case hour == 12:
		clock = "noon"
	case hour < 12:
		clock = fmt.Sprintf("%d:00 AM", hour)
	default:
		clock = fmt.Sprintf("%d:00 PM", hour-12)
	}
	return fmt.Sprintf("%s (%s)", clock, ts.Period())
}
