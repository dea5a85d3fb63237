// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package observer is the human-facing surface of the village: read-only
// queries over current state and intervention commands. Queries are safe
// to call freely for display; commands mutate state through the engine
// and return typed errors on bad references.
package observer

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/compaction"
	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/engine"
)

// DefaultEnergyBoost is the energy granted when no amount is given.
const DefaultEnergyBoost = 20

// API wraps an engine with the observer's query and command surface.
type API struct {
	engine *engine.Engine
	logger *zap.Logger
}

// New creates an observer API over the engine.
func New(eng *engine.Engine, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{engine: eng, logger: logger.Named("observer")}
}

// --- World commands ---

// TriggerEvent records a world event every agent will perceive.
func (a *API) TriggerEvent(description string) (*domain.WorldEventOccurred, error) {
	a.logger.Info("trigger event", zap.String("description", description))

	ts := a.engine.TimeSnapshot()
	ev := &domain.WorldEventOccurred{
		EventMeta:   domain.NewMeta(domain.TypeWorldEvent, ts.Tick, ts.WorldTime),
		Description: description,
	}
	if err := a.engine.CommitEvent(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// SetWeather changes the weather.
func (a *API) SetWeather(weather domain.Weather) (*domain.WeatherChangedEvent, error) {
	if !domain.ValidWeather(weather) {
		return nil, &InvalidWeatherError{Weather: weather}
	}

	old := a.engine.Snapshot().World.Weather
	a.logger.Info("set weather",
		zap.String("old", string(old)), zap.String("new", string(weather)))

	ts := a.engine.TimeSnapshot()
	ev := &domain.WeatherChangedEvent{
		EventMeta:  domain.NewMeta(domain.TypeWeatherChanged, ts.Tick, ts.WorldTime),
		OldWeather: old,
		NewWeather: weather,
	}
	if err := a.engine.CommitEvent(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// SendDream drops a dream into the agent's dreams directory and records
// a world event only the dreamer is involved in. The dream surfaces as
// unseen on their next turn.
func (a *API) SendDream(agent domain.AgentName, content string) (*domain.WorldEventOccurred, error) {
	if _, ok := a.engine.Snapshot().Agents[agent]; !ok {
		return nil, &AgentNotFoundError{Agent: agent}
	}

	a.logger.Info("send dream",
		zap.String("agent", string(agent)), zap.Int("length", len(content)))

	if _, err := a.engine.WriteDream(agent, content); err != nil {
		return nil, err
	}

	ts := a.engine.TimeSnapshot()
	ev := &domain.WorldEventOccurred{
		EventMeta:      domain.NewMeta(domain.TypeWorldEvent, ts.Tick, ts.WorldTime),
		Description:    fmt.Sprintf("A dream drifts to %s...", agent),
		AgentsInvolved: []domain.AgentName{agent},
	}
	if err := a.engine.CommitEvent(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// --- Scheduling commands ---

// ForceTurn makes the agent act on the next tick.
func (a *API) ForceTurn(agent domain.AgentName) error {
	if _, ok := a.engine.Snapshot().Agents[agent]; !ok {
		return &AgentNotFoundError{Agent: agent}
	}
	a.logger.Info("force turn", zap.String("agent", string(agent)))
	a.engine.ForceNextTurn(agent)
	return nil
}

// SkipTurns silences the agent for the next count turns.
func (a *API) SkipTurns(agent domain.AgentName, count int) error {
	if _, ok := a.engine.Snapshot().Agents[agent]; !ok {
		return &AgentNotFoundError{Agent: agent}
	}
	a.logger.Info("skip turns",
		zap.String("agent", string(agent)), zap.Int("count", count))
	a.engine.SkipTurns(agent, count)
	return nil
}

// ClearModifiers drops the forced turn and all skip counts.
func (a *API) ClearModifiers() {
	a.logger.Info("clear scheduling modifiers")
	a.engine.ClearScheduleModifiers()
}

// --- Agent commands ---

// MoveAgent relocates an agent.
func (a *API) MoveAgent(ctx context.Context, agent domain.AgentName, destination domain.LocationID) (domain.Effect, error) {
	snap := a.engine.Snapshot()
	current, ok := snap.Agents[agent]
	if !ok {
		return nil, &AgentNotFoundError{Agent: agent}
	}
	if _, ok := snap.World.Locations[destination]; !ok {
		return nil, &InvalidLocationError{Location: destination}
	}

	a.logger.Info("move agent",
		zap.String("agent", string(agent)),
		zap.String("from", string(current.Location)),
		zap.String("to", string(destination)))

	effect := domain.MoveAgentEffect{
		Agent:        agent,
		FromLocation: current.Location,
		ToLocation:   destination,
	}
	if err := a.engine.ApplyEffects(ctx, effect); err != nil {
		return nil, err
	}
	return effect, nil
}

// SetMood overrides an agent's mood.
func (a *API) SetMood(ctx context.Context, agent domain.AgentName, mood string) (domain.Effect, error) {
	if _, ok := a.engine.Snapshot().Agents[agent]; !ok {
		return nil, &AgentNotFoundError{Agent: agent}
	}

	a.logger.Info("set mood",
		zap.String("agent", string(agent)), zap.String("mood", mood))

	effect := domain.UpdateMoodEffect{Agent: agent, Mood: mood}
	if err := a.engine.ApplyEffects(ctx, effect); err != nil {
		return nil, err
	}
	return effect, nil
}

// SetSleeping puts the agent to sleep or wakes them. The returned effect
// is nil when the agent is already in the requested state.
func (a *API) SetSleeping(ctx context.Context, agent domain.AgentName, sleeping bool) (domain.Effect, error) {
	current, ok := a.engine.Snapshot().Agents[agent]
	if !ok {
		return nil, &AgentNotFoundError{Agent: agent}
	}
	if current.IsSleeping == sleeping {
		return nil, nil
	}

	a.logger.Info("set sleeping",
		zap.String("agent", string(agent)), zap.Bool("sleeping", sleeping))

	var effect domain.Effect
	if sleeping {
		effect = domain.AgentSleepEffect{Agent: agent}
	} else {
		effect = domain.AgentWakeEffect{Agent: agent, Reason: "observer_intervention"}
	}
	if err := a.engine.ApplyEffects(ctx, effect); err != nil {
		return nil, err
	}
	return effect, nil
}

// BoostEnergy grants the agent extra energy, capped at the maximum.
// A non-positive amount uses DefaultEnergyBoost.
func (a *API) BoostEnergy(ctx context.Context, agent domain.AgentName, amount int) (domain.Effect, error) {
	current, ok := a.engine.Snapshot().Agents[agent]
	if !ok {
		return nil, &AgentNotFoundError{Agent: agent}
	}
	if amount <= 0 {
		amount = DefaultEnergyBoost
	}

	a.logger.Info("boost energy",
		zap.String("agent", string(agent)), zap.Int("amount", amount))

	effect := domain.UpdateEnergyEffect{
		Agent:  agent,
		Energy: domain.ClampEnergy(current.Energy + amount),
	}
	if err := a.engine.ApplyEffects(ctx, effect); err != nil {
		return nil, err
	}
	return effect, nil
}

// RecordAction records an action on the agent's behalf.
func (a *API) RecordAction(agent domain.AgentName, description string) (*domain.AgentActionEvent, error) {
	current, ok := a.engine.Snapshot().Agents[agent]
	if !ok {
		return nil, &AgentNotFoundError{Agent: agent}
	}

	a.logger.Info("record action",
		zap.String("agent", string(agent)), zap.String("description", description))

	ts := a.engine.TimeSnapshot()
	ev := &domain.AgentActionEvent{
		EventMeta:   domain.NewMeta(domain.TypeAgentAction, ts.Tick, ts.WorldTime),
		Agent:       agent,
		Location:    current.Location,
		Description: description,
	}
	if err := a.engine.CommitEvent(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// --- Conversation commands ---

// EndConversation force-ends a conversation. An empty id ends the first
// active conversation; when none are active the call is a no-op.
func (a *API) EndConversation(ctx context.Context, id domain.ConversationID) error {
	snap := a.engine.Snapshot()
	if id == "" {
		if len(snap.Conversations) == 0 {
			return nil
		}
		ids := make([]domain.ConversationID, 0, len(snap.Conversations))
		for cid := range snap.Conversations {
			ids = append(ids, cid)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		id = ids[0]
	} else if _, ok := snap.Conversations[id]; !ok {
		return &ConversationError{ConversationID: id, Reason: "not found"}
	}

	a.logger.Info("end conversation", zap.String("conversation", string(id)))
	return a.engine.EndConversation(ctx, id, "observer_ended")
}

// SetNextSpeaker pins the next speaker of the conversation the agent is
// in, for when the interpreter missed a suggestion in the narrative.
// Returns a nil effect when the agent is not in a conversation.
func (a *API) SetNextSpeaker(ctx context.Context, agent, nextSpeaker domain.AgentName) (domain.Effect, error) {
	snap := a.engine.Snapshot()
	if _, ok := snap.Agents[agent]; !ok {
		return nil, &AgentNotFoundError{Agent: agent}
	}
	if _, ok := snap.Agents[nextSpeaker]; !ok {
		return nil, &AgentNotFoundError{Agent: nextSpeaker}
	}

	conv, ok := snap.ConversationFor(agent)
	if !ok {
		a.logger.Warn("set next speaker on agent outside any conversation",
			zap.String("agent", string(agent)))
		return nil, nil
	}
	if !conv.HasParticipant(nextSpeaker) {
		return nil, &ConversationError{
			ConversationID: conv.ID,
			Reason:         fmt.Sprintf("%s is not a participant", nextSpeaker),
		}
	}

	a.logger.Info("set next speaker",
		zap.String("conversation", string(conv.ID)),
		zap.String("next", string(nextSpeaker)))

	effect := domain.SetNextSpeakerEffect{ConversationID: conv.ID, Speaker: nextSpeaker}
	if err := a.engine.ApplyEffects(ctx, effect); err != nil {
		return nil, err
	}
	return effect, nil
}

// --- Compaction ---

// CompactionStateFor reports the agent's context-window pressure against
// the critical threshold.
func (a *API) CompactionStateFor(agent domain.AgentName) CompactionState {
	svc := a.engine.Compactor()
	tokens := svc.TokenCount(agent)
	return CompactionState{
		Tokens:     tokens,
		Threshold:  compaction.CriticalThreshold,
		Percent:    tokens * 100 / compaction.CriticalThreshold,
		Compacting: svc.IsCompacting(),
	}
}

// CompactionStates reports every agent's context-window pressure.
func (a *API) CompactionStates() map[domain.AgentName]CompactionState {
	result := make(map[domain.AgentName]CompactionState)
	for name := range a.engine.Snapshot().Agents {
		result[name] = a.CompactionStateFor(name)
	}
	return result
}

// ForceCompact compacts the agent's session immediately.
func (a *API) ForceCompact(ctx context.Context, agent domain.AgentName) (CompactResult, error) {
	if _, ok := a.engine.Snapshot().Agents[agent]; !ok {
		return CompactResult{}, &AgentNotFoundError{Agent: agent}
	}

	a.logger.Info("force compact", zap.String("agent", string(agent)))

	svc := a.engine.Compactor()
	pre := svc.TokenCount(agent)
	post := svc.ExecuteCompact(ctx, agent, false)
	return CompactResult{PreTokens: pre, PostTokens: post, Saved: pre - post}, nil
}
