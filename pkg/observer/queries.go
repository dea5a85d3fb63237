// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package observer

import (
	"sort"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// maxScheduleDisplayEvents bounds how much of the queue is shown.
const maxScheduleDisplayEvents = 10

// VillageSnapshot returns the complete village state for display.
func (a *API) VillageSnapshot() VillageDisplay {
	snap := a.engine.Snapshot()
	return VillageDisplay{
		Tick:           snap.World.Tick,
		Time:           a.TimeSnapshot(),
		Weather:        snap.World.Weather,
		Agents:         a.Agents(),
		Conversations:  a.Conversations(),
		PendingInvites: a.PendingInvites(),
		Schedule:       a.Schedule(),
	}
}

// TimeSnapshot returns the current simulated time for display.
func (a *API) TimeSnapshot() TimeDisplay {
	return newTimeDisplay(a.engine.TimeSnapshot())
}

// Weather returns the current weather.
func (a *API) Weather() domain.Weather {
	return a.engine.Snapshot().World.Weather
}

// Agent returns one agent's display state.
func (a *API) Agent(name domain.AgentName) (AgentDisplay, bool) {
	snap := a.engine.Snapshot()
	agent, ok := snap.Agents[name]
	if !ok {
		return AgentDisplay{}, false
	}
	_, inConversation := snap.ConversationFor(name)
	_, hasInvite := snap.PendingInvites[name]
	return newAgentDisplay(agent, inConversation, hasInvite), true
}

// Agents returns every agent's display state.
func (a *API) Agents() map[domain.AgentName]AgentDisplay {
	snap := a.engine.Snapshot()
	result := make(map[domain.AgentName]AgentDisplay, len(snap.Agents))
	for name, agent := range snap.Agents {
		_, inConversation := snap.ConversationFor(name)
		_, hasInvite := snap.PendingInvites[name]
		result[name] = newAgentDisplay(agent, inConversation, hasInvite)
	}
	return result
}

// AgentLocation returns where an agent currently is.
func (a *API) AgentLocation(name domain.AgentName) (domain.LocationID, bool) {
	agent, ok := a.engine.Snapshot().Agents[name]
	if !ok {
		return "", false
	}
	return agent.Location, true
}

// AgentsAt returns who is at a location, sorted by name.
func (a *API) AgentsAt(location domain.LocationID) []domain.AgentName {
	var names []domain.AgentName
	for name, agent := range a.engine.Snapshot().Agents {
		if agent.Location == location {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Conversations returns all active conversations sorted by id.
func (a *API) Conversations() []ConversationDisplay {
	snap := a.engine.Snapshot()
	result := make([]ConversationDisplay, 0, len(snap.Conversations))
	for _, conv := range snap.Conversations {
		result = append(result, newConversationDisplay(conv))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// ConversationFor returns the conversation the agent is in, if any.
func (a *API) ConversationFor(name domain.AgentName) (ConversationDisplay, bool) {
	conv, ok := a.engine.Snapshot().ConversationFor(name)
	if !ok {
		return ConversationDisplay{}, false
	}
	return newConversationDisplay(conv), true
}

// HasActiveConversation reports whether any conversation is running.
func (a *API) HasActiveConversation() bool {
	return len(a.engine.Snapshot().Conversations) > 0
}

// ConversationParticipants returns everyone currently in a conversation,
// sorted by name.
func (a *API) ConversationParticipants() []domain.AgentName {
	seen := make(map[domain.AgentName]struct{})
	for _, conv := range a.engine.Snapshot().Conversations {
		for _, p := range conv.Participants {
			seen[p] = struct{}{}
		}
	}
	names := make([]domain.AgentName, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// PendingInvites returns all pending invitations sorted by invitee.
func (a *API) PendingInvites() []InviteDisplay {
	snap := a.engine.Snapshot()
	result := make([]InviteDisplay, 0, len(snap.PendingInvites))
	for _, inv := range snap.PendingInvites {
		result = append(result, newInviteDisplay(inv))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Invitee < result[j].Invitee })
	return result
}

// InvitesFor returns the agent's pending invitations. Agents hold at
// most one pending invite at a time.
func (a *API) InvitesFor(name domain.AgentName) []InviteDisplay {
	inv, ok := a.engine.Snapshot().PendingInvites[name]
	if !ok {
		return nil
	}
	return []InviteDisplay{newInviteDisplay(inv)}
}

// Schedule returns the scheduling state: the next few queued events plus
// any observer modifiers.
func (a *API) Schedule() ScheduleDisplay {
	state := a.engine.ScheduleState()

	queue := append([]domain.ScheduledEvent(nil), state.Queue...)
	sort.Slice(queue, func(i, j int) bool {
		if !queue[i].DueTime.Equal(queue[j].DueTime) {
			return queue[i].DueTime.Before(queue[j].DueTime)
		}
		return queue[i].Priority < queue[j].Priority
	})
	if len(queue) > maxScheduleDisplayEvents {
		queue = queue[:maxScheduleDisplayEvents]
	}

	pending := make([]ScheduledEventDisplay, 0, len(queue))
	for _, ev := range queue {
		pending = append(pending, ScheduledEventDisplay{
			DueTime:   ev.DueTime,
			EventType: ev.EventType,
			TargetID:  ev.TargetID,
			Location:  ev.LocationID,
		})
	}

	return ScheduleDisplay{
		PendingEvents: pending,
		ForcedNext:    state.ForcedNext,
		SkipCounts:    state.SkipCounts,
		TurnCounts:    state.TurnCounts,
	}
}

// RecentEvents returns committed events at or after the tick.
func (a *API) RecentEvents(sinceTick int) []domain.Event {
	return a.engine.EventsSince(sinceTick)
}

// UsageFor returns one agent's cumulative token usage.
func (a *API) UsageFor(name domain.AgentName) (AgentUsage, bool) {
	agent, ok := a.engine.Snapshot().Agents[name]
	if !ok {
		return AgentUsage{}, false
	}
	u := agent.TokenUsage
	return AgentUsage{
		SessionTokens: u.SessionTokens,
		TotalTokens:   u.TotalTokens(),
		TurnCount:     u.TurnCount,
		TotalInput:    u.TotalInputTokens,
		TotalOutput:   u.TotalOutputTokens,
		CacheCreation: u.CacheCreationInputTokens,
		CacheRead:     u.CacheReadInputTokens,
	}, true
}

// AllUsage returns token usage for every agent.
func (a *API) AllUsage() map[domain.AgentName]AgentUsage {
	snap := a.engine.Snapshot()
	result := make(map[domain.AgentName]AgentUsage, len(snap.Agents))
	for name := range snap.Agents {
		if usage, ok := a.UsageFor(name); ok {
			result[name] = usage
		}
	}
	return result
}

// InterpreterTotals returns the narrative interpreter's token overhead.
func (a *API) InterpreterTotals() InterpreterUsage {
	u := a.engine.Snapshot().World.InterpreterUsage
	return InterpreterUsage{
		TotalTokens: u.TotalInputTokens + u.TotalOutputTokens,
		TotalInput:  u.TotalInputTokens,
		TotalOutput: u.TotalOutputTokens,
		CallCount:   u.CallCount,
	}
}

// TotalUsage returns the combined token spend across agents and the
// interpreter.
func (a *API) TotalUsage() VillageUsage {
	snap := a.engine.Snapshot()

	var total VillageUsage
	for _, agent := range snap.Agents {
		u := agent.TokenUsage
		total.AgentInputTokens += u.TotalInputTokens
		total.AgentOutputTokens += u.TotalOutputTokens
		total.CacheCreationTokens += u.CacheCreationInputTokens
		total.CacheReadTokens += u.CacheReadInputTokens
		total.AgentTurnCount += u.TurnCount
	}
	total.AgentTotalTokens = total.AgentInputTokens + total.AgentOutputTokens

	interp := snap.World.InterpreterUsage
	total.InterpreterTotalTokens = interp.TotalInputTokens + interp.TotalOutputTokens
	total.InterpreterCallCount = interp.CallCount
	total.GrandTotalTokens = total.AgentTotalTokens + total.InterpreterTotalTokens
	return total
}
