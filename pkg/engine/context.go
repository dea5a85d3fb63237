// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"sort"
	"time"

	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/interpreter"
)

// TurnOutput is the result of one agent's turn as it moves through the
// pipeline: the narrative from the agent turn phase, enriched with
// observations by the interpret phase.
type TurnOutput struct {
	Narrative          string
	NarrativeWithTools string
	Observations       interpreter.Observations
}

// TickContext is the immutable context passed through tick phases. Each
// phase reads from it and returns a copy with its additions applied via
// the With* methods; the engine commits the accumulated events after
// all phases complete.
type TickContext struct {
	Tick         int
	Timestamp    time.Time
	TimeSnapshot domain.TimeSnapshot

	// World state read at tick start.
	World          domain.WorldSnapshot
	Agents         map[domain.AgentName]domain.AgentSnapshot
	Conversations  map[domain.ConversationID]domain.Conversation
	PendingInvites map[domain.AgentName]domain.Invitation
	UnseenEndings  map[domain.AgentName][]domain.UnseenConversationEnding

	// Scheduled events that triggered this tick.
	ScheduledEvents []domain.ScheduledEvent

	// Accumulated during phase execution.
	Effects     []domain.Effect
	Events      []domain.Event
	TurnResults map[domain.AgentName]TurnOutput

	AgentsToAct []domain.AgentName
	AgentsActed []domain.AgentName
}

// WithEffect returns a copy with one effect appended.
func (c TickContext) WithEffect(effect domain.Effect) TickContext {
	return c.WithEffects(effect)
}

// WithEffects returns a copy with effects appended.
func (c TickContext) WithEffects(effects ...domain.Effect) TickContext {
	combined := make([]domain.Effect, 0, len(c.Effects)+len(effects))
	combined = append(combined, c.Effects...)
	combined = append(combined, effects...)
	c.Effects = combined
	return c
}

// WithEvents returns a copy with events appended.
func (c TickContext) WithEvents(events ...domain.Event) TickContext {
	combined := make([]domain.Event, 0, len(c.Events)+len(events))
	combined = append(combined, c.Events...)
	combined = append(combined, events...)
	c.Events = combined
	return c
}

// WithTurnResult returns a copy with one agent's turn output replaced.
func (c TickContext) WithTurnResult(agent domain.AgentName, out TurnOutput) TickContext {
	results := make(map[domain.AgentName]TurnOutput, len(c.TurnResults)+1)
	for k, v := range c.TurnResults {
		results[k] = v
	}
	results[agent] = out
	c.TurnResults = results
	return c
}

// WithAgentsToAct returns a copy with the acting set replaced.
func (c TickContext) WithAgentsToAct(agents []domain.AgentName) TickContext {
	c.AgentsToAct = agents
	return c
}

// WithAgentActed returns a copy with the agent marked as having acted.
func (c TickContext) WithAgentActed(agent domain.AgentName) TickContext {
	acted := make([]domain.AgentName, 0, len(c.AgentsActed)+1)
	acted = append(acted, c.AgentsActed...)
	acted = append(acted, agent)
	c.AgentsActed = acted
	return c
}

// WithAgent returns a copy with one agent's snapshot replaced and the
// world's agent-location index kept consistent, so effects later in the
// tick see earlier moves.
func (c TickContext) WithAgent(a domain.AgentSnapshot) TickContext {
	agents := make(map[domain.AgentName]domain.AgentSnapshot, len(c.Agents))
	for k, v := range c.Agents {
		agents[k] = v
	}
	agents[a.Name] = a
	c.Agents = agents
	c.World = c.World.WithAgentLocation(a.Name, a.Location)
	return c
}

// WithConversation returns a copy with one conversation replaced.
func (c TickContext) WithConversation(conv domain.Conversation) TickContext {
	conversations := make(map[domain.ConversationID]domain.Conversation, len(c.Conversations)+1)
	for k, v := range c.Conversations {
		conversations[k] = v
	}
	conversations[conv.ID] = conv
	c.Conversations = conversations
	return c
}

// WithoutConversation returns a copy with one conversation removed.
func (c TickContext) WithoutConversation(id domain.ConversationID) TickContext {
	conversations := make(map[domain.ConversationID]domain.Conversation, len(c.Conversations))
	for k, v := range c.Conversations {
		if k != id {
			conversations[k] = v
		}
	}
	c.Conversations = conversations
	return c
}

// WithInvite returns a copy with the invitee's pending invite replaced.
func (c TickContext) WithInvite(inv domain.Invitation) TickContext {
	invites := make(map[domain.AgentName]domain.Invitation, len(c.PendingInvites)+1)
	for k, v := range c.PendingInvites {
		invites[k] = v
	}
	invites[inv.Invitee] = inv
	c.PendingInvites = invites
	return c
}

// WithoutInvite returns a copy with the invitee's pending invite removed.
func (c TickContext) WithoutInvite(invitee domain.AgentName) TickContext {
	invites := make(map[domain.AgentName]domain.Invitation, len(c.PendingInvites))
	for k, v := range c.PendingInvites {
		if k != invitee {
			invites[k] = v
		}
	}
	c.PendingInvites = invites
	return c
}

// WithUnseenEnding returns a copy with an unseen conversation ending
// appended for the agent.
func (c TickContext) WithUnseenEnding(agent domain.AgentName, ending domain.UnseenConversationEnding) TickContext {
	endings := make(map[domain.AgentName][]domain.UnseenConversationEnding, len(c.UnseenEndings)+1)
	for k, v := range c.UnseenEndings {
		endings[k] = v
	}
	endings[agent] = append(append([]domain.UnseenConversationEnding(nil), endings[agent]...), ending)
	c.UnseenEndings = endings
	return c
}

// WithoutUnseenEnding returns a copy with one of the agent's unseen
// conversation endings removed.
func (c TickContext) WithoutUnseenEnding(agent domain.AgentName, id domain.ConversationID) TickContext {
	endings := make(map[domain.AgentName][]domain.UnseenConversationEnding, len(c.UnseenEndings))
	for k, v := range c.UnseenEndings {
		endings[k] = v
	}
	var kept []domain.UnseenConversationEnding
	for _, e := range endings[agent] {
		if e.ConversationID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(endings, agent)
	} else {
		endings[agent] = kept
	}
	c.UnseenEndings = endings
	return c
}

// ConversationsFor returns the conversations the agent participates in,
// sorted by id for deterministic iteration.
func (c TickContext) ConversationsFor(agent domain.AgentName) []domain.Conversation {
	var out []domain.Conversation
	for _, conv := range c.Conversations {
		if conv.HasParticipant(agent) {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConversationsAt returns the conversations at a location with the
// given privacy, sorted by id.
func (c TickContext) ConversationsAt(loc domain.LocationID, privacy domain.Privacy) []domain.Conversation {
	var out []domain.Conversation
	for _, conv := range c.Conversations {
		if conv.Location == loc && conv.Privacy == privacy {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedAgentNames returns all agent names in the context, sorted.
func (c TickContext) SortedAgentNames() []domain.AgentName {
	names := make([]domain.AgentName, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// TickResult summarizes a completed tick: the events that were
// committed, the effects that produced them, and who acted.
type TickResult struct {
	Tick        int
	Timestamp   time.Time
	Events      []domain.Event
	Effects     []domain.Effect
	TurnResults map[domain.AgentName]TurnOutput
	AgentsActed []domain.AgentName
}

func resultFromContext(c TickContext) TickResult {
	return TickResult{
		Tick:        c.Tick,
		Timestamp:   c.Timestamp,
		Events:      c.Events,
		Effects:     c.Effects,
		TurnResults: c.TurnResults,
		AgentsActed: c.AgentsActed,
	}
}
