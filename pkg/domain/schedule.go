// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

import "time"

// ScheduledEventType distinguishes the kinds of future actions the
// scheduler queues.
type ScheduledEventType string

const (
	ScheduledAgentTurn        ScheduledEventType = "agent_turn"
	ScheduledConversationTurn ScheduledEventType = "conversation_turn"
	ScheduledInviteResponse   ScheduledEventType = "invite_response"
)

// ScheduledEvent is a future action due at a specific simulated time.
// TargetID is an agent name for agent turns and invite responses, or a
// conversation id for conversation turns. Lower priority sorts first.
type ScheduledEvent struct {
	DueTime    time.Time          `json:"due_time"`
	Priority   int                `json:"priority"`
	EventType  ScheduledEventType `json:"event_type"`
	TargetID   string             `json:"target_id"`
	LocationID LocationID         `json:"location_id"`
}

// SchedulerState is the serializable scheduler snapshot. The queue and
// modifiers describe the future, so they cannot be rebuilt from the
// event log and are persisted with each snapshot instead.
// LastLocationSpeaker is rebuilt from last-active events during replay.
type SchedulerState struct {
	Queue               []ScheduledEvent         `json:"queue"`
	ForcedNext          AgentName                `json:"forced_next,omitempty"`
	SkipCounts          map[AgentName]int        `json:"skip_counts,omitempty"`
	TurnCounts          map[AgentName]int        `json:"turn_counts,omitempty"`
	LastLocationSpeaker map[LocationID]AgentName `json:"last_location_speaker,omitempty"`
}

// VillageSnapshot is the complete durable state at a point in time.
type VillageSnapshot struct {
	World          WorldSnapshot                            `json:"world"`
	Agents         map[AgentName]AgentSnapshot              `json:"agents"`
	Conversations  map[ConversationID]Conversation          `json:"conversations"`
	PendingInvites map[AgentName]Invitation                 `json:"pending_invites"`
	SchedulerState *SchedulerState                          `json:"scheduler_state,omitempty"`
	UnseenEndings  map[AgentName][]UnseenConversationEnding `json:"unseen_endings,omitempty"`
}

// Tick returns the snapshot's tick.
func (s VillageSnapshot) Tick() int { return s.World.Tick }

// Agent looks up one agent.
func (s VillageSnapshot) Agent(name AgentName) (AgentSnapshot, bool) {
	a, ok := s.Agents[name]
	return a, ok
}

// ConversationFor returns the conversation the agent participates in,
// if any. Agents are in at most one conversation at a time.
func (s VillageSnapshot) ConversationFor(agent AgentName) (Conversation, bool) {
	for _, c := range s.Conversations {
		if c.HasParticipant(agent) {
			return c, true
		}
	}
	return Conversation{}, false
}

// AllSleeping reports whether every agent is asleep. False for an
// empty village.
func (s VillageSnapshot) AllSleeping() bool {
	if len(s.Agents) == 0 {
		return false
	}
	for _, a := range s.Agents {
		if !a.IsSleeping {
			return false
		}
	}
	return true
}

// WithAgent returns a copy with one agent replaced and the world's
// agent-location index kept consistent.
func (s VillageSnapshot) WithAgent(a AgentSnapshot) VillageSnapshot {
	agents := make(map[AgentName]AgentSnapshot, len(s.Agents))
	for k, v := range s.Agents {
		agents[k] = v
	}
	agents[a.Name] = a
	s.Agents = agents
	s.World = s.World.WithAgentLocation(a.Name, a.Location)
	return s
}

// WithConversation returns a copy with one conversation replaced.
func (s VillageSnapshot) WithConversation(c Conversation) VillageSnapshot {
	conversations := make(map[ConversationID]Conversation, len(s.Conversations)+1)
	for k, v := range s.Conversations {
		conversations[k] = v
	}
	conversations[c.ID] = c
	s.Conversations = conversations
	return s
}

// WithoutConversation returns a copy with one conversation removed.
func (s VillageSnapshot) WithoutConversation(id ConversationID) VillageSnapshot {
	conversations := make(map[ConversationID]Conversation, len(s.Conversations))
	for k, v := range s.Conversations {
		if k != id {
			conversations[k] = v
		}
	}
	s.Conversations = conversations
	return s
}

// WithPendingInvite returns a copy with the invitee's pending invite
// replaced.
func (s VillageSnapshot) WithPendingInvite(inv Invitation) VillageSnapshot {
	invites := make(map[AgentName]Invitation, len(s.PendingInvites)+1)
	for k, v := range s.PendingInvites {
		invites[k] = v
	}
	invites[inv.Invitee] = inv
	s.PendingInvites = invites
	return s
}

// WithoutPendingInvite returns a copy with the invitee's pending invite
// removed.
func (s VillageSnapshot) WithoutPendingInvite(invitee AgentName) VillageSnapshot {
	invites := make(map[AgentName]Invitation, len(s.PendingInvites))
	for k, v := range s.PendingInvites {
		if k != invitee {
			invites[k] = v
		}
	}
	s.PendingInvites = invites
	return s
}
