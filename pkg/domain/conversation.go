// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

import "time"

// ConversationTurn is a single utterance in a conversation.
type ConversationTurn struct {
	Speaker   AgentName `json:"speaker"`
	Narrative string    `json:"narrative"`
	Tick      int       `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	// IsDeparture marks the speaker's final message before leaving.
	IsDeparture bool `json:"is_departure,omitempty"`
	// NarrativeWithTools is the narrative with tool calls interleaved,
	// kept for display only.
	NarrativeWithTools string `json:"narrative_with_tools,omitempty"`
}

// Invitation is a pending invitation to a conversation. It expires when
// ExpiresAtTick is less than or equal to the current tick.
type Invitation struct {
	ConversationID ConversationID `json:"conversation_id"`
	Inviter        AgentName      `json:"inviter"`
	Invitee        AgentName      `json:"invitee"`
	Location       LocationID     `json:"location"`
	Privacy        Privacy        `json:"privacy"`
	CreatedAtTick  int            `json:"created_at_tick"`
	ExpiresAtTick  int            `json:"expires_at_tick"`
	InvitedAt      time.Time      `json:"invited_at"`
}

// Expired reports whether the invitation has expired at the given tick.
func (i Invitation) Expired(tick int) bool {
	return i.ExpiresAtTick <= tick
}

// Conversation is an active conversation between two or more agents.
type Conversation struct {
	ID            ConversationID     `json:"id"`
	Location      LocationID         `json:"location"`
	Privacy       Privacy            `json:"privacy"`
	Participants  []AgentName        `json:"participants"`
	History       []ConversationTurn `json:"history"`
	StartedAtTick int                `json:"started_at_tick"`
	CreatedBy     AgentName          `json:"created_by"`
	NextSpeaker   AgentName          `json:"next_speaker,omitempty"`
}

// HasParticipant reports whether the agent is a participant.
func (c Conversation) HasParticipant(agent AgentName) bool {
	for _, p := range c.Participants {
		if p == agent {
			return true
		}
	}
	return false
}

// LastSpeaker returns the speaker of the most recent turn, or "" if the
// conversation has no history yet.
func (c Conversation) LastSpeaker() AgentName {
	if len(c.History) == 0 {
		return ""
	}
	return c.History[len(c.History)-1].Speaker
}

// WithParticipant returns a copy with the agent added to the
// participant set. Adding an existing participant is a no-op copy.
func (c Conversation) WithParticipant(agent AgentName) Conversation {
	if c.HasParticipant(agent) {
		c.Participants = append([]AgentName(nil), c.Participants...)
		return c
	}
	participants := make([]AgentName, 0, len(c.Participants)+1)
	participants = append(participants, c.Participants...)
	participants = append(participants, agent)
	c.Participants = participants
	return c
}

// WithoutParticipant returns a copy with the agent removed.
func (c Conversation) WithoutParticipant(agent AgentName) Conversation {
	participants := make([]AgentName, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != agent {
			participants = append(participants, p)
		}
	}
	c.Participants = participants
	return c
}

// WithTurn returns a copy with the turn appended and the pending
// next-speaker hint cleared.
func (c Conversation) WithTurn(turn ConversationTurn) Conversation {
	history := make([]ConversationTurn, 0, len(c.History)+1)
	history = append(history, c.History...)
	history = append(history, turn)
	c.History = history
	c.NextSpeaker = ""
	return c
}

// WithNextSpeaker returns a copy with the next-speaker hint set.
func (c Conversation) WithNextSpeaker(agent AgentName) Conversation {
	c.NextSpeaker = agent
	return c
}

// WithLocation returns a copy relocated to the given location.
func (c Conversation) WithLocation(loc LocationID) Conversation {
	c.Location = loc
	return c
}

// UnseenConversationEnding notifies an agent that a conversation they
// were in ended with a final message they have not yet observed.
type UnseenConversationEnding struct {
	ConversationID   ConversationID `json:"conversation_id"`
	OtherParticipant AgentName      `json:"other_participant"`
	FinalMessage     string         `json:"final_message,omitempty"`
	EndedAtTick      int            `json:"ended_at_tick"`
}
