// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is a fact that has occurred. Events are the authoritative
// history: the event store's applier is the only place where events
// become state. Every event is self-describing JSON with a type
// discriminator so log lines can be parsed independently.
type Event interface {
	// EventType returns the discriminator string.
	EventType() string
	// EventTick returns the tick at which the event occurred.
	EventTick() int
	// EventTime returns the simulated timestamp of the event.
	EventTime() time.Time
}

// EventMeta carries the fields common to every event. Concrete event
// types embed it; constructors fill it via NewMeta.
type EventMeta struct {
	Type      string    `json:"type"`
	Tick      int       `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMeta builds the common header for an event of the given kind.
func NewMeta(kind string, tick int, ts time.Time) EventMeta {
	return EventMeta{Type: kind, Tick: tick, Timestamp: ts}
}

func (m *EventMeta) EventType() string    { return m.Type }
func (m *EventMeta) EventTick() int       { return m.Tick }
func (m *EventMeta) EventTime() time.Time { return m.Timestamp }

// Event type discriminators.
const (
	TypeAgentMoved                  = "agent_moved"
	TypeAgentMoodChanged            = "agent_mood_changed"
	TypeAgentEnergyChanged          = "agent_energy_changed"
	TypeAgentAction                 = "agent_action"
	TypeAgentSlept                  = "agent_slept"
	TypeAgentWoke                   = "agent_woke"
	TypeAgentLastActiveTickUpdated  = "agent_last_active_tick_updated"
	TypeAgentSessionIDUpdated       = "agent_session_id_updated"
	TypeConversationInvited         = "conversation_invited"
	TypeConversationInviteAccepted  = "conversation_invite_accepted"
	TypeConversationInviteDeclined  = "conversation_invite_declined"
	TypeConversationInviteExpired   = "conversation_invite_expired"
	TypeConversationStarted         = "conversation_started"
	TypeConversationJoined          = "conversation_joined"
	TypeConversationLeft            = "conversation_left"
	TypeConversationTurn            = "conversation_turn"
	TypeConversationNextSpeakerSet  = "conversation_next_speaker_set"
	TypeConversationMoved           = "conversation_moved"
	TypeConversationEnded           = "conversation_ended"
	TypeConversationEndingUnseen    = "conversation_ending_unseen"
	TypeConversationEndingSeen      = "conversation_ending_seen"
	TypeWorldEvent                  = "world_event"
	TypeWeatherChanged              = "weather_changed"
	TypeNightSkipped                = "night_skipped"
	TypeDidCompact                  = "did_compact"
	TypeAgentTokenUsageRecorded     = "agent_token_usage_recorded"
	TypeInterpreterTokenUsageRecord = "interpreter_token_usage_recorded"
	TypeSessionTokensReset          = "session_tokens_reset"
)

// --- Agent events ---

// AgentMovedEvent records an agent moving to a new location.
type AgentMovedEvent struct {
	EventMeta
	Agent        AgentName  `json:"agent"`
	FromLocation LocationID `json:"from_location"`
	ToLocation   LocationID `json:"to_location"`
}

// AgentMoodChangedEvent records a mood change.
type AgentMoodChangedEvent struct {
	EventMeta
	Agent   AgentName `json:"agent"`
	OldMood string    `json:"old_mood"`
	NewMood string    `json:"new_mood"`
}

// AgentEnergyChangedEvent records an energy change.
type AgentEnergyChangedEvent struct {
	EventMeta
	Agent     AgentName `json:"agent"`
	OldEnergy int       `json:"old_energy"`
	NewEnergy int       `json:"new_energy"`
}

// AgentActionEvent records a freeform action.
type AgentActionEvent struct {
	EventMeta
	Agent       AgentName  `json:"agent"`
	Location    LocationID `json:"location"`
	Description string     `json:"description"`
}

// AgentSleptEvent records an agent falling asleep.
type AgentSleptEvent struct {
	EventMeta
	Agent    AgentName  `json:"agent"`
	Location LocationID `json:"location"`
}

// AgentWokeEvent records an agent waking up.
type AgentWokeEvent struct {
	EventMeta
	Agent    AgentName  `json:"agent"`
	Location LocationID `json:"location"`
	Reason   string     `json:"reason"`
}

// AgentLastActiveTickUpdatedEvent records that an agent acted. The
// location drives last-speaker turn-taking at each location.
type AgentLastActiveTickUpdatedEvent struct {
	EventMeta
	Agent             AgentName  `json:"agent"`
	Location          LocationID `json:"location"`
	OldLastActiveTick int        `json:"old_last_active_tick"`
	NewLastActiveTick int        `json:"new_last_active_tick"`
}

// AgentSessionIDUpdatedEvent records a provider session id change.
type AgentSessionIDUpdatedEvent struct {
	EventMeta
	Agent        AgentName `json:"agent"`
	OldSessionID string    `json:"old_session_id,omitempty"`
	NewSessionID string    `json:"new_session_id"`
}

// --- Conversation events ---

// ConversationInvitedEvent records an invitation being extended.
type ConversationInvitedEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	Inviter        AgentName      `json:"inviter"`
	Invitee        AgentName      `json:"invitee"`
	Location       LocationID     `json:"location"`
	Privacy        Privacy        `json:"privacy"`
}

// ConversationInviteAcceptedEvent records an invitation being accepted.
type ConversationInviteAcceptedEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	Inviter        AgentName      `json:"inviter"`
	Invitee        AgentName      `json:"invitee"`
}

// ConversationInviteDeclinedEvent records an invitation being declined.
type ConversationInviteDeclinedEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	Inviter        AgentName      `json:"inviter"`
	Invitee        AgentName      `json:"invitee"`
}

// ConversationInviteExpiredEvent records an invitation expiring with no
// response.
type ConversationInviteExpiredEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	Inviter        AgentName      `json:"inviter"`
	Invitee        AgentName      `json:"invitee"`
}

// ConversationStartedEvent records a new conversation forming.
type ConversationStartedEvent struct {
	EventMeta
	ConversationID      ConversationID `json:"conversation_id"`
	Location            LocationID     `json:"location"`
	Privacy             Privacy        `json:"privacy"`
	InitialParticipants []AgentName    `json:"initial_participants"`
}

// ConversationJoinedEvent records an agent joining an existing
// conversation.
type ConversationJoinedEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	Agent          AgentName      `json:"agent"`
}

// ConversationLeftEvent records an agent leaving a conversation.
type ConversationLeftEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	Agent          AgentName      `json:"agent"`
}

// ConversationTurnEvent records an utterance.
type ConversationTurnEvent struct {
	EventMeta
	ConversationID     ConversationID `json:"conversation_id"`
	Speaker            AgentName      `json:"speaker"`
	Narrative          string         `json:"narrative"`
	IsDeparture        bool           `json:"is_departure,omitempty"`
	NarrativeWithTools string         `json:"narrative_with_tools,omitempty"`
}

// ConversationNextSpeakerSetEvent records a next-speaker hint.
type ConversationNextSpeakerSetEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	NextSpeaker    AgentName      `json:"next_speaker"`
}

// ConversationMovedEvent records a conversation relocating together
// with its participants.
type ConversationMovedEvent struct {
	EventMeta
	ConversationID ConversationID `json:"conversation_id"`
	InitiatedBy    AgentName      `json:"initiated_by"`
	FromLocation   LocationID     `json:"from_location"`
	ToLocation     LocationID     `json:"to_location"`
	Participants   []AgentName    `json:"participants"`
}

// ConversationEndedEvent records a conversation ending.
type ConversationEndedEvent struct {
	EventMeta
	ConversationID    ConversationID `json:"conversation_id"`
	Reason            string         `json:"reason"`
	FinalParticipants []AgentName    `json:"final_participants"`
	Summary           string         `json:"summary,omitempty"`
}

// ConversationEndingUnseenEvent records that an agent has not yet seen
// that their conversation ended.
type ConversationEndingUnseenEvent struct {
	EventMeta
	Agent            AgentName      `json:"agent"`
	ConversationID   ConversationID `json:"conversation_id"`
	OtherParticipant AgentName      `json:"other_participant"`
	FinalMessage     string         `json:"final_message,omitempty"`
}

// ConversationEndingSeenEvent records that an agent observed a
// conversation ending.
type ConversationEndingSeenEvent struct {
	EventMeta
	Agent          AgentName      `json:"agent"`
	ConversationID ConversationID `json:"conversation_id"`
}

// --- World events ---

// WorldEventOccurred records an observer-triggered or system world
// event.
type WorldEventOccurred struct {
	EventMeta
	Description    string      `json:"description"`
	Location       LocationID  `json:"location,omitempty"`
	AgentsInvolved []AgentName `json:"agents_involved,omitempty"`
}

// WeatherChangedEvent records a weather change.
type WeatherChangedEvent struct {
	EventMeta
	OldWeather Weather `json:"old_weather"`
	NewWeather Weather `json:"new_weather"`
}

// NightSkippedEvent records simulated time jumping to morning because
// every agent was asleep.
type NightSkippedEvent struct {
	EventMeta
	FromTime time.Time `json:"from_time"`
	ToTime   time.Time `json:"to_time"`
}

// --- Compaction and token events ---

// DidCompactEvent records a successful context compaction.
type DidCompactEvent struct {
	EventMeta
	Agent      AgentName `json:"agent"`
	PreTokens  int       `json:"pre_tokens"`
	PostTokens int       `json:"post_tokens"`
	Critical   bool      `json:"critical"`
}

// AgentTokenUsageRecordedEvent records token usage from a single agent
// turn, with cumulative counters at the time of the event for querying.
type AgentTokenUsageRecordedEvent struct {
	EventMeta
	Agent AgentName `json:"agent"`

	InputTokens              int    `json:"input_tokens"`
	OutputTokens             int    `json:"output_tokens"`
	CacheCreationInputTokens int    `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int    `json:"cache_read_input_tokens,omitempty"`
	ModelID                  string `json:"model_id"`

	CumulativeSessionTokens int `json:"cumulative_session_tokens"`
	CumulativeTotalTokens   int `json:"cumulative_total_tokens"`
}

// InterpreterTokenUsageRecordedEvent records interpreter overhead.
type InterpreterTokenUsageRecordedEvent struct {
	EventMeta
	InputTokens           int `json:"input_tokens"`
	OutputTokens          int `json:"output_tokens"`
	CumulativeTotalTokens int `json:"cumulative_total_tokens"`
}

// SessionTokensResetEvent records a session token counter reset after
// compaction.
type SessionTokensResetEvent struct {
	EventMeta
	Agent            AgentName `json:"agent"`
	OldSessionTokens int       `json:"old_session_tokens"`
	NewSessionTokens int       `json:"new_session_tokens"`
}

// eventFactories routes a type discriminator to an empty concrete event
// for decoding. Every event kind must be registered here.
var eventFactories = map[string]func() Event{
	TypeAgentMoved:                  func() Event { return &AgentMovedEvent{} },
	TypeAgentMoodChanged:            func() Event { return &AgentMoodChangedEvent{} },
	TypeAgentEnergyChanged:          func() Event { return &AgentEnergyChangedEvent{} },
	TypeAgentAction:                 func() Event { return &AgentActionEvent{} },
	TypeAgentSlept:                  func() Event { return &AgentSleptEvent{} },
	TypeAgentWoke:                   func() Event { return &AgentWokeEvent{} },
	TypeAgentLastActiveTickUpdated:  func() Event { return &AgentLastActiveTickUpdatedEvent{} },
	TypeAgentSessionIDUpdated:       func() Event { return &AgentSessionIDUpdatedEvent{} },
	TypeConversationInvited:         func() Event { return &ConversationInvitedEvent{} },
	TypeConversationInviteAccepted:  func() Event { return &ConversationInviteAcceptedEvent{} },
	TypeConversationInviteDeclined:  func() Event { return &ConversationInviteDeclinedEvent{} },
	TypeConversationInviteExpired:   func() Event { return &ConversationInviteExpiredEvent{} },
	TypeConversationStarted:         func() Event { return &ConversationStartedEvent{} },
	TypeConversationJoined:          func() Event { return &ConversationJoinedEvent{} },
	TypeConversationLeft:            func() Event { return &ConversationLeftEvent{} },
	TypeConversationTurn:            func() Event { return &ConversationTurnEvent{} },
	TypeConversationNextSpeakerSet:  func() Event { return &ConversationNextSpeakerSetEvent{} },
	TypeConversationMoved:           func() Event { return &ConversationMovedEvent{} },
	TypeConversationEnded:           func() Event { return &ConversationEndedEvent{} },
	TypeConversationEndingUnseen:    func() Event { return &ConversationEndingUnseenEvent{} },
	TypeConversationEndingSeen:      func() Event { return &ConversationEndingSeenEvent{} },
	TypeWorldEvent:                  func() Event { return &WorldEventOccurred{} },
	TypeWeatherChanged:              func() Event { return &WeatherChangedEvent{} },
	TypeNightSkipped:                func() Event { return &NightSkippedEvent{} },
	TypeDidCompact:                  func() Event { return &DidCompactEvent{} },
	TypeAgentTokenUsageRecorded:     func() Event { return &AgentTokenUsageRecordedEvent{} },
	TypeInterpreterTokenUsageRecord: func() Event { return &InterpreterTokenUsageRecordedEvent{} },
	TypeSessionTokensReset:          func() Event { return &SessionTokensResetEvent{} },
}

// DecodeEvent parses one JSON event line and routes it to the concrete
// type by its discriminator. Unknown fields are ignored.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse event header: %w", err)
	}
	factory, ok := eventFactories[head.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", head.Type)
	}
	ev := factory()
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", head.Type, err)
	}
	return ev, nil
}

// EncodeEvent serializes an event to a single JSON document. The event
// must carry a non-empty type discriminator.
func EncodeEvent(ev Event) ([]byte, error) {
	if ev.EventType() == "" {
		return nil, fmt.Errorf("event %T has no type discriminator", ev)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ev.EventType(), err)
	}
	return data, nil
}
