// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	events := []Event{
		&AgentMovedEvent{
			EventMeta:    NewMeta(TypeAgentMoved, 3, ts),
			Agent:        "Ember",
			FromLocation: "workshop",
			ToLocation:   "library",
		},
		&AgentWokeEvent{
			EventMeta: NewMeta(TypeAgentWoke, 41, ts),
			Agent:     "Sage",
			Location:  "library",
			Reason:    "time_period_changed",
		},
		&ConversationStartedEvent{
			EventMeta:           NewMeta(TypeConversationStarted, 6, ts),
			ConversationID:      "a1b2c3d4",
			Location:            "workshop",
			Privacy:             PrivacyPrivate,
			InitialParticipants: []AgentName{"Ember", "River"},
		},
		&ConversationTurnEvent{
			EventMeta:      NewMeta(TypeConversationTurn, 6, ts),
			ConversationID: "a1b2c3d4",
			Speaker:        "River",
			Narrative:      "Hi.",
			IsDeparture:    true,
		},
		&ConversationEndedEvent{
			EventMeta:         NewMeta(TypeConversationEnded, 9, ts),
			ConversationID:    "a1b2c3d4",
			Reason:            "participants_left",
			FinalParticipants: []AgentName{"Ember"},
		},
		&NightSkippedEvent{
			EventMeta: NewMeta(TypeNightSkipped, 41, ts),
			FromTime:  time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC),
			ToTime:    time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC),
		},
		&AgentTokenUsageRecordedEvent{
			EventMeta:               NewMeta(TypeAgentTokenUsageRecorded, 12, ts),
			Agent:                   "Ember",
			InputTokens:             900,
			OutputTokens:            210,
			CacheReadInputTokens:    4000,
			ModelID:                 "claude-sonnet-4-20250514",
			CumulativeSessionTokens: 4900,
			CumulativeTotalTokens:   5110,
		},
		&DidCompactEvent{
			EventMeta:  NewMeta(TypeDidCompact, 80, ts),
			Agent:      "River",
			PreTokens:  151000,
			PostTokens: 22000,
			Critical:   true,
		},
	}

	for _, original := range events {
		data, err := EncodeEvent(original)
		require.NoError(t, err)

		decoded, err := DecodeEvent(data)
		require.NoError(t, err, "type %s", original.EventType())
		assert.Equal(t, original, decoded)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"meteor_strike","tick":1}`))
	assert.ErrorContains(t, err, "unknown event type")
}

func TestDecodeEventIgnoresUnknownFields(t *testing.T) {
	line := `{"type":"agent_moved","tick":2,"timestamp":"2026-03-01T09:00:00Z",` +
		`"agent":"Ember","from_location":"workshop","to_location":"library","future_field":42}`
	ev, err := DecodeEvent([]byte(line))
	require.NoError(t, err)

	moved, ok := ev.(*AgentMovedEvent)
	require.True(t, ok)
	assert.Equal(t, AgentName("Ember"), moved.Agent)
	assert.Equal(t, LocationID("library"), moved.ToLocation)
}

func TestEncodeEventRequiresType(t *testing.T) {
	_, err := EncodeEvent(&AgentMovedEvent{Agent: "Ember"})
	assert.Error(t, err)
}

func TestEveryEventKindRegistered(t *testing.T) {
	kinds := []string{
		TypeAgentMoved, TypeAgentMoodChanged, TypeAgentEnergyChanged,
		TypeAgentAction, TypeAgentSlept, TypeAgentWoke,
		TypeAgentLastActiveTickUpdated, TypeAgentSessionIDUpdated,
		TypeConversationInvited, TypeConversationInviteAccepted,
		TypeConversationInviteDeclined, TypeConversationInviteExpired,
		TypeConversationStarted, TypeConversationJoined, TypeConversationLeft,
		TypeConversationTurn, TypeConversationNextSpeakerSet,
		TypeConversationMoved, TypeConversationEnded,
		TypeConversationEndingUnseen, TypeConversationEndingSeen,
		TypeWorldEvent, TypeWeatherChanged, TypeNightSkipped,
		TypeDidCompact, TypeAgentTokenUsageRecorded,
		TypeInterpreterTokenUsageRecord, TypeSessionTokensReset,
	}
	for _, kind := range kinds {
		factory, ok := eventFactories[kind]
		require.True(t, ok, "kind %s not registered", kind)
		assert.Equal(t, kind, NewMeta(kind, 0, time.Time{}).Type)
		assert.NotNil(t, factory())
	}
}
