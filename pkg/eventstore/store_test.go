// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

func testStart() time.Time {
	return time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
}

func testSnapshot() domain.VillageSnapshot {
	start := testStart()
	agents := map[domain.AgentName]domain.AgentSnapshot{
		"Ember": {
			Name:     "Ember",
			Model:    domain.AgentModel{ID: "claude-sonnet-4-20250514", DisplayName: "Sonnet", Provider: "anthropic"},
			Location: "workshop",
			Mood:     "curious",
			Energy:   80,
		},
		"Sage": {
			Name:     "Sage",
			Model:    domain.AgentModel{ID: "claude-sonnet-4-20250514", DisplayName: "Sonnet", Provider: "anthropic"},
			Location: "library",
			Mood:     "calm",
			Energy:   70,
		},
	}
	return domain.VillageSnapshot{
		World: domain.WorldSnapshot{
			Tick:      0,
			WorldTime: start,
			StartDate: start,
			Weather:   domain.WeatherClear,
			Locations: map[domain.LocationID]domain.Location{
				"workshop": {ID: "workshop", Name: "Workshop", Connections: []domain.LocationID{"library"}},
				"library":  {ID: "library", Name: "Library", Connections: []domain.LocationID{"workshop"}},
			},
			AgentLocations: map[domain.AgentName]domain.LocationID{
				"Ember": "workshop",
				"Sage":  "library",
			},
		},
		Agents:         agents,
		Conversations:  map[domain.ConversationID]domain.Conversation{},
		PendingInvites: map[domain.AgentName]domain.Invitation{},
	}
}

func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Initialize(testSnapshot()))
	return store, dir
}

func TestAppendAllAppliesEvents(t *testing.T) {
	store, _ := setupTestStore(t)
	ts := testStart().Add(2 * time.Hour)

	err := store.AppendAll([]domain.Event{
		&domain.AgentMovedEvent{
			EventMeta:    domain.NewMeta(domain.TypeAgentMoved, 1, ts),
			Agent:        "Ember",
			FromLocation: "workshop",
			ToLocation:   "library",
		},
		&domain.AgentMoodChangedEvent{
			EventMeta: domain.NewMeta(domain.TypeAgentMoodChanged, 1, ts),
			Agent:     "Ember",
			OldMood:   "curious",
			NewMood:   "happy",
		},
	})
	require.NoError(t, err)

	snap, err := store.CurrentSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Tick())
	assert.Equal(t, domain.LocationID("library"), snap.Agents["Ember"].Location)
	assert.Equal(t, domain.LocationID("library"), snap.World.AgentLocations["Ember"])
	assert.Equal(t, "happy", snap.Agents["Ember"].Mood)
}

func TestAppendBeforeInitializeFails(t *testing.T) {
	store, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	err = store.Append(&domain.AgentActionEvent{
		EventMeta: domain.NewMeta(domain.TypeAgentAction, 1, testStart()),
		Agent:     "Ember",
	})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRecoverReplaysLog(t *testing.T) {
	storeA, dir := setupTestStore(t)
	ts := testStart()

	// 1..57 ticks of movement back and forth.
	for tick := 1; tick <= 57; tick++ {
		from, to := domain.LocationID("workshop"), domain.LocationID("library")
		if tick%2 == 0 {
			from, to = to, from
		}
		require.NoError(t, storeA.Append(&domain.AgentMovedEvent{
			EventMeta:    domain.NewMeta(domain.TypeAgentMoved, tick, ts.Add(time.Duration(tick)*time.Hour)),
			Agent:        "Ember",
			FromLocation: from,
			ToLocation:   to,
		}))
	}
	want, err := storeA.CurrentSnapshot()
	require.NoError(t, err)

	// Fresh store at the same path simulates a crash and restart.
	storeB, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	got, found, err := storeB.Recover()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)
}

func TestRecoverWithoutSnapshotReturnsNotFound(t *testing.T) {
	store, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, found, err := store.Recover()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestConversationLifecycleThroughEvents(t *testing.T) {
	store, _ := setupTestStore(t)
	ts := testStart().Add(time.Hour)

	require.NoError(t, store.AppendAll([]domain.Event{
		&domain.ConversationInvitedEvent{
			EventMeta:      domain.NewMeta(domain.TypeConversationInvited, 5, ts),
			ConversationID: "c1",
			Inviter:        "Ember",
			Invitee:        "Sage",
			Location:       "workshop",
			Privacy:        domain.PrivacyPrivate,
		},
	}))

	snap, _ := store.CurrentSnapshot()
	inv, ok := snap.PendingInvites["Sage"]
	require.True(t, ok)
	assert.Equal(t, 5+domain.InviteExpiryTicks, inv.ExpiresAtTick)

	require.NoError(t, store.AppendAll([]domain.Event{
		&domain.ConversationInviteAcceptedEvent{
			EventMeta:      domain.NewMeta(domain.TypeConversationInviteAccepted, 6, ts),
			ConversationID: "c1",
			Inviter:        "Ember",
			Invitee:        "Sage",
		},
		&domain.ConversationStartedEvent{
			EventMeta:           domain.NewMeta(domain.TypeConversationStarted, 6, ts),
			ConversationID:      "c1",
			Location:            "workshop",
			Privacy:             domain.PrivacyPrivate,
			InitialParticipants: []domain.AgentName{"Ember", "Sage"},
		},
		&domain.ConversationTurnEvent{
			EventMeta:      domain.NewMeta(domain.TypeConversationTurn, 6, ts),
			ConversationID: "c1",
			Speaker:        "Sage",
			Narrative:      "Hi.",
		},
	}))

	snap, _ = store.CurrentSnapshot()
	assert.Empty(t, snap.PendingInvites)
	conv, ok := snap.Conversations["c1"]
	require.True(t, ok)
	assert.True(t, conv.HasParticipant("Ember"))
	assert.True(t, conv.HasParticipant("Sage"))
	require.Len(t, conv.History, 1)
	assert.Equal(t, "Hi.", conv.History[0].Narrative)

	require.NoError(t, store.AppendAll([]domain.Event{
		&domain.ConversationEndedEvent{
			EventMeta:         domain.NewMeta(domain.TypeConversationEnded, 8, ts),
			ConversationID:    "c1",
			Reason:            "participants_left",
			FinalParticipants: []domain.AgentName{"Ember"},
		},
		&domain.ConversationEndingUnseenEvent{
			EventMeta:        domain.NewMeta(domain.TypeConversationEndingUnseen, 8, ts),
			Agent:            "Ember",
			ConversationID:   "c1",
			OtherParticipant: "Sage",
			FinalMessage:     "Goodbye.",
		},
	}))

	snap, _ = store.CurrentSnapshot()
	assert.Empty(t, snap.Conversations)
	require.Len(t, snap.UnseenEndings["Ember"], 1)
	assert.Equal(t, "Goodbye.", snap.UnseenEndings["Ember"][0].FinalMessage)

	require.NoError(t, store.Append(&domain.ConversationEndingSeenEvent{
		EventMeta:      domain.NewMeta(domain.TypeConversationEndingSeen, 9, ts),
		Agent:          "Ember",
		ConversationID: "c1",
	}))
	snap, _ = store.CurrentSnapshot()
	assert.Empty(t, snap.UnseenEndings)
}

func TestTokenUsageAccumulation(t *testing.T) {
	store, _ := setupTestStore(t)
	ts := testStart()

	require.NoError(t, store.AppendAll([]domain.Event{
		&domain.AgentTokenUsageRecordedEvent{
			EventMeta:            domain.NewMeta(domain.TypeAgentTokenUsageRecorded, 1, ts),
			Agent:                "Ember",
			InputTokens:          1000,
			OutputTokens:         200,
			CacheReadInputTokens: 4000,
			ModelID:              "claude-sonnet-4-20250514",
		},
		&domain.AgentTokenUsageRecordedEvent{
			EventMeta:            domain.NewMeta(domain.TypeAgentTokenUsageRecorded, 2, ts),
			Agent:                "Ember",
			InputTokens:          500,
			OutputTokens:         100,
			CacheReadInputTokens: 5000,
			ModelID:              "claude-sonnet-4-20250514",
		},
	}))

	snap, _ := store.CurrentSnapshot()
	usage := snap.Agents["Ember"].TokenUsage
	assert.Equal(t, 9000+500, usage.SessionTokens, "context window = cumulative cache read + latest input")
	assert.Equal(t, 1500, usage.TotalInputTokens)
	assert.Equal(t, 300, usage.TotalOutputTokens)
	assert.Equal(t, 2, usage.TurnCount)

	require.NoError(t, store.Append(&domain.SessionTokensResetEvent{
		EventMeta:        domain.NewMeta(domain.TypeSessionTokensReset, 3, ts),
		Agent:            "Ember",
		OldSessionTokens: usage.SessionTokens,
		NewSessionTokens: 1200,
	}))
	snap, _ = store.CurrentSnapshot()
	usage = snap.Agents["Ember"].TokenUsage
	assert.Equal(t, 1200, usage.SessionTokens)
	assert.Equal(t, 1500, usage.TotalInputTokens, "cumulative counters survive reset")
}

func TestRecentEventsFilterAndOrder(t *testing.T) {
	store, _ := setupTestStore(t)
	ts := testStart()

	for tick := 1; tick <= 10; tick++ {
		require.NoError(t, store.Append(&domain.AgentActionEvent{
			EventMeta:   domain.NewMeta(domain.TypeAgentAction, tick, ts),
			Agent:       "Ember",
			Location:    "workshop",
			Description: "tinkering",
		}))
	}
	require.NoError(t, store.Append(&domain.WeatherChangedEvent{
		EventMeta:  domain.NewMeta(domain.TypeWeatherChanged, 11, ts),
		OldWeather: domain.WeatherClear,
		NewWeather: domain.WeatherRainy,
	}))

	events, err := store.RecentEvents(3, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, 9, events[0].EventTick())
	assert.Equal(t, 11, events[2].EventTick())

	weather, err := store.RecentEvents(10, map[string]bool{domain.TypeWeatherChanged: true}, 0)
	require.NoError(t, err)
	require.Len(t, weather, 1)
	assert.Equal(t, domain.TypeWeatherChanged, weather[0].EventType())

	since, err := store.RecentEvents(100, nil, 10)
	require.NoError(t, err)
	assert.Len(t, since, 2)
}

func TestLastLocationSpeakerRebuiltFromEvents(t *testing.T) {
	store, dir := setupTestStore(t)
	ts := testStart()

	require.NoError(t, store.Append(&domain.AgentLastActiveTickUpdatedEvent{
		EventMeta:         domain.NewMeta(domain.TypeAgentLastActiveTickUpdated, 2, ts),
		Agent:             "Ember",
		Location:          "workshop",
		OldLastActiveTick: 0,
		NewLastActiveTick: 2,
	}))

	snap, _ := store.CurrentSnapshot()
	require.NotNil(t, snap.SchedulerState)
	assert.Equal(t, domain.AgentName("Ember"), snap.SchedulerState.LastLocationSpeaker["workshop"])
	assert.Equal(t, 2, snap.Agents["Ember"].LastActiveTick)

	// Survives replay on a fresh store.
	storeB, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	got, found, err := storeB.Recover()
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.SchedulerState)
	assert.Equal(t, domain.AgentName("Ember"), got.SchedulerState.LastLocationSpeaker["workshop"])
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snapshots, err := NewSnapshotStore(dir)
	require.NoError(t, err)

	snap := testSnapshot()
	snap.World.Tick = 42
	snap.SchedulerState = &domain.SchedulerState{
		Queue: []domain.ScheduledEvent{{
			DueTime:    testStart().Add(3 * time.Hour),
			Priority:   10,
			EventType:  domain.ScheduledAgentTurn,
			TargetID:   "Ember",
			LocationID: "workshop",
		}},
		ForcedNext:          "Sage",
		SkipCounts:          map[domain.AgentName]int{"Ember": 2},
		TurnCounts:          map[domain.AgentName]int{"Ember": 7, "Sage": 3},
		LastLocationSpeaker: map[domain.LocationID]domain.AgentName{"workshop": "Ember"},
	}
	snap.UnseenEndings = map[domain.AgentName][]domain.UnseenConversationEnding{
		"Sage": {{ConversationID: "c9", OtherParticipant: "Ember", FinalMessage: "Bye.", EndedAtTick: 40}},
	}

	_, err = snapshots.Save(snap)
	require.NoError(t, err)

	loaded, found, err := snapshots.Load(42)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap, loaded)
}
