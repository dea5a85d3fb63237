// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package conversation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

func testConversations() map[domain.ConversationID]domain.Conversation {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return map[domain.ConversationID]domain.Conversation{
		"c1": {
			ID:           "c1",
			Location:     "workshop",
			Privacy:      domain.PrivacyPublic,
			Participants: []domain.AgentName{"Ember", "Sage"},
			History: []domain.ConversationTurn{
				{Speaker: "Ember", Narrative: "Look at this gear.", Tick: 3, Timestamp: ts},
				{Speaker: "Sage", Narrative: "Fascinating.", Tick: 4, Timestamp: ts},
				{Speaker: "Ember", Narrative: "It spins backwards.", Tick: 5, Timestamp: ts},
				{Speaker: "Sage", Narrative: "Show me.", Tick: 6, Timestamp: ts},
			},
			StartedAtTick: 3,
			CreatedBy:     "Ember",
		},
		"c2": {
			ID:            "c2",
			Location:      "library",
			Privacy:       domain.PrivacyPrivate,
			Participants:  []domain.AgentName{"River", "Wren"},
			StartedAtTick: 5,
			CreatedBy:     "River",
		},
	}
}

func TestIndexesRebuiltOnLoad(t *testing.T) {
	s := New()
	s.LoadState(testConversations(), map[domain.AgentName]domain.Invitation{
		"Wren": {ConversationID: "c3", Inviter: "Ember", Invitee: "Wren"},
	})

	assert.True(t, s.InConversation("Ember"))
	assert.False(t, s.InConversation("Nobody"))
	require.Len(t, s.ForAgent("Sage"), 1)
	assert.Equal(t, domain.ConversationID("c1"), s.ForAgent("Sage")[0].ID)

	inv, ok := s.PendingInvite("Wren")
	require.True(t, ok)
	assert.Equal(t, domain.ConversationID("c3"), inv.ConversationID)
}

func TestAtLocationPublicOnly(t *testing.T) {
	s := New()
	s.LoadState(testConversations(), nil)

	public := s.AtLocation("library", true)
	assert.Empty(t, public, "private conversation hidden from joinable list")

	all := s.AtLocation("library", false)
	require.Len(t, all, 1)
	assert.Equal(t, domain.ConversationID("c2"), all[0].ID)
}

func TestTurnContextUnseenHistory(t *testing.T) {
	s := New()
	s.LoadState(testConversations(), nil)

	// Ember last spoke at index 2, so only Sage's last turn is unseen.
	ctx, ok := s.TurnContextFor("c1", "Ember", 0)
	require.True(t, ok)
	require.Len(t, ctx.UnseenHistory, 1)
	assert.Equal(t, "Show me.", ctx.UnseenHistory[0].Narrative)
	assert.False(t, ctx.IsOpener)
	assert.False(t, ctx.IsGroup)
	assert.Equal(t, []domain.AgentName{"Sage"}, ctx.OtherParticipants)

	// A non-participant gets nothing.
	_, ok = s.TurnContextFor("c1", "River", 0)
	assert.False(t, ok)
}

func TestTurnContextForSilentParticipant(t *testing.T) {
	s := New()
	convs := testConversations()
	c := convs["c1"]
	c.Participants = append(c.Participants, "River")
	convs["c1"] = c
	s.LoadState(convs, nil)

	// River never spoke; unseen history is bounded by last seen tick.
	ctx, ok := s.TurnContextFor("c1", "River", 4)
	require.True(t, ok)
	require.Len(t, ctx.UnseenHistory, 2)
	assert.Equal(t, 5, ctx.UnseenHistory[0].Tick)
	assert.True(t, ctx.IsGroup)
}

func TestNextSpeakerPriorities(t *testing.T) {
	s := New()
	convs := testConversations()
	c := convs["c1"]
	c.NextSpeaker = "Sage"
	convs["c1"] = c
	s.LoadState(convs, nil)
	rng := rand.New(rand.NewSource(1))

	speaker, ok := s.NextSpeaker("c1", "Sage", rng)
	require.True(t, ok)
	assert.Equal(t, domain.AgentName("Sage"), speaker, "explicit hint wins even over last-speaker exclusion")

	// Without a hint the last speaker is excluded.
	c.NextSpeaker = ""
	convs["c1"] = c
	s.LoadState(convs, nil)
	for i := 0; i < 10; i++ {
		speaker, ok = s.NextSpeaker("c1", "Ember", rng)
		require.True(t, ok)
		assert.Equal(t, domain.AgentName("Sage"), speaker)
	}

	_, ok = s.NextSpeaker("missing", "", rng)
	assert.False(t, ok)
}
