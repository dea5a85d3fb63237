// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

func testToolContext() ToolContext {
	agents := map[domain.AgentName]domain.AgentSnapshot{
		"Ember": {Name: "Ember", Location: "workshop"},
		"Sage":  {Name: "Sage", Location: "workshop"},
		"River": {Name: "River", Location: "town_square"},
	}
	return ToolContext{
		AgentName: "Ember",
		Agent:     agents["Ember"],
		State: TickState{
			Tick:   10,
			Agents: agents,
			World: domain.WorldSnapshot{
				Locations: map[domain.LocationID]domain.Location{
					"workshop":    {ID: "workshop", Connections: []domain.LocationID{"town_square"}},
					"town_square": {ID: "town_square", Connections: []domain.LocationID{"workshop", "library"}},
				},
			},
			Conversations:  map[domain.ConversationID]domain.Conversation{},
			PendingInvites: map[domain.AgentName]domain.Invitation{},
		},
	}
}

func TestInviteRequiresSameLocation(t *testing.T) {
	tools := ConversationTools()
	ctx := testToolContext()

	effects := tools["invite_to_conversation"].Process(map[string]any{
		"invitee": "Sage", "privacy": "private", "topic": "the gear",
	}, ctx)
	require.Len(t, effects, 1)
	invite := effects[0].(domain.InviteToConversationEffect)
	assert.Equal(t, domain.AgentName("Ember"), invite.Inviter)
	assert.Equal(t, domain.AgentName("Sage"), invite.Invitee)
	assert.Equal(t, domain.PrivacyPrivate, invite.Privacy)
	assert.Equal(t, "the gear", invite.Topic)

	// River is elsewhere; unknown agents also fail.
	assert.Empty(t, tools["invite_to_conversation"].Process(map[string]any{
		"invitee": "River", "privacy": "public",
	}, ctx))
	assert.Empty(t, tools["invite_to_conversation"].Process(map[string]any{
		"invitee": "Nobody", "privacy": "public",
	}, ctx))
}

func TestInvitePrivacyDefaultsToPublic(t *testing.T) {
	tools := ConversationTools()
	effects := tools["invite_to_conversation"].Process(map[string]any{
		"invitee": "Sage", "privacy": "whisper",
	}, testToolContext())
	require.Len(t, effects, 1)
	assert.Equal(t, domain.PrivacyPublic, effects[0].(domain.InviteToConversationEffect).Privacy)
}

func TestAcceptAndDeclineRequirePendingInvite(t *testing.T) {
	tools := ConversationTools()
	ctx := testToolContext()

	assert.Empty(t, tools["accept_invite"].Process(nil, ctx))
	assert.Empty(t, tools["decline_invite"].Process(nil, ctx))

	ctx.State.PendingInvites["Ember"] = domain.Invitation{
		ConversationID: "c7", Inviter: "Sage", Invitee: "Ember",
	}

	accepts := tools["accept_invite"].Process(nil, ctx)
	require.Len(t, accepts, 1)
	assert.Equal(t, domain.ConversationID("c7"), accepts[0].(domain.AcceptInviteEffect).ConversationID)

	declines := tools["decline_invite"].Process(nil, ctx)
	require.Len(t, declines, 1)
	assert.Equal(t, domain.ConversationID("c7"), declines[0].(domain.DeclineInviteEffect).ConversationID)
}

func TestJoinConversationValidation(t *testing.T) {
	tools := ConversationTools()
	ctx := testToolContext()
	ctx.State.Conversations["c1"] = domain.Conversation{
		ID: "c1", Location: "workshop", Privacy: domain.PrivacyPublic,
		Participants: []domain.AgentName{"Sage", "River"},
	}
	ctx.State.Conversations["c2"] = domain.Conversation{
		ID: "c2", Location: "workshop", Privacy: domain.PrivacyPrivate,
		Participants: []domain.AgentName{"River", "Wren"},
	}

	effects := tools["join_conversation"].Process(map[string]any{"participant": "Sage"}, ctx)
	require.Len(t, effects, 1)
	assert.Equal(t, domain.ConversationID("c1"), effects[0].(domain.JoinConversationEffect).ConversationID)

	// Private conversations cannot be joined by naming a participant.
	riverOnly := tools["join_conversation"].Process(map[string]any{"participant": "Wren"}, ctx)
	assert.Empty(t, riverOnly)

	// Already a participant.
	ctx.AgentName = "Sage"
	ctx.Agent = ctx.State.Agents["Sage"]
	assert.Empty(t, tools["join_conversation"].Process(map[string]any{"participant": "River"}, ctx))
}

func TestLeaveConversation(t *testing.T) {
	tools := ConversationTools()
	ctx := testToolContext()

	assert.Empty(t, tools["leave_conversation"].Process(nil, ctx))

	ctx.State.Conversations["c1"] = domain.Conversation{
		ID: "c1", Location: "workshop",
		Participants: []domain.AgentName{"Ember", "Sage"},
	}
	effects := tools["leave_conversation"].Process(nil, ctx)
	require.Len(t, effects, 1)
	leave := effects[0].(domain.LeaveConversationEffect)
	assert.Equal(t, domain.AgentName("Ember"), leave.Agent)
	assert.Equal(t, domain.ConversationID("c1"), leave.ConversationID)
}

func TestMoveConversationRequiresConnection(t *testing.T) {
	tools := ConversationTools()
	ctx := testToolContext()
	ctx.State.Conversations["c1"] = domain.Conversation{
		ID: "c1", Location: "workshop",
		Participants: []domain.AgentName{"Ember", "Sage"},
	}

	effects := tools["move_conversation"].Process(map[string]any{"destination": "Town Square"}, ctx)
	require.Len(t, effects, 1)
	move := effects[0].(domain.MoveConversationEffect)
	assert.Equal(t, domain.LocationID("town_square"), move.ToLocation)
	assert.Equal(t, domain.AgentName("Ember"), move.InitiatedBy)

	// The library is not connected to the workshop.
	assert.Empty(t, tools["move_conversation"].Process(map[string]any{"destination": "library"}, ctx))

	// Not in any conversation.
	ctx.State.Conversations = map[domain.ConversationID]domain.Conversation{}
	assert.Empty(t, tools["move_conversation"].Process(map[string]any{"destination": "town_square"}, ctx))
}

func TestMatchConnection(t *testing.T) {
	connections := []domain.LocationID{"town_square", "library"}
	assert.Equal(t, domain.LocationID("town_square"), matchConnection("town_square", connections))
	assert.Equal(t, domain.LocationID("town_square"), matchConnection("the Town Square", connections))
	assert.Equal(t, domain.LocationID("library"), matchConnection("lib", connections))
	assert.Equal(t, domain.LocationID(""), matchConnection("riverbank", connections))
	assert.Equal(t, domain.LocationID(""), matchConnection("", connections))
}
