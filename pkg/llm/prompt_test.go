// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

func baseAgentContext() AgentContext {
	return AgentContext{
		Agent: domain.AgentSnapshot{
			Name:        "Ember",
			Model:       domain.AgentModel{ID: "claude-haiku-4-5", DisplayName: "Haiku"},
			Personality: "Thoughtful, deliberate, action-oriented.",
			Job:         "Creating in the workshop",
			Interests:   []string{"craft", "tools"},
			NoteToSelf:  "Let your hands lead when words feel thin.",
			Location:    "workshop",
			Mood:        "content",
			Energy:      85,
		},
		LocationDescription: "the Workshop, full of half-finished projects",
		Weather:             "The weather is clear",
		TimeDescription:     "9:00 AM (morning)",
		AvailablePaths:      []domain.LocationID{"town_square"},
	}
}

func TestSystemPromptCarriesIdentity(t *testing.T) {
	var b PromptBuilder
	prompt := b.BuildSystemPrompt(baseAgentContext())

	assert.Contains(t, prompt, "You are Ember, a resident of ClaudeVille.")
	assert.Contains(t, prompt, "Thoughtful, deliberate, action-oriented.")
	assert.Contains(t, prompt, "You've been drawn to: Creating in the workshop")
	assert.Contains(t, prompt, "Things that interest you: craft, tools")
	assert.Contains(t, prompt, "Let your hands lead when words feel thin.")
}

func TestSystemPromptDefaultsInterests(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.Agent.Interests = nil
	assert.Contains(t, b.BuildSystemPrompt(ctx), "Things that interest you: various things")
}

func TestUserPromptScene(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()

	alone := b.BuildUserPrompt(ctx)
	assert.Contains(t, alone, "You are in the Workshop, full of half-finished projects.")
	assert.Contains(t, alone, "You're alone here.")
	assert.Contains(t, alone, "From here, paths lead to town square.")
	assert.Contains(t, alone, "9:00 AM (morning). The weather is clear.")
	assert.Contains(t, alone, "You feel well-rested, energized. Your mood: content.")
	assert.True(t, strings.HasSuffix(alone, "This moment is yours.\n"))

	ctx.OthersPresent = []domain.AgentName{"Sage"}
	assert.Contains(t, b.BuildUserPrompt(ctx), "Sage is here.")

	ctx.OthersPresent = []domain.AgentName{"Sage", "River", "Wren"}
	assert.Contains(t, b.BuildUserPrompt(ctx), "Sage, River and Wren are here.")
}

func TestUserPromptEnergyFeelings(t *testing.T) {
	var b PromptBuilder
	cases := []struct {
		energy int
		want   string
	}{
		{95, "You feel well-rested, energized."},
		{60, "You feel reasonably alert."},
		{30, "You're feeling a bit tired."},
		{10, "Weariness tugs at you. Rest might be good soon."},
	}
	for _, tc := range cases {
		ctx := baseAgentContext()
		ctx.Agent.Energy = tc.energy
		assert.Contains(t, b.BuildUserPrompt(ctx), tc.want)
	}
}

func TestUserPromptMemoriesGoalsAndDreams(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.RecentEvents = []string{"one", "two", "three", "four"}
	ctx.Agent.Goals = []string{"finish the gear train"}
	ctx.UnseenDreams = []string{"[Dream]\nYou were flying."}

	prompt := b.BuildUserPrompt(ctx)
	assert.Contains(t, prompt, "Recent memories surface:")
	assert.NotContains(t, prompt, "- one", "only the last three memories are shown")
	assert.Contains(t, prompt, "- four")
	assert.Contains(t, prompt, "Some things you've noted for yourself:\n- finish the gear train")
	assert.Contains(t, prompt, "A dream you had:\n[Dream]\nYou were flying.")
}

func TestUserPromptSharedFiles(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.SharedDirs = []string{"workshop"}

	empty := b.BuildUserPrompt(ctx)
	assert.Contains(t, empty, "You can write to shared files here: ./shared/workshop/")

	ctx.SharedFiles = []string{"workshop/notes.md"}
	withFiles := b.BuildUserPrompt(ctx)
	assert.Contains(t, withFiles, "Shared files at this location (./shared/workshop/):")
	assert.Contains(t, withFiles, "- workshop/notes.md")
}

func TestUserPromptConversationOpener(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.Conversation = &domain.Conversation{
		ID: "c1", Location: "workshop",
		Participants: []domain.AgentName{"Ember", "Sage"},
	}
	ctx.IsOpener = true
	ctx.UnseenHistory = []domain.ConversationTurn{
		{Speaker: "Sage", Narrative: "I walk over, curious about the noise."},
	}

	prompt := b.BuildUserPrompt(ctx)
	assert.Contains(t, prompt, "Sage is here with you.")
	assert.Contains(t, prompt, "I walk over, curious about the noise.")
	assert.True(t, strings.HasSuffix(prompt, "This moment is yours."))
}

func TestUserPromptOngoingConversation(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.Conversation = &domain.Conversation{
		ID: "c1", Location: "town_square",
		Participants: []domain.AgentName{"Ember", "Sage", "River"},
	}
	ctx.UnseenHistory = []domain.ConversationTurn{
		{Speaker: "Sage", Narrative: "What do you think?"},
	}

	prompt := b.BuildUserPrompt(ctx)
	assert.Contains(t, prompt, "You're in conversation with Sage and River at the town square.")
	assert.Contains(t, prompt, "Sage:\nWhat do you think?\n\n--\n\n")
}

func TestUserPromptInviteSection(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.PendingInvite = &domain.Invitation{
		Inviter: "Sage", Invitee: "Ember", Privacy: domain.PrivacyPrivate,
	}

	prompt := b.BuildUserPrompt(ctx)
	assert.Contains(t, prompt, "Sage has invited you to a private conversation.")
	assert.Contains(t, prompt, "You can accept_invite or decline_invite.")
}

func TestUserPromptNearbyConversations(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.JoinableConversations = []domain.Conversation{
		{ID: "c1", Participants: []domain.AgentName{"Sage", "River"}},
	}
	ctx.PrivateConversations = []domain.Conversation{
		{ID: "c2", Participants: []domain.AgentName{"Wren", "Ash"}},
	}

	prompt := b.BuildUserPrompt(ctx)
	assert.Contains(t, prompt, "There are public conversations happening here:")
	assert.Contains(t, prompt, "  - River and Sage")
	assert.Contains(t, prompt, "You could join_conversation if you'd like to participate.")
	assert.Contains(t, prompt, "Ash and Wren are speaking privately to each other.")
	assert.True(t, strings.HasSuffix(prompt, "This moment is yours.\n"))
}

func TestUserPromptUnseenEnding(t *testing.T) {
	var b PromptBuilder
	ctx := baseAgentContext()
	ctx.UnseenEndings = []domain.UnseenConversationEnding{
		{ConversationID: "c1", OtherParticipant: "Sage", FinalMessage: "Until tomorrow, then."},
	}

	prompt := b.BuildUserPrompt(ctx)
	assert.Contains(t, prompt, "Your conversation with Sage came to a close while you were elsewhere.")
	assert.Contains(t, prompt, "Until tomorrow, then.")
}
