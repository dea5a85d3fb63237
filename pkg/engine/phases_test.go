// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/compaction"
	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/interpreter"
	"github.com/teradata-labs/hamlet/pkg/llm"
	"github.com/teradata-labs/hamlet/pkg/scheduler"
)

func testContext(tick int, worldTime time.Time, agents ...domain.AgentSnapshot) TickContext {
	agentMap := make(map[domain.AgentName]domain.AgentSnapshot, len(agents))
	locations := map[domain.AgentName]domain.LocationID{}
	for _, a := range agents {
		agentMap[a.Name] = a
		locations[a.Name] = a.Location
	}
	return TickContext{
		Tick:      tick,
		Timestamp: worldTime,
		TimeSnapshot: domain.TimeSnapshot{
			WorldTime: worldTime,
			Tick:      tick,
			StartDate: worldTime,
		},
		World: domain.WorldSnapshot{
			Tick:           tick - 1,
			WorldTime:      worldTime,
			Weather:        domain.WeatherClear,
			Locations:      DefaultLocations(),
			AgentLocations: locations,
		},
		Agents:         agentMap,
		Conversations:  map[domain.ConversationID]domain.Conversation{},
		PendingInvites: map[domain.AgentName]domain.Invitation{},
		TurnResults:    map[domain.AgentName]TurnOutput{},
	}
}

func at(hour int) time.Time {
	return time.Date(2026, 3, 14, hour, 0, 0, 0, time.UTC)
}

func TestWakeCheckPhase(t *testing.T) {
	t.Run("overnight sleep holds until morning", func(t *testing.T) {
		phase := NewWakeCheckPhase(nil)
		sleeper := domain.AgentSnapshot{Name: "Sage", Location: "library"}.WithSleep(5, domain.Night)

		tc := testContext(10, at(23), sleeper)
		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Empty(t, out.Effects, "still night")

		tc = testContext(10, at(7), sleeper)
		out, err = phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		require.Len(t, out.Effects, 1)
		wake := out.Effects[0].(domain.AgentWakeEffect)
		assert.Equal(t, "time_period_changed", wake.Reason)
	})

	t.Run("daytime nap ends when the period turns", func(t *testing.T) {
		phase := NewWakeCheckPhase(nil)
		napper := domain.AgentSnapshot{Name: "Ember", Location: "workshop"}.WithSleep(5, domain.Afternoon)

		tc := testContext(10, at(14), napper)
		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Empty(t, out.Effects)

		tc = testContext(10, at(19), napper)
		out, err = phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		require.Len(t, out.Effects, 1)
	})

	t.Run("visitor arrival wakes the sleeper", func(t *testing.T) {
		phase := NewWakeCheckPhase(nil)
		phase.SetRecentArrivals([]domain.AgentName{"River"})

		sleeper := domain.AgentSnapshot{Name: "Ember", Location: "workshop"}.WithSleep(5, domain.Night)
		visitor := domain.AgentSnapshot{Name: "River", Location: "workshop"}

		tc := testContext(10, at(23), sleeper, visitor)
		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		require.Len(t, out.Effects, 1)
		wake := out.Effects[0].(domain.AgentWakeEffect)
		assert.Equal(t, domain.AgentName("Ember"), wake.Agent)
		assert.Equal(t, "visitor_arrived:River", wake.Reason)
	})

	t.Run("arrival elsewhere does not wake", func(t *testing.T) {
		phase := NewWakeCheckPhase(nil)
		phase.SetRecentArrivals([]domain.AgentName{"River"})

		sleeper := domain.AgentSnapshot{Name: "Ember", Location: "workshop"}.WithSleep(5, domain.Night)
		visitor := domain.AgentSnapshot{Name: "River", Location: "library"}

		tc := testContext(10, at(23), sleeper, visitor)
		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Empty(t, out.Effects)
	})
}

func TestSchedulePhase(t *testing.T) {
	newPhase := func() (*SchedulePhase, *scheduler.Scheduler) {
		sched := scheduler.New(zap.NewNop())
		return NewSchedulePhase(sched, rand.New(rand.NewSource(1)), nil), sched
	}

	t.Run("sleeping agents do not act", func(t *testing.T) {
		phase, _ := newPhase()
		sleeper := domain.AgentSnapshot{Name: "Ember", Location: "workshop"}.WithSleep(5, domain.Night)

		tc := testContext(10, at(23), sleeper)
		tc.ScheduledEvents = []domain.ScheduledEvent{{
			EventType: domain.ScheduledAgentTurn,
			TargetID:  "Ember",
		}}
		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Empty(t, out.AgentsToAct)
	})

	t.Run("skip modifiers consume turns", func(t *testing.T) {
		phase, sched := newPhase()
		sched.SkipTurns("Ember", 1)

		tc := testContext(10, at(10), domain.AgentSnapshot{Name: "Ember", Location: "workshop"})
		tc.ScheduledEvents = []domain.ScheduledEvent{{
			EventType: domain.ScheduledAgentTurn,
			TargetID:  "Ember",
		}}

		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Empty(t, out.AgentsToAct)
		assert.Zero(t, sched.SkipCount("Ember"))

		out, err = phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, []domain.AgentName{"Ember"}, out.AgentsToAct)
	})

	t.Run("conversation turn prefers the awake next-speaker hint", func(t *testing.T) {
		phase, _ := newPhase()

		tc := testContext(10, at(10),
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
		)
		tc.Conversations["abc"] = domain.Conversation{
			ID:           "abc",
			Location:     "town_square",
			Privacy:      domain.PrivacyPublic,
			Participants: []domain.AgentName{"River", "Sage"},
			NextSpeaker:  "Sage",
		}
		tc.ScheduledEvents = []domain.ScheduledEvent{{
			EventType: domain.ScheduledConversationTurn,
			TargetID:  "abc",
		}}

		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, []domain.AgentName{"Sage"}, out.AgentsToAct)
	})

	t.Run("one speaker per location, forced wins", func(t *testing.T) {
		phase, sched := newPhase()
		sched.ForceNextTurn("Sage")

		tc := testContext(10, at(10),
			domain.AgentSnapshot{Name: "Ember", Location: "town_square"},
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
		)
		tc.ScheduledEvents = []domain.ScheduledEvent{
			{EventType: domain.ScheduledAgentTurn, TargetID: "Ember"},
			{EventType: domain.ScheduledAgentTurn, TargetID: "River"},
		}

		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Equal(t, []domain.AgentName{"Sage"}, out.AgentsToAct)
	})
}

func TestInterpretPhase(t *testing.T) {
	inConversation := func() TickContext {
		tc := testContext(10, at(10),
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
		)
		tc.Conversations["abc"] = domain.Conversation{
			ID:           "abc",
			Location:     "town_square",
			Privacy:      domain.PrivacyPublic,
			Participants: []domain.AgentName{"River", "Sage"},
		}
		return tc
	}

	t.Run("narrative becomes a conversation turn with a speaker hint", func(t *testing.T) {
		interp := obsInterpreter{
			"What do you think, Sage?": {
				Narrative:            "What do you think, Sage?",
				SuggestedNextSpeaker: "Sage",
			},
		}
		phase := NewInterpretPhase(interp, nil)

		tc := inConversation()
		tc.TurnResults["River"] = TurnOutput{Narrative: "What do you think, Sage?"}

		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)

		require.Len(t, out.Effects, 2)
		turn := out.Effects[0].(domain.AddConversationTurnEffect)
		assert.Equal(t, domain.ConversationID("abc"), turn.ConversationID)
		assert.Equal(t, domain.AgentName("River"), turn.Speaker)
		next := out.Effects[1].(domain.SetNextSpeakerEffect)
		assert.Equal(t, domain.AgentName("Sage"), next.Speaker)
	})

	t.Run("leaving narrative becomes the parting message", func(t *testing.T) {
		phase := NewInterpretPhase(obsInterpreter{}, nil)

		tc := inConversation()
		tc.Effects = []domain.Effect{domain.LeaveConversationEffect{
			Agent:          "River",
			ConversationID: "abc",
		}}
		tc.TurnResults["River"] = TurnOutput{Narrative: "I must be off. See you soon!"}

		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)

		require.Len(t, out.Effects, 1)
		leave := out.Effects[0].(domain.LeaveConversationEffect)
		assert.Equal(t, "I must be off. See you soon!", leave.LastMessage)
	})

	t.Run("interpreter failure degrades to the raw narrative", func(t *testing.T) {
		failing := failingInterpreter{}
		phase := NewInterpretPhase(failing, nil)

		tc := testContext(10, at(10), domain.AgentSnapshot{Name: "Ember", Location: "workshop"})
		tc.TurnResults["Ember"] = TurnOutput{Narrative: "Sands a table leg."}

		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)
		assert.Empty(t, out.Effects)
		assert.Equal(t, "Sands a table leg.", out.TurnResults["Ember"].Observations.Narrative)
	})

	t.Run("movement and sleep and actions translate", func(t *testing.T) {
		interp := obsInterpreter{
			"done for today": {
				Narrative:        "done for today",
				Movement:         "town_square",
				MoodExpressed:    "tired",
				WantsToSleep:     true,
				ActionsDescribed: []string{"put away the tools"},
			},
		}
		phase := NewInterpretPhase(interp, nil)

		tc := testContext(10, at(10), domain.AgentSnapshot{Name: "Ember", Location: "workshop", Mood: "content"})
		tc.TurnResults["Ember"] = TurnOutput{Narrative: "done for today"}

		out, err := phase.Execute(context.Background(), tc)
		require.NoError(t, err)

		require.Len(t, out.Effects, 4)
		move := out.Effects[0].(domain.MoveAgentEffect)
		assert.Equal(t, domain.LocationID("workshop"), move.FromLocation)
		assert.Equal(t, domain.LocationID("town_square"), move.ToLocation)
		assert.IsType(t, domain.UpdateMoodEffect{}, out.Effects[1])
		assert.IsType(t, domain.AgentSleepEffect{}, out.Effects[2])
		assert.IsType(t, domain.RecordActionEffect{}, out.Effects[3])
	})
}

type failingInterpreter struct{}

func (failingInterpreter) Interpret(context.Context, string, interpreter.Context) (interpreter.Observations, *interpreter.TokenUsage, error) {
	return interpreter.Observations{}, nil, interpreter.ErrNoObservations
}

func TestApplyEffectsPhase(t *testing.T) {
	newPhase := func() *ApplyEffectsPhase {
		phase := NewApplyEffectsPhase(nil, nil)
		phase.newID = func() domain.ConversationID { return "fixed-id" }
		return phase
	}
	ctx := context.Background()

	t.Run("invite reuses the inviter's conversation at the location", func(t *testing.T) {
		phase := newPhase()
		tc := testContext(10, at(10),
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
			domain.AgentSnapshot{Name: "Ember", Location: "town_square"},
		)
		tc.Conversations["existing"] = domain.Conversation{
			ID:           "existing",
			Location:     "town_square",
			Privacy:      domain.PrivacyPublic,
			Participants: []domain.AgentName{"River", "Sage"},
		}
		tc.Effects = []domain.Effect{domain.InviteToConversationEffect{
			Inviter: "River", Invitee: "Ember", Location: "town_square", Privacy: domain.PrivacyPublic,
		}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationID("existing"), out.PendingInvites["Ember"].ConversationID)
	})

	t.Run("accepting into an existing conversation joins it", func(t *testing.T) {
		phase := newPhase()
		tc := testContext(10, at(10),
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
			domain.AgentSnapshot{Name: "Ember", Location: "town_square"},
		)
		tc.Conversations["existing"] = domain.Conversation{
			ID:           "existing",
			Location:     "town_square",
			Privacy:      domain.PrivacyPublic,
			Participants: []domain.AgentName{"River", "Sage"},
		}
		tc.PendingInvites["Ember"] = domain.Invitation{
			ConversationID: "existing", Inviter: "River", Invitee: "Ember",
			Location: "town_square", Privacy: domain.PrivacyPublic,
			CreatedAtTick: 9, ExpiresAtTick: 11,
		}
		tc.Effects = []domain.Effect{domain.AcceptInviteEffect{
			Agent: "Ember", ConversationID: "existing", FirstMessage: "Mind if I join?",
		}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)

		types := eventTypes(out.Events)
		assert.Contains(t, types, domain.TypeConversationInviteAccepted)
		assert.Contains(t, types, domain.TypeConversationJoined)
		assert.NotContains(t, types, domain.TypeConversationStarted)

		conv := out.Conversations["existing"]
		assert.Equal(t, []domain.AgentName{"River", "Sage", "Ember"}, conv.Participants)
		require.Len(t, conv.History, 1)
		assert.Equal(t, "Mind if I join?", conv.History[0].Narrative)
	})

	t.Run("energy is clamped and unchanged values emit nothing", func(t *testing.T) {
		phase := newPhase()
		tc := testContext(10, at(10), domain.AgentSnapshot{Name: "Ember", Location: "workshop", Energy: 100})
		tc.Effects = []domain.Effect{domain.UpdateEnergyEffect{Agent: "Ember", Energy: 250}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)
		assert.Empty(t, out.Events, "clamped to the current value")

		tc.Effects = []domain.Effect{domain.UpdateEnergyEffect{Agent: "Ember", Energy: -5}}
		out, err = phase.Execute(ctx, tc)
		require.NoError(t, err)
		require.Len(t, out.Events, 1)
		assert.Equal(t, 0, out.Events[0].(*domain.AgentEnergyChangedEvent).NewEnergy)
	})

	t.Run("unknown references are skipped without error", func(t *testing.T) {
		phase := newPhase()
		tc := testContext(10, at(10), domain.AgentSnapshot{Name: "Ember", Location: "workshop"})
		tc.Effects = []domain.Effect{
			domain.MoveAgentEffect{Agent: "Ghost", ToLocation: "library"},
			domain.MoveAgentEffect{Agent: "Ember", ToLocation: "nowhere"},
			domain.AddConversationTurnEffect{ConversationID: "missing", Speaker: "Ember"},
			domain.EndConversationEffect{ConversationID: "missing"},
		}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)
		assert.Empty(t, out.Events)
	})

	t.Run("moving a conversation moves its participants", func(t *testing.T) {
		phase := newPhase()
		tc := testContext(10, at(10),
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
		)
		tc.Conversations["abc"] = domain.Conversation{
			ID:           "abc",
			Location:     "town_square",
			Privacy:      domain.PrivacyPublic,
			Participants: []domain.AgentName{"River", "Sage"},
		}
		tc.Effects = []domain.Effect{domain.MoveConversationEffect{
			ConversationID: "abc", InitiatedBy: "River", ToLocation: "library",
		}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)

		require.Len(t, out.Events, 3)
		moved := out.Events[0].(*domain.ConversationMovedEvent)
		assert.Equal(t, domain.LocationID("town_square"), moved.FromLocation)
		assert.Equal(t, domain.LocationID("library"), moved.ToLocation)
		assert.Equal(t, domain.LocationID("library"), out.Conversations["abc"].Location)
		assert.Equal(t, domain.LocationID("library"), out.Agents["River"].Location)
		assert.Equal(t, domain.LocationID("library"), out.Agents["Sage"].Location)
	})

	t.Run("critical compaction runs immediately", func(t *testing.T) {
		provider := llm.NewScriptedProvider()
		provider.TokenCounts["Ember"] = compaction.CriticalThreshold + 1000
		provider.CompactedTo = 500
		compactor := compaction.NewService(provider, zap.NewNop())

		phase := NewApplyEffectsPhase(compactor, nil)
		tc := testContext(10, at(10), domain.AgentSnapshot{
			Name: "Ember", Location: "workshop",
			TokenUsage: domain.TokenUsage{SessionTokens: compaction.CriticalThreshold + 1000},
		})
		tc.Effects = []domain.Effect{domain.ShouldCompactEffect{Agent: "Ember", Critical: true}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)

		require.Len(t, out.Events, 2)
		compacted := out.Events[0].(*domain.DidCompactEvent)
		assert.True(t, compacted.Critical)
		assert.Equal(t, 500, compacted.PostTokens)
		reset := out.Events[1].(*domain.SessionTokensResetEvent)
		assert.Equal(t, 500, reset.NewSessionTokens)
		assert.Equal(t, []domain.AgentName{"Ember"}, provider.Compacted)
	})

	t.Run("non-critical compaction waits for sleep", func(t *testing.T) {
		provider := llm.NewScriptedProvider()
		provider.TokenCounts["Ember"] = compaction.PreSleepThreshold + 1000
		provider.CompactedTo = 500
		compactor := compaction.NewService(provider, zap.NewNop())

		phase := NewApplyEffectsPhase(compactor, nil)
		tc := testContext(10, at(10), domain.AgentSnapshot{Name: "Ember", Location: "workshop"})
		tc.Effects = []domain.Effect{domain.ShouldCompactEffect{Agent: "Ember", Critical: false}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)
		assert.Empty(t, provider.Compacted)
		assert.Empty(t, out.Events)

		tc.Effects = []domain.Effect{
			domain.ShouldCompactEffect{Agent: "Ember", Critical: false},
			domain.AgentSleepEffect{Agent: "Ember"},
		}
		out, err = phase.Execute(ctx, tc)
		require.NoError(t, err)
		assert.Equal(t, []domain.AgentName{"Ember"}, provider.Compacted)
		assert.Contains(t, eventTypes(out.Events), domain.TypeDidCompact)
		assert.Contains(t, eventTypes(out.Events), domain.TypeAgentSlept)
	})

	t.Run("declining an invite removes it", func(t *testing.T) {
		phase := newPhase()
		tc := testContext(10, at(10),
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
		)
		tc.PendingInvites["Sage"] = domain.Invitation{
			ConversationID: "fixed-id", Inviter: "River", Invitee: "Sage",
			CreatedAtTick: 9, ExpiresAtTick: 11,
		}
		tc.Effects = []domain.Effect{domain.DeclineInviteEffect{Agent: "Sage", ConversationID: "fixed-id"}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)
		require.Len(t, out.Events, 1)
		assert.Equal(t, domain.TypeConversationInviteDeclined, out.Events[0].EventType())
		assert.Empty(t, out.PendingInvites)
	})

	t.Run("an invite answered on its expiry tick wins over the sweep", func(t *testing.T) {
		phase := newPhase()
		tc := testContext(11, at(10),
			domain.AgentSnapshot{Name: "River", Location: "town_square"},
			domain.AgentSnapshot{Name: "Sage", Location: "town_square"},
		)
		tc.PendingInvites["Sage"] = domain.Invitation{
			ConversationID: "fixed-id", Inviter: "River", Invitee: "Sage",
			Location: "town_square", Privacy: domain.PrivacyPublic,
			CreatedAtTick: 9, ExpiresAtTick: 11,
		}
		tc.Effects = []domain.Effect{domain.AcceptInviteEffect{Agent: "Sage", ConversationID: "fixed-id"}}

		out, err := phase.Execute(ctx, tc)
		require.NoError(t, err)
		types := eventTypes(out.Events)
		assert.Contains(t, types, domain.TypeConversationStarted)
		assert.NotContains(t, types, domain.TypeConversationInviteExpired)
	})
}
