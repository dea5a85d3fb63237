// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package eventstore

import (
	"github.com/teradata-labs/hamlet/pkg/domain"
)

// applyEvent folds one event into the snapshot and returns the result.
// This is the single place where events become state. Events that
// reference unknown agents or conversations are applied as no-ops; the
// apply-effects phase guarantees the log never contains them, but a
// hand-edited or truncated log must not crash recovery.
func applyEvent(s domain.VillageSnapshot, ev domain.Event) domain.VillageSnapshot {
	// Every event advances world time.
	if ev.EventTick() > s.World.Tick {
		s.World.Tick = ev.EventTick()
		s.World.WorldTime = ev.EventTime()
	}

	switch e := ev.(type) {
	case *domain.AgentMovedEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			s = s.WithAgent(a.WithLocation(e.ToLocation))
		} else {
			s.World = s.World.WithAgentLocation(e.Agent, e.ToLocation)
		}

	case *domain.AgentMoodChangedEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			s = s.WithAgent(a.WithMood(e.NewMood))
		}

	case *domain.AgentEnergyChangedEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			s = s.WithAgent(a.WithEnergy(e.NewEnergy))
		}

	case *domain.AgentActionEvent:
		// History only; no snapshot change.

	case *domain.AgentSleptEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			period := domain.PeriodOf(e.EventTime())
			s = s.WithAgent(a.WithSleep(e.EventTick(), period))
		}

	case *domain.AgentWokeEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			s = s.WithAgent(a.WithWake())
		}

	case *domain.AgentLastActiveTickUpdatedEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			s = s.WithAgent(a.WithLastActiveTick(e.NewLastActiveTick))
		}
		if e.Location != "" {
			s = withLastLocationSpeaker(s, e.Location, e.Agent)
		}

	case *domain.AgentSessionIDUpdatedEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			s = s.WithAgent(a.WithSessionID(e.NewSessionID))
		}

	case *domain.ConversationInvitedEvent:
		s = s.WithPendingInvite(domain.Invitation{
			ConversationID: e.ConversationID,
			Inviter:        e.Inviter,
			Invitee:        e.Invitee,
			Location:       e.Location,
			Privacy:        e.Privacy,
			CreatedAtTick:  e.EventTick(),
			ExpiresAtTick:  e.EventTick() + domain.InviteExpiryTicks,
			InvitedAt:      e.EventTime(),
		})

	case *domain.ConversationInviteAcceptedEvent:
		s = s.WithoutPendingInvite(e.Invitee)

	case *domain.ConversationInviteDeclinedEvent:
		s = s.WithoutPendingInvite(e.Invitee)

	case *domain.ConversationInviteExpiredEvent:
		s = s.WithoutPendingInvite(e.Invitee)

	case *domain.ConversationStartedEvent:
		createdBy := domain.AgentName("")
		if len(e.InitialParticipants) > 0 {
			createdBy = e.InitialParticipants[0]
		}
		s = s.WithConversation(domain.Conversation{
			ID:            e.ConversationID,
			Location:      e.Location,
			Privacy:       e.Privacy,
			Participants:  append([]domain.AgentName(nil), e.InitialParticipants...),
			StartedAtTick: e.EventTick(),
			CreatedBy:     createdBy,
		})

	case *domain.ConversationJoinedEvent:
		if c, ok := s.Conversations[e.ConversationID]; ok {
			s = s.WithConversation(c.WithParticipant(e.Agent))
		}

	case *domain.ConversationLeftEvent:
		if c, ok := s.Conversations[e.ConversationID]; ok {
			s = s.WithConversation(c.WithoutParticipant(e.Agent))
		}

	case *domain.ConversationTurnEvent:
		if c, ok := s.Conversations[e.ConversationID]; ok {
			s = s.WithConversation(c.WithTurn(domain.ConversationTurn{
				Speaker:            e.Speaker,
				Narrative:          e.Narrative,
				Tick:               e.EventTick(),
				Timestamp:          e.EventTime(),
				IsDeparture:        e.IsDeparture,
				NarrativeWithTools: e.NarrativeWithTools,
			}))
		}

	case *domain.ConversationNextSpeakerSetEvent:
		if c, ok := s.Conversations[e.ConversationID]; ok {
			s = s.WithConversation(c.WithNextSpeaker(e.NextSpeaker))
		}

	case *domain.ConversationMovedEvent:
		// Participant locations are updated by the accompanying
		// AgentMovedEvents.
		if c, ok := s.Conversations[e.ConversationID]; ok {
			s = s.WithConversation(c.WithLocation(e.ToLocation))
		}

	case *domain.ConversationEndedEvent:
		s = s.WithoutConversation(e.ConversationID)

	case *domain.ConversationEndingUnseenEvent:
		s = withUnseenEnding(s, e.Agent, domain.UnseenConversationEnding{
			ConversationID:   e.ConversationID,
			OtherParticipant: e.OtherParticipant,
			FinalMessage:     e.FinalMessage,
			EndedAtTick:      e.EventTick(),
		})

	case *domain.ConversationEndingSeenEvent:
		s = withoutUnseenEnding(s, e.Agent, e.ConversationID)

	case *domain.WorldEventOccurred:
		// History only; surfaced to agents via recent-event queries.

	case *domain.WeatherChangedEvent:
		s.World.Weather = e.NewWeather

	case *domain.NightSkippedEvent:
		// World time already advanced from the event header.

	case *domain.DidCompactEvent:
		// History only; token counters change via SessionTokensResetEvent.

	case *domain.AgentTokenUsageRecordedEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			u := a.TokenUsage
			s = s.WithAgent(a.WithTokenUsage(domain.TokenUsage{
				// Context window = cumulative cache read + this turn's input.
				SessionTokens:            e.CacheReadInputTokens + e.InputTokens,
				TotalInputTokens:         u.TotalInputTokens + e.InputTokens,
				TotalOutputTokens:        u.TotalOutputTokens + e.OutputTokens,
				CacheCreationInputTokens: u.CacheCreationInputTokens + e.CacheCreationInputTokens,
				CacheReadInputTokens:     u.CacheReadInputTokens + e.CacheReadInputTokens,
				TurnCount:                u.TurnCount + 1,
			}))
		}

	case *domain.InterpreterTokenUsageRecordedEvent:
		u := s.World.InterpreterUsage
		s.World.InterpreterUsage = domain.InterpreterUsage{
			TotalInputTokens:  u.TotalInputTokens + e.InputTokens,
			TotalOutputTokens: u.TotalOutputTokens + e.OutputTokens,
			CallCount:         u.CallCount + 1,
		}

	case *domain.SessionTokensResetEvent:
		if a, ok := s.Agents[e.Agent]; ok {
			u := a.TokenUsage
			u.SessionTokens = e.NewSessionTokens
			s = s.WithAgent(a.WithTokenUsage(u))
		}
	}

	return s
}

func withLastLocationSpeaker(s domain.VillageSnapshot, loc domain.LocationID, agent domain.AgentName) domain.VillageSnapshot {
	state := domain.SchedulerState{}
	if s.SchedulerState != nil {
		state = *s.SchedulerState
	}
	speakers := make(map[domain.LocationID]domain.AgentName, len(state.LastLocationSpeaker)+1)
	for k, v := range state.LastLocationSpeaker {
		speakers[k] = v
	}
	speakers[loc] = agent
	state.LastLocationSpeaker = speakers
	s.SchedulerState = &state
	return s
}

func withUnseenEnding(s domain.VillageSnapshot, agent domain.AgentName, ending domain.UnseenConversationEnding) domain.VillageSnapshot {
	endings := make(map[domain.AgentName][]domain.UnseenConversationEnding, len(s.UnseenEndings)+1)
	for k, v := range s.UnseenEndings {
		endings[k] = v
	}
	endings[agent] = append(append([]domain.UnseenConversationEnding(nil), endings[agent]...), ending)
	s.UnseenEndings = endings
	return s
}

func withoutUnseenEnding(s domain.VillageSnapshot, agent domain.AgentName, id domain.ConversationID) domain.VillageSnapshot {
	existing, ok := s.UnseenEndings[agent]
	if !ok {
		return s
	}
	endings := make(map[domain.AgentName][]domain.UnseenConversationEnding, len(s.UnseenEndings))
	for k, v := range s.UnseenEndings {
		endings[k] = v
	}
	var kept []domain.UnseenConversationEnding
	for _, e := range existing {
		if e.ConversationID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(endings, agent)
	} else {
		endings[agent] = kept
	}
	s.UnseenEndings = endings
	return s
}
