// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/compaction"
	"github.com/teradata-labs/hamlet/pkg/domain"
)

// ApplyEffectsPhase is the single writer of events: it validates each
// accumulated effect against the in-tick state and emits the events it
// implies. Effects referencing unknown agents or conversations are
// skipped with a warning, never an error. Pending invitations that
// expired this tick are swept after all effects are applied.
type ApplyEffectsPhase struct {
	compactor *compaction.Service
	logger    *zap.Logger

	// newID mints conversation ids; replaced in tests for determinism.
	newID func() domain.ConversationID
}

func NewApplyEffectsPhase(compactor *compaction.Service, logger *zap.Logger) *ApplyEffectsPhase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplyEffectsPhase{
		compactor: compactor,
		logger:    logger.Named("apply_effects"),
		newID: func() domain.ConversationID {
			return domain.ConversationID(uuid.NewString()[:8])
		},
	}
}

func (p *ApplyEffectsPhase) Name() string { return "apply_effects" }

func (p *ApplyEffectsPhase) Execute(ctx context.Context, tc TickContext) (TickContext, error) {
	for _, effect := range tc.Effects {
		tc = p.apply(ctx, tc, effect)
	}
	return p.expireInvites(tc), nil
}

func (p *ApplyEffectsPhase) meta(tc TickContext, kind string) domain.EventMeta {
	return domain.NewMeta(kind, tc.Tick, tc.Timestamp)
}

func (p *ApplyEffectsPhase) skip(effect domain.Effect, reason string, fields ...zap.Field) {
	fields = append(fields, zap.String("effect", effect.Kind()))
	p.logger.Warn("skipping effect: "+reason, fields...)
}

func (p *ApplyEffectsPhase) apply(ctx context.Context, tc TickContext, effect domain.Effect) TickContext {
	switch e := effect.(type) {
	case domain.MoveAgentEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok {
			p.skip(e, "unknown agent", zap.String("agent", string(e.Agent)))
			return tc
		}
		if _, ok := tc.World.Locations[e.ToLocation]; !ok {
			p.skip(e, "unknown destination", zap.String("destination", string(e.ToLocation)))
			return tc
		}
		tc = tc.WithEvents(&domain.AgentMovedEvent{
			EventMeta:    p.meta(tc, domain.TypeAgentMoved),
			Agent:        e.Agent,
			FromLocation: agent.Location,
			ToLocation:   e.ToLocation,
		})
		return tc.WithAgent(agent.WithLocation(e.ToLocation))

	case domain.UpdateMoodEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok {
			p.skip(e, "unknown agent", zap.String("agent", string(e.Agent)))
			return tc
		}
		if e.Mood == agent.Mood {
			return tc
		}
		tc = tc.WithEvents(&domain.AgentMoodChangedEvent{
			EventMeta: p.meta(tc, domain.TypeAgentMoodChanged),
			Agent:     e.Agent,
			OldMood:   agent.Mood,
			NewMood:   e.Mood,
		})
		return tc.WithAgent(agent.WithMood(e.Mood))

	case domain.UpdateEnergyEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok {
			p.skip(e, "unknown agent", zap.String("agent", string(e.Agent)))
			return tc
		}
		energy := domain.ClampEnergy(e.Energy)
		if energy == agent.Energy {
			return tc
		}
		tc = tc.WithEvents(&domain.AgentEnergyChangedEvent{
			EventMeta: p.meta(tc, domain.TypeAgentEnergyChanged),
			Agent:     e.Agent,
			OldEnergy: agent.Energy,
			NewEnergy: energy,
		})
		return tc.WithAgent(agent.WithEnergy(energy))

	case domain.RecordActionEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok {
			p.skip(e, "unknown agent", zap.String("agent", string(e.Agent)))
			return tc
		}
		return tc.WithEvents(&domain.AgentActionEvent{
			EventMeta:   p.meta(tc, domain.TypeAgentAction),
			Agent:       e.Agent,
			Location:    agent.Location,
			Description: e.Description,
		})

	case domain.AgentSleepEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok || agent.IsSleeping {
			return tc
		}
		tc = tc.WithEvents(&domain.AgentSleptEvent{
			EventMeta: p.meta(tc, domain.TypeAgentSlept),
			Agent:     e.Agent,
			Location:  agent.Location,
		})
		return tc.WithAgent(agent.WithSleep(tc.Tick, tc.TimeSnapshot.Period()))

	case domain.AgentWakeEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok || !agent.IsSleeping {
			return tc
		}
		reason := e.Reason
		if reason == "" {
			reason = "phase_check"
		}
		tc = tc.WithEvents(&domain.AgentWokeEvent{
			EventMeta: p.meta(tc, domain.TypeAgentWoke),
			Agent:     e.Agent,
			Location:  agent.Location,
			Reason:    reason,
		})
		return tc.WithAgent(agent.WithWake())

	case domain.UpdateLastActiveTickEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok || agent.LastActiveTick == tc.Tick {
			return tc
		}
		tc = tc.WithEvents(&domain.AgentLastActiveTickUpdatedEvent{
			EventMeta:         p.meta(tc, domain.TypeAgentLastActiveTickUpdated),
			Agent:             e.Agent,
			Location:          agent.Location,
			OldLastActiveTick: agent.LastActiveTick,
			NewLastActiveTick: tc.Tick,
		})
		return tc.WithAgent(agent.WithLastActiveTick(tc.Tick))

	case domain.UpdateSessionIDEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok || agent.SessionID == e.SessionID {
			return tc
		}
		tc = tc.WithEvents(&domain.AgentSessionIDUpdatedEvent{
			EventMeta:    p.meta(tc, domain.TypeAgentSessionIDUpdated),
			Agent:        e.Agent,
			OldSessionID: agent.SessionID,
			NewSessionID: e.SessionID,
		})
		return tc.WithAgent(agent.WithSessionID(e.SessionID))

	case domain.InviteToConversationEffect:
		return p.applyInvite(tc, e)
	case domain.AcceptInviteEffect:
		return p.applyAccept(tc, e)
	case domain.DeclineInviteEffect:
		return p.applyDecline(tc, e)
	case domain.ExpireInviteEffect:
		return p.applyExpire(tc, e)
	case domain.JoinConversationEffect:
		return p.applyJoin(tc, e)
	case domain.LeaveConversationEffect:
		return p.applyLeave(tc, e)
	case domain.MoveConversationEffect:
		return p.applyConversationMove(tc, e)

	case domain.AddConversationTurnEffect:
		conv, ok := tc.Conversations[e.ConversationID]
		if !ok || !conv.HasParticipant(e.Speaker) {
			p.skip(e, "unknown conversation or speaker",
				zap.String("conversation", string(e.ConversationID)),
				zap.String("speaker", string(e.Speaker)))
			return tc
		}
		tc = tc.WithEvents(&domain.ConversationTurnEvent{
			EventMeta:          p.meta(tc, domain.TypeConversationTurn),
			ConversationID:     e.ConversationID,
			Speaker:            e.Speaker,
			Narrative:          e.Narrative,
			NarrativeWithTools: e.NarrativeWithTools,
		})
		return tc.WithConversation(conv.WithTurn(domain.ConversationTurn{
			Speaker:            e.Speaker,
			Narrative:          e.Narrative,
			Tick:               tc.Tick,
			Timestamp:          tc.Timestamp,
			NarrativeWithTools: e.NarrativeWithTools,
		}))

	case domain.SetNextSpeakerEffect:
		conv, ok := tc.Conversations[e.ConversationID]
		if !ok || !conv.HasParticipant(e.Speaker) {
			return tc
		}
		tc = tc.WithEvents(&domain.ConversationNextSpeakerSetEvent{
			EventMeta:      p.meta(tc, domain.TypeConversationNextSpeakerSet),
			ConversationID: e.ConversationID,
			NextSpeaker:    e.Speaker,
		})
		return tc.WithConversation(conv.WithNextSpeaker(e.Speaker))

	case domain.EndConversationEffect:
		conv, ok := tc.Conversations[e.ConversationID]
		if !ok {
			p.skip(e, "unknown conversation", zap.String("conversation", string(e.ConversationID)))
			return tc
		}
		tc = tc.WithEvents(&domain.ConversationEndedEvent{
			EventMeta:         p.meta(tc, domain.TypeConversationEnded),
			ConversationID:    e.ConversationID,
			Reason:            e.Reason,
			FinalParticipants: conv.Participants,
		})
		return tc.WithoutConversation(e.ConversationID)

	case domain.MarkEndingSeenEffect:
		found := false
		for _, ending := range tc.UnseenEndings[e.Agent] {
			if ending.ConversationID == e.ConversationID {
				found = true
				break
			}
		}
		if !found {
			return tc
		}
		tc = tc.WithEvents(&domain.ConversationEndingSeenEvent{
			EventMeta:      p.meta(tc, domain.TypeConversationEndingSeen),
			Agent:          e.Agent,
			ConversationID: e.ConversationID,
		})
		return tc.WithoutUnseenEnding(e.Agent, e.ConversationID)

	case domain.ShouldCompactEffect:
		return p.applyCompact(ctx, tc, e)

	case domain.RecordTokenUsageEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok {
			p.skip(e, "unknown agent", zap.String("agent", string(e.Agent)))
			return tc
		}
		u := agent.TokenUsage
		updated := domain.TokenUsage{
			SessionTokens:            e.CacheReadInputTokens + e.InputTokens,
			TotalInputTokens:         u.TotalInputTokens + e.InputTokens,
			TotalOutputTokens:        u.TotalOutputTokens + e.OutputTokens,
			CacheCreationInputTokens: u.CacheCreationInputTokens + e.CacheCreationInputTokens,
			CacheReadInputTokens:     u.CacheReadInputTokens + e.CacheReadInputTokens,
			TurnCount:                u.TurnCount + 1,
		}
		tc = tc.WithEvents(&domain.AgentTokenUsageRecordedEvent{
			EventMeta:                p.meta(tc, domain.TypeAgentTokenUsageRecorded),
			Agent:                    e.Agent,
			InputTokens:              e.InputTokens,
			OutputTokens:             e.OutputTokens,
			CacheCreationInputTokens: e.CacheCreationInputTokens,
			CacheReadInputTokens:     e.CacheReadInputTokens,
			ModelID:                  e.ModelID,
			CumulativeSessionTokens:  updated.SessionTokens,
			CumulativeTotalTokens:    updated.TotalTokens(),
		})
		return tc.WithAgent(agent.WithTokenUsage(updated))

	case domain.RecordInterpreterTokenUsageEffect:
		u := tc.World.InterpreterUsage
		tc.World.InterpreterUsage = domain.InterpreterUsage{
			TotalInputTokens:  u.TotalInputTokens + e.InputTokens,
			TotalOutputTokens: u.TotalOutputTokens + e.OutputTokens,
			CallCount:         u.CallCount + 1,
		}
		return tc.WithEvents(&domain.InterpreterTokenUsageRecordedEvent{
			EventMeta:             p.meta(tc, domain.TypeInterpreterTokenUsageRecord),
			InputTokens:           e.InputTokens,
			OutputTokens:          e.OutputTokens,
			CumulativeTotalTokens: tc.World.InterpreterUsage.TotalInputTokens + tc.World.InterpreterUsage.TotalOutputTokens,
		})

	case domain.ResetSessionTokensEffect:
		agent, ok := tc.Agents[e.Agent]
		if !ok {
			p.skip(e, "unknown agent", zap.String("agent", string(e.Agent)))
			return tc
		}
		u := agent.TokenUsage
		old := u.SessionTokens
		u.SessionTokens = e.NewSessionTokens
		tc = tc.WithEvents(&domain.SessionTokensResetEvent{
			EventMeta:        p.meta(tc, domain.TypeSessionTokensReset),
			Agent:            e.Agent,
			OldSessionTokens: old,
			NewSessionTokens: e.NewSessionTokens,
		})
		return tc.WithAgent(agent.WithTokenUsage(u))

	default:
		p.skip(effect, "unhandled effect kind")
		return tc
	}
}

func (p *ApplyEffectsPhase) applyInvite(tc TickContext, e domain.InviteToConversationEffect) TickContext {
	if _, ok := tc.Agents[e.Inviter]; !ok {
		p.skip(e, "unknown inviter", zap.String("inviter", string(e.Inviter)))
		return tc
	}
	if _, ok := tc.Agents[e.Invitee]; !ok {
		p.skip(e, "unknown invitee", zap.String("invitee", string(e.Invitee)))
		return tc
	}

	// Reuse the inviter's existing conversation at the location so the
	// invitee joins it on accept instead of starting a parallel one.
	id := p.newID()
	for _, conv := range tc.ConversationsFor(e.Inviter) {
		if conv.Location == e.Location {
			id = conv.ID
			break
		}
	}

	tc = tc.WithEvents(&domain.ConversationInvitedEvent{
		EventMeta:      p.meta(tc, domain.TypeConversationInvited),
		ConversationID: id,
		Inviter:        e.Inviter,
		Invitee:        e.Invitee,
		Location:       e.Location,
		Privacy:        e.Privacy,
	})
	return tc.WithInvite(domain.Invitation{
		ConversationID: id,
		Inviter:        e.Inviter,
		Invitee:        e.Invitee,
		Location:       e.Location,
		Privacy:        e.Privacy,
		CreatedAtTick:  tc.Tick,
		ExpiresAtTick:  tc.Tick + domain.InviteExpiryTicks,
		InvitedAt:      tc.Timestamp,
	})
}

func (p *ApplyEffectsPhase) applyAccept(tc TickContext, e domain.AcceptInviteEffect) TickContext {
	invite, ok := tc.PendingInvites[e.Agent]
	if !ok || invite.ConversationID != e.ConversationID {
		p.skip(e, "no matching pending invite",
			zap.String("agent", string(e.Agent)),
			zap.String("conversation", string(e.ConversationID)))
		return tc
	}

	tc = tc.WithEvents(&domain.ConversationInviteAcceptedEvent{
		EventMeta:      p.meta(tc, domain.TypeConversationInviteAccepted),
		ConversationID: invite.ConversationID,
		Inviter:        invite.Inviter,
		Invitee:        e.Agent,
	})
	tc = tc.WithoutInvite(e.Agent)

	conv, exists := tc.Conversations[invite.ConversationID]
	if exists {
		tc = tc.WithEvents(&domain.ConversationJoinedEvent{
			EventMeta:      p.meta(tc, domain.TypeConversationJoined),
			ConversationID: invite.ConversationID,
			Agent:          e.Agent,
		})
		conv = conv.WithParticipant(e.Agent)
	} else {
		participants := []domain.AgentName{invite.Inviter, e.Agent}
		tc = tc.WithEvents(&domain.ConversationStartedEvent{
			EventMeta:           p.meta(tc, domain.TypeConversationStarted),
			ConversationID:      invite.ConversationID,
			Location:            invite.Location,
			Privacy:             invite.Privacy,
			InitialParticipants: participants,
		})
		conv = domain.Conversation{
			ID:            invite.ConversationID,
			Location:      invite.Location,
			Privacy:       invite.Privacy,
			Participants:  participants,
			StartedAtTick: tc.Tick,
			CreatedBy:     invite.Inviter,
		}
	}
	tc = tc.WithConversation(conv)

	if e.FirstMessage != "" {
		tc = p.apply(context.Background(), tc, domain.AddConversationTurnEffect{
			ConversationID: invite.ConversationID,
			Speaker:        e.Agent,
			Narrative:      e.FirstMessage,
		})
	}
	return tc
}

func (p *ApplyEffectsPhase) applyDecline(tc TickContext, e domain.DeclineInviteEffect) TickContext {
	invite, ok := tc.PendingInvites[e.Agent]
	if !ok || invite.ConversationID != e.ConversationID {
		p.skip(e, "no matching pending invite",
			zap.String("agent", string(e.Agent)),
			zap.String("conversation", string(e.ConversationID)))
		return tc
	}
	tc = tc.WithEvents(&domain.ConversationInviteDeclinedEvent{
		EventMeta:      p.meta(tc, domain.TypeConversationInviteDeclined),
		ConversationID: invite.ConversationID,
		Inviter:        invite.Inviter,
		Invitee:        e.Agent,
	})
	return tc.WithoutInvite(e.Agent)
}

func (p *ApplyEffectsPhase) applyExpire(tc TickContext, e domain.ExpireInviteEffect) TickContext {
	invite, ok := tc.PendingInvites[e.Invitee]
	if !ok || invite.ConversationID != e.ConversationID {
		return tc
	}
	tc = tc.WithEvents(&domain.ConversationInviteExpiredEvent{
		EventMeta:      p.meta(tc, domain.TypeConversationInviteExpired),
		ConversationID: invite.ConversationID,
		Inviter:        invite.Inviter,
		Invitee:        e.Invitee,
	})
	return tc.WithoutInvite(e.Invitee)
}

func (p *ApplyEffectsPhase) applyJoin(tc TickContext, e domain.JoinConversationEffect) TickContext {
	conv, ok := tc.Conversations[e.ConversationID]
	if !ok {
		p.skip(e, "unknown conversation", zap.String("conversation", string(e.ConversationID)))
		return tc
	}
	if conv.HasParticipant(e.Agent) {
		return tc
	}
	tc = tc.WithEvents(&domain.ConversationJoinedEvent{
		EventMeta:      p.meta(tc, domain.TypeConversationJoined),
		ConversationID: e.ConversationID,
		Agent:          e.Agent,
	})
	tc = tc.WithConversation(conv.WithParticipant(e.Agent))

	if e.FirstMessage != "" {
		tc = p.apply(context.Background(), tc, domain.AddConversationTurnEffect{
			ConversationID: e.ConversationID,
			Speaker:        e.Agent,
			Narrative:      e.FirstMessage,
		})
	}
	return tc
}

func (p *ApplyEffectsPhase) applyLeave(tc TickContext, e domain.LeaveConversationEffect) TickContext {
	conv, ok := tc.Conversations[e.ConversationID]
	if !ok || !conv.HasParticipant(e.Agent) {
		p.skip(e, "unknown conversation or non-participant",
			zap.String("conversation", string(e.ConversationID)),
			zap.String("agent", string(e.Agent)))
		return tc
	}

	wasTwoPerson := len(conv.Participants) == 2

	if e.LastMessage != "" {
		tc = tc.WithEvents(&domain.ConversationTurnEvent{
			EventMeta:      p.meta(tc, domain.TypeConversationTurn),
			ConversationID: e.ConversationID,
			Speaker:        e.Agent,
			Narrative:      e.LastMessage,
			IsDeparture:    true,
		})
		conv = conv.WithTurn(domain.ConversationTurn{
			Speaker:     e.Agent,
			Narrative:   e.LastMessage,
			Tick:        tc.Tick,
			Timestamp:   tc.Timestamp,
			IsDeparture: true,
		})
	}

	tc = tc.WithEvents(&domain.ConversationLeftEvent{
		EventMeta:      p.meta(tc, domain.TypeConversationLeft),
		ConversationID: e.ConversationID,
		Agent:          e.Agent,
	})
	conv = conv.WithoutParticipant(e.Agent)

	if len(conv.Participants) >= 2 {
		return tc.WithConversation(conv)
	}

	tc = tc.WithEvents(&domain.ConversationEndedEvent{
		EventMeta:         p.meta(tc, domain.TypeConversationEnded),
		ConversationID:    e.ConversationID,
		Reason:            "not_enough_participants",
		FinalParticipants: conv.Participants,
	})
	if wasTwoPerson && e.LastMessage != "" {
		for _, remaining := range conv.Participants {
			tc = tc.WithEvents(&domain.ConversationEndingUnseenEvent{
				EventMeta:        p.meta(tc, domain.TypeConversationEndingUnseen),
				Agent:            remaining,
				ConversationID:   e.ConversationID,
				OtherParticipant: e.Agent,
				FinalMessage:     e.LastMessage,
			})
			tc = tc.WithUnseenEnding(remaining, domain.UnseenConversationEnding{
				ConversationID:   e.ConversationID,
				OtherParticipant: e.Agent,
				FinalMessage:     e.LastMessage,
				EndedAtTick:      tc.Tick,
			})
		}
	}
	return tc.WithoutConversation(e.ConversationID)
}

func (p *ApplyEffectsPhase) applyConversationMove(tc TickContext, e domain.MoveConversationEffect) TickContext {
	conv, ok := tc.Conversations[e.ConversationID]
	if !ok {
		p.skip(e, "unknown conversation", zap.String("conversation", string(e.ConversationID)))
		return tc
	}
	if _, ok := tc.World.Locations[e.ToLocation]; !ok {
		p.skip(e, "unknown destination", zap.String("destination", string(e.ToLocation)))
		return tc
	}

	tc = tc.WithEvents(&domain.ConversationMovedEvent{
		EventMeta:      p.meta(tc, domain.TypeConversationMoved),
		ConversationID: e.ConversationID,
		InitiatedBy:    e.InitiatedBy,
		FromLocation:   conv.Location,
		ToLocation:     e.ToLocation,
		Participants:   conv.Participants,
	})
	for _, participant := range conv.Participants {
		agent, ok := tc.Agents[participant]
		if !ok || agent.Location == e.ToLocation {
			continue
		}
		tc = tc.WithEvents(&domain.AgentMovedEvent{
			EventMeta:    p.meta(tc, domain.TypeAgentMoved),
			Agent:        participant,
			FromLocation: agent.Location,
			ToLocation:   e.ToLocation,
		})
		tc = tc.WithAgent(agent.WithLocation(e.ToLocation))
	}
	return tc.WithConversation(conv.WithLocation(e.ToLocation))
}

func (p *ApplyEffectsPhase) applyCompact(ctx context.Context, tc TickContext, e domain.ShouldCompactEffect) TickContext {
	if p.compactor == nil {
		return tc
	}
	agent, ok := tc.Agents[e.Agent]
	if !ok {
		p.skip(e, "unknown agent", zap.String("agent", string(e.Agent)))
		return tc
	}

	// Non-critical compaction waits for a natural pause: it only runs
	// when the agent also goes to sleep this tick.
	if !e.Critical && !sleepsThisTick(tc.Effects, e.Agent) {
		return tc
	}

	pre := p.compactor.TokenCount(e.Agent)
	post := p.compactor.ExecuteCompact(ctx, e.Agent, e.Critical)
	if post >= pre {
		return tc
	}

	tc = tc.WithEvents(&domain.DidCompactEvent{
		EventMeta:  p.meta(tc, domain.TypeDidCompact),
		Agent:      e.Agent,
		PreTokens:  pre,
		PostTokens: post,
		Critical:   e.Critical,
	})
	u := agent.TokenUsage
	old := u.SessionTokens
	u.SessionTokens = post
	tc = tc.WithEvents(&domain.SessionTokensResetEvent{
		EventMeta:        p.meta(tc, domain.TypeSessionTokensReset),
		Agent:            e.Agent,
		OldSessionTokens: old,
		NewSessionTokens: post,
	})
	return tc.WithAgent(agent.WithTokenUsage(u))
}

// expireInvites sweeps pending invitations whose expiry tick has
// passed. Responses applied earlier this tick have already removed
// their invites, so an invite answered on its expiry tick wins.
func (p *ApplyEffectsPhase) expireInvites(tc TickContext) TickContext {
	invitees := make([]domain.AgentName, 0, len(tc.PendingInvites))
	for invitee := range tc.PendingInvites {
		invitees = append(invitees, invitee)
	}
	sort.Slice(invitees, func(i, j int) bool { return invitees[i] < invitees[j] })

	for _, invitee := range invitees {
		invite := tc.PendingInvites[invitee]
		if !invite.Expired(tc.Tick) {
			continue
		}
		tc = tc.WithEvents(&domain.ConversationInviteExpiredEvent{
			EventMeta:      p.meta(tc, domain.TypeConversationInviteExpired),
			ConversationID: invite.ConversationID,
			Inviter:        invite.Inviter,
			Invitee:        invitee,
		})
		tc = tc.WithoutInvite(invitee)
	}
	return tc
}

func sleepsThisTick(effects []domain.Effect, agent domain.AgentName) bool {
	for _, e := range effects {
		if sleep, ok := e.(domain.AgentSleepEffect); ok && sleep.Agent == agent {
			return true
		}
	}
	return false
}
