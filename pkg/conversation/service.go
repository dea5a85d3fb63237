// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package conversation provides the derived read-side view of the
// conversation lifecycle: fast lookups by agent and location, pending
// invitations, and per-agent turn context. The event store's applier is
// authoritative; this service is rebuilt from its snapshot after every
// commit and is never consulted during effect application.
package conversation

import (
	"math/rand"
	"sort"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// TurnContext is what an agent perceives about their conversation at
// the start of a turn.
type TurnContext struct {
	Conversation      domain.Conversation
	UnseenHistory     []domain.ConversationTurn
	IsOpener          bool
	IsGroup           bool
	OtherParticipants []domain.AgentName
}

// Service indexes conversations and pending invitations for queries.
type Service struct {
	conversations  map[domain.ConversationID]domain.Conversation
	pendingInvites map[domain.AgentName]domain.Invitation
	byAgent        map[domain.AgentName][]domain.ConversationID
}

// New creates an empty service.
func New() *Service {
	s := &Service{}
	s.LoadState(nil, nil)
	return s
}

// LoadState rebuilds all indexes from snapshot state.
func (s *Service) LoadState(
	conversations map[domain.ConversationID]domain.Conversation,
	pendingInvites map[domain.AgentName]domain.Invitation,
) {
	s.conversations = make(map[domain.ConversationID]domain.Conversation, len(conversations))
	for id, c := range conversations {
		s.conversations[id] = c
	}
	s.pendingInvites = make(map[domain.AgentName]domain.Invitation, len(pendingInvites))
	for agent, inv := range pendingInvites {
		s.pendingInvites[agent] = inv
	}
	s.byAgent = make(map[domain.AgentName][]domain.ConversationID)
	for id, c := range s.conversations {
		for _, p := range c.Participants {
			s.byAgent[p] = append(s.byAgent[p], id)
		}
	}
	for _, ids := range s.byAgent {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
}

// Get looks up a conversation by id.
func (s *Service) Get(id domain.ConversationID) (domain.Conversation, bool) {
	c, ok := s.conversations[id]
	return c, ok
}

// All returns a copy of all active conversations.
func (s *Service) All() map[domain.ConversationID]domain.Conversation {
	out := make(map[domain.ConversationID]domain.Conversation, len(s.conversations))
	for id, c := range s.conversations {
		out[id] = c
	}
	return out
}

// ForAgent returns the conversations the agent participates in.
func (s *Service) ForAgent(agent domain.AgentName) []domain.Conversation {
	var out []domain.Conversation
	for _, id := range s.byAgent[agent] {
		if c, ok := s.conversations[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// InConversation reports whether the agent is in any conversation.
func (s *Service) InConversation(agent domain.AgentName) bool {
	return len(s.byAgent[agent]) > 0
}

// AtLocation returns conversations at a location, optionally public
// only, sorted by id for deterministic iteration.
func (s *Service) AtLocation(loc domain.LocationID, publicOnly bool) []domain.Conversation {
	var out []domain.Conversation
	for _, c := range s.conversations {
		if c.Location != loc {
			continue
		}
		if publicOnly && c.Privacy != domain.PrivacyPublic {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PendingInvite returns the agent's pending invitation, if any.
func (s *Service) PendingInvite(agent domain.AgentName) (domain.Invitation, bool) {
	inv, ok := s.pendingInvites[agent]
	return inv, ok
}

// AllPendingInvites returns a copy of all pending invitations.
func (s *Service) AllPendingInvites() map[domain.AgentName]domain.Invitation {
	out := make(map[domain.AgentName]domain.Invitation, len(s.pendingInvites))
	for agent, inv := range s.pendingInvites {
		out[agent] = inv
	}
	return out
}

// TurnContextFor builds the agent's view of a conversation for their
// turn. Unseen history is everything after the agent's own last turn,
// or everything after lastSeenTick if they have not spoken yet.
// Returns ok=false if the conversation is unknown or the agent is not
// a participant.
func (s *Service) TurnContextFor(id domain.ConversationID, agent domain.AgentName, lastSeenTick int) (TurnContext, bool) {
	c, ok := s.conversations[id]
	if !ok || !c.HasParticipant(agent) {
		return TurnContext{}, false
	}

	lastOwn := -1
	for i, turn := range c.History {
		if turn.Speaker == agent {
			lastOwn = i
		}
	}
	var unseen []domain.ConversationTurn
	if lastOwn >= 0 {
		unseen = append(unseen, c.History[lastOwn+1:]...)
	} else {
		for _, turn := range c.History {
			if turn.Tick > lastSeenTick {
				unseen = append(unseen, turn)
			}
		}
	}

	var others []domain.AgentName
	for _, p := range c.Participants {
		if p != agent {
			others = append(others, p)
		}
	}

	return TurnContext{
		Conversation:      c,
		UnseenHistory:     unseen,
		IsOpener:          len(c.History) == 0,
		IsGroup:           len(c.Participants) > 2,
		OtherParticipants: others,
	}, true
}

// NextSpeaker picks who should speak next: the explicit next-speaker
// hint when it is still a participant, otherwise a random participant
// excluding the last speaker.
func (s *Service) NextSpeaker(id domain.ConversationID, lastSpeaker domain.AgentName, rng *rand.Rand) (domain.AgentName, bool) {
	c, ok := s.conversations[id]
	if !ok || len(c.Participants) == 0 {
		return "", false
	}
	if c.NextSpeaker != "" && c.HasParticipant(c.NextSpeaker) {
		return c.NextSpeaker, true
	}
	candidates := make([]domain.AgentName, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != lastSpeaker {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, c.Participants...)
	}
	return candidates[rng.Intn(len(candidates))], true
}
