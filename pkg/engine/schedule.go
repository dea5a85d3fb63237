// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"context"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/scheduler"
)

// SchedulePhase turns the tick's due scheduled events into the set of
// agents that act this tick. It honors forced-next and skip modifiers
// and enforces at most one speaker per location.
type SchedulePhase struct {
	sched  *scheduler.Scheduler
	rng    *rand.Rand
	logger *zap.Logger
}

func NewSchedulePhase(sched *scheduler.Scheduler, rng *rand.Rand, logger *zap.Logger) *SchedulePhase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulePhase{sched: sched, rng: rng, logger: logger.Named("schedule")}
}

func (p *SchedulePhase) Name() string { return "schedule" }

func (p *SchedulePhase) Execute(_ context.Context, tc TickContext) (TickContext, error) {
	acting := make(map[domain.AgentName]struct{})

	for _, ev := range tc.ScheduledEvents {
		switch ev.EventType {
		case domain.ScheduledAgentTurn:
			agent, ok := tc.Agents[domain.AgentName(ev.TargetID)]
			if !ok || agent.IsSleeping {
				continue
			}
			if p.sched.SkipCount(agent.Name) > 0 {
				p.sched.DecrementSkip(agent.Name)
				p.logger.Debug("skipping agent turn",
					zap.String("agent", string(agent.Name)),
					zap.Int("remaining", p.sched.SkipCount(agent.Name)))
				continue
			}
			acting[agent.Name] = struct{}{}

		case domain.ScheduledConversationTurn:
			conv, ok := tc.Conversations[domain.ConversationID(ev.TargetID)]
			if !ok {
				continue
			}
			if speaker, ok := p.pickSpeaker(conv, tc); ok {
				acting[speaker] = struct{}{}
			}

		case domain.ScheduledInviteResponse:
			agent, ok := tc.Agents[domain.AgentName(ev.TargetID)]
			if !ok || agent.IsSleeping {
				continue
			}
			acting[agent.Name] = struct{}{}
		}
	}

	if forced := p.sched.ForcedNext(); forced != "" {
		if agent, exists := tc.Agents[forced]; exists && !agent.IsSleeping {
			acting[forced] = struct{}{}
		}
	}

	names := make([]domain.AgentName, 0, len(acting))
	for name := range acting {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	if len(names) > 1 {
		names = p.onePerLocation(names, tc)
	}

	p.logger.Debug("agents scheduled to act",
		zap.Int("tick", tc.Tick), zap.Int("count", len(names)))
	return tc.WithAgentsToAct(names), nil
}

// pickSpeaker chooses who speaks for a conversation turn: the explicit
// next-speaker hint if awake, otherwise a random awake participant who
// did not just speak.
func (p *SchedulePhase) pickSpeaker(conv domain.Conversation, tc TickContext) (domain.AgentName, bool) {
	if conv.NextSpeaker != "" && conv.HasParticipant(conv.NextSpeaker) {
		if a, ok := tc.Agents[conv.NextSpeaker]; ok && !a.IsSleeping {
			return conv.NextSpeaker, true
		}
	}

	last := conv.LastSpeaker()
	var candidates []domain.AgentName
	for _, part := range conv.Participants {
		a, ok := tc.Agents[part]
		if !ok || a.IsSleeping || part == last {
			continue
		}
		candidates = append(candidates, part)
	}
	if len(candidates) == 0 {
		for _, part := range conv.Participants {
			if part != last {
				candidates = append(candidates, part)
			}
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, conv.Participants...)
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[p.rng.Intn(len(candidates))], true
}

// onePerLocation reduces the acting set to a single agent per location.
// A forced agent wins its location; otherwise the pick avoids whoever
// spoke there last.
func (p *SchedulePhase) onePerLocation(names []domain.AgentName, tc TickContext) []domain.AgentName {
	byLocation := make(map[domain.LocationID][]domain.AgentName)
	var order []domain.LocationID
	for _, name := range names {
		loc := tc.Agents[name].Location
		if _, seen := byLocation[loc]; !seen {
			order = append(order, loc)
		}
		byLocation[loc] = append(byLocation[loc], name)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	forced := p.sched.ForcedNext()

	var selected []domain.AgentName
	for _, loc := range order {
		candidates := byLocation[loc]
		if len(candidates) == 1 {
			selected = append(selected, candidates[0])
			continue
		}

		if forced != "" && containsAgent(candidates, forced) {
			selected = append(selected, forced)
			continue
		}

		lastSpeaker := p.sched.LastLocationSpeaker(loc)
		var pool []domain.AgentName
		for _, c := range candidates {
			if c != lastSpeaker {
				pool = append(pool, c)
			}
		}
		if len(pool) == 0 {
			pool = candidates
		}
		selected = append(selected, pool[p.rng.Intn(len(pool))])
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i] < selected[j] })
	return selected
}

func containsAgent(agents []domain.AgentName, target domain.AgentName) bool {
	for _, a := range agents {
		if a == target {
			return true
		}
	}
	return false
}
