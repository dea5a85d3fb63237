// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package scheduler maintains the priority queue of future actions in
// simulated time: agent turns, conversation turns, and invite response
// windows. The observer can override normal scheduling with forced
// turns and skip counts. The queue describes the future, so it is
// persisted with snapshots rather than rebuilt from events.
package scheduler

import (
	"container/heap"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// Priorities; lower sorts first at equal due times.
const (
	PriorityInviteResponse   = 1
	PriorityConversationTurn = 5
	PriorityAgentTurn        = 10
)

// Pacing between scheduled actions, in simulated time.
const (
	ConversationPace   = 5 * time.Minute
	SoloPace           = 120 * time.Minute
	InviteResponsePace = 5 * time.Minute
)

// Scheduler is an event-driven scheduler with a (due time, priority)
// priority queue and O(1) pending lookups. Not safe for concurrent use;
// the engine drives it from the single tick loop.
type Scheduler struct {
	queue eventHeap

	agentEvents        map[domain.AgentName]struct{}
	inviteEvents       map[domain.AgentName]struct{}
	conversationEvents map[domain.ConversationID]struct{}

	forcedNext          domain.AgentName
	skipCounts          map[domain.AgentName]int
	turnCounts          map[domain.AgentName]int
	lastLocationSpeaker map[domain.LocationID]domain.AgentName

	logger *zap.Logger
}

// New creates an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		agentEvents:         make(map[domain.AgentName]struct{}),
		inviteEvents:        make(map[domain.AgentName]struct{}),
		conversationEvents:  make(map[domain.ConversationID]struct{}),
		skipCounts:          make(map[domain.AgentName]int),
		turnCounts:          make(map[domain.AgentName]int),
		lastLocationSpeaker: make(map[domain.LocationID]domain.AgentName),
		logger:              logger.Named("scheduler"),
	}
}

// Schedule inserts an event and indexes it by target.
func (s *Scheduler) Schedule(ev domain.ScheduledEvent) {
	heap.Push(&s.queue, ev)
	s.index(ev)
}

// ScheduleAgentTurn schedules an agent's next solo turn.
func (s *Scheduler) ScheduleAgentTurn(agent domain.AgentName, location domain.LocationID, due time.Time) {
	s.Schedule(domain.ScheduledEvent{
		DueTime:    due,
		Priority:   PriorityAgentTurn,
		EventType:  domain.ScheduledAgentTurn,
		TargetID:   string(agent),
		LocationID: location,
	})
}

// ScheduleConversationTurn schedules the next turn of a conversation.
func (s *Scheduler) ScheduleConversationTurn(id domain.ConversationID, location domain.LocationID, due time.Time) {
	s.Schedule(domain.ScheduledEvent{
		DueTime:    due,
		Priority:   PriorityConversationTurn,
		EventType:  domain.ScheduledConversationTurn,
		TargetID:   string(id),
		LocationID: location,
	})
}

// ScheduleInviteResponse schedules an invitee's response window.
func (s *Scheduler) ScheduleInviteResponse(agent domain.AgentName, location domain.LocationID, due time.Time) {
	s.Schedule(domain.ScheduledEvent{
		DueTime:    due,
		Priority:   PriorityInviteResponse,
		EventType:  domain.ScheduledInviteResponse,
		TargetID:   string(agent),
		LocationID: location,
	})
}

// EarliestDueTime peeks at the earliest due time. ok is false when the
// queue is empty.
func (s *Scheduler) EarliestDueTime() (time.Time, bool) {
	if s.queue.Len() == 0 {
		return time.Time{}, false
	}
	return s.queue[0].DueTime, true
}

// PopEventsUpTo removes and returns all events due at or before t, in
// due-time-then-priority order.
func (s *Scheduler) PopEventsUpTo(t time.Time) []domain.ScheduledEvent {
	var events []domain.ScheduledEvent
	for s.queue.Len() > 0 && !s.queue[0].DueTime.After(t) {
		ev := heap.Pop(&s.queue).(domain.ScheduledEvent)
		s.unindex(ev)
		events = append(events, ev)
	}
	return events
}

// CancelAgentEvents drops every queued event targeting the agent.
func (s *Scheduler) CancelAgentEvents(agent domain.AgentName) {
	delete(s.agentEvents, agent)
	delete(s.inviteEvents, agent)
	kept := s.queue[:0]
	for _, ev := range s.queue {
		if ev.TargetID != string(agent) {
			kept = append(kept, ev)
		}
	}
	s.queue = kept
	heap.Init(&s.queue)
}

// HasPendingAgentTurn reports whether the agent has a queued solo turn.
func (s *Scheduler) HasPendingAgentTurn(agent domain.AgentName) bool {
	_, ok := s.agentEvents[agent]
	return ok
}

// HasPendingInviteResponse reports whether the agent has a queued
// invite response window.
func (s *Scheduler) HasPendingInviteResponse(agent domain.AgentName) bool {
	_, ok := s.inviteEvents[agent]
	return ok
}

// HasPendingConversationTurn reports whether the conversation has a
// queued turn.
func (s *Scheduler) HasPendingConversationTurn(id domain.ConversationID) bool {
	_, ok := s.conversationEvents[id]
	return ok
}

// HasPendingEvent reports whether the agent has any queued event.
func (s *Scheduler) HasPendingEvent(agent domain.AgentName) bool {
	return s.HasPendingAgentTurn(agent) || s.HasPendingInviteResponse(agent)
}

// --- Observer modifiers ---

// ForceNextTurn makes the agent act next regardless of the queue.
func (s *Scheduler) ForceNextTurn(agent domain.AgentName) {
	s.forcedNext = agent
	s.logger.Info("forced next turn", zap.String("agent", string(agent)))
}

// ClearForcedNext clears a pending forced turn.
func (s *Scheduler) ClearForcedNext() { s.forcedNext = "" }

// ForcedNext returns the forced agent, or "".
func (s *Scheduler) ForcedNext() domain.AgentName { return s.forcedNext }

// SkipTurns makes the agent's next count turns be consumed silently.
func (s *Scheduler) SkipTurns(agent domain.AgentName, count int) {
	if count <= 0 {
		delete(s.skipCounts, agent)
		return
	}
	s.skipCounts[agent] = count
}

// SkipCount returns the remaining skip count for the agent.
func (s *Scheduler) SkipCount(agent domain.AgentName) int { return s.skipCounts[agent] }

// DecrementSkip consumes one skipped turn.
func (s *Scheduler) DecrementSkip(agent domain.AgentName) {
	if n, ok := s.skipCounts[agent]; ok {
		if n <= 1 {
			delete(s.skipCounts, agent)
		} else {
			s.skipCounts[agent] = n - 1
		}
	}
}

// ClearAllModifiers drops forced-next and all skip counts.
func (s *Scheduler) ClearAllModifiers() {
	s.forcedNext = ""
	s.skipCounts = make(map[domain.AgentName]int)
}

// RecordTurn notes that the agent acted and clears a matching forced
// turn.
func (s *Scheduler) RecordTurn(agent domain.AgentName) {
	s.turnCounts[agent]++
	if s.forcedNext == agent {
		s.forcedNext = ""
	}
}

// TurnCount returns the total turns the agent has taken.
func (s *Scheduler) TurnCount(agent domain.AgentName) int { return s.turnCounts[agent] }

// LastLocationSpeaker returns the last agent who acted at the location,
// or "".
func (s *Scheduler) LastLocationSpeaker(loc domain.LocationID) domain.AgentName {
	return s.lastLocationSpeaker[loc]
}

// SetLastLocationSpeaker records the last acting agent at a location.
// Normally loaded from state; the event store rebuilds it from
// last-active events during replay.
func (s *Scheduler) SetLastLocationSpeaker(loc domain.LocationID, agent domain.AgentName) {
	s.lastLocationSpeaker[loc] = agent
}

// --- State persistence ---

// ToState exports the queue and modifiers for snapshot persistence.
func (s *Scheduler) ToState() domain.SchedulerState {
	queue := make([]domain.ScheduledEvent, len(s.queue))
	copy(queue, s.queue)
	return domain.SchedulerState{
		Queue:               queue,
		ForcedNext:          s.forcedNext,
		SkipCounts:          copyMap(s.skipCounts),
		TurnCounts:          copyMap(s.turnCounts),
		LastLocationSpeaker: copyMap(s.lastLocationSpeaker),
	}
}

// LoadState replaces the queue and modifiers from a snapshot,
// rebuilding the pending indexes.
func (s *Scheduler) LoadState(state domain.SchedulerState) {
	s.queue = make(eventHeap, len(state.Queue))
	copy(s.queue, state.Queue)
	heap.Init(&s.queue)

	s.agentEvents = make(map[domain.AgentName]struct{})
	s.inviteEvents = make(map[domain.AgentName]struct{})
	s.conversationEvents = make(map[domain.ConversationID]struct{})
	for _, ev := range s.queue {
		s.index(ev)
	}

	s.forcedNext = state.ForcedNext
	s.skipCounts = copyMap(state.SkipCounts)
	s.turnCounts = copyMap(state.TurnCounts)
	s.lastLocationSpeaker = copyMap(state.LastLocationSpeaker)
}

func (s *Scheduler) index(ev domain.ScheduledEvent) {
	switch ev.EventType {
	case domain.ScheduledAgentTurn:
		s.agentEvents[domain.AgentName(ev.TargetID)] = struct{}{}
	case domain.ScheduledInviteResponse:
		s.inviteEvents[domain.AgentName(ev.TargetID)] = struct{}{}
	case domain.ScheduledConversationTurn:
		s.conversationEvents[domain.ConversationID(ev.TargetID)] = struct{}{}
	}
}

func (s *Scheduler) unindex(ev domain.ScheduledEvent) {
	switch ev.EventType {
	case domain.ScheduledAgentTurn:
		delete(s.agentEvents, domain.AgentName(ev.TargetID))
	case domain.ScheduledInviteResponse:
		delete(s.inviteEvents, domain.AgentName(ev.TargetID))
	case domain.ScheduledConversationTurn:
		delete(s.conversationEvents, domain.ConversationID(ev.TargetID))
	}
}

// copyMap always returns a non-nil map so loaded state is safe to
// mutate.
func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// eventHeap orders by due time, then priority (lower first).
type eventHeap []domain.ScheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if !h[i].DueTime.Equal(h[j].DueTime) {
		return h[i].DueTime.Before(h[j].DueTime)
	}
	return h[i].Priority < h[j].Priority
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(domain.ScheduledEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
