// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

func setupTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(zap.NewNop())
}

func TestPopOrderByDueTimeThenPriority(t *testing.T) {
	s := setupTestScheduler(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.ScheduleAgentTurn("Ember", "workshop", base.Add(10*time.Minute))
	s.ScheduleConversationTurn("c1", "library", base.Add(5*time.Minute))
	s.ScheduleInviteResponse("Sage", "library", base.Add(5*time.Minute))
	s.ScheduleAgentTurn("River", "town_square", base.Add(time.Hour))

	events := s.PopEventsUpTo(base.Add(30 * time.Minute))
	require.Len(t, events, 3)
	// Equal due times break ties by priority: invite before conversation.
	assert.Equal(t, domain.ScheduledInviteResponse, events[0].EventType)
	assert.Equal(t, domain.ScheduledConversationTurn, events[1].EventType)
	assert.Equal(t, domain.ScheduledAgentTurn, events[2].EventType)

	// River's turn is still queued.
	due, ok := s.EarliestDueTime()
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), due)
	assert.True(t, s.HasPendingAgentTurn("River"))
	assert.False(t, s.HasPendingAgentTurn("Ember"))
}

func TestPendingIndexes(t *testing.T) {
	s := setupTestScheduler(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.False(t, s.HasPendingEvent("Ember"))
	s.ScheduleAgentTurn("Ember", "workshop", base)
	s.ScheduleInviteResponse("Sage", "library", base)
	s.ScheduleConversationTurn("c1", "library", base)

	assert.True(t, s.HasPendingEvent("Ember"))
	assert.True(t, s.HasPendingInviteResponse("Sage"))
	assert.True(t, s.HasPendingConversationTurn("c1"))

	s.CancelAgentEvents("Ember")
	assert.False(t, s.HasPendingEvent("Ember"))
	assert.True(t, s.HasPendingConversationTurn("c1"), "unrelated events survive cancel")
}

func TestObserverModifiers(t *testing.T) {
	s := setupTestScheduler(t)

	s.ForceNextTurn("Ember")
	assert.Equal(t, domain.AgentName("Ember"), s.ForcedNext())

	// A turn by someone else leaves the forced agent in place.
	s.RecordTurn("Sage")
	assert.Equal(t, domain.AgentName("Ember"), s.ForcedNext())

	// The forced agent acting clears it.
	s.RecordTurn("Ember")
	assert.Empty(t, s.ForcedNext())
	assert.Equal(t, 1, s.TurnCount("Ember"))
	assert.Equal(t, 1, s.TurnCount("Sage"))

	s.SkipTurns("River", 2)
	assert.Equal(t, 2, s.SkipCount("River"))
	s.DecrementSkip("River")
	s.DecrementSkip("River")
	assert.Zero(t, s.SkipCount("River"))

	s.ForceNextTurn("Sage")
	s.SkipTurns("River", 3)
	s.ClearAllModifiers()
	assert.Empty(t, s.ForcedNext())
	assert.Zero(t, s.SkipCount("River"))
}

func TestStateRoundTrip(t *testing.T) {
	s := setupTestScheduler(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	s.ScheduleAgentTurn("Ember", "workshop", base.Add(2*time.Hour))
	s.ScheduleConversationTurn("c1", "library", base.Add(5*time.Minute))
	s.ForceNextTurn("Sage")
	s.SkipTurns("River", 1)
	s.RecordTurn("Ember")
	s.SetLastLocationSpeaker("workshop", "Ember")

	state := s.ToState()

	restored := setupTestScheduler(t)
	restored.LoadState(state)

	assert.Equal(t, domain.AgentName("Sage"), restored.ForcedNext())
	assert.Equal(t, 1, restored.SkipCount("River"))
	assert.Equal(t, 1, restored.TurnCount("Ember"))
	assert.Equal(t, domain.AgentName("Ember"), restored.LastLocationSpeaker("workshop"))
	assert.True(t, restored.HasPendingAgentTurn("Ember"))
	assert.True(t, restored.HasPendingConversationTurn("c1"))

	due, ok := restored.EarliestDueTime()
	require.True(t, ok)
	assert.Equal(t, base.Add(5*time.Minute), due)
}
