// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package observer

import (
	"fmt"
	"sort"
	"time"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// Display snapshots are flattened, read-only views of village state for
// rendering. They compute derived values so callers never reach into
// domain types.

// AgentDisplay is one agent's state for display.
type AgentDisplay struct {
	Name             domain.AgentName
	ModelDisplay     string
	Location         domain.LocationID
	Mood             string
	Energy           int
	IsSleeping       bool
	InConversation   bool
	HasPendingInvite bool
}

func newAgentDisplay(a domain.AgentSnapshot, inConversation, hasPendingInvite bool) AgentDisplay {
	return AgentDisplay{
		Name:             a.Name,
		ModelDisplay:     a.Model.DisplayName,
		Location:         a.Location,
		Mood:             a.Mood,
		Energy:           a.Energy,
		IsSleeping:       a.IsSleeping,
		InConversation:   inConversation,
		HasPendingInvite: hasPendingInvite,
	}
}

// ConversationDisplay is one conversation's state for display.
type ConversationDisplay struct {
	ID           domain.ConversationID
	Location     domain.LocationID
	Participants []domain.AgentName
	Privacy      domain.Privacy
	TurnCount    int
	LastSpeaker  domain.AgentName
}

func newConversationDisplay(c domain.Conversation) ConversationDisplay {
	participants := append([]domain.AgentName(nil), c.Participants...)
	sort.Slice(participants, func(i, j int) bool { return participants[i] < participants[j] })
	return ConversationDisplay{
		ID:           c.ID,
		Location:     c.Location,
		Participants: participants,
		Privacy:      c.Privacy,
		TurnCount:    len(c.History),
		LastSpeaker:  c.LastSpeaker(),
	}
}

// InviteDisplay is one pending invitation for display.
type InviteDisplay struct {
	ConversationID domain.ConversationID
	Inviter        domain.AgentName
	Invitee        domain.AgentName
	Location       domain.LocationID
	Privacy        domain.Privacy
	ExpiresAtTick  int
	InvitedAt      time.Time
}

func newInviteDisplay(inv domain.Invitation) InviteDisplay {
	return InviteDisplay{
		ConversationID: inv.ConversationID,
		Inviter:        inv.Inviter,
		Invitee:        inv.Invitee,
		Location:       inv.Location,
		Privacy:        inv.Privacy,
		ExpiresAtTick:  inv.ExpiresAtTick,
		InvitedAt:      inv.InvitedAt,
	}
}

// ScheduledEventDisplay is one queued scheduler event for display.
type ScheduledEventDisplay struct {
	DueTime   time.Time
	EventType domain.ScheduledEventType
	TargetID  string
	Location  domain.LocationID
}

// ScheduleDisplay is the scheduling state for display.
type ScheduleDisplay struct {
	PendingEvents []ScheduledEventDisplay
	ForcedNext    domain.AgentName
	SkipCounts    map[domain.AgentName]int
	TurnCounts    map[domain.AgentName]int
}

// TimeDisplay is the simulated time for display.
type TimeDisplay struct {
	Tick      int
	Timestamp time.Time
	DayNumber int
	TimeOfDay domain.TimePeriod
	ClockTime string
}

func newTimeDisplay(ts domain.TimeSnapshot) TimeDisplay {
	return TimeDisplay{
		Tick:      ts.Tick,
		Timestamp: ts.WorldTime,
		DayNumber: ts.DayNumber(),
		TimeOfDay: ts.Period(),
		ClockTime: fmt.Sprintf("%02d:%02d", ts.WorldTime.Hour(), ts.WorldTime.Minute()),
	}
}

// VillageDisplay is the complete village state for display.
type VillageDisplay struct {
	Tick           int
	Time           TimeDisplay
	Weather        domain.Weather
	Agents         map[domain.AgentName]AgentDisplay
	Conversations  []ConversationDisplay
	PendingInvites []InviteDisplay
	Schedule       ScheduleDisplay
}

// CompactionState is one agent's context-window pressure for display.
type CompactionState struct {
	Tokens     int
	Threshold  int
	Percent    int
	Compacting bool
}

// CompactResult summarizes a forced compaction.
type CompactResult struct {
	PreTokens  int
	PostTokens int
	Saved      int
}

// AgentUsage is one agent's cumulative token usage for display.
// SessionTokens approximates the live context window and resets on
// compaction; the other counters only grow.
type AgentUsage struct {
	SessionTokens int
	TotalTokens   int
	TurnCount     int
	TotalInput    int
	TotalOutput   int
	CacheCreation int
	CacheRead     int
}

// InterpreterUsage is the narrative interpreter's overhead for display.
type InterpreterUsage struct {
	TotalTokens int
	TotalInput  int
	TotalOutput int
	CallCount   int
}

// VillageUsage is the combined token spend across all agents and the
// interpreter.
type VillageUsage struct {
	AgentInputTokens       int
	AgentOutputTokens      int
	AgentTotalTokens       int
	AgentTurnCount         int
	CacheCreationTokens    int
	CacheReadTokens        int
	InterpreterTotalTokens int
	InterpreterCallCount   int
	GrandTotalTokens       int
}
