// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

// AgentModel identifies the LLM behind an agent.
type AgentModel struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider"`
}

// TokenUsage tracks an agent's context-window and cumulative token
// consumption. SessionTokens approximates the current context window
// size (cache-read plus input of the most recent turn) and resets on
// compaction; the cumulative counters only ever grow.
type TokenUsage struct {
	SessionTokens            int `json:"session_tokens"`
	TotalInputTokens         int `json:"total_input_tokens"`
	TotalOutputTokens        int `json:"total_output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	TurnCount                int `json:"turn_count"`
}

// TotalTokens returns the cumulative input plus output token count.
func (u TokenUsage) TotalTokens() int {
	return u.TotalInputTokens + u.TotalOutputTokens
}

// AgentSnapshot is the immutable state of one agent at a moment in time.
type AgentSnapshot struct {
	// Identity
	Name        AgentName  `json:"name"`
	Model       AgentModel `json:"model"`
	Personality string     `json:"personality"`
	Job         string     `json:"job"`
	Interests   []string   `json:"interests"`
	NoteToSelf  string     `json:"note_to_self"`

	// Dynamic
	Location      LocationID           `json:"location"`
	Mood          string               `json:"mood"`
	Energy        int                  `json:"energy"`
	Goals         []string             `json:"goals"`
	Relationships map[AgentName]string `json:"relationships"`

	// Sleep
	IsSleeping             bool       `json:"is_sleeping"`
	SleepStartedTick       int        `json:"sleep_started_tick,omitempty"`
	SleepStartedTimePeriod TimePeriod `json:"sleep_started_time_period,omitempty"`

	// Session
	SessionID string `json:"session_id,omitempty"`

	// Turn tracking
	LastActiveTick int        `json:"last_active_tick"`
	TokenUsage     TokenUsage `json:"token_usage"`
}

// WithLocation returns a copy with the location replaced.
func (a AgentSnapshot) WithLocation(loc LocationID) AgentSnapshot {
	a.Location = loc
	return a
}

// WithMood returns a copy with the mood replaced.
func (a AgentSnapshot) WithMood(mood string) AgentSnapshot {
	a.Mood = mood
	return a
}

// WithEnergy returns a copy with the energy replaced, clamped to the
// valid range.
func (a AgentSnapshot) WithEnergy(energy int) AgentSnapshot {
	a.Energy = ClampEnergy(energy)
	return a
}

// WithSleep returns a copy marked asleep as of the given tick/period.
func (a AgentSnapshot) WithSleep(tick int, period TimePeriod) AgentSnapshot {
	a.IsSleeping = true
	a.SleepStartedTick = tick
	a.SleepStartedTimePeriod = period
	return a
}

// WithWake returns a copy marked awake with sleep tracking cleared.
func (a AgentSnapshot) WithWake() AgentSnapshot {
	a.IsSleeping = false
	a.SleepStartedTick = 0
	a.SleepStartedTimePeriod = ""
	return a
}

// WithSessionID returns a copy with the provider session id replaced.
func (a AgentSnapshot) WithSessionID(id string) AgentSnapshot {
	a.SessionID = id
	return a
}

// WithLastActiveTick returns a copy with the last-active tick replaced.
func (a AgentSnapshot) WithLastActiveTick(tick int) AgentSnapshot {
	a.LastActiveTick = tick
	return a
}

// WithTokenUsage returns a copy with the token counters replaced.
func (a AgentSnapshot) WithTokenUsage(u TokenUsage) AgentSnapshot {
	a.TokenUsage = u
	return a
}
