// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

// Effect is an intent to change state, produced during a tick by agent
// tool calls, the narrative interpreter, or observer commands. Effects
// are transient: the apply-effects phase translates them into events,
// which are the authoritative history.
type Effect interface {
	// Kind returns the effect's discriminator, used for logging and
	// same-tick coordination.
	Kind() string
}

// --- Agent effects ---

// MoveAgentEffect moves an agent between locations.
type MoveAgentEffect struct {
	Agent        AgentName
	FromLocation LocationID
	ToLocation   LocationID
}

func (MoveAgentEffect) Kind() string { return "move_agent" }

// UpdateMoodEffect sets an agent's mood.
type UpdateMoodEffect struct {
	Agent AgentName
	Mood  string
}

func (UpdateMoodEffect) Kind() string { return "update_mood" }

// UpdateEnergyEffect sets an agent's energy. The value is clamped to
// the valid range on application; no event is emitted if unchanged.
type UpdateEnergyEffect struct {
	Agent  AgentName
	Energy int
}

func (UpdateEnergyEffect) Kind() string { return "update_energy" }

// RecordActionEffect records a freeform action an agent performed.
type RecordActionEffect struct {
	Agent       AgentName
	Description string
}

func (RecordActionEffect) Kind() string { return "record_action" }

// AgentSleepEffect puts an agent to sleep.
type AgentSleepEffect struct {
	Agent AgentName
}

func (AgentSleepEffect) Kind() string { return "agent_sleep" }

// AgentWakeEffect wakes an agent. Reason is freeform, typically
// "time_period_changed" or "visitor_arrived".
type AgentWakeEffect struct {
	Agent  AgentName
	Reason string
}

func (AgentWakeEffect) Kind() string { return "agent_wake" }

// UpdateLastActiveTickEffect stamps the agent's last active tick with
// the current tick. No event is emitted if the tick is unchanged.
type UpdateLastActiveTickEffect struct {
	Agent AgentName
}

func (UpdateLastActiveTickEffect) Kind() string { return "update_last_active_tick" }

// UpdateSessionIDEffect records the provider session id used to resume
// the agent's LLM session. No event is emitted if unchanged.
type UpdateSessionIDEffect struct {
	Agent     AgentName
	SessionID string
}

func (UpdateSessionIDEffect) Kind() string { return "update_session_id" }

// --- Conversation effects ---

// InviteToConversationEffect invites another agent to talk. If the
// inviter is already in a conversation at the target location the
// existing conversation id is reused; otherwise a fresh id is minted.
type InviteToConversationEffect struct {
	Inviter  AgentName
	Invitee  AgentName
	Location LocationID
	Privacy  Privacy
	Topic    string
}

func (InviteToConversationEffect) Kind() string { return "invite_to_conversation" }

// AcceptInviteEffect accepts a pending invitation. FirstMessage, when
// non-empty, becomes the conversation's opening turn.
type AcceptInviteEffect struct {
	Agent          AgentName
	ConversationID ConversationID
	FirstMessage   string
}

func (AcceptInviteEffect) Kind() string { return "accept_invite" }

// DeclineInviteEffect declines a pending invitation.
type DeclineInviteEffect struct {
	Agent          AgentName
	ConversationID ConversationID
}

func (DeclineInviteEffect) Kind() string { return "decline_invite" }

// ExpireInviteEffect expires an invitation that got no response.
type ExpireInviteEffect struct {
	ConversationID ConversationID
	Invitee        AgentName
}

func (ExpireInviteEffect) Kind() string { return "expire_invite" }

// JoinConversationEffect joins an existing public conversation.
// FirstMessage, when non-empty, becomes the joiner's opening turn.
type JoinConversationEffect struct {
	Agent          AgentName
	ConversationID ConversationID
	FirstMessage   string
}

func (JoinConversationEffect) Kind() string { return "join_conversation" }

// LeaveConversationEffect removes an agent from a conversation.
// LastMessage, when non-empty, becomes a departure turn emitted before
// the leave event.
type LeaveConversationEffect struct {
	Agent          AgentName
	ConversationID ConversationID
	LastMessage    string
}

func (LeaveConversationEffect) Kind() string { return "leave_conversation" }

// MoveConversationEffect relocates a conversation and all of its
// participants to a connected location.
type MoveConversationEffect struct {
	ConversationID ConversationID
	InitiatedBy    AgentName
	ToLocation     LocationID
}

func (MoveConversationEffect) Kind() string { return "move_conversation" }

// AddConversationTurnEffect appends an utterance to a conversation.
type AddConversationTurnEffect struct {
	ConversationID     ConversationID
	Speaker            AgentName
	Narrative          string
	NarrativeWithTools string
}

func (AddConversationTurnEffect) Kind() string { return "add_conversation_turn" }

// SetNextSpeakerEffect hints which participant should speak next.
type SetNextSpeakerEffect struct {
	ConversationID ConversationID
	Speaker        AgentName
}

func (SetNextSpeakerEffect) Kind() string { return "set_next_speaker" }

// EndConversationEffect ends a conversation outright.
type EndConversationEffect struct {
	ConversationID ConversationID
	Reason         string
}

func (EndConversationEffect) Kind() string { return "end_conversation" }

// MarkEndingSeenEffect clears an unseen conversation ending after the
// agent has observed it in their turn context.
type MarkEndingSeenEffect struct {
	Agent          AgentName
	ConversationID ConversationID
}

func (MarkEndingSeenEffect) Kind() string { return "mark_ending_seen" }

// --- Compaction and token accounting effects ---

// ShouldCompactEffect requests context compaction for an agent.
// Critical compaction runs immediately; non-critical compaction runs
// only when the agent also goes to sleep this tick.
type ShouldCompactEffect struct {
	Agent    AgentName
	Critical bool
}

func (ShouldCompactEffect) Kind() string { return "should_compact" }

// RecordTokenUsageEffect records token usage from one agent turn.
type RecordTokenUsageEffect struct {
	Agent                    AgentName
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
	ModelID                  string
}

func (RecordTokenUsageEffect) Kind() string { return "record_token_usage" }

// RecordInterpreterTokenUsageEffect records interpreter overhead tokens.
type RecordInterpreterTokenUsageEffect struct {
	InputTokens  int
	OutputTokens int
}

func (RecordInterpreterTokenUsageEffect) Kind() string { return "record_interpreter_token_usage" }

// ResetSessionTokensEffect resets an agent's session token counter
// after compaction. Cumulative counters are unaffected.
type ResetSessionTokensEffect struct {
	Agent            AgentName
	NewSessionTokens int
}

func (ResetSessionTokensEffect) Kind() string { return "reset_session_tokens" }
