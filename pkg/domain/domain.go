// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package domain contains the immutable value types of the village
// simulation: the world, agents, conversations, invitations, and the
// effect and event sum types that drive all state changes. This package
// breaks import cycles by providing common types that the engine,
// stores, and services all depend on.
//
// All values in this package are treated as immutable. State changes go
// through events applied by the event store; components build modified
// copies instead of mutating in place.
package domain

// AgentName identifies an agent. Distinct from LocationID and
// ConversationID so the compiler catches accidental interchange.
type AgentName string

// LocationID identifies a place in the world.
type LocationID string

// ConversationID identifies a conversation. Minted from the first 8 hex
// characters of a UUID.
type ConversationID string

// Privacy controls who may join a conversation.
type Privacy string

const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

const (
	// InviteExpiryTicks is how many ticks an invitation remains valid
	// before the expiry sweep removes it.
	InviteExpiryTicks = 2

	// SnapshotInterval is how often (in ticks) the engine writes a full
	// snapshot and archives old log segments.
	SnapshotInterval = 100

	// MinEnergy and MaxEnergy bound an agent's energy level.
	MinEnergy = 0
	MaxEnergy = 100
)

// ClampEnergy bounds an energy value to [MinEnergy, MaxEnergy].
func ClampEnergy(v int) int {
	if v < MinEnergy {
		return MinEnergy
	}
	if v > MaxEnergy {
		return MaxEnergy
	}
	return v
}
