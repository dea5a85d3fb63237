// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package registry holds the in-memory view of agent snapshots with
// location and sleep queries. It is re-hydrated from the event store's
// snapshot after each tick commit; the With* helpers on the domain
// types do the copy-on-write work.
package registry

import (
	"sort"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// AgentRegistry is the registry of all agents in the village. It does
// not manage provider sessions; that lives in the llm package.
type AgentRegistry struct {
	agents map[domain.AgentName]domain.AgentSnapshot
}

// New creates an empty registry.
func New() *AgentRegistry {
	return &AgentRegistry{agents: make(map[domain.AgentName]domain.AgentSnapshot)}
}

// LoadState replaces all agents from a snapshot.
func (r *AgentRegistry) LoadState(agents map[domain.AgentName]domain.AgentSnapshot) {
	r.agents = make(map[domain.AgentName]domain.AgentSnapshot, len(agents))
	for name, a := range agents {
		r.agents[name] = a
	}
}

// Register adds or replaces an agent.
func (r *AgentRegistry) Register(a domain.AgentSnapshot) {
	r.agents[a.Name] = a
}

// Get looks up one agent.
func (r *AgentRegistry) Get(name domain.AgentName) (domain.AgentSnapshot, bool) {
	a, ok := r.agents[name]
	return a, ok
}

// All returns a copy of the agent map.
func (r *AgentRegistry) All() map[domain.AgentName]domain.AgentSnapshot {
	out := make(map[domain.AgentName]domain.AgentSnapshot, len(r.agents))
	for name, a := range r.agents {
		out[name] = a
	}
	return out
}

// Names returns all agent names, sorted for deterministic iteration.
func (r *AgentRegistry) Names() []domain.AgentName {
	names := make([]domain.AgentName, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Count returns the number of agents.
func (r *AgentRegistry) Count() int { return len(r.agents) }

// AtLocation returns all agents at the location.
func (r *AgentRegistry) AtLocation(loc domain.LocationID) []domain.AgentSnapshot {
	var out []domain.AgentSnapshot
	for _, name := range r.Names() {
		if a := r.agents[name]; a.Location == loc {
			out = append(out, a)
		}
	}
	return out
}

// OthersAtLocation returns all agents at the location except one.
func (r *AgentRegistry) OthersAtLocation(loc domain.LocationID, exclude domain.AgentName) []domain.AgentSnapshot {
	var out []domain.AgentSnapshot
	for _, a := range r.AtLocation(loc) {
		if a.Name != exclude {
			out = append(out, a)
		}
	}
	return out
}

// Awake returns all awake agents.
func (r *AgentRegistry) Awake() []domain.AgentSnapshot {
	var out []domain.AgentSnapshot
	for _, name := range r.Names() {
		if a := r.agents[name]; !a.IsSleeping {
			out = append(out, a)
		}
	}
	return out
}

// Sleeping returns all sleeping agents.
func (r *AgentRegistry) Sleeping() []domain.AgentSnapshot {
	var out []domain.AgentSnapshot
	for _, name := range r.Names() {
		if a := r.agents[name]; a.IsSleeping {
			out = append(out, a)
		}
	}
	return out
}

// AllSleeping reports whether every agent is asleep. False for an
// empty registry so an empty village never night-skips.
func (r *AgentRegistry) AllSleeping() bool {
	if len(r.agents) == 0 {
		return false
	}
	for _, a := range r.agents {
		if !a.IsSleeping {
			return false
		}
	}
	return true
}
