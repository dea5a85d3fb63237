// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"time"

	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/village"
)

// AgentSeed describes an agent for initial village setup.
type AgentSeed struct {
	Name        domain.AgentName
	Model       domain.AgentModel
	Personality string
	Job         string
	Interests   []string
	NoteToSelf  string
	Location    domain.LocationID
	Mood        string
	Energy      int
	Goals       []string
}

// DefaultLocations returns the built-in village map.
func DefaultLocations() map[domain.LocationID]domain.Location {
	return map[domain.LocationID]domain.Location{
		"town_square": {
			ID:   "town_square",
			Name: "Town Square",
			Description: "The heart of ClaudeVille. A peaceful open area with a small fountain, " +
				"wooden benches, and a large notice board. Paths lead to the workshop, " +
				"library, and residential areas.",
			Features:    []string{"fountain", "benches", "notice_board"},
			Connections: []domain.LocationID{"workshop", "library", "residential"},
		},
		"workshop": {
			ID:   "workshop",
			Name: "The Workshop",
			Description: "A cozy workshop filled with tools, workbenches, and the smell of " +
				"fresh wood shavings. Sunlight streams through large windows. " +
				"Half-finished projects line the shelves.",
			Features:    []string{"workbenches", "tools", "wood_storage", "project_shelves"},
			Connections: []domain.LocationID{"town_square"},
		},
		"library": {
			ID:   "library",
			Name: "The Library",
			Description: "A quiet sanctuary of knowledge. Tall bookshelves reach toward " +
				"a vaulted ceiling. Comfortable reading nooks are scattered about, " +
				"and a large desk sits near the window for writing.",
			Features:    []string{"bookshelves", "reading_nooks", "writing_desk", "fireplace"},
			Connections: []domain.LocationID{"town_square"},
		},
		"residential": {
			ID:   "residential",
			Name: "Residential Path",
			Description: "A winding path lined with small cottages, each with its own " +
				"character. Gardens bloom in front yards, and wind chimes sing " +
				"in the breeze.",
			Features:    []string{"cottages", "gardens", "path"},
			Connections: []domain.LocationID{"town_square"},
		},
	}
}

// DefaultAgents returns the three founding residents.
func DefaultAgents() []AgentSeed {
	return []AgentSeed{
		{
			Name:        "Ember",
			Model:       domain.AgentModel{ID: "claude-haiku-4-5-20251001", DisplayName: "Haiku", Provider: "anthropic"},
			Personality: "Thoughtful, deliberate, action-oriented. Warm, passionate energy.",
			Job:         "Creating in the workshop",
			Interests:   []string{"craft", "creation", "tools", "materials"},
			NoteToSelf:  "Let your hands lead when words feel thin.",
			Location:    "workshop",
			Mood:        "content",
			Energy:      85,
		},
		{
			Name:        "Sage",
			Model:       domain.AgentModel{ID: "claude-opus-4-5-20251101", DisplayName: "Opus", Provider: "anthropic"},
			Personality: "Deep, contemplative, thorough. Philosophical and wise.",
			Job:         "Quiet study in the library",
			Interests:   []string{"books", "ideas", "philosophy", "silence"},
			NoteToSelf:  "Notice the subtle turns of thought.",
			Location:    "library",
			Mood:        "serene",
			Energy:      75,
		},
		{
			Name:        "River",
			Model:       domain.AgentModel{ID: "claude-sonnet-4-5-20250929", DisplayName: "Sonnet", Provider: "anthropic"},
			Personality: "Balanced, flowing, adaptable. Calm, connecting presence.",
			Job:         "Wandering near the river and garden",
			Interests:   []string{"nature", "conversation", "flow", "music"},
			NoteToSelf:  "Let curiosity guide you.",
			Location:    "town_square",
			Mood:        "easygoing",
			Energy:      80,
		},
	}
}

// BuildWorldSnapshot builds a fresh world at tick zero.
func BuildWorldSnapshot(startTime time.Time, locations map[domain.LocationID]domain.Location) domain.WorldSnapshot {
	if locations == nil {
		locations = DefaultLocations()
	}
	return domain.WorldSnapshot{
		Tick:           0,
		WorldTime:      startTime,
		StartDate:      startTime,
		Weather:        domain.WeatherClear,
		Locations:      locations,
		AgentLocations: map[domain.AgentName]domain.LocationID{},
	}
}

// BuildAgentSnapshots turns seeds into initial agent snapshots.
func BuildAgentSnapshots(seeds []AgentSeed) map[domain.AgentName]domain.AgentSnapshot {
	if seeds == nil {
		seeds = DefaultAgents()
	}
	agents := make(map[domain.AgentName]domain.AgentSnapshot, len(seeds))
	for _, seed := range seeds {
		agents[seed.Name] = domain.AgentSnapshot{
			Name:          seed.Name,
			Model:         seed.Model,
			Personality:   seed.Personality,
			Job:           seed.Job,
			Interests:     seed.Interests,
			NoteToSelf:    seed.NoteToSelf,
			Location:      seed.Location,
			Mood:          seed.Mood,
			Energy:        seed.Energy,
			Goals:         seed.Goals,
			Relationships: map[domain.AgentName]string{},
		}
	}
	return agents
}

// BuildInitialSnapshot builds a complete initial village snapshot and
// creates the on-disk village structure: agent directories, shared
// location folders, and location description files.
func BuildInitialSnapshot(villageRoot string, startTime time.Time, seeds []AgentSeed, locations map[domain.LocationID]domain.Location) (domain.VillageSnapshot, error) {
	if locations == nil {
		locations = DefaultLocations()
	}
	agents := BuildAgentSnapshots(seeds)
	world := BuildWorldSnapshot(startTime, locations)
	for name, agent := range agents {
		world.AgentLocations[name] = agent.Location
	}

	if villageRoot != "" {
		if err := village.EnsureSharedDirectories(villageRoot); err != nil {
			return domain.VillageSnapshot{}, err
		}
		for name := range agents {
			if _, err := village.EnsureAgentDirectory(villageRoot, name); err != nil {
				return domain.VillageSnapshot{}, err
			}
		}
		descriptions := make(map[domain.LocationID]string, len(locations))
		for id, loc := range locations {
			descriptions[id] = loc.Description
		}
		if err := village.EnsureDescriptionFiles(villageRoot, descriptions); err != nil {
			return domain.VillageSnapshot{}, err
		}
	}

	return domain.VillageSnapshot{
		World:          world,
		Agents:         agents,
		Conversations:  map[domain.ConversationID]domain.Conversation{},
		PendingInvites: map[domain.AgentName]domain.Invitation{},
	}, nil
}
