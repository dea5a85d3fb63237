// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

import "time"

// Weather is the current weather across the village.
type Weather string

const (
	WeatherClear  Weather = "clear"
	WeatherCloudy Weather = "cloudy"
	WeatherRainy  Weather = "rainy"
	WeatherStormy Weather = "stormy"
	WeatherFoggy  Weather = "foggy"
	WeatherSnowy  Weather = "snowy"
)

// ValidWeather reports whether w is one of the known weather kinds.
func ValidWeather(w Weather) bool {
	switch w {
	case WeatherClear, WeatherCloudy, WeatherRainy, WeatherStormy, WeatherFoggy, WeatherSnowy:
		return true
	}
	return false
}

// Location is a place in the world. Connections are symmetric by
// convention but not enforced.
type Location struct {
	ID          LocationID   `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Features    []string     `json:"features"`
	Connections []LocationID `json:"connections"`
}

// InterpreterUsage tracks interpreter token consumption. Interpreter
// calls are system infrastructure, so their tokens are accounted apart
// from agent tokens.
type InterpreterUsage struct {
	TotalInputTokens  int `json:"total_input_tokens"`
	TotalOutputTokens int `json:"total_output_tokens"`
	CallCount         int `json:"call_count"`
}

// WorldSnapshot is the immutable state of the world at a moment in time.
type WorldSnapshot struct {
	Tick           int                      `json:"tick"`
	WorldTime      time.Time                `json:"world_time"`
	StartDate      time.Time                `json:"start_date"`
	Weather        Weather                  `json:"weather"`
	Locations      map[LocationID]Location  `json:"locations"`
	AgentLocations map[AgentName]LocationID `json:"agent_locations"`

	InterpreterUsage InterpreterUsage `json:"interpreter_usage"`
}

// Time returns the world's TimeSnapshot.
func (w WorldSnapshot) Time() TimeSnapshot {
	return TimeSnapshot{WorldTime: w.WorldTime, Tick: w.Tick, StartDate: w.StartDate}
}

// AgentsAt returns the names of all agents at the given location.
func (w WorldSnapshot) AgentsAt(loc LocationID) []AgentName {
	var out []AgentName
	for name, at := range w.AgentLocations {
		if at == loc {
			out = append(out, name)
		}
	}
	return out
}

// WithAgentLocation returns a copy of the world with one agent's
// location replaced.
func (w WorldSnapshot) WithAgentLocation(agent AgentName, loc LocationID) WorldSnapshot {
	locations := make(map[AgentName]LocationID, len(w.AgentLocations))
	for k, v := range w.AgentLocations {
		locations[k] = v
	}
	locations[agent] = loc
	w.AgentLocations = locations
	return w
}
