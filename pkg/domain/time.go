// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package domain

import "time"

// TimePeriod partitions the day into four coarse periods used by sleep
// and wake rules.
type TimePeriod string

const (
	Morning   TimePeriod = "morning"   // 06:00–12:00
	Afternoon TimePeriod = "afternoon" // 12:00–18:00
	Evening   TimePeriod = "evening"   // 18:00–22:00
	Night     TimePeriod = "night"     // 22:00–06:00
)

// PeriodOf returns the TimePeriod containing t.
func PeriodOf(t time.Time) TimePeriod {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return Morning
	case h >= 12 && h < 18:
		return Afternoon
	case h >= 18 && h < 22:
		return Evening
	default:
		return Night
	}
}

// TimeSnapshot is an immutable moment in simulated time.
type TimeSnapshot struct {
	WorldTime time.Time `json:"world_time"`
	Tick      int       `json:"tick"`
	StartDate time.Time `json:"start_date"`
}

// Period returns the time period containing WorldTime.
func (t TimeSnapshot) Period() TimePeriod {
	return PeriodOf(t.WorldTime)
}

// DayNumber returns the 1-based day count relative to the start date.
func (t TimeSnapshot) DayNumber() int {
	wy, wm, wd := t.WorldTime.Date()
	sy, sm, sd := t.StartDate.Date()
	worldDay := time.Date(wy, wm, wd, 0, 0, 0, 0, time.UTC)
	startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	return int(worldDay.Sub(startDay).Hours()/24) + 1
}

// NextMorning returns the next 06:00 strictly after t. Used by the
// night-skip rule when every agent is asleep.
func NextMorning(t time.Time) time.Time {
	morning := time.Date(t.Year(), t.Month(), t.Day(), 6, 0, 0, 0, t.Location())
	if !morning.After(t) {
		morning = morning.AddDate(0, 0, 1)
	}
	return morning
}
