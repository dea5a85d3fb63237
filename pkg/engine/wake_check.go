// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// WakeCheckPhase wakes sleeping agents when the time period turns over
// or a visitor arrives at their location. Agents who slept through the
// evening or night stay asleep until morning.
type WakeCheckPhase struct {
	mu             sync.Mutex
	recentArrivals map[domain.AgentName]struct{}
	logger         *zap.Logger
}

func NewWakeCheckPhase(logger *zap.Logger) *WakeCheckPhase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WakeCheckPhase{
		recentArrivals: make(map[domain.AgentName]struct{}),
		logger:         logger.Named("wake_check"),
	}
}

func (p *WakeCheckPhase) Name() string { return "wake_check" }

// SetRecentArrivals records who moved during the previous tick. These
// arrivals can wake sleepers sharing their destination.
func (p *WakeCheckPhase) SetRecentArrivals(arrivals []domain.AgentName) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recentArrivals = make(map[domain.AgentName]struct{}, len(arrivals))
	for _, a := range arrivals {
		p.recentArrivals[a] = struct{}{}
	}
}

func (p *WakeCheckPhase) Execute(_ context.Context, tc TickContext) (TickContext, error) {
	p.mu.Lock()
	arrivals := make([]domain.AgentName, 0, len(p.recentArrivals))
	for a := range p.recentArrivals {
		arrivals = append(arrivals, a)
	}
	p.mu.Unlock()
	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i] < arrivals[j] })

	period := tc.TimeSnapshot.Period()
	for _, name := range tc.SortedAgentNames() {
		agent := tc.Agents[name]
		if !agent.IsSleeping {
			continue
		}

		if reason, wake := p.shouldWake(agent, period, arrivals, tc); wake {
			p.logger.Debug("waking agent",
				zap.String("agent", string(name)), zap.String("reason", reason))
			tc = tc.WithEffect(domain.AgentWakeEffect{Agent: name, Reason: reason})
		}
	}
	return tc, nil
}

func (p *WakeCheckPhase) shouldWake(agent domain.AgentSnapshot, period domain.TimePeriod, arrivals []domain.AgentName, tc TickContext) (string, bool) {
	if agent.SleepStartedTimePeriod != "" {
		slept := agent.SleepStartedTimePeriod
		if slept == domain.Night || slept == domain.Evening {
			// Overnight sleep holds until morning.
			if period == domain.Morning {
				return "time_period_changed", true
			}
		} else if period != slept {
			return "time_period_changed", true
		}
	}

	for _, visitor := range arrivals {
		if visitor == agent.Name {
			continue
		}
		if tc.World.AgentLocations[visitor] == agent.Location {
			return "visitor_arrived:" + string(visitor), true
		}
	}
	return "", false
}
