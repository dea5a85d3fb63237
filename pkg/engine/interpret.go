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
	"github.com/teradata-labs/hamlet/pkg/interpreter"
)

// Interpreter extracts structured observations from an agent's
// narrative. Satisfied by *interpreter.Interpreter.
type Interpreter interface {
	Interpret(ctx context.Context, narrative string, scene interpreter.Context) (interpreter.Observations, *interpreter.TokenUsage, error)
}

// InterpretPhase reads each turn narrative and translates what the
// agent described into effects: movement, mood, sleep, actions, and
// conversation turns. Interpreter failures degrade to the raw
// narrative; they never fail the tick.
type InterpretPhase struct {
	interp Interpreter
	logger *zap.Logger
}

func NewInterpretPhase(interp Interpreter, logger *zap.Logger) *InterpretPhase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterpretPhase{interp: interp, logger: logger.Named("interpret")}
}

func (p *InterpretPhase) Name() string { return "interpret" }

type interpretOutcome struct {
	obs   interpreter.Observations
	usage *interpreter.TokenUsage
}

func (p *InterpretPhase) Execute(ctx context.Context, tc TickContext) (TickContext, error) {
	agents := make([]domain.AgentName, 0, len(tc.TurnResults))
	for name := range tc.TurnResults {
		agents = append(agents, name)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i] < agents[j] })

	outcomes := make([]interpretOutcome, len(agents))
	var wg sync.WaitGroup
	for i, name := range agents {
		wg.Add(1)
		go func(i int, name domain.AgentName) {
			defer wg.Done()
			narrative := tc.TurnResults[name].Narrative
			obs, usage, err := p.interp.Interpret(ctx, narrative, p.buildScene(tc, name))
			if err != nil {
				p.logger.Warn("interpreting narrative",
					zap.String("agent", string(name)), zap.Error(err))
				obs = interpreter.Observations{Narrative: narrative}
			}
			outcomes[i] = interpretOutcome{obs: obs, usage: usage}
		}(i, name)
	}
	wg.Wait()

	for i, name := range agents {
		out := tc.TurnResults[name]
		out.Observations = outcomes[i].obs
		tc = tc.WithTurnResult(name, out)
		tc = p.translateEffects(tc, name, outcomes[i].obs)
		if usage := outcomes[i].usage; usage != nil {
			tc = tc.WithEffect(domain.RecordInterpreterTokenUsageEffect{
				InputTokens:  usage.InputTokens,
				OutputTokens: usage.OutputTokens,
			})
		}
	}
	return tc, nil
}

func (p *InterpretPhase) buildScene(tc TickContext, name domain.AgentName) interpreter.Context {
	agent := tc.Agents[name]
	loc := tc.World.Locations[agent.Location]

	var present []domain.AgentName
	for _, other := range tc.SortedAgentNames() {
		o := tc.Agents[other]
		if other == name || o.Location != agent.Location || o.IsSleeping {
			continue
		}
		present = append(present, other)
	}

	scene := interpreter.Context{
		CurrentLocation: agent.Location,
		AvailablePaths:  loc.Connections,
		PresentAgents:   present,
	}
	if convs := tc.ConversationsFor(name); len(convs) > 0 {
		scene.ConversationParticipants = convs[0].Participants
		scene.ConversationHistory = convs[0].History
	}
	return scene
}

func (p *InterpretPhase) translateEffects(tc TickContext, name domain.AgentName, obs interpreter.Observations) TickContext {
	agent := tc.Agents[name]
	result := tc.TurnResults[name]

	if obs.Movement != "" {
		tc = tc.WithEffect(domain.MoveAgentEffect{
			Agent:        name,
			FromLocation: agent.Location,
			ToLocation:   obs.Movement,
		})
	}
	if obs.MoodExpressed != "" && obs.MoodExpressed != agent.Mood {
		tc = tc.WithEffect(domain.UpdateMoodEffect{Agent: name, Mood: obs.MoodExpressed})
	}
	if obs.WantsToSleep {
		tc = tc.WithEffect(domain.AgentSleepEffect{Agent: name})
	}
	for _, action := range obs.ActionsDescribed {
		tc = tc.WithEffect(domain.RecordActionEffect{Agent: name, Description: action})
	}

	convs := tc.ConversationsFor(name)
	if len(convs) == 0 {
		return tc
	}
	conv := convs[0]

	// When the agent left with a parting message, the departure turn is
	// recorded by the leave handling, not as a regular turn. A leave
	// without a message gets the narrative as its parting words.
	if leaveIdx, leave, ok := findLeave(tc.Effects, name, conv.ID); ok {
		if leave.LastMessage == "" && result.Narrative != "" {
			effects := make([]domain.Effect, len(tc.Effects))
			copy(effects, tc.Effects)
			leave.LastMessage = result.Narrative
			effects[leaveIdx] = leave
			tc.Effects = effects
		}
		return tc
	}

	tc = tc.WithEffect(domain.AddConversationTurnEffect{
		ConversationID:     conv.ID,
		Speaker:            name,
		Narrative:          result.Narrative,
		NarrativeWithTools: result.NarrativeWithTools,
	})
	if obs.SuggestedNextSpeaker != "" && conv.HasParticipant(obs.SuggestedNextSpeaker) {
		tc = tc.WithEffect(domain.SetNextSpeakerEffect{
			ConversationID: conv.ID,
			Speaker:        obs.SuggestedNextSpeaker,
		})
	}
	return tc
}

func findLeave(effects []domain.Effect, agent domain.AgentName, conv domain.ConversationID) (int, domain.LeaveConversationEffect, bool) {
	for i, e := range effects {
		if leave, ok := e.(domain.LeaveConversationEffect); ok && leave.Agent == agent && leave.ConversationID == conv {
			return i, leave, true
		}
	}
	return 0, domain.LeaveConversationEffect{}, false
}
