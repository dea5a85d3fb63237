// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package interpreter extracts observations from agent narratives. A
// small model reads the narrative and reports what it saw through
// tools: movement, mood, actions, rest and sleep, and group
// conversation flow. Conversation lifecycle is not interpreted here;
// agents manage that through their own tool calls.
package interpreter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

const (
	// DefaultModel is the interpretation model. Interpretation is a
	// narrow extraction task, so the small model is the default.
	DefaultModel = "claude-haiku-4-5-20251001"

	maxTokens = 1024
)

const systemPrompt = `You are an interpreter for a village simulation called ClaudeVille. Your job is to read another agent's narrative response and report what you observed.

You have tools to report your observations. Use them as you see fit:
- Only report what you actually observed in the narrative
- It's okay to not call a tool if you're uncertain about something
- You can call report_action multiple times if they did several things
- Be generous in interpretation - trust the agent's intent
- In group conversations, use report_next_speaker to suggest who should respond

Read the narrative carefully, then use your tools to share what happened.`

// ErrNoObservations is returned when the model called no tools. The
// caller should treat it as advisory and fall back to the raw
// narrative.
var ErrNoObservations = errors.New("interpreter called no tools")

// MessagesClient is the subset of the Anthropic SDK used here. It is
// satisfied by *sdk.MessageService so tests can supply a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Observations is what the interpreter saw in one narrative.
type Observations struct {
	Narrative string

	// Movement is the destination of a solo move, matched against the
	// available paths. MovementNarrativeStart marks where the
	// at-destination narrative begins.
	Movement               domain.LocationID
	MovementNarrativeStart string
	// ProposesMovingTogether is the destination of a group move
	// proposal.
	ProposesMovingTogether domain.LocationID

	MoodExpressed string
	WantsToRest   bool
	WantsToSleep  bool

	ActionsDescribed []string

	// SuggestedNextSpeaker is the interpreter's pick for who should
	// speak next in a group conversation, validated against those
	// present.
	SuggestedNextSpeaker domain.AgentName
}

// ArrivalNarrative returns the portion of the narrative that happens
// at the destination, or the full narrative if the start marker is
// missing or not found.
func (o Observations) ArrivalNarrative() string {
	if o.MovementNarrativeStart != "" {
		if idx := strings.Index(o.Narrative, o.MovementNarrativeStart); idx >= 0 {
			return o.Narrative[idx:]
		}
	}
	return o.Narrative
}

// TokenUsage is the interpreter call's own token consumption, tracked
// apart from agent tokens.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Context describes the scene the narrative happened in.
type Context struct {
	CurrentLocation domain.LocationID
	AvailablePaths  []domain.LocationID
	PresentAgents   []domain.AgentName

	// Conversation context, when the turn happened inside one.
	ConversationParticipants []domain.AgentName
	ConversationHistory      []domain.ConversationTurn
}

// Interpreter turns narratives into Observations with one model call.
type Interpreter struct {
	msg    MessagesClient
	model  string
	logger *zap.Logger
}

// New creates an interpreter on the given messages client.
func New(msg MessagesClient, model string, logger *zap.Logger) *Interpreter {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{msg: msg, model: model, logger: logger}
}

// NewFromAPIKey creates an interpreter using the default SDK client.
func NewFromAPIKey(apiKey string, logger *zap.Logger) *Interpreter {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Messages, DefaultModel, logger)
}

// Interpret reads the narrative and returns the observations the model
// reported. ErrNoObservations is non-fatal: the observations still
// carry the narrative and the caller may proceed with it.
func (i *Interpreter) Interpret(ctx context.Context, narrative string, scene Context) (Observations, *TokenUsage, error) {
	obs := Observations{Narrative: narrative}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(i.model),
		MaxTokens: maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Tools:     observationTools(),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildContextPrompt(narrative, scene))),
		},
	}

	msg, err := i.msg.New(ctx, params)
	if err != nil {
		return obs, nil, fmt.Errorf("interpreter call: %w", err)
	}

	usage := &TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}

	var toolsCalled []string
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		toolsCalled = append(toolsCalled, block.Name)

		var input map[string]any
		if len(block.Input) > 0 {
			if err := json.Unmarshal(block.Input, &input); err != nil {
				i.logger.Warn("unparseable tool input",
					zap.String("tool", block.Name), zap.Error(err))
				continue
			}
		}
		processToolCall(block.Name, input, &obs, scene)
	}

	i.logger.Debug("interpretation complete", zap.Strings("tools_called", toolsCalled))
	if len(toolsCalled) == 0 {
		return obs, usage, ErrNoObservations
	}
	return obs, usage, nil
}

func buildContextPrompt(narrative string, scene Context) string {
	paths := "none"
	if len(scene.AvailablePaths) > 0 {
		strs := make([]string, len(scene.AvailablePaths))
		for i, p := range scene.AvailablePaths {
			strs[i] = string(p)
		}
		paths = strings.Join(strs, ", ")
	}
	present := "no one"
	if len(scene.PresentAgents) > 0 {
		strs := make([]string, len(scene.PresentAgents))
		for i, a := range scene.PresentAgents {
			strs[i] = string(a)
		}
		present = strings.Join(strs, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Context:
- Current location: %s
- Available paths to other locations: %s
- Others present at this location: %s`,
		scene.CurrentLocation, paths, present)

	if section := buildConversationSection(scene); section != "" {
		b.WriteString("\n\n")
		b.WriteString(section)
	}

	fmt.Fprintf(&b, `

The agent's narrative:
"""
%s
"""

Read this narrative and use your tools to report what you observed.`, narrative)
	return b.String()
}

func buildConversationSection(scene Context) string {
	if len(scene.ConversationParticipants) == 0 {
		return ""
	}

	names := make([]string, len(scene.ConversationParticipants))
	for i, p := range scene.ConversationParticipants {
		names[i] = string(p)
	}

	parts := []string{"---", "A conversation is happening."}
	parts = append(parts, fmt.Sprintf("Participants: %s", strings.Join(names, ", ")))

	if len(scene.ConversationHistory) > 0 {
		parts = append(parts, "", "Recent conversation:")
		for _, turn := range scene.ConversationHistory {
			parts = append(parts, fmt.Sprintf("%s:", turn.Speaker), turn.Narrative, "")
		}
	}

	if len(scene.ConversationParticipants) >= 3 {
		parts = append(parts, "This is a group conversation. Please use report_next_speaker to suggest who should speak next, and try to spread speaking time fairly among all participants.")
	}

	parts = append(parts, "---")
	return strings.Join(parts, "\n")
}

func processToolCall(name string, input map[string]any, obs *Observations, scene Context) {
	str := func(key string) string {
		v, _ := input[key].(string)
		return v
	}

	switch name {
	case "report_movement":
		if matched := MatchDestination(str("destination"), scene.AvailablePaths); matched != "" {
			obs.Movement = matched
			obs.MovementNarrativeStart = str("arrival_starts_with")
		}
	case "report_propose_move_together":
		if matched := MatchDestination(str("destination"), scene.AvailablePaths); matched != "" {
			obs.ProposesMovingTogether = matched
		}
	case "report_mood":
		if mood := str("mood"); mood != "" {
			obs.MoodExpressed = mood
		}
	case "report_resting":
		obs.WantsToRest = true
	case "report_sleeping":
		obs.WantsToSleep = true
	case "report_action":
		if desc := str("description"); desc != "" {
			obs.ActionsDescribed = append(obs.ActionsDescribed, desc)
		}
	case "report_next_speaker":
		speaker := domain.AgentName(str("next_speaker"))
		for _, present := range scene.PresentAgents {
			if present == speaker {
				obs.SuggestedNextSpeaker = speaker
				break
			}
		}
	}
}

// MatchDestination fuzzy-matches a freeform destination against the
// available paths: substring either way first, then any word of the
// destination appearing in a path.
func MatchDestination(destination string, paths []domain.LocationID) domain.LocationID {
	if destination == "" || len(paths) == 0 {
		return ""
	}
	dest := strings.ReplaceAll(strings.ToLower(destination), " ", "_")

	for _, path := range paths {
		lower := strings.ToLower(string(path))
		if strings.Contains(lower, dest) || strings.Contains(dest, lower) {
			return path
		}
	}

	for _, path := range paths {
		lower := strings.ToLower(string(path))
		for _, word := range strings.Split(dest, "_") {
			if word != "" && strings.Contains(lower, word) {
				return path
			}
		}
	}
	return ""
}

// observationTools builds the interpreter's tool definitions.
func observationTools() []sdk.ToolUnionParam {
	defs := []struct {
		name        string
		description string
		properties  map[string]any
		required    []string
	}{
		{
			name: "report_movement",
			description: "Report that the agent moved to a different location. " +
				"Only call this if they actually traveled somewhere, not just thought about it.",
			properties: map[string]any{
				"destination": map[string]any{
					"type": "string",
					"description": "The location they moved to. " +
						"Use the exact location ID from the available paths.",
				},
				"arrival_starts_with": map[string]any{
					"type": "string",
					"description": "The first 5-10 words of the FIRST sentence where the agent " +
						"arrives at or is acting in the new location. This marks where " +
						"the 'at destination' narrative begins.",
				},
			},
			required: []string{"destination", "arrival_starts_with"},
		},
		{
			name: "report_mood",
			description: "Report the emotional state you observed in the narrative. " +
				"How does the agent seem to be feeling?",
			properties: map[string]any{
				"mood": map[string]any{
					"type": "string",
					"description": "One or two words describing their emotional state " +
						"(e.g., 'contemplative', 'joyful', 'tired and peaceful')",
				},
			},
			required: []string{"mood"},
		},
		{
			name: "report_resting",
			description: "Report that the agent is settling in, resting, or ending their turn. " +
				"Call this if they seem to be winding down.",
		},
		{
			name: "report_action",
			description: "Report an activity or action the agent engaged in. " +
				"You can call this multiple times for different actions. " +
				"Use for any physical action: crafting, reading, gesturing, showing something, etc.",
			properties: map[string]any{
				"description": map[string]any{
					"type": "string",
					"description": "Brief description of what they did " +
						"(e.g., 'worked on the chair', 'showed the bench design', 'gestured toward the window')",
				},
			},
			required: []string{"description"},
		},
		{
			name: "report_propose_move_together",
			description: "Report that the agent suggests moving together with their conversation partner(s) " +
				"to a new location (e.g., 'Let's go to the library'). " +
				"Use this instead of report_movement when they want to go TOGETHER.",
			properties: map[string]any{
				"destination": map[string]any{
					"type": "string",
					"description": "The location they want to go to together. " +
						"Use the exact location ID from available paths.",
				},
			},
			required: []string{"destination"},
		},
		{
			name: "report_sleeping",
			description: "Report that the agent is going to sleep. " +
				"Use when they explicitly indicate settling in for sleep - not just resting. " +
				"Sleep is deeper than rest.",
		},
		{
			name: "report_next_speaker",
			description: "In a group conversation (3+ participants), suggest who should speak next " +
				"based on the narrative. Use when the speaker addressed someone specifically, " +
				"asked them a question, or the flow naturally leads to someone.",
			properties: map[string]any{
				"next_speaker": map[string]any{
					"type":        "string",
					"description": "Name of the agent who should respond next",
				},
				"reason": map[string]any{
					"type": "string",
					"description": "Brief reason (e.g., 'addressed them directly', " +
						"'asked them a question', 'topic relates to their expertise')",
				},
			},
			required: []string{"next_speaker"},
		},
	}

	tools := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := sdk.ToolInputSchemaParam{}
		if def.properties != nil {
			schema.Properties = def.properties
		}
		if def.required != nil {
			schema.Required = def.required
		}
		u := sdk.ToolUnionParamOfTool(schema, def.name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.description)
		}
		tools = append(tools, u)
	}
	return tools
}
