// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"strings"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// Tool is a conversation tool the agent may call during its turn. The
// processor validates the call against tick state and returns effects;
// an empty slice means the call was rejected.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Process     func(args map[string]any, ctx ToolContext) []domain.Effect
}

// ConversationTools returns the tool set offered to agents. These
// manage the conversation lifecycle explicitly; everything else the
// agent does is narrative, extracted later by the interpreter.
func ConversationTools() map[string]Tool {
	tools := []Tool{
		{
			Name: "invite_to_conversation",
			Description: "Invite another agent to have a conversation with you. " +
				"They must accept before the conversation begins.",
			InputSchema: objectSchema(map[string]any{
				"invitee": map[string]any{
					"type":        "string",
					"description": "Name of the agent to invite",
				},
				"privacy": map[string]any{
					"type": "string",
					"enum": []string{"public", "private"},
					"description": "Public conversations can be joined by others; " +
						"private conversations require invitation",
				},
				"topic": map[string]any{
					"type":        "string",
					"description": "Optional topic or reason for the conversation",
				},
			}, "invitee", "privacy"),
			Process: processInvite,
		},
		{
			Name:        "accept_invite",
			Description: "Accept a pending conversation invitation from another agent.",
			InputSchema: objectSchema(nil),
			Process:     processAcceptInvite,
		},
		{
			Name:        "decline_invite",
			Description: "Politely decline a pending conversation invitation.",
			InputSchema: objectSchema(nil),
			Process:     processDeclineInvite,
		},
		{
			Name: "join_conversation",
			Description: "Join a public conversation happening at your location. " +
				"Specify the name of someone already in the conversation.",
			InputSchema: objectSchema(map[string]any{
				"participant": map[string]any{
					"type":        "string",
					"description": "Name of someone in the conversation you want to join",
				},
			}, "participant"),
			Process: processJoinConversation,
		},
		{
			Name:        "leave_conversation",
			Description: "Leave the conversation you're currently in.",
			InputSchema: objectSchema(nil),
			Process:     processLeaveConversation,
		},
		{
			Name: "move_conversation",
			Description: "Move your whole conversation to a connected location. " +
				"Everyone in it comes along once you finish speaking.",
			InputSchema: objectSchema(map[string]any{
				"destination": map[string]any{
					"type":        "string",
					"description": "The location to move the conversation to",
				},
			}, "destination"),
			Process: processMoveConversation,
		},
	}

	out := make(map[string]Tool, len(tools))
	for _, t := range tools {
		out[t.Name] = t
	}
	return out
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func processInvite(args map[string]any, ctx ToolContext) []domain.Effect {
	invitee := domain.AgentName(stringArg(args, "invitee"))
	privacy := domain.Privacy(stringArg(args, "privacy"))
	if privacy != domain.PrivacyPrivate {
		privacy = domain.PrivacyPublic
	}

	target, ok := ctx.State.Agents[invitee]
	if !ok || target.Location != ctx.Agent.Location {
		return nil
	}

	return []domain.Effect{domain.InviteToConversationEffect{
		Inviter:  ctx.AgentName,
		Invitee:  invitee,
		Location: ctx.Agent.Location,
		Privacy:  privacy,
		Topic:    stringArg(args, "topic"),
	}}
}

func processAcceptInvite(_ map[string]any, ctx ToolContext) []domain.Effect {
	invite, ok := ctx.State.PendingInvites[ctx.AgentName]
	if !ok {
		return nil
	}
	return []domain.Effect{domain.AcceptInviteEffect{
		Agent:          ctx.AgentName,
		ConversationID: invite.ConversationID,
	}}
}

func processDeclineInvite(_ map[string]any, ctx ToolContext) []domain.Effect {
	invite, ok := ctx.State.PendingInvites[ctx.AgentName]
	if !ok {
		return nil
	}
	return []domain.Effect{domain.DeclineInviteEffect{
		Agent:          ctx.AgentName,
		ConversationID: invite.ConversationID,
	}}
}

func processJoinConversation(args map[string]any, ctx ToolContext) []domain.Effect {
	participant := domain.AgentName(stringArg(args, "participant"))
	if participant == "" {
		return nil
	}

	for _, conv := range ctx.State.Conversations {
		if conv.Privacy == domain.PrivacyPublic &&
			conv.Location == ctx.Agent.Location &&
			conv.HasParticipant(participant) &&
			!conv.HasParticipant(ctx.AgentName) {
			return []domain.Effect{domain.JoinConversationEffect{
				Agent:          ctx.AgentName,
				ConversationID: conv.ID,
			}}
		}
	}
	return nil
}

func processLeaveConversation(_ map[string]any, ctx ToolContext) []domain.Effect {
	for _, conv := range ctx.State.Conversations {
		if conv.HasParticipant(ctx.AgentName) {
			return []domain.Effect{domain.LeaveConversationEffect{
				Agent:          ctx.AgentName,
				ConversationID: conv.ID,
			}}
		}
	}
	return nil
}

func processMoveConversation(args map[string]any, ctx ToolContext) []domain.Effect {
	var conv *domain.Conversation
	for id := range ctx.State.Conversations {
		c := ctx.State.Conversations[id]
		if c.HasParticipant(ctx.AgentName) {
			conv = &c
			break
		}
	}
	if conv == nil {
		return nil
	}

	loc, ok := ctx.State.World.Locations[ctx.Agent.Location]
	if !ok {
		return nil
	}
	dest := matchConnection(stringArg(args, "destination"), loc.Connections)
	if dest == "" {
		return nil
	}

	return []domain.Effect{domain.MoveConversationEffect{
		ConversationID: conv.ID,
		InitiatedBy:    ctx.AgentName,
		ToLocation:     dest,
	}}
}

// matchConnection resolves a freeform destination against the current
// location's connections: exact id first, then substring either way.
func matchConnection(destination string, connections []domain.LocationID) domain.LocationID {
	if destination == "" {
		return ""
	}
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(destination)), " ", "_")
	for _, conn := range connections {
		if string(conn) == normalized {
			return conn
		}
	}
	for _, conn := range connections {
		lower := strings.ToLower(string(conn))
		if strings.Contains(lower, normalized) || strings.Contains(normalized, lower) {
			return conn
		}
	}
	return ""
}
