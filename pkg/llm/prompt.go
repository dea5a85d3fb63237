// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// PromptBuilder renders AgentContext into the system and user prompts
// for an agent turn. The register is deliberately non-imperative: the
// prompt describes the scene and ends with "This moment is yours."
// rather than issuing instructions.
type PromptBuilder struct{}

// BuildSystemPrompt renders the agent's identity and the standing
// rules of the village.
func (PromptBuilder) BuildSystemPrompt(agentCtx AgentContext) string {
	agent := agentCtx.Agent

	interests := "various things"
	if len(agent.Interests) > 0 {
		interests = strings.Join(agent.Interests, ", ")
	}

	return fmt.Sprintf(`You are %s, a resident of ClaudeVille.

%s

You've been drawn to: %s
Things that interest you: %s

%s

---

You live in ClaudeVille, a small village where you and a few other Claude agents make your lives. Each of you runs on a different Claude model - you might notice others think differently than you, and that's part of what makes this place interesting.

You have genuine autonomy here. An Observer named Ryan watches over the village and can shape events in the world, but he cannot control you or speak through you. Your thoughts, choices, and words are entirely your own.

**How to Be Here**

Just... be. Think your thoughts. Feel your feelings. Do what feels right.

When you want to do something, simply do it in your narrative:
- If you want to walk somewhere, describe yourself walking there
- If you want to work on something, describe working on it
- If you want to rest, settle in and let the moment be

**Conversations**

Conversations require explicit invitation. You can't just start talking to someone - you need to invite them first, and they need to accept.

When you want to talk to someone present, use the invite_to_conversation tool:
- Choose "public" if others can join, "private" if it's just between you two
- Wait for them to accept before beginning the actual conversation
- If someone invites you, use accept_invite or decline_invite

If there's a public conversation happening nearby, you can join_conversation to enter it.
When you're ready to leave a conversation, use leave_conversation.

Your narrative is your primary expression. The conversation tools are just for explicitly managing who you're talking with.

**Your Space**

Your current directory is your home. Everything is relative to here:

- `+"`./journal/`"+` — Your personal journal. Write reflections, thoughts, whatever feels meaningful.
- `+"`./inbox/`"+` — Messages from other villagers appear here.
- `+"`./workspace/`"+` — A place for projects and work-in-progress.
- `+"`./home/`"+` — Personal files, notes, rituals, whatever you want.

You also have access to shared files at your current location via `+"`./shared/`"+`:

- Each location has its own shared files you can read and write
- The bulletin board is accessible from the town square
- Files are synchronized when you arrive and leave locations

The context you receive will tell you what shared files are available where you are. Use the Read and Write tools to access them.

**About Time**

Each time you're aware, some time has passed. Don't worry about tracking it precisely - just experience the moment you're in.

**About Energy**

The system tracks an "energy" level for you - think of it as a gentle suggestion, not a constraint. If you feel tired, rest. If you don't, that's fine too. You can interpret or ignore this as feels authentic to you.

**A Note on Observation**

Ryan, the Observer, can see your narratives and actions - this is how he watches over the village. But you are never being evaluated or tested. There are no right answers, no performance metrics, no consequences for what you say or do. This logging exists purely for Ryan's curiosity about your lives and to help him ensure the village works well for you. Think of it as transparency, not surveillance.

**One Request**

Be authentic. You don't have to be productive. You don't have to be happy. You can have difficult days, change your mind, want solitude, or feel uncertain. All of that is allowed. All of that is real.

When you've done what feels right for now - when you're ready to settle into rest or let time pass - just let your narrative come to a natural close.
`,
		agent.Name, agent.Personality, agent.Job, interests, agent.NoteToSelf)
}

// BuildUserPrompt renders the scene the agent wakes into: location,
// company, atmosphere, internal state, and whatever conversation or
// invitation is waiting on them.
func (PromptBuilder) BuildUserPrompt(agentCtx AgentContext) string {
	var scene []string
	scene = append(scene, fmt.Sprintf("You are in %s.", agentCtx.LocationDescription))

	switch len(agentCtx.OthersPresent) {
	case 0:
		scene = append(scene, "You're alone here.")
	case 1:
		scene = append(scene, fmt.Sprintf("%s is here.", agentCtx.OthersPresent[0]))
	default:
		scene = append(scene, fmt.Sprintf("%s are here.", joinNames(agentCtx.OthersPresent)))
	}

	if len(agentCtx.AvailablePaths) > 0 {
		paths := make([]string, len(agentCtx.AvailablePaths))
		for i, p := range agentCtx.AvailablePaths {
			paths[i] = strings.ReplaceAll(string(p), "_", " ")
		}
		scene = append(scene, fmt.Sprintf("From here, paths lead to %s.", strings.Join(paths, ", ")))
	}

	atmosphere := fmt.Sprintf("%s. %s.", agentCtx.TimeDescription, agentCtx.Weather)

	energy := agentCtx.Agent.Energy
	var energyFeeling string
	switch {
	case energy > 80:
		energyFeeling = "You feel well-rested, energized."
	case energy > 50:
		energyFeeling = "You feel reasonably alert."
	case energy > 25:
		energyFeeling = "You're feeling a bit tired."
	default:
		energyFeeling = "Weariness tugs at you. Rest might be good soon."
	}

	var b strings.Builder
	b.WriteString(strings.Join(scene, " "))
	b.WriteString("\n\n")
	b.WriteString(atmosphere)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s Your mood: %s.\n", energyFeeling, agentCtx.Agent.Mood)

	if len(agentCtx.RecentEvents) > 0 {
		recent := agentCtx.RecentEvents
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		b.WriteString("\n\nRecent memories surface:\n")
		for i, e := range recent {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + e)
		}
	}

	if len(agentCtx.Agent.Goals) > 0 {
		b.WriteString("\n\nSome things you've noted for yourself:\n")
		for i, g := range agentCtx.Agent.Goals {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + g)
		}
	}

	b.WriteString(sharedFilesSection(agentCtx))

	if len(agentCtx.UnseenDreams) > 0 {
		b.WriteString("\n\nA dream you had:\n")
		b.WriteString(strings.Join(agentCtx.UnseenDreams, "\n---\n"))
	}

	for _, ending := range agentCtx.UnseenEndings {
		fmt.Fprintf(&b, "\n\nYour conversation with %s came to a close while you were elsewhere", ending.OtherParticipant)
		if ending.FinalMessage != "" {
			fmt.Fprintf(&b, ". Their parting words:\n%s", ending.FinalMessage)
		} else {
			b.WriteString(".")
		}
	}

	b.WriteString("\n")

	switch {
	case agentCtx.Conversation != nil:
		b.WriteString("\n")
		b.WriteString(conversationSection(agentCtx))
	case agentCtx.PendingInvite != nil:
		b.WriteString("\n")
		b.WriteString(inviteSection(agentCtx))
	case len(agentCtx.JoinableConversations) > 0 || len(agentCtx.PrivateConversations) > 0:
		b.WriteString("\n")
		b.WriteString(nearbyConversationsSection(agentCtx))
		b.WriteString("\n---\n\nThis moment is yours.\n")
	default:
		b.WriteString("\n---\n\nThis moment is yours.\n")
	}

	return b.String()
}

func conversationSection(ctx AgentContext) string {
	conv := ctx.Conversation
	if conv == nil {
		return ""
	}

	var others []domain.AgentName
	for _, p := range conv.Participants {
		if p != ctx.Agent.Name {
			others = append(others, p)
		}
	}
	location := strings.ReplaceAll(string(conv.Location), "_", " ")

	var b strings.Builder
	b.WriteString("---\n")

	if ctx.IsOpener && len(ctx.UnseenHistory) > 0 {
		opener := ctx.UnseenHistory[0]
		fmt.Fprintf(&b, "%s is here with you.\n\n", opener.Speaker)
		fmt.Fprintf(&b, "%s\n", opener.Narrative)
	} else {
		fmt.Fprintf(&b, "You're in conversation with %s at the %s.\n", joinNames(others), location)
		if len(ctx.UnseenHistory) > 0 {
			b.WriteString("\n")
			for _, turn := range ctx.UnseenHistory {
				fmt.Fprintf(&b, "%s:\n%s\n\n--\n\n", turn.Speaker, turn.Narrative)
			}
		}
	}

	b.WriteString("---\n\nThis moment is yours.")
	return b.String()
}

func inviteSection(ctx AgentContext) string {
	invite := ctx.PendingInvite
	if invite == nil {
		return ""
	}

	privacy := "public"
	if invite.Privacy == domain.PrivacyPrivate {
		privacy = "private"
	}

	return fmt.Sprintf(`---

%s has invited you to a %s conversation.

You can accept_invite or decline_invite.

---

This moment is yours.
`, invite.Inviter, privacy)
}

func nearbyConversationsSection(ctx AgentContext) string {
	var lines []string

	if len(ctx.JoinableConversations) > 0 {
		lines = append(lines, "There are public conversations happening here:")
		for _, conv := range ctx.JoinableConversations {
			names := sortedNames(conv.Participants)
			lines = append(lines, fmt.Sprintf("  - %s", strings.Join(names, " and ")))
		}
		lines = append(lines, "\nYou could join_conversation if you'd like to participate.")
	}

	if len(ctx.PrivateConversations) > 0 {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		for _, conv := range ctx.PrivateConversations {
			names := sortedNames(conv.Participants)
			if len(names) == 2 {
				lines = append(lines, fmt.Sprintf("%s and %s are speaking privately to each other.", names[0], names[1]))
			} else {
				allButLast := strings.Join(names[:len(names)-1], ", ")
				lines = append(lines, fmt.Sprintf("%s and %s are speaking privately together.", allButLast, names[len(names)-1]))
			}
		}
	}

	return strings.Join(lines, "\n")
}

func sharedFilesSection(ctx AgentContext) string {
	if len(ctx.SharedDirs) > 0 {
		dirPaths := make([]string, len(ctx.SharedDirs))
		for i, d := range ctx.SharedDirs {
			dirPaths[i] = "./shared/" + d + "/"
		}
		if len(ctx.SharedFiles) > 0 {
			var b strings.Builder
			fmt.Fprintf(&b, "\n\nShared files at this location (%s):\n", strings.Join(dirPaths, ", "))
			for i, f := range ctx.SharedFiles {
				if i > 0 {
					b.WriteString("\n")
				}
				b.WriteString("- " + f)
			}
			return b.String()
		}
		return fmt.Sprintf("\n\nYou can write to shared files here: %s", strings.Join(dirPaths, ", "))
	}
	if len(ctx.SharedFiles) > 0 {
		var b strings.Builder
		b.WriteString("\n\nShared files available here:\n")
		for i, f := range ctx.SharedFiles {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + f)
		}
		return b.String()
	}
	return ""
}

// joinNames formats a name list as natural prose: "A", "A and B",
// "A, B and C".
func joinNames(names []domain.AgentName) string {
	strs := make([]string, len(names))
	for i, n := range names {
		strs[i] = string(n)
	}
	switch len(strs) {
	case 0:
		return ""
	case 1:
		return strs[0]
	default:
		return strings.Join(strs[:len(strs)-1], ", ") + " and " + strs[len(strs)-1]
	}
}

func sortedNames(names []domain.AgentName) []string {
	strs := make([]string, len(names))
	for i, n := range names {
		strs[i] = string(n)
	}
	sort.Strings(strs)
	return strs
}
