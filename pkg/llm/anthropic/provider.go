// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package anthropic implements the llm.Provider contract against the
// Anthropic Messages API. Each agent keeps a persistent session (system
// prompt plus message history) so conversation context carries across
// turns; the agentic loop executes conversation tools locally and feeds
// results back until the model stops asking for them.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/llm"
)

const (
	// DefaultModel is the model used when an agent does not name one.
	DefaultModel = "claude-sonnet-4-5-20250929"
	// DefaultEndpoint is the default Anthropic API endpoint.
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	// DefaultMaxTokens is the default maximum tokens per request.
	DefaultMaxTokens = 8192
	// DefaultTimeout is the default HTTP timeout. Agent turns can run
	// several tool rounds, so this bounds a single request, not a turn.
	DefaultTimeout = 120 * time.Second

	// maxToolRounds bounds the agentic loop within one turn.
	maxToolRounds = 25
)

// Config holds configuration for the session provider.
type Config struct {
	APIKey    string
	Model     string // Default: claude-sonnet-4-5-20250929
	Endpoint  string // Default: https://api.anthropic.com/v1/messages
	Timeout   time.Duration
	MaxTokens int // Default: 8192

	// Limiter paces requests across all agent sessions. Nil means
	// unlimited.
	Limiter *llm.RateLimiter
}

// session is one agent's persistent conversation with the API.
type session struct {
	id       string
	model    string
	system   string
	messages []message
}

// SessionProvider executes agent turns against the Anthropic Messages
// API, one persistent session per agent.
type SessionProvider struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	httpClient *http.Client
	limiter    *llm.RateLimiter
	logger     *zap.Logger
	builder    llm.PromptBuilder
	counter    *llm.TokenCounter

	mu          sync.Mutex
	sessions    map[domain.AgentName]*session
	tokenCounts map[domain.AgentName]int
}

// NewSessionProvider creates a provider. Missing config fields fall
// back to environment variables, then to defaults.
func NewSessionProvider(config Config, logger *zap.Logger) *SessionProvider {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if config.Model == "" {
		if envModel := os.Getenv("ANTHROPIC_DEFAULT_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.Endpoint == "" {
		if envEndpoint := os.Getenv("ANTHROPIC_API_ENDPOINT"); envEndpoint != "" {
			config.Endpoint = envEndpoint
		} else {
			config.Endpoint = DefaultEndpoint
		}
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	counter, err := llm.NewTokenCounter()
	if err != nil {
		logger.Warn("token counter unavailable, using length estimates", zap.Error(err))
	}

	return &SessionProvider{
		apiKey:    config.APIKey,
		model:     config.Model,
		endpoint:  config.Endpoint,
		maxTokens: config.MaxTokens,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:     config.Limiter,
		logger:      logger,
		counter:     counter,
		sessions:    make(map[domain.AgentName]*session),
		tokenCounts: make(map[domain.AgentName]int),
	}
}

// turnCapture tracks narrative text relative to conversation tool calls
// within one turn, so accept/join effects can carry the agent's opening
// message and leave effects their parting words.
type turnCapture struct {
	narrativeParts []string
	capturingFirst bool
	firstParts     []string
	preLeave       string
}

// ExecuteTurn runs one agent turn: pushes the scene as a user message,
// loops while the model calls tools, and returns the narrative plus the
// effects the tool processors produced.
func (p *SessionProvider) ExecuteTurn(
	ctx context.Context,
	agentCtx llm.AgentContext,
	toolCtx llm.ToolContext,
	tools map[string]llm.Tool,
	agentDir string,
) (llm.TurnResult, error) {
	agentName := agentCtx.Agent.Name
	sess := p.getOrCreateSession(agentName, agentCtx)

	userPrompt := p.builder.BuildUserPrompt(agentCtx)
	sess.messages = append(sess.messages, message{
		Role:    "user",
		Content: []contentBlock{{Type: "text", Text: userPrompt}},
	})

	wireTools := convertTools(tools)

	var (
		effects            []domain.Effect
		narrativeParts     []string
		narrativeWithTools []string
		capture            turnCapture
		totals             llm.TurnTokenUsage
		contextWindow      int
	)
	totals.ModelID = sess.model

	for round := 0; round < maxToolRounds; round++ {
		req := &messagesRequest{
			Model:     sess.model,
			Messages:  sess.messages,
			MaxTokens: p.maxTokens,
			System: []textBlockParam{{
				Type:         "text",
				Text:         sess.system,
				CacheControl: &cacheControl{Type: "ephemeral"},
			}},
			Tools: wireTools,
		}

		resp, err := p.callAPI(ctx, req)
		if err != nil {
			return llm.TurnResult{}, fmt.Errorf("turn request for %s: %w", agentName, err)
		}

		totals.InputTokens += resp.Usage.InputTokens
		totals.OutputTokens += resp.Usage.OutputTokens
		totals.CacheCreationInputTokens += resp.Usage.CacheCreationInputTokens
		totals.CacheReadInputTokens += resp.Usage.CacheReadInputTokens
		// Context window size is what the latest request processed:
		// prior turns from cache plus this turn's fresh input.
		contextWindow = resp.Usage.CacheReadInputTokens + resp.Usage.InputTokens + resp.Usage.CacheCreationInputTokens

		sess.messages = append(sess.messages, message{Role: "assistant", Content: resp.Content})

		var toolResults []contentBlock
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				narrativeParts = append(narrativeParts, block.Text)
				narrativeWithTools = append(narrativeWithTools, block.Text)
				capture.narrativeParts = append(capture.narrativeParts, block.Text)
				if capture.capturingFirst {
					capture.firstParts = append(capture.firstParts, block.Text)
				}
			case "tool_use":
				narrativeWithTools = append(narrativeWithTools, formatToolCall(block.Name, block.Input))
				resultText := p.executeTool(block, toolCtx, tools, &effects, &capture)
				toolResults = append(toolResults, contentBlock{
					Type:      "tool_result",
					ToolUseID: block.ID,
					Content:   resultText,
				})
			}
		}

		if resp.StopReason != "tool_use" {
			break
		}
		if len(toolResults) == 0 {
			p.logger.Warn("stop_reason tool_use without tool blocks",
				zap.String("agent", string(agentName)))
			break
		}
		sess.messages = append(sess.messages, message{Role: "user", Content: toolResults})
	}

	p.mu.Lock()
	p.tokenCounts[agentName] = contextWindow
	p.mu.Unlock()

	if agentCtx.Agent.SessionID == "" {
		effects = append(effects, domain.UpdateSessionIDEffect{
			Agent:     agentName,
			SessionID: sess.id,
		})
	}

	attachCapturedMessages(effects, &capture)

	narrative := strings.Join(narrativeParts, "\n")
	p.logger.Debug("turn complete",
		zap.String("agent", string(agentName)),
		zap.Int("narrative_len", len(narrative)),
		zap.Int("effects", len(effects)),
		zap.Int("context_window", contextWindow))

	return llm.TurnResult{
		Narrative:          narrative,
		NarrativeWithTools: strings.Join(narrativeWithTools, "\n\n"),
		Effects:            effects,
		TokenUsage:         &totals,
	}, nil
}

// executeTool runs one conversation tool call and returns the result
// text fed back to the model.
func (p *SessionProvider) executeTool(
	block contentBlock,
	toolCtx llm.ToolContext,
	tools map[string]llm.Tool,
	effects *[]domain.Effect,
	capture *turnCapture,
) string {
	def, ok := tools[block.Name]
	if !ok {
		p.logger.Warn("unknown tool called",
			zap.String("agent", string(toolCtx.AgentName)),
			zap.String("tool", block.Name))
		return "Tool not configured."
	}

	// Departure narrative is everything said before the leave call.
	if block.Name == "leave_conversation" {
		capture.preLeave = strings.TrimSpace(strings.Join(capture.narrativeParts, "\n"))
	}

	newEffects := def.Process(block.Input, toolCtx)
	*effects = append(*effects, newEffects...)

	succeeded := len(newEffects) > 0
	if succeeded && (block.Name == "accept_invite" || block.Name == "join_conversation") {
		capture.capturingFirst = true
	}

	return toolResultMessage(block.Name, block.Input, succeeded)
}

// toolResultMessage is the text returned to the model after a tool
// call, varying by tool and by whether the call produced effects.
func toolResultMessage(name string, args map[string]any, succeeded bool) string {
	str := func(key string) string {
		v, _ := args[key].(string)
		return v
	}
	if succeeded {
		switch name {
		case "invite_to_conversation":
			return fmt.Sprintf("Invitation sent to %s.", str("invitee"))
		case "accept_invite":
			return "You accepted the invitation."
		case "decline_invite":
			return "You declined the invitation."
		case "join_conversation":
			return "You joined the conversation."
		case "leave_conversation":
			return "You left the conversation."
		case "move_conversation":
			return fmt.Sprintf("Everyone will move to %s once you finish speaking.", str("destination"))
		default:
			return "Action completed."
		}
	}
	switch name {
	case "invite_to_conversation":
		return fmt.Sprintf("Could not invite %s - they may not be at your location.", str("invitee"))
	case "accept_invite", "decline_invite":
		return "No matching invitation found."
	case "join_conversation":
		return "Could not join - conversation may not be public or not at your location."
	case "leave_conversation":
		return "You're not in that conversation."
	case "move_conversation":
		return fmt.Sprintf("Cannot move to %s - it may not be connected to your current location, or you may not be in a conversation.", str("destination"))
	default:
		return "Action failed."
	}
}

// attachCapturedMessages copies captured narrative into the first
// matching accept/join effect (opening message) and leave effect
// (departure message).
func attachCapturedMessages(effects []domain.Effect, capture *turnCapture) {
	if first := strings.TrimSpace(strings.Join(capture.firstParts, "\n")); first != "" {
		for i, effect := range effects {
			switch e := effect.(type) {
			case domain.AcceptInviteEffect:
				e.FirstMessage = first
				effects[i] = e
			case domain.JoinConversationEffect:
				e.FirstMessage = first
				effects[i] = e
			default:
				continue
			}
			break
		}
	}
	if capture.preLeave != "" {
		for i, effect := range effects {
			if e, ok := effect.(domain.LeaveConversationEffect); ok {
				e.LastMessage = capture.preLeave
				effects[i] = e
				break
			}
		}
	}
}

// formatToolCall formats a tool call for display in the narrative:
// [tool_name(arg1=val1, arg2=val2)]. Long values are truncated.
func formatToolCall(name string, input map[string]any) string {
	if len(input) == 0 {
		return "[" + name + "]"
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		v := input[k]
		if v == nil {
			continue
		}
		vStr := fmt.Sprintf("%v", v)
		if len(vStr) > 50 {
			vStr = vStr[:47] + "..."
		}
		args = append(args, fmt.Sprintf("%s=%s", k, vStr))
	}

	if len(args) == 0 {
		return "[" + name + "]"
	}
	return fmt.Sprintf("[%s(%s)]", name, strings.Join(args, ", "))
}

// getOrCreateSession returns the agent's session, creating one with a
// fresh id and the agent's system prompt on first use.
func (p *SessionProvider) getOrCreateSession(agentName domain.AgentName, agentCtx llm.AgentContext) *session {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sess, ok := p.sessions[agentName]; ok {
		return sess
	}

	model := agentCtx.Agent.Model.ID
	if model == "" {
		model = p.model
	}
	id := agentCtx.Agent.SessionID
	if id == "" {
		id = uuid.NewString()
	}

	sess := &session{
		id:     id,
		model:  model,
		system: p.builder.BuildSystemPrompt(agentCtx),
	}
	p.sessions[agentName] = sess
	p.logger.Info("created session",
		zap.String("agent", string(agentName)),
		zap.String("model", model),
		zap.String("session_id", id))
	return sess
}

// TokenCount returns the agent's current context window size.
func (p *SessionProvider) TokenCount(agent domain.AgentName) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenCounts[agent]
}

// RestoreTokenCounts seeds context window tracking from persisted
// snapshots so compaction thresholds work before the first turn.
func (p *SessionProvider) RestoreTokenCounts(agents map[domain.AgentName]domain.AgentSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, agent := range agents {
		p.tokenCounts[name] = agent.TokenUsage.SessionTokens
		p.logger.Info("restored token count",
			zap.String("agent", string(name)),
			zap.Int("session_tokens", agent.TokenUsage.SessionTokens))
	}
}

const compactionPrompt = `Time has passed, and your memory of recent events is being gently condensed so you can carry it forward. Write a summary of your recent experiences: where you have been, who you spoke with and what was said, what you were working on, and anything you want to remember. Write it to yourself, in your own voice.`

// Compact shrinks the agent's session by replacing its history with a
// model-written summary. Returns the estimated post-compaction context
// size.
func (p *SessionProvider) Compact(ctx context.Context, agent domain.AgentName) (int, error) {
	p.mu.Lock()
	sess, ok := p.sessions[agent]
	p.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("no session for agent %s", agent)
	}

	req := &messagesRequest{
		Model: sess.model,
		Messages: append(append([]message(nil), sess.messages...), message{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: compactionPrompt}},
		}),
		MaxTokens: p.maxTokens,
		System: []textBlockParam{{
			Type: "text",
			Text: sess.system,
		}},
	}

	resp, err := p.callAPI(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("compaction request for %s: %w", agent, err)
	}

	var summary strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			summary.WriteString(block.Text)
		}
	}

	sess.messages = []message{
		{Role: "user", Content: []contentBlock{{Type: "text", Text: compactionPrompt}}},
		{Role: "assistant", Content: []contentBlock{{Type: "text", Text: summary.String()}}},
	}

	postTokens := p.counter.Count(sess.system) + p.counter.Count(compactionPrompt) + p.counter.Count(summary.String())
	p.mu.Lock()
	p.tokenCounts[agent] = postTokens
	p.mu.Unlock()

	p.logger.Info("compacted session",
		zap.String("agent", string(agent)),
		zap.Int("post_tokens", postTokens))
	return postTokens, nil
}

// ResetSessionAfterCompaction updates local tracking after compaction.
func (p *SessionProvider) ResetSessionAfterCompaction(agent domain.AgentName, postTokens int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenCounts[agent] = postTokens
}

// DisconnectAll drops all agent sessions.
func (p *SessionProvider) DisconnectAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[domain.AgentName]*session)
	p.logger.Info("all sessions dropped")
}

// convertTools converts the registry to wire format. The last tool is
// marked with cache_control so the entire tool list is cached.
func convertTools(tools map[string]llm.Tool) []wireTool {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	wire := make([]wireTool, 0, len(names))
	for _, name := range names {
		def := tools[name]
		wire = append(wire, wireTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	if len(wire) > 0 {
		wire[len(wire)-1].CacheControl = &cacheControl{Type: "ephemeral"}
	}
	return wire
}

// callAPI makes the HTTP request to Anthropic's API, paced and retried
// by the limiter when one is configured.
func (p *SessionProvider) callAPI(ctx context.Context, req *messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var resp *messagesResponse
	err = p.limiter.Do(ctx, func(ctx context.Context) error {
		resp, err = p.doRequest(ctx, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *SessionProvider) doRequest(ctx context.Context, body []byte) (*messagesResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	// Cached prompt tokens don't count against Anthropic's ITPM rate limit.
	httpReq.Header.Set("anthropic-beta", "prompt-caching-2024-07-31")

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("API throttled: %w", llm.ErrThrottled)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &resp, nil
}

// Ensure SessionProvider implements the provider contract.
var _ llm.Provider = (*SessionProvider)(nil)
