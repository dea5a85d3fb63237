// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package engine runs the village simulation: an event-sourced tick
// loop where LLM agents act, a narrative interpreter extracts what they
// did, and an apply-effects phase turns it all into the event log.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/internal/pubsub"
	"github.com/teradata-labs/hamlet/pkg/compaction"
	"github.com/teradata-labs/hamlet/pkg/conversation"
	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/eventstore"
	"github.com/teradata-labs/hamlet/pkg/interpreter"
	"github.com/teradata-labs/hamlet/pkg/llm"
	"github.com/teradata-labs/hamlet/pkg/registry"
	"github.com/teradata-labs/hamlet/pkg/scheduler"
	"github.com/teradata-labs/hamlet/pkg/village"
)

// FoundingDescription is the first event recorded in a fresh village.
const FoundingDescription = "ClaudeVille has been founded! Three residents begin their new lives."

// StreamEvent is one committed event published to subscribers.
type StreamEvent struct {
	Tick  int
	Event domain.Event
}

// Config configures an Engine.
type Config struct {
	// VillageRoot is the on-disk village directory: event log, agent
	// home directories, and shared location folders live under it.
	VillageRoot string

	Provider    llm.Provider
	Interpreter Interpreter
	Logger      *zap.Logger

	// Rand drives speaker selection; defaults to a time-seeded source.
	Rand *rand.Rand
}

// Engine is the simulation facade: it owns the event store, scheduler,
// and tick pipeline, and exposes the operations the observer and CLI
// drive the village with.
type Engine struct {
	mu sync.Mutex

	villageRoot string
	logger      *zap.Logger
	rng         *rand.Rand

	store     *eventstore.Store
	sched     *scheduler.Scheduler
	convs     *conversation.Service
	agents    *registry.AgentRegistry
	provider  llm.Provider
	compactor *compaction.Service

	pipeline    *Pipeline
	wakePhase   *WakeCheckPhase
	applyEffect *ApplyEffectsPhase

	snap           domain.VillageSnapshot
	timeSnapshot   domain.TimeSnapshot
	recentArrivals []domain.AgentName

	running       bool
	paused        bool
	pauseRequest  bool
	tickCallbacks   []func(TickResult)
	evCallbacks     []func(domain.Event)
	streamCallbacks []func(domain.AgentName, string)
	cbMu            sync.Mutex

	stream *pubsub.Broker[StreamEvent]
}

// New builds an engine rooted at cfg.VillageRoot. The store is opened
// but no state is loaded; call Initialize or Recover next.
func New(cfg Config) (*Engine, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	interp := cfg.Interpreter
	if interp == nil {
		interp = nopInterpreter{}
	}

	store, err := eventstore.New(cfg.VillageRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}

	e := &Engine{
		villageRoot: cfg.VillageRoot,
		logger:      logger.Named("engine"),
		rng:         rng,
		store:       store,
		sched:       scheduler.New(logger),
		convs:       conversation.New(),
		agents:      registry.New(),
		provider:    cfg.Provider,
		compactor:   compaction.NewService(cfg.Provider, logger),
		stream:      pubsub.NewBroker[StreamEvent](),
	}
	e.wakePhase = NewWakeCheckPhase(logger)
	e.applyEffect = NewApplyEffectsPhase(e.compactor, logger)
	e.pipeline = NewPipeline(logger,
		e.wakePhase,
		NewSchedulePhase(e.sched, rng, logger),
		NewAgentTurnPhase(cfg.Provider, e.convs, store, cfg.VillageRoot, logger),
		NewInterpretPhase(interp, logger),
		e.applyEffect,
	)
	return e, nil
}

// Initialize seeds a fresh village from the snapshot and records the
// founding event.
func (e *Engine) Initialize(snapshot domain.VillageSnapshot) error {
	e.mu.Lock()
	if err := e.store.Initialize(snapshot); err != nil {
		e.mu.Unlock()
		return err
	}
	e.hydrate(snapshot, true)

	names := make([]domain.AgentName, 0, len(snapshot.Agents))
	for name := range snapshot.Agents {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	e.mu.Unlock()

	return e.CommitEvent(&domain.WorldEventOccurred{
		EventMeta:      domain.NewMeta(domain.TypeWorldEvent, snapshot.World.Tick, snapshot.World.WorldTime),
		Description:    FoundingDescription,
		AgentsInvolved: names,
	})
}

// InitializeDefault seeds the built-in village: four locations and the
// three founding residents.
func (e *Engine) InitializeDefault(startTime time.Time) error {
	snapshot, err := BuildInitialSnapshot(e.villageRoot, startTime, nil, nil)
	if err != nil {
		return err
	}
	return e.Initialize(snapshot)
}

// Recover loads persisted state. It reports false when the village has
// never been initialized.
func (e *Engine) Recover() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot, ok, err := e.store.Recover()
	if err != nil || !ok {
		return false, err
	}
	e.hydrate(snapshot, true)
	e.ensureSchedule()
	return true, nil
}

// hydrate replaces in-memory state from a snapshot. Scheduler state is
// only reloaded on recovery; mid-run hydration keeps the live
// scheduler so forced-turn and skip modifiers survive.
func (e *Engine) hydrate(snapshot domain.VillageSnapshot, includeScheduler bool) {
	e.snap = snapshot
	e.timeSnapshot = domain.TimeSnapshot{
		WorldTime: snapshot.World.WorldTime,
		Tick:      snapshot.World.Tick,
		StartDate: snapshot.World.StartDate,
	}
	e.agents.LoadState(snapshot.Agents)
	e.convs.LoadState(snapshot.Conversations, snapshot.PendingInvites)
	if includeScheduler && snapshot.SchedulerState != nil {
		e.sched.LoadState(*snapshot.SchedulerState)
	}
	e.provider.RestoreTokenCounts(snapshot.Agents)
}

// TickOnce advances the simulation by one tick.
func (e *Engine) TickOnce(ctx context.Context) (TickResult, error) {
	e.mu.Lock()

	e.ensureSchedule()
	e.wakePhase.SetRecentArrivals(e.recentArrivals)

	now := e.snap.World.WorldTime
	due, ok := e.sched.EarliestDueTime()
	if !ok {
		due = now.Add(scheduler.SoloPace)
	}

	// When everyone sleeps outside morning hours, jump to 06:00.
	var nightSkip *domain.NightSkippedEvent
	if e.agents.AllSleeping() && domain.PeriodOf(now) != domain.Morning {
		morning := domain.NextMorning(now)
		if morning.After(due) {
			nightSkip = &domain.NightSkippedEvent{
				EventMeta: domain.NewMeta(domain.TypeNightSkipped, e.snap.World.Tick+1, morning),
				FromTime:  now,
				ToTime:    morning,
			}
			due = morning
		}
	}

	tick := e.snap.World.Tick + 1
	ts := domain.TimeSnapshot{WorldTime: due, Tick: tick, StartDate: e.snap.World.StartDate}
	scheduled := e.sched.PopEventsUpTo(due)

	tc := TickContext{
		Tick:            tick,
		Timestamp:       due,
		TimeSnapshot:    ts,
		World:           e.snap.World,
		Agents:          e.snap.Agents,
		Conversations:   e.snap.Conversations,
		PendingInvites:  e.snap.PendingInvites,
		UnseenEndings:   e.snap.UnseenEndings,
		ScheduledEvents: scheduled,
		TurnResults:     map[domain.AgentName]TurnOutput{},
	}

	tc, err := e.pipeline.Execute(ctx, tc)
	if err != nil {
		e.mu.Unlock()
		return TickResult{}, err
	}

	events := tc.Events
	if nightSkip != nil {
		events = append([]domain.Event{nightSkip}, events...)
	}
	if err := e.store.AppendAll(events); err != nil {
		e.mu.Unlock()
		return TickResult{}, fmt.Errorf("committing tick %d: %w", tick, err)
	}

	snapshot, err := e.store.CurrentSnapshot()
	if err != nil {
		e.mu.Unlock()
		return TickResult{}, err
	}
	e.hydrate(snapshot, false)

	if tick%domain.SnapshotInterval == 0 {
		e.store.SetSchedulerState(e.sched.ToState())
		if err := e.store.CreateSnapshotAndArchive(); err != nil {
			e.logger.Error("snapshot archive failed", zap.Int("tick", tick), zap.Error(err))
		}
	}

	arrivals := make(map[domain.AgentName]struct{})
	for _, ev := range events {
		switch moved := ev.(type) {
		case *domain.AgentMovedEvent:
			arrivals[moved.Agent] = struct{}{}
		case *domain.AgentLastActiveTickUpdatedEvent:
			if moved.Location != "" {
				e.sched.SetLastLocationSpeaker(moved.Location, moved.Agent)
			}
		}
	}
	e.recentArrivals = e.recentArrivals[:0]
	for a := range arrivals {
		e.recentArrivals = append(e.recentArrivals, a)
	}
	sort.Slice(e.recentArrivals, func(i, j int) bool { return e.recentArrivals[i] < e.recentArrivals[j] })

	for _, agent := range tc.AgentsActed {
		e.sched.RecordTurn(agent)
	}

	e.ensureSchedule()
	e.mu.Unlock()

	result := resultFromContext(tc)
	result.Events = events
	e.fireTickCallbacks(result)
	e.fireAgentStreamCallbacks(result)
	for _, ev := range events {
		e.fireEventCallbacks(tick, ev)
	}
	return result, nil
}

// ensureSchedule re-seeds the queue so everyone always has a reason to
// act: invitees respond soon, conversations keep their cadence, and
// solo agents act on the slow pace. Callers hold e.mu.
func (e *Engine) ensureSchedule() {
	now := e.snap.World.WorldTime

	invitees := make([]domain.AgentName, 0, len(e.snap.PendingInvites))
	for invitee := range e.snap.PendingInvites {
		invitees = append(invitees, invitee)
	}
	sort.Slice(invitees, func(i, j int) bool { return invitees[i] < invitees[j] })
	for _, invitee := range invitees {
		if !e.sched.HasPendingInviteResponse(invitee) {
			loc := e.snap.World.AgentLocations[invitee]
			e.sched.ScheduleInviteResponse(invitee, loc, now.Add(scheduler.InviteResponsePace))
		}
	}

	ids := make([]domain.ConversationID, 0, len(e.snap.Conversations))
	for id := range e.snap.Conversations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !e.sched.HasPendingConversationTurn(id) {
			e.sched.ScheduleConversationTurn(id, e.snap.Conversations[id].Location, now.Add(scheduler.ConversationPace))
		}
	}

	for _, name := range e.agents.Names() {
		agent, _ := e.agents.Get(name)
		if agent.IsSleeping || e.convs.InConversation(name) {
			continue
		}
		if _, invited := e.snap.PendingInvites[name]; invited {
			continue
		}
		if !e.sched.HasPendingAgentTurn(name) {
			e.sched.ScheduleAgentTurn(name, agent.Location, now.Add(scheduler.SoloPace))
		}
	}
}

// Run ticks continuously until Stop, context cancellation, or maxTicks
// ticks have run (zero means unlimited). Pause takes effect between
// ticks.
func (e *Engine) Run(ctx context.Context, maxTicks int) error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	ticks := 0
	for {
		e.mu.Lock()
		running, paused := e.running, e.paused
		e.mu.Unlock()
		if !running {
			return nil
		}

		select {
		case <-ctx.Done():
			e.Stop()
			return ctx.Err()
		default:
		}

		if paused {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if _, err := e.TickOnce(ctx); err != nil {
			e.Stop()
			return err
		}
		ticks++

		e.mu.Lock()
		if e.pauseRequest {
			e.paused = true
			e.pauseRequest = false
		}
		e.mu.Unlock()

		if maxTicks > 0 && ticks >= maxTicks {
			e.Stop()
			return nil
		}
	}
}

// Pause requests a pause after the current tick completes.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.pauseRequest = true
	e.mu.Unlock()
}

// Resume clears a pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.pauseRequest = false
	e.mu.Unlock()
}

// Stop ends the run loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Paused reports whether the loop is paused.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// CommitEvent appends one event outside the tick pipeline, used for
// observer interventions like world events and weather changes.
func (e *Engine) CommitEvent(ev domain.Event) error {
	e.mu.Lock()
	if err := e.store.Append(ev); err != nil {
		e.mu.Unlock()
		return err
	}
	snapshot, err := e.store.CurrentSnapshot()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.hydrate(snapshot, false)
	tick := snapshot.World.Tick
	e.mu.Unlock()

	e.fireEventCallbacks(tick, ev)
	return nil
}

// ApplyEffects validates and applies effects against current state
// outside the tick pipeline, committing whatever events they produce.
func (e *Engine) ApplyEffects(ctx context.Context, effects ...domain.Effect) error {
	e.mu.Lock()
	tc := TickContext{
		Tick:           e.snap.World.Tick,
		Timestamp:      e.snap.World.WorldTime,
		TimeSnapshot:   e.timeSnapshot,
		World:          e.snap.World,
		Agents:         e.snap.Agents,
		Conversations:  e.snap.Conversations,
		PendingInvites: e.snap.PendingInvites,
		UnseenEndings:  e.snap.UnseenEndings,
		Effects:        effects,
		TurnResults:    map[domain.AgentName]TurnOutput{},
	}

	tc, err := e.applyEffect.Execute(ctx, tc)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if len(tc.Events) == 0 {
		e.mu.Unlock()
		return nil
	}
	if err := e.store.AppendAll(tc.Events); err != nil {
		e.mu.Unlock()
		return err
	}
	snapshot, err := e.store.CurrentSnapshot()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.hydrate(snapshot, false)
	tick := snapshot.World.Tick
	e.mu.Unlock()

	for _, ev := range tc.Events {
		e.fireEventCallbacks(tick, ev)
	}
	return nil
}

// EndConversation ends a conversation outright.
func (e *Engine) EndConversation(ctx context.Context, id domain.ConversationID, reason string) error {
	e.mu.Lock()
	_, ok := e.snap.Conversations[id]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown conversation %q", id)
	}
	if reason == "" {
		reason = "ended"
	}
	return e.ApplyEffects(ctx, domain.EndConversationEffect{ConversationID: id, Reason: reason})
}

// WriteJournal appends to the agent's journal under the current world
// date.
func (e *Engine) WriteJournal(agent domain.AgentName, content string) error {
	e.mu.Lock()
	_, ok := e.agents.Get(agent)
	worldTime := e.snap.World.WorldTime
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown agent %q", agent)
	}
	return village.AppendJournal(e.villageRoot, agent, worldTime, content)
}

// WriteDream drops a dream for the agent, stamped one tick ahead so it
// surfaces as unseen on their next turn.
func (e *Engine) WriteDream(agent domain.AgentName, content string) (string, error) {
	e.mu.Lock()
	_, ok := e.agents.Get(agent)
	tick := e.snap.World.Tick
	e.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown agent %q", agent)
	}
	return village.AppendDream(e.villageRoot, agent, content, tick+1)
}

// OnTick registers a callback fired after each completed tick.
// Callback panics are recovered and logged.
func (e *Engine) OnTick(fn func(TickResult)) {
	e.cbMu.Lock()
	e.tickCallbacks = append(e.tickCallbacks, fn)
	e.cbMu.Unlock()
}

// OnEvent registers a callback fired for every committed event.
func (e *Engine) OnEvent(fn func(domain.Event)) {
	e.cbMu.Lock()
	e.evCallbacks = append(e.evCallbacks, fn)
	e.cbMu.Unlock()
}

// OnAgentStream registers a callback fired with each acting agent's
// narrative as ticks complete, in acting order. Agents whose turn
// produced no narrative are skipped.
func (e *Engine) OnAgentStream(fn func(domain.AgentName, string)) {
	e.cbMu.Lock()
	e.streamCallbacks = append(e.streamCallbacks, fn)
	e.cbMu.Unlock()
}

// Subscribe returns a channel of committed events plus a cancel func.
// Slow subscribers drop events rather than stalling the tick loop.
func (e *Engine) Subscribe() (<-chan StreamEvent, func()) {
	return e.stream.Subscribe()
}

func (e *Engine) fireTickCallbacks(result TickResult) {
	e.cbMu.Lock()
	callbacks := append(([]func(TickResult))(nil), e.tickCallbacks...)
	e.cbMu.Unlock()
	for _, fn := range callbacks {
		e.safely(func() { fn(result) })
	}
}

func (e *Engine) fireAgentStreamCallbacks(result TickResult) {
	e.cbMu.Lock()
	callbacks := append(([]func(domain.AgentName, string))(nil), e.streamCallbacks...)
	e.cbMu.Unlock()
	if len(callbacks) == 0 {
		return
	}
	for _, agent := range result.AgentsActed {
		narrative := result.TurnResults[agent].Narrative
		if narrative == "" {
			continue
		}
		for _, fn := range callbacks {
			e.safely(func() { fn(agent, narrative) })
		}
	}
}

func (e *Engine) fireEventCallbacks(tick int, ev domain.Event) {
	e.stream.Publish(StreamEvent{Tick: tick, Event: ev})
	e.cbMu.Lock()
	callbacks := append(([]func(domain.Event))(nil), e.evCallbacks...)
	e.cbMu.Unlock()
	for _, fn := range callbacks {
		e.safely(func() { fn(ev) })
	}
}

func (e *Engine) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Snapshot returns the current village state.
func (e *Engine) Snapshot() domain.VillageSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// Tick returns the current tick number.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.World.Tick
}

// TimeSnapshot returns the current simulated time.
func (e *Engine) TimeSnapshot() domain.TimeSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeSnapshot
}

// ForceNextTurn marks the agent as the next speaker wherever they are.
// Safe to call while the engine is running.
func (e *Engine) ForceNextTurn(agent domain.AgentName) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched.ForceNextTurn(agent)
}

// SkipTurns makes the agent sit out their next count turns.
func (e *Engine) SkipTurns(agent domain.AgentName, count int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched.SkipTurns(agent, count)
}

// ClearScheduleModifiers drops all forced-turn and skip modifiers.
func (e *Engine) ClearScheduleModifiers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sched.ClearAllModifiers()
}

// ScheduleState returns a copy of the scheduler's queue and modifiers.
func (e *Engine) ScheduleState() domain.SchedulerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.ToState()
}

// EventsSince returns committed events at ticks greater than tick.
func (e *Engine) EventsSince(tick int) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.EventsSince(tick)
}

// SaveSnapshot persists a snapshot with the live scheduler state folded
// in and archives the events it covers. Safe to call from a wall-clock
// timer while the tick loop runs.
func (e *Engine) SaveSnapshot() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.SetSchedulerState(e.sched.ToState())
	return e.store.CreateSnapshotAndArchive()
}

// Scheduler exposes the live scheduler. The scheduler has no locking of
// its own: callers outside the tick loop use the engine's locked
// wrappers (ForceNextTurn, SkipTurns, ScheduleState) instead.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.sched }

// Store exposes the event store. Like the scheduler, it is driven from
// the tick loop; concurrent callers go through EventsSince and
// SaveSnapshot.
func (e *Engine) Store() *eventstore.Store { return e.store }

// Compactor exposes the compaction service.
func (e *Engine) Compactor() *compaction.Service { return e.compactor }

// Conversations exposes the conversation read model.
func (e *Engine) Conversations() *conversation.Service { return e.convs }

// Agents exposes the agent registry.
func (e *Engine) Agents() *registry.AgentRegistry { return e.agents }

// VillageRoot returns the on-disk village directory.
func (e *Engine) VillageRoot() string { return e.villageRoot }

// Shutdown stops the loop and tears down provider sessions.
func (e *Engine) Shutdown() {
	e.Stop()
	e.provider.DisconnectAll()
	e.stream.Close()
}

// nopInterpreter passes narratives through untouched when no
// interpreter is configured.
type nopInterpreter struct{}

func (nopInterpreter) Interpret(_ context.Context, narrative string, _ interpreter.Context) (interpreter.Observations, *interpreter.TokenUsage, error) {
	return interpreter.Observations{Narrative: narrative}, nil, nil
}
