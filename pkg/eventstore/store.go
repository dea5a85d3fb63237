// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package eventstore is the durable heart of the village: an
// append-only JSONL event log with periodic full snapshots and cold
// archive segments. All state changes flow through the store as domain
// events; recovery replays the log on top of the latest snapshot.
package eventstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// ErrNotInitialized is returned when the store is used before
// Initialize or a successful Recover.
var ErrNotInitialized = errors.New("event store not initialized")

// Store is the primary persistence mechanism for the village.
type Store struct {
	villageRoot string
	eventLog    string
	snapshots   *SnapshotStore
	archive     *Archive
	logger      *zap.Logger

	current       *domain.VillageSnapshot
	sinceSnapshot []domain.Event
}

// New creates a store rooted at villageRoot, creating the directory
// tree if needed.
func New(villageRoot string, logger *zap.Logger) (*Store, error) {
	if villageRoot == "" {
		return nil, fmt.Errorf("village root is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(villageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create village root: %w", err)
	}
	snapshots, err := NewSnapshotStore(villageRoot)
	if err != nil {
		return nil, err
	}
	archive, err := NewArchive(villageRoot)
	if err != nil {
		return nil, err
	}
	return &Store{
		villageRoot: villageRoot,
		eventLog:    filepath.Join(villageRoot, "events.jsonl"),
		snapshots:   snapshots,
		archive:     archive,
		logger:      logger.Named("eventstore"),
	}, nil
}

// Initialize establishes the starting state for a new village and
// writes it to the snapshot directory.
func (s *Store) Initialize(snapshot domain.VillageSnapshot) error {
	if _, err := s.snapshots.Save(snapshot); err != nil {
		return fmt.Errorf("failed to save initial snapshot: %w", err)
	}
	s.current = &snapshot
	s.sinceSnapshot = nil
	s.logger.Info("initialized village",
		zap.Int("tick", snapshot.Tick()),
		zap.Int("agents", len(snapshot.Agents)))
	return nil
}

// Recover loads the latest snapshot and replays all events with a
// higher tick. Returns found=false when no snapshot exists.
func (s *Store) Recover() (domain.VillageSnapshot, bool, error) {
	snapshot, found, err := s.snapshots.LoadLatest()
	if err != nil || !found {
		return domain.VillageSnapshot{}, false, err
	}

	events, err := s.loadEventsAfter(snapshot.Tick())
	if err != nil {
		return domain.VillageSnapshot{}, false, err
	}

	s.current = &snapshot
	s.sinceSnapshot = nil
	for _, ev := range events {
		next := applyEvent(*s.current, ev)
		s.current = &next
		s.sinceSnapshot = append(s.sinceSnapshot, ev)
	}

	s.logger.Info("recovered village",
		zap.Int("snapshot_tick", snapshot.Tick()),
		zap.Int("replayed_events", len(events)),
		zap.Int("tick", s.current.Tick()))
	return *s.current, true, nil
}

// Append durably writes a single event and applies it.
func (s *Store) Append(ev domain.Event) error {
	return s.AppendAll([]domain.Event{ev})
}

// AppendAll atomically appends a batch of events: all lines are encoded
// first, written in one syscall, and fsynced before any of them are
// applied to the in-memory snapshot. A failure leaves the in-memory
// state untouched.
func (s *Store) AppendAll(events []domain.Event) error {
	if s.current == nil {
		return ErrNotInitialized
	}
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, ev := range events {
		line, err := domain.EncodeEvent(ev)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	f, err := os.OpenFile(s.eventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("failed to append events: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync event log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}

	for _, ev := range events {
		next := applyEvent(*s.current, ev)
		s.current = &next
		s.sinceSnapshot = append(s.sinceSnapshot, ev)
	}
	return nil
}

// CurrentSnapshot returns the in-memory authoritative state.
func (s *Store) CurrentSnapshot() (domain.VillageSnapshot, error) {
	if s.current == nil {
		return domain.VillageSnapshot{}, ErrNotInitialized
	}
	return *s.current, nil
}

// EventsSince returns the in-memory events with tick >= the given tick.
// Events older than the last snapshot are not covered; use
// RecentEvents for log-backed reads.
func (s *Store) EventsSince(tick int) []domain.Event {
	var out []domain.Event
	for _, ev := range s.sinceSnapshot {
		if ev.EventTick() >= tick {
			out = append(out, ev)
		}
	}
	return out
}

// RecentEvents scans the active log backwards and returns up to limit
// events, optionally filtered by type and minimum tick, in
// chronological order.
func (s *Store) RecentEvents(limit int, eventTypes map[string]bool, sinceTick int) ([]domain.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	data, err := os.ReadFile(s.eventLog)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	lines := bytes.Split(data, []byte("\n"))
	var picked []domain.Event
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		ev, err := domain.DecodeEvent(line)
		if err != nil {
			return nil, err
		}
		// The log is tick-monotone, so the scan can stop at the first
		// event older than the cutoff.
		if ev.EventTick() < sinceTick {
			break
		}
		if len(eventTypes) > 0 && !eventTypes[ev.EventType()] {
			continue
		}
		picked = append(picked, ev)
		if len(picked) >= limit {
			break
		}
	}

	// Reverse into chronological order.
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked, nil
}

// SetSchedulerState replaces the scheduler state carried by the
// current snapshot. Scheduler state describes the future, so it is
// managed by the engine rather than by events; the engine sets it just
// before periodic snapshots.
func (s *Store) SetSchedulerState(state domain.SchedulerState) {
	if s.current == nil {
		return
	}
	next := *s.current
	next.SchedulerState = &state
	s.current = &next
}

// CreateSnapshotAndArchive writes a full snapshot at the current tick
// and moves events older than one snapshot interval into an archive
// segment.
func (s *Store) CreateSnapshotAndArchive() error {
	if s.current == nil {
		return ErrNotInitialized
	}
	if _, err := s.snapshots.Save(*s.current); err != nil {
		return err
	}

	cutoff := s.current.Tick() - domain.SnapshotInterval
	if cutoff > 0 {
		archived, err := s.archive.ArchiveEventsBefore(cutoff)
		if err != nil {
			return err
		}
		if archived > 0 {
			s.logger.Info("archived events",
				zap.Int("count", archived),
				zap.Int("cutoff_tick", cutoff))
		}
	}

	s.sinceSnapshot = nil
	return nil
}

// Snapshots exposes the snapshot store for observer queries.
func (s *Store) Snapshots() *SnapshotStore { return s.snapshots }

// ArchiveStore exposes the archive for observer queries.
func (s *Store) ArchiveStore() *Archive { return s.archive }

func (s *Store) loadEventsAfter(tick int) ([]domain.Event, error) {
	f, err := os.Open(s.eventLog)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		ev, err := domain.DecodeEvent(line)
		if err != nil {
			return nil, err
		}
		if ev.EventTick() > tick {
			events = append(events, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan event log: %w", err)
	}
	return events, nil
}
