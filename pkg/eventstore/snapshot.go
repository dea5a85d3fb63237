// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package eventstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// SnapshotStore persists full village snapshots as JSON files named
// state_<tick>.json under <villageRoot>/snapshots.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates the snapshots directory if needed.
func NewSnapshotStore(villageRoot string) (*SnapshotStore, error) {
	dir := filepath.Join(villageRoot, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Save writes the snapshot to disk and returns the file path. The file
// is written to a temp name and renamed so readers never observe a
// partial snapshot.
func (s *SnapshotStore) Save(snapshot domain.VillageSnapshot) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf("state_%d.json", snapshot.Tick()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return path, nil
}

// Load reads the snapshot for an exact tick. Returns found=false if no
// snapshot exists at that tick.
func (s *SnapshotStore) Load(tick int) (domain.VillageSnapshot, bool, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("state_%d.json", tick))
	return s.loadFile(path)
}

// LoadLatest reads the snapshot with the highest tick. Returns
// found=false if no snapshots exist.
func (s *SnapshotStore) LoadLatest() (domain.VillageSnapshot, bool, error) {
	ticks, err := s.ListTicks()
	if err != nil || len(ticks) == 0 {
		return domain.VillageSnapshot{}, false, err
	}
	return s.Load(ticks[len(ticks)-1])
}

// ListTicks returns the tick numbers of all stored snapshots, ascending.
func (s *SnapshotStore) ListTicks() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	var ticks []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "state_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, "state_"), ".json")
		tick, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		ticks = append(ticks, tick)
	}
	sort.Ints(ticks)
	return ticks, nil
}

func (s *SnapshotStore) loadFile(path string) (domain.VillageSnapshot, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return domain.VillageSnapshot{}, false, nil
	}
	if err != nil {
		return domain.VillageSnapshot{}, false, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snapshot domain.VillageSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.VillageSnapshot{}, false, fmt.Errorf("failed to parse snapshot %s: %w", filepath.Base(path), err)
	}
	return snapshot, true, nil
}
