// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package eventstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Archive moves old event log lines into cold-storage segment files
// named events_<first>_<last>.jsonl. The union of the active log and
// all segments equals the original append sequence.
type Archive struct {
	dir       string
	activeLog string
}

// NewArchive creates the archive directory if needed.
func NewArchive(villageRoot string) (*Archive, error) {
	dir := filepath.Join(villageRoot, "archive")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{dir: dir, activeLog: filepath.Join(villageRoot, "events.jsonl")}, nil
}

// ArchiveEventsBefore moves every event with tick < cutoff from the
// active log to a new segment. Returns the number of lines archived.
func (a *Archive) ArchiveEventsBefore(cutoff int) (int, error) {
	data, err := os.ReadFile(a.activeLog)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read event log: %w", err)
	}

	var keep, old [][]byte
	firstTick, lastTick := -1, -1
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		tick, err := tickOf(line)
		if err != nil {
			return 0, err
		}
		if tick < cutoff {
			old = append(old, line)
			if firstTick < 0 {
				firstTick = tick
			}
			lastTick = tick
		} else {
			keep = append(keep, line)
		}
	}
	if len(old) == 0 {
		return 0, nil
	}

	segment := filepath.Join(a.dir, fmt.Sprintf("events_%d_%d.jsonl", firstTick, lastTick))
	f, err := os.OpenFile(segment, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive segment: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, line := range old {
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to write archive segment: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close archive segment: %w", err)
	}

	// Rewrite the active log with only the retained lines. The archive
	// segment is durable first, so a crash here at worst duplicates
	// lines across segment and log, never loses them.
	var buf bytes.Buffer
	for _, line := range keep {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(a.activeLog, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("failed to rewrite event log: %w", err)
	}
	return len(old), nil
}

// Ranges returns the (first, last) tick ranges of all segments,
// ascending by first tick.
func (a *Archive) Ranges() ([][2]int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	var ranges [][2]int
	for _, e := range entries {
		first, last, ok := parseSegmentName(e.Name())
		if ok {
			ranges = append(ranges, [2]int{first, last})
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i][0] < ranges[j][0] })
	return ranges, nil
}

// LoadRange returns raw event lines from segments overlapping
// [startTick, endTick], filtered to that tick range.
func (a *Archive) LoadRange(startTick, endTick int) ([][]byte, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive: %w", err)
	}
	var out [][]byte
	for _, e := range entries {
		first, last, ok := parseSegmentName(e.Name())
		if !ok || first > endTick || last < startTick {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read archive segment %s: %w", e.Name(), err)
		}
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			tick, err := tickOf(line)
			if err != nil {
				return nil, err
			}
			if tick >= startTick && tick <= endTick {
				out = append(out, line)
			}
		}
	}
	return out, nil
}

func parseSegmentName(name string) (first, last int, ok bool) {
	if !strings.HasPrefix(name, "events_") || !strings.HasSuffix(name, ".jsonl") {
		return 0, 0, false
	}
	parts := strings.Split(strings.TrimSuffix(name, ".jsonl"), "_")
	if len(parts) != 3 {
		return 0, 0, false
	}
	first, err1 := strconv.Atoi(parts[1])
	last, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return first, last, true
}

func tickOf(line []byte) (int, error) {
	var head struct {
		Tick int `json:"tick"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return 0, fmt.Errorf("failed to parse event line: %w", err)
	}
	return head.Tick, nil
}
