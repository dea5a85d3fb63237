// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package village

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// AppendDream stores a dream entry for an agent with tick metadata so
// unseen dreams can be filtered later.
func AppendDream(villageRoot string, agent domain.AgentName, content string, tick int) (string, error) {
	agentDir, err := EnsureAgentDirectory(villageRoot, agent)
	if err != nil {
		return "", err
	}

	now := time.Now()
	name := fmt.Sprintf("%s_%06d.md", now.Format("20060102_150405"), now.Nanosecond()/1000)
	entry := fmt.Sprintf("[tick:%d]\n%s", tick, formatDreamEntry(content))

	dreamFile := filepath.Join(agentDir, "dreams", name)
	if err := os.WriteFile(dreamFile, []byte(entry), 0o644); err != nil {
		return "", fmt.Errorf("writing dream: %w", err)
	}
	return dreamFile, nil
}

// UnseenDreams returns dream contents with tick greater than the
// agent's last active tick, oldest first.
func UnseenDreams(agentDir string, lastActiveTick int) []string {
	dreamsDir := filepath.Join(agentDir, "dreams")
	entries, err := os.ReadDir(dreamsDir)
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var unseen []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dreamsDir, name))
		if err != nil {
			continue
		}
		tick, content, ok := readDreamEntry(string(data))
		if ok && tick > lastActiveTick {
			unseen = append(unseen, content)
		}
	}
	return unseen
}

func formatDreamEntry(content string) string {
	return fmt.Sprintf("[Dream]\n%s\n\n(A gentle inspiration drifted through your rest...)", content)
}

func readDreamEntry(content string) (int, string, bool) {
	if !strings.HasPrefix(content, "[tick:") {
		return 0, content, false
	}
	end := strings.Index(content, "]")
	if end <= 0 {
		return 0, content, false
	}
	tick, err := strconv.Atoi(content[6:end])
	if err != nil {
		return 0, content, false
	}
	return tick, strings.TrimLeft(content[end+1:], "\n"), true
}
