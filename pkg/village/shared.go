// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package village manages the on-disk village: per-agent directories,
// location-scoped shared files, journals, and dreams. Everything here
// is plain filesystem state, not event-sourced.
package village

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// LocationSharedDirs maps each location to the shared directory names
// agents can read and write while they are there.
var LocationSharedDirs = map[domain.LocationID][]string{
	"town_square": {"town_square", "bulletin_board"},
	"workshop":    {"workshop"},
	"library":     {"library"},
	"residential": {"residential"},
	"garden":      {"garden"},
	"riverbank":   {"riverbank"},
}

var agentSubdirs = []string{"home", "workspace", "journal", "dreams", "memories", "inbox", "outbox"}

// AgentDir returns the agent's root directory under the village root.
func AgentDir(villageRoot string, agent domain.AgentName) string {
	return filepath.Join(villageRoot, "agents", strings.ToLower(string(agent)))
}

// EnsureAgentDirectory creates the agent's directory structure if it
// does not exist and returns the agent's root directory.
func EnsureAgentDirectory(villageRoot string, agent domain.AgentName) (string, error) {
	agentDir := AgentDir(villageRoot, agent)
	for _, sub := range agentSubdirs {
		if err := os.MkdirAll(filepath.Join(agentDir, sub), 0o755); err != nil {
			return "", fmt.Errorf("creating agent directory: %w", err)
		}
	}
	return agentDir, nil
}

// EnsureSharedDirectories creates the shared directory tree.
func EnsureSharedDirectories(villageRoot string) error {
	seen := map[string]bool{}
	for _, names := range LocationSharedDirs {
		for _, name := range names {
			seen[name] = true
		}
	}
	for name := range seen {
		if err := os.MkdirAll(filepath.Join(villageRoot, "shared", name), 0o755); err != nil {
			return fmt.Errorf("creating shared directory: %w", err)
		}
	}
	return nil
}

// SharedDirsForLocation returns the shared directory names reachable
// from a location.
func SharedDirsForLocation(location domain.LocationID) []string {
	return LocationSharedDirs[location]
}

// SyncSharedFilesIn copies the location's shared files into the agent's
// ./shared/ directory before a turn. Returns the relative paths copied,
// sorted, for the context prompt.
func SyncSharedFilesIn(agentDir string, location domain.LocationID, masterDir string) ([]string, error) {
	if err := os.MkdirAll(masterDir, 0o755); err != nil {
		return nil, err
	}
	sharedDir := filepath.Join(agentDir, "shared")
	if err := os.RemoveAll(sharedDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(sharedDir, 0o755); err != nil {
		return nil, err
	}

	var copied []string
	for _, subdir := range SharedDirsForLocation(location) {
		src := filepath.Join(masterDir, subdir)
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			continue
		}
		dst := filepath.Join(sharedDir, subdir)
		if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
			return nil, fmt.Errorf("copying shared files in: %w", err)
		}
		err := filepath.WalkDir(dst, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(agentDir, path)
			if err != nil {
				return err
			}
			copied = append(copied, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(copied)
	return copied, nil
}

// SyncSharedFilesOut copies the agent's ./shared/ files back to the
// master tree and removes the agent's copy. The location is the one
// from turn start, not where the agent ended up.
func SyncSharedFilesOut(agentDir string, location domain.LocationID, masterDir string) error {
	sharedDir := filepath.Join(agentDir, "shared")
	if _, err := os.Stat(sharedDir); os.IsNotExist(err) {
		return nil
	}

	for _, subdir := range SharedDirsForLocation(location) {
		src := filepath.Join(sharedDir, subdir)
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			continue
		}
		dst := filepath.Join(masterDir, subdir)
		err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}
			target := filepath.Join(dst, rel)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return os.WriteFile(target, data, 0o644)
		})
		if err != nil {
			return fmt.Errorf("copying shared files out: %w", err)
		}
	}
	return os.RemoveAll(sharedDir)
}

// SharedFileList lists the shared files currently in the agent's
// directory, relative to the agent root.
func SharedFileList(agentDir string) []string {
	sharedDir := filepath.Join(agentDir, "shared")
	if _, err := os.Stat(sharedDir); err != nil {
		return nil
	}
	var files []string
	_ = filepath.WalkDir(sharedDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(agentDir, path); err == nil {
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Strings(files)
	return files
}

var htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)

// EnsureDescriptionFiles creates description.md for each location that
// does not already have one. Agents can edit these to reshape how
// locations read in prompts.
func EnsureDescriptionFiles(villageRoot string, descriptions map[domain.LocationID]string) error {
	for locationID, description := range descriptions {
		descFile := filepath.Join(villageRoot, "shared", string(locationID), "description.md")
		if _, err := os.Stat(descFile); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(descFile), 0o755); err != nil {
			return err
		}
		content := fmt.Sprintf(`<!-- This is what you see when you're in this location.
Feel free to edit/add to it as the village grows! -->

%s
`, description)
		if err := os.WriteFile(descFile, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// ReadLocationDescription reads the agent-editable description for a
// location, with HTML comments stripped. Empty string means the caller
// should fall back to the location's built-in description.
func ReadLocationDescription(villageRoot string, locationID domain.LocationID) string {
	descFile := filepath.Join(villageRoot, "shared", string(locationID), "description.md")
	data, err := os.ReadFile(descFile)
	if err != nil {
		return ""
	}
	content := strings.TrimSpace(string(data))
	return strings.TrimSpace(htmlComments.ReplaceAllString(content, ""))
}
