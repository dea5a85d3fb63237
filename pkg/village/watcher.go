// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package village

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// DreamWatcher notices dream files dropped into agents' dreams
// directories from outside the engine, so observer-sent dreams surface
// without polling.
type DreamWatcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	agents  map[string]domain.AgentName
	onDream func(agent domain.AgentName, path string)
	done    chan struct{}
}

// WatchDreams starts watching each agent's dreams directory. The
// callback runs on the watcher goroutine and must not block.
func WatchDreams(villageRoot string, agents []domain.AgentName, onDream func(domain.AgentName, string), logger *zap.Logger) (*DreamWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &DreamWatcher{
		watcher: watcher,
		logger:  logger,
		agents:  make(map[string]domain.AgentName, len(agents)),
		onDream: onDream,
		done:    make(chan struct{}),
	}
	for _, agent := range agents {
		agentDir, err := EnsureAgentDirectory(villageRoot, agent)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		dreamsDir := filepath.Join(agentDir, "dreams")
		if err := watcher.Add(dreamsDir); err != nil {
			watcher.Close()
			return nil, err
		}
		w.agents[strings.ToLower(string(agent))] = agent
	}

	go w.run()
	return w, nil
}

func (w *DreamWatcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			dir := filepath.Base(filepath.Dir(filepath.Dir(event.Name)))
			agent, known := w.agents[dir]
			if !known {
				continue
			}
			w.logger.Debug("dream file appeared",
				zap.String("agent", string(agent)), zap.String("file", filepath.Base(event.Name)))
			if w.onDream != nil {
				w.onDream(agent, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("dream watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for the run loop to exit.
func (w *DreamWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
