// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package village

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// AppendJournal appends content to the agent's daily journal. The date
// comes from world time so entries line up with the simulation, not the
// wall clock.
func AppendJournal(villageRoot string, agent domain.AgentName, worldTime time.Time, content string) error {
	journalDir := filepath.Join(AgentDir(villageRoot, agent), "journal")
	if err := os.MkdirAll(journalDir, 0o755); err != nil {
		return err
	}

	journalFile := filepath.Join(journalDir, worldTime.Format("2006-01-02")+".md")
	f, err := os.OpenFile(journalFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "\n\n%s", content); err != nil {
		return fmt.Errorf("writing journal: %w", err)
	}
	return nil
}
