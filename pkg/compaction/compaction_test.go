// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package compaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teradata-labs/hamlet/pkg/llm"
)

func TestExecuteCompactResetsSession(t *testing.T) {
	provider := llm.NewScriptedProvider()
	provider.TokenCounts["Ember"] = 160_000
	provider.CompactedTo = 8_000

	svc := NewService(provider, nil)
	post := svc.ExecuteCompact(context.Background(), "Ember", true)

	assert.Equal(t, 8_000, post)
	assert.Equal(t, []string{"Ember"}, agentNames(provider.Compacted))
	assert.Equal(t, 8_000, svc.TokenCount("Ember"))
	assert.False(t, svc.IsCompacting())
}

func TestExecuteCompactSkipsWhileInFlight(t *testing.T) {
	provider := llm.NewScriptedProvider()
	provider.TokenCounts["Ember"] = 120_000
	provider.CompactedTo = 5_000

	svc := NewService(provider, nil)
	svc.mu.Lock()
	svc.compacting["Ember"] = true
	svc.mu.Unlock()

	post := svc.ExecuteCompact(context.Background(), "Ember", false)
	assert.Equal(t, 120_000, post, "in-flight compaction returns the current count")
	assert.Empty(t, provider.Compacted)
	assert.True(t, svc.IsCompacting())
}

func agentNames[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
