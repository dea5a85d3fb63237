// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Phase is one stage of the tick pipeline. Execute receives the
// accumulated tick context and returns it with the phase's additions.
type Phase interface {
	Name() string
	Execute(ctx context.Context, tc TickContext) (TickContext, error)
}

// PhaseError wraps a failure from a pipeline phase with the phase name.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Pipeline runs tick phases in order, threading the context through.
// A phase error aborts the tick; no partial state is committed.
type Pipeline struct {
	phases []Phase
	logger *zap.Logger
}

func NewPipeline(logger *zap.Logger, phases ...Phase) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{phases: phases, logger: logger.Named("pipeline")}
}

func (p *Pipeline) Execute(ctx context.Context, tc TickContext) (TickContext, error) {
	start := time.Now()
	for _, phase := range p.phases {
		phaseStart := time.Now()
		effectsBefore, eventsBefore := len(tc.Effects), len(tc.Events)

		next, err := phase.Execute(ctx, tc)
		if err != nil {
			return tc, &PhaseError{Phase: phase.Name(), Err: err}
		}
		tc = next

		p.logger.Debug("phase complete",
			zap.String("phase", phase.Name()),
			zap.Int("tick", tc.Tick),
			zap.Duration("duration", time.Since(phaseStart)),
			zap.Int("effects_added", len(tc.Effects)-effectsBefore),
			zap.Int("events_added", len(tc.Events)-eventsBefore))
	}

	p.logger.Info("tick pipeline complete",
		zap.Int("tick", tc.Tick),
		zap.Duration("duration", time.Since(start)),
		zap.Int("events", len(tc.Events)),
		zap.Int("agents_acted", len(tc.AgentsActed)))
	return tc, nil
}
