// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Command hamlet runs the village simulation: init seeds a fresh
// village on disk, run drives the tick loop against the live model
// APIs, and status prints the current state of a village directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/hamlet/internal/log"
	"github.com/teradata-labs/hamlet/pkg/config"
	"github.com/teradata-labs/hamlet/pkg/domain"
	"github.com/teradata-labs/hamlet/pkg/engine"
	"github.com/teradata-labs/hamlet/pkg/interpreter"
	"github.com/teradata-labs/hamlet/pkg/llm"
	"github.com/teradata-labs/hamlet/pkg/llm/anthropic"
	"github.com/teradata-labs/hamlet/pkg/observer"
	"github.com/teradata-labs/hamlet/pkg/village"
)

var (
	cfgPath  string
	maxTicks int
)

var rootCmd = &cobra.Command{
	Use:   "hamlet",
	Short: "Hamlet - an autonomous agent village",
	Long: `Hamlet runs a small village of LLM agents that live on simulated
time: they move around, talk, work, sleep, and dream, with every change
recorded in an append-only event log so a village can always be
recovered exactly where it left off.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed a fresh village in the configured directory",
	RunE:  runInit,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the village tick loop until stopped",
	RunE:  runVillage,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current state of the village",
	RunE:  runStatus,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: ./hamlet.yaml)")
	runCmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "Stop after this many ticks (0 = run forever)")
	rootCmd.AddCommand(initCmd, runCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config and installs the process logger.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := log.New(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	log.SetLogger(logger)
	return cfg, logger, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	start, err := cfg.StartDate()
	if err != nil {
		return err
	}

	// Seeding never calls the model, so the scripted provider will do.
	eng, err := engine.New(engine.Config{
		VillageRoot: cfg.VillageRoot,
		Provider:    llm.NewScriptedProvider(),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	if exists, err := eng.Recover(); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("village at %s is already initialized", cfg.VillageRoot)
	}

	if err := eng.InitializeDefault(start); err != nil {
		return err
	}
	fmt.Printf("Village founded at %s (village time %s)\n",
		cfg.VillageRoot, start.Format(time.RFC3339))
	return nil
}

func runVillage(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Config{
		VillageRoot: cfg.VillageRoot,
		Provider:    provider,
		Interpreter: buildInterpreter(cfg, logger),
		Logger:      logger,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	})
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	if recovered, err := eng.Recover(); err != nil {
		return err
	} else if !recovered {
		return fmt.Errorf("no village at %s; run `hamlet init` first", cfg.VillageRoot)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Dream files dropped from outside surface on the agent's next turn;
	// the watcher just makes the drop visible in the log right away.
	watcher, err := village.WatchDreams(cfg.VillageRoot, eng.Agents().Names(),
		func(agent domain.AgentName, path string) {
			logger.Info("dream file arrived",
				zap.String("agent", string(agent)), zap.String("path", path))
		}, logger)
	if err != nil {
		logger.Warn("dream watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	autosave := cron.New()
	if _, err := autosave.AddFunc(cfg.AutosaveSchedule, func() {
		save(eng, logger)
	}); err != nil {
		return fmt.Errorf("invalid autosave_schedule %q: %w", cfg.AutosaveSchedule, err)
	}
	autosave.Start()
	defer autosave.Stop()

	ticks := cfg.MaxTicks
	if maxTicks > 0 {
		ticks = maxTicks
	}
	logger.Info("village running",
		zap.String("root", cfg.VillageRoot),
		zap.Int("tick", eng.Tick()),
		zap.Int("max_ticks", ticks))

	runErr := eng.Run(ctx, ticks)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		save(eng, logger)
		return runErr
	}

	save(eng, logger)
	logger.Info("village stopped", zap.Int("tick", eng.Tick()))
	return nil
}

// save archives a snapshot with the live scheduler state folded in.
// Runs on the cron goroutine while the tick loop is active.
func save(eng *engine.Engine, logger *zap.Logger) {
	if err := eng.SaveSnapshot(); err != nil {
		logger.Error("snapshot save failed", zap.Error(err))
		return
	}
	logger.Info("snapshot saved", zap.Int("tick", eng.Tick()))
}

func buildProvider(cfg config.Config, logger *zap.Logger) (llm.Provider, error) {
	if cfg.Anthropic.Mock {
		logger.Warn("using scripted provider; agents will not think")
		return llm.NewScriptedProvider(), nil
	}

	apiKey := cfg.Anthropic.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key required (anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	var limiter *llm.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = llm.NewRateLimiter(llm.RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			Logger:            logger,
		})
	}

	return anthropic.NewSessionProvider(anthropic.Config{
		APIKey:    apiKey,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
		Limiter:   limiter,
	}, logger), nil
}

func buildInterpreter(cfg config.Config, logger *zap.Logger) engine.Interpreter {
	if !cfg.Interpreter.Enabled {
		return nil
	}
	apiKey := cfg.Anthropic.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		logger.Warn("interpreter enabled but no API key; narratives pass through raw")
		return nil
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return interpreter.New(&client.Messages, cfg.Interpreter.Model, logger)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eng, err := engine.New(engine.Config{
		VillageRoot: cfg.VillageRoot,
		Provider:    llm.NewScriptedProvider(),
		Logger:      zap.NewNop(),
	})
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	if recovered, err := eng.Recover(); err != nil {
		return err
	} else if !recovered {
		return fmt.Errorf("no village at %s; run `hamlet init` first", cfg.VillageRoot)
	}

	api := observer.New(eng, zap.NewNop())
	v := api.VillageSnapshot()

	fmt.Printf("Village: %s\n", cfg.VillageRoot)
	fmt.Printf("Tick %d, day %d, %s (%s), weather %s\n",
		v.Tick, v.Time.DayNumber, v.Time.TimeOfDay, v.Time.ClockTime, v.Weather)

	agents := make([]observer.AgentDisplay, 0, len(v.Agents))
	for _, a := range v.Agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })

	fmt.Println("\nAgents:")
	for _, a := range agents {
		state := "awake"
		if a.IsSleeping {
			state = "asleep"
		}
		extra := ""
		if a.InConversation {
			extra = ", in conversation"
		} else if a.HasPendingInvite {
			extra = ", invited"
		}
		fmt.Printf("  %-8s %-12s %s, energy %d, %s%s\n",
			a.Name, a.Location, a.Mood, a.Energy, state, extra)
	}

	if len(v.Conversations) > 0 {
		fmt.Println("\nConversations:")
		for _, c := range v.Conversations {
			fmt.Printf("  %s at %s: %v (%d turns, last %s)\n",
				c.ID, c.Location, c.Participants, c.TurnCount, c.LastSpeaker)
		}
	}
	if len(v.PendingInvites) > 0 {
		fmt.Println("\nPending invites:")
		for _, inv := range v.PendingInvites {
			fmt.Printf("  %s -> %s at %s (expires tick %d)\n",
				inv.Inviter, inv.Invitee, inv.Location, inv.ExpiresAtTick)
		}
	}

	usage := api.TotalUsage()
	fmt.Printf("\nTokens: %d total (%d agent turns, %d interpreter calls)\n",
		usage.GrandTotalTokens, usage.AgentTurnCount, usage.InterpreterCallCount)
	return nil
}
