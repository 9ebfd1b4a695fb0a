// Command normengine runs one inference orchestration pass over a
// workspace directory of concepts.json/inferences.json/inputs.json,
// checkpointing progress to SQLite and reporting a final summary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geoguansin/normengine/internal/config"
	"github.com/geoguansin/normengine/internal/eventbus"
	"github.com/geoguansin/normengine/internal/infrastructure/logger"
	"github.com/geoguansin/normengine/pkg/blackboard"
	"github.com/geoguansin/normengine/pkg/checkpoint"
	"github.com/geoguansin/normengine/pkg/orchestrator"
	"github.com/geoguansin/normengine/pkg/paradigm"
	"github.com/geoguansin/normengine/pkg/repo"
	"github.com/geoguansin/normengine/pkg/sequence"
	"github.com/geoguansin/normengine/pkg/waitlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loader := repo.NewLoader(cfg.BaseDir)
	conceptRepo, err := loader.LoadConcepts()
	if err != nil {
		return fmt.Errorf("load concepts: %w", err)
	}
	inferenceRepo, err := loader.LoadInferences()
	if err != nil {
		return fmt.Errorf("load inferences: %w", err)
	}
	if err := loader.LoadInputs(conceptRepo); err != nil {
		return fmt.Errorf("load inputs: %w", err)
	}

	ckpt, err := checkpoint.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer ckpt.Close()
	if err := ckpt.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate checkpoint store: %w", err)
	}

	b := blackboard.New()
	runID := orchestrator.NewRunID()

	if doc, err := ckpt.LatestCheckpoint(ctx, runID); err == nil && doc != nil {
		if err := checkpoint.Reconcile(checkpoint.Mode(cfg.ReconciliationMode), doc, conceptRepo, inferenceRepo, b, false); err != nil {
			return fmt.Errorf("reconcile checkpoint: %w", err)
		}
	}

	wl := waitlist.New(inferenceRepo.All())
	registry := sequence.NewDefaultRegistry()

	paradigms := map[string]*paradigm.Paradigm{}
	if cfg.ParadigmDir != "" {
		loaded, err := paradigm.LoadParadigmDir(cfg.ParadigmDir)
		if err != nil {
			return fmt.Errorf("load paradigms: %w", err)
		}
		paradigms = loaded
	}
	modelRunner := paradigm.NewRunner(paradigms, cfg.LLMModel, paradigm.EchoLLMClient{})

	o := orchestrator.New(runID, conceptRepo, inferenceRepo, b, wl, registry, modelRunner)
	o.MaxCycles = cfg.MaxCycles
	o.DevMode = cfg.DevMode
	if cfg.RunMode == "SLOW" {
		o.Mode = orchestrator.ModeSlow
	}
	o.Checkpointer = ckpt

	bus := eventbus.New(log)
	if err := bus.Register(eventbus.NewLogSink(log)); err != nil {
		return fmt.Errorf("register log sink: %w", err)
	}
	o.Emitter = bus

	log.WithRun(runID).Info("run starting", "max_cycles", cfg.MaxCycles, "run_mode", string(o.Mode))

	result, err := o.Run(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator run: %w", err)
	}

	log.WithRun(runID).Info("run finished",
		"cycles", result.Cycles,
		"halt", string(result.Halt),
		"failed_items", len(result.FailedItems),
	)

	return nil
}
