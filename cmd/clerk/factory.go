package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/mkrall/clerk/internal/config"
	"github.com/mkrall/clerk/internal/controller"
	"github.com/mkrall/clerk/internal/docs"
	"github.com/mkrall/clerk/internal/interrupt"
	"github.com/mkrall/clerk/internal/llm"
	"github.com/mkrall/clerk/internal/loop"
	"github.com/mkrall/clerk/internal/office"
	"github.com/mkrall/clerk/internal/state"
	"github.com/mkrall/clerk/internal/tools"
)

// signalDir is where an external "stop" file aborts a running engine.
const signalDir = ".clerk/signals"

// engine bundles the wired-up components for one invocation.
type engine struct {
	cfg        *config.Config
	client     *llm.Client
	interrupts *interrupt.Controller
	registry   *tools.Registry
	ctrl       *controller.Controller
	store      *state.DB

	stopSignals func()
}

// newEngine loads configuration and wires every component. The caller
// must Close it.
func newEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(llm.ClientConfig{
		Model:       cfg.OpenAI.Model,
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   int64(cfg.OpenAI.MaxTokens),
		Timeout:     cfg.OpenAI.Timeout,
	})
	if err != nil {
		return nil, err
	}

	interrupts := interrupt.NewWithSignalDir(signalDir)
	// Clear any stop file left behind by a previous aborted run.
	interrupts.Reset()

	officeClient := office.NewClient(cfg.Office.BaseURL, cfg.Office.Timeout)
	if _, err := officeClient.CheckHealth(context.Background()); err != nil {
		color.Yellow("office server unreachable at %s: %v", cfg.Office.BaseURL, err)
		color.Yellow("document tools will fail until it is running")
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterOfficeTools(registry, officeClient); err != nil {
		interrupts.Close()
		return nil, err
	}

	var approver tools.Approver
	if supervised || cfg.Execution.Supervised {
		approver = newTerminalApprover()
	}

	taskLoop := loop.New(client, registry, approver, interrupts)
	if cfg.Execution.MaxTurns > 0 {
		taskLoop.MaxTurns = cfg.Execution.MaxTurns
	}

	var lookup controller.DocsLookup
	if info, err := os.Stat(cfg.Docs.Dir); err == nil && info.IsDir() {
		searcher, err := docs.NewSearcher(client, docs.NewLibrary(cfg.Docs.Dir), interrupts)
		if err != nil {
			log.Printf("[clerk] docs searcher unavailable: %v", err)
		} else {
			lookup = searcher
		}
	}

	store, err := state.Open(state.DefaultDBPath())
	if err != nil {
		interrupts.Close()
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		interrupts.Close()
		return nil, fmt.Errorf("migrating run store: %w", err)
	}

	ctrl := controller.New(taskLoop, controller.NewVerifier(client), lookup, nil, interrupts)
	if cfg.Execution.MaxAttempts > 0 {
		ctrl.MaxAttempts = cfg.Execution.MaxAttempts
	}

	e := &engine{
		cfg:        cfg,
		client:     client,
		interrupts: interrupts,
		registry:   registry,
		ctrl:       ctrl,
		store:      store,
	}
	e.trapSignals()
	return e, nil
}

// trapSignals aborts the run on Ctrl-C. A second Ctrl-C exits hard.
func (e *engine) trapSignals() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		color.Yellow("\ninterrupting, waiting for the current call to stop...")
		e.interrupts.Abort()
		<-ch
		os.Exit(1)
	}()
	e.stopSignals = func() { signal.Stop(ch) }
}

func (e *engine) Close() {
	if e.stopSignals != nil {
		e.stopSignals()
	}
	e.store.Close()
	e.interrupts.Close()
}
