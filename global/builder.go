// Package global builds the Global Orchestrator: the Program that runs
// only on the primary agent and linearises the dependency graph into an
// action tree realising the declared partial order with the minimum
// synchronisation events necessary. Two activities with disjoint
// dependency chains run fully in parallel across their agents.
package global

import (
	"context"
	"fmt"
	"time"

	"github.com/nomis52/feo/action"
	"github.com/nomis52/feo/depgraph"
	"github.com/nomis52/feo/eventbus"
	"github.com/nomis52/feo/program"
	"github.com/nomis52/feo/wireevents"
)

// Config describes the Global Orchestrator's build parameters.
type Config struct {
	App    string
	Bus    *eventbus.Bus
	Period time.Duration
	Config *depgraph.Config
}

// Build constructs the primary's Program: a startup handshake that waits
// for every agent to announce itself alive then releases the global
// startup, a body that steps every activity exactly once per cycle in
// dependency order, and a shutdown broadcast that waits for every agent to
// confirm it stopped.
func Build(cfg Config) (*program.Program, error) {
	if cfg.App == "" {
		return nil, fmt.Errorf("global: App name is required")
	}
	if cfg.Config == nil {
		return nil, fmt.Errorf("global: dependency configuration is required")
	}

	bus := cfg.Bus
	agents := cfg.Config.Agents()
	if len(agents) == 0 {
		return nil, fmt.Errorf("global: dependency configuration lists no agents")
	}

	startupName := wireevents.Startup(cfg.App)
	shutdownName := wireevents.Shutdown(cfg.App)

	aliveWaits := make([]action.Action, len(agents))
	startupCompletedWaits := make([]action.Action, len(agents))
	shutdownCompletedWaits := make([]action.Action, len(agents))
	for i, agentID := range agents {
		agentName := agentID.String()
		aliveName := wireevents.Alive(cfg.App, agentName)
		startupCompletedName := wireevents.StartupCompleted(cfg.App, agentName)
		shutdownCompletedName := wireevents.ShutdownCompleted(cfg.App, agentName)

		aliveWaits[i] = action.Invoke("sync_alive."+agentName, func(ctx context.Context) error {
			return bus.Sync(ctx, aliveName)
		})
		startupCompletedWaits[i] = action.Invoke("sync_startup_completed."+agentName, func(ctx context.Context) error {
			return bus.Sync(ctx, startupCompletedName)
		})
		shutdownCompletedWaits[i] = action.Invoke("sync_shutdown_completed."+agentName, func(ctx context.Context) error {
			return bus.Sync(ctx, shutdownCompletedName)
		})
	}

	startup := action.Sequence("global.startup",
		action.Concurrency("global.await_alive", aliveWaits...),
		action.Invoke("global.trigger_startup", func(ctx context.Context) error {
			return bus.Trigger(ctx, startupName)
		}),
		action.Sequence("global.await_startup_completed", startupCompletedWaits...),
	)

	shutdownHook := action.Sequence("global.shutdown",
		action.Invoke("global.trigger_shutdown", func(ctx context.Context) error {
			return bus.Trigger(ctx, shutdownName)
		}),
		action.Sequence("global.await_shutdown_completed", shutdownCompletedWaits...),
	)

	body, eventNames, err := linearise(cfg.App, bus, cfg.Config)
	if err != nil {
		return nil, err
	}

	return &program.Program{
		Name:                 "global",
		Bus:                  bus,
		Period:               cfg.Period,
		Startup:              startup,
		Body:                 body,
		ShutdownNotification: wireevents.ExternalShutdown,
		ShutdownHook:         shutdownHook,
		EventNames:           eventNames,
	}, nil
}

// linearise builds, for every activity X, the step action:
//
//	step(X) = Sequence{ Sync(<app>/d/step_completed) for d in deps(X),
//	                     Trigger(<app>/X/step),
//	                     Sync(<app>/X/step_completed) }
//
// and returns the outer Concurrency over every step(X), plus every event
// name the body references so the Cycle Driver can reset them each cycle.
func linearise(app string, bus *eventbus.Bus, cfg *depgraph.Config) (action.Action, []string, error) {
	var steps []action.Action
	var eventNames []string

	for id, deps := range cfg.Graph {
		name := cfg.Names.Name(id)
		stepName := wireevents.Step(app, name)
		stepCompletedName := wireevents.StepCompleted(app, name)
		eventNames = append(eventNames, stepName, stepCompletedName)

		waits := make([]action.Action, len(deps))
		for i, dep := range deps {
			depCompletedName := wireevents.StepCompleted(app, cfg.Names.Name(dep))
			waits[i] = action.Invoke("sync_dep."+name+"."+dep.String(), func(ctx context.Context) error {
				return bus.Sync(ctx, depCompletedName)
			})
		}

		children := append(waits,
			action.Invoke("trigger_step."+name, func(ctx context.Context) error {
				return bus.Trigger(ctx, stepName)
			}),
			action.Invoke("sync_step_completed."+name, func(ctx context.Context) error {
				return bus.Sync(ctx, stepCompletedName)
			}),
		)
		steps = append(steps, action.Sequence("step."+name, children...))
	}

	if len(steps) == 0 {
		return nil, nil, fmt.Errorf("global: dependency graph has no activities")
	}
	return action.Concurrency("global.body", steps...), eventNames, nil
}
