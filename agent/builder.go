// Package agent builds the Local Agent Orchestrator: the Program shape
// every agent (primary or secondary) runs to start, step, and stop its own
// activities in lockstep with the rest of the deployment. A local agent
// never decides activity ordering itself — it only releases a step when
// the matching event fires, and only reports completion by triggering the
// matching step_completed event.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/nomis52/feo/action"
	"github.com/nomis52/feo/activity"
	"github.com/nomis52/feo/eventbus"
	"github.com/nomis52/feo/program"
	"github.com/nomis52/feo/wireevents"
)

// Config describes one agent's build parameters.
type Config struct {
	// App is the deployment-wide name shared by every agent and the
	// global orchestrator; it namespaces every wire-visible event.
	App string
	// Agent is this agent's own name, unique within the deployment.
	Agent string
	Bus  *eventbus.Bus
	// Period is the fixed cycle period, normally the value loaded from
	// the dependency specification's cycle_time_ms.
	Period time.Duration
	// Hooks lists the activities this agent owns.
	Hooks []activity.Hooks
}

// Build constructs the Program described in the Local Agent Orchestrator
// contract: an alive/startup handshake, a per-cycle body that steps every
// owned activity once it is released, and a stop/shutdown_completed
// sequence on shutdown.
func Build(cfg Config) (*program.Program, error) {
	if cfg.App == "" || cfg.Agent == "" {
		return nil, fmt.Errorf("agent: App and Agent names are required")
	}
	if len(cfg.Hooks) == 0 {
		return nil, fmt.Errorf("agent: %s has no activities assigned", cfg.Agent)
	}

	aliveName := wireevents.Alive(cfg.App, cfg.Agent)
	startupName := wireevents.Startup(cfg.App)
	startupCompletedName := wireevents.StartupCompleted(cfg.App, cfg.Agent)
	shutdownName := wireevents.Shutdown(cfg.App)
	shutdownCompletedName := wireevents.ShutdownCompleted(cfg.App, cfg.Agent)

	startActions := make([]action.Action, len(cfg.Hooks))
	stopActions := make([]action.Action, len(cfg.Hooks))
	bodyActions := make([]action.Action, len(cfg.Hooks))
	var eventNames []string

	for i, h := range cfg.Hooks {
		startActions[i] = h.Start
		stopActions[i] = h.Stop

		stepName := wireevents.Step(cfg.App, h.Name)
		stepCompletedName := wireevents.StepCompleted(cfg.App, h.Name)
		eventNames = append(eventNames, stepName, stepCompletedName)

		bus := cfg.Bus
		bodyActions[i] = action.Sequence(h.Name+".cycle",
			action.Invoke(h.Name+".sync_step", func(ctx context.Context) error {
				return bus.Sync(ctx, stepName)
			}),
			h.Step,
			action.Invoke(h.Name+".trigger_step_completed", func(ctx context.Context) error {
				return bus.Trigger(ctx, stepCompletedName)
			}),
		)
	}

	bus := cfg.Bus
	startup := action.Sequence(cfg.Agent+".startup",
		action.Invoke(cfg.Agent+".trigger_alive", func(ctx context.Context) error {
			return bus.Trigger(ctx, aliveName)
		}),
		action.Invoke(cfg.Agent+".sync_startup", func(ctx context.Context) error {
			return bus.Sync(ctx, startupName)
		}),
		action.Concurrency(cfg.Agent+".start_activities", startActions...),
		action.Invoke(cfg.Agent+".trigger_startup_completed", func(ctx context.Context) error {
			return bus.Trigger(ctx, startupCompletedName)
		}),
	)

	shutdownHook := action.Sequence(cfg.Agent+".shutdown",
		action.Concurrency(cfg.Agent+".stop_activities", stopActions...),
		action.Invoke(cfg.Agent+".trigger_shutdown_completed", func(ctx context.Context) error {
			return bus.Trigger(ctx, shutdownCompletedName)
		}),
	)

	return &program.Program{
		Name:                 cfg.Agent,
		Bus:                  cfg.Bus,
		Period:               cfg.Period,
		Startup:              startup,
		Body:                 action.Concurrency(cfg.Agent+".body", bodyActions...),
		ShutdownNotification: shutdownName,
		ShutdownHook:         shutdownHook,
		EventNames:           eventNames,
	}, nil
}
