// Package program implements the cyclic engine every orchestrator (local
// agent or global) ultimately runs: a fixed-period loop around a body
// action, with startup/shutdown hooks and a shutdown notification the
// caller can Trigger to end the loop gracefully. The Cycle Driver that
// paces cycles and detects overruns is embedded here rather than exposed
// as its own type, matching the contract's "embedded in Program" framing.
package program

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nomis52/feo/action"
	"github.com/nomis52/feo/eventbus"
	"github.com/nomis52/feo/ferrors"
)

// Phase is a Program's position in its state machine.
type Phase int

const (
	Built Phase = iota
	Starting
	Cycling
	Stopping
	Stopped
	Failed
)

func (p Phase) String() string {
	switch p {
	case Built:
		return "built"
	case Starting:
		return "starting"
	case Cycling:
		return "cycling"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultOverrunFactor is the default multiple of Period a cycle's body may
// run for before the Cycle Driver cancels it as overrun.
const DefaultOverrunFactor = 2

// Program is the unit the cycle driver runs: a startup hook, a per-cycle
// body, a shutdown notification to watch for, and a shutdown hook.
type Program struct {
	// Name identifies the program in logs and metrics, e.g. an agent name.
	Name string

	// Bus is the Event Bus the body's actions Sync/Trigger against. The
	// Cycle Driver also uses it to Reset per-cycle events and to poll the
	// shutdown notification.
	Bus *eventbus.Bus

	// Period is the fixed cycle period.
	Period time.Duration

	// OverrunFactor bounds how long a cycle's body may run, as a multiple
	// of Period, before the Cycle Driver cancels it. Zero means
	// DefaultOverrunFactor.
	OverrunFactor int

	// Startup runs once before the first cycle. A failure here aborts to
	// Stopping without ever entering Cycling, though ShutdownHook still
	// runs (it may need to stop activities that did start).
	Startup action.Action

	// Body runs once per cycle.
	Body action.Action

	// ShutdownNotification is the name of the event that, once triggered,
	// ends the loop after the cycle in progress completes. Empty means
	// the loop only ends via RunN or ctx cancellation.
	ShutdownNotification string

	// ShutdownHook runs once before Program.run returns.
	ShutdownHook action.Action

	// EventNames lists every event name the body references. The Cycle
	// Driver resets each of them at every cycle boundary so a Sync in
	// cycle N+1 cannot observe a Trigger from cycle N.
	EventNames []string

	Logger *slog.Logger

	// OnCycle, if set, is called after every cycle (overrun or not) with
	// the cycle index, its wall-clock bounds, and the body's error (nil
	// on success). Used by package recorder to mark task-chain
	// start/end without coupling the Cycle Driver to it directly.
	OnCycle func(cycle int, start, end time.Time, err error)

	// CycleEventPrefix, if set, makes the Cycle Driver Trigger
	// "<prefix>/cycle_start" and "<prefix>/cycle_end" on the Bus around
	// each cycle's body, so an out-of-process observer can Sync on them
	// the same way it would any other named event.
	CycleEventPrefix string

	mu    sync.Mutex
	phase Phase
}

// Phase returns the Program's current state. Safe for concurrent use.
func (p *Program) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

func (p *Program) setPhase(ph Phase) {
	p.mu.Lock()
	p.phase = ph
	p.mu.Unlock()
}

func (p *Program) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Program) overrunFactor() int {
	if p.OverrunFactor <= 0 {
		return DefaultOverrunFactor
	}
	return p.OverrunFactor
}

// Run executes cycles indefinitely until the shutdown notification fires
// or ctx is cancelled.
func (p *Program) Run(ctx context.Context) error {
	return p.run(ctx, -1)
}

// RunN executes exactly n cycles (or fewer, if the shutdown notification
// fires or ctx is cancelled first), then shuts down.
func (p *Program) RunN(ctx context.Context, n int) error {
	return p.run(ctx, n)
}

func (p *Program) run(ctx context.Context, limit int) error {
	runID := uuid.NewString()
	log := p.logger().With("program", p.Name, "run_id", runID)
	log.Info("run starting", "period", p.Period)
	defer log.Info("run ended")

	p.setPhase(Starting)
	if p.Startup != nil {
		if err := p.Startup.Execute(ctx); err != nil {
			log.Error("startup failed", "error", err)
			p.setPhase(Stopping)
			p.runShutdownHook(ctx, log)
			p.setPhase(Failed)
			return ferrors.New(ferrors.ActivityStartupFailure, p.Name, err)
		}
	}

	p.setPhase(Cycling)
	deadline := time.Now()
	cycle := 0
	for {
		if limit >= 0 && cycle >= limit {
			break
		}
		if p.ShutdownNotification != "" && p.Bus.Fired(p.ShutdownNotification) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		deadline = deadline.Add(p.Period)
		if err := waitUntil(ctx, deadline); err != nil {
			break
		}

		for _, name := range p.EventNames {
			p.Bus.Reset(name)
		}
		if p.CycleEventPrefix != "" {
			p.Bus.Reset(p.CycleEventPrefix + "/cycle_start")
			p.Bus.Reset(p.CycleEventPrefix + "/cycle_end")
			_ = p.Bus.Trigger(ctx, p.CycleEventPrefix+"/cycle_start")
		}

		cycleStart := time.Now()
		bodyCtx, cancel := context.WithDeadline(ctx, cycleStart.Add(p.Period*time.Duration(p.overrunFactor())))
		var bodyErr error
		if p.Body != nil {
			bodyErr = p.Body.Execute(bodyCtx)
		}
		overran := bodyCtx.Err() == context.DeadlineExceeded
		cancel()
		cycleEnd := time.Now()

		if p.CycleEventPrefix != "" {
			_ = p.Bus.Trigger(ctx, p.CycleEventPrefix+"/cycle_end")
		}

		if p.OnCycle != nil {
			p.OnCycle(cycle, cycleStart, cycleEnd, bodyErr)
		}

		if overran {
			ferrors.Record(ferrors.CycleOverrun, p.Name)
			log.Warn("cycle overrun", "cycle", cycle, "period", p.Period)
		} else if bodyErr != nil {
			if fatal(bodyErr) {
				log.Error("body failed fatally", "cycle", cycle, "error", bodyErr)
				p.runShutdownHook(ctx, log)
				p.setPhase(Failed)
				return bodyErr
			}
			kind, ok := ferrors.As(bodyErr)
			if !ok {
				kind = ferrors.ActivityStepFailure
			}
			ferrors.Record(kind, p.Name)
			log.Error("cycle body error", "cycle", cycle, "error", bodyErr)
		}

		cycle++
	}

	p.setPhase(Stopping)
	p.runShutdownHook(ctx, log)
	p.setPhase(Stopped)
	return nil
}

func (p *Program) runShutdownHook(ctx context.Context, log *slog.Logger) {
	if p.ShutdownHook == nil {
		return
	}
	// Shutdown must run even if ctx was the reason the loop stopped, e.g.
	// to release already-started activities, so it gets its own context.
	hookCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		hookCtx, cancel = context.WithTimeout(context.Background(), p.Period*time.Duration(p.overrunFactor()))
		defer cancel()
	}
	if err := p.ShutdownHook.Execute(hookCtx); err != nil {
		log.Error("shutdown hook failed", "error", err)
	}
}

// fatal reports whether a cycle body error must stop the Program. Errors
// not tagged with a ferrors.Kind are treated as the common case, an
// unclassified activity step failure, which is non-fatal: only a
// *ferrors.Error whose Kind.Fatal() is true (ConfigError,
// ActivityStartupFailure, TransportLoss) stops the loop.
func fatal(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	kind, ok := ferrors.As(err)
	return ok && kind.Fatal()
}

// waitUntil blocks until deadline, or returns early with ctx's error if ctx
// is cancelled first. A deadline already in the past (the previous cycle
// overran) returns immediately, so the next cycle begins without delay.
func waitUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
