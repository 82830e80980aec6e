// Package activity defines the three-method contract every unit of user code
// must satisfy to run inside the orchestration engine, plus the
// infrastructure needed to turn one Activity into the three Invoke actions
// (start/step/stop) the Local Agent Orchestrator wires into a cycle body.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nomis52/feo/action"
	"github.com/nomis52/feo/ids"
)

// Activity is the only contract the orchestration engine assumes about user
// code. Start runs once before the first cycle and must not suspend
// indefinitely. Step runs once per cycle and may await external I/O but must
// not block the worker thread running it; it must be idempotent over missed
// inputs. Stop runs once during shutdown and must be safe to call even if
// Start failed.
type Activity interface {
	Start(ctx context.Context) error
	Step(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Factory builds an Activity for a given ActivityID. Factories let a binary
// register activities by id without holding a live instance until the
// orchestrator is actually assembled.
type Factory func(id ids.ActivityID) Activity

// Handle is the shared-with-interior-mutability wrapper around a user
// Activity. It is accessed from three hooks (start/step/stop) but the
// per-activity pipeline (Sync -> step -> Trigger, sequenced within one
// body-level sibling) already guarantees those calls never overlap; the
// mutex here only guards against misuse, not steady-state contention.
type Handle struct {
	mu         sync.Mutex
	activity   Activity
	id         ids.ActivityID
	name       string
	statusLine *StatusLine
}

// NewHandle wraps activity for id/name.
func NewHandle(id ids.ActivityID, name string, a Activity) *Handle {
	return &Handle{activity: a, id: id, name: name}
}

// WithStatus binds a StatusLine to the handle, keyed by its ActivityID, so
// every Step captures its outcome into the shared handler instead of only
// propagating the error up the action tree. Returns h for chaining.
func (h *Handle) WithStatus(logger *slog.Logger, handler *StatusHandler) *Handle {
	h.statusLine = NewStatusLine(h.id, logger, handler)
	return h
}

// ID returns the wrapped activity's ActivityID.
func (h *Handle) ID() ids.ActivityID { return h.id }

// Name returns the wrapped activity's display name.
func (h *Handle) Name() string { return h.name }

// Start calls the wrapped activity's Start under the guard.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activity.Start(ctx)
}

// Step calls the wrapped activity's Step under the guard, capturing any
// failure to the bound status line (if WithStatus was called) before
// returning it unchanged to the caller.
func (h *Handle) Step(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.statusLine != nil {
		h.statusLine.Set("running")
	}
	return CaptureError(h.statusLine, func() error {
		return h.activity.Step(ctx)
	})
}

// Stop calls the wrapped activity's Stop under the guard.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activity.Stop(ctx)
}

// Hooks bundles the three Invoke actions built from one Handle: start, step
// and stop. Each is an action.Action taken at most once when assembled into
// a Program by the Local Agent Orchestrator.
type Hooks struct {
	ID    ids.ActivityID
	Name  string
	Start action.Action
	Step  action.Action
	Stop  action.Action
}

// NewHooks builds the three hook actions for a Handle. id-qualified names are
// used for each action so failures are attributable in logs.
func NewHooks(h *Handle) Hooks {
	return Hooks{
		ID:   h.ID(),
		Name: h.Name(),
		Start: action.Invoke(fmt.Sprintf("%s.start", h.Name()), func(ctx context.Context) error {
			return h.Start(ctx)
		}),
		Step: action.Invoke(fmt.Sprintf("%s.step", h.Name()), func(ctx context.Context) error {
			return h.Step(ctx)
		}),
		Stop: action.Invoke(fmt.Sprintf("%s.stop", h.Name()), func(ctx context.Context) error {
			return h.Stop(ctx)
		}),
	}
}
