// Package e2e wires the full engine — depgraph, eventbus, action, program,
// agent, global — into multi-agent runs entirely in one process (via
// eventbus.LocalTransport), so the testable properties and end-to-end
// scenarios can be asserted deterministically without real OS processes.
package e2e

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nomis52/feo/activity"
	"github.com/nomis52/feo/agent"
	"github.com/nomis52/feo/depgraph"
	"github.com/nomis52/feo/eventbus"
	"github.com/nomis52/feo/global"
	"github.com/nomis52/feo/ids"
	"github.com/nomis52/feo/program"
)

// call is one recorded hook invocation, with enough precision to order
// step starts/ends across goroutines.
type call struct {
	name string
	hook string
	at   time.Time
}

// trace is a shared, mutex-guarded log every traceActivity in a run
// appends to.
type trace struct {
	mu    sync.Mutex
	calls []call
}

func (t *trace) record(name, hook string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, call{name: name, hook: hook, at: time.Now()})
}

// snapshot returns a copy of every call recorded so far.
func (t *trace) snapshot() []call {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]call, len(t.calls))
	copy(out, t.calls)
	return out
}

// at returns the timestamps of every occurrence of (name, hook), in
// recording order.
func (t *trace) at(name, hook string) []time.Time {
	var out []time.Time
	for _, c := range t.snapshot() {
		if c.name == name && c.hook == hook {
			out = append(out, c.at)
		}
	}
	return out
}

// count returns how many times (name, hook) was recorded.
func (t *trace) count(name, hook string) int {
	return len(t.at(name, hook))
}

// traceActivity is a test-only activity.Activity: it records every hook
// call to a shared trace, can simulate work inside Step, and can fail
// Step on one specific (1-indexed) cycle.
type traceActivity struct {
	name string
	tr   *trace

	mu     sync.Mutex
	cycle  int
	work   time.Duration
	failAt int
}

func newTraceActivity(name string, tr *trace) *traceActivity {
	return &traceActivity{name: name, tr: tr}
}

func (a *traceActivity) Start(ctx context.Context) error {
	a.tr.record(a.name, "start")
	return nil
}

func (a *traceActivity) Stop(ctx context.Context) error {
	a.tr.record(a.name, "stop")
	return nil
}

func (a *traceActivity) Step(ctx context.Context) error {
	a.mu.Lock()
	a.cycle++
	cycle := a.cycle
	work := a.work
	failAt := a.failAt
	a.mu.Unlock()

	a.tr.record(a.name, "step_start")
	if work > 0 {
		time.Sleep(work)
	}
	a.tr.record(a.name, "step_end")

	if failAt != 0 && cycle == failAt {
		return fmt.Errorf("%s: injected failure at cycle %d", a.name, cycle)
	}
	return nil
}

// deployment is one fully-wired, in-process multi-agent run: a Local Agent
// Orchestrator Program per agent plus the primary's separate Global
// Orchestrator Program (globalProg), all sharing one Bus.
type deployment struct {
	bus        *eventbus.Bus
	cfg        *depgraph.Config
	programs   map[ids.AgentID]*program.Program
	globalProg *program.Program
}

// buildDeployment parses cfgJSON, builds one agent.Program per agent plus
// the primary's global.Program, and wires every activity id present in the
// config to the traceActivity of the matching name in activities.
func buildDeployment(t testLike, app, cfgJSON string, activities map[string]*traceActivity) *deployment {
	t.Helper()

	cfg, err := depgraph.Parse([]byte(cfgJSON))
	if err != nil {
		t.Fatalf("parsing config: %v", err)
	}

	bus := eventbus.New(eventbus.WithTransport(eventbus.LocalTransport{}))
	period := time.Duration(cfg.CycleTimeMs) * time.Millisecond

	programs := make(map[ids.AgentID]*program.Program)
	for agentID, assignment := range cfg.AgentAssignments {
		hooks := make([]activity.Hooks, 0, len(assignment.Activities))
		for _, id := range assignment.Activities {
			name := cfg.Names.Name(id)
			act, ok := activities[name]
			if !ok {
				t.Fatalf("no traceActivity registered for activity %q", name)
			}
			handle := activity.NewHandle(id, name, act)
			hooks = append(hooks, activity.NewHooks(handle))
		}
		prog, err := agent.Build(agent.Config{
			App: app, Agent: agentID.String(), Bus: bus, Period: period, Hooks: hooks,
		})
		if err != nil {
			t.Fatalf("building agent %s: %v", agentID, err)
		}
		programs[agentID] = prog
	}

	globalProg, err := global.Build(global.Config{App: app, Bus: bus, Period: period, Config: cfg})
	if err != nil {
		t.Fatalf("building global orchestrator: %v", err)
	}

	return &deployment{bus: bus, cfg: cfg, programs: programs, globalProg: globalProg}
}

// runN runs every agent Program and the global Program concurrently for n
// cycles and returns the first error, if any (errors from distinct agents
// that run concurrently are not ordered; the first one observed wins).
func (d *deployment) runN(ctx context.Context, n int) error {
	errCh := make(chan error, len(d.programs)+1)
	for _, p := range d.programs {
		p := p
		go func() { errCh <- p.RunN(ctx, n) }()
	}
	go func() { errCh <- d.globalProg.RunN(ctx, n) }()

	var first error
	for i := 0; i < len(d.programs)+1; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// run runs every agent Program and the global Program concurrently with
// Run(ctx) (unbounded, ends on ctx cancellation or external shutdown).
func (d *deployment) run(ctx context.Context) error {
	errCh := make(chan error, len(d.programs)+1)
	for _, p := range d.programs {
		p := p
		go func() { errCh <- p.Run(ctx) }()
	}
	go func() { errCh <- d.globalProg.Run(ctx) }()

	var first error
	for i := 0; i < len(d.programs)+1; i++ {
		if err := <-errCh; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// testLike is the subset of *testing.T fixtures need, so they can be built
// from table-driven helpers without importing "testing" into non-_test.go
// files directly influencing build constraints.
type testLike interface {
	Helper()
	Fatalf(format string, args ...any)
}
