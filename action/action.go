// Package action implements the orchestration engine's composable execution
// nodes: Invoke, Sequence and Concurrency, all sharing the single contract
// Execute(ctx) error. The variant set is intentionally closed — Action is
// implemented only by the three types this package returns — so the
// orchestrator can reason about an action tree as plain data.
package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/nomis52/feo/taskpool"
)

// Action is the uniform contract for every node in an action tree.
type Action interface {
	// Execute runs the node to completion or returns its first failure.
	Execute(ctx context.Context) error
	// name is diagnostic-only and unexported: named ids on composite nodes
	// never affect execution, only logging/error messages.
	name() string
}

// Func is the shape Invoke accepts: a function of the enclosing handle or
// context that performs work and reports success or failure. Callers
// typically close over an *activity.Handle and call Start/Step/Stop on it.
type Func func(ctx context.Context) error

// invokeAction wraps a single Func. It may be executed any number of times,
// but it may only be moved into exactly one parent (Sequence/Concurrency);
// composing it into a second parent is a build-time programming error and
// panics, mirroring the "moved once" ownership rule of the spec.
type invokeAction struct {
	id    string
	fn    Func
	taken bool
}

// Invoke builds a leaf action around fn. id is used only in diagnostics.
func Invoke(id string, fn Func) Action {
	return &invokeAction{id: id, fn: fn}
}

func (a *invokeAction) name() string { return a.id }

// Execute runs the wrapped function.
func (a *invokeAction) Execute(ctx context.Context) error {
	if err := a.fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", a.id, err)
	}
	return nil
}

// take marks this Invoke as consumed by a parent composite. Called
// automatically by Sequence/Concurrency when they adopt a child.
func take(child Action) {
	inv, ok := child.(*invokeAction)
	if !ok {
		return
	}
	if inv.taken {
		panic(fmt.Sprintf("action: Invoke %q composed into more than one parent", inv.id))
	}
	inv.taken = true
}

// sequenceAction executes its children in list order, stopping at the first
// failure and returning it unchanged.
type sequenceAction struct {
	id       string
	children []Action
}

// Sequence builds an ordered composition of children. id is diagnostic only.
func Sequence(id string, children ...Action) Action {
	for _, c := range children {
		take(c)
	}
	return &sequenceAction{id: id, children: children}
}

func (a *sequenceAction) name() string { return a.id }

func (a *sequenceAction) Execute(ctx context.Context) error {
	for _, child := range a.children {
		if err := child.Execute(ctx); err != nil {
			return err
		}
	}
	return nil
}

// concurrencyAction executes its children as sibling tasks and awaits
// join-all. If any child fails, remaining children are cancelled and the
// first failure is reported; the rest are not merged into the error, only
// logged by the caller if it chooses to.
type concurrencyAction struct {
	id       string
	children []Action
}

// Concurrency builds an unordered fan-out/join-all composition of children.
// No child may depend on another child's outcome within the same node: the
// dependency graph must already have been linearised into Sync/Trigger pairs
// before reaching this level (see package global).
func Concurrency(id string, children ...Action) Action {
	for _, c := range children {
		take(c)
	}
	return &concurrencyAction{id: id, children: children}
}

func (a *concurrencyAction) name() string { return a.id }

// pool is the process-wide bounded worker pool every Concurrency node fans
// its children out through: a handful of goroutines draining a bounded
// queue, not one goroutine per child. Sized to taskpool's defaults, which
// match the cooperative runtime's "small fixed worker pool" this action
// stands in for.
var (
	poolOnce sync.Once
	pool     *taskpool.Pool
)

func sharedPool() *taskpool.Pool {
	poolOnce.Do(func() { pool = taskpool.New() })
	return pool
}

func (a *concurrencyAction) Execute(ctx context.Context) error {
	if len(a.children) == 0 {
		return nil
	}
	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := sharedPool()
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for _, child := range a.children {
		child := child
		wg.Add(1)
		submitErr := p.Submit(gctx, func() {
			defer wg.Done()
			if err := child.Execute(gctx); err != nil {
				fail(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("%s: %w", a.id, firstErr)
	}
	return nil
}
