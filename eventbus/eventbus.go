// Package eventbus provides a name-addressed rendezvous mechanism for the
// orchestration engine: Trigger releases every waiter on a name, Sync
// suspends until that name is triggered. Events are local by default and
// become visible across processes on the same host when a Transport is
// attached.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// event tracks one name's fired state and its local waiters.
type event struct {
	mu      sync.Mutex
	fired   bool
	waiters []chan struct{}
	// triggerCount is diagnostic only: it lets Bus.TriggerCount (tests,
	// debugging) observe a same-cycle double-trigger without changing
	// externally visible behavior.
	triggerCount int
}

// Bus is a process-wide namespace of transient, one-shot rendezvous events.
// A Bus is an explicit handle, not a package-level singleton: callers thread
// one Bus through every constructor that needs to trigger or wait on named
// events, per the orchestrator's "no true process-global state" rule.
type Bus struct {
	mu     sync.Mutex
	events map[string]*event
	logger *slog.Logger

	transport Transport
	subsMu    sync.Mutex
	subs      map[string]func() // name -> unsubscribe, for transport-backed names
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger attaches a logger used for diagnostic messages (duplicate
// triggers, transport errors).
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithTransport attaches the cross-process delivery mechanism. Without one,
// the Bus only rendezvous-es waiters within this process.
func WithTransport(t Transport) Option {
	return func(b *Bus) { b.transport = t }
}

// New creates a Bus. Transport subscriptions are opened lazily by Sync;
// with a Transport attached, run Poll in a background goroutine so those
// subscriptions are closed when its ctx ends.
func New(opts ...Option) *Bus {
	b := &Bus{
		events: make(map[string]*event),
		logger: slog.Default(),
		subs:   make(map[string]func()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) eventFor(name string) *event {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.events[name]
	if !ok {
		e = &event{}
		b.events[name] = e
	}
	return e
}

// Trigger marks name as fired and wakes every local waiter. If a Transport is
// attached, the trigger is also published so that remote Sync calls on the
// same name observe it once the poller drains the notification. Triggering
// an unknown name auto-creates it. A second Trigger on the same name before
// the next Reset is a no-op observable only via diagnostics.
func (b *Bus) Trigger(ctx context.Context, name string) error {
	e := b.eventFor(name)

	e.mu.Lock()
	alreadyFired := e.fired
	e.triggerCount++
	e.fired = true
	waiters := e.waiters
	e.waiters = nil
	e.mu.Unlock()

	if alreadyFired {
		b.logger.Debug("duplicate trigger observed within cycle", "event", name)
	}

	for _, w := range waiters {
		close(w)
	}

	if b.transport != nil {
		if err := b.transport.Publish(ctx, name); err != nil {
			return fmt.Errorf("eventbus: publish %q: %w", name, err)
		}
	}
	return nil
}

// Sync suspends the caller until Trigger(name) has fired, or ctx is done. If
// name has already fired this cycle, Sync returns immediately.
func (b *Bus) Sync(ctx context.Context, name string) error {
	e := b.eventFor(name)

	e.mu.Lock()
	if e.fired {
		e.mu.Unlock()
		return nil
	}
	wait := make(chan struct{})
	e.waiters = append(e.waiters, wait)
	e.mu.Unlock()

	b.ensureSubscribed(ctx, name)

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensureSubscribed lazily subscribes to a transport-backed name the first
// time anything Syncs on it, so single-process uses (no Transport, or names
// never crossing a process boundary) never pay for a subscription.
func (b *Bus) ensureSubscribed(ctx context.Context, name string) {
	if b.transport == nil {
		return
	}
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	if _, ok := b.subs[name]; ok {
		return
	}
	ch, unsubscribe, err := b.transport.Subscribe(ctx, name)
	if err != nil {
		b.logger.Error("eventbus: subscribe failed", "event", name, "error", err)
		return
	}
	b.subs[name] = unsubscribe
	go func() {
		for range ch {
			e := b.eventFor(name)
			e.mu.Lock()
			if e.fired {
				e.mu.Unlock()
				continue
			}
			e.fired = true
			waiters := e.waiters
			e.waiters = nil
			e.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
		}
	}()
}

// Reset clears the fired flag and the trigger count for name; waiters still
// blocked in Sync are kept. Called by the Program at every cycle boundary
// for each event name referenced in its body, so that a Sync in the next
// cycle cannot observe a trigger from the previous one.
func (b *Bus) Reset(name string) {
	e := b.eventFor(name)
	e.mu.Lock()
	e.fired = false
	e.triggerCount = 0
	// Any still-pending waiters (a Sync that is still blocked when Reset
	// runs indicates a cycle overrun elsewhere) are left untouched; they
	// will be woken by the next Trigger or by their own ctx cancellation.
	e.mu.Unlock()
}

// Poll blocks until ctx is done and then closes every transport
// subscription the Bus has opened. The notifications themselves are drained,
// and local waiters woken, by the per-name goroutine that Sync starts when
// it first subscribes to a name. Without a Transport, Poll returns at once.
func (b *Bus) Poll(ctx context.Context) {
	if b.transport == nil {
		return
	}
	<-ctx.Done()
	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for name, unsubscribe := range b.subs {
		unsubscribe()
		delete(b.subs, name)
	}
}

// TriggerCount returns how many times name has been triggered since its last
// Reset. Diagnostic only.
func (b *Bus) TriggerCount(name string) int {
	e := b.eventFor(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.triggerCount
}

// Fired reports whether name has already been triggered this cycle, without
// blocking. The Cycle Driver uses this to poll the shutdown notification at
// cycle boundaries instead of sequencing it into the body.
func (b *Bus) Fired(name string) bool {
	e := b.eventFor(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fired
}
