package program

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nomis52/feo/action"
	"github.com/nomis52/feo/eventbus"
	"github.com/nomis52/feo/ferrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNExecutesExactlyNCycles(t *testing.T) {
	var mu sync.Mutex
	var count int

	p := &Program{
		Name:   "test",
		Bus:    eventbus.New(),
		Period: 5 * time.Millisecond,
		Body: action.Invoke("count", func(ctx context.Context) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}),
	}

	require.NoError(t, p.RunN(context.Background(), 5))
	assert.Equal(t, 5, count)
	assert.Equal(t, Stopped, p.Phase())
}

func TestRunStopsOnShutdownNotification(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	var count int

	p := &Program{
		Name:                 "test",
		Bus:                  bus,
		Period:               5 * time.Millisecond,
		ShutdownNotification: "app/shutdown",
		Body: action.Invoke("count", func(ctx context.Context) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		}),
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	time.Sleep(25 * time.Millisecond)
	require.NoError(t, bus.Trigger(context.Background(), "app/shutdown"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after shutdown notification")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, count, 0)
}

func TestStartupFailureAbortsToStoppingAndRunsShutdownHook(t *testing.T) {
	var shutdownRan bool
	p := &Program{
		Name:   "test",
		Bus:    eventbus.New(),
		Period: time.Millisecond,
		Startup: action.Invoke("startup", func(ctx context.Context) error {
			return errors.New("camera init failed")
		}),
		Body: action.Invoke("body", func(ctx context.Context) error { return nil }),
		ShutdownHook: action.Invoke("shutdown", func(ctx context.Context) error {
			shutdownRan = true
			return nil
		}),
	}

	err := p.RunN(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.IsKind(ferrors.ActivityStartupFailure)))
	assert.True(t, shutdownRan)
	assert.Equal(t, Failed, p.Phase())
}

func TestNonFatalStepFailureContinuesNextCycle(t *testing.T) {
	var mu sync.Mutex
	var count int
	p := &Program{
		Name:   "test",
		Bus:    eventbus.New(),
		Period: 5 * time.Millisecond,
		Body: action.Invoke("body", func(ctx context.Context) error {
			mu.Lock()
			count++
			mu.Unlock()
			return errors.New("step failed this cycle")
		}),
	}

	require.NoError(t, p.RunN(context.Background(), 4))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, count)
}

func TestFatalTransportLossStopsProgram(t *testing.T) {
	var mu sync.Mutex
	var count int
	p := &Program{
		Name:   "test",
		Bus:    eventbus.New(),
		Period: 5 * time.Millisecond,
		Body: action.Invoke("body", func(ctx context.Context) error {
			mu.Lock()
			count++
			mu.Unlock()
			return ferrors.New(ferrors.TransportLoss, "redis", errors.New("connection refused"))
		}),
	}

	err := p.RunN(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.IsKind(ferrors.TransportLoss)))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestCycleOverrunIsRecordedAndLoopContinues(t *testing.T) {
	var mu sync.Mutex
	var calls int
	p := &Program{
		Name:          "test",
		Bus:           eventbus.New(),
		Period:        5 * time.Millisecond,
		OverrunFactor: 2,
		Body: action.Invoke("body", func(ctx context.Context) error {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				// first cycle overruns its period*OverrunFactor deadline.
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		}),
	}

	require.NoError(t, p.RunN(context.Background(), 3))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestCycleEventPrefixTriggersStartAndEnd(t *testing.T) {
	bus := eventbus.New()
	p := &Program{
		Name:             "test",
		Bus:              bus,
		Period:           5 * time.Millisecond,
		CycleEventPrefix: "adas",
		Body: action.Invoke("body", func(ctx context.Context) error {
			assert.True(t, bus.Fired("adas/cycle_start"))
			assert.False(t, bus.Fired("adas/cycle_end"))
			return nil
		}),
	}

	require.NoError(t, p.RunN(context.Background(), 2))
}

func TestEventNamesResetAtCycleBoundary(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	var observedFired []bool

	p := &Program{
		Name:       "test",
		Bus:        bus,
		Period:     5 * time.Millisecond,
		EventNames: []string{"app/x/step"},
		Body: action.Sequence("body",
			action.Invoke("observe", func(ctx context.Context) error {
				mu.Lock()
				observedFired = append(observedFired, bus.Fired("app/x/step"))
				mu.Unlock()
				return nil
			}),
			action.Invoke("trigger", func(ctx context.Context) error {
				return bus.Trigger(ctx, "app/x/step")
			}),
		),
	}

	require.NoError(t, p.RunN(context.Background(), 3))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observedFired, 3)
	for _, fired := range observedFired {
		assert.False(t, fired, "event should be reset before each cycle's body runs")
	}
}
