package action

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nomis52/feo/taskpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeExecute(t *testing.T) {
	var called int32
	a := Invoke("noop", func(ctx context.Context) error {
		atomic.AddInt32(&called, 1)
		return nil
	})
	require.NoError(t, a.Execute(context.Background()))
	assert.Equal(t, int32(1), called)
}

func TestInvokeExecutePropagatesError(t *testing.T) {
	want := errors.New("boom")
	a := Invoke("fails", func(ctx context.Context) error { return want })
	err := a.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, want)
}

func TestInvokeDoubleCompositionPanics(t *testing.T) {
	inv := Invoke("shared", func(ctx context.Context) error { return nil })
	Sequence("first", inv)

	assert.PanicsWithValue(t,
		`action: Invoke "shared" composed into more than one parent`,
		func() { Sequence("second", inv) },
	)
}

func TestSequenceRunsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int

	record := func(n int) Action {
		return Invoke("step", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return nil
		})
	}

	seq := Sequence("seq", record(1), record(2), record(3))
	require.NoError(t, seq.Execute(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSequenceFailsFastAndStopsSubsequentChildren(t *testing.T) {
	var ran []string
	step := func(name string, err error) Action {
		return Invoke(name, func(ctx context.Context) error {
			ran = append(ran, name)
			return err
		})
	}

	want := errors.New("step2 failed")
	seq := Sequence("seq",
		step("step1", nil),
		step("step2", want),
		step("step3", nil),
	)

	err := seq.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, want)
	assert.Equal(t, []string{"step1", "step2"}, ran)
}

func TestConcurrencyRunsAllChildren(t *testing.T) {
	const n = 8
	var count int32
	children := make([]Action, n)
	for i := range children {
		children[i] = Invoke("child", func(ctx context.Context) error {
			atomic.AddInt32(&count, 1)
			return nil
		})
	}

	conc := Concurrency("fanout", children...)
	require.NoError(t, conc.Execute(context.Background()))
	assert.Equal(t, int32(n), count)
}

func TestConcurrencyReturnsFirstFailureAndCancelsSiblings(t *testing.T) {
	blocked := make(chan struct{})
	failFast := Invoke("fails", func(ctx context.Context) error {
		return errors.New("immediate failure")
	})
	cancellable := Invoke("waits", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			close(blocked)
			return ctx.Err()
		case <-make(chan struct{}):
			return nil
		}
	})

	conc := Concurrency("fanout", failFast, cancellable)
	err := conc.Execute(context.Background())
	require.Error(t, err)

	select {
	case <-blocked:
	default:
		t.Fatal("sibling was not cancelled after first failure")
	}
}

func TestConcurrencyEmptyChildrenSucceeds(t *testing.T) {
	conc := Concurrency("empty")
	require.NoError(t, conc.Execute(context.Background()))
}

func TestConcurrencyBoundsParallelismToPool(t *testing.T) {
	const n = 20
	var (
		mu      sync.Mutex
		active  int32
		maxSeen int32
	)
	children := make([]Action, n)
	for i := range children {
		children[i] = Invoke("child", func(ctx context.Context) error {
			cur := atomic.AddInt32(&active, 1)
			mu.Lock()
			if cur > maxSeen {
				maxSeen = cur
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		})
	}

	conc := Concurrency("fanout", children...)
	require.NoError(t, conc.Execute(context.Background()))
	assert.LessOrEqual(t, int(maxSeen), taskpool.DefaultWorkers)
}
