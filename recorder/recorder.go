// Package recorder marks the start and end of every task chain (cycle) a
// Program runs, for post-hoc timing analysis. It is the Go counterpart of
// the original's TaskChainStart/TaskChainEnd signals: instead of a
// standalone recorder process replaying a binary log, it is a lightweight
// in-process observer a Program's OnCycle hook feeds, keeping a bounded
// ring of recent cycles plus a Prometheus histogram of their durations.
package recorder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultCapacity bounds how many recent cycle records are kept in memory.
const DefaultCapacity = 1024

// Cycle is one recorded task chain: its index and wall-clock bounds.
type Cycle struct {
	Index   int
	Start   time.Time
	End     time.Time
	Overrun bool
	Failed  bool
}

// Duration returns how long the cycle's body ran.
func (c Cycle) Duration() time.Duration { return c.End.Sub(c.Start) }

// Recorder keeps a bounded history of recent cycles and exposes their
// durations as a Prometheus histogram.
type Recorder struct {
	mu       sync.Mutex
	cycles   []Cycle
	capacity int
	next     int
	full     bool

	histogram prometheus.Histogram
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(r *Recorder) { r.capacity = n }
}

// New creates a Recorder and registers its cycle-duration histogram under
// name with reg. Pass prometheus.DefaultRegisterer for process-wide use.
func New(reg prometheus.Registerer, name string, opts ...Option) *Recorder {
	r := &Recorder{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(r)
	}
	r.cycles = make([]Cycle, r.capacity)

	r.histogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Task chain (cycle) duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
	if reg != nil {
		reg.MustRegister(r.histogram)
	}
	return r
}

// Observe records one cycle. Intended as a Program's OnCycle callback: it
// also classifies the cycle, as an overrun when err wraps
// context.DeadlineExceeded and as failed for any other non-nil err.
func (r *Recorder) Observe(cycle int, start, end time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	overrun := errors.Is(err, context.DeadlineExceeded)
	r.cycles[r.next] = Cycle{
		Index:   cycle,
		Start:   start,
		End:     end,
		Overrun: overrun,
		Failed:  err != nil && !overrun,
	}
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
	r.histogram.Observe(end.Sub(start).Seconds())
}

// ObserveOverrun is like Observe but marks the cycle as an overrun; callers
// that classify overruns themselves call this instead of Observe for those
// cycles.
func (r *Recorder) ObserveOverrun(cycle int, start, end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cycles[r.next] = Cycle{Index: cycle, Start: start, End: end, Overrun: true}
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
	r.histogram.Observe(end.Sub(start).Seconds())
}

// Recent returns the recorded cycles in chronological order, oldest first.
func (r *Recorder) Recent() []Cycle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]Cycle, r.next)
		copy(out, r.cycles[:r.next])
		return out
	}
	out := make([]Cycle, r.capacity)
	copy(out, r.cycles[r.next:])
	copy(out[r.capacity-r.next:], r.cycles[:r.next])
	return out
}

// WriteCSV writes the recorded cycles to w as CSV: index, start (RFC3339Nano),
// duration in microseconds, overrun, failed.
func (r *Recorder) WriteCSV(w io.Writer) error {
	cycles := r.Recent()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "start", "duration_us", "overrun", "failed"}); err != nil {
		return fmt.Errorf("recorder: writing header: %w", err)
	}
	for _, c := range cycles {
		row := []string{
			strconv.Itoa(c.Index),
			c.Start.Format(time.RFC3339Nano),
			strconv.FormatInt(c.Duration().Microseconds(), 10),
			strconv.FormatBool(c.Overrun),
			strconv.FormatBool(c.Failed),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("recorder: writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
