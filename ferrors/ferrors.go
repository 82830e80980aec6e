// Package ferrors defines the orchestrator's error taxonomy: six abstract
// kinds of failure, each wrapped so callers can test for it with
// errors.Is while still seeing the concrete cause in the error string.
//
// Kinds split into fatal and non-fatal. Fatal kinds (ConfigError,
// ActivityStartupFailure, TransportLoss) cannot be recovered from within a
// running cycle and drive the Program to its Stopping state. Non-fatal
// kinds (ActivityStepFailure, CycleOverrun, EventTimeout) are recorded and
// the next cycle still runs.
package ferrors

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Kind identifies which of the six abstract failure categories an error
// belongs to.
type Kind int

const (
	// ConfigError marks a dependency specification that failed to load
	// or validate. Fatal.
	ConfigError Kind = iota
	// ActivityStartupFailure marks an activity whose Start returned an
	// error. Fatal.
	ActivityStartupFailure
	// ActivityStepFailure marks an activity whose Step returned an
	// error during a cycle. Non-fatal.
	ActivityStepFailure
	// CycleOverrun marks a cycle body that did not complete within its
	// deadline. Non-fatal.
	CycleOverrun
	// EventTimeout marks a Sync call whose context expired before the
	// awaited event fired. Non-fatal.
	EventTimeout
	// TransportLoss marks a cross-process transport failure (publish or
	// subscribe error) that the Event Bus could not recover from.
	// Fatal.
	TransportLoss
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config_error"
	case ActivityStartupFailure:
		return "activity_startup_failure"
	case ActivityStepFailure:
		return "activity_step_failure"
	case CycleOverrun:
		return "cycle_overrun"
	case EventTimeout:
		return "event_timeout"
	case TransportLoss:
		return "transport_loss"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind must stop the Program.
func (k Kind) Fatal() bool {
	switch k {
	case ConfigError, ActivityStartupFailure, TransportLoss:
		return true
	default:
		return false
	}
}

// Error wraps a Kind and the originating error for use with errors.Is/As.
type Error struct {
	Kind   Kind
	Source string // component that raised it, e.g. an activity or agent name
	Err    error
}

func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ferrors.ConfigError) style sentinel checks work by
// comparing kinds rather than requiring the exact wrapped value, via the
// package-level sentinel helpers below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New wraps err as a Kind-tagged Error attributed to source. Returns nil if
// err is nil.
func New(kind Kind, source string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Source: source, Err: err}
}

// sentinel builds a zero-value *Error for use as an errors.Is target, e.g.
// errors.Is(err, ferrors.IsKind(ferrors.CycleOverrun)).
func sentinel(kind Kind) error {
	return &Error{Kind: kind}
}

// IsKind returns a sentinel error suitable for errors.Is comparisons
// against a given Kind, regardless of source or wrapped cause.
func IsKind(kind Kind) error { return sentinel(kind) }

// As extracts the Kind of err, if err (or something it wraps) is a
// *Error.
func As(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

var (
	cycleOverrunTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feo_cycle_overrun_total",
		Help: "Number of cycles whose body did not complete within its deadline.",
	})
	stepFailureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feo_activity_step_failure_total",
		Help: "Number of activity Step calls that returned an error.",
	}, []string{"activity"})
	eventTimeoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feo_event_timeout_total",
		Help: "Number of Sync calls whose context expired before the event fired.",
	}, []string{"event"})
)

func init() {
	prometheus.MustRegister(cycleOverrunTotal, stepFailureTotal, eventTimeoutTotal)
}

// Record increments the Prometheus counter for non-fatal kinds. Fatal
// kinds are not counted here: callers log them once and exit, per the
// taxonomy's propagation rules.
func Record(kind Kind, source string) {
	switch kind {
	case CycleOverrun:
		cycleOverrunTotal.Inc()
	case ActivityStepFailure:
		stepFailureTotal.WithLabelValues(source).Inc()
	case EventTimeout:
		eventTimeoutTotal.WithLabelValues(source).Inc()
	}
}
