// Package evloop: error taxonomy for the driver, timer heap and suspension
// primitive. Each kind is a concrete struct type so callers match on it with
// [errors.As] rather than string comparison.
package evloop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kr/text"
)

// InvalidCallbackReason distinguishes the two ways a callback operation can
// be rejected.
type InvalidCallbackReason int

const (
	// InvalidIdentifier means the operation referenced an id unknown to the
	// registry. Only Enable and Reference raise it; Disable, Cancel and
	// Unreference succeed silently on unknown ids.
	InvalidIdentifier InvalidCallbackReason = iota
	// NonNullReturn is kept so the taxonomy names every rejection kind, but
	// nothing in this package produces it: DeferFunc, StreamFunc and
	// SignalFunc return no value, so a callback that returns one does not
	// compile. Go callbacks that want to report failure should use the
	// error handler instead.
	NonNullReturn
)

func (r InvalidCallbackReason) String() string {
	switch r {
	case InvalidIdentifier:
		return "invalid identifier"
	case NonNullReturn:
		return "non-nil return"
	default:
		return "unknown"
	}
}

// InvalidCallbackError is returned by registry operations on a callback id
// or callback contract violation.
type InvalidCallbackError struct {
	ID   CallbackID
	Kind InvalidCallbackReason
}

func (e *InvalidCallbackError) Error() string {
	return fmt.Sprintf("evloop: invalid callback %q: %s", e.ID, e.Kind)
}

// InvalidArgumentError is returned when a registration call is given an
// argument outside its valid domain (e.g. a negative delay or interval).
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	if e.Message == "" {
		return "evloop: invalid argument"
	}
	return "evloop: invalid argument: " + e.Message
}

// UnsupportedFeatureError is returned when a backend cannot satisfy a
// requested capability, such as I/O readiness on the generic backend.
type UnsupportedFeatureError struct {
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("evloop: unsupported feature: %s", e.Feature)
}

// InvalidStateError is returned for suspension/continuation misuse: double
// suspend, resume/throw without a matching pending suspend, suspending from
// the wrong goroutine, or a second outstanding interrupt.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return "evloop: invalid state: " + e.Message
}

// UncaughtThrowableError wraps a panic value recovered from a callback or
// microtask. It is passed to the error handler when one is installed; when
// none is installed, or the handler itself panics, it is fatal and the
// driver stops the loop. Run does not return it.
type UncaughtThrowableError struct {
	Value any
}

func (e *UncaughtThrowableError) Error() string {
	return fmt.Sprintf("evloop: uncaught throwable: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is one, enabling
// errors.Is/errors.As through the cause chain.
func (e *UncaughtThrowableError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ParkedSuspension describes one still-parked suspension captured in an
// [EventLoopTerminatedError] diagnostic.
type ParkedSuspension struct {
	Owner CallbackID // not populated by this package; always empty
	Stack string     // stack trace captured at the time Suspend() was called
}

// EventLoopTerminatedError is raised from [Suspension.Suspend], called from
// "{main}", when the loop exits without a matching resume/throw ever
// arriving for that suspension.
type EventLoopTerminatedError struct {
	Parked []ParkedSuspension
}

func (e *EventLoopTerminatedError) Error() string {
	var b strings.Builder
	b.WriteString("evloop: event loop terminated with a pending suspension")
	if len(e.Parked) == 0 {
		return b.String()
	}
	b.WriteString("\nstill-parked suspensions:\n")
	for _, p := range e.Parked {
		fmt.Fprintf(&b, "- %s:\n", p.Owner)
		b.WriteString(text.Indent(p.Stack, "    "))
	}
	return b.String()
}

// Is reports whether target is also an [*EventLoopTerminatedError],
// regardless of which suspensions it carries.
func (e *EventLoopTerminatedError) Is(target error) bool {
	var t *EventLoopTerminatedError
	return errors.As(target, &t)
}

// Sentinel errors for operations that don't carry per-call detail.
var (
	// ErrDriverAlreadyRunning is returned by Run when the driver is already running.
	ErrDriverAlreadyRunning = errors.New("evloop: driver is already running")
	// ErrDriverTerminated is returned by operations attempted on a terminated driver.
	ErrDriverTerminated = errors.New("evloop: driver has been terminated")
	// ErrReentrantRun is returned when Run is called from within the driver's own tick loop.
	ErrReentrantRun = errors.New("evloop: cannot call Run from within the driver")
)

// WrapError wraps an error with a message, preserving the cause chain so
// that errors.Is(result, cause) holds.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
