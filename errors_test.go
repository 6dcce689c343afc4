package evloop

import (
	"errors"
	"testing"
)

func TestUncaughtThrowableErrorUnwrapsErrorValue(t *testing.T) {
	cause := errors.New("root cause")
	e := &UncaughtThrowableError{Value: cause}
	if !errors.Is(e, cause) {
		t.Fatalf("errors.Is(e, cause) = false, want true")
	}
}

func TestUncaughtThrowableErrorNonErrorValueUnwrapsNil(t *testing.T) {
	e := &UncaughtThrowableError{Value: "boom"}
	if e.Unwrap() != nil {
		t.Fatalf("Unwrap() of a non-error panic value = %v, want nil", e.Unwrap())
	}
}

func TestEventLoopTerminatedErrorIs(t *testing.T) {
	e := &EventLoopTerminatedError{Parked: []ParkedSuspension{{Stack: "trace"}}}
	var target *EventLoopTerminatedError
	if !errors.As(e, &target) {
		t.Fatalf("errors.As failed")
	}
	if !errors.Is(e, &EventLoopTerminatedError{}) {
		t.Fatalf("Is should match regardless of carried Parked slice")
	}
}

func TestEventLoopTerminatedErrorMessageIncludesStack(t *testing.T) {
	e := &EventLoopTerminatedError{Parked: []ParkedSuspension{{Owner: "cb1", Stack: "goroutine 1 [running]"}}}
	msg := e.Error()
	if msg == "" {
		t.Fatalf("Error() returned empty string")
	}
}

func TestInvalidCallbackReasonString(t *testing.T) {
	cases := map[InvalidCallbackReason]string{
		InvalidIdentifier:             "invalid identifier",
		NonNullReturn:                 "non-nil return",
		InvalidCallbackReason(99):     "unknown",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}

func TestWrapErrorPreservesCauseChain(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := WrapError("context", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("WrapError should preserve errors.Is against the cause")
	}
}

func TestSentinelErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrDriverAlreadyRunning, ErrDriverTerminated) {
		t.Fatalf("sentinel errors must be distinct")
	}
	if errors.Is(ErrDriverTerminated, ErrReentrantRun) {
		t.Fatalf("sentinel errors must be distinct")
	}
}
