package evloop

import (
	"os"
	"time"
)

// IOEvent is the readiness condition a Backend reports for a registered
// stream.
type IOEvent uint32

const (
	// IOReadable indicates the stream is ready for reading.
	IOReadable IOEvent = 1 << iota
	// IOWritable indicates the stream is ready for writing.
	IOWritable
	// IOError indicates an error condition on the stream.
	IOError
	// IOHangup indicates the peer closed its end.
	IOHangup
)

// Backend is the readiness back-end interface the driver consumes,
// implemented per platform: arm/disarm OS-level readiness notification for
// I/O and signal callbacks, and block the tick loop until something is
// ready or a computed timeout elapses.
type Backend interface {
	// Activate arms the OS facility for c (register a stream in the
	// readiness set, or install a signal disposition). Called
	// synchronously from Enable for Readable, Writable and Signal
	// callbacks; Defer, Delay and Repeat callbacks never reach it.
	Activate(c *callback) error
	// Deactivate is the inverse of Activate.
	Deactivate(c *callback)
	// Dispatch blocks up to timeout (zero means return immediately, a
	// negative duration means block indefinitely) waiting for readiness
	// or signal delivery, then reports each ready callback's id to
	// ready. It does not touch timers; the driver extracts due timers
	// from its own heap.
	Dispatch(timeout time.Duration, ready func(id CallbackID, ev IOEvent, signo int)) error
	// Now returns the current time in the backend's monotonic clock
	// domain, in seconds, matching the domain callback.expiration is
	// computed in.
	Now() float64
	// Handle exposes the underlying OS-specific object for
	// interoperation; may be nil.
	Handle() any
	// Close releases backend resources. Safe to call once, after the
	// driver has stopped.
	Close() error
}

// clockAnchor is captured once, at load, so clockNow can measure elapsed
// time via time.Since rather than calling .UnixNano() on a time.Time —
// UnixNano strips the monotonic reading Go attaches to values returned by
// time.Now(), leaving only wall-clock time, which NTP sync or a manual
// clock change can step backwards or forwards under the driver's feet.
var clockAnchor = time.Now()

// clockNow is the monotonic clock shared by every backend's Now().
func clockNow() float64 {
	return time.Since(clockAnchor).Seconds()
}

// newDefaultBackend selects a Backend for the current platform, honoring
// the EVLOOP_BACKEND environment variable override (REVOLT_DRIVER in the
// source naming). Recognized values: "epoll" (Linux only), "kqueue"
// (Darwin only), "generic". An unrecognized or platform-mismatched value
// fails driver construction, per spec: "Invalid values fail driver
// construction."
func newDefaultBackend() (Backend, error) {
	if name := os.Getenv("EVLOOP_BACKEND"); name != "" {
		return newNamedBackend(name)
	}
	return newPlatformBackend()
}

func newNamedBackend(name string) (Backend, error) {
	switch name {
	case "generic":
		return newGenericBackend(), nil
	default:
		return newNamedPlatformBackend(name)
	}
}
