// Package evloop provides a cooperative, single-threaded event loop that
// schedules user callbacks against time, I/O readiness, and process
// signals, and exposes a [Suspension] primitive letting callback code park
// its own goroutine on an arbitrary event without blocking the loop.
//
// # Architecture
//
// A [Driver] owns six kinds of callback: Defer, Delay, Repeat, Readable,
// Writable and Signal (see [Kind]). Registering one returns an opaque
// [CallbackID]. The driver is driven by [Driver.Run], which executes the
// tick loop (activate, defer-activate, dispatch, invoke) until
// [Driver.Stop] is called or no referenced, enabled callback remains.
//
// Timers are kept in an intrusive min-heap; I/O readiness and signal
// delivery are delegated to a [Backend] implementation, chosen per
// platform (epoll on Linux, kqueue on Darwin, a generic signal-only
// fallback elsewhere) or overridden via the EVLOOP_BACKEND environment
// variable.
//
// # Suspension
//
// [Driver.GetSuspension] returns a [Suspension] tied to whichever goroutine
// calls it: a callback's dispatch goroutine, or "{main}" — any goroutine
// not currently executing inside a driver-dispatched callback.
// [Suspension.Suspend] parks that goroutine until a matching
// [Suspension.Resume] or [Suspension.Throw] delivers a value; exactly one
// such delivery is permitted per suspend.
//
// # Thread Safety
//
// [Driver.Queue], registration, enable/disable/cancel, and suspension
// resume/throw are safe to call from any goroutine. Exactly one goroutine
// executes driver-owned state (the tick loop, or a callback's dispatch
// goroutine while it holds the baton) at any instant; a [Driver] is not
// reentrant across concurrent [Driver.Run] calls.
//
// # Usage
//
//	d, err := evloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d.Defer(func(id evloop.CallbackID) { fmt.Println("hello") })
//	d.Delay(0.1, func(id evloop.CallbackID) { // interval in seconds
//	    fmt.Println("100ms later")
//	})
//	if err := d.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Types
//
//   - [InvalidCallbackError]: unknown id passed to Enable or Reference
//   - [InvalidArgumentError]: negative delay/interval
//   - [UnsupportedFeatureError]: the backend cannot arm a callback (I/O
//     readiness on the generic backend, or signals on a custom backend)
//   - [InvalidStateError]: suspension/continuation misuse
//   - [UncaughtThrowableError]: a panic recovered from a callback or
//     microtask; passed to the error handler when one is installed, and
//     fatal to the loop when none is or the handler itself panics
//   - [EventLoopTerminatedError]: raised from [Suspension.Suspend] called
//     from "{main}" when the loop exits with the suspension still pending
//
// All error types implement the standard [error] interface and are matched
// with [errors.As]; [UncaughtThrowableError] also unwraps to the panic value
// when that value is an error.
package evloop
