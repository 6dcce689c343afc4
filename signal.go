package evloop

import "syscall"

// signalName renders a signal number using the platform's own name table
// (via syscall.Signal's String method), for the structured debug log line
// OnSignal emits when a Signal callback is registered. Signal
// numbers are not portable across platforms (an explicit non-goal), so
// callers are expected to pass the platform-correct number for onSignal;
// this is a best-effort label, not a validator.
func signalName(signo int) string {
	return syscall.Signal(signo).String()
}
