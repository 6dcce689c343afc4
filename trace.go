package evloop

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/kr/text"
)

// captureTrace records the calling goroutine's stack, unindented, for
// embedding in a diagnostic alongside other text (cancellation traces,
// EventLoopTerminatedError's still-parked listing); callers indent it.
func captureTrace() string {
	buf := make([]byte, 4096)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// indentTrace renders a captured trace indented under a label, using the
// same approach EventLoopTerminatedError uses for its parked-suspension
// listing.
func indentTrace(label, stack string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", label)
	b.WriteString(text.Indent(stack, "    "))
	return b.String()
}

// traceRateLimiter caps how often the debug-trace decorator pays the
// runtime.Stack cost for any single callback kind, so a program
// registering callbacks in a tight loop with EVLOOP_DEBUG_TRACE set
// doesn't pay full capture cost per registration.
var traceRateLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 50,
})

// tracingBackend wraps a Backend, recording (rate-limited) activation
// stack traces and enriching InvalidCallback/UnsupportedFeature errors
// returned from Activate with the trace of the call that triggered them.
// Installed automatically when EVLOOP_DEBUG_TRACE is set, or via
// WithDebugTrace.
type tracingBackend struct {
	inner Backend
}

func newTracingBackend(inner Backend) Backend {
	return &tracingBackend{inner: inner}
}

func (b *tracingBackend) Activate(c *callback) error {
	if _, ok := traceRateLimiter.Allow(c.kind); ok {
		c.createdStack = captureTrace()
	}
	if err := b.inner.Activate(c); err != nil {
		return fmt.Errorf("%w\n%s", err, indentTrace("activation trace", c.createdStack))
	}
	return nil
}

func (b *tracingBackend) Deactivate(c *callback) {
	if _, ok := traceRateLimiter.Allow(c.kind); ok {
		c.cancelledStack = captureTrace()
	}
	b.inner.Deactivate(c)
}

func (b *tracingBackend) Dispatch(timeout time.Duration, ready func(id CallbackID, ev IOEvent, signo int)) error {
	return b.inner.Dispatch(timeout, ready)
}

func (b *tracingBackend) Now() float64 { return b.inner.Now() }

func (b *tracingBackend) Handle() any { return b.inner.Handle() }

func (b *tracingBackend) Close() error { return b.inner.Close() }
