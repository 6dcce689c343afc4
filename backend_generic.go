package evloop

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// genericBackend is the pure-Go fallback readiness back-end: no readiness
// polling syscall is wired, so Readable/Writable registrations fail with
// UnsupportedFeatureError, but Signal callbacks work everywhere via
// os/signal, and Dispatch still honors the computed timer timeout. It is
// selected by name ("generic") on any platform, and is the default on
// platforms without a dedicated backend (anything other than linux/darwin
// in this build).
type genericBackend struct {
	mu       sync.Mutex
	sigCh    chan os.Signal
	sigOwned map[int]CallbackID
}

func newGenericBackend() *genericBackend {
	return &genericBackend{
		sigCh:    make(chan os.Signal, 16),
		sigOwned: make(map[int]CallbackID),
	}
}

func (b *genericBackend) Activate(c *callback) error {
	switch c.kind {
	case KindSignal:
		b.mu.Lock()
		b.sigOwned[c.signo] = c.id
		b.mu.Unlock()
		signal.Notify(b.sigCh, syscall.Signal(c.signo))
		return nil
	case KindReadable, KindWritable:
		return &UnsupportedFeatureError{Feature: "I/O readiness (generic backend)"}
	default:
		return nil
	}
}

func (b *genericBackend) Deactivate(c *callback) {
	if c.kind != KindSignal {
		return
	}
	b.mu.Lock()
	delete(b.sigOwned, c.signo)
	b.mu.Unlock()
	signal.Reset(syscall.Signal(c.signo))
}

func (b *genericBackend) Dispatch(timeout time.Duration, ready func(id CallbackID, ev IOEvent, signo int)) error {
	var timeoutCh <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case sig := <-b.sigCh:
		signo := int(sig.(syscall.Signal))
		b.mu.Lock()
		id, ok := b.sigOwned[signo]
		b.mu.Unlock()
		if ok {
			ready(id, 0, signo)
		}
	case <-timeoutCh:
	}
	return nil
}

func (b *genericBackend) Now() float64 { return clockNow() }

func (b *genericBackend) Handle() any { return nil }

func (b *genericBackend) Close() error {
	signal.Stop(b.sigCh)
	return nil
}
