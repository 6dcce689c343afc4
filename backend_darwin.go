//go:build darwin

package evloop

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// kqueueBackend is the Darwin readiness back-end: kqueue for Readable/
// Writable callbacks, os/signal for Signal callbacks. Adapted from this
// package's kqueue poller, generalized to key off callback id rather than
// a raw fd array.
type kqueueBackend struct {
	kq int

	mu       sync.Mutex
	byFD     map[int]*callback
	eventBuf [128]unix.Kevent_t

	sigCh    chan os.Signal
	sigOwned map[int]CallbackID
}

func newKqueueBackend() (*kqueueBackend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("evloop: kqueue: %w", err)
	}
	unix.CloseOnExec(kq)
	return &kqueueBackend{
		kq:       kq,
		byFD:     make(map[int]*callback),
		sigCh:    make(chan os.Signal, 16),
		sigOwned: make(map[int]CallbackID),
	}, nil
}

func (b *kqueueBackend) Activate(c *callback) error {
	switch c.kind {
	case KindSignal:
		b.mu.Lock()
		b.sigOwned[c.signo] = c.id
		b.mu.Unlock()
		signal.Notify(b.sigCh, syscall.Signal(c.signo))
		return nil
	case KindReadable, KindWritable:
		filter := int16(unix.EVFILT_READ)
		if c.kind == KindWritable {
			filter = unix.EVFILT_WRITE
		}
		b.mu.Lock()
		b.byFD[c.fd] = c
		b.mu.Unlock()
		kev := unix.Kevent_t{
			Ident:  uint64(c.fd),
			Filter: filter,
			Flags:  unix.EV_ADD | unix.EV_ENABLE,
		}
		if _, err := unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
			b.mu.Lock()
			delete(b.byFD, c.fd)
			b.mu.Unlock()
			return fmt.Errorf("evloop: kevent add: %w", err)
		}
		return nil
	default:
		return nil
	}
}

func (b *kqueueBackend) Deactivate(c *callback) {
	switch c.kind {
	case KindSignal:
		b.mu.Lock()
		delete(b.sigOwned, c.signo)
		b.mu.Unlock()
		signal.Reset(syscall.Signal(c.signo))
	case KindReadable, KindWritable:
		filter := int16(unix.EVFILT_READ)
		if c.kind == KindWritable {
			filter = unix.EVFILT_WRITE
		}
		b.mu.Lock()
		delete(b.byFD, c.fd)
		b.mu.Unlock()
		kev := unix.Kevent_t{Ident: uint64(c.fd), Filter: filter, Flags: unix.EV_DELETE}
		_, _ = unix.Kevent(b.kq, []unix.Kevent_t{kev}, nil, nil)
	}
}

func (b *kqueueBackend) Dispatch(timeout time.Duration, ready func(id CallbackID, ev IOEvent, signo int)) error {
	select {
	case sig := <-b.sigCh:
		b.deliverSignal(sig, ready)
		return nil
	default:
	}

	var ts *unix.Timespec
	if timeout >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeout / time.Second),
			Nsec: int64(timeout % time.Second),
		}
	}
	n, err := unix.Kevent(b.kq, nil, b.eventBuf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			select {
			case sig := <-b.sigCh:
				b.deliverSignal(sig, ready)
			default:
			}
			return nil
		}
		return fmt.Errorf("evloop: kevent wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(b.eventBuf[i].Ident)
		b.mu.Lock()
		c, ok := b.byFD[fd]
		b.mu.Unlock()
		if !ok {
			continue
		}
		ready(c.id, keventToIOEvent(&b.eventBuf[i]), 0)
	}
	select {
	case sig := <-b.sigCh:
		b.deliverSignal(sig, ready)
	default:
	}
	return nil
}

func (b *kqueueBackend) deliverSignal(sig os.Signal, ready func(id CallbackID, ev IOEvent, signo int)) {
	signo := int(sig.(syscall.Signal))
	b.mu.Lock()
	id, ok := b.sigOwned[signo]
	b.mu.Unlock()
	if ok {
		ready(id, 0, signo)
	}
}

func (b *kqueueBackend) Now() float64 { return clockNow() }

func (b *kqueueBackend) Handle() any { return b.kq }

func (b *kqueueBackend) Close() error {
	signal.Stop(b.sigCh)
	return unix.Close(b.kq)
}

func keventToIOEvent(kev *unix.Kevent_t) IOEvent {
	var ev IOEvent
	switch kev.Filter {
	case unix.EVFILT_READ:
		ev |= IOReadable
	case unix.EVFILT_WRITE:
		ev |= IOWritable
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		ev |= IOError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		ev |= IOHangup
	}
	return ev
}

func newPlatformBackend() (Backend, error) {
	return newKqueueBackend()
}

func newNamedPlatformBackend(name string) (Backend, error) {
	switch name {
	case "kqueue":
		return newKqueueBackend()
	default:
		return nil, fmt.Errorf("evloop: unknown backend %q on darwin", name)
	}
}
