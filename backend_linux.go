//go:build linux

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

// epollBackend is the Linux readiness back-end: epoll for Readable/
// Writable callbacks, os/signal for Signal callbacks. Adapted from the
// direct-indexing epoll poller this package started from, generalized
// from a fixed-size fd array to a map since callback ids rather than raw
// fds are the registry key here.
type epollBackend struct {
	epfd int

	mu       sync.Mutex
	byFD     map[int]*callback
	eventBuf [128]unix.EpollEvent

	sigCh    chan os.Signal
	sigOwned map[int]CallbackID
}

func newEpollBackend() (*epollBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("evloop: epoll_create1: %w", err)
	}
	return &epollBackend{
		epfd:     epfd,
		byFD:     make(map[int]*callback),
		sigCh:    make(chan os.Signal, 16),
		sigOwned: make(map[int]CallbackID),
	}, nil
}

func (b *epollBackend) Activate(c *callback) error {
	switch c.kind {
	case KindSignal:
		b.mu.Lock()
		b.sigOwned[c.signo] = c.id
		b.mu.Unlock()
		signal.Notify(b.sigCh, syscall.Signal(c.signo))
		return nil
	case KindReadable, KindWritable:
		var events uint32
		if c.kind == KindReadable {
			events = unix.EPOLLIN
		} else {
			events = unix.EPOLLOUT
		}
		b.mu.Lock()
		b.byFD[c.fd] = c
		b.mu.Unlock()
		ev := &unix.EpollEvent{Events: events, Fd: int32(c.fd)}
		if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, c.fd, ev); err != nil {
			b.mu.Lock()
			delete(b.byFD, c.fd)
			b.mu.Unlock()
			return fmt.Errorf("evloop: epoll_ctl add: %w", err)
		}
		return nil
	default:
		return nil
	}
}

func (b *epollBackend) Deactivate(c *callback) {
	switch c.kind {
	case KindSignal:
		b.mu.Lock()
		delete(b.sigOwned, c.signo)
		b.mu.Unlock()
		signal.Reset(syscall.Signal(c.signo))
	case KindReadable, KindWritable:
		b.mu.Lock()
		delete(b.byFD, c.fd)
		b.mu.Unlock()
		_ = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	}
}

func (b *epollBackend) Dispatch(timeout time.Duration, ready func(id CallbackID, ev IOEvent, signo int)) error {
	timeoutMs := -1
	if timeout >= 0 {
		timeoutMs = int(timeout / time.Millisecond)
	}

	// Drain any signals already delivered without blocking epoll if one
	// is pending; otherwise race epoll against the signal channel by
	// capping the epoll wait and polling the channel between attempts.
	select {
	case sig := <-b.sigCh:
		b.deliverSignal(sig, ready)
		return nil
	default:
	}

	b.mu.Lock()
	watchingSignals := len(b.sigOwned) > 0
	b.mu.Unlock()
	if watchingSignals && (timeoutMs < 0 || timeoutMs > 10) {
		timeoutMs = 10
	}

	n, err := unix.EpollWait(b.epfd, b.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			select {
			case sig := <-b.sigCh:
				b.deliverSignal(sig, ready)
			default:
			}
			return nil
		}
		return fmt.Errorf("evloop: epoll_wait: %w", err)
	}
	for i := 0; i < n; i++ {
		fd := int(b.eventBuf[i].Fd)
		b.mu.Lock()
		c, ok := b.byFD[fd]
		b.mu.Unlock()
		if !ok {
			continue
		}
		ready(c.id, epollToIOEvent(b.eventBuf[i].Events), 0)
	}
	select {
	case sig := <-b.sigCh:
		b.deliverSignal(sig, ready)
	default:
	}
	return nil
}

func (b *epollBackend) deliverSignal(sig os.Signal, ready func(id CallbackID, ev IOEvent, signo int)) {
	signo := int(sig.(syscall.Signal))
	b.mu.Lock()
	id, ok := b.sigOwned[signo]
	b.mu.Unlock()
	if ok {
		ready(id, 0, signo)
	}
}

func (b *epollBackend) Now() float64 { return clockNow() }

func (b *epollBackend) Handle() any { return b.epfd }

func (b *epollBackend) Close() error {
	signal.Stop(b.sigCh)
	return unix.Close(b.epfd)
}

func epollToIOEvent(events uint32) IOEvent {
	var ev IOEvent
	if events&unix.EPOLLIN != 0 {
		ev |= IOReadable
	}
	if events&unix.EPOLLOUT != 0 {
		ev |= IOWritable
	}
	if events&unix.EPOLLERR != 0 {
		ev |= IOError
	}
	if events&unix.EPOLLHUP != 0 {
		ev |= IOHangup
	}
	return ev
}

func newPlatformBackend() (Backend, error) {
	return newEpollBackend()
}

func newNamedPlatformBackend(name string) (Backend, error) {
	switch name {
	case "epoll":
		return newEpollBackend()
	default:
		return nil, fmt.Errorf("evloop: unknown backend %q on linux", name)
	}
}
