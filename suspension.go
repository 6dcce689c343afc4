package evloop

import (
	"runtime"
	"sync"
)

// currentGoroutineID extracts the calling goroutine's runtime id by
// parsing the header runtime.Stack emits, the same trick this package's
// loop-thread identity check used before being adapted to the suspension
// primitive's per-goroutine bookkeeping.
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id int64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + int64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// outcome is the sum type a suspend() yields: either a resumed value or a
// thrown error, carried through the continuation without relying on the
// source's exception-based control flow.
type outcome struct {
	value any
	err   error
	isErr bool
}

// Suspension is the object returned by Driver.GetSuspension, tied to
// whichever goroutine requested it. Suspend parks that goroutine until a
// matching Resume or Throw delivers exactly one outcome.
type Suspension struct {
	d         *Driver
	ownerGID  int64
	isMain    bool // true if owned by a goroutine other than a dispatch fiber
	mu        sync.Mutex
	pending   bool
	stack     string // captured by Suspend, reported by parkedSuspensions
	deliverCh chan outcome
}

// suspensionState tracks per-goroutine Suspension caching and the single
// outstanding interrupt thunk used when {main} is the suspended party.
type suspensionState struct {
	d *Driver

	mu           sync.Mutex
	byGoroutine  map[int64]*Suspension
	interrupt    func() (any, error)
	hasInterrupt bool
}

func (s *suspensionState) init(d *Driver) {
	s.d = d
	s.byGoroutine = make(map[int64]*Suspension)
}

// forget drops gid's cached Suspension once its dispatch-fiber goroutine
// has finished, so byGoroutine doesn't grow without bound across the
// lifetime of a driver that runs many short-lived callbacks. Safe to call
// for a gid with no entry (e.g. a callback that never called
// GetSuspension).
func (s *suspensionState) forget(gid int64) {
	s.mu.Lock()
	delete(s.byGoroutine, gid)
	s.mu.Unlock()
}

// GetSuspension returns the Suspension tied to the calling goroutine,
// creating it on first request. A goroutine not tracked as a dispatch
// fiber is treated as "{main}".
func (d *Driver) GetSuspension() *Suspension {
	gid := currentGoroutineID()
	s := &d.suspend
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byGoroutine[gid]; ok {
		return existing
	}
	susp := &Suspension{
		d:         d,
		ownerGID:  gid,
		isMain:    !d.isDispatchGoroutine(gid),
		deliverCh: make(chan outcome, 1),
	}
	s.byGoroutine[gid] = susp
	return susp
}

// isDispatchGoroutine reports whether gid is the goroutine
// Driver.runDispatchFiber spawned to invoke the callback currently
// executing on it. Any other goroutine — including whatever goroutine
// called Run, and any goroutine the application spawned on its own — is
// "{main}" relative to this driver.
func (d *Driver) isDispatchGoroutine(gid int64) bool {
	d.dispatchGoroutinesMu.Lock()
	defer d.dispatchGoroutinesMu.Unlock()
	return d.dispatchGoroutines[gid]
}

func (d *Driver) markDispatchGoroutine(gid int64) {
	d.dispatchGoroutinesMu.Lock()
	if d.dispatchGoroutines == nil {
		d.dispatchGoroutines = make(map[int64]bool)
	}
	d.dispatchGoroutines[gid] = true
	d.dispatchGoroutinesMu.Unlock()
}

func (d *Driver) unmarkDispatchGoroutine(gid int64) {
	d.dispatchGoroutinesMu.Lock()
	delete(d.dispatchGoroutines, gid)
	d.dispatchGoroutinesMu.Unlock()
}

// Suspend parks the calling goroutine until a matching Resume or Throw
// delivers a value. Calling it a second time before a matching resume, or
// from a goroutine other than the one that created the Suspension, fails
// with InvalidStateError.
func (s *Suspension) Suspend() (any, error) {
	if currentGoroutineID() != s.ownerGID {
		return nil, &InvalidStateError{Message: "suspend called from a different goroutine than created the suspension"}
	}
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return nil, &InvalidStateError{Message: "suspend called while already suspended"}
	}
	s.pending = true
	s.stack = captureTrace()
	s.mu.Unlock()

	// Hand control back to the tick loop before blocking: if this
	// goroutine is a dispatch fiber, runDispatchFiber is waiting on
	// exactly this signal to stop waiting on us and return to the tick
	// loop. {main} has no registered signal, so this is a no-op there.
	s.d.signalParked(s.ownerGID)

	out := <-s.deliverCh
	s.d.unmarkParked(s.ownerGID)

	s.mu.Lock()
	s.pending = false
	s.mu.Unlock()

	if out.isErr {
		return nil, out.err
	}
	return out.value, nil
}

// Resume schedules the parked goroutine to resume with v on the next
// microtask pass (if owned by a coroutine) or sets the one-shot interrupt
// thunk (if owned by "{main}"). Fails with InvalidStateError if no
// matching Suspend is outstanding.
func (s *Suspension) Resume(v any) error {
	return s.deliver(outcome{value: v})
}

// Throw is like Resume but the parked goroutine observes err as a thrown
// exception at its suspension point.
func (s *Suspension) Throw(err error) error {
	return s.deliver(outcome{err: err, isErr: true})
}

func (s *Suspension) deliver(out outcome) error {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return &InvalidStateError{Message: "resume/throw without a matching outstanding suspend"}
	}
	// Clear pending here, under the same lock that checked it, so a second
	// back-to-back Resume/Throw sees !s.pending and fails with
	// InvalidStateError instead of racing this delivery: the dispatch-fiber
	// path would otherwise silently no-op its queued send (select/default),
	// and the {main} path would block on the already-full deliverCh until
	// some later, unrelated Suspend drained it.
	s.pending = false
	s.mu.Unlock()

	if s.isMain {
		// {main} blocks directly on its own goroutine rather than on the
		// loop fiber, so delivery is immediate; the interrupt thunk still
		// enforces the "at most one outstanding" invariant, and is cleared
		// again right after the send.
		if err := s.d.suspend.setInterrupt(func() (any, error) {
			if out.isErr {
				return nil, out.err
			}
			return out.value, nil
		}); err != nil {
			return err
		}
		s.deliverCh <- out
		s.d.suspend.takeInterrupt()
		return nil
	}

	s.d.Queue(func() {
		select {
		case s.deliverCh <- out:
		default:
		}
	})
	return nil
}

// setInterrupt installs the driver's one-shot interrupt thunk. At most
// one interrupt may be outstanding at any time; attempting to set a
// second is a programming error surfaced as InvalidStateError.
func (s *suspensionState) setInterrupt(thunk func() (any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasInterrupt {
		return &InvalidStateError{Message: "an interrupt is already outstanding"}
	}
	s.interrupt = thunk
	s.hasInterrupt = true
	return nil
}

// takeInterrupt atomically clears and returns the outstanding interrupt
// thunk, if any.
func (s *suspensionState) takeInterrupt() (func() (any, error), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasInterrupt {
		return nil, false
	}
	thunk := s.interrupt
	s.interrupt = nil
	s.hasInterrupt = false
	return thunk, true
}

// terminateAll wakes every "{main}"-owned suspension still parked when the
// driver terminates, delivering EventLoopTerminatedError at its Suspend
// call instead of leaving it blocked forever. A suspension owned by a
// dispatch fiber is left alone: under normal operation hasReferencedWork
// keeps the loop from exiting while one is parked, so the only way one
// goes unresolved at terminate is an explicit Stop() call, and the
// abandoned goroutine stays exactly as parked as it would have been
// without this call.
func (s *suspensionState) terminateAll() {
	parked := s.parkedSuspensions()
	if len(parked) == 0 {
		return
	}
	err := &EventLoopTerminatedError{Parked: parked}

	s.mu.Lock()
	targets := make([]*Suspension, 0, len(s.byGoroutine))
	for _, susp := range s.byGoroutine {
		targets = append(targets, susp)
	}
	s.mu.Unlock()

	for _, susp := range targets {
		susp.mu.Lock()
		wake := susp.pending && susp.isMain
		susp.mu.Unlock()
		if !wake {
			continue
		}
		select {
		case susp.deliverCh <- outcome{err: err, isErr: true}:
		default:
		}
	}
}

// parkedSuspensions snapshots every still-pending suspension for an
// EventLoopTerminatedError diagnostic.
func (s *suspensionState) parkedSuspensions() []ParkedSuspension {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ParkedSuspension
	for _, susp := range s.byGoroutine {
		susp.mu.Lock()
		pending := susp.pending
		stack := susp.stack
		susp.mu.Unlock()
		if pending {
			out = append(out, ParkedSuspension{Stack: stack})
		}
	}
	return out
}
