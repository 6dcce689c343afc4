package evloop

import (
	"sync"
	"time"
)

// Driver is a cooperative, single-threaded event loop. Register callbacks
// with Defer, Delay, Repeat, OnReadable, OnWritable and OnSignal, then
// call Run to execute the tick loop until Stop is called or no
// enabled+referenced callback remains.
type Driver struct {
	mu sync.Mutex

	state  *atomicState
	logger Logger

	backend    Backend
	debugTrace bool

	idGen idGenerator

	records          map[CallbackID]*callback
	enableQueue      []*callback
	enableDeferQueue []*callback
	timers           *timerHeap
	microtasks       fifo[microtask]
	callbacks        fifo[*callback]

	previousTickIdle bool
	stopRequested    bool

	errHandlerMu sync.Mutex
	errHandler   func(error)

	loopGoroutineID int64
	runDone         chan struct{}

	suspend suspensionState

	dispatchGoroutinesMu sync.Mutex
	dispatchGoroutines   map[int64]bool

	parkMu      sync.Mutex
	parkSignals map[int64]chan struct{}
	parkedNow   map[int64]bool

	fiberLocalMu sync.Mutex
	fiberLocals  map[int64]map[*FiberLocal]any
}

// New constructs a Driver. By default the backend is chosen per-platform
// (honoring EVLOOP_BACKEND) and logging is backed by logiface+stumpy; both
// can be overridden with Option values.
func New(opts ...Option) (*Driver, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	backend := cfg.backend
	if cfg.debugTrace {
		backend = newTracingBackend(backend)
	}
	d := &Driver{
		state:      newAtomicState(),
		logger:     cfg.logger,
		backend:    backend,
		debugTrace: cfg.debugTrace,
		records:            make(map[CallbackID]*callback),
		timers:             newTimerHeap(),
		runDone:            make(chan struct{}),
		dispatchGoroutines: make(map[int64]bool),
		parkSignals:        make(map[int64]chan struct{}),
		parkedNow:          make(map[int64]bool),
		fiberLocals:        make(map[int64]map[*FiberLocal]any),
	}
	d.suspend.init(d)
	return d, nil
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() DriverState { return d.state.Load() }

// SetErrorHandler installs h as the driver's single error handler slot.
// Passing nil clears it. Safe to call while the driver is running.
func (d *Driver) SetErrorHandler(h func(error)) {
	d.errHandlerMu.Lock()
	d.errHandler = h
	d.errHandlerMu.Unlock()
}

// ErrorHandler returns the currently installed handler, or nil.
func (d *Driver) ErrorHandler() func(error) {
	d.errHandlerMu.Lock()
	defer d.errHandlerMu.Unlock()
	return d.errHandler
}

// Queue schedules fn as a microtask: it runs before the next callback,
// with no associated id and no enable/disable controls.
func (d *Driver) Queue(fn func()) {
	d.microtasks.push(microtask(fn))
}

func (d *Driver) now() float64 {
	return d.backend.Now()
}

func (d *Driver) newRecord(kind Kind) *callback {
	c := &callback{
		id:         d.idGen.next(),
		kind:       kind,
		enabled:    false,
		invokable:  false,
		referenced: true,
		heapIndex:  -1,
	}
	if d.debugTrace {
		c.createdStack = captureTrace()
	}
	return c
}

// Run executes the tick loop on the calling goroutine until Stop is
// called or no enabled+referenced callback remains. It is an error to
// call Run re-entrantly (from inside the driver's own tick loop) or while
// the driver is already running.
func (d *Driver) Run() error {
	if gid := currentGoroutineID(); gid == d.loopGoroutineID {
		switch d.state.Load() {
		case StateRunning, StateSleeping:
			return ErrReentrantRun
		}
	}
	if !d.state.TryTransition(StateAwake, StateRunning) {
		if d.state.Load() == StateRunning || d.state.Load() == StateSleeping {
			return ErrDriverAlreadyRunning
		}
		return ErrDriverTerminated
	}
	d.loopGoroutineID = currentGoroutineID()
	d.logger.Info("driver starting", nil)

	for {
		cont, err := d.tick()
		if err != nil {
			d.terminate()
			return err
		}
		if !cont {
			break
		}
	}
	d.terminate()
	return nil
}

func (d *Driver) terminate() {
	d.suspend.terminateAll()
	d.state.Store(StateTerminated)
	_ = d.backend.Close()
	close(d.runDone)
	d.logger.Info("driver terminated", nil)
}

// Stop requests that the tick loop exit after completing its current
// tick's invoke phase.
func (d *Driver) Stop() {
	d.mu.Lock()
	d.stopRequested = true
	d.mu.Unlock()
	d.state.TryTransition(StateRunning, StateTerminating)
	d.state.TryTransition(StateSleeping, StateTerminating)
}

// tick executes one iteration of activate -> defer-activate -> decide
// blocking -> dispatch -> invoke, per the driver's scheduling contract. It
// returns cont=false when the loop should exit.
func (d *Driver) tick() (cont bool, err error) {
	d.mu.Lock()
	stop := d.stopRequested
	d.mu.Unlock()
	if stop {
		return false, nil
	}

	// 1. Activate. Only Delay/Repeat ever reach the enable queue: Defer
	// goes straight to the defer-activate queue below, and Readable,
	// Writable and Signal activate synchronously against the backend
	// inside Enable itself, so their registration errors reach the
	// caller directly instead of the async error handler.
	d.mu.Lock()
	toActivate := d.enableQueue
	d.enableQueue = nil
	d.mu.Unlock()
	freshEnables := len(toActivate) > 0
	for _, c := range toActivate {
		d.timers.Insert(c)
		c.invokable = true
	}

	// 2. Defer activate
	d.mu.Lock()
	toDeferActivate := d.enableDeferQueue
	d.enableDeferQueue = nil
	d.mu.Unlock()
	if len(toDeferActivate) > 0 {
		freshEnables = true
	}
	for _, c := range toDeferActivate {
		c.invokable = true
		d.callbacks.push(c)
	}

	// 3. Decide blocking
	hasPendingMicrotasks := !d.microtasks.empty()
	blocking := d.previousTickIdle && !stop && !hasPendingMicrotasks && !freshEnables && d.hasReferencedWork()

	// 4. Dispatch
	timeout := d.computeTimeout(blocking)
	if blocking {
		d.state.TryTransition(StateRunning, StateSleeping)
	}
	if err := d.backend.Dispatch(timeout, d.onBackendReady); err != nil {
		d.reportError(err)
	}
	d.state.TryTransition(StateSleeping, StateRunning)
	d.extractDueTimers()

	// 5. Invoke
	idle := d.drainQueues()
	d.previousTickIdle = idle

	d.mu.Lock()
	stop = d.stopRequested
	d.mu.Unlock()
	if stop {
		return false, nil
	}
	if !d.hasReferencedWork() && d.microtasks.empty() && d.callbacks.empty() {
		return false, nil
	}
	return true, nil
}

func (d *Driver) computeTimeout(blocking bool) time.Duration {
	if !blocking {
		return 0
	}
	if exp, ok := d.timers.Peek(); ok {
		delta := exp - d.now()
		if delta < 0 {
			delta = 0
		}
		return time.Duration(delta * float64(time.Second))
	}
	d.mu.Lock()
	hasSignalOrIO := false
	for _, c := range d.records {
		if c.enabled && (c.kind == KindSignal || c.kind == KindReadable || c.kind == KindWritable) {
			hasSignalOrIO = true
			break
		}
	}
	d.mu.Unlock()
	if hasSignalOrIO {
		return -1
	}
	return 0
}

func (d *Driver) hasReferencedWork() bool {
	if d.hasParkedDispatchFiber() {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.records {
		if c.enabled && c.referenced {
			return true
		}
	}
	return false
}

func (d *Driver) onBackendReady(id CallbackID, ev IOEvent, signo int) {
	d.mu.Lock()
	c, ok := d.records[id]
	d.mu.Unlock()
	if !ok || !c.invokable {
		return
	}
	d.callbacks.push(c)
}

func (d *Driver) extractDueTimers() {
	now := d.now()
	for {
		c := d.timers.ExtractDue(now)
		if c == nil {
			return
		}
		d.callbacks.push(c)
	}
}

// drainQueues alternates draining all pending microtasks, then one
// callback, until both are empty. Returns idle=true when the tick did no
// work at all (used to decide whether the next tick's dispatch may block).
func (d *Driver) drainQueues() (idle bool) {
	did := false
	for {
		for _, mt := range d.microtasks.drainAll() {
			did = true
			d.invokeMicrotask(mt)
		}
		c, ok := d.callbacks.popOne()
		if !ok {
			if d.microtasks.empty() {
				break
			}
			continue
		}
		did = true
		d.invokeCallback(c)
	}
	return !did
}

func (d *Driver) invokeMicrotask(mt microtask) {
	defer d.recoverInto(func(err error) { d.reportError(err) })
	mt()
}

func (d *Driver) invokeCallback(c *callback) {
	d.mu.Lock()
	invokable := c.invokable && c.enabled
	d.mu.Unlock()
	if !invokable {
		return
	}

	switch c.kind {
	case KindDefer, KindDelay:
		_ = d.Cancel(c.id)
	case KindRepeat:
		_ = d.Disable(c.id)
		_ = d.Enable(c.id)
	}

	d.runDispatchFiber(c)
}

// runDispatchFiber invokes c's user closure on a fresh goroutine (the
// "dispatch fiber"). The tick loop goroutine waits only until the
// callback either finishes or calls Suspend(): a Suspension's Suspend
// signals "parked" through the channel registered here before it blocks
// on its own delivery channel, so a suspending callback hands control
// back to the tick loop instead of wedging it — the loop fiber is never
// paused by a dispatch fiber's suspension, matching spec.md §4.4's
// guarantee. Once parked, the goroutine keeps running detached from the
// tick loop until a matching Resume/Throw wakes it.
func (d *Driver) runDispatchFiber(c *callback) {
	done := make(chan struct{})
	ready := make(chan chan struct{}, 1)
	go func() {
		gid := currentGoroutineID()
		parked := make(chan struct{})
		d.markDispatchGoroutine(gid)
		d.registerParkSignal(gid, parked)
		ready <- parked
		defer close(done)
		defer d.clearParkSignal(gid)
		defer d.unmarkDispatchGoroutine(gid)
		defer d.suspend.forget(gid)
		defer d.clearFiberLocals(gid)
		defer d.recoverInto(func(err error) { d.reportError(err) })
		switch c.kind {
		case KindReadable, KindWritable:
			if c.streamFn != nil {
				c.streamFn(c.id, c.stream)
			}
		case KindSignal:
			if c.signalFn != nil {
				c.signalFn(c.id, c.signo)
			}
		default:
			if c.deferFn != nil {
				c.deferFn(c.id)
			}
		}
	}()
	parked := <-ready
	select {
	case <-done:
	case <-parked:
	}
}

func (d *Driver) registerParkSignal(gid int64, ch chan struct{}) {
	d.parkMu.Lock()
	d.parkSignals[gid] = ch
	d.parkMu.Unlock()
}

func (d *Driver) clearParkSignal(gid int64) {
	d.parkMu.Lock()
	delete(d.parkSignals, gid)
	delete(d.parkedNow, gid)
	d.parkMu.Unlock()
}

// signalParked closes gid's registered park channel exactly once, waking
// whichever runDispatchFiber call is waiting on it. A no-op for a
// goroutine with no registered channel ({main}, or a dispatch fiber that
// already parked once this invocation).
func (d *Driver) signalParked(gid int64) {
	d.parkMu.Lock()
	ch, ok := d.parkSignals[gid]
	if ok {
		delete(d.parkSignals, gid)
		d.parkedNow[gid] = true
	}
	d.parkMu.Unlock()
	if ok {
		close(ch)
	}
}

// unmarkParked clears gid's parked-dispatch-fiber marker once its Suspend
// call returns (delivered or not). A no-op for {main}, which never gets
// marked in the first place.
func (d *Driver) unmarkParked(gid int64) {
	d.parkMu.Lock()
	delete(d.parkedNow, gid)
	d.parkMu.Unlock()
}

// hasParkedDispatchFiber reports whether any dispatch-fiber goroutine is
// currently blocked inside Suspend, waiting on a Resume or Throw that
// hasn't arrived yet. Such a goroutine is in-flight work even though the
// callback record that spawned it was already auto-cancelled (Defer/Delay)
// or may since have been cancelled (Readable/Writable/Signal); the loop
// must not exit out from under it.
func (d *Driver) hasParkedDispatchFiber() bool {
	d.parkMu.Lock()
	defer d.parkMu.Unlock()
	return len(d.parkedNow) > 0
}

func (d *Driver) recoverInto(report func(error)) {
	if r := recover(); r != nil {
		report(wrapPanic(r))
	}
}

func wrapPanic(r any) error {
	if err, ok := r.(error); ok {
		return &UncaughtThrowableError{Value: err}
	}
	return &UncaughtThrowableError{Value: r}
}

// reportError routes an exception to the error handler, per §4.6: if none
// is set, or the handler itself panics, the error is fatal and the loop
// stops.
func (d *Driver) reportError(err error) {
	h := d.ErrorHandler()
	if h == nil {
		d.logger.Error("uncaught error, no handler installed", err, nil)
		d.fatal(err)
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("error handler panicked", wrapPanic(r), nil)
				d.fatal(wrapPanic(r))
			}
		}()
		h(err)
	}()
}

func (d *Driver) fatal(err error) {
	d.Stop()
	d.logger.Error("driver stopping due to fatal error", err, nil)
}
