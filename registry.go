package evloop

// This file implements the callback registry operations of §4.2: the
// registration constructors, the enable/disable/cancel/reference family,
// and the read-only introspection accessors. The registry's state (the
// records map and the two enable queues) lives on Driver itself — per
// the concurrency model, it is owned exclusively by the driver, and every
// mutation here takes Driver.mu.

// Defer registers a callback that fires once, on the tick after it is
// enabled.
func (d *Driver) Defer(fn DeferFunc) CallbackID {
	c := d.newRecord(KindDefer)
	c.deferFn = fn
	d.mu.Lock()
	d.records[c.id] = c
	d.mu.Unlock()
	_ = d.Enable(c.id)
	return c.id
}

// Delay registers a callback that fires once after interval elapses. It
// fails with InvalidArgumentError if interval is negative.
func (d *Driver) Delay(interval float64, fn DeferFunc) (CallbackID, error) {
	if interval < 0 {
		return "", &InvalidArgumentError{Message: "delay interval must be >= 0"}
	}
	c := d.newRecord(KindDelay)
	c.deferFn = fn
	c.interval = interval
	c.repeat = false
	d.mu.Lock()
	d.records[c.id] = c
	d.mu.Unlock()
	_ = d.Enable(c.id)
	return c.id, nil
}

// Repeat registers a callback that fires every interval until cancelled.
// It fails with InvalidArgumentError if interval is negative.
func (d *Driver) Repeat(interval float64, fn DeferFunc) (CallbackID, error) {
	if interval < 0 {
		return "", &InvalidArgumentError{Message: "repeat interval must be >= 0"}
	}
	c := d.newRecord(KindRepeat)
	c.deferFn = fn
	c.interval = interval
	c.repeat = true
	d.mu.Lock()
	d.records[c.id] = c
	d.mu.Unlock()
	_ = d.Enable(c.id)
	return c.id, nil
}

// OnReadable registers a callback that fires while fd is ready for
// reading. Activation happens synchronously against the backend, so a
// failure (e.g. an fd the backend's readiness mechanism rejects)
// propagates to the caller immediately rather than surfacing later on
// the async error handler.
func (d *Driver) OnReadable(fd int, stream any, fn StreamFunc) (CallbackID, error) {
	c := d.newRecord(KindReadable)
	c.streamFn = fn
	c.fd = fd
	c.stream = stream
	d.mu.Lock()
	d.records[c.id] = c
	d.mu.Unlock()
	if err := d.Enable(c.id); err != nil {
		d.mu.Lock()
		delete(d.records, c.id)
		d.mu.Unlock()
		return "", err
	}
	return c.id, nil
}

// OnWritable registers a callback that fires while fd is ready for
// writing. See OnReadable for the synchronous-activation contract.
func (d *Driver) OnWritable(fd int, stream any, fn StreamFunc) (CallbackID, error) {
	c := d.newRecord(KindWritable)
	c.streamFn = fn
	c.fd = fd
	c.stream = stream
	d.mu.Lock()
	d.records[c.id] = c
	d.mu.Unlock()
	if err := d.Enable(c.id); err != nil {
		d.mu.Lock()
		delete(d.records, c.id)
		d.mu.Unlock()
		return "", err
	}
	return c.id, nil
}

// OnSignal registers a callback that fires when signo is delivered to the
// process. Fails with UnsupportedFeatureError if the backend cannot
// handle signals (no backend in this package currently refuses signals,
// but a custom Backend may).
func (d *Driver) OnSignal(signo int, fn SignalFunc) (CallbackID, error) {
	c := d.newRecord(KindSignal)
	c.signalFn = fn
	c.signo = signo
	d.mu.Lock()
	d.records[c.id] = c
	d.mu.Unlock()
	d.logger.Debug("signal callback registered", map[string]any{
		"id":     string(c.id),
		"signal": signalName(signo),
	})
	if err := d.Enable(c.id); err != nil {
		d.mu.Lock()
		delete(d.records, c.id)
		d.mu.Unlock()
		return "", err
	}
	return c.id, nil
}

// Enable arms id, idempotent when already enabled. Fails with
// InvalidCallbackError(InvalidIdentifier) when id is unknown. Readable,
// Writable and Signal callbacks activate against the backend
// synchronously, right here, so a registration-time failure (most
// notably UnsupportedFeatureError from a backend that cannot handle
// signals) propagates to the caller immediately, per the registration
// contract — it is never deferred to the tick loop's async Activate
// phase or the error handler. Defer goes on the enable-defer queue
// (distinct from the generic enable queue, per the source's asymmetry);
// Delay and Repeat go on the generic enable queue, and have their
// expiration recomputed from now() at enable time, so disabling and
// re-enabling a delay restarts its clock — their heap insertion still
// happens in the tick loop's Activate phase, since it requires a live
// tick to race against.
func (d *Driver) Enable(id CallbackID) error {
	d.mu.Lock()
	c, ok := d.records[id]
	if !ok {
		d.mu.Unlock()
		return &InvalidCallbackError{ID: id, Kind: InvalidIdentifier}
	}
	if c.enabled {
		d.mu.Unlock()
		return nil
	}
	c.enabled = true
	if c.kind == KindDelay || c.kind == KindRepeat {
		c.expiration = d.now() + c.interval
	}
	synchronous := c.kind == KindReadable || c.kind == KindWritable || c.kind == KindSignal
	d.mu.Unlock()

	if synchronous {
		if err := d.backend.Activate(c); err != nil {
			d.mu.Lock()
			c.enabled = false
			d.mu.Unlock()
			return err
		}
		d.mu.Lock()
		c.invokable = true
		d.mu.Unlock()
		return nil
	}

	d.mu.Lock()
	if c.kind == KindDefer {
		d.enableDeferQueue = append(d.enableDeferQueue, c)
	} else {
		d.enableQueue = append(d.enableQueue, c)
	}
	d.mu.Unlock()
	return nil
}

// Disable idempotently disarms id; unknown ids succeed silently, so a
// callback may disable itself defensively. Removes the record from its
// enable queue if still pending; otherwise removes a Delay/Repeat from the
// timer heap, or calls the backend's Deactivate for any other kind.
func (d *Driver) Disable(id CallbackID) error {
	d.mu.Lock()
	c, ok := d.records[id]
	if !ok || !c.enabled {
		d.mu.Unlock()
		return nil
	}
	c.enabled = false
	c.invokable = false
	removed := removeFromQueue(&d.enableQueue, c) || removeFromQueue(&d.enableDeferQueue, c)
	d.mu.Unlock()

	if !removed {
		if c.kind == KindDelay || c.kind == KindRepeat {
			d.timers.Remove(c.id)
		} else {
			d.backend.Deactivate(c)
		}
	}
	return nil
}

// Cancel disarms id (as Disable) and removes it from the registry
// permanently. Succeeds silently on unknown ids.
func (d *Driver) Cancel(id CallbackID) error {
	_ = d.Disable(id)
	d.mu.Lock()
	c, ok := d.records[id]
	if ok {
		if d.debugTrace {
			c.cancelledStack = captureTrace()
		}
		delete(d.records, id)
	}
	d.mu.Unlock()
	return nil
}

// Reference marks id as keeping the loop alive. Fails with
// InvalidCallbackError(InvalidIdentifier) for unknown ids.
func (d *Driver) Reference(id CallbackID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.records[id]
	if !ok {
		return &InvalidCallbackError{ID: id, Kind: InvalidIdentifier}
	}
	c.referenced = true
	return nil
}

// Unreference clears id's referenced flag; succeeds silently on unknown
// ids.
func (d *Driver) Unreference(id CallbackID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.records[id]; ok {
		c.referenced = false
	}
	return nil
}

// Identifiers returns every id currently in the registry.
func (d *Driver) Identifiers() []CallbackID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]CallbackID, 0, len(d.records))
	for id := range d.records {
		ids = append(ids, id)
	}
	return ids
}

// GetType returns the Kind of id, and whether id is known.
func (d *Driver) GetType(id CallbackID) (Kind, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.records[id]
	if !ok {
		return 0, false
	}
	return c.kind, true
}

// IsEnabled reports whether id is currently enabled.
func (d *Driver) IsEnabled(id CallbackID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.records[id]
	return ok && c.enabled
}

// IsReferenced reports whether id currently keeps the loop alive.
func (d *Driver) IsReferenced(id CallbackID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.records[id]
	return ok && c.referenced
}

func removeFromQueue(q *[]*callback, c *callback) bool {
	for i, item := range *q {
		if item == c {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}
