package evloop

// FiberLocal is a per-coroutine storage slot with a lazy initializer,
// analogous to a thread-local but scoped to the goroutine a dispatch
// fiber runs a single callback invocation on. Values are cleared once
// that invocation returns.
type FiberLocal struct {
	init func() any
}

// NewFiberLocal creates a FiberLocal whose value, for any given
// goroutine, is lazily constructed by init on first Get.
func NewFiberLocal(init func() any) *FiberLocal {
	return &FiberLocal{init: init}
}

// Get returns this FiberLocal's value for the calling goroutine under d,
// constructing it via init on first access.
func (fl *FiberLocal) Get(d *Driver) any {
	gid := currentGoroutineID()
	d.fiberLocalMu.Lock()
	defer d.fiberLocalMu.Unlock()
	slots, ok := d.fiberLocals[gid]
	if !ok {
		slots = make(map[*FiberLocal]any)
		d.fiberLocals[gid] = slots
	}
	v, ok := slots[fl]
	if !ok {
		v = fl.init()
		slots[fl] = v
	}
	return v
}

// Set overrides this FiberLocal's value for the calling goroutine under d.
func (fl *FiberLocal) Set(d *Driver, v any) {
	gid := currentGoroutineID()
	d.fiberLocalMu.Lock()
	defer d.fiberLocalMu.Unlock()
	slots, ok := d.fiberLocals[gid]
	if !ok {
		slots = make(map[*FiberLocal]any)
		d.fiberLocals[gid] = slots
	}
	slots[fl] = v
}

// clearFiberLocals drops every FiberLocal value recorded for gid, called
// once a dispatch fiber finishes its callback invocation.
func (d *Driver) clearFiberLocals(gid int64) {
	d.fiberLocalMu.Lock()
	delete(d.fiberLocals, gid)
	d.fiberLocalMu.Unlock()
}
