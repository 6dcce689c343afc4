package evloop

import "sync"

var (
	globalMu     sync.Mutex
	globalDriver *Driver
)

// GetDriver returns the process-wide default Driver, constructing it on
// first use.
func GetDriver() *Driver {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalDriver == nil {
		d, err := New()
		if err != nil {
			// construction fails on an invalid EVLOOP_BACKEND value or when
			// the platform backend cannot be created; surface it as a panic.
			panic(err)
		}
		globalDriver = d
	}
	return globalDriver
}

// SetDriver replaces the process-wide default Driver. It fails if the
// current default is running. Before replacing, it swaps in a temporary
// no-op driver so any code holding a stale reference to the accessor
// during the swap observes a safe, non-nil value.
func SetDriver(d *Driver) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalDriver != nil && (globalDriver.State() == StateRunning || globalDriver.State() == StateSleeping) {
		return &InvalidStateError{Message: "cannot replace the running default driver"}
	}
	placeholder, err := New(WithBackend(newGenericBackend()))
	if err != nil {
		return err
	}
	globalDriver = placeholder
	globalDriver = d
	return nil
}

// The following mirror every per-driver primitive as a static delegation
// to the process-wide default driver, per the process-wide accessor's
// contract.

func Defer(fn DeferFunc) CallbackID                       { return GetDriver().Defer(fn) }
func Delay(interval float64, fn DeferFunc) (CallbackID, error) { return GetDriver().Delay(interval, fn) }
func Repeat(interval float64, fn DeferFunc) (CallbackID, error) {
	return GetDriver().Repeat(interval, fn)
}
func OnReadable(fd int, stream any, fn StreamFunc) (CallbackID, error) {
	return GetDriver().OnReadable(fd, stream, fn)
}
func OnWritable(fd int, stream any, fn StreamFunc) (CallbackID, error) {
	return GetDriver().OnWritable(fd, stream, fn)
}
func OnSignal(signo int, fn SignalFunc) (CallbackID, error) { return GetDriver().OnSignal(signo, fn) }
func Enable(id CallbackID) error                            { return GetDriver().Enable(id) }
func Disable(id CallbackID) error                           { return GetDriver().Disable(id) }
func Cancel(id CallbackID) error                            { return GetDriver().Cancel(id) }
func Reference(id CallbackID) error                         { return GetDriver().Reference(id) }
func Unreference(id CallbackID) error                       { return GetDriver().Unreference(id) }
func Queue(fn func())                                       { GetDriver().Queue(fn) }
func Run() error                                             { return GetDriver().Run() }
func Stop()                                                  { GetDriver().Stop() }
func GetSuspension() *Suspension                             { return GetDriver().GetSuspension() }
func SetErrorHandler(h func(error))                          { GetDriver().SetErrorHandler(h) }
func ErrorHandler() func(error)                              { return GetDriver().ErrorHandler() }
