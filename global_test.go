package evloop

import (
	"testing"
	"time"
)

// TestGetDriverLazyInit checks GetDriver constructs the process-wide
// default exactly once and returns the same instance thereafter.
func TestGetDriverLazyInit(t *testing.T) {
	reset := swapGlobalDriverForTest(t)
	defer reset()

	d1 := GetDriver()
	d2 := GetDriver()
	if d1 != d2 {
		t.Fatalf("GetDriver() returned different instances across calls")
	}
}

// TestSetDriverRejectsRunningDriver is the process-wide accessor's
// documented guard: SetDriver refuses to replace a currently running
// default driver.
func TestSetDriverRejectsRunningDriver(t *testing.T) {
	reset := swapGlobalDriverForTest(t)
	defer reset()

	running, err := New(WithBackend(newGenericBackend()), WithLogger(noopLogger{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := running.Repeat(10, func(CallbackID) {}); err != nil {
		t.Fatalf("Repeat: %v", err)
	}
	if err := SetDriver(running); err != nil {
		t.Fatalf("SetDriver(not yet running): %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = running.Run()
		close(done)
	}()
	for i := 0; i < 200 && running.State() != StateRunning; i++ {
		time.Sleep(time.Millisecond)
	}

	replacement, err := New(WithBackend(newGenericBackend()), WithLogger(noopLogger{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := SetDriver(replacement); err == nil {
		t.Fatalf("SetDriver succeeded while the current default was running")
	}

	running.Stop()
	<-done
}

// swapGlobalDriverForTest isolates a test's mutation of the process-wide
// default driver, restoring the prior value on return.
func swapGlobalDriverForTest(t *testing.T) func() {
	t.Helper()
	globalMu.Lock()
	prior := globalDriver
	globalDriver = nil
	globalMu.Unlock()
	return func() {
		globalMu.Lock()
		globalDriver = prior
		globalMu.Unlock()
	}
}
