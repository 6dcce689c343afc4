//go:build linux || darwin

package evloop

import (
	"sync"
	"syscall"
	"testing"
	"time"
)

// TestSignalDeliveryOrder is spec.md §8's signal-delivery-order scenario:
// repeated deliveries of the same signal to a still-enabled callback fire
// it once per delivery, in delivery order.
func TestSignalDeliveryOrder(t *testing.T) {
	d := newTestDriver(t)

	var mu sync.Mutex
	count := 0
	want := 5

	var id CallbackID
	var err error
	id, err = d.OnSignal(int(syscall.SIGUSR1), func(CallbackID, int) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		if n >= want {
			_ = d.Cancel(id)
		}
	})
	if err != nil {
		t.Fatalf("OnSignal: %v", err)
	}

	go func() {
		for i := 0; i < want; i++ {
			time.Sleep(5 * time.Millisecond)
			_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
		}
	}()

	done := make(chan error, 1)
	go func() { done <- d.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("driver never observed %d SIGUSR1 deliveries (saw %d)", want, count)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != want {
		t.Fatalf("delivery count = %d, want %d", count, want)
	}
}

// TestSignalOnlyDispatchBlocksUntilDelivery is spec.md §8's "signal
// timeout" scenario: with only a signal callback enabled (no timers),
// dispatch blocks rather than busy-polling until the signal arrives.
func TestSignalOnlyDispatchBlocksUntilDelivery(t *testing.T) {
	d := newTestDriver(t)

	fired := make(chan struct{})
	id, err := d.OnSignal(int(syscall.SIGUSR2), func(CallbackID, int) {
		close(fired)
	})
	if err != nil {
		t.Fatalf("OnSignal: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR2)
	}()

	go func() {
		<-fired
		_ = d.Cancel(id)
		d.Stop()
	}()

	start := time.Now()
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatalf("Run returned before the signal could plausibly have arrived; dispatch did not block")
	}
}
