package evloop

import "testing"

func TestFiberLocalGetLazyInitAndSet(t *testing.T) {
	d := newTestDriver(t)
	calls := 0
	fl := NewFiberLocal(func() any {
		calls++
		return "init"
	})

	done := make(chan struct{})
	d.Defer(func(CallbackID) {
		if v := fl.Get(d); v != "init" {
			t.Errorf("Get() = %v, want %q", v, "init")
		}
		if v := fl.Get(d); v != "init" {
			t.Errorf("second Get() = %v, want %q (cached, not reinitialized)", v, "init")
		}
		fl.Set(d, "overridden")
		if v := fl.Get(d); v != "overridden" {
			t.Errorf("Get() after Set() = %v, want %q", v, "overridden")
		}
		close(done)
	})

	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-done
	if calls != 1 {
		t.Fatalf("init() called %d times, want exactly 1", calls)
	}
}

// TestFiberLocalScopedPerGoroutine checks two separate dispatch fibers
// never observe each other's FiberLocal value.
func TestFiberLocalScopedPerGoroutine(t *testing.T) {
	d := newTestDriver(t)
	fl := NewFiberLocal(func() any { return 0 })

	results := make(chan any, 2)
	d.Defer(func(CallbackID) {
		fl.Set(d, "first")
		results <- fl.Get(d)
	})
	d.Defer(func(CallbackID) {
		results <- fl.Get(d)
	})

	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a := <-results
	b := <-results
	if a != "first" {
		t.Fatalf("first dispatch fiber's Get() = %v, want %q", a, "first")
	}
	if b != 0 {
		t.Fatalf("second dispatch fiber observed the first fiber's value %v, want a fresh init (0)", b)
	}
}
