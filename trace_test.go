package evloop

import (
	"errors"
	"testing"
	"time"
)

type fakeBackend struct {
	activateErr error
	activated   []*callback
}

func (f *fakeBackend) Activate(c *callback) error {
	f.activated = append(f.activated, c)
	return f.activateErr
}
func (f *fakeBackend) Deactivate(c *callback)                                          {}
func (f *fakeBackend) Dispatch(time.Duration, func(CallbackID, IOEvent, int)) error     { return nil }
func (f *fakeBackend) Now() float64                                                    { return clockNow() }
func (f *fakeBackend) Handle() any                                                     { return nil }
func (f *fakeBackend) Close() error                                                    { return nil }

func TestTracingBackendCapturesStackOnActivate(t *testing.T) {
	inner := &fakeBackend{}
	b := newTracingBackend(inner)
	c := &callback{id: "a", kind: KindReadable, heapIndex: -1}
	if err := b.Activate(c); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if c.createdStack == "" {
		t.Fatalf("tracingBackend.Activate did not populate createdStack")
	}
	if len(inner.activated) != 1 {
		t.Fatalf("inner backend was not delegated to")
	}
}

func TestTracingBackendEnrichesActivateError(t *testing.T) {
	wantErr := errors.New("activation refused")
	inner := &fakeBackend{activateErr: wantErr}
	b := newTracingBackend(inner)
	c := &callback{id: "a", kind: KindWritable, heapIndex: -1}

	err := b.Activate(c)
	if err == nil {
		t.Fatalf("Activate returned nil, want enriched error")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("enriched error does not wrap the original: %v", err)
	}
}

func TestTracingBackendDelegatesNowHandleClose(t *testing.T) {
	inner := &fakeBackend{}
	b := newTracingBackend(inner)
	if b.Now() <= 0 {
		t.Fatalf("Now() = %v, want a positive timestamp", b.Now())
	}
	if b.Handle() != nil {
		t.Fatalf("Handle() = %v, want nil from the fake inner backend", b.Handle())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
