package evloop

import "os"

// driverOptions holds configuration resolved at Driver construction.
type driverOptions struct {
	backend    Backend
	logger     Logger
	debugTrace bool
}

// Option configures a [Driver] instance.
type Option interface {
	applyDriver(*driverOptions) error
}

type optionFunc func(*driverOptions) error

func (f optionFunc) applyDriver(o *driverOptions) error { return f(o) }

// WithBackend overrides the readiness back-end the driver dispatches I/O
// and signal callbacks through. If unset, New selects one per platform,
// honoring the EVLOOP_BACKEND environment variable (§6 of the
// specification's REVOLT_DRIVER equivalent).
func WithBackend(b Backend) Option {
	return optionFunc(func(o *driverOptions) error {
		o.backend = b
		return nil
	})
}

// WithNamedBackend selects a backend by name ("generic", "epoll",
// "kqueue") rather than by supplying a constructed Backend value. It
// fails driver construction if name is unrecognized or unavailable on the
// current platform, the same validation WithBackend's implicit default
// selection performs for EVLOOP_BACKEND.
func WithNamedBackend(name string) Option {
	return optionFunc(func(o *driverOptions) error {
		b, err := newNamedBackend(name)
		if err != nil {
			return err
		}
		o.backend = b
		return nil
	})
}

// WithLogger overrides the driver's structured logger. If unset, New uses
// a logiface/stumpy-backed default.
func WithLogger(l Logger) Option {
	return optionFunc(func(o *driverOptions) error {
		o.logger = l
		return nil
	})
}

// WithDebugTrace wraps the chosen backend in a tracing decorator that
// records creation and cancellation stack traces for each callback, and
// appends the activation trace to errors returned by the backend's
// Activate. InvalidCallbackError values are returned unchanged; the
// recorded traces are not added to them. Equivalent to setting
// EVLOOP_DEBUG_TRACE.
func WithDebugTrace(enabled bool) Option {
	return optionFunc(func(o *driverOptions) error {
		o.debugTrace = enabled
		return nil
	})
}

// resolveOptions applies Option values over the environment-derived
// defaults.
func resolveOptions(opts []Option) (*driverOptions, error) {
	cfg := &driverOptions{
		debugTrace: os.Getenv("EVLOOP_DEBUG_TRACE") != "",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyDriver(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	if cfg.backend == nil {
		b, err := newDefaultBackend()
		if err != nil {
			return nil, err
		}
		cfg.backend = b
	}
	return cfg, nil
}
