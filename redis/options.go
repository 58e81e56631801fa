package redis

import "time"

// EngineOption configures an Engine at construction time. Functional
// options in the style of the teacher library's redis/conn_options.go
// ConnOption — construction parameters only, per spec.md §6 ("no CLI, no
// environment variables, no on-disk state").
type EngineOption func(*Engine)

// WithConnectionStateCallback registers a callback invoked on every
// connection state transition (spec.md §6).
func WithConnectionStateCallback(cb func(ConnectionState)) EngineOption {
	return func(e *Engine) {
		e.stateCallback = cb
	}
}

// WithLogger installs a custom log sink. The default is a no-op logger.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithLogLevel installs the default stdlib-backed Logger at the given
// minimum level — a shorthand for WithLogger(NewStdLogger(level)).
func WithLogLevel(level Level) EngineOption {
	return func(e *Engine) {
		e.logger = NewStdLogger(level)
	}
}

// WithDialTimeout bounds how long Connect will wait for the TCP or Unix
// dial to succeed before reporting ConnectError. Zero means no timeout.
func WithDialTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.dialTimeout = d
	}
}

// WithInstanceID overrides the random UUID an Engine tags its logs and
// opencensus measurements with. Mainly useful in tests that want
// deterministic output.
func WithInstanceID(id string) EngineOption {
	return func(e *Engine) {
		e.id = id
	}
}
