package mqttiot

import "time"

// Runtime holds the process-wide knobs a connection is built against:
// the logger and metrics sink it reports through, the allocator its
// outgoing packet buffers come from, and the timing parameters that
// govern the keep-alive PINGRESP deadline, the DISCONNECT wait and the
// QoS1 retry ceiling. Callers construct one Runtime (DefaultRuntime
// or NewRuntime with overrides) and share it across every connection the
// process opens, the way the C SDK's IotMqtt_Init/Cleanup pair installed
// process-wide state exactly once.
type Runtime struct {
	Logger  Logger
	Metrics Metrics

	Allocator Allocator

	// EnableAsserts records whether invariant assertions were requested
	// (WithAsserts). Off by default. No code path reads it: invariant
	// violations such as releasing a packet identifier twice are
	// tolerated silently whatever its value.
	EnableAsserts bool

	// ResponseWait is how long the keep-alive job waits for PINGRESP
	// before closing the connection, and how long Disconnect waits for its
	// DISCONNECT to be sent. Connect and the Client's Timed calls use the
	// Client's own WithConnectTimeout and WithClientResponseWait values.
	ResponseWait time.Duration

	// RetryCeiling caps the backoff between QoS1 PUBLISH retransmits.
	RetryCeiling time.Duration
}

// RuntimeOption configures a Runtime constructed with NewRuntime.
type RuntimeOption func(*Runtime)

// WithLogger overrides the Runtime's logger.
func WithLogger(l Logger) RuntimeOption {
	return func(r *Runtime) { r.Logger = l }
}

// WithMetrics overrides the Runtime's metrics sink.
func WithMetrics(m Metrics) RuntimeOption {
	return func(r *Runtime) { r.Metrics = m }
}

// WithAllocator overrides the Runtime's buffer allocator.
func WithAllocator(a Allocator) RuntimeOption {
	return func(r *Runtime) { r.Allocator = a }
}

// WithAsserts sets Runtime.EnableAsserts.
func WithAsserts(enabled bool) RuntimeOption {
	return func(r *Runtime) { r.EnableAsserts = enabled }
}

// WithResponseWait overrides Runtime.ResponseWait, the PINGRESP deadline
// and DISCONNECT wait.
func WithResponseWait(d time.Duration) RuntimeOption {
	return func(r *Runtime) { r.ResponseWait = d }
}

// WithRetryCeiling overrides the QoS1 retransmit backoff ceiling.
func WithRetryCeiling(d time.Duration) RuntimeOption {
	return func(r *Runtime) { r.RetryCeiling = d }
}

const (
	defaultResponseWait = 30 * time.Second
	defaultRetryCeiling = 2 * time.Minute
)

// NewRuntime builds a Runtime, applying opts over sensible defaults: a
// slog-backed Logger at info level, no-op Metrics, and a heap Allocator.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		Logger:       NewDefaultLogger(LogLevelInfo),
		Metrics:      &NoOpMetrics{},
		Allocator:    NewHeapAllocator(),
		ResponseWait: defaultResponseWait,
		RetryCeiling: defaultRetryCeiling,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultRuntime returns a Runtime built entirely from defaults.
func DefaultRuntime() *Runtime {
	return NewRuntime()
}

// Close releases resources held by the Runtime's allocator, if any.
func (r *Runtime) Close() error {
	if closer, ok := r.Allocator.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
