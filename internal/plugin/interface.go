package plugin

import (
	"context"
	"time"

	"github.com/zoneflow/zoneflow/internal/message"
)

// Plugin is the minimal contract every plugin satisfies. Capabilities are
// granted by implementing one or more of Runnable, Handler and MetricRelay;
// the registry detects them by type assertion once at registration time,
// never by runtime attribute probing. A single object may implement any
// subset.
type Plugin interface {
	// Name returns the plugin's configured identifier, used for config
	// lookup and log correlation.
	Name() string
}

// Sink accepts messages originated by a Runnable. The router hands each
// Runnable a sink bound to its declared start phase when starting it.
type Sink interface {
	// Submit enqueues a message into the pipeline. It blocks while the
	// target inbox is at capacity and fails once shutdown has begun or ctx
	// is cancelled.
	Submit(ctx context.Context, msg *message.Message) error
}

// Runnable is an active producer: it originates or continuously feeds
// messages into its start phase for the lifetime of the process.
type Runnable interface {
	Plugin

	// StartPhase names the phase its messages enter the pipeline at.
	StartPhase() string

	// Start begins producing messages into sink. It must not block for the
	// lifetime of the plugin; long-running production belongs in goroutines
	// owned by the plugin that observe ctx.
	Start(ctx context.Context, sink Sink) error

	// Stop halts message production and releases resources. Called exactly
	// once during shutdown for every successfully started Runnable.
	Stop(ctx context.Context) error
}

// Handler performs the work for exactly one phase.
type Handler interface {
	Plugin

	// Phase names the single phase this handler is bound to.
	Phase() string

	// HandleMessage processes one message. It may block on I/O; ctx is
	// cancelled when the shutdown grace deadline passes. A non-nil error
	// marks the message failed without affecting other in-flight messages.
	HandleMessage(ctx context.Context, msg *message.Message) error
}

// MetricRelay receives counter and timer telemetry. It has no phase
// binding; at most one relay is active per process.
type MetricRelay interface {
	Plugin

	// Incr increases the named counter by value.
	Incr(name string, value int64, tags map[string]string) error

	// Timing records an elapsed duration for the named timer.
	Timing(name string, elapsed time.Duration, tags map[string]string) error
}
