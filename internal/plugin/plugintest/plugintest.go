// Package plugintest provides configurable fake plugins for exercising the
// registry, router and supervisor in tests.
package plugintest

import (
	"context"
	"sync"
	"time"

	"github.com/zoneflow/zoneflow/internal/message"
	"github.com/zoneflow/zoneflow/internal/plugin"
)

// Handler is a fake message handler bound to one phase. Without a custom
// Fn it succeeds immediately and records every message it saw.
type Handler struct {
	PluginName string
	BoundPhase string
	Fn         func(ctx context.Context, msg *message.Message) error

	mu      sync.Mutex
	handled []*message.Message
}

var _ plugin.Handler = (*Handler)(nil)

func (h *Handler) Name() string  { return h.PluginName }
func (h *Handler) Phase() string { return h.BoundPhase }

func (h *Handler) HandleMessage(ctx context.Context, msg *message.Message) error {
	h.mu.Lock()
	h.handled = append(h.handled, msg)
	h.mu.Unlock()
	if h.Fn != nil {
		return h.Fn(ctx, msg)
	}
	return nil
}

// Handled returns the messages seen so far in arrival order.
func (h *Handler) Handled() []*message.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*message.Message, len(h.handled))
	copy(out, h.handled)
	return out
}

// Runnable is a fake producer. On Start it submits its prepared messages
// synchronously, or defers to StartFn when set.
type Runnable struct {
	PluginName string
	Phase      string
	Messages   []*message.Message
	StartErr   error
	StartFn    func(ctx context.Context, sink plugin.Sink) error

	mu      sync.Mutex
	started bool
	stopped bool
}

var _ plugin.Runnable = (*Runnable)(nil)

func (r *Runnable) Name() string       { return r.PluginName }
func (r *Runnable) StartPhase() string { return r.Phase }

func (r *Runnable) Start(ctx context.Context, sink plugin.Sink) error {
	if r.StartErr != nil {
		return r.StartErr
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	if r.StartFn != nil {
		return r.StartFn(ctx, sink)
	}
	for _, msg := range r.Messages {
		if err := sink.Submit(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runnable) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	return nil
}

// Started reports whether Start completed without error.
func (r *Runnable) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Stopped reports whether Stop was called.
func (r *Runnable) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Relay is a fake metric relay recording counters and timings. Err makes
// every call fail; PanicOn makes calls for that metric name panic.
type Relay struct {
	PluginName string
	Err        error
	PanicOn    string

	mu       sync.Mutex
	counters map[string]int64
	timings  map[string][]time.Duration
}

var _ plugin.MetricRelay = (*Relay)(nil)

func (r *Relay) Name() string { return r.PluginName }

func (r *Relay) Incr(name string, value int64, tags map[string]string) error {
	if name == r.PanicOn {
		panic("relay panic: " + name)
	}
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = make(map[string]int64)
	}
	r.counters[name] += value
	return nil
}

func (r *Relay) Timing(name string, elapsed time.Duration, tags map[string]string) error {
	if name == r.PanicOn {
		panic("relay panic: " + name)
	}
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timings == nil {
		r.timings = make(map[string][]time.Duration)
	}
	r.timings[name] = append(r.timings[name], elapsed)
	return nil
}

// Counter returns the accumulated value for name.
func (r *Relay) Counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Timings returns the recorded durations for name.
func (r *Relay) Timings(name string) []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.timings[name]))
	copy(out, r.timings[name])
	return out
}
