// Package metrics provides the emission façade between the router and the
// configured metric relay plugin.
package metrics

import (
	"fmt"
	"time"

	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/plugin"
)

// Counter and timer names emitted by the router and supervisor.
const (
	DispatchStart    = "dispatch-start"
	DispatchSuccess  = "dispatch-success"
	DispatchFailure  = "dispatch-failure"
	MessageDropped   = "message-dropped"
	PluginStart      = "plugin-start"
	PluginStop       = "plugin-stop"
	DispatchDuration = "dispatch-duration"
)

// Emitter forwards counters and timers to the configured relay. With no
// relay every call is a no-op. Relay errors and panics are logged locally
// and never reach the dispatch path.
type Emitter struct {
	relay  plugin.MetricRelay
	logger *logger.Logger
}

// NewEmitter wraps relay, which may be nil.
func NewEmitter(relay plugin.MetricRelay, log *logger.Logger) *Emitter {
	return &Emitter{relay: relay, logger: log}
}

// Incr increments the named counter by one.
func (e *Emitter) Incr(name string, tags map[string]string) {
	if e == nil || e.relay == nil {
		return
	}
	defer e.contain(name)
	if err := e.relay.Incr(name, 1, tags); err != nil {
		e.logger.WithFields(map[string]any{"metric": name}).Error(err, "metric relay rejected counter")
	}
}

// Time starts a scoped timer for name. The caller stops it when the timed
// section ends; stopping relays the elapsed duration.
func (e *Emitter) Time(name string, tags map[string]string) *Timer {
	return &Timer{
		emitter: e,
		name:    name,
		tags:    tags,
		start:   time.Now(),
	}
}

// contain recovers a panicking relay so a broken metrics backend cannot
// break routing.
func (e *Emitter) contain(name string) {
	if r := recover(); r != nil {
		e.logger.WithFields(map[string]any{"metric": name}).Error(
			fmt.Errorf("%v", r), "metric relay panicked")
	}
}

// Timer measures the duration of one scoped operation.
type Timer struct {
	emitter *Emitter
	name    string
	tags    map[string]string
	start   time.Time
}

// Stop ends the timer and relays the elapsed duration.
func (t *Timer) Stop() {
	if t == nil || t.emitter == nil || t.emitter.relay == nil {
		return
	}
	e := t.emitter
	defer e.contain(t.name)
	if err := e.relay.Timing(t.name, time.Since(t.start), t.tags); err != nil {
		e.logger.WithFields(map[string]any{"metric": t.name}).Error(err, "metric relay rejected timing")
	}
}
