// Package logrelay ships the default metric relay: counters and timings
// are written to the application logger. It is active when no other relay
// plugin is configured and selected.
package logrelay

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/plugin"
)

// Name is the identifier the relay is configured under.
const Name = "logrelay"

// Relay accumulates counters and logs every metric it receives.
type Relay struct {
	level  string
	unit   time.Duration
	logger *logger.Logger

	mu       sync.Mutex
	counters map[string]int64
}

var _ plugin.MetricRelay = (*Relay)(nil)

// Factory builds a Relay from its config stanza. Recognized keys:
// "log_level" (debug/info/warn, default info) and "time_unit"
// (ns/us/ms/s, default ms).
func Factory(config map[string]any, log *logger.Logger) (plugin.Plugin, error) {
	return New(config, log)
}

// New constructs the relay.
func New(config map[string]any, log *logger.Logger) (*Relay, error) {
	level := "info"
	if v, ok := config["log_level"].(string); ok && v != "" {
		level = strings.ToLower(v)
	}
	switch level {
	case "debug", "info", "warn":
	default:
		return nil, fmt.Errorf("unsupported log_level %q", level)
	}

	unit := time.Millisecond
	if v, ok := config["time_unit"].(string); ok && v != "" {
		parsed, err := parseUnit(v)
		if err != nil {
			return nil, err
		}
		unit = parsed
	}

	return &Relay{
		level:    level,
		unit:     unit,
		logger:   log,
		counters: make(map[string]int64),
	}, nil
}

func parseUnit(v string) (time.Duration, error) {
	switch strings.ToLower(v) {
	case "ns":
		return time.Nanosecond, nil
	case "us":
		return time.Microsecond, nil
	case "ms":
		return time.Millisecond, nil
	case "s":
		return time.Second, nil
	}
	return 0, fmt.Errorf("unsupported time_unit %q", v)
}

// Name implements plugin.Plugin.
func (r *Relay) Name() string { return Name }

// Incr increases the named counter and logs its cumulative value.
func (r *Relay) Incr(name string, value int64, tags map[string]string) error {
	r.mu.Lock()
	r.counters[name] += value
	total := r.counters[name]
	r.mu.Unlock()

	r.log(name, total, tags)
	return nil
}

// Timing logs the elapsed duration scaled to the configured unit.
func (r *Relay) Timing(name string, elapsed time.Duration, tags map[string]string) error {
	r.log(name, float64(elapsed)/float64(r.unit), tags)
	return nil
}

// Counter returns the accumulated value for name.
func (r *Relay) Counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

func (r *Relay) log(name string, value any, tags map[string]string) {
	fields := map[string]any{"metric": name, "value": value}
	for k, v := range tags {
		fields[k] = v
	}

	entry := r.logger.WithFields(fields)
	switch r.level {
	case "debug":
		entry.Debug("metric")
	case "warn":
		entry.Warn("metric")
	default:
		entry.Info("metric")
	}
}
