// Package ffwd emits metrics to a local ffwd agent as JSON datagrams
// over UDP. Delivery is fire-and-forget.
package ffwd

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/plugin"
)

// Name is the identifier the relay is configured under.
const Name = "ffwd"

// DefaultAddress is where the agent listens when no address is configured.
const DefaultAddress = "127.0.0.1:19000"

// Relay serializes each metric event and writes it to the agent socket.
type Relay struct {
	key    string
	unit   time.Duration
	conn   net.Conn
	logger *logger.Logger
}

var _ plugin.MetricRelay = (*Relay)(nil)

type event struct {
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes"`
	Value      float64           `json:"value"`
	Type       string            `json:"type"`
}

// Factory builds a Relay from its config stanza. Recognized keys: "key"
// (required metric namespace), "address" (host:port of the agent, default
// DefaultAddress) and "time_unit" (ns/us/ms/s, default ms).
func Factory(config map[string]any, log *logger.Logger) (plugin.Plugin, error) {
	return New(config, log)
}

// New constructs the relay and opens the agent socket.
func New(config map[string]any, log *logger.Logger) (*Relay, error) {
	key, _ := config["key"].(string)
	if key == "" {
		return nil, fmt.Errorf("ffwd relay requires a non-empty key")
	}

	address := DefaultAddress
	if v, ok := config["address"].(string); ok && v != "" {
		address = v
	}

	unit := time.Millisecond
	if v, ok := config["time_unit"].(string); ok && v != "" {
		parsed, err := parseUnit(v)
		if err != nil {
			return nil, err
		}
		unit = parsed
	}

	conn, err := net.Dial("udp", address)
	if err != nil {
		return nil, fmt.Errorf("dialing ffwd agent at %s: %w", address, err)
	}

	return &Relay{key: key, unit: unit, conn: conn, logger: log}, nil
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

// Incr emits a counter event.
func (r *Relay) Incr(name string, value int64, tags map[string]string) error {
	return r.emit(name, float64(value), tags)
}

// Timing emits the elapsed duration scaled to the configured unit.
func (r *Relay) Timing(name string, elapsed time.Duration, tags map[string]string) error {
	return r.emit(name, float64(elapsed)/float64(r.unit), tags)
}

// Close releases the agent socket.
func (r *Relay) Close() error {
	return r.conn.Close()
}

func (r *Relay) emit(name string, value float64, tags map[string]string) error {
	attrs := map[string]string{"what": name}
	for k, v := range tags {
		attrs[k] = v
	}

	payload, err := json.Marshal(event{
		Key:        r.key,
		Attributes: attrs,
		Value:      value,
		Type:       "metric",
	})
	if err != nil {
		return fmt.Errorf("encoding metric %s: %w", name, err)
	}

	if _, err := r.conn.Write(payload); err != nil {
		return fmt.Errorf("sending metric %s: %w", name, err)
	}
	return nil
}
