// Package message defines the unit of work flowing through the router.
package message

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// monoEntropy is a package-level monotone entropy source shared across all
// id generations. A single shared source keeps ids lexicographically
// ordered even when messages are created within the same millisecond.
var (
	monoMu      sync.Mutex
	monoEntropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

func newID() string {
	monoMu.Lock()
	defer monoMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), monoEntropy)
	return id.String()
}

// HistoryEntry records one action performed on a message.
type HistoryEntry struct {
	Phase     string
	Entry     string
	Timestamp time.Time
}

// Message is a discrete unit of work routed between plugins.
//
// The id is assigned once at creation and never changes; advancing a
// message to its next phase produces a new value via WithPhase so that two
// phase inboxes never alias the same Message.
type Message struct {
	id      string
	phase   string
	data    map[string]any
	history []HistoryEntry
}

// New creates a Message carrying the given payload, entering the pipeline
// at the given phase. A fresh ULID is assigned as the message id.
func New(phase string, data map[string]any) *Message {
	return &Message{
		id:    newID(),
		phase: phase,
		data:  data,
	}
}

// ID returns the stable message identifier.
func (m *Message) ID() string { return m.id }

// Phase returns the phase the message is currently in.
func (m *Message) Phase() string { return m.phase }

// Data returns the opaque payload. The router never inspects it.
func (m *Message) Data() map[string]any { return m.data }

// History returns a copy of the message's history log.
func (m *Message) History() []HistoryEntry {
	out := make([]HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// AppendHistory records an action performed on the message at its current
// phase.
func (m *Message) AppendHistory(entry string) {
	m.history = append(m.history, HistoryEntry{
		Phase:     m.phase,
		Entry:     entry,
		Timestamp: time.Now(),
	})
}

// WithPhase returns a successor message in the given phase. The id, payload
// and history carry over; the history slice is copied so the successor and
// its predecessor never share backing storage.
func (m *Message) WithPhase(phase string) *Message {
	history := make([]HistoryEntry, len(m.history))
	copy(history, m.history)
	return &Message{
		id:      m.id,
		phase:   phase,
		data:    m.data,
		history: history,
	}
}

func (m *Message) String() string {
	return fmt.Sprintf("%s (phase %s)", m.id, m.phase)
}
