// Package route holds the static phase adjacency used to advance messages.
package route

import (
	"sort"
	"strings"

	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

// Table maps each phase to its successor. It is built once at startup and
// read-only afterwards, so lookups need no locking.
type Table struct {
	next  map[string]string
	start string
}

// NewTable builds a Table from a phase -> next-phase mapping and the
// designated start phase. Construction fails with a ConfigurationError if
// the start phase is missing, the start phase does not appear in a
// non-empty mapping, or the mapping contains a cycle. A phase with no
// outbound mapping is the terminal case.
func NewTable(startPhase string, next map[string]string) (*Table, error) {
	if startPhase == "" {
		return nil, zferrors.NewConfigurationError("route.start_phase", "start phase is required", nil)
	}

	table := &Table{
		next:  make(map[string]string, len(next)),
		start: startPhase,
	}
	for phase, successor := range next {
		table.next[phase] = successor
	}

	if len(table.next) > 0 && !table.Has(startPhase) {
		return nil, zferrors.NewConfigurationError(
			"route.start_phase", "start phase "+startPhase+" does not appear in the route table", nil)
	}

	if cycle := table.findCycle(); len(cycle) > 0 {
		return nil, zferrors.NewConfigurationError(
			"route", "route table contains a cycle: "+strings.Join(cycle, " -> "), nil)
	}

	return table, nil
}

// Next returns the successor of phase. The second return value is false for
// terminal phases, meaning a message completing there exits the pipeline.
func (t *Table) Next(phase string) (string, bool) {
	successor, ok := t.next[phase]
	return successor, ok
}

// Start returns the phase where runnable-originated messages enter.
func (t *Table) Start() string { return t.start }

// Has reports whether phase appears anywhere in the table, either as a
// source or as a successor, or is the designated start phase.
func (t *Table) Has(phase string) bool {
	if phase == t.start {
		return true
	}
	if _, ok := t.next[phase]; ok {
		return true
	}
	for _, successor := range t.next {
		if successor == phase {
			return true
		}
	}
	return false
}

// Phases returns every phase known to the table in sorted order.
func (t *Table) Phases() []string {
	seen := map[string]bool{t.start: true}
	for phase, successor := range t.next {
		seen[phase] = true
		seen[successor] = true
	}

	phases := make([]string, 0, len(seen))
	for phase := range seen {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	return phases
}

// Len returns the number of phase transitions.
func (t *Table) Len() int { return len(t.next) }

// findCycle walks successor chains looking for a phase that revisits
// itself. Each phase has at most one successor, so chasing pointers with a
// visiting set is sufficient.
func (t *Table) findCycle() []string {
	visited := make(map[string]bool, len(t.next))

	sources := make([]string, 0, len(t.next))
	for phase := range t.next {
		sources = append(sources, phase)
	}
	sort.Strings(sources)

	for _, source := range sources {
		if visited[source] {
			continue
		}

		var chain []string
		visiting := make(map[string]int, len(t.next))
		phase := source
		for {
			if idx, ok := visiting[phase]; ok {
				return append(chain[idx:], phase)
			}
			if visited[phase] {
				break
			}
			visiting[phase] = len(chain)
			chain = append(chain, phase)

			successor, ok := t.next[phase]
			if !ok {
				break
			}
			phase = successor
		}
		for _, p := range chain {
			visited[p] = true
		}
	}

	return nil
}
