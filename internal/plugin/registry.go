package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/route"
	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

// Registry holds the set of loaded plugin instances classified by
// capability. It is populated during startup and read-only while the
// router runs.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[string]Handler // phase -> handler
	runnables []Runnable
	relay     MetricRelay
	names     map[string]bool
	logger    *logger.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		names:    make(map[string]bool),
		logger:   log,
	}
}

// Register classifies p by its implemented capabilities and stores it.
// A plugin implementing no capability, a duplicate plugin name, and two
// handlers bound to the same phase are all configuration errors. A second
// MetricRelay is not: the first configured relay wins and later ones are
// logged as ignored.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return zferrors.NewConfigurationError("plugins", "plugin is nil", nil)
	}
	name := p.Name()
	if name == "" {
		return zferrors.NewConfigurationError("plugins", "plugin has no name", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names[name] {
		return zferrors.NewConfigurationError(
			"plugins", fmt.Sprintf("plugin %q is registered twice", name), nil)
	}

	classified := false

	if handler, ok := p.(Handler); ok {
		phase := handler.Phase()
		if phase == "" {
			return zferrors.NewConfigurationError(
				"plugins", fmt.Sprintf("handler plugin %q declares no phase", name), nil)
		}
		if existing, taken := r.handlers[phase]; taken {
			return zferrors.NewConfigurationError(
				"plugins",
				fmt.Sprintf("handlers %q and %q are both bound to phase %q", existing.Name(), name, phase),
				nil)
		}
		r.handlers[phase] = handler
		classified = true
	}

	if runnable, ok := p.(Runnable); ok {
		if runnable.StartPhase() == "" {
			return zferrors.NewConfigurationError(
				"plugins", fmt.Sprintf("runnable plugin %q declares no start phase", name), nil)
		}
		r.runnables = append(r.runnables, runnable)
		classified = true
	}

	if relay, ok := p.(MetricRelay); ok {
		if r.relay != nil {
			r.logger.WithFields(map[string]any{"plugin": name}).Warn(
				"ignoring additional metric relay; one is already active")
		} else {
			r.relay = relay
		}
		classified = true
	}

	if !classified {
		return zferrors.NewConfigurationError(
			"plugins", fmt.Sprintf("plugin %q implements no capability", name), nil)
	}

	r.names[name] = true
	return nil
}

// HandlerFor returns the handler bound to phase.
func (r *Registry) HandlerFor(phase string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[phase]
	return handler, ok
}

// Runnables returns the registered runnables in registration order.
func (r *Registry) Runnables() []Runnable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Runnable, len(r.runnables))
	copy(out, r.runnables)
	return out
}

// Relay returns the active metric relay, or nil if none is configured.
func (r *Registry) Relay() MetricRelay {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relay
}

// HandlerPhases returns the phases with a bound handler in sorted order.
func (r *Registry) HandlerPhases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	phases := make([]string, 0, len(r.handlers))
	for phase := range r.handlers {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	return phases
}

// Validate cross-checks the registry against the route table. It enforces
// that routing has somewhere to send every message: at least one runnable
// and one handler exist, every phase the table references has a bound
// handler, no handler is bound to a phase the table does not know, and
// every runnable starts at a handled phase.
func (r *Registry) Validate(table *route.Table) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.runnables) == 0 {
		return zferrors.NewConfigurationError("plugins", "at least one runnable plugin is required", nil)
	}
	if len(r.handlers) == 0 {
		return zferrors.NewConfigurationError("plugins", "at least one message handler plugin is required", nil)
	}
	if table.Len() == 0 && len(r.handlers) > 1 {
		return zferrors.NewConfigurationError("route", "route table is empty but multiple handler plugins are configured", nil)
	}

	for _, phase := range table.Phases() {
		if _, ok := r.handlers[phase]; !ok {
			return zferrors.NewConfigurationError(
				"route", fmt.Sprintf("phase %q has no bound handler plugin", phase), nil)
		}
	}

	for phase, handler := range r.handlers {
		if !table.Has(phase) {
			return zferrors.NewConfigurationError(
				"plugins",
				fmt.Sprintf("handler %q is bound to phase %q which the route table does not reference", handler.Name(), phase),
				nil)
		}
	}

	for _, runnable := range r.runnables {
		start := runnable.StartPhase()
		if _, ok := r.handlers[start]; !ok {
			return zferrors.NewConfigurationError(
				"plugins",
				fmt.Sprintf("runnable %q starts at phase %q which has no bound handler", runnable.Name(), start),
				nil)
		}
	}

	return nil
}
