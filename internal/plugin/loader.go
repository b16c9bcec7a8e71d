package plugin

import (
	"fmt"
	"sort"

	"github.com/zoneflow/zoneflow/internal/logger"
	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

// LoadFailure pairs a plugin identifier with the error that prevented it
// from being instantiated.
type LoadFailure struct {
	Plugin string
	Err    error
}

// Loader resolves configured plugin names to ready-to-register instances.
// Implementations report per-plugin failures rather than aborting the whole
// load; the caller decides whether a failure is fatal.
type Loader interface {
	Load(names []string, configs map[string]map[string]any) ([]Plugin, []LoadFailure)
}

// Factory instantiates a plugin from its namespaced configuration.
type Factory func(config map[string]any, log *logger.Logger) (Plugin, error)

// FactoryLoader is a Loader backed by a static table of factories. It is
// used for the plugins shipped with the service; external discovery
// mechanisms can provide their own Loader.
type FactoryLoader struct {
	factories map[string]Factory
	logger    *logger.Logger
}

// NewFactoryLoader returns a loader with no registered factories.
func NewFactoryLoader(log *logger.Logger) *FactoryLoader {
	return &FactoryLoader{
		factories: make(map[string]Factory),
		logger:    log,
	}
}

// RegisterFactory makes a plugin constructible under name.
func (l *FactoryLoader) RegisterFactory(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("factory registration requires a name and a constructor")
	}
	if _, exists := l.factories[name]; exists {
		return fmt.Errorf("factory %q already registered", name)
	}
	l.factories[name] = factory
	return nil
}

// Installed returns the registered factory names in sorted order.
func (l *FactoryLoader) Installed() []string {
	names := make([]string, 0, len(l.factories))
	for name := range l.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load instantiates every named plugin with its own config stanza. A name
// with no registered factory yields a PluginLoadError for that name. A
// name with no config stanza at all is skipped with an info log; plugins
// that accept an empty config should be given an empty stanza.
func (l *FactoryLoader) Load(names []string, configs map[string]map[string]any) ([]Plugin, []LoadFailure) {
	var (
		plugins  []Plugin
		failures []LoadFailure
	)

	for _, name := range names {
		factory, installed := l.factories[name]
		if !installed {
			failures = append(failures, LoadFailure{
				Plugin: name,
				Err:    zferrors.NewPluginLoadError(name, fmt.Errorf("plugin %q is not installed", name)),
			})
			continue
		}

		config, configured := configs[name]
		if !configured {
			l.logger.WithFields(map[string]any{"plugin": name}).Info(
				"skipped loading plugin: no configuration found")
			continue
		}

		instance, err := factory(config, l.logger)
		if err != nil {
			failures = append(failures, LoadFailure{
				Plugin: name,
				Err:    zferrors.NewPluginLoadError(name, err),
			})
			continue
		}
		plugins = append(plugins, instance)
	}

	return plugins, failures
}
