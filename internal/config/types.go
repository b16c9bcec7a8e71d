package config

import "time"

// Defaults applied when settings are omitted from the document.
const (
	DefaultInboxCapacity      = 64
	DefaultConcurrency        = 4
	DefaultGracePeriodSeconds = 10
	DefaultLogLevel           = "info"
)

// Config represents the full zoneflow configuration document.
type Config struct {
	Route        Route                     `yaml:"route" validate:"required"`
	Plugins      []string                  `yaml:"plugins" validate:"required,min=1,dive,plugin_name"`
	Metrics      string                    `yaml:"metrics,omitempty" validate:"omitempty,plugin_name"`
	Debug        bool                      `yaml:"debug,omitempty"`
	Settings     Settings                  `yaml:"settings,omitempty"`
	PluginConfig map[string]map[string]any `yaml:"plugin_config,omitempty"`
}

// Route declares the phase topology: where messages enter and which phase
// follows which. A phase absent from Phases is terminal.
type Route struct {
	StartPhase string            `yaml:"start_phase" validate:"required,phase_name"`
	Phases     map[string]string `yaml:"phases,omitempty"`
}

// Settings holds global execution parameters.
type Settings struct {
	InboxCapacity      int    `yaml:"inbox_capacity,omitempty" validate:"omitempty,min=1,max=65536"`
	Concurrency        int    `yaml:"concurrency,omitempty" validate:"omitempty,min=1,max=64"`
	GracePeriodSeconds int    `yaml:"grace_period,omitempty" validate:"omitempty,min=1,max=3600"`
	LogLevel           string `yaml:"log_level,omitempty" validate:"omitempty,oneof=trace debug info warn error"`
	LogPretty          bool   `yaml:"log_pretty,omitempty"`
}

// GracePeriod returns the shutdown grace deadline as a duration.
func (s Settings) GracePeriod() time.Duration {
	return time.Duration(s.GracePeriodSeconds) * time.Second
}

// applyDefaults fills zero-valued settings in place.
func (c *Config) applyDefaults() {
	if c.Settings.InboxCapacity == 0 {
		c.Settings.InboxCapacity = DefaultInboxCapacity
	}
	if c.Settings.Concurrency == 0 {
		c.Settings.Concurrency = DefaultConcurrency
	}
	if c.Settings.GracePeriodSeconds == 0 {
		c.Settings.GracePeriodSeconds = DefaultGracePeriodSeconds
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = DefaultLogLevel
	}
}

// StanzaFor returns the configuration stanza for the named plugin and
// whether the document declares one.
func (c *Config) StanzaFor(name string) (map[string]any, bool) {
	stanza, ok := c.PluginConfig[name]
	return stanza, ok
}
