package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "zoneflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseConfigAppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
route:
  start_phase: consume
  phases:
    consume: enrich
    enrich: publish
plugins:
  - zone-source
  - enricher
  - publisher
`)

	cfg, err := ParseConfig(path)
	require.NoError(t, err)

	require.Equal(t, "consume", cfg.Route.StartPhase)
	require.Equal(t, "enrich", cfg.Route.Phases["consume"])
	require.Equal(t, DefaultInboxCapacity, cfg.Settings.InboxCapacity)
	require.Equal(t, DefaultConcurrency, cfg.Settings.Concurrency)
	require.Equal(t, 10*time.Second, cfg.Settings.GracePeriod())
	require.Equal(t, "info", cfg.Settings.LogLevel)
	require.False(t, cfg.Debug)
}

func TestParseConfigFullDocument(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
route:
  start_phase: consume
  phases:
    consume: publish
plugins:
  - zone-source
  - publisher
  - ffwd
metrics: ffwd
debug: true
settings:
  inbox_capacity: 128
  concurrency: 8
  grace_period: 30
  log_level: debug
  log_pretty: true
plugin_config:
  ffwd:
    key: zoneflow
    address: "127.0.0.1:19000"
  zone-source:
    project: my-project
`)

	cfg, err := ParseConfig(path)
	require.NoError(t, err)

	require.Equal(t, "ffwd", cfg.Metrics)
	require.True(t, cfg.Debug)
	require.Equal(t, 128, cfg.Settings.InboxCapacity)
	require.Equal(t, 8, cfg.Settings.Concurrency)
	require.Equal(t, 30*time.Second, cfg.Settings.GracePeriod())
	require.True(t, cfg.Settings.LogPretty)

	stanza, ok := cfg.StanzaFor("ffwd")
	require.True(t, ok)
	require.Equal(t, "zoneflow", stanza["key"])

	_, ok = cfg.StanzaFor("publisher")
	require.False(t, ok)
}

func TestParseConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ParseConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	var cfgErr *zferrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseConfigMalformedYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "route: [broken\n")

	_, err := ParseConfig(path)

	var cfgErr *zferrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseConfigValidationFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing start phase",
			content: `
route:
  phases:
    consume: publish
plugins: [zone-source]
`,
		},
		{
			name: "no plugins",
			content: `
route:
  start_phase: consume
plugins: []
`,
		},
		{
			name: "duplicate plugin",
			content: `
route:
  start_phase: consume
plugins: [zone-source, zone-source]
`,
		},
		{
			name: "invalid phase name",
			content: `
route:
  start_phase: consume
  phases:
    Consume Phase: publish
plugins: [zone-source]
`,
		},
		{
			name: "concurrency out of range",
			content: `
route:
  start_phase: consume
plugins: [zone-source]
settings:
  concurrency: 1000
`,
		},
		{
			name: "unknown log level",
			content: `
route:
  start_phase: consume
plugins: [zone-source]
settings:
  log_level: loud
`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfig(t, tt.content)

			_, err := ParseConfig(path)

			var cfgErr *zferrors.ConfigurationError
			require.ErrorAs(t, err, &cfgErr, "expected configuration error, got %v", err)
		})
	}
}
