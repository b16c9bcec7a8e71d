package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zoneflow/zoneflow/internal/config"
	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

func TestExitCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "configuration error",
			err:  zferrors.NewConfigurationError("route", "missing start phase", nil),
			want: 2,
		},
		{
			name: "wrapped configuration error",
			err:  errors.Join(errors.New("context"), zferrors.NewConfigurationError("plugins", "duplicate", nil)),
			want: 2,
		},
		{
			name: "plugin load error",
			err:  zferrors.NewPluginLoadError("zone-source", errors.New("boom")),
			want: 3,
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: 1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestLoadOrderPutsRelayFirst(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Plugins: []string{"zone-source", "publisher", "ffwd"},
		Metrics: "ffwd",
	}
	require.Equal(t, []string{"ffwd", "zone-source", "publisher"}, loadOrder(cfg))

	cfg = &config.Config{
		Plugins: []string{"zone-source", "publisher"},
		Metrics: "logrelay",
	}
	require.Equal(t, []string{"logrelay", "zone-source", "publisher"}, loadOrder(cfg))

	cfg = &config.Config{Plugins: []string{"zone-source"}}
	require.Equal(t, []string{"zone-source"}, loadOrder(cfg))
}

func TestVersionCommandOutput(t *testing.T) {
	t.Parallel()

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "zoneflow")
	require.Contains(t, out.String(), "commit:")
}

func TestBuiltinFactoriesAreInstalled(t *testing.T) {
	t.Parallel()

	factories := builtinFactories()
	require.Contains(t, factories, "logrelay")
	require.Contains(t, factories, "ffwd")
}
