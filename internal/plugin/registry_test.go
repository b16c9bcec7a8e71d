package plugin_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/message"
	"github.com/zoneflow/zoneflow/internal/plugin"
	"github.com/zoneflow/zoneflow/internal/plugin/plugintest"
	"github.com/zoneflow/zoneflow/internal/route"
	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Options{Level: "error"})
	require.NoError(t, err)
	return log
}

func TestRegistryClassifiesByCapability(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry(newTestLogger(t))

	handler := &plugintest.Handler{PluginName: "enricher", BoundPhase: "enrich"}
	runnable := &plugintest.Runnable{PluginName: "consumer", Phase: "enrich"}
	relay := &plugintest.Relay{PluginName: "metrics"}

	require.NoError(t, reg.Register(handler))
	require.NoError(t, reg.Register(runnable))
	require.NoError(t, reg.Register(relay))

	got, ok := reg.HandlerFor("enrich")
	require.True(t, ok)
	require.Equal(t, handler, got)

	require.Len(t, reg.Runnables(), 1)
	require.Equal(t, relay, reg.Relay())
	require.Equal(t, []string{"enrich"}, reg.HandlerPhases())
}

func TestRegistryRejectsDuplicatePhaseHandlers(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "a", BoundPhase: "publish"}))

	err := reg.Register(&plugintest.Handler{PluginName: "b", BoundPhase: "publish"})
	require.Error(t, err)

	var cfgErr *zferrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Contains(t, err.Error(), "publish")
}

func TestRegistryRejectsCapabilityFreePlugin(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry(newTestLogger(t))
	err := reg.Register(bareName("useless"))
	require.Error(t, err)

	var cfgErr *zferrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRegistryFirstRelayWins(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry(newTestLogger(t))
	first := &plugintest.Relay{PluginName: "relay-a"}
	second := &plugintest.Relay{PluginName: "relay-b"}

	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second), "second relay is ignored, not fatal")
	require.Equal(t, first, reg.Relay())
}

func TestRegistryAllowsMultipleRunnablesSharingStartPhase(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, reg.Register(&plugintest.Runnable{PluginName: "pubsub-a", Phase: "consume"}))
	require.NoError(t, reg.Register(&plugintest.Runnable{PluginName: "pubsub-b", Phase: "consume"}))
	require.Len(t, reg.Runnables(), 2)
}

func TestRegistryAcceptsMultiCapabilityPlugin(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry(newTestLogger(t))
	combo := &handlerAndRunnable{
		Handler:  plugintest.Handler{PluginName: "consumer", BoundPhase: "cleanup"},
		Runnable: plugintest.Runnable{PluginName: "consumer", Phase: "consume"},
	}

	require.NoError(t, reg.Register(combo))

	_, ok := reg.HandlerFor("cleanup")
	require.True(t, ok)
	require.Len(t, reg.Runnables(), 1)
}

func TestValidateRequiresRunnableAndHandler(t *testing.T) {
	t.Parallel()

	table, err := route.NewTable("consume", map[string]string{"consume": "publish"})
	require.NoError(t, err)

	reg := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "h", BoundPhase: "consume"}))

	err = reg.Validate(table)
	require.Error(t, err)
	require.Contains(t, err.Error(), "runnable")
}

func TestValidateRequiresHandlerForEveryRoutedPhase(t *testing.T) {
	t.Parallel()

	table, err := route.NewTable("consume", map[string]string{"consume": "publish"})
	require.NoError(t, err)

	reg := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, reg.Register(&plugintest.Runnable{PluginName: "r", Phase: "consume"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "h", BoundPhase: "consume"}))

	err = reg.Validate(table)
	require.Error(t, err)
	require.Contains(t, err.Error(), `"publish"`)
}

func TestValidateRejectsHandlerOutsideRouteTable(t *testing.T) {
	t.Parallel()

	table, err := route.NewTable("consume", map[string]string{"consume": "publish"})
	require.NoError(t, err)

	reg := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, reg.Register(&plugintest.Runnable{PluginName: "r", Phase: "consume"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "a", BoundPhase: "consume"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "b", BoundPhase: "publish"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "c", BoundPhase: "archive"}))

	err = reg.Validate(table)
	require.Error(t, err)
	require.Contains(t, err.Error(), `"archive"`)
}

func TestValidateAcceptsTerminalPhaseHandler(t *testing.T) {
	t.Parallel()

	table, err := route.NewTable("consume", map[string]string{"consume": "publish"})
	require.NoError(t, err)

	reg := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, reg.Register(&plugintest.Runnable{PluginName: "r", Phase: "consume"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "a", BoundPhase: "consume"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "b", BoundPhase: "publish"}))

	require.NoError(t, reg.Validate(table))
}

func TestValidateRejectsRunnableWithUnhandledStartPhase(t *testing.T) {
	t.Parallel()

	table, err := route.NewTable("consume", map[string]string{"consume": "publish"})
	require.NoError(t, err)

	reg := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, reg.Register(&plugintest.Runnable{PluginName: "r", Phase: "publish"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "a", BoundPhase: "consume"}))
	require.NoError(t, reg.Register(&plugintest.Handler{PluginName: "b", BoundPhase: "publish"}))

	require.NoError(t, reg.Validate(table), "runnables may start at any handled phase")

	lonely := plugin.NewRegistry(newTestLogger(t))
	require.NoError(t, lonely.Register(&plugintest.Runnable{PluginName: "r", Phase: "archive"}))
	require.NoError(t, lonely.Register(&plugintest.Handler{PluginName: "a", BoundPhase: "consume"}))
	require.NoError(t, lonely.Register(&plugintest.Handler{PluginName: "b", BoundPhase: "publish"}))

	err = lonely.Validate(table)
	require.Error(t, err)
	require.Contains(t, err.Error(), `"archive"`)
}

// bareName implements Plugin but no capability.
type bareName string

func (b bareName) Name() string { return string(b) }

// handlerAndRunnable exercises one object carrying two capability roles.
type handlerAndRunnable struct {
	plugintest.Handler
	plugintest.Runnable
}

func (h *handlerAndRunnable) Name() string { return h.Handler.PluginName }

func (h *handlerAndRunnable) Phase() string { return h.Handler.Phase() }

func (h *handlerAndRunnable) HandleMessage(ctx context.Context, msg *message.Message) error {
	return h.Handler.HandleMessage(ctx, msg)
}

func (h *handlerAndRunnable) Start(ctx context.Context, sink plugin.Sink) error {
	return h.Runnable.Start(ctx, sink)
}

func (h *handlerAndRunnable) Stop(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return h.Runnable.Stop(waitCtx)
}
