package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zoneflow/zoneflow/internal/config"
	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/metrics"
	"github.com/zoneflow/zoneflow/internal/plugin"
	"github.com/zoneflow/zoneflow/internal/plugins/ffwd"
	"github.com/zoneflow/zoneflow/internal/plugins/logrelay"
	"github.com/zoneflow/zoneflow/internal/route"
	"github.com/zoneflow/zoneflow/internal/router"
	"github.com/zoneflow/zoneflow/internal/supervisor"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the event pipeline until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, flags)
		},
	}

	return cmd
}

func runPipeline(ctx context.Context, flags *rootFlags) error {
	cfg, err := config.ParseConfig(flags.configPath)
	if err != nil {
		return err
	}

	debug := cfg.Debug || flags.debug

	log, err := logger.New(logger.Options{
		Level:         cfg.Settings.LogLevel,
		HumanReadable: cfg.Settings.LogPretty,
	})
	if err != nil {
		return err
	}

	loader := plugin.NewFactoryLoader(log)
	for name, factory := range builtinFactories() {
		if err := loader.RegisterFactory(name, factory); err != nil {
			return err
		}
	}

	// The selected relay loads even without a stanza; logrelay in
	// particular needs no configuration.
	if cfg.Metrics != "" {
		if _, ok := cfg.PluginConfig[cfg.Metrics]; !ok {
			if cfg.PluginConfig == nil {
				cfg.PluginConfig = make(map[string]map[string]any)
			}
			cfg.PluginConfig[cfg.Metrics] = map[string]any{}
		}
	}

	loaded, failures := loader.Load(loadOrder(cfg), cfg.PluginConfig)
	for _, failure := range failures {
		if !debug {
			return failure.Err
		}
		log.WithFields(map[string]any{"plugin": failure.Plugin}).Error(
			failure.Err, "plugin failed to load; continuing without it (debug mode)")
	}

	reg := plugin.NewRegistry(log)
	for _, p := range loaded {
		if err := reg.Register(p); err != nil {
			return err
		}
	}

	table, err := route.NewTable(cfg.Route.StartPhase, cfg.Route.Phases)
	if err != nil {
		return err
	}

	if err := reg.Validate(table); err != nil {
		return err
	}

	em := metrics.NewEmitter(reg.Relay(), log)
	rt := router.New(table, reg, em, log, router.Options{
		InboxCapacity: cfg.Settings.InboxCapacity,
		Concurrency:   cfg.Settings.Concurrency,
	})

	sup := supervisor.New(rt, reg, em, log, supervisor.Options{
		Debug:       debug,
		GracePeriod: cfg.Settings.GracePeriod(),
	})

	log.WithFields(map[string]any{
		"start_phase": table.Start(),
		"phases":      table.Phases(),
		"plugins":     cfg.Plugins,
	}).Info("starting pipeline")

	return sup.Run(ctx)
}

// builtinFactories lists the plugins shipped with the binary. External
// plugins register additional factories here at build time.
func builtinFactories() map[string]plugin.Factory {
	return map[string]plugin.Factory{
		logrelay.Name: logrelay.Factory,
		ffwd.Name:     ffwd.Factory,
	}
}

// loadOrder puts the configured metric relay first so that it wins relay
// selection over any other relay-capable plugin in the list.
func loadOrder(cfg *config.Config) []string {
	if cfg.Metrics == "" {
		return cfg.Plugins
	}

	order := make([]string, 0, len(cfg.Plugins)+1)
	order = append(order, cfg.Metrics)
	for _, name := range cfg.Plugins {
		if name != cfg.Metrics {
			order = append(order, name)
		}
	}
	return order
}
