// Package supervisor drives orderly startup and graceful shutdown of the
// router and the runnable plugins.
package supervisor

import (
	"context"
	"io"
	"time"

	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/metrics"
	"github.com/zoneflow/zoneflow/internal/plugin"
	"github.com/zoneflow/zoneflow/internal/router"
	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

const defaultGracePeriod = 10 * time.Second

// Options configures supervisor behavior.
type Options struct {
	// Debug downgrades runnable start failures from fatal to warnings; the
	// pipeline continues without the failed plugin.
	Debug bool
	// GracePeriod bounds how long in-flight dispatches may run after the
	// termination signal before being abandoned.
	GracePeriod time.Duration
}

// Supervisor owns the start/stop ordering: router workers first, then
// runnables; on termination, producers stop before the router drains.
type Supervisor struct {
	router  *router.Router
	reg     *plugin.Registry
	metrics *metrics.Emitter
	logger  *logger.Logger
	opts    Options

	started []plugin.Runnable
}

// New assembles a supervisor over an already validated registry.
func New(r *router.Router, reg *plugin.Registry, em *metrics.Emitter, log *logger.Logger, opts Options) *Supervisor {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}
	return &Supervisor{
		router:  r,
		reg:     reg,
		metrics: em,
		logger:  log,
		opts:    opts,
	}
}

// Run starts the pipeline and blocks until ctx is cancelled by the
// termination signal, then shuts everything down. A runnable start failure
// is fatal unless debug mode is enabled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.router.Start()

	if err := s.startRunnables(ctx); err != nil {
		s.teardown()
		return err
	}

	<-ctx.Done()
	s.logger.Info("received termination signal, shutting down")
	s.teardown()
	return nil
}

func (s *Supervisor) startRunnables(ctx context.Context) error {
	for _, runnable := range s.reg.Runnables() {
		name := runnable.Name()
		sink := s.router.SinkFor(runnable.StartPhase())

		if err := runnable.Start(ctx, sink); err != nil {
			loadErr := zferrors.NewPluginLoadError(name, err)
			if !s.opts.Debug {
				return loadErr
			}
			s.logger.WithFields(map[string]any{
				"plugin":      name,
				"start_phase": runnable.StartPhase(),
			}).Error(loadErr, "plugin failed to start; continuing without it (debug mode)")
			continue
		}

		s.started = append(s.started, runnable)
		s.metrics.Incr(metrics.PluginStart, map[string]string{"plugin": name})
		s.logger.WithFields(map[string]any{
			"plugin":      name,
			"start_phase": runnable.StartPhase(),
		}).Info("started runnable plugin")
	}
	return nil
}

// teardown stops producers, drains the router up to the grace deadline and
// releases plugin resources. Messages abandoned past the deadline are
// logged by the router; they do not make shutdown fail.
func (s *Supervisor) teardown() {
	graceCtx, cancel := context.WithTimeout(context.Background(), s.opts.GracePeriod)
	defer cancel()

	for _, runnable := range s.started {
		if err := runnable.Stop(graceCtx); err != nil {
			s.logger.WithFields(map[string]any{"plugin": runnable.Name()}).Error(err, "error stopping runnable plugin")
		}
		s.metrics.Incr(metrics.PluginStop, map[string]string{"plugin": runnable.Name()})
	}
	s.started = nil

	if err := s.router.Shutdown(graceCtx); err != nil {
		s.logger.Error(err, "router did not drain cleanly")
	}

	if relay := s.reg.Relay(); relay != nil {
		if closer, ok := relay.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.WithFields(map[string]any{"plugin": relay.Name()}).Error(err, "error closing metric relay")
			}
		}
	}
}
