// Package router owns the phase inboxes and drives every message through
// the configured phase chain.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zoneflow/zoneflow/internal/logger"
	"github.com/zoneflow/zoneflow/internal/message"
	"github.com/zoneflow/zoneflow/internal/metrics"
	"github.com/zoneflow/zoneflow/internal/plugin"
	"github.com/zoneflow/zoneflow/internal/route"
	zferrors "github.com/zoneflow/zoneflow/pkg/errors"
)

// ErrStopped is returned by Submit once shutdown has begun.
var ErrStopped = errors.New("router is shutting down")

const (
	defaultInboxCapacity = 64
	defaultConcurrency   = 4
)

// Options bounds the router's inboxes and per-phase concurrency.
type Options struct {
	// InboxCapacity is the number of buffered slots per phase inbox. A
	// full inbox blocks the enqueuing side rather than dropping messages.
	InboxCapacity int
	// Concurrency is the number of dispatch workers per phase, i.e. how
	// many messages within one phase may be handled at once.
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.InboxCapacity <= 0 {
		o.InboxCapacity = defaultInboxCapacity
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	return o
}

// Router dispatches each message to the handler bound to its phase and
// advances successful messages along the route table. One bounded inbox
// exists per handled phase; within a phase, dispatch follows enqueue order.
type Router struct {
	table   *route.Table
	reg     *plugin.Registry
	metrics *metrics.Emitter
	logger  *logger.Logger
	opts    Options

	inboxes map[string]chan *message.Message

	stopping chan struct{}
	stopOnce sync.Once
	workers  sync.WaitGroup

	// dispatchCtx is handed to handlers. It is independent of the run
	// context so that in-flight work survives the shutdown signal and is
	// cancelled only once the grace deadline passes.
	dispatchCtx    context.Context
	cancelDispatch context.CancelFunc

	inflight sync.Map // msg id -> phase, currently dispatched
}

// New builds a Router over a validated table and registry. One inbox is
// created per phase with a bound handler.
func New(table *route.Table, reg *plugin.Registry, em *metrics.Emitter, log *logger.Logger, opts Options) *Router {
	opts = opts.withDefaults()
	dispatchCtx, cancel := context.WithCancel(context.Background())

	r := &Router{
		table:          table,
		reg:            reg,
		metrics:        em,
		logger:         log,
		opts:           opts,
		inboxes:        make(map[string]chan *message.Message),
		stopping:       make(chan struct{}),
		dispatchCtx:    dispatchCtx,
		cancelDispatch: cancel,
	}
	for _, phase := range reg.HandlerPhases() {
		r.inboxes[phase] = make(chan *message.Message, opts.InboxCapacity)
	}
	return r
}

// Start launches the dispatch workers. It returns immediately; workers run
// until Shutdown.
func (r *Router) Start() {
	for phase, inbox := range r.inboxes {
		handler, ok := r.reg.HandlerFor(phase)
		if !ok {
			continue
		}
		for i := 0; i < r.opts.Concurrency; i++ {
			r.workers.Add(1)
			go r.worker(inbox, handler)
		}
	}
	r.logger.WithFields(map[string]any{
		"phases":      len(r.inboxes),
		"concurrency": r.opts.Concurrency,
	}).Info("message router started")
}

// SinkFor returns the sink a runnable submits through. Messages are
// admitted into the given start phase.
func (r *Router) SinkFor(startPhase string) plugin.Sink {
	return &phaseSink{router: r, phase: startPhase}
}

type phaseSink struct {
	router *Router
	phase  string
}

func (s *phaseSink) Submit(ctx context.Context, msg *message.Message) error {
	if msg == nil {
		return fmt.Errorf("submit: message is nil")
	}
	if msg.Phase() != s.phase {
		msg = msg.WithPhase(s.phase)
	}
	return s.router.enqueue(ctx, msg)
}

// enqueue places msg into the inbox for its phase, blocking while the
// inbox is full. A phase with no inbox is a routing error: the message is
// dropped, counted and logged, never silently swallowed.
func (r *Router) enqueue(ctx context.Context, msg *message.Message) error {
	inbox, ok := r.inboxes[msg.Phase()]
	if !ok {
		return r.drop(msg)
	}

	select {
	case <-r.stopping:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case inbox <- msg:
		return nil
	case <-r.stopping:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) drop(msg *message.Message) error {
	err := zferrors.NewRoutingError(msg.ID(), msg.Phase())
	r.logger.WithFields(map[string]any{
		"msg_id": msg.ID(),
		"phase":  msg.Phase(),
	}).Error(err, "dropping message with unroutable phase")
	r.metrics.Incr(metrics.MessageDropped, map[string]string{
		"phase":  msg.Phase(),
		"msg_id": msg.ID(),
	})
	return err
}

func (r *Router) worker(inbox chan *message.Message, handler plugin.Handler) {
	defer r.workers.Done()
	for {
		select {
		case <-r.stopping:
			return
		case msg := <-inbox:
			r.dispatch(handler, msg)
		}
	}
}

// dispatch runs one handler invocation and advances or finishes the
// message. A handler failure is isolated to this message: it is logged,
// counted and the message goes no further.
func (r *Router) dispatch(handler plugin.Handler, msg *message.Message) {
	phase := msg.Phase()
	tags := map[string]string{"phase": phase}

	r.metrics.Incr(metrics.DispatchStart, tags)
	timer := r.metrics.Time(metrics.DispatchDuration, tags)

	r.inflight.Store(msg.ID(), phase)
	err := invoke(r.dispatchCtx, handler, msg)
	r.inflight.Delete(msg.ID())
	timer.Stop()

	if err != nil {
		handlerErr := zferrors.NewHandlerError(msg.ID(), phase, err)
		msg.AppendHistory("handler failed: " + err.Error())
		r.logger.WithFields(map[string]any{
			"msg_id": msg.ID(),
			"phase":  phase,
		}).Error(handlerErr, "message failed; not advancing")
		r.metrics.Incr(metrics.DispatchFailure, map[string]string{
			"phase":  phase,
			"msg_id": msg.ID(),
		})
		return
	}

	r.metrics.Incr(metrics.DispatchSuccess, tags)

	next, ok := r.table.Next(phase)
	if !ok {
		r.logger.WithFields(map[string]any{
			"msg_id": msg.ID(),
			"phase":  phase,
		}).Debug("message completed pipeline")
		return
	}

	successor := msg.WithPhase(next)
	successor.AppendHistory("advanced from phase " + phase)
	if err := r.enqueue(r.dispatchCtx, successor); err != nil && !isRoutingError(err) {
		r.logger.WithFields(map[string]any{
			"msg_id": successor.ID(),
			"phase":  next,
		}).Warn("discarding message advanced during shutdown")
	}
}

// invoke calls the handler, converting a panic into an error so one
// misbehaving plugin cannot take down the dispatch worker.
func invoke(ctx context.Context, handler plugin.Handler, msg *message.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return handler.HandleMessage(ctx, msg)
}

func isRoutingError(err error) bool {
	var routingErr *zferrors.RoutingError
	return errors.As(err, &routingErr)
}

// Shutdown stops the router: no new messages are accepted, workers idle
// between dispatches exit, and in-flight handler invocations may finish
// until ctx expires. Past the deadline, remaining invocations are
// cancelled, logged as abandoned, and left to unwind on their own.
// Messages enqueued but never dispatched before shutdown are not
// processed; that loss boundary is deliberate.
func (r *Router) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stopping) })

	done := make(chan struct{})
	go func() {
		r.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancelDispatch()
		r.logger.Info("message router drained")
		return nil
	case <-ctx.Done():
		r.cancelDispatch()
		abandoned := 0
		r.inflight.Range(func(id, phase any) bool {
			abandoned++
			r.logger.WithFields(map[string]any{
				"msg_id": id,
				"phase":  phase,
			}).Warn("abandoning in-flight message: grace deadline exceeded")
			return true
		})
		return fmt.Errorf("shutdown grace deadline exceeded with %d dispatch(es) in flight", abandoned)
	}
}
