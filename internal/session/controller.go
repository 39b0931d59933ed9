// Package session implements the top-level state machine that sequences one
// voice-coaching session: preload context, attach to transport, serve
// capability calls, tear down. The controller owns the context cache, the
// persistence queue, the delegation client, and the capability router; all
// four are discarded with it at Close.
//
// The lifecycle is driven by explicit calls, not framework callbacks, so the
// whole machine is testable without any hosted agent SDK.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voicecoach/internal/contextcache"
	"voicecoach/internal/delegate"
	"voicecoach/internal/logging"
	"voicecoach/internal/persist"
	"voicecoach/internal/router"
	"voicecoach/internal/types"
)

// TransportHandle identifies the real-time connection a session is attached
// to. Connection establishment happens outside the core.
type TransportHandle interface {
	ID() string
}

// Options holds the session tunables, accepted as plain parameters.
type Options struct {
	// SessionID is generated when empty.
	SessionID string

	// UserID selects the context snapshot to preload. Required.
	UserID string

	// DelegationTimeout bounds each specialist call end to end.
	DelegationTimeout time.Duration

	// QueueCapacity bounds the persistence queue.
	QueueCapacity int

	// DrainGrace bounds how long teardown waits for background work.
	DrainGrace time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Controller is the per-session orchestrator. One Controller per session;
// it is not reusable after Close.
type Controller struct {
	opts Options

	state int32 // atomic State

	cache  *contextcache.Cache
	queue  *persist.Queue
	client *delegate.Client
	router *router.Router

	// callMu serializes the state check against the Draining transition so
	// no call slips in after draining began.
	callMu   sync.Mutex
	inflight sync.WaitGroup

	attachMu sync.Mutex
	handle   TransportHandle

	closeOnce sync.Once
}

// New wires a controller from its external collaborators. No I/O happens
// until Start.
func New(contextStore types.ContextStore, logStore types.LogStore, reasoner types.Reasoner, opts Options) (*Controller, error) {
	if opts.UserID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrInitFailed)
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.DelegationTimeout <= 0 {
		opts.DelegationTimeout = 2 * time.Second
	}
	if opts.DrainGrace <= 0 {
		opts.DrainGrace = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		opts:   opts,
		state:  int32(StateCreated),
		cache:  contextcache.New(contextStore),
		client: delegate.New(reasoner, delegate.Config{Timeout: opts.DelegationTimeout}),
		queue: persist.New(logStore, persist.Config{
			Capacity:   opts.QueueCapacity,
			DrainGrace: opts.DrainGrace,
		}),
	}

	r, err := router.New(router.Builtins(router.Deps{
		SessionID:   opts.SessionID,
		Context:     c.cache,
		Events:      c.queue,
		Specialists: c.client,
		Now:         opts.Now,
	}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	c.router = r

	return c, nil
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.opts.SessionID
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Controller) transition(from, to State) bool {
	return atomic.CompareAndSwapInt32(&c.state, int32(from), int32(to))
}

// Start preloads the user context and brings up the persistence worker.
// Any load failure is fatal: the session goes straight to Closed and the
// caller must abort the connection.
func (c *Controller) Start(ctx context.Context) error {
	if !c.transition(StateCreated, StateContextLoading) {
		return fmt.Errorf("%w: state %s", ErrAlreadyStarted, c.State())
	}

	logging.Session("Session %s loading context for user %s", c.opts.SessionID, c.opts.UserID)

	if _, err := c.cache.Load(ctx, c.opts.UserID); err != nil {
		atomic.StoreInt32(&c.state, int32(StateClosed))
		logging.Get(logging.CategorySession).Error(
			"Session %s failed to initialize: %v", c.opts.SessionID, err)
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	// The worker must be running before any tool call can be served.
	c.queue.Start()

	if !c.transition(StateContextLoading, StateReady) {
		// Close raced us; shut the worker back down.
		c.queue.Stop()
		return ErrClosed
	}

	logging.Session("Session %s ready", c.opts.SessionID)
	return nil
}

// Attach binds the session to its real-time transport and begins serving.
// Invoked by the external connection layer once the first interaction starts.
func (c *Controller) Attach(handle TransportHandle) error {
	c.attachMu.Lock()
	defer c.attachMu.Unlock()

	if !c.transition(StateReady, StateActive) {
		if c.State() == StateClosed {
			return ErrClosed
		}
		return fmt.Errorf("%w: state %s", ErrNotReady, c.State())
	}

	c.handle = handle
	if handle != nil {
		logging.Session("Session %s active on transport %s", c.opts.SessionID, handle.ID())
	} else {
		logging.Session("Session %s active", c.opts.SessionID)
	}
	return nil
}

// OnDetach is invoked by the transport layer when the connection ends.
// It tears the session down; safe to call more than once.
func (c *Controller) OnDetach() {
	logging.Session("Session %s transport detached", c.opts.SessionID)
	c.Close()
}

// Invoke serves one capability call. Only valid while Active. Each call is
// individually isolated: a failure in one never affects concurrently
// in-flight or subsequent calls.
func (c *Controller) Invoke(ctx context.Context, name string, args map[string]any) (*router.Result, error) {
	if err := c.beginCall(); err != nil {
		return nil, err
	}
	defer c.inflight.Done()

	return c.router.Invoke(ctx, name, args)
}

func (c *Controller) beginCall() error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	switch c.State() {
	case StateActive:
		c.inflight.Add(1)
		return nil
	case StateDraining:
		return ErrDraining
	case StateClosed:
		return ErrClosed
	default:
		return fmt.Errorf("%w: state %s", ErrNotActive, c.State())
	}
}

// Close drains and discards the session: no new calls are accepted, in-flight
// calls may finish, the persistence worker gets the drain grace period, and
// the state becomes terminal. Close never hangs indefinitely and is
// idempotent.
func (c *Controller) Close() {
	c.closeOnce.Do(c.close)
}

func (c *Controller) close() {
	// Stop accepting calls. Sessions that never reached Active close from
	// whatever state they are in, except Closed: that state is terminal and
	// must never be left again, even transiently (fatal-init goes straight
	// there before the caller's deferred Close runs).
	c.callMu.Lock()
	prev := c.State()
	if prev == StateClosed {
		c.callMu.Unlock()
		return
	}
	atomic.StoreInt32(&c.state, int32(StateDraining))
	c.callMu.Unlock()

	logging.Session("Session %s draining (from %s)", c.opts.SessionID, prev)

	// In-flight calls are bounded by their own timeouts, but teardown must
	// not hang on a stuck one either.
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.opts.DrainGrace):
		logging.Get(logging.CategorySession).Warn(
			"Session %s: in-flight calls did not finish within %v, proceeding",
			c.opts.SessionID, c.opts.DrainGrace)
	}

	// Bounded internally by the same grace period.
	c.queue.Stop()

	atomic.StoreInt32(&c.state, int32(StateClosed))
	logging.Session("Session %s closed", c.opts.SessionID)
}

// Metrics snapshots the session's observable state.
type Metrics struct {
	SessionID string
	State     State
	Queue     persist.Metrics
}

// GetMetrics returns current session metrics.
func (c *Controller) GetMetrics() Metrics {
	return Metrics{
		SessionID: c.opts.SessionID,
		State:     c.State(),
		Queue:     c.queue.GetMetrics(),
	}
}
