// Package lifecycle supervises the client engine as a state machine.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jeanhaley32/ouinet-shell/internal/args"
	"github.com/jeanhaley32/ouinet-shell/internal/capability"
	"github.com/jeanhaley32/ouinet-shell/internal/config"
	"github.com/jeanhaley32/ouinet-shell/internal/engine"
	"github.com/jeanhaley32/ouinet-shell/internal/events"
	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
	"github.com/jeanhaley32/ouinet-shell/internal/metrics"
)

// Default timings
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultStartGrace   = 10 * time.Second
	DefaultStopTimeout  = 30 * time.Second
)

// SignalRelay forwards host signals while attached. *events.Forwarder
// satisfies it.
type SignalRelay interface {
	Attach(src events.Source)
	Detach()
}

// Options configures a Controller. Engine is required; the rest default.
type Options struct {
	Engine engine.Engine

	// Capability is held while the engine runs. Defaults to capability.Noop.
	Capability capability.Lock

	// Relay is attached to Source while the engine is Started or Degraded.
	Relay  SignalRelay
	Source events.Source

	Clock        clockwork.Clock
	PollInterval time.Duration

	// StartGrace is how long after a start Created or Stopped samples are
	// read as "not up yet" rather than as a failure.
	StartGrace time.Duration

	// StopTimeout bounds the wait for the engine to confirm a stop.
	StopTimeout time.Duration

	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Controller runs the start/stop state machine for one engine. Start and
// Stop are serialized and return without waiting for the engine; State
// never blocks.
type Controller struct {
	engine     engine.Engine
	capability capability.Lock
	relay      SignalRelay
	source     events.Source
	clock      clockwork.Clock
	interval   time.Duration
	grace      time.Duration
	stopWait   time.Duration
	logger     *slog.Logger
	recorder   metrics.Recorder

	state atomic.Int32

	mu          sync.Mutex
	changed     chan struct{}
	monitorStop chan struct{}
	startedAt   time.Time
	capHeld     bool
	relayed     bool
	tearingDown bool
}

// NewController creates a Controller in the Created state.
func NewController(opts Options) *Controller {
	c := &Controller{
		engine:     opts.Engine,
		capability: opts.Capability,
		relay:      opts.Relay,
		source:     opts.Source,
		clock:      opts.Clock,
		interval:   opts.PollInterval,
		grace:      opts.StartGrace,
		stopWait:   opts.StopTimeout,
		logger:     logfields.Or(opts.Logger).With("component", "lifecycle"),
		recorder:   metrics.Or(opts.Recorder),
		changed:    make(chan struct{}),
	}
	if c.capability == nil {
		c.capability = capability.Noop{}
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.grace <= 0 {
		c.grace = DefaultStartGrace
	}
	if c.stopWait <= 0 {
		c.stopWait = DefaultStopTimeout
	}
	c.state.Store(int32(engine.Created))
	return c
}

// State returns the last known engine state.
func (c *Controller) State() engine.State {
	return engine.State(c.state.Load())
}

// Start starts the engine with cfg. It only acts from Created, Failed or
// Stopped, and not while a stop is still tearing down; otherwise it is a
// no-op. Progress is observable through State.
func (c *Controller) Start(cfg config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.State()
	if c.tearingDown {
		c.logger.Info("Stop in progress, ignoring start")
		return
	}
	if !current.Startable() {
		c.logger.Debug("Engine already starting or running, ignoring start", logfields.State(current.String()))
		return
	}

	if !c.capHeld {
		if err := c.capability.Acquire(); err != nil {
			c.logger.Warn("Failed to acquire capability, starting without it", logfields.Error(err))
		} else {
			c.capHeld = true
		}
	}

	argv, searchPaths := args.ToArgs(cfg)

	c.setState(engine.Starting)
	c.startedAt = c.clock.Now()
	c.engine.StartClient(argv, searchPaths)
	c.recorder.IncEngineCall("start")
	c.logger.Info("Engine start dispatched", logfields.InstallDir(cfg.InstallDir()))

	c.stopMonitor()
	stop := make(chan struct{})
	c.monitorStop = stop
	go c.monitor(stop)
}

// Stop stops the engine. From Created or Stopped it moves straight to
// Stopped without calling the engine. Otherwise the state becomes Stopping
// and the engine is stopped in the background; the state becomes Stopped
// once the engine confirms or the stop timeout passes.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tearingDown {
		return
	}

	switch current := c.State(); current {
	case engine.Stopped:
		return
	case engine.Created:
		c.setState(engine.Stopped)
		return
	}

	c.stopMonitor()
	c.setState(engine.Stopping)
	c.updateRelay()
	c.tearingDown = true

	releaseCap := c.capHeld
	c.capHeld = false
	go c.teardown(releaseCap)
}

// Restart stops the engine, waits for the stop to complete and starts it
// again with cfg.
func (c *Controller) Restart(ctx context.Context, cfg config.Config) error {
	c.Stop()
	if _, err := c.WaitFor(ctx, engine.Stopped); err != nil {
		return err
	}
	c.Start(cfg)
	return nil
}

// WaitFor blocks until the state is one of states or ctx is done, and
// returns the state it observed last.
func (c *Controller) WaitFor(ctx context.Context, states ...engine.State) (engine.State, error) {
	for {
		c.mu.Lock()
		current, changed := c.State(), c.changed
		c.mu.Unlock()

		for _, s := range states {
			if current == s {
				return current, nil
			}
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-changed:
		}
	}
}

// Refresh samples the engine once and applies the result the way the
// background monitor does.
func (c *Controller) Refresh() engine.State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tearingDown {
		return c.State()
	}
	c.apply(engine.StateFromCode(c.engine.ClientState()))
	return c.State()
}

func (c *Controller) monitor(stop <-chan struct{}) {
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			c.sample(stop)
		}
	}
}

// sample polls the engine and applies the result.
func (c *Controller) sample(stop <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-stop:
		return
	default:
	}

	c.apply(engine.StateFromCode(c.engine.ClientState()))
}

// apply mirrors a reported engine state. While a start is pending, a
// Created or Stopped report keeps Starting until the grace window ends and
// becomes Failed after it. Callers hold c.mu.
func (c *Controller) apply(reported engine.State) {
	current := c.State()
	next := reported

	if current == engine.Starting && (reported == engine.Created || reported == engine.Stopped) {
		if c.clock.Since(c.startedAt) < c.grace {
			next = engine.Starting
		} else {
			next = engine.Failed
			c.logger.Warn("Engine did not start", logfields.State(reported.String()))
		}
	} else if current.Running() && !reported.Running() && reported != engine.Stopping {
		c.logger.Warn("Engine stopped unexpectedly", logfields.State(reported.String()))
	}

	if next == engine.Starting && current != engine.Starting {
		c.startedAt = c.clock.Now()
	}
	c.setState(next)
	c.updateRelay()
}

func (c *Controller) teardown(releaseCap bool) {
	c.engine.StopClient()
	c.recorder.IncEngineCall("stop")

	if releaseCap {
		if err := c.capability.Release(); err != nil {
			c.logger.Warn("Failed to release capability", logfields.Error(err))
		}
	}

	if !c.awaitStopped() {
		c.logger.Warn("Engine did not confirm stop in time")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tearingDown = false
	c.setState(engine.Stopped)
}

// awaitStopped polls until the engine reports it is no longer running.
func (c *Controller) awaitStopped() bool {
	deadline := c.clock.Now().Add(c.stopWait)
	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		switch engine.StateFromCode(c.engine.ClientState()) {
		case engine.Stopped, engine.Created, engine.Failed:
			return true
		}
		if !c.clock.Now().Before(deadline) {
			return false
		}
		<-ticker.Chan()
	}
}

// setState records a transition. Callers hold c.mu.
func (c *Controller) setState(next engine.State) {
	prev := engine.State(c.state.Swap(int32(next)))
	if prev == next {
		return
	}
	c.recorder.IncStateTransition(prev.String(), next.String())
	c.logger.Info("Engine state changed",
		logfields.FromState(prev.String()), logfields.ToState(next.String()))
	close(c.changed)
	c.changed = make(chan struct{})
}

// updateRelay attaches the relay while the engine is up and detaches it
// otherwise. Callers hold c.mu.
func (c *Controller) updateRelay() {
	if c.relay == nil || c.source == nil {
		return
	}
	up := c.State().Running()
	switch {
	case up && !c.relayed:
		c.relay.Attach(c.source)
		c.relayed = true
	case !up && c.relayed:
		c.relay.Detach()
		c.relayed = false
	}
}

// stopMonitor ends the current monitor goroutine. Callers hold c.mu.
func (c *Controller) stopMonitor() {
	if c.monitorStop != nil {
		close(c.monitorStop)
		c.monitorStop = nil
	}
}
