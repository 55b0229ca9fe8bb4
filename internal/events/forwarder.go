package events

import (
	"log/slog"
	"sync"

	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
	"github.com/jeanhaley32/ouinet-shell/internal/metrics"
)

// DefaultQueueSize bounds the signals waiting for delivery.
const DefaultQueueSize = 16

// Notifier receives forwarded signals. engine.Engine satisfies it.
type Notifier interface {
	NotifyConnectivity(connected bool)
	NotifyCharging(charging bool)
}

type signal struct {
	kind       Kind
	value      bool
	generation uint64
}

// Forwarder relays signals from an attached Source to a Notifier. Source
// callbacks only enqueue; a single worker makes the Notifier calls. When
// the queue is full the signal is dropped. Consecutive equal values of a
// kind are delivered once per attachment.
type Forwarder struct {
	notifier Notifier
	logger   *slog.Logger
	recorder metrics.Recorder

	queue chan signal
	quit  chan struct{}
	done  chan struct{}

	mu         sync.Mutex
	cancels    []func()
	generation uint64
	attached   bool
	delivered  map[Kind]bool

	closeOnce sync.Once
}

// NewForwarder creates a Forwarder and starts its worker. queueSize <= 0
// means DefaultQueueSize.
func NewForwarder(notifier Notifier, queueSize int, logger *slog.Logger, recorder metrics.Recorder) *Forwarder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	f := &Forwarder{
		notifier:  notifier,
		logger:    logfields.Or(logger).With("component", "forwarder"),
		recorder:  metrics.Or(recorder),
		queue:     make(chan signal, queueSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		delivered: make(map[Kind]bool),
	}
	go f.run()
	return f
}

// Attach subscribes to both signal kinds of src. Attaching while attached
// is a no-op.
func (f *Forwarder) Attach(src Source) {
	if src == nil {
		return
	}

	f.mu.Lock()
	if f.attached {
		f.mu.Unlock()
		return
	}
	f.attached = true
	f.generation++
	gen := f.generation
	clear(f.delivered)
	f.mu.Unlock()

	// Subscribe outside the lock: sources may replay values synchronously.
	cancels := []func(){
		src.Subscribe(Connectivity, f.handler(Connectivity, gen)),
		src.Subscribe(Charging, f.handler(Charging, gen)),
	}

	f.mu.Lock()
	if f.generation != gen {
		// Detached while subscribing.
		f.mu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}
		return
	}
	f.cancels = cancels
	f.mu.Unlock()

	f.logger.Debug("Attached to host signals")
}

// Detach cancels the subscriptions. Signals still queued from the detached
// source are discarded.
func (f *Forwarder) Detach() {
	f.mu.Lock()
	if !f.attached {
		f.mu.Unlock()
		return
	}
	f.attached = false
	f.generation++
	cancels := f.cancels
	f.cancels = nil
	f.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	f.logger.Debug("Detached from host signals")
}

// Attached reports whether a source is attached.
func (f *Forwarder) Attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached
}

// Close detaches and stops the worker. The Forwarder cannot be reused.
func (f *Forwarder) Close() {
	f.Detach()
	f.closeOnce.Do(func() {
		close(f.quit)
		<-f.done
	})
}

func (f *Forwarder) handler(kind Kind, gen uint64) func(bool) {
	return func(value bool) {
		select {
		case f.queue <- signal{kind: kind, value: value, generation: gen}:
		default:
			f.recorder.IncSignalDropped(kind.String())
			f.logger.Warn("Signal queue full, dropping signal",
				logfields.Signal(kind.String()), logfields.Value(value))
		}
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	for {
		select {
		case <-f.quit:
			return
		case s := <-f.queue:
			if f.shouldDeliver(s) {
				f.deliver(s)
			}
		}
	}
}

func (f *Forwarder) shouldDeliver(s signal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.attached || s.generation != f.generation {
		return false
	}
	if last, ok := f.delivered[s.kind]; ok && last == s.value {
		return false
	}
	f.delivered[s.kind] = s.value
	return true
}

func (f *Forwarder) deliver(s signal) {
	switch s.kind {
	case Connectivity:
		f.notifier.NotifyConnectivity(s.value)
	case Charging:
		f.notifier.NotifyCharging(s.value)
	default:
		return
	}
	f.recorder.IncSignalForwarded(s.kind.String())
	f.logger.Debug("Forwarded signal", logfields.Signal(s.kind.String()), logfields.Value(s.value))
}
