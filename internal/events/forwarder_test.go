package events

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeanhaley32/ouinet-shell/internal/engine/enginetest"
	"github.com/jeanhaley32/ouinet-shell/internal/metrics"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type dropCounter struct {
	metrics.NoopRecorder
	dropped atomic.Int64
}

func (d *dropCounter) IncSignalDropped(string) { d.dropped.Add(1) }

func TestForwarder_RelaysSignals(t *testing.T) {
	fake := enginetest.New()
	f := NewForwarder(fake, 0, nil, nil)
	defer f.Close()
	h := NewHub()

	f.Attach(h)
	h.Publish(Connectivity, true)
	h.Publish(Charging, false)

	require.Eventually(t, func() bool {
		return len(fake.Connectivity()) == 1 && len(fake.Charging()) == 1
	}, waitFor, tick)
	assert.Equal(t, []bool{true}, fake.Connectivity())
	assert.Equal(t, []bool{false}, fake.Charging())
}

func TestForwarder_SuppressesDuplicates(t *testing.T) {
	fake := enginetest.New()
	f := NewForwarder(fake, 0, nil, nil)
	defer f.Close()
	h := NewHub()
	f.Attach(h)

	h.Publish(Connectivity, true)
	h.Publish(Connectivity, true)
	h.Publish(Connectivity, false)
	h.Publish(Connectivity, false)
	h.Publish(Connectivity, true)

	require.Eventually(t, func() bool { return len(fake.Connectivity()) == 3 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []bool{true, false, true}, fake.Connectivity())
}

func TestForwarder_NotAttachedDeliversNothing(t *testing.T) {
	fake := enginetest.New()
	f := NewForwarder(fake, 0, nil, nil)
	defer f.Close()
	h := NewHub()

	h.Publish(Connectivity, true)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, fake.Connectivity())
	assert.False(t, f.Attached())
}

func TestForwarder_AttachReplaysCurrentState(t *testing.T) {
	fake := enginetest.New()
	f := NewForwarder(fake, 0, nil, nil)
	defer f.Close()
	h := NewHub()
	h.Publish(Charging, true)

	f.Attach(h)

	require.Eventually(t, func() bool { return len(fake.Charging()) == 1 }, waitFor, tick)
}

func TestForwarder_DetachStopsDelivery(t *testing.T) {
	fake := enginetest.New()
	f := NewForwarder(fake, 0, nil, nil)
	defer f.Close()
	h := NewHub()

	f.Attach(h)
	assert.Equal(t, 1, h.SubscriberCount(Connectivity))
	assert.Equal(t, 1, h.SubscriberCount(Charging))

	f.Detach()
	assert.Zero(t, h.SubscriberCount(Connectivity))
	assert.Zero(t, h.SubscriberCount(Charging))

	h.Publish(Connectivity, true)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fake.Connectivity())
}

func TestForwarder_ReattachResendsValue(t *testing.T) {
	fake := enginetest.New()
	f := NewForwarder(fake, 0, nil, nil)
	defer f.Close()
	h := NewHub()

	f.Attach(h)
	h.Publish(Connectivity, true)
	require.Eventually(t, func() bool { return len(fake.Connectivity()) == 1 }, waitFor, tick)

	f.Detach()
	f.Attach(h)

	require.Eventually(t, func() bool { return len(fake.Connectivity()) == 2 }, waitFor, tick)
	assert.Equal(t, []bool{true, true}, fake.Connectivity())
}

func TestForwarder_AttachTwiceSubscribesOnce(t *testing.T) {
	f := NewForwarder(enginetest.New(), 0, nil, nil)
	defer f.Close()
	h := NewHub()

	f.Attach(h)
	f.Attach(h)

	assert.Equal(t, 1, h.SubscriberCount(Connectivity))
}

func TestForwarder_NeverBlocksPublisher(t *testing.T) {
	fake := enginetest.New()
	fake.NotifyBlock = make(chan struct{})

	rec := &dropCounter{}
	f := NewForwarder(fake, 2, nil, rec)
	h := NewHub()
	f.Attach(h)

	published := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			h.Publish(Connectivity, i%2 == 0)
		}
		close(published)
	}()

	select {
	case <-published:
	case <-time.After(waitFor):
		t.Fatal("publisher blocked by a stalled engine")
	}

	assert.Positive(t, rec.dropped.Load())

	close(fake.NotifyBlock)
	f.Close()
}
