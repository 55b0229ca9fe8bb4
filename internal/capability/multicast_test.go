package capability

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	var l Lock = Noop{}
	assert.NoError(t, l.Acquire())
	assert.NoError(t, l.Release())
}

func TestMulticast_NoCapableInterface(t *testing.T) {
	m := NewMulticast(nil, nil)
	m.interfaces = func() ([]net.Interface, error) {
		return []net.Interface{
			{Index: 1, Name: "down0", Flags: net.FlagMulticast},
			{Index: 2, Name: "p2p0", Flags: net.FlagUp},
		}, nil
	}

	err := m.Acquire()
	assert.ErrorIs(t, err, ErrNoMulticastInterface)
	assert.False(t, m.Held())
}

func TestMulticast_InterfaceListError(t *testing.T) {
	m := NewMulticast(nil, nil)
	m.interfaces = func() ([]net.Interface, error) {
		return nil, errors.New("boom")
	}

	assert.Error(t, m.Acquire())
	assert.False(t, m.Held())
}

func TestMulticast_ReleaseUnheld(t *testing.T) {
	m := NewMulticast(nil, nil)
	assert.NoError(t, m.Release())
	assert.NoError(t, m.Release())
}

func TestMulticast_AcquireReleaseOnHost(t *testing.T) {
	m := NewMulticast(nil, nil)
	if err := m.Acquire(); err != nil {
		t.Skipf("host cannot join multicast groups: %v", err)
	}

	assert.True(t, m.Held())
	require.NoError(t, m.Acquire(), "acquire is idempotent")

	require.NoError(t, m.Release())
	assert.False(t, m.Held())
}

func TestMulticast_DefaultGroup(t *testing.T) {
	m := NewMulticast(nil, nil)
	assert.True(t, m.group.Equal(net.IPv4(224, 0, 0, 251)))
}
