package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/net/ipv4"

	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
)

// MDNSGroup is the multicast group the client uses for local discovery.
var MDNSGroup = net.IPv4(224, 0, 0, 251)

// ErrNoMulticastInterface means no interface could join the group.
var ErrNoMulticastInterface = errors.New("no multicast-capable interface joined")

// Multicast keeps the host receiving multicast traffic for a group by
// joining it on every up, multicast-capable interface.
type Multicast struct {
	group  net.IP
	logger *slog.Logger

	// interfaces lists candidate interfaces. Replaced in tests.
	interfaces func() ([]net.Interface, error)

	mu     sync.Mutex
	conn   net.PacketConn
	pc     *ipv4.PacketConn
	joined []net.Interface
}

// NewMulticast creates a lock for group. A nil group means MDNSGroup.
func NewMulticast(group net.IP, logger *slog.Logger) *Multicast {
	if group == nil {
		group = MDNSGroup
	}
	return &Multicast{
		group:      group,
		logger:     logfields.Or(logger).With("component", "multicast"),
		interfaces: net.Interfaces,
	}
}

func (m *Multicast) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pc != nil {
		return nil
	}

	ifaces, err := m.interfaces()
	if err != nil {
		return fmt.Errorf("failed to list interfaces: %w", err)
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("failed to open multicast socket: %w", err)
	}
	pc := ipv4.NewPacketConn(conn)

	var joined []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		group := &net.UDPAddr{IP: m.group}
		if err := pc.JoinGroup(&iface, group); err != nil {
			m.logger.Debug("Failed to join multicast group",
				slog.String("interface", iface.Name), logfields.Error(err))
			continue
		}
		joined = append(joined, iface)
	}

	if len(joined) == 0 {
		conn.Close()
		return ErrNoMulticastInterface
	}

	m.conn, m.pc, m.joined = conn, pc, joined
	m.logger.Info("Multicast lock acquired", slog.Int("interfaces", len(joined)))
	return nil
}

func (m *Multicast) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pc == nil {
		return nil
	}

	group := &net.UDPAddr{IP: m.group}
	for i := range m.joined {
		_ = m.pc.LeaveGroup(&m.joined[i], group)
	}
	err := m.conn.Close()
	m.conn, m.pc, m.joined = nil, nil, nil
	m.logger.Info("Multicast lock released")
	if err != nil {
		return fmt.Errorf("failed to close multicast socket: %w", err)
	}
	return nil
}

// Held reports whether the lock is currently acquired.
func (m *Multicast) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pc != nil
}
