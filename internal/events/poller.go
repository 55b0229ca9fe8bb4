package events

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jeanhaley32/ouinet-shell/internal/logfields"
)

// DefaultPowerSupplyDir is where Linux exposes power supplies.
const DefaultPowerSupplyDir = "/sys/class/power_supply"

// DefaultPollInterval is how often the Poller samples the host.
const DefaultPollInterval = 5 * time.Second

// PollerOptions configures a Poller. Zero fields take defaults.
type PollerOptions struct {
	Interval       time.Duration
	Clock          clockwork.Clock
	PowerSupplyDir string

	// Connected reports host connectivity. Defaults to HostConnected.
	Connected func() bool

	Logger *slog.Logger
}

// Poller samples host connectivity and charging state on a ticker and
// publishes changes into a Hub.
type Poller struct {
	hub       *Hub
	interval  time.Duration
	clock     clockwork.Clock
	powerDir  string
	connected func() bool
	logger    *slog.Logger
}

// NewPoller creates a Poller publishing into hub.
func NewPoller(hub *Hub, opts PollerOptions) *Poller {
	p := &Poller{
		hub:       hub,
		interval:  opts.Interval,
		clock:     opts.Clock,
		powerDir:  opts.PowerSupplyDir,
		connected: opts.Connected,
		logger:    logfields.Or(opts.Logger).With("component", "poller"),
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.powerDir == "" {
		p.powerDir = DefaultPowerSupplyDir
	}
	if p.connected == nil {
		p.connected = HostConnected
	}
	return p
}

// Run samples immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.sample()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.sample()
		}
	}
}

func (p *Poller) sample() {
	p.publishChange(Connectivity, p.connected())
	if charging, ok := HostCharging(p.powerDir); ok {
		p.publishChange(Charging, charging)
	}
}

func (p *Poller) publishChange(kind Kind, value bool) {
	if last, ok := p.hub.Last(kind); ok && last == value {
		return
	}
	p.logger.Debug("Host signal changed", logfields.Signal(kind.String()), logfields.Value(value))
	p.hub.Publish(kind, value)
}

// HostConnected reports whether any up, non-loopback interface has a
// global unicast address.
func HostConnected() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}

// HostCharging reports whether any external power supply under dir is online.
// ok is false when dir lists no external supplies.
func HostCharging(dir string) (charging, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, false
	}
	for _, entry := range entries {
		base := filepath.Join(dir, entry.Name())
		kind, err := os.ReadFile(filepath.Join(base, "type"))
		if err != nil {
			continue
		}
		switch strings.TrimSpace(string(kind)) {
		case "Mains", "USB", "USB_C", "USB_PD", "Wireless":
		default:
			continue
		}
		online, err := os.ReadFile(filepath.Join(base, "online"))
		if err != nil {
			continue
		}
		ok = true
		if strings.TrimSpace(string(online)) == "1" {
			charging = true
		}
	}
	return charging, ok
}
