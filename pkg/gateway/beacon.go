package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"irgate/pkg/device"
	"irgate/pkg/protocol"
)

// BeaconConfig configures the discovery beacon.
type BeaconConfig struct {
	Addr     string        // Destination (default 239.255.250.250:9131).
	Interval time.Duration // Announcement period (default 30s).
	Retry    time.Duration // Retry period while no address is known (default 10s).
}

func (c *BeaconConfig) withDefaults() BeaconConfig {
	out := *c
	if out.Addr == "" {
		out.Addr = protocol.BeaconAddr
	}
	if out.Interval == 0 {
		out.Interval = protocol.BeaconInterval
	}
	if out.Retry == 0 {
		out.Retry = protocol.BeaconRetry
	}
	out.Retry = min(out.Retry, out.Interval)
	return out
}

// Beacon periodically announces the gateway the way iTach units do so
// controllers can discover it.
type Beacon struct {
	cfg BeaconConfig
	id  device.Identity
	ip  func() (net.IP, bool)
	log *slog.Logger
}

// NewBeacon creates a beacon. ip reports the address to advertise; a
// cycle without an address is skipped.
func NewBeacon(cfg BeaconConfig, id device.Identity, ip func() (net.IP, bool), log *slog.Logger) *Beacon {
	if log == nil {
		log = slog.Default()
	}
	return &Beacon{cfg: cfg.withDefaults(), id: id, ip: ip, log: log}
}

// Message renders the announcement for the given address.
func (b *Beacon) Message(ip net.IP) string {
	return fmt.Sprintf("AMXB<-UUID=%s><-SDKClass=Utility><-Make=%s><-Model=%s><-Revision=%s>"+
		"<-Config-URL=http://%s><-PCB_PN=%s><-Status=Ready>",
		b.id.BeaconUUID(), b.id.Make, b.id.Model, b.id.Revision(), ip, b.id.Serial)
}

// Run announces immediately and then every interval until ctx is done.
// While no address is known it retries on the shorter retry period.
func (b *Beacon) Run(ctx context.Context) error {
	raddr, err := net.ResolveUDPAddr("udp4", b.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve beacon address %s: %w", b.cfg.Addr, err)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return fmt.Errorf("dial beacon %s: %w", b.cfg.Addr, err)
	}
	defer conn.Close()

	b.log.Info("beacon started", "addr", b.cfg.Addr, "interval", b.cfg.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		next := b.cfg.Interval
		if !b.announce(conn) {
			next = b.cfg.Retry
		}
		timer.Reset(next)
	}
}

// announce sends one beacon. It reports false when no address is known.
func (b *Beacon) announce(conn *net.UDPConn) bool {
	ip, ok := b.ip()
	if !ok {
		b.log.Debug("no IPv4 address, retrying beacon", "in", b.cfg.Retry)
		return false
	}
	if _, err := conn.Write([]byte(b.Message(ip))); err != nil {
		b.log.Warn("send beacon", "error", err)
	}
	return true
}
