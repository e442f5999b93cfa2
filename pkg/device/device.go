// Package device describes the identity the gateway reports to
// controllers: MAC address, make/model/serial and firmware revision.
package device

import (
	"encoding/hex"
	"errors"
	"net"
	"strings"

	"irgate/internal/version"
)

// ErrNoInterface is returned when no interface with a hardware address exists.
var ErrNoInterface = errors.New("device: no network interface with a hardware address")

// Identity is what discovery and getmac/getversion report.
type Identity struct {
	MAC        string // 12 upper case hex digits, no separators.
	Make       string
	Model      string
	Serial     string
	UUIDPrefix string
	Version    string
	Ethernet   bool
}

// Revision returns the firmware version in dashed form.
func (id Identity) Revision() string {
	return version.Dashed(id.Version)
}

// BeaconUUID is the unique id announced in the discovery beacon.
func (id Identity) BeaconUUID() string {
	return id.UUIDPrefix + "_" + id.MAC
}

// FormatMAC renders a hardware address as 12 upper case hex digits.
func FormatMAC(hw net.HardwareAddr) string {
	return strings.ToUpper(hex.EncodeToString(hw))
}

// NormalizeMAC accepts "aa:bb:cc:dd:ee:ff", "AA-BB-..." or bare hex and
// returns the 12 digit form.
func NormalizeMAC(s string) (string, error) {
	if hw, err := net.ParseMAC(s); err == nil {
		return FormatMAC(hw), nil
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 6 {
		return "", errors.New("device: invalid MAC address " + s)
	}
	return FormatMAC(b), nil
}

// Interfaces is the subset of the net package used for discovery.
type Interfaces interface {
	Interfaces() ([]net.Interface, error)
	Addrs(ifi net.Interface) ([]net.Addr, error)
}

// System reads the host's interfaces.
type System struct{}

func (System) Interfaces() ([]net.Interface, error) { return net.Interfaces() }

func (System) Addrs(ifi net.Interface) ([]net.Addr, error) { return ifi.Addrs() }

func usable(ifi net.Interface) bool {
	return ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagLoopback == 0
}

// PrimaryMAC returns the hardware address of the first usable interface,
// falling back to any interface that has one.
func PrimaryMAC(src Interfaces) (string, error) {
	ifs, err := src.Interfaces()
	if err != nil {
		return "", err
	}
	var fallback string
	for _, ifi := range ifs {
		if len(ifi.HardwareAddr) == 0 {
			continue
		}
		if usable(ifi) {
			return FormatMAC(ifi.HardwareAddr), nil
		}
		if fallback == "" && ifi.Flags&net.FlagLoopback == 0 {
			fallback = FormatMAC(ifi.HardwareAddr)
		}
	}
	if fallback == "" {
		return "", ErrNoInterface
	}
	return fallback, nil
}

// IPv4 returns the first IPv4 address of a usable interface.
func IPv4(src Interfaces) (net.IP, bool) {
	ifs, err := src.Interfaces()
	if err != nil {
		return nil, false
	}
	for _, ifi := range ifs {
		if !usable(ifi) {
			continue
		}
		addrs, err := src.Addrs(ifi)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
				return ip4, true
			}
		}
	}
	return nil, false
}
