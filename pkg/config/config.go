// Package config loads the irgate configuration file. TOML and YAML are
// both accepted; the format is chosen by file extension.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"irgate/internal/logging"
	"irgate/pkg/hw"
	"irgate/pkg/protocol"
	"irgate/pkg/router"
)

// ErrUnknownFormat is returned for config files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("config: unknown file format")

// Duration is a time.Duration written as "30s" or "100ms" in config files.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete daemon configuration.
type Config struct {
	Device   Device   `toml:"device" yaml:"device"`
	Gateway  Gateway  `toml:"gateway" yaml:"gateway"`
	Beacon   Beacon   `toml:"beacon" yaml:"beacon"`
	API      API      `toml:"api" yaml:"api"`
	MQTT     MQTT     `toml:"mqtt" yaml:"mqtt"`
	Hardware Hardware `toml:"hardware" yaml:"hardware"`
	Learn    Learn    `toml:"learn" yaml:"learn"`
	Send     Send     `toml:"send" yaml:"send"`
	Router   Router   `toml:"router" yaml:"router"`
	Log      Log      `toml:"log" yaml:"log"`
	Journal  Journal  `toml:"journal" yaml:"journal"`
}

// Device is the identity reported to controllers.
type Device struct {
	Make       string `toml:"make" yaml:"make"`
	Model      string `toml:"model" yaml:"model"`
	Serial     string `toml:"serial" yaml:"serial"`
	UUIDPrefix string `toml:"uuid_prefix" yaml:"uuid_prefix"`
	Ethernet   bool   `toml:"ethernet" yaml:"ethernet"`
	// MAC overrides the address read from the primary interface.
	MAC string `toml:"mac" yaml:"mac"`
}

// Gateway configures the GlobalCache TCP server.
type Gateway struct {
	Listen     string `toml:"listen" yaml:"listen"`
	MaxClients int    `toml:"max_clients" yaml:"max_clients"`
	MaxLine    int    `toml:"max_line" yaml:"max_line"`
}

// Beacon configures the discovery announcement.
type Beacon struct {
	Enabled  bool     `toml:"enabled" yaml:"enabled"`
	Address  string   `toml:"address" yaml:"address"`
	Interval Duration `toml:"interval" yaml:"interval"`
}

// API configures the websocket API.
type API struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Listen  string `toml:"listen" yaml:"listen"`
}

// MQTT configures the broker bridge. An empty broker disables it.
type MQTT struct {
	Broker      string `toml:"broker" yaml:"broker"`
	ClientID    string `toml:"client_id" yaml:"client_id"`
	TopicPrefix string `toml:"topic_prefix" yaml:"topic_prefix"`
	Username    string `toml:"username" yaml:"username"`
	Password    string `toml:"password" yaml:"password"`
}

// Hardware selects and configures the IR driver.
type Hardware struct {
	Driver       string   `toml:"driver" yaml:"driver"`
	TxDevice     string   `toml:"tx_device" yaml:"tx_device"`
	RxDevice     string   `toml:"rx_device" yaml:"rx_device"`
	GPIOChip     string   `toml:"gpio_chip" yaml:"gpio_chip"`
	IdentifyLine int      `toml:"identify_line" yaml:"identify_line"`
	Emitters     []string `toml:"emitters" yaml:"emitters"`
}

// Learn configures learning mode.
type Learn struct {
	PollInterval Duration `toml:"poll_interval" yaml:"poll_interval"`
}

// Send configures the send coordinator.
type Send struct {
	RestartGrace Duration `toml:"restart_grace" yaml:"restart_grace"`
}

// Router configures the response queue.
type Router struct {
	Capacity int `toml:"capacity" yaml:"capacity"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level" yaml:"level"`
}

// Journal configures the event journal. An empty path uses the default
// location under IRGATE_HOME.
type Journal struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Driver names.
const (
	DriverSim  = "sim"
	DriverLIRC = "lirc"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Device: Device{
			Make:       "irgate",
			Model:      "IRG-1",
			UUIDPrefix: "irgate",
		},
		Gateway: Gateway{
			Listen:     fmt.Sprintf(":%d", protocol.DefaultPort),
			MaxClients: protocol.MaxClients,
			MaxLine:    protocol.MaxLineLength,
		},
		Beacon: Beacon{
			Enabled:  true,
			Address:  protocol.BeaconAddr,
			Interval: Duration{protocol.BeaconInterval},
		},
		API:      API{Enabled: true, Listen: ":8080"},
		MQTT:     MQTT{TopicPrefix: "irgate"},
		Hardware: Hardware{Driver: DriverSim, TxDevice: "/dev/lirc0", RxDevice: "/dev/lirc1", IdentifyLine: -1},
		Learn:    Learn{PollInterval: Duration{100 * time.Millisecond}},
		Send:     Send{RestartGrace: Duration{2 * time.Second}},
		Router:   Router{Capacity: router.DefaultCapacity},
		Log:      Log{Level: "info"},
		Journal:  Journal{Enabled: true},
	}
}

// withDefaults fills zero values left by a partial file.
func (c *Config) withDefaults() Config {
	out := *c
	def := Default()
	if out.Device.Make == "" {
		out.Device.Make = def.Device.Make
	}
	if out.Device.Model == "" {
		out.Device.Model = def.Device.Model
	}
	if out.Device.UUIDPrefix == "" {
		out.Device.UUIDPrefix = def.Device.UUIDPrefix
	}
	if out.Gateway.Listen == "" {
		out.Gateway.Listen = def.Gateway.Listen
	}
	if out.Gateway.MaxClients == 0 {
		out.Gateway.MaxClients = def.Gateway.MaxClients
	}
	if out.Gateway.MaxLine == 0 {
		out.Gateway.MaxLine = def.Gateway.MaxLine
	}
	if out.Beacon.Address == "" {
		out.Beacon.Address = def.Beacon.Address
	}
	if out.Beacon.Interval.Duration == 0 {
		out.Beacon.Interval = def.Beacon.Interval
	}
	if out.API.Listen == "" {
		out.API.Listen = def.API.Listen
	}
	if out.MQTT.TopicPrefix == "" {
		out.MQTT.TopicPrefix = def.MQTT.TopicPrefix
	}
	if out.Hardware.Driver == "" {
		out.Hardware.Driver = def.Hardware.Driver
	}
	if out.Learn.PollInterval.Duration == 0 {
		out.Learn.PollInterval = def.Learn.PollInterval
	}
	if out.Send.RestartGrace.Duration == 0 {
		out.Send.RestartGrace = def.Send.RestartGrace
	}
	if out.Router.Capacity == 0 {
		out.Router.Capacity = def.Router.Capacity
	}
	if out.Log.Level == "" {
		out.Log.Level = def.Log.Level
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Hardware.Driver {
	case DriverSim, DriverLIRC:
	default:
		return fmt.Errorf("config: hardware.driver: unknown driver %q", c.Hardware.Driver)
	}
	if _, err := c.Hardware.Outputs(); err != nil {
		return err
	}
	if c.Gateway.MaxClients < 1 {
		return errors.New("config: gateway.max_clients must be positive")
	}
	if c.Gateway.MaxLine < protocol.MaxCommandLength {
		return fmt.Errorf("config: gateway.max_line must be at least %d", protocol.MaxCommandLength)
	}
	if c.Router.Capacity < 1 {
		return errors.New("config: router.capacity must be positive")
	}
	if c.Beacon.Interval.Duration < time.Second {
		return errors.New("config: beacon.interval must be at least 1s")
	}
	return nil
}

// Outputs returns the emitter lines fitted to the device. An empty list
// means all four.
func (h Hardware) Outputs() (hw.Outputs, error) {
	if len(h.Emitters) == 0 {
		return hw.AllOutputs, nil
	}
	var out hw.Outputs
	for _, name := range h.Emitters {
		o, ok := emitterNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("config: hardware.emitters: unknown emitter %q", name)
		}
		out |= o
	}
	return out, nil
}

var emitterNames = map[string]hw.Outputs{ //nolint:gochecknoglobals // lookup table
	"int_side": hw.InternalSide,
	"int_top":  hw.InternalTop,
	"ext1":     hw.External1,
	"ext2":     hw.External2,
}

// Load reads, defaults and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes data in the format named by ext (".toml", ".yaml", ".yml").
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode renders cfg in the format named by ext.
func Encode(cfg Config, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".toml":
		return toml.Marshal(cfg)
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
}
