package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"irgate/internal/logging"
	"irgate/internal/version"
	"irgate/pkg/api"
	"irgate/pkg/config"
	"irgate/pkg/device"
	"irgate/pkg/gateway"
	"irgate/pkg/hw"
	"irgate/pkg/hw/gpio"
	"irgate/pkg/hw/lirc"
	"irgate/pkg/irlearn"
	"irgate/pkg/irsend"
	"irgate/pkg/journal"
	"irgate/pkg/mqttbridge"
	"irgate/pkg/router"
)

// errRestart marks a failure the daemon cannot recover from in-process.
var errRestart = errors.New("restart required")

// newServeCmd creates the "irgate serve" subcommand.
func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the IR gateway daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lc, err := loadConfig(flags)
			if err != nil {
				return err
			}
			log, err := logging.Setup(os.Stderr, lc.Log.Level)
			if err != nil {
				return err
			}

			release, err := AcquirePIDFile(lc.Paths.PIDPath, os.Getpid())
			if err != nil {
				return err
			}
			defer release()

			hangup := make(chan struct{}, 1)
			ctx, stop := SetupSignalHandler(cmd.Context(), func() {
				select {
				case hangup <- struct{}{}:
				default:
				}
			})
			defer stop()

			return serve(ctx, lc, hangup, log)
		},
	}
}

// hardware is the set of drivers selected by the config.
type hardware struct {
	tx        hw.Transmitter
	rx        hw.Receiver
	indicator hw.Indicator
	runLED    func(context.Context) error
	closers   []io.Closer
}

func (h *hardware) Close() {
	for _, c := range h.closers {
		_ = c.Close()
	}
}

func openHardware(cfg config.Hardware, log *slog.Logger) (*hardware, error) {
	h := &hardware{indicator: hw.NopIndicator{}}
	switch cfg.Driver {
	case config.DriverLIRC:
		tx, err := lirc.OpenTransmitter(cfg.TxDevice, logging.Component(log, "lirc"))
		if err != nil {
			return nil, err
		}
		h.tx, h.rx = tx, lirc.NewReceiver(cfg.RxDevice)
		h.closers = append(h.closers, tx)
	default:
		h.tx, h.rx = hw.NewSimTransmitter(0), hw.NewSimReceiver()
		log.Warn("using simulated IR hardware")
	}
	if cfg.GPIOChip != "" && cfg.IdentifyLine >= 0 {
		led, err := gpio.Open(cfg.GPIOChip, cfg.IdentifyLine, logging.Component(log, "gpio"))
		if err != nil {
			h.Close()
			return nil, err
		}
		h.indicator, h.runLED = led, led.Run
		h.closers = append(h.closers, led)
	}
	return h, nil
}

func identity(cfg config.Device) (device.Identity, error) {
	id := device.Identity{
		Make:       cfg.Make,
		Model:      cfg.Model,
		Serial:     cfg.Serial,
		UUIDPrefix: cfg.UUIDPrefix,
		Version:    version.String(),
		Ethernet:   cfg.Ethernet,
	}
	var err error
	if cfg.MAC != "" {
		id.MAC, err = device.NormalizeMAC(cfg.MAC)
	} else {
		id.MAC, err = device.PrimaryMAC(device.System{})
	}
	return id, err
}

// serve wires every component and runs them until ctx is cancelled or
// one of them fails. Each value on hangup re-reads the config file.
func serve(ctx context.Context, lc *loadedConfig, hangup <-chan struct{}, log *slog.Logger) error {
	cfg := lc.Config
	id, err := identity(cfg.Device)
	if err != nil {
		return err
	}
	outputs, err := cfg.Hardware.Outputs()
	if err != nil {
		return err
	}
	hwr, err := openHardware(cfg.Hardware, log)
	if err != nil {
		return err
	}
	defer hwr.Close()

	var (
		onSend  func(irsend.Request, bool)
		onLearn func(irlearn.LearnedCode)
		jrnl    *journal.Journal
	)
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(ctx, cfg.JournalPath(lc.Paths), logging.Component(log, "journal"))
		if err != nil {
			return err
		}
		defer jrnl.Close()
		onSend, onLearn = jrnl.ObserveSend, jrnl.ObserveLearn
	}

	fatal := make(chan error, 1)
	events := router.New(cfg.Router.Capacity, logging.Component(log, "router"))
	learner := irlearn.New(irlearn.Config{
		PollInterval: cfg.Learn.PollInterval.Duration,
		OnResult:     onLearn,
	}, hwr.rx, events, hwr.indicator, logging.Component(log, "learn"))
	sender := irsend.New(irsend.Config{
		Available:    outputs,
		RestartGrace: cfg.Send.RestartGrace.Duration,
		Fatal: func(err error) {
			select {
			case fatal <- err:
			default:
			}
		},
		OnComplete: onSend,
	}, hwr.tx, events, learner, logging.Component(log, "send"))
	hub := api.NewHub(api.HubConfig{}, events, logging.Component(log, "hub"))
	gw := gateway.New(gateway.Config{
		Addr:       cfg.Gateway.Listen,
		MaxClients: cfg.Gateway.MaxClients,
		MaxLine:    cfg.Gateway.MaxLine,
		Available:  outputs,
	}, sender, learner, hwr.indicator, id, logging.Component(log, "gateway"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sender.Run(gctx) })
	g.Go(func() error { return learner.Run(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return gw.ListenAndServe(gctx) })
	if jrnl != nil {
		g.Go(func() error { return jrnl.Run(gctx) })
	}
	if hwr.runLED != nil {
		g.Go(func() error { return hwr.runLED(gctx) })
	}
	if cfg.Beacon.Enabled {
		beacon := gateway.NewBeacon(gateway.BeaconConfig{
			Addr:     cfg.Beacon.Address,
			Interval: cfg.Beacon.Interval.Duration,
		}, id, func() (net.IP, bool) { return device.IPv4(device.System{}) }, logging.Component(log, "beacon"))
		g.Go(func() error { return beacon.Run(gctx) })
	}
	if cfg.API.Enabled {
		srv := api.New(api.Config{Addr: cfg.API.Listen}, sender, learner, hwr.indicator, hub, logging.Component(log, "api"))
		g.Go(func() error { return srv.ListenAndServe(gctx) })
	}
	if cfg.MQTT.Broker != "" {
		bridge := mqttbridge.New(mqttbridge.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		}, sender, learner, logging.Component(log, "mqtt"))
		hub.Register(mqttbridge.EndpointID, bridge)
		g.Go(func() error { return bridge.Run(gctx) })
	}
	if _, err := os.Stat(lc.File); err == nil {
		clog := logging.Component(log, "config")
		apply := reloader(cfg, clog)
		g.Go(func() error { return config.Watch(gctx, lc.File, apply, clog) })
		g.Go(func() error {
			for {
				select {
				case <-hangup:
					next, err := config.Load(lc.File)
					if err != nil {
						clog.Warn("reload on SIGHUP failed", "path", lc.File, "error", err)
						continue
					}
					apply(next)
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	g.Go(func() error {
		select {
		case err := <-fatal:
			return fmt.Errorf("%w: %w", errRestart, err)
		case <-gctx.Done():
			return nil
		}
	})

	log.Info("irgate started",
		"version", version.String(), "mac", id.MAC, "driver", cfg.Hardware.Driver, "outputs", outputs.String())
	err = g.Wait()
	log.Info("irgate stopped", "error", err)
	return err
}

// reloader applies the log level from a changed config file and reports
// other changed sections as needing a restart. The returned func may be
// called from several goroutines.
func reloader(current config.Config, log *slog.Logger) func(config.Config) {
	var mu sync.Mutex
	return func(next config.Config) {
		mu.Lock()
		defer mu.Unlock()
		for _, section := range config.Changed(current, next) {
			if section != "log" {
				log.Warn("config changed, restart to apply", "section", section)
			}
		}
		if lvl, err := logging.ParseLevel(next.Log.Level); err == nil && next.Log.Level != current.Log.Level {
			logging.Level.Set(lvl)
			log.Info("log level changed", "level", next.Log.Level)
		}
		current = next
	}
}
