package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes each
// successfully parsed config to onChange. The parent directory is watched
// so that editors replacing the file by rename are seen. Watch blocks
// until ctx is cancelled.
func Watch(ctx context.Context, path string, onChange func(Config), log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}
	name := filepath.Clean(path)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher", "error", err)
		case <-timer.C:
			cfg, err := Load(path)
			if err != nil {
				log.Warn("config reload rejected", "path", path, "error", err)
				continue
			}
			onChange(cfg)
		}
	}
}

// Changed lists the top-level sections whose values differ between a and b.
func Changed(a, b Config) []string {
	var out []string
	add := func(name string, differ bool) {
		if differ {
			out = append(out, name)
		}
	}
	add("device", a.Device != b.Device)
	add("gateway", a.Gateway != b.Gateway)
	add("beacon", a.Beacon != b.Beacon)
	add("api", a.API != b.API)
	add("mqtt", a.MQTT != b.MQTT)
	add("hardware", !equalHardware(a.Hardware, b.Hardware))
	add("learn", a.Learn != b.Learn)
	add("send", a.Send != b.Send)
	add("router", a.Router != b.Router)
	add("log", a.Log != b.Log)
	add("journal", a.Journal != b.Journal)
	return out
}

func equalHardware(a, b Hardware) bool {
	return slices.Equal(a.Emitters, b.Emitters) &&
		a.Driver == b.Driver &&
		a.TxDevice == b.TxDevice &&
		a.RxDevice == b.RxDevice &&
		a.GPIOChip == b.GPIOChip &&
		a.IdentifyLine == b.IdentifyLine
}
