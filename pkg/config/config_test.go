package config //nolint:testpackage // uses the unexported debounce interval

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irgate/pkg/hw"
)

const sampleTOML = `
[device]
model = "IRG-2"
serial = "SN42"
ethernet = true

[gateway]
max_clients = 4

[beacon]
interval = "10s"

[hardware]
driver = "lirc"
emitters = ["int_side", "ext1"]

[learn]
poll_interval = "50ms"

[log]
level = "debug"
`

const sampleYAML = `
device:
  model: IRG-2
  serial: SN42
  ethernet: true
gateway:
  max_clients: 4
beacon:
  interval: 10s
hardware:
  driver: lirc
  emitters: [int_side, ext1]
learn:
  poll_interval: 50ms
log:
  level: debug
`

func TestParseFormats(t *testing.T) {
	for _, tc := range []struct {
		ext  string
		data string
	}{
		{".toml", sampleTOML},
		{".yaml", sampleYAML},
		{".yml", sampleYAML},
	} {
		t.Run(tc.ext, func(t *testing.T) {
			cfg, err := Parse([]byte(tc.data), tc.ext)
			require.NoError(t, err)

			assert.Equal(t, "IRG-2", cfg.Device.Model)
			assert.Equal(t, "SN42", cfg.Device.Serial)
			assert.Equal(t, "irgate", cfg.Device.Make, "unset keys keep defaults")
			assert.True(t, cfg.Device.Ethernet)
			assert.Equal(t, 4, cfg.Gateway.MaxClients)
			assert.Equal(t, ":4998", cfg.Gateway.Listen)
			assert.True(t, cfg.Beacon.Enabled)
			assert.Equal(t, 10*time.Second, cfg.Beacon.Interval.Duration)
			assert.Equal(t, 50*time.Millisecond, cfg.Learn.PollInterval.Duration)
			assert.Equal(t, 2*time.Second, cfg.Send.RestartGrace.Duration)
			assert.Equal(t, 5, cfg.Router.Capacity)
			assert.Equal(t, DriverLIRC, cfg.Hardware.Driver)

			out, err := cfg.Hardware.Outputs()
			require.NoError(t, err)
			assert.Equal(t, hw.InternalSide|hw.External1, out)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"bad driver", "[hardware]\ndriver = \"usb\"\n"},
		{"bad emitter", "[hardware]\nemitters = [\"rear\"]\n"},
		{"bad duration", "[beacon]\ninterval = \"soon\"\n"},
		{"short beacon", "[beacon]\ninterval = \"10ms\"\n"},
		{"negative clients", "[gateway]\nmax_clients = -1\n"},
		{"syntax", "[gateway\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), ".toml")
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("{}"), ".json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	out, err := cfg.Hardware.Outputs()
	require.NoError(t, err)
	assert.Equal(t, hw.AllOutputs, out)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sampleTOML), ".toml")
	require.NoError(t, err)
	for _, ext := range []string{".toml", ".yaml"} {
		data, err := Encode(cfg, ext)
		require.NoError(t, err)
		back, err := Parse(data, ext)
		require.NoError(t, err)
		assert.Empty(t, Changed(cfg, back), ext)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Gateway, cfg.Gateway)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolvePaths(t *testing.T) {
	t.Run("home override", func(t *testing.T) {
		t.Setenv("IRGATE_HOME", "/tmp/irg")
		t.Setenv("IRGATE_JOURNAL", "")
		p, err := ResolvePaths()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/irg", p.Home)
		assert.Equal(t, "/tmp/irg/config.toml", p.ConfigPath)
		assert.Equal(t, "/tmp/irg/irgate.pid", p.PIDPath)
		assert.Equal(t, "/tmp/irg/journal.db", p.JournalPath)
	})
	t.Run("specific override", func(t *testing.T) {
		t.Setenv("IRGATE_HOME", "/tmp/irg")
		t.Setenv("IRGATE_JOURNAL", "/var/lib/irgate/j.db")
		p, err := ResolvePaths()
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/irgate/j.db", p.JournalPath)

		cfg := Default()
		assert.Equal(t, "/var/lib/irgate/j.db", cfg.JournalPath(p))
		cfg.Journal.Path = "/data/j.db"
		assert.Equal(t, "/data/j.db", cfg.JournalPath(p))
	})
}

func TestChanged(t *testing.T) {
	a := Default()
	b := Default()
	assert.Empty(t, Changed(a, b))

	b.Log.Level = "debug"
	b.Hardware.Emitters = []string{"ext1"}
	assert.Equal(t, []string{"hardware", "log"}, Changed(a, b))
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"info\"\n"), 0o600))

	var (
		mu     sync.Mutex
		levels []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c Config) {
			mu.Lock()
			levels = append(levels, c.Log.Level)
			mu.Unlock()
		}, nil)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"loud\"\n"), 0o600))
	time.Sleep(2 * debounce)
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "debug"
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, levels, "loud", "invalid files are never applied")
}
