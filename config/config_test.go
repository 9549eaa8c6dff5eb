package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout.Duration())
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace.Duration())
	assert.Equal(t, 100, cfg.MaxRequestsPerConn)
	assert.Equal(t, 64<<10, cfg.MaxHeaderBytes)
	assert.Equal(t, 4<<20, cfg.MaxBodyBytes)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
read_timeout: 5s
shutdown_grace: 1s
max_conns: 50
max_requests_per_conn: 10
log:
  level: debug
  format: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout.Duration())
	assert.Equal(t, time.Second, cfg.ShutdownGrace.Duration())
	assert.Equal(t, 50, cfg.MaxConns)
	assert.Equal(t, 10, cfg.MaxRequestsPerConn)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// Fields the file omits keep their defaults.
	assert.Equal(t, 64<<10, cfg.MaxHeaderBytes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("THINSERVER_ADDR", ":7070")
	t.Setenv("THINSERVER_READ_TIMEOUT", "2s")
	t.Setenv("THINSERVER_MAX_CONNS", "7")
	t.Setenv("THINSERVER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.ReadTimeout.Duration())
	assert.Equal(t, 7, cfg.MaxConns)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\n"), 0o644))

	t.Setenv("THINSERVER_ADDR", ":6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Addr)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"zero request cap", func(c *Config) { c.MaxRequestsPerConn = 0 }},
		{"negative max conns", func(c *Config) { c.MaxConns = -1 }},
		{"zero header cap", func(c *Config) { c.MaxHeaderBytes = 0 }},
		{"zero body cap", func(c *Config) { c.MaxBodyBytes = 0 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	d := Duration(90 * time.Second)
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", v)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\n"), 0o644))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("addr: \":9191\"\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":9191", cfg.Addr)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not deliver the reload")
	}
}

func TestWatcherRejectsInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9090\"\n"), 0o644))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	// An invalid file must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte("addr: \"\"\n"), 0o644))

	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config was delivered: %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}
