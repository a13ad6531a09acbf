package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/logger"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, supervise.DefaultServiceDir, cfg.ServiceDir)
	assert.Empty(t, cfg.Services)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, logger.DefaultMaxSizeMB, cfg.Log.MaxSizeMB)
	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 10, cfg.Manager.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Manager.Timeout)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "svctl.yaml", `
service_dir: /etc/service
services: [web, db]
log:
  level: debug
  file: /var/log/svctl.log
  compress: true
http:
  listen: 127.0.0.1:9100
  request_timeout: 2s
manager:
  concurrency: 4
  timeout: 1500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/service", cfg.ServiceDir)
	assert.Equal(t, []string{"web", "db"}, cfg.Services)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/svctl.log", cfg.Log.File)
	assert.True(t, cfg.Log.Compress)
	assert.Equal(t, logger.DefaultMaxBackups, cfg.Log.MaxBackups)
	assert.Equal(t, "127.0.0.1:9100", cfg.HTTP.Listen)
	assert.Equal(t, 2*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, 4, cfg.Manager.Concurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.Manager.Timeout)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "svctl.toml", `
service_dir = "/service"
services = ["sshd"]

[manager]
concurrency = 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/service", cfg.ServiceDir)
	assert.Equal(t, []string{"sshd"}, cfg.Services)
	assert.Equal(t, 2, cfg.Manager.Concurrency)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SERVICE_DIR", "/run/service")
	t.Setenv("SUPERVISE_LOG_LEVEL", "warn")
	t.Setenv("SUPERVISE_MANAGER_CONCURRENCY", "3")
	t.Setenv("SUPERVISE_SERVICES", "a,b")

	path := writeFile(t, "svctl.yaml", "service_dir: /etc/service\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/run/service", cfg.ServiceDir, "env wins over file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Manager.Concurrency)
	assert.Equal(t, []string{"a", "b"}, cfg.Services)
}

func TestLoadPrefixedServiceDir(t *testing.T) {
	t.Setenv("SUPERVISE_SERVICE_DIR", "/opt/service")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/service", cfg.ServiceDir)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad level", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "log:\n  level: loud\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "log.level")
	})

	t.Run("bad concurrency", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "manager:\n  concurrency: 0\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "manager.concurrency")
	})

	t.Run("empty service name", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "services: [web, '']\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "services[1]")
	})

	t.Run("duplicate service name", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "services: [web, db, web]\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, `services[2] "web" duplicates services[0]`)
	})

	t.Run("negative timeouts", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "manager:\n  timeout: -1s\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "manager.timeout")

		path = writeFile(t, "d.yaml", "http:\n  request_timeout: -1s\n")
		_, err = Load(path)
		assert.ErrorContains(t, err, "http timeouts")
	})
}

func TestConfigHelpers(t *testing.T) {
	cfg := &Config{
		ServiceDir: "/etc/service",
		Log:        LogConfig{Level: "info", File: "x.log", MaxBackups: 7},
		Manager:    ManagerConfig{Concurrency: 2, Timeout: time.Second},
	}

	assert.Equal(t, supervise.Config{BaseDir: "/etc/service"}, cfg.Supervise())

	mgr := cfg.NewManager()
	assert.Equal(t, 2, mgr.Concurrency)
	assert.Equal(t, time.Second, mgr.Timeout)
	assert.Equal(t, "/etc/service", mgr.Config.BaseDir)

	fc := cfg.LogFile()
	assert.Equal(t, "x.log", fc.Path)
	assert.Equal(t, 7, fc.MaxBackups)
}
