package httpserver

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/config"
	"github.com/axondata/go-supervise/internal/httpserver/deps"
	"github.com/axondata/go-supervise/internal/logger"
	"github.com/axondata/go-supervise/internal/metrics"
)

type fixture struct {
	base string
	srv  *httptest.Server
}

// addService creates a service directory with a regular control file
func (f *fixture) addService(t *testing.T, name string, status []byte) {
	t.Helper()
	dir := filepath.Join(f.base, name, supervise.SuperviseDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, supervise.ControlFile), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, supervise.StatusFile), status, 0o644))
}

func (f *fixture) lastCommand(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.base, name, supervise.SuperviseDir, supervise.ControlFile))
	require.NoError(t, err)
	return string(data)
}

func record(pid uint32, want byte) []byte {
	data := make([]byte, supervise.RecordSize)
	binary.BigEndian.PutUint64(data[0:8], uint64(time.Now().Unix())+supervise.EpochBias)
	binary.LittleEndian.PutUint32(data[12:16], pid)
	data[17] = want
	return data
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{base: t.TempDir()}
	f.addService(t, "web", record(321, 'u'))
	f.addService(t, "broken", make([]byte, 5))

	cfg := &config.Config{
		ServiceDir: f.base,
		Services:   []string{"web", "broken"},
		HTTP:       config.HTTPConfig{Listen: "127.0.0.1:0", RequestTimeout: 2 * time.Second},
		Manager:    config.ManagerConfig{Concurrency: 2, Timeout: time.Second},
	}
	mgr := cfg.NewManager()
	log := logger.Nop()

	d := deps.Deps{
		Logger:    log,
		StartTime: time.Now(),
		Version:   supervise.Version,
		Manager:   mgr,
		Services:  cfg.Services,
		Metrics:   metrics.Handler(metrics.NewRegistry(metrics.NewCollector(mgr, cfg.Services, time.Second, log))),
	}

	f.srv = httptest.NewServer(New(cfg, log, d).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, supervise.Version, body["version"])
}

func TestServiceStatus(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/services/web/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", body["status"])
	assert.Equal(t, float64(321), body["pid"])
	assert.Nil(t, body["action"])
}

func TestServiceStatusErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path string
		code int
	}{
		{"/api/services/missing/status", http.StatusNotFound},
		{"/api/services/broken/status", http.StatusBadGateway},
	}
	for _, tt := range tests {
		resp, _ := f.do(t, http.MethodGet, tt.path)
		assert.Equal(t, tt.code, resp.StatusCode, tt.path)
	}
}

func TestServiceControl(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/services/web/term")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "web", body["service"])
	assert.Equal(t, "term", body["op"])
	assert.Equal(t, "t", f.lastCommand(t, "web"))

	resp, _ = f.do(t, http.MethodPost, "/api/services/web/start")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "u", f.lastCommand(t, "web"))

	resp, body = f.do(t, http.MethodPost, "/api/services/web/restart")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown operation")

	resp, _ = f.do(t, http.MethodPost, "/api/services/missing/up")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServiceList(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/services")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	services, ok := body["services"].(map[string]any)
	require.True(t, ok, "services = %v", body["services"])
	assert.Contains(t, services, "web")
	assert.NotContains(t, services, "broken")

	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t)

	resp, err := f.srv.Client().Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartStop(t *testing.T) {
	cfg := &config.Config{HTTP: config.HTTPConfig{Listen: "127.0.0.1:0"}}
	s := New(cfg, logger.Nop(), deps.Deps{StartTime: time.Now(), Manager: supervise.NewManager()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.NoError(t, <-done)
}

func TestStartBadAddress(t *testing.T) {
	cfg := &config.Config{HTTP: config.HTTPConfig{Listen: "127.0.0.1:-1"}}
	s := New(cfg, logger.Nop(), deps.Deps{Manager: supervise.NewManager()})
	assert.Error(t, s.Start())
}
