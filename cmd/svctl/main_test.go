package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/axondata/go-supervise"
)

// newServiceDir creates <base>/<name> with a regular control file and a
// 20-byte status record
func newServiceDir(t *testing.T, base, name string, pid uint32, want byte) string {
	t.Helper()
	dir := filepath.Join(base, name, supervise.SuperviseDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, supervise.ControlFile), nil, 0o644))

	data := make([]byte, supervise.RecordSize)
	binary.BigEndian.PutUint64(data[0:8], uint64(time.Now().Unix())+supervise.EpochBias)
	binary.LittleEndian.PutUint32(data[12:16], pid)
	data[17] = want
	require.NoError(t, os.WriteFile(filepath.Join(dir, supervise.StatusFile), data, 0o644))
	return filepath.Join(base, name)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func controlByte(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, supervise.SuperviseDir, supervise.ControlFile))
	require.NoError(t, err)
	return string(data)
}

func TestHelp(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "svctl")
	assert.Contains(t, out, "status")
	assert.Contains(t, out, "hup")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, supervise.Version)
}

func TestStatusText(t *testing.T) {
	base := t.TempDir()
	newServiceDir(t, base, "web", 1234, 'u')
	newServiceDir(t, base, "db", 0, 'd')

	out, err := run(t, "--service-dir", base, "status", "web", "db")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "web: up (pid 1234)"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "db: down"), lines[1])
}

func TestStatusJSON(t *testing.T) {
	base := t.TempDir()
	newServiceDir(t, base, "web", 77, 'u')

	out, err := run(t, "-d", base, "status", "-o", "json", "web")
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "up", got["web"]["status"])
	assert.Equal(t, float64(77), got["web"]["pid"])
}

func TestStatusYAML(t *testing.T) {
	base := t.TempDir()
	newServiceDir(t, base, "web", 77, 'u')

	out, err := run(t, "-d", base, "status", "-o", "yaml", "web")
	require.NoError(t, err)

	var got map[string]map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "up", got["web"]["status"])
	assert.Equal(t, 77, got["web"]["pid"])
}

func TestStatusErrors(t *testing.T) {
	base := t.TempDir()

	_, err := run(t, "-d", base, "status", "-o", "xml", "web")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = run(t, "-d", base, "status")
	assert.ErrorIs(t, err, errNoServices)

	_, err = run(t, "-d", base, "status", "missing")
	assert.Error(t, err)
}

func TestStatusFromConfig(t *testing.T) {
	base := t.TempDir()
	newServiceDir(t, base, "web", 5, 'u')

	cfgPath := filepath.Join(t.TempDir(), "svctl.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("service_dir: "+base+"\nservices: [web]\n"), 0o644))

	out, err := run(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "web: up (pid 5)")
}

func TestOperationCommands(t *testing.T) {
	base := t.TempDir()
	web := newServiceDir(t, base, "web", 1, 'u')
	db := newServiceDir(t, base, "db", 1, 'u')

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"term", "web", "db"}, "t"},
		{[]string{"stop", "web", "db"}, "d"},
		{[]string{"start", "web", "db"}, "u"},
		{[]string{"hangup", "web", "db"}, "h"},
		{[]string{"usr2", "web", "db"}, "2"},
	}
	for _, tt := range tests {
		_, err := run(t, append([]string{"-d", base}, tt.args...)...)
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, controlByte(t, web), tt.args)
		assert.Equal(t, tt.want, controlByte(t, db), tt.args)
	}

	_, err := run(t, "-d", base, "kill")
	assert.Error(t, err, "operation commands need a service")
}

func TestSend(t *testing.T) {
	base := t.TempDir()
	web := newServiceDir(t, base, "web", 1, 'u')

	_, err := run(t, "-d", base, "send", "web", "interrupt")
	require.NoError(t, err)
	assert.Equal(t, "i", controlByte(t, web))

	_, err = run(t, "-d", base, "send", "--raw", "web", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", controlByte(t, web))

	_, err = run(t, "-d", base, "send", "--raw", "web", "xy")
	assert.ErrorContains(t, err, "exactly one byte")

	_, err = run(t, "-d", base, "send", "web", "restart")
	assert.ErrorIs(t, err, supervise.ErrUnknownOperation)
}

func TestMarkers(t *testing.T) {
	base := t.TempDir()
	web := newServiceDir(t, base, "web", 1, 'u')
	down := filepath.Join(web, supervise.DownFile)

	_, err := run(t, "-d", base, "mark-down", "web")
	require.NoError(t, err)
	assert.FileExists(t, down)

	out, err := run(t, "-d", base, "status", "web")
	require.NoError(t, err)
	assert.Contains(t, out, "normally down")

	_, err = run(t, "-d", base, "mark-up", "web")
	require.NoError(t, err)
	assert.NoFileExists(t, down)
}

func TestWaitCurrentState(t *testing.T) {
	base := t.TempDir()
	newServiceDir(t, base, "web", 9, 'u')

	out, err := run(t, "-d", base, "wait", "--state", "up", "--timeout", "5s", "web")
	require.NoError(t, err)
	assert.Contains(t, out, "web: up (pid 9)")
}

func TestWaitTimeout(t *testing.T) {
	base := t.TempDir()
	newServiceDir(t, base, "web", 9, 'u')

	_, err := run(t, "-d", base, "wait", "--state", "finish", "--timeout", "100ms", "web")
	assert.ErrorContains(t, err, "timed out")

	_, err = run(t, "-d", base, "wait", "--state", "sleeping", "web")
	assert.Error(t, err)
}

func TestBadLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "version")
	assert.ErrorContains(t, err, "log.level")
}
