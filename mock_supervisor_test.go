package supervise

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/renameio/v2"
)

// fixedNow is the clock every decode test measures uptime against
var fixedNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return fixedNow }

type statusOption func([]byte)

// withPaused sets the paused flag
func withPaused() statusOption {
	return func(b []byte) { b[offsetPaused] = 1 }
}

// withTerm sets the term flag; it is dropped from 18-byte records
func withTerm() statusOption {
	return func(b []byte) {
		if len(b) == RecordSize {
			b[offsetTerm] = 1
		}
	}
}

// withFinish sets the finish flag; it is dropped from 18-byte records
func withFinish(v byte) statusOption {
	return func(b []byte) {
		if len(b) == RecordSize {
			b[offsetFinish] = v
		}
	}
}

// withAge stamps the record d before fixedNow (after it when d is negative)
func withAge(d time.Duration) statusOption {
	return func(b []byte) {
		sec := uint64(fixedNow.Add(-d).Unix()) + EpochBias
		binary.BigEndian.PutUint64(b[offsetSeconds:offsetNanos], sec)
	}
}

// makeStatusData builds a status record of the given size the way the
// supervisor writes it: big-endian timestamp, pid in reversed order.
// The timestamp defaults to fixedNow.
func makeStatusData(size int, pid uint32, want byte, opts ...statusOption) []byte {
	data := make([]byte, size)

	binary.BigEndian.PutUint64(data[offsetSeconds:offsetNanos], uint64(fixedNow.Unix())+EpochBias)
	binary.BigEndian.PutUint32(data[offsetNanos:offsetPID], 500)
	binary.LittleEndian.PutUint32(data[offsetPID:offsetPaused], pid)
	data[offsetWant] = want

	for _, opt := range opts {
		opt(data)
	}
	return data
}

// MockSupervisor lays out a service directory the way a supervisor would,
// so tests run without one. The control file is a regular file.
type MockSupervisor struct {
	ServiceDir   string
	SuperviseDir string
	ControlFile  string
	StatusFile   string
	DownFile     string
}

// NewMockSupervisor creates <base>/<name> with a down record
func NewMockSupervisor(t *testing.T, base, name string) *MockSupervisor {
	t.Helper()

	dir := filepath.Join(base, name)
	m := &MockSupervisor{
		ServiceDir:   dir,
		SuperviseDir: filepath.Join(dir, SuperviseDir),
		ControlFile:  filepath.Join(dir, SuperviseDir, ControlFile),
		StatusFile:   filepath.Join(dir, SuperviseDir, StatusFile),
		DownFile:     filepath.Join(dir, DownFile),
	}

	if err := os.MkdirAll(m.SuperviseDir, 0o755); err != nil {
		t.Fatalf("creating supervise dir: %v", err)
	}
	if err := os.WriteFile(m.ControlFile, nil, 0o644); err != nil {
		t.Fatalf("creating control file: %v", err)
	}
	m.WriteStatus(t, makeStatusData(RecordSize, 0, wantDown))

	return m
}

// WriteStatus atomically replaces the status record
func (m *MockSupervisor) WriteStatus(t *testing.T, data []byte) {
	t.Helper()
	if err := renameio.WriteFile(m.StatusFile, data, 0o644); err != nil {
		t.Fatalf("writing status: %v", err)
	}
}

// SetDown creates or removes the down marker
func (m *MockSupervisor) SetDown(t *testing.T, down bool) {
	t.Helper()
	if down {
		if err := os.WriteFile(m.DownFile, nil, 0o644); err != nil {
			t.Fatalf("creating down marker: %v", err)
		}
		return
	}
	if err := os.Remove(m.DownFile); err != nil && !os.IsNotExist(err) {
		t.Fatalf("removing down marker: %v", err)
	}
}

// LastCommand returns the byte most recently written to the control file
func (m *MockSupervisor) LastCommand(t *testing.T) byte {
	t.Helper()
	data, err := os.ReadFile(m.ControlFile)
	if err != nil {
		t.Fatalf("reading control file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("control file is empty")
	}
	return data[0]
}
