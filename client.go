package supervise

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/axondata/go-supervise/internal/unix"
)

// DefaultWatchDebounce is the default time Watch waits for a burst of
// file events to settle before re-reading the status
const DefaultWatchDebounce = 25 * time.Millisecond

// Config is the configuration shared by every Service of an application.
// It is resolved once at startup by the caller; the package never reads
// the environment itself.
type Config struct {
	// BaseDir is the directory relative service names are resolved under.
	// Empty means DefaultServiceDir.
	BaseDir string
}

type options struct {
	baseDir       string
	now           func() time.Time
	watchDebounce time.Duration
}

// Option configures a Service
type Option func(*options)

// WithConfig applies a shared Config
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.BaseDir != "" {
			o.baseDir = cfg.BaseDir
		}
	}
}

// WithBaseDir sets the directory relative service names are resolved under
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

// WithClock sets the clock uptime is measured against
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithWatchDebounce sets the debounce duration for watch events
func WithWatchDebounce(d time.Duration) Option {
	return func(o *options) {
		o.watchDebounce = d
	}
}

// Service controls a single supervised service through its control FIFO
// and reads its binary status record. It holds only the paths derived at
// construction; all methods are safe for concurrent use and no locking is
// done, the supervisor being the sole owner of the service's state.
type Service struct {
	dir         string
	controlPath string
	statusPath  string
	downPath    string

	now           func() time.Time
	watchDebounce time.Duration
}

// New creates a Service. An absolute name is used verbatim as the service
// directory; a relative one is joined under the configured base directory.
// No file is touched.
func New(name string, opts ...Option) (*Service, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	o := options{
		baseDir:       DefaultServiceDir,
		now:           time.Now,
		watchDebounce: DefaultWatchDebounce,
	}
	for _, opt := range opts {
		opt(&o)
	}

	dir := name
	if !filepath.IsAbs(name) {
		dir = filepath.Join(o.baseDir, name)
	}

	return &Service{
		dir:           dir,
		controlPath:   filepath.Join(dir, SuperviseDir, ControlFile),
		statusPath:    filepath.Join(dir, SuperviseDir, StatusFile),
		downPath:      filepath.Join(dir, DownFile),
		now:           o.now,
		watchDebounce: o.watchDebounce,
	}, nil
}

// Dir returns the service directory
func (s *Service) Dir() string { return s.dir }

// ControlPath returns the path of the control FIFO
func (s *Service) ControlPath() string { return s.controlPath }

// StatusPath returns the path of the status record
func (s *Service) StatusPath() string { return s.statusPath }

// DownPath returns the path of the down marker
func (s *Service) DownPath() string { return s.downPath }

// Send writes the control byte of op. A nil error only means the byte
// reached the control channel, not that the supervisor acted on it.
func (s *Service) Send(ctx context.Context, op Operation) error {
	cmd := op.Byte()
	if cmd == 0 {
		return &OpError{Op: op, Path: s.controlPath, Err: ErrUnknownOperation}
	}
	return s.write(ctx, op, cmd)
}

// SendByte writes an arbitrary control byte. It is not validated.
func (s *Service) SendByte(ctx context.Context, cmd byte) error {
	return s.write(ctx, operationForByte(cmd), cmd)
}

// write opens the control FIFO, writes exactly one byte and closes it.
// The open is non-blocking so a FIFO nobody reads fails immediately.
func (s *Service) write(ctx context.Context, op Operation, cmd byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.OpenFile(s.controlPath, os.O_WRONLY|unix.ONonblock, 0)
	if err != nil {
		return &OpError{Op: op, Path: s.controlPath, Err: err}
	}

	_, err = file.Write([]byte{cmd})
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &OpError{Op: op, Path: s.controlPath, Err: err}
	}
	return nil
}

func operationForByte(cmd byte) Operation {
	for _, op := range ControlOperations {
		if op.Byte() == cmd {
			return op
		}
	}
	return OpUnknown
}

// Up starts the service and restarts it whenever it stops
func (s *Service) Up(ctx context.Context) error {
	return s.Send(ctx, OpUp)
}

// Start is an alias for Up
func (s *Service) Start(ctx context.Context) error {
	return s.Up(ctx)
}

// Down stops the service and does not restart it
func (s *Service) Down(ctx context.Context) error {
	return s.Send(ctx, OpDown)
}

// Stop is an alias for Down
func (s *Service) Stop(ctx context.Context) error {
	return s.Down(ctx)
}

// Once starts the service but does not restart it if it stops
func (s *Service) Once(ctx context.Context) error {
	return s.Send(ctx, OpOnce)
}

// Pause sends SIGSTOP to the service process
func (s *Service) Pause(ctx context.Context) error {
	return s.Send(ctx, OpPause)
}

// Continue sends SIGCONT to the service process
func (s *Service) Continue(ctx context.Context) error {
	return s.Send(ctx, OpCont)
}

// Alarm sends SIGALRM to the service process
func (s *Service) Alarm(ctx context.Context) error {
	return s.Send(ctx, OpAlarm)
}

// Term sends SIGTERM to the service process
func (s *Service) Term(ctx context.Context) error {
	return s.Send(ctx, OpTerm)
}

// Interrupt sends SIGINT to the service process
func (s *Service) Interrupt(ctx context.Context) error {
	return s.Send(ctx, OpInterrupt)
}

// HUP sends SIGHUP to the service process
func (s *Service) HUP(ctx context.Context) error {
	return s.Send(ctx, OpHUP)
}

// Quit sends SIGQUIT to the service process
func (s *Service) Quit(ctx context.Context) error {
	return s.Send(ctx, OpQuit)
}

// Kill sends SIGKILL to the service process
func (s *Service) Kill(ctx context.Context) error {
	return s.Send(ctx, OpKill)
}

// USR1 sends SIGUSR1 to the service process
func (s *Service) USR1(ctx context.Context) error {
	return s.Send(ctx, OpUSR1)
}

// USR2 sends SIGUSR2 to the service process
func (s *Service) USR2(ctx context.Context) error {
	return s.Send(ctx, OpUSR2)
}

// Exit makes the supervisor exit once the service is down
func (s *Service) Exit(ctx context.Context) error {
	return s.Send(ctx, OpExit)
}

// Status reads the status record (at most RecordSize bytes), probes the
// down marker and decodes both into a Record.
func (s *Service) Status(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	var buf [RecordSize]byte
	n, err := s.readStatus(buf[:])
	if err != nil {
		return Record{}, err
	}

	normallyUp, err := s.NormallyUp(ctx)
	if err != nil {
		return Record{}, err
	}

	rec, err := DecodeStatus(buf[:n], normallyUp, s.now())
	if err != nil {
		return Record{}, &OpError{Op: OpStatus, Path: s.statusPath, Err: err}
	}
	return rec, nil
}

func (s *Service) readStatus(buf []byte) (int, error) {
	file, err := os.Open(s.statusPath)
	if err != nil {
		return 0, &OpError{Op: OpStatus, Path: s.statusPath, Err: err}
	}
	defer func() { _ = file.Close() }()

	// A short file is left for the decoder to reject by length
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, &OpError{Op: OpStatus, Path: s.statusPath, Err: err}
	}
	return n, nil
}

// NormallyUp reports whether the down marker is absent. A missing marker
// is the common case and not an error; any other stat failure is.
func (s *Service) NormallyUp(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(s.downPath)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	default:
		return false, &OpError{Op: OpStatus, Path: s.downPath, Err: err}
	}
}

// MarkDown creates the down marker so the supervisor keeps the service
// down when it (re)starts. The marker is written atomically.
func (s *Service) MarkDown(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := renameio.WriteFile(s.downPath, nil, FileMode); err != nil {
		return &OpError{Op: OpMark, Path: s.downPath, Err: err}
	}
	return nil
}

// MarkUp removes the down marker. A missing marker is not an error.
func (s *Service) MarkUp(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.downPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &OpError{Op: OpMark, Path: s.downPath, Err: err}
	}
	return nil
}

// IsSupervisorDown reports whether err came from a control FIFO that has
// no reader, which means the supervisor for the service is not running.
func IsSupervisorDown(err error) bool {
	return unix.IsNoReader(err)
}

// Ensure Service implements ServiceClient
var _ ServiceClient = (*Service)(nil)
