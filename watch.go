package supervise

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// WatchEvent represents a status change event from watching a service
type WatchEvent struct {
	Record Record
	Err    error
}

// WatchCleanupFunc stops a watch and waits for its goroutines to exit.
// The event channel is closed once it returns.
type WatchCleanupFunc func() error

// watchState is shared between the event loop and the debounce timer
type watchState struct {
	mu        sync.Mutex
	last      Record
	seen      bool
	closed    bool
	debouncer *time.Timer
}

// Watch monitors the status record and the down marker. The first event
// carries the current record; later events are sent only when the record
// bytes or the marker change. Read failures are delivered as events with
// Err set and do not end the watch.
func (s *Service) Watch(ctx context.Context) (<-chan WatchEvent, WatchCleanupFunc, error) {
	superviseDir := filepath.Join(s.dir, SuperviseDir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, &OpError{Op: OpStatus, Path: superviseDir, Err: err}
	}

	for _, dir := range []string{superviseDir, s.dir} {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, nil, &OpError{Op: OpStatus, Path: dir, Err: err}
		}
	}

	ch := make(chan WatchEvent, 10)
	state := &watchState{}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()

		state.mu.Lock()
		defer state.mu.Unlock()
		if state.debouncer != nil {
			state.debouncer.Stop()
		}
		state.closed = true
		close(ch)
	})

	// emit must be called with state.mu held
	emit := func(ev WatchEvent) {
		select {
		case ch <- ev:
		case <-sctx.Stopping():
		case <-ctx.Done():
		}
	}

	readAndSend := func() {
		state.mu.Lock()
		defer state.mu.Unlock()

		if state.closed || sctx.IsStopping() {
			return
		}

		rec, err := s.Status(ctx)
		if err != nil {
			emit(WatchEvent{Err: err})
			return
		}
		if state.seen && rec.sameAs(state.last) {
			return
		}
		state.seen = true
		state.last = rec
		emit(WatchEvent{Record: rec})
	}

	readAndSend()

	sctx.Go(func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil

			case <-ctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}

				switch filepath.Base(event.Name) {
				case StatusFile, DownFile:
				default:
					continue
				}

				state.mu.Lock()
				if !state.closed {
					if state.debouncer != nil {
						state.debouncer.Stop()
					}
					state.debouncer = time.AfterFunc(s.watchDebounce, readAndSend)
				}
				state.mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err == nil {
					continue
				}

				state.mu.Lock()
				if !state.closed {
					emit(WatchEvent{Err: &OpError{Op: OpStatus, Path: superviseDir, Err: err}})
				}
				state.mu.Unlock()
			}
		}
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	return ch, cleanup, nil
}
