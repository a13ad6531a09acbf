package supervise

import (
	"context"
	"sync"
	"time"
)

// Manager handles operations on multiple services concurrently.
// It provides bulk operations with configurable concurrency and timeouts.
type Manager struct {
	// Concurrency is the maximum number of concurrent operations
	Concurrency int
	// Timeout is the per-operation timeout
	Timeout time.Duration
	// Config resolves the service names passed to each operation
	Config Config
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithConcurrency sets the maximum number of concurrent operations
func WithConcurrency(n int) ManagerOption {
	return func(m *Manager) {
		m.Concurrency = n
	}
}

// WithTimeout sets the per-operation timeout
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.Timeout = d
	}
}

// WithManagerConfig sets the Config used to resolve service names
func WithManagerConfig(cfg Config) ManagerOption {
	return func(m *Manager) {
		m.Config = cfg
	}
}

// NewManager creates a new Manager with default settings
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		Concurrency: 10,
		Timeout:     5 * time.Second,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.Concurrency < 1 {
		m.Concurrency = 1
	}

	return m
}

// Service resolves a single name with the manager's Config
func (m *Manager) Service(name string) (*Service, error) {
	return New(name, WithConfig(m.Config))
}

// execute runs op once per service with at most Concurrency in flight.
// Every failure is collected; one service failing does not stop the rest.
func (m *Manager) execute(ctx context.Context, services []string, op func(context.Context, string, ServiceClient) error) error {
	if len(services) == 0 {
		return nil
	}

	// Semaphore for concurrency control
	sem := make(chan struct{}, m.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	merr := &MultiError{}

	for _, service := range services {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			// Acquire semaphore slot
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				merr.Add(ctx.Err())
				mu.Unlock()
				return
			}

			svc, err := m.Service(name)
			if err != nil {
				mu.Lock()
				merr.Add(&OpError{Op: OpUnknown, Path: name, Err: err})
				mu.Unlock()
				return
			}

			opCtx := ctx
			if m.Timeout > 0 {
				var cancel context.CancelFunc
				opCtx, cancel = context.WithTimeout(ctx, m.Timeout)
				defer cancel()
			}

			if err := op(opCtx, name, svc); err != nil {
				mu.Lock()
				merr.Add(err)
				mu.Unlock()
			}
		}(service)
	}

	wg.Wait()

	return merr.Err()
}

// Send writes the control byte of op to every service
func (m *Manager) Send(ctx context.Context, op Operation, services ...string) error {
	return m.execute(ctx, services, func(ctx context.Context, _ string, c ServiceClient) error {
		return c.Send(ctx, op)
	})
}

// Up starts the specified services
func (m *Manager) Up(ctx context.Context, services ...string) error {
	return m.Send(ctx, OpUp, services...)
}

// Down stops the specified services
func (m *Manager) Down(ctx context.Context, services ...string) error {
	return m.Send(ctx, OpDown, services...)
}

// Term sends SIGTERM to the specified services
func (m *Manager) Term(ctx context.Context, services ...string) error {
	return m.Send(ctx, OpTerm, services...)
}

// Kill sends SIGKILL to the specified services
func (m *Manager) Kill(ctx context.Context, services ...string) error {
	return m.Send(ctx, OpKill, services...)
}

// Status reads the records of the specified services, keyed by the name
// they were requested with. Services that failed are absent from the map
// and reported in the returned *MultiError.
func (m *Manager) Status(ctx context.Context, services ...string) (map[string]Record, error) {
	results := make(map[string]Record, len(services))
	var mu sync.Mutex

	err := m.execute(ctx, services, func(ctx context.Context, name string, c ServiceClient) error {
		rec, err := c.Status(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		results[name] = rec
		mu.Unlock()
		return nil
	})

	return results, err
}
