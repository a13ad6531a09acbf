package supervise

import (
	"context"
)

// ServiceClient is the interface *Service implements. Bulk helpers and
// the HTTP layer depend on it rather than on the concrete type.
type ServiceClient interface {
	// Basic operations
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) (Record, error)
	Send(ctx context.Context, op Operation) error
	SendByte(ctx context.Context, cmd byte) error

	// Signal operations
	Term(ctx context.Context) error
	Kill(ctx context.Context) error
	HUP(ctx context.Context) error
	Alarm(ctx context.Context) error
	Interrupt(ctx context.Context) error
	Quit(ctx context.Context) error
	USR1(ctx context.Context) error
	USR2(ctx context.Context) error

	// Control operations
	Once(ctx context.Context) error
	Pause(ctx context.Context) error
	Continue(ctx context.Context) error
	Exit(ctx context.Context) error

	// Aliases
	Start(ctx context.Context) error // Alias for Up
	Stop(ctx context.Context) error  // Alias for Down

	// Down marker
	NormallyUp(ctx context.Context) (bool, error)
	MarkDown(ctx context.Context) error
	MarkUp(ctx context.Context) error

	// Watch monitors the service's status for changes
	// Returns a channel of events and a stop function
	Watch(ctx context.Context) (<-chan WatchEvent, WatchCleanupFunc, error)

	// Wait blocks until the service reaches one of the specified states
	// If states is empty, waits for any status change
	Wait(ctx context.Context, states ...State) (Record, error)
}
