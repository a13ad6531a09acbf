package supervise

import (
	"context"
	"slices"
)

// Wait blocks until the service reaches one of the given states, and
// returns the record that matched. The current record counts, so Wait
// returns at once if the service is already in one of the states. With no
// states, Wait returns on the first change after the call.
//
// Example:
//
//	// Wait for any change
//	rec, err := svc.Wait(ctx)
//
//	// Wait for the process to come up
//	rec, err := svc.Wait(ctx, StateUp)
func (s *Service) Wait(ctx context.Context, states ...State) (Record, error) {
	events, cleanup, err := s.Watch(ctx)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = cleanup() }()

	initial := true
	for {
		select {
		case event, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return Record{}, err
				}
				return Record{}, ErrWatchClosed
			}
			if event.Err != nil {
				return Record{}, event.Err
			}

			if len(states) == 0 {
				if initial {
					initial = false
					continue
				}
				return event.Record, nil
			}
			if slices.Contains(states, event.Record.State()) {
				return event.Record, nil
			}

		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
}
