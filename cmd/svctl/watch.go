package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/logger"
)

// createWatchCommand creates the watch subcommand
func createWatchCommand(a *app) *cobra.Command {
	var (
		format   string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch service",
		Short: "Print the service status every time it changes",
		Long: `Print the current status, then a new line each time the status record
or the down marker changes. Runs until interrupted.

Examples:
  svctl watch web
  svctl watch -o json web`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			svc, err := supervise.New(args[0],
				supervise.WithConfig(a.cfg.Supervise()),
				supervise.WithWatchDebounce(debounce))
			if err != nil {
				return err
			}

			events, cleanup, err := svc.Watch(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			for {
				select {
				case <-cmd.Context().Done():
					return ignoreCancel(cmd.Context().Err())
				case ev, ok := <-events:
					if !ok {
						return ignoreCancel(cmd.Context().Err())
					}
					if ev.Err != nil {
						a.log.Warn("watch error", logger.String("service", args[0]), logger.Error(ev.Err))
						continue
					}
					if err := printEvent(cmd.OutOrStdout(), format, args[0], ev.Record); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatText, "output format: text, json or yaml")
	cmd.Flags().DurationVar(&debounce, "debounce", supervise.DefaultWatchDebounce, "time to let a burst of changes settle")
	return cmd
}

// createWaitCommand creates the wait subcommand
func createWaitCommand(a *app) *cobra.Command {
	var (
		states  []string
		timeout time.Duration
		format  string
	)

	cmd := &cobra.Command{
		Use:   "wait service",
		Short: "Block until the service reaches a state",
		Long: `Block until the service is in one of the given states and print its
status. With no --state, wait for the next change of any kind.

Examples:
  svctl wait --state up web
  svctl wait --state down,finish --timeout 30s web`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			want, err := parseStates(states)
			if err != nil {
				return err
			}
			svc, err := supervise.New(args[0], supervise.WithConfig(a.cfg.Supervise()))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			rec, err := svc.Wait(ctx, want...)
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%s: timed out after %s", args[0], timeout)
			}
			if err != nil {
				return err
			}
			return printEvent(cmd.OutOrStdout(), format, args[0], rec)
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "states to wait for: up, down, finish")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")
	cmd.Flags().StringVarP(&format, "output", "o", formatText, "output format: text, json or yaml")
	return cmd
}

func parseStates(names []string) ([]supervise.State, error) {
	out := make([]supervise.State, 0, len(names))
	for _, name := range names {
		s, err := supervise.ParseState(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
