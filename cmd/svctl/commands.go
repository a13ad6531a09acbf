package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/logger"
)

var errNoServices = errors.New("no services given and none configured")

// services returns args, or the configured services when args is empty
func (a *app) services(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(a.cfg.Services) > 0 {
		return a.cfg.Services, nil
	}
	return nil, errNoServices
}

// createStatusCommand creates the status subcommand
func createStatusCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status [service...]",
		Short: "Show service status",
		Long: `Read and decode the status record of each service. With no arguments
the services listed in the config file are shown.

Examples:
  svctl status web
  svctl status -o yaml web db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			names, err := a.services(args)
			if err != nil {
				return err
			}

			records, err := a.cfg.NewManager().Status(cmd.Context(), names...)
			if perr := printRecords(cmd.OutOrStdout(), format, names, records); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", formatText, "output format: text, json or yaml")
	return cmd
}

// createOperationCommands creates one subcommand per control operation
func createOperationCommands(a *app) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(supervise.ControlOperations))
	for _, op := range supervise.ControlOperations {
		cmds = append(cmds, &cobra.Command{
			Use:     op.String() + " service...",
			Aliases: op.Aliases(),
			Short:   fmt.Sprintf("Send %q to the services' control pipe", op.Byte()),
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := a.cfg.NewManager().Send(cmd.Context(), op, args...)
				if err != nil {
					return err
				}
				a.log.Debug("control command sent",
					logger.String("op", op.String()),
					logger.String("services", strings.Join(args, ",")))
				return nil
			},
		})
	}
	return cmds
}

// createSendCommand creates the send subcommand
func createSendCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "send service command",
		Short: "Send a named command or a raw control byte",
		Long: `Send one command to a service. The command is an operation name or
alias (start, stop, hangup, ...); with --raw it is a single byte written
to the control pipe unchecked.

Examples:
  svctl send web hangup
  svctl send --raw web x`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := supervise.New(args[0], supervise.WithConfig(a.cfg.Supervise()))
			if err != nil {
				return err
			}

			if raw {
				if len(args[1]) != 1 {
					return fmt.Errorf("raw command must be exactly one byte, got %q", args[1])
				}
				return svc.SendByte(cmd.Context(), args[1][0])
			}

			op, err := supervise.ParseOperation(args[1])
			if err != nil {
				return err
			}
			return svc.Send(cmd.Context(), op)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "send the command as a raw byte")
	return cmd
}

// createMarkDownCommand creates the mark-down subcommand
func createMarkDownCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-down service...",
		Short: "Create the down marker so services stay down when supervised",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachService(cmd, args, supervise.ServiceClient.MarkDown)
		},
	}
}

// createMarkUpCommand creates the mark-up subcommand
func createMarkUpCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-up service...",
		Short: "Remove the down marker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.eachService(cmd, args, supervise.ServiceClient.MarkUp)
		},
	}
}

// eachService applies fn to every named service, collecting failures
func (a *app) eachService(cmd *cobra.Command, names []string, fn func(supervise.ServiceClient, context.Context) error) error {
	merr := &supervise.MultiError{}
	for _, name := range names {
		svc, err := supervise.New(name, supervise.WithConfig(a.cfg.Supervise()))
		if err != nil {
			merr.Add(err)
			continue
		}
		merr.Add(fn(svc, cmd.Context()))
	}
	return merr.Err()
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := supervise.GetVersion()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "svctl %s (protocol %s, record sizes %v)\n",
				info.Version, info.Protocol, info.RecordSizes)
			return err
		},
	}
}
