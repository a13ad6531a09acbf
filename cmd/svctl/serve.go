package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/httpserver"
	"github.com/axondata/go-supervise/internal/httpserver/deps"
	"github.com/axondata/go-supervise/internal/logger"
	"github.com/axondata/go-supervise/internal/metrics"
)

// createServeCommand creates the serve subcommand
func createServeCommand(a *app) *cobra.Command {
	var noMetrics bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API and Prometheus metrics",
		Long: `Serve status and control endpoints for the services under the base
directory, and metrics for the configured services.

Endpoints:
  GET  /healthz
  GET  /api/services
  GET  /api/services/{name}/status
  POST /api/services/{name}/{op}
  GET  /metrics

Examples:
  svctl serve --listen :9100
  svctl --config /etc/svctl.yaml serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), !noMetrics)
		},
	}
	cmd.Flags().String("listen", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable /metrics")
	mustBind(a.v, "http.listen", cmd.Flags().Lookup("listen"))
	return cmd
}

func (a *app) serve(ctx context.Context, withMetrics bool) error {
	mgr := a.cfg.NewManager()

	d := deps.Deps{
		Logger:    a.log,
		StartTime: time.Now(),
		Version:   supervise.Version,
		Manager:   mgr,
		Services:  a.cfg.Services,
	}
	if withMetrics {
		collector := metrics.NewCollector(mgr, a.cfg.Services, a.cfg.HTTP.RequestTimeout, a.log)
		d.Metrics = metrics.Handler(metrics.NewRegistry(collector))
	}

	server := httpserver.New(a.cfg, a.log, d)
	a.log.Info("starting svctl serve",
		logger.String("version", supervise.Version),
		logger.String("service_dir", a.cfg.ServiceDir),
		logger.Int("services", len(a.cfg.Services)))

	ln, err := net.Listen("tcp", a.cfg.HTTP.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.HTTP.Listen, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// No-op unless started by systemd with Type=notify
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logger.Error(err))
	}

	select {
	case <-ctx.Done():
		a.log.Info("shutting down gracefully")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.log.Info("svctl serve stopped cleanly")
	return nil
}
