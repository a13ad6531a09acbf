package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/logger"
)

const namespace = "supervise"

var (
	stateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "service", "state"),
		"Current state of the service; 1 for the active state label, 0 otherwise",
		[]string{"service", "state"}, nil,
	)
	pidDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "service", "pid"),
		"Process id of the supervised process, 0 when none",
		[]string{"service"}, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "service", "uptime_seconds"),
		"Seconds since the service last changed state",
		[]string{"service"}, nil,
	)
	normallyUpDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "service", "normally_up"),
		"1 when the service has no down marker",
		[]string{"service"}, nil,
	)
)

var states = []supervise.State{supervise.StateDown, supervise.StateUp, supervise.StateFinish}

// Collector reads the status of a fixed set of services on every scrape
type Collector struct {
	mgr      *supervise.Manager
	services []string
	timeout  time.Duration
	log      logger.Logger

	readErrors *prometheus.CounterVec
}

// NewCollector returns a collector for services. Repeated names are
// collected once. timeout bounds a whole scrape; zero means no bound beyond
// the manager's own.
func NewCollector(mgr *supervise.Manager, services []string, timeout time.Duration, log logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{
		mgr:      mgr,
		services: uniq(services),
		timeout:  timeout,
		log:      log,
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_read_errors_total",
			Help:      "Failed status reads, by service",
		}, []string{"service"}),
	}
}

// uniq returns names with later repeats dropped, keeping first-seen order
func uniq(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- stateDesc
	ch <- pidDesc
	ch <- uptimeDesc
	ch <- normallyUpDesc
	c.readErrors.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	records, err := c.mgr.Status(ctx, c.services...)
	if err != nil {
		c.log.Warn("status scrape incomplete", logger.Error(err))
	}

	for _, name := range c.services {
		rec, ok := records[name]
		if !ok {
			c.readErrors.WithLabelValues(name).Inc()
			continue
		}
		c.collectRecord(ch, name, rec)
	}

	c.readErrors.Collect(ch)
}

func (c *Collector) collectRecord(ch chan<- prometheus.Metric, name string, rec supervise.Record) {
	for _, s := range states {
		v := 0.0
		if rec.State() == s {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, v, name, s.String())
	}

	pid, _ := rec.PID()
	ch <- prometheus.MustNewConstMetric(pidDesc, prometheus.GaugeValue, float64(pid), name)
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, float64(rec.UptimeSeconds()), name)

	up := 0.0
	if rec.NormallyUp() {
		up = 1
	}
	ch <- prometheus.MustNewConstMetric(normallyUpDesc, prometheus.GaugeValue, up, name)
}

// NewRegistry returns a registry holding c plus the Go runtime and process collectors
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics gathered by reg
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
