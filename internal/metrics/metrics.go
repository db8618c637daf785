// ============================================================================
// plantrack metrics - Prometheus gauges for the plan dashboard
// ============================================================================
//
// Package: internal/metrics
//
// Gauges, one series per known machine (label "machine"):
//   - plantrack_machine_downtime_hours: recorded stoppage
//   - plantrack_machine_idle_hours: gaps between scheduled jobs
//   - plantrack_machine_total_loss_hours: downtime + idle
//   - plantrack_machine_capacity_percent: utilization, label "window" (week|month)
//   - plantrack_machine_active: 1 for the machine's current state, label "state"
//   - plantrack_machine_overdue_jobs: jobs ending after their due date
//
// Plan level:
//   - plantrack_plan_jobs_total
//   - plantrack_plan_unparseable_spans
//   - plantrack_plan_loads_total / plantrack_plan_maintenance_total (counters)
//   - plantrack_view_build_seconds (histogram)
//
// There is no HTTP listener. WriteTextfile emits the node-exporter textfile
// format so a collector can pick the readings up from disk.
// ============================================================================

package metrics

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "plantrack"

// States reported through the active gauge.
var States = []string{"idle", "production", "maintenance"}

// MachineReading is one machine's figures for a dashboard view.
type MachineReading struct {
	MachineID      int
	DowntimeHours  float64
	IdleHours      float64
	TotalLossHours float64
	WeeklyPercent  int
	MonthlyPercent int
	State          string
	OverdueJobs    int
}

// Collector holds the plantrack metrics on a caller-owned registry.
type Collector struct {
	registry *prometheus.Registry

	downtime  *prometheus.GaugeVec
	idle      *prometheus.GaugeVec
	totalLoss *prometheus.GaugeVec
	capacity  *prometheus.GaugeVec
	active    *prometheus.GaugeVec
	overdue   *prometheus.GaugeVec

	planJobs    prometheus.Gauge
	unparseable prometheus.Gauge

	loads       prometheus.Counter
	maintenance prometheus.Counter
	viewBuild   prometheus.Histogram

	mu sync.Mutex
}

// NewCollector creates the metrics and registers them on reg. A nil reg gets
// a fresh registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	machine := []string{"machine"}

	c := &Collector{
		registry: reg,
		downtime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machine_downtime_hours",
			Help:      "Recorded machine stoppage in hours",
		}, machine),
		idle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machine_idle_hours",
			Help:      "Idle hours between consecutive scheduled jobs",
		}, machine),
		totalLoss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machine_total_loss_hours",
			Help:      "Recorded downtime plus idle hours",
		}, machine),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machine_capacity_percent",
			Help:      "Share of the calendar window covered by scheduled jobs",
		}, []string{"machine", "window"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machine_active",
			Help:      "1 for the machine's current state, 0 otherwise",
		}, []string{"machine", "state"}),
		overdue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "machine_overdue_jobs",
			Help:      "Jobs whose end is after their due date",
		}, machine),
		planJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plan_jobs_total",
			Help:      "Jobs in the current plan",
		}),
		unparseable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plan_unparseable_spans",
			Help:      "Jobs whose span cannot be drawn",
		}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_loads_total",
			Help:      "Plan replacements since start",
		}),
		maintenance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_maintenance_total",
			Help:      "Maintenance blocks added since start",
		}),
		viewBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_build_seconds",
			Help:      "Time to compute a dashboard view",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.downtime, c.idle, c.totalLoss, c.capacity, c.active, c.overdue,
		c.planJobs, c.unparseable, c.loads, c.maintenance, c.viewBuild,
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Update replaces all per-machine series with readings. Machines missing from
// readings disappear from the output.
func (c *Collector) Update(readings []MachineReading, jobs, unparseable int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range []*prometheus.GaugeVec{c.downtime, c.idle, c.totalLoss, c.capacity, c.active, c.overdue} {
		v.Reset()
	}

	for _, r := range readings {
		id := strconv.Itoa(r.MachineID)
		c.downtime.WithLabelValues(id).Set(r.DowntimeHours)
		c.idle.WithLabelValues(id).Set(r.IdleHours)
		c.totalLoss.WithLabelValues(id).Set(r.TotalLossHours)
		c.capacity.WithLabelValues(id, "week").Set(float64(r.WeeklyPercent))
		c.capacity.WithLabelValues(id, "month").Set(float64(r.MonthlyPercent))
		for _, s := range States {
			value := 0.0
			if s == r.State {
				value = 1
			}
			c.active.WithLabelValues(id, s).Set(value)
		}
		c.overdue.WithLabelValues(id).Set(float64(r.OverdueJobs))
	}

	c.planJobs.Set(float64(jobs))
	c.unparseable.Set(float64(unparseable))
}

// RecordLoad counts a plan replacement.
func (c *Collector) RecordLoad() {
	c.loads.Inc()
}

// RecordMaintenance counts an added maintenance block.
func (c *Collector) RecordMaintenance() {
	c.maintenance.Inc()
}

// ObserveViewBuild records how long a view took to compute.
func (c *Collector) ObserveViewBuild(seconds float64) {
	c.viewBuild.Observe(seconds)
}

// WriteTextfile writes every registered metric to path in the textfile
// collector format. The write goes through a temp file and rename.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
