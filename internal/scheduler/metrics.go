package scheduler

import (
	"time"

	"github.com/me/mcsched/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "mcsched"
	metricsSubsystem = "scheduler"
)

// Metrics holds the counters the core updates as it works. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	passes          prometheus.Counter
	assignments     prometheus.Counter
	timeouts        prometheus.Counter
	reconciliations prometheus.Counter
	completions     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	snapshots       *prometheus.CounterVec
	passDuration    prometheus.Histogram
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "passes_total",
			Help:      "Number of matching passes run.",
		}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "assignments_total",
			Help:      "Number of jobs assigned to a worker.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "worker_timeouts_total",
			Help:      "Number of workers demoted to UNKNOWN for missing heartbeats.",
		}),
		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "unassignments_total",
			Help:      "Number of jobs unassigned because their worker became unavailable.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "jobs_completed_total",
			Help:      "Number of jobs moved to history, by final state.",
		}, []string{"state"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rejected_operations_total",
			Help:      "Number of rejected client operations, by error kind.",
		}, []string{"kind"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "snapshot_saves_total",
			Help:      "Number of snapshot saves, by result.",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "pass_duration_seconds",
			Help:      "Time spent in one matching pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.passes, m.assignments, m.timeouts, m.reconciliations,
		m.completions, m.rejections, m.snapshots, m.passDuration,
	}
}

func (m *Metrics) observePass(res PassResult, took time.Duration) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.assignments.Add(float64(res.Assigned))
	m.timeouts.Add(float64(res.TimedOut))
	m.reconciliations.Add(float64(res.Unassigned))
	m.passDuration.Observe(took.Seconds())
}

func (m *Metrics) completed(state model.JobState) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) rejected(kind model.ErrorKind) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) snapshotSaved(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.snapshots.WithLabelValues(result).Inc()
}

// stateCollector reports queue, history and registry sizes at scrape time.
type stateCollector struct {
	core        *Core
	queuedDesc  *prometheus.Desc
	historyDesc *prometheus.Desc
	workersDesc *prometheus.Desc
	chainsDesc  *prometheus.Desc
	runningDesc *prometheus.Desc
}

func newStateCollector(c *Core) *stateCollector {
	return &stateCollector{
		core: c,
		queuedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "queued_jobs"),
			"Number of queued jobs, by state.", []string{"state"}, nil),
		historyDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "history_jobs"),
			"Number of jobs in history.", nil, nil),
		workersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "workers"),
			"Number of registered workers, by state.", []string{"state"}, nil),
		chainsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "known_chains"),
			"Number of model chains advertised by at least one worker.", nil, nil),
		runningDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, metricsSubsystem, "loop_running"),
			"1 while the matching loop runs.", nil, nil),
	}
}

func (sc *stateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.queuedDesc
	ch <- sc.historyDesc
	ch <- sc.workersDesc
	ch <- sc.chainsDesc
	ch <- sc.runningDesc
}

func (sc *stateCollector) Collect(ch chan<- prometheus.Metric) {
	st := sc.core.Stats()
	for _, s := range model.JobStates {
		ch <- prometheus.MustNewConstMetric(sc.queuedDesc, prometheus.GaugeValue, float64(st.QueuedByState[s]), string(s))
	}
	ch <- prometheus.MustNewConstMetric(sc.historyDesc, prometheus.GaugeValue, float64(st.History))
	for _, s := range model.WorkerStates {
		ch <- prometheus.MustNewConstMetric(sc.workersDesc, prometheus.GaugeValue, float64(st.WorkersByState[s]), string(s))
	}
	ch <- prometheus.MustNewConstMetric(sc.chainsDesc, prometheus.GaugeValue, float64(st.Chains))
	running := 0.0
	if st.Running {
		running = 1
	}
	ch <- prometheus.MustNewConstMetric(sc.runningDesc, prometheus.GaugeValue, running)
}

// RegisterMetrics registers the core's counters and a scrape-time state
// collector with reg.
func (c *Core) RegisterMetrics(reg prometheus.Registerer) error {
	for _, col := range append(c.metrics.collectors(), newStateCollector(c)) {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}
