// Package metrics exposes Prometheus counters and gauges for queue depth,
// per-node retries, and reconciliation batches, generalized from the
// teacher's graph execution metrics to this system's domain.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the registered set of counters/gauges/histograms this system
// updates during scheduling, worker execution, and reconciliation.
type Metrics struct {
	queueDepth     *prometheus.GaugeVec
	jobsEnqueued   *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	nodeRetries    *prometheus.CounterVec
	nodeFailures   *prometheus.CounterVec
	reconcileBatch *prometheus.CounterVec
	reconcileItems *prometheus.CounterVec
	browserRecycle *prometheus.CounterVec
}

// New registers every metric with registry and returns the handle.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "queue_depth",
			Help:      "Number of pending jobs waiting on a platform queue",
		}, []string{"platform"}),

		jobsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "jobs_enqueued_total",
			Help:      "Total jobs enqueued per platform and sale-state target",
		}, []string{"platform", "sale_state"}),

		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Name:      "job_duration_ms",
			Help:      "Wall-clock time from job start to completion/failure in milliseconds",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000},
		}, []string{"platform", "status"}),

		nodeRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "node_retries_total",
			Help:      "Cumulative retry attempts across all nodes",
		}, []string{"node_type", "reason"}),

		nodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "node_failures_total",
			Help:      "Node executions that exhausted retries and failed the job",
		}, []string{"node_type"}),

		reconcileBatch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "reconcile_batches_total",
			Help:      "Reconciliation batches applied to the source of record",
		}, []string{"platform"}),

		reconcileItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "reconcile_items_total",
			Help:      "Reconciliation items written back per platform and outcome",
		}, []string{"platform", "outcome"}), // outcome: updated, skipped, error

		browserRecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "browserpool_recycles_total",
			Help:      "Browser pool handle recycles, by trigger",
		}, []string{"trigger"}), // trigger: page_rotation, context_rotation, failure_circuit
	}
}

func (m *Metrics) SetQueueDepth(platform string, depth int64) {
	m.queueDepth.WithLabelValues(platform).Set(float64(depth))
}

func (m *Metrics) IncJobEnqueued(platform, saleState string) {
	m.jobsEnqueued.WithLabelValues(platform, saleState).Inc()
}

func (m *Metrics) ObserveJobDuration(platform, status string, d time.Duration) {
	m.jobDuration.WithLabelValues(platform, status).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncNodeRetry(nodeType, reason string) {
	m.nodeRetries.WithLabelValues(nodeType, reason).Inc()
}

func (m *Metrics) IncNodeFailure(nodeType string) {
	m.nodeFailures.WithLabelValues(nodeType).Inc()
}

func (m *Metrics) IncReconcileBatch(platform string) {
	m.reconcileBatch.WithLabelValues(platform).Inc()
}

func (m *Metrics) IncReconcileItem(platform, outcome string) {
	m.reconcileItems.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) IncBrowserRecycle(trigger string) {
	m.browserRecycle.WithLabelValues(trigger).Inc()
}
