package graphstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects store and traversal instrumentation. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	opDuration    *prometheus.HistogramVec
	opErrors      *prometheus.CounterVec
	nodesInserted prometheus.Counter
	backEdges     prometheus.Counter
	walkHops      prometheus.Counter
	fetchSize     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adjgraph",
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adjgraph",
			Name:      "operation_errors_total",
			Help:      "Store operations that returned an error.",
		}, []string{"op"}),
		nodesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adjgraph",
			Name:      "nodes_inserted_total",
			Help:      "Nodes committed by batch or single inserts.",
		}),
		backEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adjgraph",
			Name:      "back_edges_written_total",
			Help:      "Neighbor adjacency slots overwritten by back-edge updates.",
		}),
		walkHops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adjgraph",
			Name:      "walk_hops_total",
			Help:      "Random walk hops completed.",
		}),
		fetchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adjgraph",
			Name:      "fetch_ids",
			Help:      "Number of distinct ids per batched fetch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.opDuration, m.opErrors, m.nodesInserted, m.backEdges, m.walkHops, m.fetchSize)
	}
	return m
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.opErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) addInserted(n int) {
	if m == nil {
		return
	}
	m.nodesInserted.Add(float64(n))
}

func (m *Metrics) addBackEdges(n int) {
	if m == nil {
		return
	}
	m.backEdges.Add(float64(n))
}

func (m *Metrics) incHops() {
	if m == nil {
		return
	}
	m.walkHops.Inc()
}

func (m *Metrics) observeFetch(n int) {
	if m == nil {
		return
	}
	m.fetchSize.Observe(float64(n))
}
