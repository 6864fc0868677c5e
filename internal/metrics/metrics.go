// Package metrics exposes the operator-visible counters and gauges the
// matcher updates as it runs: command throughput, rejection reasons,
// ring pressure, and durability-subsystem health.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds every metric the engine reports.
type Collector struct {
	CommandsTotal           *prometheus.CounterVec
	ExecutionReports        prometheus.Counter
	DuplicateOrderIDs       prometheus.Counter
	UnknownCancels          prometheus.Counter
	PoolExhaustions         prometheus.Counter
	WalIntegrityFaults      prometheus.Counter
	SnapshotIntegrityFaults prometheus.Counter

	RingPushFull prometheus.Counter
	RingPopEmpty prometheus.Counter
	RingDepth    prometheus.Gauge

	RestingOrders prometheus.Gauge
	BestBid       prometheus.Gauge
	BestAsk       prometheus.Gauge

	WalGrowths      prometheus.Counter
	SnapshotsTaken  prometheus.Counter
	SnapshotLatency prometheus.Histogram
	CommandLatency  prometheus.Histogram
}

// GetCollector returns the process-wide metrics singleton, creating
// and registering it on first use.
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	c := &Collector{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Commands applied to the book, by kind.",
		}, []string{"kind"}),
		ExecutionReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "engine",
			Name:      "execution_reports_total",
			Help:      "Execution reports emitted.",
		}),
		DuplicateOrderIDs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "engine",
			Name:      "duplicate_order_id_total",
			Help:      "NewOrder commands rejected for a duplicate id.",
		}),
		UnknownCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "engine",
			Name:      "unknown_cancel_total",
			Help:      "Cancel commands for an id not resting.",
		}),
		PoolExhaustions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "engine",
			Name:      "pool_exhausted_total",
			Help:      "NewOrder residuals rejected for arena exhaustion.",
		}),
		WalIntegrityFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "wal",
			Name:      "integrity_faults_total",
			Help:      "CRC mismatches or truncated records hit during WAL replay.",
		}),
		SnapshotIntegrityFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "snapshot",
			Name:      "integrity_faults_total",
			Help:      "Snapshot files discarded for a magic/CRC mismatch.",
		}),
		RingPushFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "ring",
			Name:      "push_full_total",
			Help:      "Producer Push calls that found the ring full.",
		}),
		RingPopEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "ring",
			Name:      "pop_empty_total",
			Help:      "Consumer Pop calls that found the ring empty.",
		}),
		RingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "velocity_match",
			Subsystem: "ring",
			Name:      "depth",
			Help:      "Slots currently occupied in the SPSC ring.",
		}),
		RestingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "velocity_match",
			Subsystem: "book",
			Name:      "resting_orders",
			Help:      "Live orders resting in the book.",
		}),
		BestBid: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "velocity_match",
			Subsystem: "book",
			Name:      "best_bid",
			Help:      "Current best bid price (0 if none).",
		}),
		BestAsk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "velocity_match",
			Subsystem: "book",
			Name:      "best_ask",
			Help:      "Current best ask price (0 if none).",
		}),
		WalGrowths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "wal",
			Name:      "growths_total",
			Help:      "Times the WAL backing file was doubled and remapped.",
		}),
		SnapshotsTaken: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "velocity_match",
			Subsystem: "snapshot",
			Name:      "taken_total",
			Help:      "Snapshots successfully written and renamed into place.",
		}),
		SnapshotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "velocity_match",
			Subsystem: "snapshot",
			Name:      "latency_ms",
			Help:      "Wall-clock time to enumerate, serialize, and rename a snapshot.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		CommandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "velocity_match",
			Subsystem: "engine",
			Name:      "command_latency_us",
			Help:      "Time from ring pop until the WAL append, book mutation and publish complete, in microseconds.",
			Buckets:   []float64{5, 10, 20, 35, 50, 75, 100, 250, 500},
		}),
	}
	c.registerAll()
	return c
}

func (c *Collector) registerAll() {
	prometheus.MustRegister(
		c.CommandsTotal,
		c.ExecutionReports,
		c.DuplicateOrderIDs,
		c.UnknownCancels,
		c.PoolExhaustions,
		c.WalIntegrityFaults,
		c.SnapshotIntegrityFaults,
		c.RingPushFull,
		c.RingPopEmpty,
		c.RingDepth,
		c.RestingOrders,
		c.BestBid,
		c.BestAsk,
		c.WalGrowths,
		c.SnapshotsTaken,
		c.SnapshotLatency,
		c.CommandLatency,
	)
}

// Handler returns the Prometheus scrape handler for mounting under
// /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed wall-clock time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer { return Timer{start: time.Now()} }

// ElapsedMicros returns the elapsed time in microseconds.
func (t Timer) ElapsedMicros() float64 {
	return float64(time.Since(t.start).Nanoseconds()) / 1000.0
}

// ElapsedMillis returns the elapsed time in milliseconds.
func (t Timer) ElapsedMillis() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
