package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the Prometheus metrics for the client-side pipeline.
type PipelineMetrics struct {
	EventsTotal     *prometheus.CounterVec
	EventsFiltered  prometheus.Counter
	FlushesTotal    *prometheus.CounterVec
	FlushDuration   prometheus.Histogram
	EventsSent      prometheus.Counter
	EventsRequeued  prometheus.Counter
	EventsDropped   prometheus.Counter
	BufferLength    prometheus.Gauge
	WALSpilled      prometheus.Counter
	DeadElements    prometheus.Counter
	AuditScansTotal *prometheus.CounterVec
}

// NewPipelineMetrics initializes the pipeline metrics and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on promhttp.Handler().
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "emitter",
			Name:      "events_total",
			Help:      "Total number of events appended to the buffer by type and level.",
		}, []string{"type", "level"}),
		EventsFiltered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "emitter",
			Name:      "events_filtered_total",
			Help:      "Total number of events discarded for being below the minimum level.",
		}),
		FlushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "buffer",
			Name:      "flushes_total",
			Help:      "Total number of flush attempts by status.",
		}, []string{"status"}), // status: ok, error
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "actionlog",
			Subsystem: "buffer",
			Name:      "flush_duration_seconds",
			Help:      "Time spent sending a batch to the collector.",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "buffer",
			Name:      "events_sent_total",
			Help:      "Total number of events accepted by the collector.",
		}),
		EventsRequeued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "buffer",
			Name:      "events_requeued_total",
			Help:      "Total number of events restored to the buffer after a failed flush.",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "buffer",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped because the requeue cap was exceeded.",
		}),
		BufferLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "actionlog",
			Subsystem: "buffer",
			Name:      "length",
			Help:      "Number of events currently buffered.",
		}),
		WALSpilled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "buffer",
			Name:      "wal_spilled_total",
			Help:      "Total number of dropped events written to the overflow WAL.",
		}),
		DeadElements: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "auditor",
			Name:      "dead_elements_total",
			Help:      "Total number of dead elements found across scans.",
		}),
		AuditScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "auditor",
			Name:      "scans_total",
			Help:      "Total number of auditor scans by status.",
		}, []string{"status"}), // status: clean, findings, error
	}
}

// CollectorMetrics holds the metrics for the development collector.
type CollectorMetrics struct {
	BatchesTotal   *prometheus.CounterVec
	EventsReceived prometheus.Counter
	BytesTotal     prometheus.Counter
}

// NewCollectorMetrics initializes the collector metrics and registers them with reg.
func NewCollectorMetrics(reg prometheus.Registerer) *CollectorMetrics {
	factory := promauto.With(reg)
	return &CollectorMetrics{
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "collector",
			Name:      "batches_total",
			Help:      "Total number of received batches by status.",
		}, []string{"status"}), // status: accepted, error_parse, error_size, error_media_type, error_invalid, error_sink
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "collector",
			Name:      "events_received_total",
			Help:      "Total number of events received.",
		}),
		BytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "actionlog",
			Subsystem: "collector",
			Name:      "bytes_total",
			Help:      "Total number of bytes received.",
		}),
	}
}
