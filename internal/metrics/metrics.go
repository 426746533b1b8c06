// Package metrics exposes Prometheus counters and gauges for an rsync
// daemon's operational monitoring. Grounded in the teacher's monitoring
// listener in its internal/maincmd/maincmd.go, extended here with an
// actual metrics registry rather than pprof handlers alone. This
// module's maincmd.Main registers the daemon's Registry against
// prometheus.DefaultRegisterer but starts no HTTP server to expose it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the counters and gauges one daemon process exposes.
// Construct one per process with NewRegistry and pass it down to the
// connection handlers that update it.
type Registry struct {
	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	BytesSent         prometheus.Counter
	BytesReceived     prometheus.Counter
	FilesTransferred  prometheus.Counter
	TransferErrors    *prometheus.CounterVec
	TransferDuration  prometheus.Histogram
}

// NewRegistry creates and registers a Registry's metrics against reg.
// Pass prometheus.NewRegistry() for an isolated registry (tests), or
// prometheus.DefaultRegisterer to expose them via promhttp.Handler() on
// the default /metrics path.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsync_connections_total",
			Help: "Total number of daemon connections accepted.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rsync_connections_active",
			Help: "Number of daemon connections currently being served.",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsync_bytes_sent_total",
			Help: "Total bytes written to the network across all connections.",
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsync_bytes_received_total",
			Help: "Total bytes read from the network across all connections.",
		}),
		FilesTransferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "rsync_files_transferred_total",
			Help: "Total number of files successfully transferred.",
		}),
		TransferErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rsync_transfer_errors_total",
			Help: "Total number of per-file transfer errors, by error taxonomy category.",
		}, []string{"category"}),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsync_transfer_duration_seconds",
			Help:    "Duration of completed transfers, in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
