package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "media_grabber"

// Outcome labels of finished jobs.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors updated by the download pipeline and the HTTP layer.
type Metrics struct {
	// JobsStarted counts accepted jobs by execution path.
	JobsStarted *prometheus.CounterVec
	// JobsFinished counts finished jobs by outcome and failure code.
	JobsFinished *prometheus.CounterVec
	// JobsActive is the number of jobs holding a download slot.
	JobsActive prometheus.Gauge
	// JobsQueued is the number of accepted jobs waiting for a slot.
	JobsQueued prometheus.Gauge
	// JobDuration observes the wall-clock time of finished jobs.
	JobDuration *prometheus.HistogramVec
	// BytesDelivered counts artifact bytes streamed to clients.
	BytesDelivered prometheus.Counter
	// FilesDeleted counts artifacts removed by the janitor.
	FilesDeleted *prometheus.CounterVec
	// HTTPRequests counts served HTTP requests by route, method and status code.
	HTTPRequests *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Number of accepted download jobs.",
		}, []string{"path"}),
		JobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Number of finished download jobs.",
		}, []string{"outcome", "code"}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of jobs currently downloading.",
		}),
		JobsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_queued",
			Help:      "Number of jobs waiting for a download slot.",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of finished jobs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"outcome"}),
		BytesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_delivered_total",
			Help:      "Number of artifact bytes streamed to clients.",
		}),
		FilesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_deleted_total",
			Help:      "Number of deleted artifacts by reason.",
		}, []string{"reason"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of served HTTP requests.",
		}, []string{"route", "method", "code"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.JobsStarted,
			m.JobsFinished,
			m.JobsActive,
			m.JobsQueued,
			m.JobDuration,
			m.BytesDelivered,
			m.FilesDeleted,
			m.HTTPRequests,
		)
	}

	return m
}

// NewUnregistered creates collectors that are not exported anywhere.
func NewUnregistered() *Metrics {
	return New(nil)
}
