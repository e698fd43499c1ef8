package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "detections_total",
			Help:      "Error detections handled, partitioned by severity and dedup outcome.",
		},
		[]string{"severity", "dedup"},
	)

	correctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "corrections_total",
			Help:      "Corrections finished, partitioned by final status.",
		},
		[]string{"status"},
	)

	quotaRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "quota_rejections_total",
			Help:      "Corrections rejected by the daily quota guard.",
		},
	)

	rollbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardian",
			Name:      "rollbacks_total",
			Help:      "Corrections rolled back, automatically or on request.",
		},
	)

	correctionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "guardian",
			Name:      "correction_seconds",
			Help:      "Correction execution latency in seconds, action dispatch through tests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
)

// Register attaches guardian collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		detectionsTotal,
		correctionsTotal,
		quotaRejectionsTotal,
		rollbacksTotal,
		correctionDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDetection counts one handled error report.
func ObserveDetection(severity string, deduplicated bool) {
	dedup := "new"
	if deduplicated {
		dedup = "repeat"
	}
	detectionsTotal.WithLabelValues(severity, dedup).Inc()
}

// ObserveCorrection records a finished correction and its duration.
func ObserveCorrection(status string, duration time.Duration) {
	correctionsTotal.WithLabelValues(status).Inc()
	correctionDurationSeconds.Observe(duration.Seconds())
}

// ObserveQuotaRejection counts one quota-guard rejection.
func ObserveQuotaRejection() { quotaRejectionsTotal.Inc() }

// ObserveRollback counts one rollback.
func ObserveRollback() { rollbacksTotal.Inc() }
