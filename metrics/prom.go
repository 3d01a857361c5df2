package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagePosted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_message_posted_total",
		Help: "no. of accepted messages",
	})
	MessageRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinwall_message_rejected_total",
			Help: "no. of rejected messages",
		},
		[]string{"reason"},
	)
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteViewed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_paste_viewed_total",
		Help: "no. of paste views",
	})
	PasteDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_paste_downloaded_total",
		Help: "no. of paste downloads",
	})
	PastesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_pastes_swept_total",
		Help: "no. of stale pastes evicted",
	})
	SweepCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_sweep_cycles_total",
		Help: "no. of sweep worker cycles",
	})
	SnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_snapshot_writes_total",
		Help: "no. of state snapshots written",
	})
	SnapshotErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinwall_snapshot_errors_total",
		Help: "no. of failed snapshot writes",
	})
	UsersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pinwall_users_online",
		Help: "clients seen within the online window",
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinwall_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinwall_rate_limit_hits_total",
			Help: "no. of rate limit violations",
		},
		[]string{"endpoint"},
	)
)
