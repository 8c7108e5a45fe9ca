package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TracksPlayedTotal tracks total tracks played by source (cached/streamed)
	TracksPlayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auralis_tracks_played_total",
			Help: "Total number of tracks played",
		},
		[]string{"source"},
	)

	// CrossfadesTotal tracks completed crossfades by outcome
	CrossfadesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auralis_crossfades_total",
			Help: "Total number of crossfades",
		},
		[]string{"outcome"},
	)

	// PreloadFailuresTotal tracks aborted next-track preloads
	PreloadFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auralis_preload_failures_total",
			Help: "Total number of aborted next-track preloads",
		},
	)

	// TrackSkipsTotal tracks automatic skips after repeated decode errors
	TrackSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auralis_track_skips_total",
			Help: "Total number of automatic track skips",
		},
	)

	// DownloadsTotal tracks offline downloads by status and kind
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auralis_downloads_total",
			Help: "Total number of offline downloads",
		},
		[]string{"status", "resumed"},
	)

	// DownloadDuration tracks offline download duration in seconds
	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "auralis_download_duration_seconds",
			Help:    "Offline download duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	// ActiveDownload indicates whether a download is in flight (the
	// acquisition service runs strictly sequentially)
	ActiveDownload = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auralis_active_download",
			Help: "Whether an offline download is in flight",
		},
	)

	// DownloadBytesTotal tracks total bytes downloaded
	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auralis_download_bytes_total",
			Help: "Total bytes downloaded for offline use",
		},
	)

	// OfflineStorageBytes tracks bytes currently held in the offline cache
	OfflineStorageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auralis_offline_storage_bytes",
			Help: "Bytes currently held in the offline cache",
		},
	)

	// SyncActionsTotal tracks sync queue replays by action type and status
	SyncActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auralis_sync_actions_total",
			Help: "Total number of replayed sync actions",
		},
		[]string{"action", "status"},
	)

	// PendingActions tracks the current number of queued offline actions
	PendingActions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "auralis_pending_actions",
			Help: "Current number of queued offline actions",
		},
	)

	// APIRequestsTotal tracks API requests by endpoint and status
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auralis_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "status"},
	)

	// APIRequestDuration tracks API request duration
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auralis_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// ErrorsTotal tracks errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auralis_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

// RecordTrackPlayed records a track starting playback
func RecordTrackPlayed(source string) {
	TracksPlayedTotal.WithLabelValues(source).Inc()
}

// RecordCrossfade records a crossfade by outcome (completed, cancelled)
func RecordCrossfade(outcome string) {
	CrossfadesTotal.WithLabelValues(outcome).Inc()
}

// RecordPreloadFailure records an aborted next-track preload
func RecordPreloadFailure() {
	PreloadFailuresTotal.Inc()
}

// RecordTrackSkip records an automatic skip after repeated decode errors
func RecordTrackSkip() {
	TrackSkipsTotal.Inc()
}

// RecordDownloadStart records the start of an offline download
func RecordDownloadStart() {
	ActiveDownload.Set(1)
}

// RecordDownloadComplete records a completed offline download
func RecordDownloadComplete(resumed bool, duration time.Duration, bytes int64) {
	DownloadsTotal.WithLabelValues("completed", boolLabel(resumed)).Inc()
	DownloadDuration.Observe(duration.Seconds())
	DownloadBytesTotal.Add(float64(bytes))
	ActiveDownload.Set(0)
}

// RecordDownloadFailed records a failed offline download
func RecordDownloadFailed(resumed bool, errorType string) {
	DownloadsTotal.WithLabelValues("failed", boolLabel(resumed)).Inc()
	ErrorsTotal.WithLabelValues(errorType).Inc()
	ActiveDownload.Set(0)
}

// UpdateOfflineStorageBytes updates the offline cache size gauge
func UpdateOfflineStorageBytes(bytes int64) {
	OfflineStorageBytes.Set(float64(bytes))
}

// RecordSyncAction records a replayed sync action
func RecordSyncAction(action, status string) {
	SyncActionsTotal.WithLabelValues(action, status).Inc()
}

// UpdatePendingActions updates the pending action count metric
func UpdatePendingActions(count int) {
	PendingActions.Set(float64(count))
}

// RecordAPIRequest records an API request
func RecordAPIRequest(endpoint string, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordError records an error
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
