package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_synthesis_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"mode", "status"})

	synthesisLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicebox_synthesis_latency_seconds",
		Help:    "End-to-end synthesis latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
	}, []string{"mode"})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_audio_bytes_total",
		Help: "Total PCM bytes returned by the synthesis service",
	}, []string{"mode"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_cache_lookups_total",
		Help: "Audio cache lookups",
	}, []string{"result"}) // result: "hit" or "miss"

	stageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebox_errors_total",
		Help: "Total number of failed generations by stage",
	}, []string{"stage"})
)

// RecordSynthesis records one finished generation.
func RecordSynthesis(mode string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	synthesisRequests.WithLabelValues(mode, status).Inc()
	synthesisLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func RecordAudioBytes(mode string, n int) {
	audioBytes.WithLabelValues(mode).Add(float64(n))
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(result).Inc()
}

func RecordError(stage string) {
	stageErrors.WithLabelValues(stage).Inc()
}

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
