package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(providerCallsLatency, imageRetriesTotal, blockedFramesTotal)
}

var (
	providerCallsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assetgen_provider_call_seconds",
			Help:    "Generative provider call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"provider", "op", "success"},
	)

	imageRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgen_image_retries_total",
			Help: "Image generation retries by reason.",
		},
		[]string{"reason"}, // 'backoff', 'text_guard', 'provider'
	)

	blockedFramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assetgen_blocked_frames_total",
		Help: "Frames that exhausted every attempt without passing the text guard.",
	})
)

func ObserveProviderCall(provider, op string, d time.Duration, success bool) {
	providerCallsLatency.WithLabelValues(norm(provider), norm(op), strconv.FormatBool(success)).Observe(d.Seconds())
}

func IncImageRetry(reason string) {
	imageRetriesTotal.WithLabelValues(norm(reason)).Inc()
}

func IncBlockedFrame() {
	blockedFramesTotal.Inc()
}
