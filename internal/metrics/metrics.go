// Package metrics exposes Prometheus collectors for capture runs.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
)

var (
	capturesTotal              *prometheus.CounterVec
	renderDurationSeconds      *prometheus.HistogramVec
	uploadBytesTotal           prometheus.Counter
	renderMissRatio            prometheus.Gauge
	activeWorkers              prometheus.Gauge
	urlsTotal                  prometheus.Counter
	throttleDelaySeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshots_captures_total",
				Help: "Total number of (url, size) captures, labeled by size and outcome.",
			},
			[]string{"size", "outcome"},
		)

		renderDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screenshots_render_duration_seconds",
				Help:    "Histogram of renderer run times, labeled by size.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
			},
			[]string{"size"},
		)

		uploadBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screenshots_upload_bytes_total",
				Help: "Total number of screenshot bytes uploaded to the object store.",
			},
		)

		renderMissRatio = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "screenshots_render_miss_ratio",
				Help: "Share of attempted captures in the last run that produced no image.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "screenshots_active_workers",
				Help: "Number of workers currently processing a capture.",
			},
		)

		urlsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screenshots_urls_total",
				Help: "Total number of distinct URLs read from the source.",
			},
		)

		throttleDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screenshots_throttle_delay_seconds",
				Help:    "Histogram of per-host render throttle waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname. It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCapture counts one finished capture. outcome is OutcomeSuccess or a
// failure kind such as "render_miss".
func ObserveCapture(size, outcome string) {
	capturesTotal.WithLabelValues(size, outcome).Inc()
}

// ObserveRender records how long one renderer invocation took.
func ObserveRender(size string, duration time.Duration) {
	renderDurationSeconds.WithLabelValues(size).Observe(duration.Seconds())
}

// ObserveUpload adds the uploaded object size.
func ObserveUpload(bytes int64) {
	if bytes > 0 {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// ObserveURL counts one URL yielded by the source.
func ObserveURL() {
	urlsTotal.Inc()
}

// SetRenderMissRatio publishes the run's render miss ratio.
func SetRenderMissRatio(ratio float64) {
	renderMissRatio.Set(ratio)
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveThrottleDelay records the duration of a per-host throttle wait.
func ObserveThrottleDelay(host string, duration time.Duration) {
	throttleDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
