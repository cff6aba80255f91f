package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what handlers and middleware report to.
type Recorder interface {
	RecordAuth(op, outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(d time.Duration)
}

type Collector struct {
	auth       *prometheus.CounterVec
	httpStatus *prometheus.CounterVec
	latency    prometheus.Histogram
}

// NewCollector registers the blog metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_auth_total",
			Help: "Auth lifecycle operations by outcome.",
		}, []string{"op", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blog_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.auth, c.httpStatus, c.latency)
	return c
}

func (c *Collector) RecordAuth(op, outcome string) {
	c.auth.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordRequestLatency(d time.Duration) {
	c.latency.Observe(d.Seconds())
}

type Nop struct{}

func (Nop) RecordAuth(string, string)          {}
func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordRequestLatency(time.Duration) {}

// Handler serves the gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
