// Package metrics collects Prometheus metrics for the auth server and serves them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "filevault_auth"

// Collector records auth, session and HTTP metrics. It satisfies the session manager's
// Metrics interface and the identity service's Recorder.
type Collector struct {
	sessionsIssued  prometheus.Counter
	sessionsRotated prometheus.Counter
	sessionsRevoked prometheus.Counter
	authRejected    *prometheus.CounterVec
	signups         prometheus.Counter
	signins         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Sessions created by signup or signin.",
		}),
		sessionsRotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rotated_total",
			Help:      "Successful refresh token rotations.",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Sessions revoked by logout.",
		}),
		authRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rejected_total",
			Help:      "Rejected access or refresh tokens by reason.",
		}, []string{"reason"}),
		signups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Accounts created.",
		}),
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signins_total",
			Help:      "Signin attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP responses by method, route pattern and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.sessionsIssued,
		c.sessionsRotated,
		c.sessionsRevoked,
		c.authRejected,
		c.signups,
		c.signins,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

func (c *Collector) SessionIssued()  { c.sessionsIssued.Inc() }
func (c *Collector) SessionRotated() { c.sessionsRotated.Inc() }
func (c *Collector) SessionRevoked() { c.sessionsRevoked.Inc() }

// AuthRejected counts a rejected token. reason is a short fixed label such as "expired".
func (c *Collector) AuthRejected(reason string) {
	c.authRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) Signup() { c.signups.Inc() }

// Signin records a signin attempt.
func (c *Collector) Signin(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	c.signins.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request. route should be the router pattern, not the raw path.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
