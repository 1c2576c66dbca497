package middleware

import (
	"net/http"
	"time"
)

// HTTPObserver records served requests. metrics.Collector implements it.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// NewMetricsMiddleware reports every request to obs, labelled by chi route pattern.
func NewMetricsMiddleware(obs HTTPObserver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			obs.ObserveHTTP(r.Method, routePattern(r), rec.statusCode, time.Since(start))
		})
	}
}
