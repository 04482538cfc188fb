package middleware

import (
	"net/http"

	"backtest-lab/internal/observability"
)

// Metrics counts requests by method and status code.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := newStatusWriter(w)
		next.ServeHTTP(sw, r)
		observability.RecordHTTPRequest(r.Method, sw.status)
	})
}
