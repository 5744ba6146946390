package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getpushd/pushd/pkg/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMiddleware wraps the mux with request logging and metrics.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := routeLabel(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.log.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

// routeLabel collapses per-subscription paths so metrics cardinality stays
// bounded.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/notify/") {
		return "/notify"
	}
	return path
}
