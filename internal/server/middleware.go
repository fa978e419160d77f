package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/book-expert/voice-clone-service/internal/metrics"
)

// accessLog writes one line per request through the service logger and counts
// requests per route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := "unmatched"
			if routeContext := chi.RouteContext(r.Context()); routeContext != nil && routeContext.RoutePattern() != "" {
				route = routeContext.RoutePattern()
			}

			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
			s.deps.Log.Info("%s %s %d %dB %s [%s]", r.Method, r.URL.Path, status, wrapped.BytesWritten(),
				time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
		}()

		next.ServeHTTP(wrapped, r)
	})
}
