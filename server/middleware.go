package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// recoverer turns a panicking request into a 500 response, keeping the
// process alive. A response already under way is left alone.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.WithFields(log.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
					"panic":  p,
				}).Error("Recovered from panic")
				if ww.Status() != 0 {
					return
				}
				ww.Header().Set("Content-Type", contentTypeText)
				ww.WriteHeader(http.StatusInternalServerError)
				_, _ = ww.Write([]byte("Server error"))
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

// instrument logs each request and, if enabled, records it in the metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"route":    route,
			"status":   status,
			"duration": elapsed,
		}).Debug("Request")
		if s.metrics != nil {
			s.metrics.observe(r.Method, route, status, elapsed)
		}
	})
}
