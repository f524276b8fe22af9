package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/divtrack/internal/handlers"
)

// withMiddleware wraps the router; the request log sees the status set by recovery.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	return s.requestLog(s.recoverPanics(handler))
}

// requestLog writes one line per request. Pipeline-triggering routes can take
// minutes, so their duration is logged at info.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		event := s.app.Logger.Debug()
		switch {
		case rw.status >= http.StatusInternalServerError:
			event = s.app.Logger.Warn()
		case elapsed > 5*time.Second:
			event = s.app.Logger.Info()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Dur("elapsed", elapsed).
			Msg("HTTP request")
	})
}

// recoverPanics turns a handler panic into a JSON 500
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.app.Logger.Error().
					Str("panic", fmt.Sprintf("%v", rec)).
					Str("path", r.URL.Path).
					Msg("Handler panic recovered")
				handlers.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
