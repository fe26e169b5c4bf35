package relay

import (
	"net/http"
	"time"

	"github.com/stxfxno/listify/httputil"
)

// statusWriter tracks whether the response header has been written, so error
// paths never double-send headers after a byte stream has started.
type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (w *statusWriter) WriteHeader(status int) {
	if w.wrote {
		return
	}
	w.status = status
	w.wrote = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}

	return w.ResponseWriter.Write(b)
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 0, wrote: false}
		defer func() {
			if rec := recover(); nil != rec {
				s.logger.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				if !sw.wrote {
					//nolint:errcheck
					httputil.WriteError(sw, http.StatusInternalServerError, "internal server error")
				}
			}
		}()

		next.ServeHTTP(sw, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			//nolint:errcheck
			httputil.WriteError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw, ok := w.(*statusWriter)
		if !ok {
			sw = &statusWriter{ResponseWriter: w, status: 0, wrote: false}
			w = sw
		}

		next.ServeHTTP(w, r)

		s.logger.
			Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
