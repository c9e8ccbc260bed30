package api

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"exam-workers/internal/common/i18n"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      r.RemoteAddr,
		}
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			s.logger.Debug("request", fields)
			return
		}
		s.logger.Info("request", fields)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("panic in handler", map[string]interface{}{
					"path":  r.URL.Path,
					"panic": fmt.Sprint(p),
					"stack": string(debug.Stack()),
				})
				s.errorResponse(w, http.StatusInternalServerError, i18n.T(s.locale(r), i18n.ServerError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// locale picks the request locale from Accept-Language, then the lang query parameter, then
// the configured default.
func (s *Server) locale(r *http.Request) string {
	if l := i18n.Normalize(r.Header.Get("Accept-Language")); l != "" {
		return l
	}
	if l := i18n.Normalize(r.URL.Query().Get("lang")); l != "" {
		return l
	}
	return s.config.DefaultLocale
}
