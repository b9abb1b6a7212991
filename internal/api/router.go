package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/sentinel/backend/pkg/logger"
)

// NewRouter wires all routes.
// ⭐ SSOT: HTTP 라우팅 정의는 여기서만
func NewRouter(h *Handlers, log *logger.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(log))

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/latest", h.Latest).Methods(http.MethodGet)
	v1.HandleFunc("/verdicts", h.Verdicts).Methods(http.MethodGet)
	v1.HandleFunc("/history", h.HistoryIndex).Methods(http.MethodGet)
	v1.HandleFunc("/history/{name}", h.HistoryFile).Methods(http.MethodGet)
	v1.HandleFunc("/token/status", h.TokenStatus).Methods(http.MethodGet)
	v1.HandleFunc("/jobs", h.Jobs).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{name}/history", h.JobHistory).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{name}/run", h.RunJob).Methods(http.MethodPost)

	return r
}

func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("Request handled")
		})
	}
}
