// Package api exposes a small read-only HTTP surface over the pipeline
// outputs: 최신 결과, 히스토리 인덱스, 토큰 상태, 잡 이력.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/sentinel/backend/pkg/logger"
)

// Server wraps http.Server with sane timeouts.
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer creates the API server on the given port.
func NewServer(port string, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
	}
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("API server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}
