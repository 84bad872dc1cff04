package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"txservice/internal/config"
	"txservice/internal/logging"
)

var ginModeOnce sync.Once

// NewRouter builds the gin engine with the full middleware chain.
func NewRouter(h *Handler, bodyLimit int64) *gin.Engine {
	ginModeOnce.Do(func() {
		if gin.Mode() == gin.DebugMode {
			gin.SetMode(gin.ReleaseMode)
		}
	})
	r := gin.New()
	r.Use(RequestID(), AccessLog(logging.L()), Metrics(), BodyLimit(bodyLimit))
	h.Register(r)
	return r
}

type Server struct {
	cfg    config.HTTPConfig
	engine *gin.Engine

	mu      sync.Mutex
	srv     *http.Server
	stopped bool
}

func NewServer(cfg config.HTTPConfig, h *Handler) *Server {
	return &Server{cfg: cfg, engine: NewRouter(h, cfg.BodyLimit)}
}

func (s *Server) Engine() *gin.Engine { return s.engine }

// Serve accepts connections on l until Stop is called.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return l.Close()
	}
	if s.srv != nil {
		s.mu.Unlock()
		return errors.New("http server already running")
	}
	s.srv = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	srv := s.srv
	s.mu.Unlock()

	logging.L().Info("http server listening", zap.String("addr", l.Addr().String()))
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(l)
}

// Stop drains in-flight requests until ctx expires. A server stopped before
// it started never serves.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logging.L().Info("http server stopped")
	return nil
}
