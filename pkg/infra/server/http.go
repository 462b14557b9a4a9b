package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	httpopts "github.com/kart-io/tutor-x/pkg/options/http"
)

// HTTPServer serves a gin engine.
type HTTPServer struct {
	opts   *httpopts.Options
	engine *gin.Engine
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

var _ Runnable = (*HTTPServer)(nil)

// NewHTTPServer creates an HTTP server for the given engine.
func NewHTTPServer(opts *httpopts.Options, engine *gin.Engine) *HTTPServer {
	if opts == nil {
		opts = httpopts.NewOptions()
	}
	return &HTTPServer{
		opts:   opts,
		engine: engine,
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      engine,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			IdleTimeout:  opts.IdleTimeout,
		},
	}
}

// Name implements Runnable.
func (s *HTTPServer) Name() string { return "http" }

// Engine returns the gin engine.
func (s *HTTPServer) Engine() *gin.Engine { return s.engine }

// Addr returns the bound address once started, otherwise the configured one.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start binds the listener synchronously and serves in the background.
func (s *HTTPServer) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("HTTP server error", "addr", ln.Addr().String(), "error", err.Error())
		}
	}()
	return nil
}

// Stop gracefully shuts down the server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
