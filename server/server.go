// Package server exposes the organization and permission API over HTTP JSON.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-michi/michi"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	maxHeaderBytes    = 1 << 20
	readTimeout       = 30 * time.Second
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
)

// Server wraps an http.Server with a michi router served over h2c, and a
// middleware chain that is rebuilt whenever middleware is added.
type Server struct {
	Router *michi.Router
	Server *http.Server

	middleware  []func(http.Handler) http.Handler
	h2cHandler  http.Handler
	routesAdded bool
}

// NewServer creates a Server with no middleware installed.
func NewServer() *Server {
	router := michi.NewRouter()
	h2cHandler := h2c.NewHandler(router, &http2.Server{})

	server := &http.Server{
		Handler:           h2cHandler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	return &Server{
		Router:     router,
		Server:     server,
		middleware: []func(http.Handler) http.Handler{},
		h2cHandler: h2cHandler,
	}
}

// Handle registers a route on the router.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.routesAdded = true
	s.Router.Handle(pattern, handler)
}

// HandleFunc registers a route on the router.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.routesAdded = true
	s.Router.HandleFunc(pattern, handler)
}

// Use adds middleware to the server. Middleware must be installed before
// routes are registered.
func (s *Server) Use(mw ...func(http.Handler) http.Handler) {
	if s.routesAdded {
		panic("cannot add middleware after routes are registered")
	}
	s.middleware = append(s.middleware, mw...)
	s.rebuildHandlerChain()
}

func (s *Server) rebuildHandlerChain() {
	s.Server.Handler = applyMiddleware(s.h2cHandler, s.middleware...)
}

func applyMiddleware(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	// Apply in reverse order so the first middleware in the slice is the
	// outermost one.
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Server.Handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.Server.Addr = addr
	return s.Server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Debug("shutting down server")
	if err := s.Server.Shutdown(ctx); err != nil {
		slog.Error("error shutting down server", "error", err)
		return err
	}
	return nil
}
