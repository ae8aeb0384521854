package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
)

const shutdownTimeout = 10 * time.Second

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the mux patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler, mw ...Middleware)
	Handler(handler Handler, mw ...Middleware)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// Opts contains the dependencies of a [Server].
type Opts struct {
	Config      shared.ServerConfig
	Flow        AuthFlow
	Tokens      TokenProvider
	Credentials CredentialReader
	Music       MusicService
	Clock       shared.Clock
	Logger      *log.Logger
}

// Server serves the authorization flow, the JSON API and the HTML pages.
type Server struct {
	router *BasicRouter
	addr   string
	logger *log.Logger
}

// New wires the handlers into a [BasicRouter].
//
// Every route gets request ids, panic recovery and request logging. /auth/* and /api/* are rate limited per client.
func New(opts Opts) *Server {
	if opts.Clock == nil {
		opts.Clock = shared.NewClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(opts.Logger, "component", "server")

	router := NewBasicRouter()
	router.Use(RequestID, Recovery(logger), Logging(logger, opts.Clock))

	limiter := NewRateLimiter(opts.Config.RequestsPerSecond, opts.Config.Burst, opts.Clock)
	router.Handler(NewAuthHandler(opts.Flow, logger), limiter.Middleware)
	router.Handler(NewAPIHandler(opts.Credentials, opts.Tokens, opts.Music, logger), limiter.Middleware)
	router.Handler(NewPageHandler())

	return &Server{router: router, addr: opts.Config.Addr(), logger: logger}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errs <- srv.Serve(ln)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
