// Package api serves the VoiceRef parser over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/FocuswithJustin/VoiceRef/core/refparse"
	"github.com/FocuswithJustin/VoiceRef/internal/cache"
	"github.com/FocuswithJustin/VoiceRef/internal/logging"
	"github.com/FocuswithJustin/VoiceRef/internal/passage"
	"github.com/FocuswithJustin/VoiceRef/internal/server"
)

// PassageSource looks up passage text for dictated input. *passage.Client
// implements it.
type PassageSource interface {
	Fetch(ctx context.Context, raw string) (*passage.Passage, error)
	CacheStats() cache.Stats
}

// Server holds the state shared by all handlers.
type Server struct {
	cfg      Config
	parser   *refparse.Parser
	passages PassageSource
	hub      *Hub
	limiter  *RateLimiter
	started  time.Time
	handler  http.Handler
}

// New builds a server. A nil parser uses refparse.Default; a nil passages
// source disables GET /passage.
func New(cfg Config, parser *refparse.Parser, passages PassageSource) (*Server, error) {
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	cfg = cfg.withDefaults()
	if parser == nil {
		parser = refparse.Default()
	}

	s := &Server{
		cfg:      cfg,
		parser:   parser,
		passages: passages,
		hub:      NewHub(),
		started:  time.Now(),
	}
	if cfg.RateLimitRequests > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}
	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/parse", s.handleParse)
	mux.HandleFunc("/books", s.handleBooks)
	mux.HandleFunc("/books/", s.handleBookByName)
	mux.HandleFunc("/passage", s.handlePassage)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// buildHandler wraps the routes, innermost first: auth, rate limiting,
// security headers, CORS, then request logging outermost.
func (s *Server) buildHandler() http.Handler {
	var handler http.Handler = s.routes()

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
	}
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	handler = server.SecurityHeaders(server.APICSPConfig(), handler)
	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	handler = server.SlowRequests(time.Second, handler)
	return logging.CombinedMiddleware(handler)
}

// ListenAndServe serves on the configured port until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then drains
// in-flight requests and closes open dictation streams.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	port := s.cfg.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	cat := s.parser.Catalog()
	logging.ServerStartup("rest_api", "http", port,
		"websocket_path", "/ws",
		"auth", s.cfg.Auth.Enabled,
		"rate_limit_rpm", s.cfg.RateLimitRequests,
		"passages", s.passages != nil)
	logging.CatalogLoaded("server", cat.Len(), cat.Digest())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if serveErr := <-errc; serveErr != nil && serveErr != http.ErrServerClosed {
		return serveErr
	}
	return err
}

// Close drops every dictation stream and stops background work.
func (s *Server) Close() {
	s.hub.CloseAll()
	if s.limiter != nil {
		s.limiter.Close()
	}
}
