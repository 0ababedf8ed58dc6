// Package server implements the planner HTTP server, REST API, session auth, and SSE real-time events.
package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/planner/auth"
	"github.com/GoCodeAlone/planner/comms"
	"github.com/GoCodeAlone/planner/config"
	"github.com/GoCodeAlone/planner/server/api"
	"github.com/GoCodeAlone/planner/server/ws"
)

// Sessions is the session surface the server drives. Implemented by
// *auth.Provider.
type Sessions interface {
	Current() auth.Session
	SignIn(ctx context.Context, email, password string) (auth.Session, string, error)
	SignUp(ctx context.Context, email, password, confirm string) (auth.Session, string, error)
	SignOut(ctx context.Context) error
	Authorize(token string) (auth.Identity, error)
}

var _ Sessions = (*auth.Provider)(nil)

// Server is the planner HTTP server.
type Server struct {
	cfg     config.ServerConfig
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	sessions Sessions
	planner  api.Planner
	bus      comms.Bus
	hub      *ws.Hub
	handlers *api.Handlers

	routesOnce sync.Once
	unsubHub   func()

	// baseCtx is cancelled on Stop so that open SSE streams end.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.ServerConfig, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		mux:        http.NewServeMux(),
		logger:     logger,
		hub:        ws.NewHub(logger),
		baseCtx:    ctx,
		cancelBase: cancel,
		startTime:  time.Now(),
		version:    ver,
	}
}

// SetSessions attaches the session provider to the server.
func (s *Server) SetSessions(sessions Sessions) {
	s.sessions = sessions
}

// SetPlanner attaches the task controller to the server.
func (s *Server) SetPlanner(p api.Planner) {
	s.planner = p
}

// SetBus attaches a comms bus to the server. Its events are streamed to SSE
// clients.
func (s *Server) SetBus(bus comms.Bus) {
	s.bus = bus
}

// SetStaticFS sets the filesystem to serve UI files from.
// Call before Start.
func (s *Server) SetStaticFS(fsys fs.FS) {
	s.mux.Handle("/", http.FileServerFS(fsys))
}

// Handler registers routes on first use and returns the root handler.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.registerRoutes)
	return s.mux
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop ends SSE streams, detaches from the bus and gracefully shuts down the
// HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.cancelBase()
	if s.unsubHub != nil {
		s.unsubHub()
	}
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Planner: s.planner,
		Bus:     s.bus,
		Logger:  s.logger,
		Version: s.version,
		StartAt: s.startTime,
	}
	s.handlers = h

	if s.bus != nil {
		s.unsubHub = s.bus.Subscribe("", s.hub.Forward)
	}

	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	s.mux.HandleFunc("GET /api/session", s.handleSession)
	s.mux.HandleFunc("GET /api/status", h.StatusHandler())

	// SSE; auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API, wrapped in auth middleware
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("POST /api/auth/signout", s.handleSignOut)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleSSE verifies the query token and hands the stream to the hub.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if _, err := s.sessions.Authorize(token); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.hub.ServeSSE(w, r)
}
