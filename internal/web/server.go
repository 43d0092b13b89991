// Package web serves the live dashboard over HTTP. It is a dashboard
// renderer: every render cycle hands it the latest view, which it keeps
// for the JSON API and the HTML page and pushes to WebSocket clients.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nugget/wattdash/internal/buildinfo"
	"github.com/nugget/wattdash/internal/dashboard"
	"github.com/nugget/wattdash/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Options configures a [Server].
type Options struct {
	Address string
	Port    int
	// AllowedOrigins enables CORS for the listed origins ("*" for any).
	// Empty means same-origin only.
	AllowedOrigins []string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Connected reports the broker session state for /health.
	Connected func() bool
	Logger    *slog.Logger
}

// Server is the HTTP render surface.
type Server struct {
	address   string
	port      int
	connected func() bool
	logger    *slog.Logger
	handler   http.Handler
	templates map[string]*template.Template
	hub       *hub
	server    *http.Server

	mu       sync.RWMutex
	view     dashboard.View
	viewJSON []byte
}

// New builds the server and its routes. Call [Server.Start] to listen.
func New(opts Options) *Server {
	s := &Server{
		address:   opts.Address,
		port:      opts.Port,
		connected: opts.Connected,
		logger:    opts.Logger,
		templates: loadTemplates(),
	}
	if s.connected == nil {
		s.connected = func() bool { return false }
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	var c *cors.Cors
	if len(opts.AllowedOrigins) > 0 {
		c = cors.New(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		})
	}
	s.hub = newHub(c, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/topics", s.handleTopics)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	var h http.Handler = mux
	if c != nil {
		h = c.Handler(h)
	}
	s.handler = s.withLogging(h)
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Name identifies the server as a dashboard renderer.
func (s *Server) Name() string { return "web" }

// Render stores v as the current view and pushes it to live clients.
// It never waits on a slow client.
func (s *Server) Render(_ context.Context, v dashboard.View) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}

	s.mu.Lock()
	s.view = v
	s.viewJSON = b
	s.mu.Unlock()

	s.hub.broadcast(b)
	return nil
}

// current returns the last rendered view; ok is false before the first
// render.
func (s *Server) current() (v dashboard.View, raw []byte, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view, s.viewJSON, s.viewJSON != nil
}

// Start begins serving HTTP requests. It blocks until the server stops
// and returns [http.ErrServerClosed] after [Server.Shutdown].
func (s *Server) Start(ctx context.Context) error {
	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting web server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown closes live connections and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.server.Shutdown(ctx)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// writeJSON encodes v as JSON to w, logging any errors at debug level.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write JSON response", "error", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	_, raw, ok := s.current()
	if !ok {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no snapshot rendered yet",
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(raw); err != nil {
		s.logger.Debug("failed to write snapshot", "error", err)
	}
}

type topicInfo struct {
	Topic   string  `json:"topic"`
	Kind    string  `json:"kind"`
	Divisor float64 `json:"divisor,omitempty"`
	MaxLen  int     `json:"max_len,omitempty"`
	Notify  bool    `json:"notify,omitempty"`
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	fields := telemetry.Fields()
	out := make([]topicInfo, len(fields))
	for i, f := range fields {
		out[i] = topicInfo{
			Topic:   f.Topic,
			Kind:    f.Rule.Kind.String(),
			Divisor: f.Rule.Divisor,
			MaxLen:  f.Rule.MaxLen,
			Notify:  f.Rule.Notify,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	connected := s.connected()
	if !connected {
		status = "degraded"
	}

	body := map[string]any{
		"status":         status,
		"mqtt_connected": connected,
		"live_clients":   s.hub.count(),
		"dropped_frames": s.hub.droppedFrames(),
		"uptime":         buildinfo.Uptime().String(),
	}
	if v, _, ok := s.current(); ok {
		body["last_render"] = v.RenderedAt
		body["stale"] = v.Stale
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, buildinfo.Info())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	_, raw, _ := s.current()
	s.hub.serve(conn, raw)
}
