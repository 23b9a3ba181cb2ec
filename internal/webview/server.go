// Package webview serves the live view over HTTP: the latest frame as JSON,
// a websocket stream of frames, and the Prometheus metrics.
package webview

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/radarmon/internal/errors"
	"github.com/rileyhilliard/radarmon/internal/logger"
	"github.com/rileyhilliard/radarmon/internal/monitor"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
}

// envelope is the websocket message shape.
type envelope struct {
	Type    string       `json:"type"`
	Payload monitor.View `json:"payload"`
}

// Server is a monitor.Display that publishes views over HTTP.
type Server struct {
	hub      *Hub
	router   chi.Router
	log      logger.Logger
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	latest    []byte
	tick      uint64
	sources   int
	connected int
}

// New builds the router. Call Start (or ListenAndServe) before serving
// websocket clients.
func New(opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewEnvLogger("[web]")
	}

	s := &Server{
		hub:      NewHub(opts.Logger),
		log:      opts.Logger,
		gatherer: opts.Gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Read-only local dashboard; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/view", s.handleView)
	r.Get("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Update stores v as the latest frame and pushes it to websocket clients.
func (s *Server) Update(v monitor.View) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encoding view %d: %v", v.Tick, err)
		return
	}
	msg, err := json.Marshal(envelope{Type: "view", Payload: v})
	if err != nil {
		s.log.Error("encoding view %d: %v", v.Tick, err)
		return
	}

	s.mu.Lock()
	s.latest = body
	s.tick = v.Tick
	s.sources = len(v.Series)
	s.connected = v.Connected()
	s.mu.Unlock()

	s.hub.Broadcast(msg)
}

// Start runs the websocket hub until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
}

// Listen opens the TCP listener for addr.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't listen on "+addr,
			"Pick a free port with --listen, e.g. --listen :9100")
	}
	return ln, nil
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start(ctx)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web view listening on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrStream, "Web view stopped unexpectedly", "")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("web view shutdown: %v", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	body := map[string]any{
		"status":    "ok",
		"tick":      s.tick,
		"sources":   s.sources,
		"connected": s.connected,
		"clients":   s.hub.Clients(),
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	body := s.latest
	s.mu.RUnlock()

	if body == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no view rendered yet"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	client := newClient(s.hub, conn)
	if !s.hub.add(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("%s %s %d %s [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
