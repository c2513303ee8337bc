// Package web serves the observability surface beside the tarpit:
// health and JSON snapshots, Prometheus metrics, and a live websocket
// stream of connection events.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gotarpit/config"
	tperr "gotarpit/internal/errors"
	"gotarpit/internal/events"
	"gotarpit/internal/registry"
	"gotarpit/internal/stats"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 5 * time.Second
	wsWriteTimeout    = 10 * time.Second
)

// Server is the HTTP API server. It is optional: the daemon only runs
// one when an HTTP address is configured.
type Server struct {
	addr      string
	store     *config.Store
	registry  *registry.Registry
	collector *stats.Collector
	bus       *events.Broadcaster
	logger    *slog.Logger

	router     chi.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
}

// NewServer wires the API routes. bus may be nil, in which case the
// event stream endpoint reports that streaming is unavailable.
func NewServer(addr string, store *config.Store, reg *registry.Registry, collector *stats.Collector, bus *events.Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		addr:      addr,
		store:     store,
		registry:  reg,
		collector: collector,
		bus:       bus,
		logger:    logger.With("component", "web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is an operator surface, typically loopback-bound;
			// dashboards served from elsewhere may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/config", s.handleConfig)
	r.Get("/api/clients", s.handleClients)
	r.Get("/api/events", s.handleEvents)
	r.Handle("/metrics", promhttp.HandlerFor(newMetrics(collector, reg), promhttp.HandlerOpts{}))
	s.router = r

	// Read and write timeouts stay unset: the event stream holds its
	// connection open indefinitely and paces writes with per-message
	// deadlines instead.
	s.httpServer = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address, or nil before Run binds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run binds and serves until the context is cancelled or the server
// fails. Cancellation drains in-flight requests before returning.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return tperr.Wrap("listen", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("http api listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops the server, draining ordinary requests for up to
// shutdownTimeout. Hijacked websocket connections are wound down by
// their own handlers when the event bus closes.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("http api stopped")
	return nil
}

// ── Handlers ─────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n")) //nolint:errcheck
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

// configView is the wire shape of /api/config. Durations render as
// strings, the listener address pre-joined.
type configView struct {
	Addr          string `json:"addr"`
	Family        string `json:"family"`
	MaxClients    int    `json:"max_clients"`
	MaxLineLength int    `json:"max_line_length"`
	DelayMin      string `json:"delay_min"`
	DelayMax      string `json:"delay_max"`
	Enabled       bool   `json:"enabled"`
	HTTPAddress   string `json:"http,omitempty"`
	StatsInterval string `json:"stats_interval"`
	LogLevel      string `json:"log_level"`
	LogFormat     string `json:"log_format"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := s.store.Load()
	writeJSON(w, http.StatusOK, configView{
		Addr:          cfg.Addr(),
		Family:        cfg.Family,
		MaxClients:    cfg.MaxClients,
		MaxLineLength: cfg.MaxLineLength,
		DelayMin:      cfg.DelayMin.String(),
		DelayMax:      cfg.DelayMax.String(),
		Enabled:       cfg.Enabled,
		HTTPAddress:   cfg.HTTPAddress,
		StatsInterval: cfg.StatsInterval.String(),
		LogLevel:      cfg.LogLevel,
		LogFormat:     cfg.LogFormat,
	})
}

type clientView struct {
	ID          uint64  `json:"id"`
	RemoteAddr  string  `json:"remote_addr"`
	AcceptedAt  string  `json:"accepted_at"`
	HeldSeconds float64 `json:"held_seconds"`
}

type clientsView struct {
	Count   int          `json:"count"`
	Clients []clientView `json:"clients"`
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	snap := s.registry.Snapshot()
	now := time.Now()
	out := clientsView{Count: len(snap), Clients: make([]clientView, 0, len(snap))}
	for _, ref := range snap {
		out.Clients = append(out.Clients, clientView{
			ID:          ref.ID,
			RemoteAddr:  ref.RemoteAddr,
			AcceptedAt:  ref.AcceptedAt.UTC().Format(time.RFC3339),
			HeldSeconds: now.Sub(ref.AcceptedAt).Seconds(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEvents upgrades to a websocket and forwards lifecycle events
// as JSON until the client leaves or the bus closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "event streaming disabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe()
	defer cancel()

	// Reads only serve to notice the peer hanging up.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("event stream opened", "remote", r.RemoteAddr)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage, //nolint:errcheck
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)) //nolint:errcheck
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("event stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		case <-gone:
			s.logger.Debug("event stream closed by client", "remote", r.RemoteAddr)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}
