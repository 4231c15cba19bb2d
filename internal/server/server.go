// Package server serves the local control panel: the embedded page, a
// websocket feed of tracker updates, the start/stop and endpoint APIs,
// and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shaunagostinho/geotrack/internal/config"
	"github.com/shaunagostinho/geotrack/internal/endpoint"
	"github.com/shaunagostinho/geotrack/internal/metrics"
	"github.com/shaunagostinho/geotrack/internal/storage"
	"github.com/shaunagostinho/geotrack/internal/tracker"
)

// RestartNotice is returned after the endpoint override changes.
const RestartNotice = "Tracking server URL saved. Restart geotrack for the change to take effect."

// Controller is the session the panel drives. *tracker.Tracker satisfies it.
type Controller interface {
	Start(ctx context.Context) bool
	Stop() bool
	Snapshot() tracker.Snapshot
}

// Config holds panel settings.
type Config struct {
	ListenAddr string
	Endpoint   string // Resolved endpoint, shown on the page
}

// Server is the panel HTTP server.
type Server struct {
	cfg    Config
	ctl    Controller
	hub    *Hub
	store  storage.Store
	webFS  fs.FS
	logger zerolog.Logger

	// ctx is the lifetime of sessions started from the panel.
	ctx context.Context

	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates a Server. hub must be the Display the tracker reports to.
func New(cfg Config, ctl Controller, hub *Hub, store storage.Store, webFS fs.FS, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		ctl:    ctl,
		hub:    hub,
		store:  store,
		webFS:  webFS,
		logger: logger.With().Str("component", "server").Logger(),
		ctx:    context.Background(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Post("/api/start", s.handleStart)
	r.Post("/api/stop", s.handleStop)
	r.Get("/api/config", s.handleGetConfig)
	r.Post("/api/config", s.handleSetConfig)
	r.Handle("/metrics", metrics.Handler())

	// Serve embedded web files
	r.Handle("/*", http.FileServer(http.FS(s.webFS)))
	return r
}

// Handler returns the panel router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is done. ln may be nil, in which case the server
// listens on the configured address.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	s.ctx = ctx

	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.cfg.ListenAddr)
		if err != nil {
			return err
		}
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("upgrade error")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	// Register before taking the snapshot so no broadcast is missed. Frames
	// carry absolute values, so one queued ahead of the snapshot is
	// harmless once the snapshot is written first.
	n := s.hub.add(client)
	s.logger.Debug().Int("clients", n).Msg("client connected")

	snap := s.ctl.Snapshot()
	initial, err := json.Marshal(Frame{
		Status:   &snap.Status,
		Controls: &snap.Controls,
		Fix:      snap.Fix,
		Session:  snap.Session,
		Endpoint: s.cfg.Endpoint,
		Stamp:    time.Now().UnixMilli(),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode initial frame")
	}

	// Writer goroutine
	go func() {
		defer conn.Close()
		if initial != nil {
			if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
				return
			}
		}
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive and close detection)
	go func() {
		defer func() {
			n := s.hub.remove(client)
			s.logger.Debug().Int("clients", n).Msg("client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

type sessionResponse struct {
	Status  string           `json:"status"`
	Changed bool             `json:"changed"`
	State   tracker.Snapshot `json:"state"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	changed := s.ctl.Start(s.ctx)
	writeJSON(w, http.StatusOK, sessionResponse{Status: "ok", Changed: changed, State: s.ctl.Snapshot()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	changed := s.ctl.Stop()
	writeJSON(w, http.StatusOK, sessionResponse{Status: "ok", Changed: changed, State: s.ctl.Snapshot()})
}

type configResponse struct {
	Endpoint  string `json:"endpoint"`
	StatusURL string `json:"statusUrl"`
	Override  string `json:"override,omitempty"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	resp := configResponse{
		Endpoint:  s.cfg.Endpoint,
		StatusURL: endpoint.StatusURL(s.cfg.Endpoint),
	}
	if s.store != nil {
		value, found, err := s.store.Get(r.Context(), storage.KeyEndpointURL)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to read stored endpoint")
		} else if found {
			resp.Override = value
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type configRequest struct {
	URL string `json:"url"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Status: "error", Message: "bad request"})
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Status: "error", Message: "no settings store"})
		return
	}

	saved, err := endpoint.Configure(r.Context(), s.store, req.URL)
	if errors.Is(err, config.ErrInvalidURL) {
		writeJSON(w, http.StatusBadRequest, messageResponse{Status: "error", Message: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("endpoint update failed")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Status: "error", Message: err.Error()})
		return
	}
	s.logger.Info().Str("url", saved).Msg("endpoint override saved")
	writeJSON(w, http.StatusOK, messageResponse{Status: "ok", Message: RestartNotice, URL: saved})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
