package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shaunagostinho/geotrack/internal/tracker"
)

// Frame is the JSON structure sent to all WebSocket clients.
type Frame struct {
	Status   *tracker.Status   `json:"status,omitempty"`
	Controls *tracker.Controls `json:"controls,omitempty"`
	Fix      *tracker.Reading  `json:"fix,omitempty"`
	Session  string            `json:"session,omitempty"`
	Endpoint string            `json:"endpoint,omitempty"`
	Stamp    int64             `json:"stamp"` // Unix ms
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a tracker.Display that pushes every update to the connected
// panel pages.
type Hub struct {
	logger zerolog.Logger

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex
}

var _ tracker.Display = (*Hub)(nil)

// NewHub creates a Hub with no clients.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:  logger.With().Str("component", "ws").Logger(),
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *Hub) ShowFix(r tracker.Reading) {
	h.broadcast(Frame{Fix: &r})
}

func (h *Hub) ShowStatus(s tracker.Status) {
	h.broadcast(Frame{Status: &s})
}

func (h *Hub) ShowControls(c tracker.Controls) {
	h.broadcast(Frame{Controls: &c})
}

// Clients returns the number of connected pages.
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.clients[c] = struct{}{}
	return len(h.clients)
}

// remove unregisters c and closes its send queue.
func (h *Hub) remove(c *wsClient) int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	return len(h.clients)
}

func (h *Hub) broadcast(frame Frame) {
	if frame.Stamp == 0 {
		frame.Stamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode frame")
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
