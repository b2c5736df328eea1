package handler

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hookmaster/hookmaster/internal/analyze"
	"github.com/hookmaster/hookmaster/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	Store    store.Store
	Analyzer *analyze.Client

	clients   map[string][]*websocket.Conn // endpointID -> subscribed connections
	clientsMu sync.RWMutex
}

func NewHandler(s store.Store, a *analyze.Client) *Handler {
	return &Handler{
		Store:    s,
		Analyzer: a,
		clients:  make(map[string][]*websocket.Conn),
	}
}

// Broadcast pushes a freshly captured request to every connection watching
// its endpoint. The feed is advisory: the polling API is the authoritative
// read path, so a dropped connection is just pruned.
func (h *Handler) Broadcast(endpointID string, req *store.CapturedRequest) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	clients := h.clients[endpointID]
	for i := len(clients) - 1; i >= 0; i-- {
		conn := clients[i]
		err := conn.WriteJSON(map[string]any{
			"type":    "new-request",
			"payload": req,
		})
		if err != nil {
			clients = append(clients[:i], clients[i+1:]...)
			conn.Close()
		}
	}
	h.clients[endpointID] = clients
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
