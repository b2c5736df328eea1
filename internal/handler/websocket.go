package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocket subscribes the caller to live captures for one endpoint. New
// records arrive as {"type":"new-request","payload":{...}} frames.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	endpointID := chi.URLParam(r, "endpointID")
	if endpointID == "" {
		http.Error(w, "missing endpoint ID", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	h.clientsMu.Lock()
	h.clients[endpointID] = append(h.clients[endpointID], conn)
	h.clientsMu.Unlock()

	defer func() {
		h.clientsMu.Lock()
		clients := h.clients[endpointID]
		for i, c := range clients {
			if c == conn {
				h.clients[endpointID] = append(clients[:i], clients[i+1:]...)
				break
			}
		}
		h.clientsMu.Unlock()
		conn.Close()
	}()

	// Drain the connection so pings and close frames are handled.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("endpoint", endpointID).Msg("websocket closed")
			}
			break
		}
	}
}
