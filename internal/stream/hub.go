// Package stream pushes swarm snapshots to websocket clients.
package stream

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Hub keeps the connected clients and broadcasts snapshots to them as JSON
// text frames.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   log.Logger
}

func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends snap to every client. Clients that fail the write are dropped.
func (h *Hub) Broadcast(snap *structpb.Struct) error {
	payload, err := protojson.Marshal(snap)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warnf("dropping stream client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

// Handler upgrades requests to websocket connections and keeps them
// registered until the client goes away. Messages from clients are ignored.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warnf("websocket upgrade failed: %v", err)
			return
		}
		h.add(conn)
		defer h.remove(conn)
		h.logger.Infof("stream client %s connected", conn.RemoteAddr())

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.logger.Debugf("stream client %s gone: %v", conn.RemoteAddr(), err)
				return
			}
		}
	}
}
