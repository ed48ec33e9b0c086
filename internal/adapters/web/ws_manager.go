// Package web serves the operator HTTP API and websocket event stream.
package web

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Operator UI is same-origin; reject cross-origin upgrades.
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	},
}

// WSMessage is the envelope for every broadcast frame.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSManager fans protocol events out to connected websocket clients.
type WSManager struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWSManager creates an empty manager.
func NewWSManager() *WSManager {
	return &WSManager{clients: make(map[*websocket.Conn]struct{})}
}

// HandleWebSocket upgrades the connection and registers the client.
func (m *WSManager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()

	// Drain (and discard) client frames so pings keep flowing; drop the
	// client on first read error.
	go func() {
		defer m.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *WSManager) drop(conn *websocket.Conn) {
	m.mu.Lock()
	delete(m.clients, conn)
	m.mu.Unlock()
	conn.Close()
}

func (m *WSManager) broadcast(msg WSMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		if err := conn.WriteJSON(msg); err != nil {
			delete(m.clients, conn)
			conn.Close()
		}
	}
}

// TrackUpdated implements ports.EventSink.
func (m *WSManager) TrackUpdated(macHash crypto.H256, state domain.DeviceState) {
	m.broadcast(WSMessage{
		Type: "track_updated",
		Payload: map[string]interface{}{
			"mac_hash": macHash.Hex(),
			"state":    state.String(),
		},
	})
}

// ScanRevealed implements ports.EventSink.
func (m *WSManager) ScanRevealed(reporter domain.ReporterID, block uint64, merkleRoot crypto.H256) {
	m.broadcast(WSMessage{
		Type: "scan_revealed",
		Payload: map[string]interface{}{
			"reporter":    reporter,
			"block":       block,
			"merkle_root": merkleRoot.Hex(),
		},
	})
}
