package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"github.com/Mihijito/uvid-api/internal/signal"
	"nhooyr.io/websocket"
)

// Handler upgrades HTTP requests to WebSockets and runs each connection's
// read loop, dispatching decoded envelopes to the signaling router. Events
// from one connection are handled in arrival order; no ordering exists
// across connections.
type Handler struct {
	hub    *Hub
	router *signal.Router
}

// NewHandler creates a WebSocket Handler.
func NewHandler(hub *Hub, router *signal.Router) *Handler {
	return &Handler{
		hub:    hub,
		router: router,
	}
}

// ServeHTTP upgrades the connection, assigns it a fresh address and reads
// envelopes until the client goes away. Leaving the read loop for any
// reason runs the disconnect path, so a dropped TCP connection and an
// explicit disconnect-user event converge on the same cleanup.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow all origins in dev; tighten in production.
	})
	if err != nil {
		log.Printf("ws: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &Client{
		conn: conn,
		addr: generateAddr(),
	}

	connCtx := h.hub.addClient(client)
	if connCtx.Err() != nil {
		return
	}
	defer func() {
		h.hub.removeClient(client)
		h.router.Disconnect(client.addr)
	}()

	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(r.Context())
		if err != nil {
			// Normal close or context cancelled.
			return
		}

		h.hub.ConnMgr().TouchActivity(client)

		var env signal.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		h.router.HandleEvent(client.addr, env)
	}
}

// generateAddr mints an opaque transport address for one connection.
func generateAddr() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
