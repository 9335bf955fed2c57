package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/Mihijito/uvid-api/internal/signal"
	"nhooyr.io/websocket"
)

// Client is one connected participant. Its address is an opaque identifier
// minted at upgrade time and never reused.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	addr string
}

// Addr returns the client's transport address.
func (c *Client) Addr() string { return c.addr }

// Hub indexes live clients by address and by room, and implements the
// router's Sender. Room membership here exists only to support room-scoped
// broadcast; the registry remains the source of truth for who is in a room.
type Hub struct {
	mu       sync.RWMutex
	byAddr   map[string]*Client
	rooms    map[string]map[string]*Client
	memberOf map[string][]string
	conns    *ConnManager
}

// NewHub creates a Hub whose connection manager is configured with opts.
func NewHub(opts ...ConnManagerOption) *Hub {
	return &Hub{
		byAddr:   make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
		memberOf: make(map[string][]string),
		conns:    NewConnManager(opts...),
	}
}

// ConnMgr returns the connection manager for this hub.
func (h *Hub) ConnMgr() *ConnManager {
	return h.conns
}

// addClient registers a client and starts its write pump. The returned
// context is cancelled when the client is removed or the manager shuts
// down; it comes back already cancelled if the connection was rejected.
func (h *Hub) addClient(c *Client) context.Context {
	ctx := h.conns.Add(c)
	if ctx.Err() != nil {
		return ctx
	}
	h.mu.Lock()
	h.byAddr[c.addr] = c
	h.mu.Unlock()
	return ctx
}

// removeClient drops the client from every room it joined and stops its
// write pump.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.byAddr, c.addr)
	for _, roomID := range h.memberOf[c.addr] {
		if members, ok := h.rooms[roomID]; ok {
			delete(members, c.addr)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	delete(h.memberOf, c.addr)
	h.mu.Unlock()

	h.conns.Remove(c)
}

// JoinRoom subscribes addr to room-scoped broadcasts. Unknown addresses are
// ignored.
func (h *Hub) JoinRoom(roomID, addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.byAddr[addr]
	if !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	if _, ok := h.rooms[roomID][addr]; ok {
		return
	}
	h.rooms[roomID][addr] = c
	h.memberOf[addr] = append(h.memberOf[addr], roomID)
}

// SendTo delivers an envelope to one address. If the address is gone the
// message is dropped; delivery is best effort and the caller gets no
// feedback either way.
func (h *Hub) SendTo(addr string, env signal.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("ws: failed to marshal envelope: %v", err)
		return
	}

	h.mu.RLock()
	c, ok := h.byAddr[addr]
	h.mu.RUnlock()
	if !ok {
		log.Printf("ws: no client at %s, dropping %s", addr, env.Type)
		return
	}
	h.conns.Send(c, data)
}

// Broadcast sends an envelope to every member of a room except exclude.
func (h *Hub) Broadcast(roomID, exclude string, env signal.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("ws: failed to marshal envelope: %v", err)
		return
	}

	h.mu.RLock()
	members := h.rooms[roomID]
	// Copy so the lock is released before sending.
	targets := make([]*Client, 0, len(members))
	for addr, c := range members {
		if addr == exclude {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.conns.Send(c, data)
	}
}

// ClientCount returns the number of clients subscribed to a room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Shutdown gracefully closes every connection.
func (h *Hub) Shutdown() {
	h.conns.Shutdown()
}
