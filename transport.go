/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServerEvent is the envelope for every server-to-client frame.
type ServerEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// ClientEnvelope is the envelope for every client-to-server frame.
type ClientEnvelope struct {
	Type    string  `json:"type"` // "create_room", "join_room", "action"
	Variant string  `json:"variant,omitempty"`
	RoomID  string  `json:"room_id,omitempty"`
	Action  *Action `json:"action,omitempty"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan ServerEvent
	connID   string
	username string
	roomID   string // set once joined, read/written under Hub.mu
}

// Hub tracks every live connection and implements the Sender contract.
// Unlike a per-game hub, one Hub serves the whole process; clients are
// grouped by the room they joined.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID -> client
}

func newHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c.connID] = c
	h.mu.Unlock()
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.connID]; ok && cur == c {
		delete(h.clients, c.connID)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) setRoom(connID, roomID string) {
	h.mu.Lock()
	if c, ok := h.clients[connID]; ok {
		c.roomID = roomID
	}
	h.mu.Unlock()
}

// Broadcast fans an event out to every connected client of a room. Slow
// consumers are dropped rather than allowed to stall the room.
func (h *Hub) Broadcast(roomID string, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		if c.roomID != roomID {
			continue
		}
		select {
		case c.send <- ServerEvent{Event: event, Payload: payload}:
		default:
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// Send delivers an event to a single connection, if still present.
func (h *Hub) Send(connID string, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.send <- ServerEvent{Event: event, Payload: payload}:
	default:
		delete(h.clients, connID)
		close(c.send)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(cfg *Config, hub *Hub, reg *Registry) {
	defer func() {
		reg.Leave(c.connID)
		hub.drop(c)
		_ = c.conn.Close()
	}()

	for {
		var env ClientEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		switch env.Type {
		case "create_room":
			roomID, err := reg.CreateRoom(c.connID, c.username, env.Variant)
			if err != nil {
				hub.Send(c.connID, "error", map[string]string{"message": err.Error()})
				continue
			}
			hub.Send(c.connID, "room_created", map[string]string{"room_id": roomID})

		case "join_room":
			if err := reg.Join(c.connID, env.RoomID, c.username); err != nil {
				hub.Send(c.connID, "error", map[string]string{"message": err.Error()})
			}

		case "action":
			if env.Action == nil {
				hub.Send(c.connID, "error", map[string]string{"message": "missing action"})
				continue
			}
			reg.Dispatch(c.connID, env.RoomID, env.Action)

		default:
			hub.Send(c.connID, "error", map[string]string{"message": "unknown message type"})
		}
	}
}

// serveWS upgrades the connection, verifies the display name, and runs the
// pumps. Identity is resolved before the upgrade so rejections stay plain
// HTTP errors.
func serveWS(cfg *Config, hub *Hub, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		username, err := verifyDisplayName(cfg, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: Websocket upgrade failed for %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan ServerEvent, 16),
			connID:   uuid.NewString(),
			username: username,
		}

		hub.add(client)
		logf(cfg, "ROOMS: Connection %s opened for %q", client.connID, username)

		go client.writePump()
		client.readPump(cfg, hub, reg)
	}
}
