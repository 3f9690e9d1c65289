// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package admin

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sage-x-project/meshnet/internal/logger"
)

// Event is one notification pushed to connected operator clients, e.g. a
// message accepted into a community or a community being destroyed. ID
// lets an operator correlate or dedup events across reconnects; callers
// normally leave it empty and let Broadcast assign one.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Community string      `json:"community,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// EventHub fans out Events to every connected /ws/events client.
type EventHub struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub(log logger.Logger) *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler upgrades a request to a WebSocket and registers it as an event
// subscriber until the client disconnects.
func (h *EventHub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}

		h.add(conn)
		defer h.remove(conn)
		defer conn.Close()

		// The only traffic on this connection is server-to-client events;
		// block here until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// Broadcast sends ev to every connected client, dropping any connection
// that fails to accept a write within a short deadline.
func (h *EventHub) Broadcast(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteJSON(ev); err != nil {
			if h.log != nil {
				h.log.Warn("admin: dropping event subscriber", logger.Error(err))
			}
			h.remove(c)
			c.Close()
		}
	}
}

// Subscribers reports how many clients are currently connected.
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *EventHub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *EventHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}
