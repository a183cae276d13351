// Copyright 2025 Chimera Labs
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chimera/platform/shared/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LogHub fans structured log entries out to WebSocket subscribers. It
// registers itself as a logger broadcast hook; a slow subscriber drops
// entries rather than blocking the logger.
type LogHub struct {
	mu      sync.RWMutex
	clients map[*logClient]bool
}

type logClient struct {
	conn *websocket.Conn
	send chan logger.LogEntry
}

// NewLogHub creates a hub and subscribes it to the structured logger.
func NewLogHub() *LogHub {
	h := &LogHub{clients: make(map[*logClient]bool)}
	logger.RegisterBroadcast(h.Broadcast)
	return h
}

// Broadcast delivers one entry to every connected client. Entries for
// clients with full buffers are dropped.
func (h *LogHub) Broadcast(entry logger.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- entry:
		default:
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *LogHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleLogs upgrades the connection and streams log entries until the
// client disconnects.
func (h *LogHub) HandleLogs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[LogHub] WebSocket upgrade failed: %v", err)
		return
	}

	client := &logClient{
		conn: conn,
		send: make(chan logger.LogEntry, 256),
	}
	h.register(client)
	log.Printf("[LogHub] Client connected (%d active)", h.ClientCount())

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *LogHub) register(c *logClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *LogHub) unregister(c *logClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// readLoop drains client frames so pings and close messages are
// processed. Any read error ends the session.
func (h *LogHub) readLoop(c *logClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LogHub) writeLoop(c *logClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case entry, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(entry); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
