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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chimera/platform/shared/logger"
)

func TestLogHubStreamsEntries(t *testing.T) {
	h := &LogHub{clients: make(map[*logClient]bool)}
	srv := httptest.NewServer(http.HandlerFunc(h.HandleLogs))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Wait for the hub to register the client before broadcasting.
	require.Eventually(t, func() bool { return h.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	h.Broadcast(logger.LogEntry{
		Level:     logger.INFO,
		Component: "dispatcher",
		Message:   "job executed",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var entry logger.LogEntry
	require.NoError(t, conn.ReadJSON(&entry))
	assert.Equal(t, "dispatcher", entry.Component)
	assert.Equal(t, "job executed", entry.Message)
}

func TestLogHubBroadcastWithoutClients(t *testing.T) {
	h := &LogHub{clients: make(map[*logClient]bool)}

	// Broadcasting with nobody connected must not block or panic.
	h.Broadcast(logger.LogEntry{Level: logger.INFO, Message: "idle"})
	assert.Equal(t, 0, h.ClientCount())
}

func TestLogHubDropsWhenClientBufferFull(t *testing.T) {
	h := &LogHub{clients: make(map[*logClient]bool)}
	client := &logClient{send: make(chan logger.LogEntry, 1)}
	h.register(client)

	h.Broadcast(logger.LogEntry{Message: "first"})
	h.Broadcast(logger.LogEntry{Message: "second"})

	select {
	case entry := <-client.send:
		assert.Equal(t, "first", entry.Message)
	case <-time.After(time.Second):
		t.Fatal("expected a buffered entry")
	}
	// The overflow entry was dropped, not queued.
	select {
	case entry := <-client.send:
		t.Fatalf("unexpected second entry: %s", entry.Message)
	default:
	}
}

func TestLogHubUnregisterClosesChannel(t *testing.T) {
	h := &LogHub{clients: make(map[*logClient]bool)}
	client := &logClient{send: make(chan logger.LogEntry, 1)}
	h.register(client)
	require.Equal(t, 1, h.ClientCount())

	h.unregister(client)
	assert.Equal(t, 0, h.ClientCount())

	_, open := <-client.send
	assert.False(t, open)

	// Unregistering twice is a no-op.
	h.unregister(client)
}
