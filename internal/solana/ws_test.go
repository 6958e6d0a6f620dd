package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// logsServer accepts a logsSubscribe, confirms it and pushes one notification
// per connection. When dropFirst is set the first connection closes right after.
func logsServer(t *testing.T, dropFirst bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()
		n := conns.Add(1)

		var req wsRequest
		if err := c.ReadJSON(&req); err != nil {
			return
		}
		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", req.Method)
		}
		filter, _ := json.Marshal(req.Params[0])
		if !strings.Contains(string(filter), "MintA") {
			t.Errorf("expected mentions filter with MintA, got %s", filter)
		}

		_ = c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 42})
		if dropFirst && n == 1 {
			return
		}
		_ = c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "logsNotification",
			"params": map[string]interface{}{
				"subscription": 42,
				"result": map[string]interface{}{
					"context": map[string]interface{}{"slot": 777},
					"value": map[string]interface{}{
						"signature": "sigNew",
						"err":       nil,
						"logs":      []string{"Program log: Instruction: Transfer"},
					},
				},
			},
		})

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, &conns
}

func TestLogsWatcher_DeliversNotifications(t *testing.T) {
	server, _ := logsServer(t, false)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := NewLogsWatcher(wsURL, nil, nil).Watch(ctx, "MintA")

	select {
	case n := <-ch:
		assert.Equal(t, "sigNew", n.Signature)
		assert.Equal(t, int64(777), n.Slot)
		assert.Len(t, n.Logs, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	cancel()
	for range ch {
	}
}

func TestLogsWatcher_Resubscribes(t *testing.T) {
	server, conns := logsServer(t, true)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := NewLogsWatcher(wsURL, &cfg, nil).Watch(ctx, "MintA")

	select {
	case n := <-ch:
		assert.Equal(t, "sigNew", n.Signature)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification after reconnect")
	}
	require.GreaterOrEqual(t, conns.Load(), int32(2))
}
