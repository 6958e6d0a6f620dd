package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// LogNotification is one logsNotification mentioning the watched address.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}

// WSConfig configures a LogsWatcher.
type WSConfig struct {
	ReconnectDelay    time.Duration // initial delay before reconnecting
	MaxReconnectDelay time.Duration // cap for the doubling reconnect delay
	PingInterval      time.Duration // interval for ping frames
	WriteTimeout      time.Duration // deadline for writes
	Commitment        string        // subscription commitment level
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		WriteTimeout:      10 * time.Second,
		Commitment:        "confirmed",
	}
}

// LogsWatcher keeps a logsSubscribe(mentions: address) subscription open,
// reconnecting and resubscribing after connection loss.
type LogsWatcher struct {
	endpoint string
	config   WSConfig
	logger   logrus.FieldLogger
}

// NewLogsWatcher creates a watcher for a WebSocket RPC endpoint.
func NewLogsWatcher(endpoint string, config *WSConfig, logger logrus.FieldLogger) *LogsWatcher {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogsWatcher{endpoint: endpoint, config: cfg, logger: logger}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsMessage struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Subscription int64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Watch streams notifications mentioning address until ctx ends, then
// closes the returned channel. Notifications are dropped when the consumer
// lags, since they only wake the poller early.
func (w *LogsWatcher) Watch(ctx context.Context, address string) <-chan LogNotification {
	out := make(chan LogNotification, 64)
	go func() {
		defer close(out)
		delay := w.config.ReconnectDelay
		for {
			err := w.session(ctx, address, out, func() { delay = w.config.ReconnectDelay })
			if ctx.Err() != nil {
				return
			}
			w.logger.WithFields(logrus.Fields{
				"address":  address,
				"retry_in": delay,
			}).Warnf("logs subscription dropped: %v", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > w.config.MaxReconnectDelay {
				delay = w.config.MaxReconnectDelay
			}
		}
	}()
	return out
}

// session runs one connection: dial, subscribe, read until failure.
func (w *LogsWatcher) session(ctx context.Context, address string, out chan<- LogNotification, subscribed func()) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON on cancellation.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(w.config.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				deadline := time.Now().Add(w.config.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string]interface{}{"mentions": []string{address}},
			map[string]string{"commitment": w.config.Commitment},
		},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		switch {
		case msg.ID != nil && msg.Error != nil:
			return fmt.Errorf("subscribe: %w", msg.Error)
		case msg.ID != nil:
			subscribed()
			w.logger.WithField("address", address).Debug("logs subscription active")
		case msg.Method == "logsNotification" && msg.Params != nil:
			n := LogNotification{
				Signature: msg.Params.Result.Value.Signature,
				Slot:      msg.Params.Result.Context.Slot,
				Logs:      msg.Params.Result.Value.Logs,
				Err:       msg.Params.Result.Value.Err,
			}
			select {
			case out <- n:
			default:
			}
		}
	}
}
