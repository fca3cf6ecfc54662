package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// DefaultBroadcastTimeout is the default timeout for sending an event to a
// client. A client that doesn't drain its outgoing buffer within this time
// is pruned.
const DefaultBroadcastTimeout = 5 * time.Second

// BroadcastHub tracks connected clients and fans events out to all of them.
// It is safe for concurrent use from connection goroutines and the sweeper.
type BroadcastHub struct {
	mu               sync.RWMutex
	conns            map[*ClientConn]struct{}
	broadcastTimeout time.Duration
	log              *slog.Logger
}

// NewBroadcastHub creates a hub with the default broadcast timeout.
func NewBroadcastHub(log *slog.Logger) *BroadcastHub {
	return NewBroadcastHubWithTimeout(log, DefaultBroadcastTimeout)
}

// NewBroadcastHubWithTimeout creates a hub with a custom broadcast timeout.
func NewBroadcastHubWithTimeout(log *slog.Logger, timeout time.Duration) *BroadcastHub {
	if log == nil {
		log = slog.Default()
	}
	return &BroadcastHub{
		conns:            make(map[*ClientConn]struct{}),
		broadcastTimeout: timeout,
		log:              log,
	}
}

// Add registers a connection for broadcasts.
func (h *BroadcastHub) Add(c *ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Remove deregisters a connection. Safe to call for an already removed
// connection.
func (h *BroadcastHub) Remove(c *ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// ClientCount returns the number of registered connections.
func (h *BroadcastHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast encodes event once and enqueues it on every registered
// connection. Delivery is best-effort: a connection whose outgoing buffer
// stays full past the broadcast timeout is closed and removed, so one slow
// client never stalls the rest. Returns the number of clients reached.
func (h *BroadcastHub) Broadcast(event any) int {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to encode broadcast event", "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*ClientConn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	var failed []*ClientConn
	for _, c := range targets {
		if c.enqueue(data, h.broadcastTimeout) {
			sent++
		} else {
			failed = append(failed, c)
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, c := range failed {
			delete(h.conns, c)
		}
		h.mu.Unlock()
		for _, c := range failed {
			h.log.Warn("pruning slow client", "conn", c.ID)
			c.Close()
		}
	}
	return sent
}
