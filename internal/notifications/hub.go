package notifications

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"

	"devshelf/internal/observability"

	"github.com/gofiber/websocket/v2"
	cmap "github.com/orcaman/concurrent-map/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// Hub maps a user id to that user's open websocket clients.
// Client slices stored in the map are never mutated in place.
type Hub struct {
	conns      cmap.ConcurrentMap[uint, []*Client]
	totalConns atomic.Int64
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "notification hub" }

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns: cmap.NewWithCustomShardingFunction[uint, []*Client](func(id uint) uint32 {
			return uint32(id)
		}),
	}
}

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	if h.totalConns.Add(1) > maxTotalConns {
		h.totalConns.Add(-1)
		return nil, ErrServerFull
	}

	client := NewClient(h, conn, userID)
	var full bool
	h.conns.Upsert(userID, nil, func(exists bool, current, _ []*Client) []*Client {
		if len(current) >= maxConnsPerUser {
			full = true
			return current
		}
		return append(slices.Clip(current), client)
	})
	if full {
		h.totalConns.Add(-1)
		return nil, ErrUserFull
	}

	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// UnregisterClient removes client from the hub. Unknown clients are ignored.
func (h *Hub) UnregisterClient(client *Client) {
	var removed bool
	h.conns.Upsert(client.UserID, nil, func(exists bool, current, _ []*Client) []*Client {
		i := slices.Index(current, client)
		if i < 0 {
			return current
		}
		removed = true
		return slices.Delete(slices.Clone(current), i, i+1)
	})
	h.conns.RemoveCb(client.UserID, func(_ uint, v []*Client, exists bool) bool {
		return exists && len(v) == 0
	})
	if removed {
		h.totalConns.Add(-1)
		observability.WebSocketConnectionsTotal.Dec()
	}
}

// Broadcast sends message to all connections for userID.
func (h *Hub) Broadcast(userID uint, message string) int {
	clients, ok := h.conns.Get(userID)
	if !ok {
		return 0
	}
	data := []byte(message)
	for _, c := range clients {
		c.TrySend(data)
	}
	return len(clients)
}

// IsOnline reports whether a user currently has at least one open connection.
func (h *Hub) IsOnline(userID uint) bool {
	clients, ok := h.conns.Get(userID)
	return ok && len(clients) > 0
}

// ConnectionCount returns the number of registered clients.
func (h *Hub) ConnectionCount() int {
	return int(h.totalConns.Load())
}

// StartWiring forwards every message published through n to the matching
// user's connections on this instance.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, func(userID uint, payload string) {
		h.Broadcast(userID, payload)
	})
}

// Shutdown closes every client's send queue so its write pump sends a close
// frame and drops the connection.
func (h *Hub) Shutdown(_ context.Context) error {
	for item := range h.conns.IterBuffered() {
		for _, client := range item.Val {
			client.Close()
		}
		h.conns.Remove(item.Key)
	}
	h.totalConns.Store(0)
	observability.WebSocketConnectionsTotal.Set(0)
	return nil
}
