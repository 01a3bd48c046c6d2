// Package broadcast fans task and history events out to connected viewers
// over websockets and tracks who is currently viewing the list.
package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mtlprog/tasksync/internal/domain"
)

// Forwarder ships encoded frames to other server instances.
type Forwarder interface {
	Forward(ctx context.Context, frame []byte) error
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithForwarder relays every published frame to other instances.
func WithForwarder(f Forwarder) HubOption {
	return func(h *Hub) {
		h.forwarder = f
	}
}

// WithSendBuffer sets the per-client queue length. Clients whose queue
// is full when a frame arrives are disconnected.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

const defaultSendBuffer = 64

// Hub owns the set of connected clients and the presence map.
// It implements service.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	viewers map[string]domain.Viewer

	forwarder  Forwarder
	sendBuffer int
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		viewers:    make(map[string]domain.Viewer),
		sendBuffer: defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish encodes the event, delivers it to local clients and forwards it
// to other instances. Failures are logged and never returned.
func (h *Hub) Publish(ctx context.Context, event domain.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode broadcast event", "event", event.Name, "error", err)
		return
	}

	h.Deliver(frame)

	if h.forwarder == nil {
		return
	}
	if err := h.forwarder.Forward(ctx, frame); err != nil {
		slog.Warn("failed to forward broadcast event", "event", event.Name, "error", err)
	}
}

// Deliver sends an already encoded frame to local clients only.
func (h *Hub) Deliver(frame []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(frame) {
			slog.Warn("dropping slow viewer", "client_id", c.id)
			h.remove(c)
		}
	}
}

// Attach registers a websocket connection with the hub and starts its pumps.
// The connection is closed when the client disconnects or falls behind.
func (h *Hub) Attach(conn *websocket.Conn) *Client {
	c := newClient(h, conn, h.sendBuffer)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	slog.Debug("viewer connected", "client_id", c.id, "remote_addr", conn.RemoteAddr().String())

	go c.writePump()
	go c.readPump()
	return c
}

// remove unregisters the client, closes its connection and, if the client
// had joined, announces the new presence list.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, registered := h.clients[c]
	delete(h.clients, c)
	_, joined := h.viewers[c.id]
	delete(h.viewers, c.id)
	h.mu.Unlock()

	c.close()

	if registered {
		slog.Debug("viewer disconnected", "client_id", c.id)
	}
	if joined {
		h.announcePresence()
	}
}

func (h *Hub) join(c *Client, username string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	h.viewers[c.id] = domain.Viewer{ID: c.id, Username: username}
	h.mu.Unlock()

	slog.Info("viewer joined", "client_id", c.id, "username", username)
	h.announcePresence()
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	viewer, ok := h.viewers[c.id]
	delete(h.viewers, c.id)
	h.mu.Unlock()

	if !ok {
		return
	}
	slog.Info("viewer left", "client_id", c.id, "username", viewer.Username)
	h.announcePresence()
}

// announcePresence sends the full viewer list to local clients. Presence is
// per-instance, so it is not forwarded.
func (h *Hub) announcePresence() {
	frame, err := json.Marshal(domain.NewPresenceChangedEvent(h.Viewers()))
	if err != nil {
		slog.Error("failed to encode presence event", "error", err)
		return
	}
	h.Deliver(frame)
}

// Viewers returns the joined viewers ordered by username, then id.
func (h *Hub) Viewers() []domain.Viewer {
	h.mu.RLock()
	viewers := make([]domain.Viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.RUnlock()

	sort.Slice(viewers, func(i, j int) bool {
		if viewers[i].Username != viewers[j].Username {
			return viewers[i].Username < viewers[j].Username
		}
		return viewers[i].ID < viewers[j].ID
	})
	return viewers
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.viewers = make(map[string]domain.Viewer)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
