// Package websocket implements the real-time sync relay. Clients join a room
// per project; mutation events from one client are forwarded verbatim to every
// other client in the same room. The relay holds no history: a client that
// joins late reconciles through the persisted diagram, not through replay.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"schemacanvas-backend/domain/events"
	"schemacanvas-backend/pkg/observability"
)

// Presence frame types emitted by the relay itself.
const (
	TypeRoomJoined = "ROOM_JOINED"
	TypeRoomLeft   = "ROOM_LEFT"
)

// Forwarder mirrors relayed events to an external bus. Optional; the relay
// works without one.
type Forwarder interface {
	Forward(ctx context.Context, m events.Mutation)
}

// relayedMessage is a raw frame queued for fan-out to a room.
type relayedMessage struct {
	projectID string
	sender    *Client
	payload   []byte
}

type presenceFrame struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
	ActorID   string `json:"actorId"`
	Timestamp int64  `json:"timestamp"`
}

// Hub maintains active connections grouped into per-project rooms and fans
// mutation frames out to room peers.
type Hub struct {
	rooms map[string]map[*Client]bool // projectID -> set of clients
	mu    sync.RWMutex

	register   chan *Client
	unregister chan *Client
	relay      chan *relayedMessage

	ctx    context.Context
	cancel context.CancelFunc

	forwarder Forwarder
	metrics   *observability.Collector
	logger    *zap.Logger
}

// NewHub creates a relay hub. forwarder may be nil.
func NewHub(forwarder Forwarder, metrics *observability.Collector, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		relay:      make(chan *relayedMessage, 1000),
		ctx:        ctx,
		cancel:     cancel,
		forwarder:  forwarder,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run starts the hub's main event loop.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("relay hub shutting down")
			h.closeAllConnections()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.relay:
			h.fanOut(message)

		case <-ticker.C:
			h.logRoomStats()
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() {
	h.cancel()
}

// Relay validates an inbound frame and queues it for fan-out. Unknown event
// types are logged and dropped without disturbing the connection; recognized
// frames are forwarded verbatim, byte for byte.
func (h *Hub) Relay(sender *Client, payload []byte) {
	m, err := events.Decode(payload)
	if err != nil {
		if errors.Is(err, events.ErrUnknownEventType) {
			h.logger.Debug("ignoring unknown event type",
				zap.String("project_id", sender.projectID),
				zap.Error(err),
			)
			return
		}
		h.logger.Warn("dropping malformed event frame",
			zap.String("project_id", sender.projectID),
			zap.Error(err),
		)
		return
	}

	if h.forwarder != nil {
		// Mirroring is best-effort and must never stall fan-out, so a slow
		// or throttled bus call runs off the relay path.
		go h.forwarder.Forward(h.ctx, m)
	}

	msg := &relayedMessage{
		projectID: sender.projectID,
		sender:    sender,
		payload:   payload,
	}
	select {
	case h.relay <- msg:
	case <-time.After(5 * time.Second):
		if h.metrics != nil {
			h.metrics.EventsDropped.Inc()
		}
		h.logger.Warn("relay channel full, event dropped",
			zap.String("project_id", sender.projectID),
			zap.String("event_type", m.Kind()),
		)
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.rooms[client.projectID] == nil {
		h.rooms[client.projectID] = make(map[*Client]bool)
	}
	h.rooms[client.projectID][client] = true
	roomSize := len(h.rooms[client.projectID])
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	h.logger.Info("client joined room",
		zap.String("project_id", client.projectID),
		zap.String("user_id", client.userID),
		zap.String("connection_id", client.id),
		zap.Int("room_size", roomSize),
	)
	h.sendPresence(client, TypeRoomJoined)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.rooms[client.projectID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.projectID)
	}
	remaining := len(clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}
	h.logger.Info("client left room",
		zap.String("project_id", client.projectID),
		zap.String("user_id", client.userID),
		zap.String("connection_id", client.id),
		zap.Int("room_size", remaining),
	)
	h.sendPresence(client, TypeRoomLeft)
}

// sendPresence notifies a client's room peers that the client joined or left.
func (h *Hub) sendPresence(client *Client, frameType string) {
	payload, err := json.Marshal(presenceFrame{
		Type:      frameType,
		ProjectID: client.projectID,
		ActorID:   client.userID,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return
	}
	msg := &relayedMessage{
		projectID: client.projectID,
		sender:    client,
		payload:   payload,
	}
	select {
	case h.relay <- msg:
	default:
		h.logger.Debug("relay channel full, presence frame dropped",
			zap.String("project_id", client.projectID),
		)
	}
}

// fanOut forwards a frame to every room member except the sender.
func (h *Hub) fanOut(message *relayedMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[message.projectID]))
	for client := range h.rooms[message.projectID] {
		if client != message.sender {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message.payload:
			if h.metrics != nil {
				h.metrics.EventsRelayed.Inc()
			}
		default:
			// Send buffer full: the client cannot keep up, drop it.
			if h.metrics != nil {
				h.metrics.EventsDropped.Inc()
			}
			h.logger.Warn("evicting slow client",
				zap.String("project_id", client.projectID),
				zap.String("user_id", client.userID),
				zap.String("connection_id", client.id),
			)
			go func(c *Client) {
				c.hub.unregister <- c
				if c.conn != nil {
					c.conn.Close()
				}
			}(client)
		}
	}
}

func (h *Hub) logRoomStats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, clients := range h.rooms {
		total += len(clients)
	}
	h.logger.Debug("relay room stats",
		zap.Int("rooms", len(h.rooms)),
		zap.Int("connections", total),
	)
}

func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for projectID, clients := range h.rooms {
		for client := range clients {
			close(client.send)
			if client.conn != nil {
				client.conn.Close()
			}
		}
		delete(h.rooms, projectID)
	}
}

// RoomSize returns the number of active connections in a project's room.
func (h *Hub) RoomSize(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}
