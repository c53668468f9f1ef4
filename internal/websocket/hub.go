package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"datatidy/internal/infrastructure"
	"datatidy/pkg/contracts/events"
)

// broadcastBuffer is the number of events queued for the hub loop before
// Publish starts dropping them.
const broadcastBuffer = 256

// Hub maintains the set of active clients and broadcasts dataset events to
// them. It implements the services' event publisher.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Encoded events waiting to be fanned out
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
	version string

	// Counters reported by Stats
	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	// Control
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewHub creates a new Hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.BusinessMetrics, version string) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		version:    version,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine. Calling it again is a no-op.
func (h *Hub) Start() {
	h.startOnce.Do(func() { go h.Run() })
}

// Run is the hub's main loop. It returns after Stop and disconnects every
// client on the way out.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.closeAll()
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "client closed")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := client.context()
	if h.metrics != nil {
		h.metrics.WebSocketConnections.Add(ctx, 1)
	}
	h.logger.InfoContext(ctx, "client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	greeting, err := encode(ctx, "", events.MessageTypeSystemStatus, events.SystemStatus{
		Status:  "healthy",
		Version: h.version,
		Clients: count,
	})
	if err == nil && !client.enqueue(greeting) {
		h.logger.WarnContext(ctx, "failed to send greeting, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	if h.metrics != nil {
		h.metrics.WebSocketConnections.Add(ctx, -1)
	}
	h.logger.InfoContext(ctx, "client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range clients {
		if !client.enqueue(message) {
			slow = append(slow, client)
		}
	}
	// Clients that cannot keep up are dropped rather than blocking the loop.
	for _, client := range slow {
		h.removeClient(client, "send buffer full")
	}

	h.mu.Lock()
	h.messagesSent += int64(len(clients) - len(slow))
	h.mu.Unlock()

	h.logger.Debug("event broadcast",
		slog.Int("client_count", len(clients)),
		slog.Int("dropped_clients", len(slow)),
		slog.Int("message_size", len(message)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
		if h.metrics != nil {
			h.metrics.WebSocketConnections.Add(context.Background(), -1)
		}
	}
}

// Publish encodes an event and queues it for every connected client. It
// never blocks the caller: events are dropped when the queue is full or the
// hub has stopped.
func (h *Hub) Publish(ctx context.Context, msgType events.MessageType, data any) {
	message, err := encode(ctx, "", msgType, data)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode event",
			slog.String("type", string(msgType)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- message:
		if h.metrics != nil {
			h.metrics.WebSocketBroadcasts.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(msgType))))
		}
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.logger.WarnContext(ctx, "event dropped, broadcast queue full",
			slog.String("type", string(msgType)))
	}
}

// encode wraps data in the message envelope, stamping the trace ID of ctx.
// An empty id gets a fresh one.
func encode(ctx context.Context, id string, msgType events.MessageType, data any) ([]byte, error) {
	if id == "" {
		id = uuid.New().String()
	}
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        id,
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   infrastructure.GetTraceID(ctx),
		},
		Data: data,
	})
}

// Register adds a client to the hub. It returns false once the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client. It does not block after the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stop stops the hub and waits for the loop to exit when it was started.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	started := true
	h.startOnce.Do(func() { started = false })
	if started {
		<-h.done
	}
}

// Stats returns the hub counters.
func (h *Hub) Stats() map[string]int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]int64{
		"active_clients":    int64(len(h.clients)),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
	}
}
