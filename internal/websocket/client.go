package websocket

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"datatidy/internal/config"
	"datatidy/internal/infrastructure"
	"datatidy/pkg/contracts/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of hub events. Only the hub sends on or closes it.
	send chan []byte

	// Replies to client messages, written by the read pump.
	replies chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	pingPeriod time.Duration
	pongWait   time.Duration

	logger *slog.Logger
}

// NewClient creates a client for an established connection. traceID ties
// the client's log lines to the upgrade request.
func NewClient(hub *Hub, conn Connection, cfg config.WebSocketConfig, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	pongWait := cfg.PongWait
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	pingPeriod := cfg.PingPeriod
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = (pongWait * 9) / 10
	}

	id := uuid.New().String()
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		replies:     make(chan []byte, 16),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		pingPeriod:  pingPeriod,
		pongWait:    pongWait,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// ID returns the client's unique ID.
func (c *Client) ID() string { return c.id }

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// enqueue queues a hub message without blocking. Called from the hub loop only.
func (c *Client) enqueue(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// ReadPump reads client messages until the connection fails. It answers
// ping messages and reports anything else as unsupported.
func (c *Client) ReadPump() {
	ctx := c.context()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				c.logger.WarnContext(ctx, "client message too large", slog.Int("limit", maxMessageSize))
				c.reply(ctx, "", events.MessageTypeError, events.ErrorData{
					Code:    events.ErrCodeMessageTooLarge,
					Message: "client messages are limited to 512 bytes",
					Fatal:   true,
				})
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
				c.logger.WarnContext(ctx, "unexpected WebSocket close", slog.String("error", err.Error()))
			default:
				c.logger.DebugContext(ctx, "read pump stopped", slog.String("error", err.Error()))
			}
			return
		}
		c.handleMessage(ctx, bytes.TrimSpace(message))
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	var msg events.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply(ctx, "", events.MessageTypeError, events.ErrorData{
			Code:    events.ErrCodeInvalidFrame,
			Message: "message is not a JSON object",
		})
		return
	}

	switch msg.Type {
	case events.MessageTypePing:
		c.reply(ctx, msg.ID, events.MessageTypePong, nil)
	default:
		c.reply(ctx, msg.ID, events.MessageTypeError, events.ErrorData{
			Code:    events.ErrCodeUnsupportedType,
			Message: "unsupported message type: " + string(msg.Type),
		})
	}
}

// reply queues an answer to a client message. id echoes the client's
// message ID so it can match the reply.
func (c *Client) reply(ctx context.Context, id string, msgType events.MessageType, data any) {
	message, err := encode(ctx, id, msgType, data)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to encode reply", slog.String("error", err.Error()))
		return
	}
	select {
	case c.replies <- message:
	default:
		c.logger.WarnContext(ctx, "reply dropped, client not reading", slog.String("type", string(msgType)))
	}
}

// WritePump writes hub events, replies and pings to the connection. It
// returns when the hub closes the send channel or a write fails.
func (c *Client) WritePump() {
	ctx := c.context()
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.DebugContext(ctx, "write failed", slog.String("error", err.Error()))
				return
			}

		case message := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.DebugContext(ctx, "write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(ctx, "ping failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}
