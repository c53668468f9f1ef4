package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"datatidy/internal/config"
	apierrors "datatidy/internal/errors"
	"datatidy/internal/infrastructure"
	"datatidy/internal/middleware"
)

// Handler upgrades GET /ws requests and attaches the connection to the hub.
type Handler struct {
	hub          *Hub
	cfg          config.WebSocketConfig
	upgrader     websocket.Upgrader
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewHandler creates the upgrade handler. Browsers are accepted when their
// Origin is in allowedOrigins, or from any origin when the list is empty or
// contains "*". Requests without an Origin header are always accepted.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *Handler {
	h := &Handler{
		hub:          hub,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "websocket.handler")),
		errorHandler: errorHandler,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     originChecker(allowedOrigins),
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.errorHandler.HandleError(w, r, apierrors.NewWithDetails(status,
				"WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed", reason.Error()))
		},
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := middleware.GetReqID(ctx)
	if traceID == "" {
		traceID = infrastructure.GetTraceID(ctx)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already responded through its Error hook.
		h.logger.WarnContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("origin", r.Header.Get("Origin")))
		return
	}

	client := NewClient(h.hub, NewConnection(conn), h.cfg, traceID, h.logger)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))

	go client.WritePump()
	go client.ReadPump()
}
