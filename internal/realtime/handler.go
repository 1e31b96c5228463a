// AngelaMos | 2026
// handler.go

package realtime

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/carterperez-dev/pocketree/internal/config"
	"github.com/carterperez-dev/pocketree/internal/core"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	cfg      config.RealtimeConfig
	logger   *slog.Logger
}

func NewHandler(
	hub *Hub,
	cfg config.RealtimeConfig,
	allowedOrigins []string,
	logger *slog.Logger,
) *Handler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		cfg:    cfg,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/realtime/ws", h.Serve)
}

// Serve upgrades the request and subscribes the connection to the group
// named by the query, dashboard when absent.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	group := GroupDashboard
	if q := r.URL.Query().Get("group"); q != "" {
		g, ok := ParseGroup(q)
		if !ok {
			core.BadRequest(w, "group must be dashboard or mobile")
			return
		}
		group = g
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, max(h.cfg.SendBuffer, 1)),
	}
	if !h.hub.join(c, group) {
		_ = conn.WriteControl( //nolint:errcheck // closing anyway
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteTimeout),
		)
		_ = conn.Close() //nolint:errcheck // closing anyway
		return
	}

	h.logger.Debug("realtime client connected",
		"group", string(group),
		"remote", r.RemoteAddr,
	)

	go c.writePump(h.cfg.PingInterval, h.cfg.WriteTimeout)
	c.readPump(h.cfg.PingInterval * 2)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
