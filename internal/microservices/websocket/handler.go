package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/microservices/http-api/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler for the live notification channel

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin is not checked; identity comes from the token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	auth               service.AuthService
	dispatcher         *Dispatcher
	allowQueryIdentity bool
	catchUpTimeout     time.Duration
	logger             *slog.Logger
}

// NewWSHandler builds the upgrade handler. allowQueryIdentity accepts a bare ?userId=
// parameter in place of a token, for clients that cannot present one.
func NewWSHandler(auth service.AuthService, dispatcher *Dispatcher, allowQueryIdentity bool, catchUpTimeout time.Duration, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if catchUpTimeout <= 0 {
		catchUpTimeout = 5 * time.Second
	}
	return &WSHandler{
		auth:               auth,
		dispatcher:         dispatcher,
		allowQueryIdentity: allowQueryIdentity,
		catchUpTimeout:     catchUpTimeout,
		logger:             logger,
	}
}

func (h *WSHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws/notifications", h.Serve)
}

// Serve upgrades the request, registers the connection and sends the unread backlog.
// A connection without a user identity is closed with a policy-violation frame.
func (h *WSHandler) Serve(c *gin.Context) {
	userID := h.identity(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.logger.Warn("ws_upgrade_failed", "error", err)
		return
	}

	if userID == "" {
		h.logger.Info("ws_rejected_no_identity", "remote_addr", c.ClientIP())
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user identity required")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WriteWait))
		conn.Close()
		return
	}

	client := NewClient(userID, conn, h.logger)
	go client.WritePump()

	// the request context ends with this handler; the burst gets its own deadline
	ctx, cancel := context.WithTimeout(context.Background(), h.catchUpTimeout)
	defer cancel()
	if err := h.dispatcher.Connect(ctx, userID, client); err != nil {
		h.logger.Warn("ws_catch_up_failed", "user_id", userID, "error", err)
	}

	go client.ReadPump(func(cl *Client) {
		h.dispatcher.Disconnect(cl)
	})
}

// identity resolves the caller from a bearer token (header or ?token=), or from ?userId=
// when query identity is enabled. An invalid token yields no identity.
func (h *WSHandler) identity(c *gin.Context) string {
	token := ""
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		token = c.Query("token")
	}
	if token != "" && h.auth != nil {
		claims, err := h.auth.ValidateToken(token)
		if err != nil {
			h.logger.Info("ws_token_rejected", "error", err)
			return ""
		}
		return claims.UserID
	}
	if h.allowQueryIdentity {
		return strings.TrimSpace(c.Query("userId"))
	}
	return ""
}
