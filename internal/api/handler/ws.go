package handler

import (
	"net/http"
	"strings"

	"stringchat/backend/internal/chathub"
	"stringchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten for production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the HTTP connection and registers the client
// with the hub. The bearer token's anon id becomes the participant id
// for the lifetime of this connection.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	anonID, err := h.validateAndGetAnonID(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := &chathub.WebSocketClient{
		Hub:    h.Hub,
		AnonID: anonID,
		Conn:   conn,
		Send:   make(chan models.Envelope, 256),
	}

	h.Hub.RegisterCh <- client
	client.Run()
}

// bearerToken pulls the token from the Authorization header, falling
// back to the token query parameter for browser WebSocket clients that
// cannot set headers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}
