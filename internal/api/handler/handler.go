package handler

import (
	"net/http"
	"time"

	"stringchat/backend/internal/alert"
	"stringchat/backend/internal/chathub"
	"stringchat/backend/internal/media"
	"stringchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler bundles the HTTP surface's dependencies.
type Handler struct {
	Hub       *chathub.ManagerService
	Storage   storage.Storage
	Media     *media.Store
	Alerts    *alert.Notifier
	JWTSecret []byte
}

func NewHandler(hub *chathub.ManagerService, s storage.Storage, m *media.Store, a *alert.Notifier, jwtSecret []byte) *Handler {
	return &Handler{Hub: hub, Storage: s, Media: m, Alerts: a, JWTSecret: jwtSecret}
}

// Health is the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UnixMilli()})
}
