package handler

import (
	"errors"
	"net/http"

	"stringchat/backend/internal/models"
	"stringchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type saveChatRequest struct {
	SessionToken string  `json:"sessionToken" binding:"required"`
	Mood         *string `json:"mood"`
	Note         string  `json:"note"`
	NoteType     string  `json:"noteType"`
	Duration     int64   `json:"duration"`
	PartnerID    string  `json:"partnerId"`
}

// SaveChat persists one journal entry after a mutual save.
func (h *Handler) SaveChat(c *gin.Context) {
	var req saveChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionToken is required"})
		return
	}

	entry := &models.SavedChat{
		SessionToken: req.SessionToken,
		Mood:         req.Mood,
		Note:         req.Note,
		NoteType:     req.NoteType,
		Duration:     req.Duration,
		PartnerID:    req.PartnerID,
	}
	if err := h.Storage.SaveChat(entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save chat"})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListChats returns every journal entry for the session token. An
// unknown token yields an empty list.
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.Storage.GetChatsBySession(c.Param("sessionToken"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read chats"})
		return
	}
	if chats == nil {
		chats = []models.SavedChat{}
	}
	c.JSON(http.StatusOK, chats)
}

// DeleteChat removes one journal entry.
func (h *Handler) DeleteChat(c *gin.Context) {
	err := h.Storage.DeleteChat(c.Param("sessionToken"), c.Param("chatId"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
