package handler

import (
	"errors"
	"net/http"
	"time"

	"stringchat/backend/internal/media"

	"github.com/gin-gonic/gin"
)

// UploadMedia stores an ephemeral artifact and returns its descriptor.
func (h *Handler) UploadMedia(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer file.Close()

	artifact, err := h.Media.Save(header.Header.Get("Content-Type"), file)
	switch {
	case errors.Is(err, media.ErrInvalidType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
		return
	case errors.Is(err, media.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	c.JSON(http.StatusCreated, artifact)
}

// GetMedia reports whether an artifact is still retrievable. Expiry is
// re-derived here from the shared TTL, so an artifact the sweeper has
// not reached yet is still reported gone once stale.
func (h *Handler) GetMedia(c *gin.Context) {
	artifact, err := h.Media.Stat(c.Param("id"))
	switch {
	case errors.Is(err, media.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Media not found or expired"})
		return
	case errors.Is(err, media.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Media expired"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stat media"})
		return
	}

	expiresIn := artifact.ExpiresAt - time.Now().UnixMilli()
	if expiresIn < 0 {
		expiresIn = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        artifact.ID,
		"url":       artifact.URL,
		"expiresIn": expiresIn,
	})
}
