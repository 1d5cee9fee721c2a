package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

// generateJWT wraps an anon id in a signed token. The id carries no
// persistent identity; the token only proves the client obtained it
// from this service.
func (h *Handler) generateJWT(anonID string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
		"iss":     "string-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.JWTSecret)
}

// validateAndGetAnonID checks the signature and extracts the anon id.
func (h *Handler) validateAndGetAnonID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.JWTSecret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	anonID, ok := claims["anon_id"].(string)
	if !ok || anonID == "" {
		return "", errors.New("token missing anon_id")
	}
	return anonID, nil
}

// GetAnonID mints a fresh ephemeral connection id and its token.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.New().String()

	token, err := h.generateJWT(anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}
