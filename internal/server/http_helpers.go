package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"meme-party/internal/game"
)

const playerKey = "player_id"

// requirePlayer reads the caller identity set by the identity provider in
// front of the service. Browsers cannot set headers on websocket upgrades,
// so the player_id query parameter is accepted as well.
func requirePlayer() gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := strings.TrimSpace(c.GetHeader(playerHeader))
		if playerID == "" {
			playerID = strings.TrimSpace(c.Query(playerKey))
		}
		if !isEntityID(playerID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "player identity required"})
			return
		}
		c.Set(playerKey, playerID)
		c.Next()
	}
}

func currentPlayer(c *gin.Context) string {
	return c.GetString(playerKey)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps engine errors onto HTTP statuses. Internal errors are
// logged and hidden from the client.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
