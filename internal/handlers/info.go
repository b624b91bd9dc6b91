package handlers

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
)

type InfoResponse struct {
	Timestamp         int64  `json:"timestamp"`
	Cooldown          int64  `json:"cooldown"`
	SecretMaxLength   int    `json:"secret_max_length"`
	MaxFailedAttempts int    `json:"max_failed_attempts"`
	Message           string `json:"message"`
	PublicKey         string `json:"public_key,omitempty"`
}

// Info handles GET /info.
func (h *Handler) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, InfoResponse{
		Timestamp:         time.Now().Unix(),
		Cooldown:          int64(h.governor.Cooldown() / time.Minute),
		SecretMaxLength:   h.opts.SecretMaxLength,
		MaxFailedAttempts: h.governor.MaxFailedAttempts(),
		Message:           h.opts.Canary,
		PublicKey:         h.opts.PublicKey,
	})
}
