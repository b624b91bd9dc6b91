package handlers

import (
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/nckslvrmn/stash/pkg/utils"
)

const (
	msgInvalidHashes   = "identifier or authentication_key are not 256 bits HEX hashes"
	msgEmptySecret     = "encrypted_secret is empty"
	msgSecretNotBase64 = "encrypted_secret should be base64 encoded"
	msgInvalidRequest  = "invalid request"
	msgInvalidPair     = "Invalid identifier/authentication_key"
	msgTooManyAttempts = "Too many attempts"
	msgAlreadyStored   = "secret already stored"
	msgStoreFailed     = "error storing secret"
	msgLookupFailed    = "error reading secret"
)

// StoreRequest is the body of POST /store.
type StoreRequest struct {
	Identifier        string `json:"identifier"`
	AuthenticationKey string `json:"authentication_key"`
	EncryptedSecret   string `json:"encrypted_secret"`
}

// FetchRequest is the body of POST /fetch and POST /trash.
type FetchRequest struct {
	Identifier        string `json:"identifier"`
	AuthenticationKey string `json:"authentication_key"`
}

// ErrorResponse carries validation, conflict and server fault messages.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AttemptResponse is returned for failed lookups and lockouts.
type AttemptResponse struct {
	Error       string `json:"error"`
	RequestedAt string `json:"requested_at"`
	Cooldown    int64  `json:"cooldown"`
	Attempts    int    `json:"attempts"`
}

func validatePair(identifier, authenticationKey string) bool {
	return utils.Is256BitHex(identifier) && utils.Is256BitHex(authenticationKey)
}

// validateSecret returns the message for the first failed check, or "".
func validateSecret(secret string, maxLength int) string {
	switch {
	case secret == "":
		return msgEmptySecret
	case !utils.IsBase64(secret):
		return msgSecretNotBase64
	case len(secret) > maxLength:
		return fmt.Sprintf("encrypted_secret length exceeds the limit %d", maxLength)
	}
	return ""
}

func errorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{Error: message})
}

func (h *Handler) attemptResponse(c echo.Context, status int, message string, requestedAt time.Time, attempts int) error {
	return c.JSON(status, AttemptResponse{
		Error:       message,
		RequestedAt: requestedAt.UTC().Format(time.RFC3339),
		Cooldown:    int64(h.governor.Cooldown() / time.Minute),
		Attempts:    attempts,
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%d", secs)
}

func badRequest(c echo.Context, message string) error {
	return errorResponse(c, http.StatusBadRequest, message)
}
