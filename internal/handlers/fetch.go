package handlers

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/nckslvrmn/stash/pkg/utils"
)

// Fetch handles POST /fetch.
func (h *Handler) Fetch(c echo.Context) error {
	return h.lookup(c, false)
}

// Trash handles POST /trash. It returns the secret and deletes it.
func (h *Handler) Trash(c echo.Context) error {
	return h.lookup(c, true)
}

func (h *Handler) lookup(c echo.Context, trash bool) error {
	var req FetchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, msgInvalidRequest)
	}
	if !validatePair(req.Identifier, req.AuthenticationKey) {
		return badRequest(c, msgInvalidHashes)
	}

	decision := h.governor.Permit(req.Identifier)
	if !decision.Permitted {
		c.Response().Header().Set("Retry-After", retryAfterSeconds(decision.RetryAfter))
		return h.attemptResponse(c, http.StatusTooManyRequests, msgTooManyAttempts, decision.LastRequest, decision.Attempts)
	}

	// Storage outlives the request so a trash is never half done.
	ctx := context.WithoutCancel(c.Request().Context())
	id := utils.DeriveSecretID(req.Identifier, req.AuthenticationKey)

	secret, err := h.store.ReadByID(ctx, id)
	if err != nil {
		c.Logger().Errorf("reading secret: %v", err)
		return errorResponse(c, http.StatusInternalServerError, msgLookupFailed)
	}
	if secret == nil {
		entry := h.governor.RecordFailure(req.Identifier)
		return h.attemptResponse(c, http.StatusUnauthorized, msgInvalidPair, entry.LastRequest, entry.Attempts)
	}

	if !trash {
		return c.JSON(http.StatusOK, secret)
	}

	if _, err := h.store.DeleteByID(ctx, id); err != nil {
		c.Logger().Errorf("deleting secret: %v", err)
		return errorResponse(c, http.StatusInternalServerError, msgLookupFailed)
	}
	return c.JSON(http.StatusAccepted, secret)
}
