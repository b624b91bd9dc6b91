package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/nckslvrmn/stash/internal/storage/types"
	"github.com/nckslvrmn/stash/pkg/utils"
)

// Store handles POST /store.
func (h *Handler) Store(c echo.Context) error {
	var req StoreRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, msgInvalidRequest)
	}

	if !validatePair(req.Identifier, req.AuthenticationKey) {
		return badRequest(c, msgInvalidHashes)
	}
	if msg := validateSecret(req.EncryptedSecret, h.opts.SecretMaxLength); msg != "" {
		return badRequest(c, msg)
	}

	secret := &types.Secret{
		ID:              utils.DeriveSecretID(req.Identifier, req.AuthenticationKey),
		CreatedAt:       time.Now().UTC(),
		EncryptedSecret: req.EncryptedSecret,
	}

	// A client disconnect or the request timeout must not abandon the write.
	err := h.store.Write(context.WithoutCancel(c.Request().Context()), secret)
	switch {
	case err == nil:
		return c.NoContent(http.StatusCreated)
	case errors.Is(err, types.ErrDuplicate):
		return errorResponse(c, http.StatusForbidden, msgAlreadyStored)
	default:
		c.Logger().Errorf("storing secret: %v", err)
		return badRequest(c, msgStoreFailed)
	}
}
