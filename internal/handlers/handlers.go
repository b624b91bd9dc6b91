// Package handlers implements the store, fetch, trash and info endpoints.
// Every request is validated before the governor or the store is
// consulted, and fetch and trash are gated by the governor.
package handlers

import (
	"github.com/nckslvrmn/stash/internal/governor"
	"github.com/nckslvrmn/stash/internal/storage/types"
)

type Options struct {
	SecretMaxLength int
	Canary          string
	// PublicKey is the server's hex x-only envelope key, if enabled.
	PublicKey string
}

type Handler struct {
	store    types.SecretStore
	governor *governor.Governor
	opts     Options
}

func New(store types.SecretStore, gov *governor.Governor, opts Options) *Handler {
	return &Handler{
		store:    store,
		governor: gov,
		opts:     opts,
	}
}
