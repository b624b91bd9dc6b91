package types

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned by Write when a secret with the same id is
// already stored.
var ErrDuplicate = errors.New("secret already exists")

// Secret is the persisted record. ID is derived from the client's
// credentials and EncryptedSecret is opaque to the server.
type Secret struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	EncryptedSecret string    `json:"encrypted_secret"`
}

// SecretStore defines the interface for storing and retrieving secrets
type SecretStore interface {
	// Write inserts a new secret. It returns ErrDuplicate if the id is
	// taken and never overwrites an existing record.
	Write(ctx context.Context, secret *Secret) error
	// ReadByID returns nil, nil when no secret has the given id.
	ReadByID(ctx context.Context, id string) (*Secret, error)
	// DeleteByID reports whether a record was removed.
	DeleteByID(ctx context.Context, id string) (bool, error)
}
