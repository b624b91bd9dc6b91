package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
)

// MemoryStore keeps secrets in a map. Everything is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]storagetypes.Secret
}

func NewMemoryStore() *MemoryStore {
	log.Warn("memory storage is volatile, secrets are lost on restart")
	return &MemoryStore{
		secrets: make(map[string]storagetypes.Secret),
	}
}

func (m *MemoryStore) Write(ctx context.Context, secret *storagetypes.Secret) error {
	if secret == nil {
		return fmt.Errorf("secret cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[secret.ID]; ok {
		return storagetypes.ErrDuplicate
	}
	m.secrets[secret.ID] = *secret
	return nil
}

func (m *MemoryStore) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	secret, ok := m.secrets[id]
	if !ok {
		return nil, nil
	}
	return &secret, nil
}

func (m *MemoryStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.secrets[id]; !ok {
		return false, nil
	}
	delete(m.secrets, id)
	return true, nil
}
