package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/nckslvrmn/stash/internal/storage/types"
)

// MockSecretStore implements the SecretStore interface in memory for tests,
// with error injection and a read counter.
type MockSecretStore struct {
	mu      sync.RWMutex
	secrets map[string]types.Secret

	// Err, when set, is returned by every operation.
	Err error
	// Reads counts ReadByID calls.
	Reads int
}

func NewMockSecretStore() *MockSecretStore {
	return &MockSecretStore{
		secrets: make(map[string]types.Secret),
	}
}

func (m *MockSecretStore) Write(ctx context.Context, secret *types.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if secret == nil {
		return fmt.Errorf("secret cannot be nil")
	}
	if _, ok := m.secrets[secret.ID]; ok {
		return types.ErrDuplicate
	}
	m.secrets[secret.ID] = *secret
	return nil
}

func (m *MockSecretStore) ReadByID(ctx context.Context, id string) (*types.Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Reads++
	if m.Err != nil {
		return nil, m.Err
	}
	secret, ok := m.secrets[id]
	if !ok {
		return nil, nil
	}
	return &secret, nil
}

func (m *MockSecretStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.secrets[id]; !ok {
		return false, nil
	}
	delete(m.secrets, id)
	return true, nil
}

// Len returns the number of stored secrets.
func (m *MockSecretStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.secrets)
}
