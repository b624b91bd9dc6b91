package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/labstack/gommon/log"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
	"github.com/nckslvrmn/stash/pkg/utils"
)

// LocalFileStore keeps one JSON document per secret under dataDir/secrets.
// Files are published with a hard link so an existing id is never overwritten.
type LocalFileStore struct {
	dataDir string
}

func NewLocalFileStore(dataDir string) (*LocalFileStore, error) {
	secretsDir := filepath.Join(dataDir, "secrets")

	if err := os.MkdirAll(secretsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create secrets directory: %w", err)
	}

	log.Infof("Local file store initialized at %s", secretsDir)
	return &LocalFileStore{
		dataDir: secretsDir,
	}, nil
}

// path rejects anything that is not a derived id, which also rules out
// path traversal.
func (l *LocalFileStore) path(id string) (string, error) {
	if !utils.Is256BitHex(id) {
		return "", fmt.Errorf("invalid secret id")
	}
	return filepath.Join(l.dataDir, id+".json"), nil
}

func (l *LocalFileStore) Write(ctx context.Context, secret *storagetypes.Secret) error {
	filePath, err := l.path(secret.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("failed to encode secret: %w", err)
	}

	// The document is written in full under a temporary name and then linked
	// into place. Link fails on an existing name, so readers never see a
	// partial file and an id is never overwritten.
	tmp, err := os.CreateTemp(l.dataDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create secret file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync secret file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close secret file: %w", err)
	}

	err = os.Link(tmp.Name(), filePath)
	if errors.Is(err, os.ErrExist) {
		return storagetypes.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to publish secret file: %w", err)
	}
	return nil
}

func (l *LocalFileStore) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	filePath, err := l.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	var secret storagetypes.Secret
	if err := json.Unmarshal(data, &secret); err != nil {
		return nil, fmt.Errorf("invalid secret file: %w", err)
	}

	return &secret, nil
}

func (l *LocalFileStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	filePath, err := l.path(id)
	if err != nil {
		return false, err
	}

	err = os.Remove(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete secret file: %w", err)
	}

	return true, nil
}
