package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/mattn/go-sqlite3"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	log.Infof("SQLite store initialized at %s", dbPath)
	return store, nil
}

func (s *SQLiteStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS secret (
		id TEXT PRIMARY KEY NOT NULL,
		created_at TEXT NOT NULL,
		encrypted_secret TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(query)
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s *SQLiteStore) Write(ctx context.Context, secret *storagetypes.Secret) error {
	query := `
		INSERT INTO secret (id, created_at, encrypted_secret)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		secret.ID,
		secret.CreatedAt.UTC().Format(time.RFC3339Nano),
		secret.EncryptedSecret,
	)
	if isUniqueViolation(err) {
		return storagetypes.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	query := `SELECT id, created_at, encrypted_secret FROM secret WHERE id = ?`

	var secret storagetypes.Secret
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&secret.ID, &createdAt, &secret.EncryptedSecret)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	secret.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}

	return &secret, nil
}

func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM secret WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
