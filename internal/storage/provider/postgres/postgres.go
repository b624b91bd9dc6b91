package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/log"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
)

const uniqueViolation = "23505"

// PgxAPI defines the subset of pgxpool.Pool we use
type PgxAPI interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresStore struct {
	pool PgxAPI
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.createTable(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	log.Info("Postgres store initialized")
	return store, nil
}

func (p *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS secret (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		encrypted_secret TEXT NOT NULL
	)`

	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Write(ctx context.Context, secret *storagetypes.Secret) error {
	query := `INSERT INTO secret (id, created_at, encrypted_secret) VALUES ($1, $2, $3)`

	_, err := p.pool.Exec(ctx, query, secret.ID, secret.CreatedAt.UTC(), secret.EncryptedSecret)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storagetypes.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	return nil
}

func (p *PostgresStore) ReadByID(ctx context.Context, id string) (*storagetypes.Secret, error) {
	query := `SELECT id, created_at, encrypted_secret FROM secret WHERE id = $1`

	var secret storagetypes.Secret
	err := p.pool.QueryRow(ctx, query, id).Scan(&secret.ID, &secret.CreatedAt, &secret.EncryptedSecret)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}

	secret.CreatedAt = secret.CreatedAt.UTC()
	return &secret, nil
}

func (p *PostgresStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM secret WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete secret: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
