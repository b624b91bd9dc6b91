package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
)

// mockPool implements PgxAPI
type mockPool struct {
	exec     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryRow func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (m *mockPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.exec != nil {
		return m.exec(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, errors.New("Exec not implemented")
}

func (m *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRow != nil {
		return m.queryRow(ctx, sql, args...)
	}
	return mockRow{err: errors.New("QueryRow not implemented")}
}

func (m *mockPool) Close() {}

type mockRow struct {
	values []any
	err    error
}

func (r mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestPostgresStore_Write(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		wantErr bool
		wantDup bool
	}{
		{name: "inserted"},
		{name: "unique violation", execErr: &pgconn.PgError{Code: "23505"}, wantErr: true, wantDup: true},
		{name: "other error", execErr: &pgconn.PgError{Code: "53300"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &PostgresStore{pool: &mockPool{
				exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
					if !strings.HasPrefix(sql, "INSERT INTO secret") || len(args) != 3 {
						return pgconn.CommandTag{}, errors.New("unexpected statement")
					}
					if tt.execErr != nil {
						return pgconn.CommandTag{}, tt.execErr
					}
					return pgconn.NewCommandTag("INSERT 0 1"), nil
				},
			}}

			err := store.Write(context.Background(), &storagetypes.Secret{ID: "test-id", CreatedAt: time.Now()})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Write() error = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, storagetypes.ErrDuplicate) != tt.wantDup {
				t.Errorf("Write() duplicate = %v, want %v", errors.Is(err, storagetypes.ErrDuplicate), tt.wantDup)
			}
		})
	}
}

func TestPostgresStore_ReadByID(t *testing.T) {
	createdAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		row     mockRow
		wantNil bool
		wantErr bool
	}{
		{name: "found", row: mockRow{values: []any{"test-id", createdAt, "c29tZXRoaW5n"}}},
		{name: "missing", row: mockRow{err: pgx.ErrNoRows}, wantNil: true},
		{name: "error", row: mockRow{err: errors.New("conn reset")}, wantNil: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &PostgresStore{pool: &mockPool{
				queryRow: func(ctx context.Context, sql string, args ...any) pgx.Row {
					return tt.row
				},
			}}

			got, err := store.ReadByID(context.Background(), "test-id")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadByID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("ReadByID() = %v, wantNil %v", got, tt.wantNil)
			}
			if got != nil && (got.EncryptedSecret != "c29tZXRoaW5n" || !got.CreatedAt.Equal(createdAt)) {
				t.Errorf("ReadByID() = %+v", got)
			}
		})
	}
}

func TestPostgresStore_DeleteByID(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want bool
	}{
		{"deleted", "DELETE 1", true},
		{"nothing deleted", "DELETE 0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &PostgresStore{pool: &mockPool{
				exec: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
					return pgconn.NewCommandTag(tt.tag), nil
				},
			}}

			got, err := store.DeleteByID(context.Background(), "test-id")
			if err != nil {
				t.Fatalf("DeleteByID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DeleteByID() = %v, want %v", got, tt.want)
			}
		})
	}
}
