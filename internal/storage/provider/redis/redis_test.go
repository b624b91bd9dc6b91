package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	storagetypes "github.com/nckslvrmn/stash/internal/storage/types"
	goredis "github.com/redis/go-redis/v9"
)

// mockRedis implements RedisAPI on a map
type mockRedis struct {
	values map[string]string
	err    error
}

func newMockRedis() *mockRedis {
	return &mockRedis{values: make(map[string]string)}
}

func (m *mockRedis) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd {
	if m.err != nil {
		return goredis.NewBoolResult(false, m.err)
	}
	if _, ok := m.values[key]; ok {
		return goredis.NewBoolResult(false, nil)
	}
	m.values[key] = string(value.([]byte))
	return goredis.NewBoolResult(true, nil)
}

func (m *mockRedis) Get(ctx context.Context, key string) *goredis.StringCmd {
	if m.err != nil {
		return goredis.NewStringResult("", m.err)
	}
	v, ok := m.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (m *mockRedis) Del(ctx context.Context, keys ...string) *goredis.IntCmd {
	if m.err != nil {
		return goredis.NewIntResult(0, m.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestRedisStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	client := newMockRedis()
	store := &RedisStore{client: client}

	secret := &storagetypes.Secret{
		ID:              "test-id",
		CreatedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		EncryptedSecret: "c29tZXRoaW5n",
	}

	if err := store.Write(ctx, secret); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, ok := client.values["stash:secret:test-id"]; !ok {
		t.Fatal("Write() used an unexpected key")
	}
	if err := store.Write(ctx, secret); !errors.Is(err, storagetypes.ErrDuplicate) {
		t.Fatalf("second Write() error = %v, want ErrDuplicate", err)
	}

	got, err := store.ReadByID(ctx, "test-id")
	if err != nil {
		t.Fatalf("ReadByID() error = %v", err)
	}
	if got == nil || got.EncryptedSecret != secret.EncryptedSecret || !got.CreatedAt.Equal(secret.CreatedAt) {
		t.Errorf("ReadByID() = %+v, want %+v", got, secret)
	}

	removed, err := store.DeleteByID(ctx, "test-id")
	if err != nil || !removed {
		t.Fatalf("DeleteByID() = %v, %v, want true, nil", removed, err)
	}
	removed, err = store.DeleteByID(ctx, "test-id")
	if err != nil || removed {
		t.Errorf("second DeleteByID() = %v, %v, want false, nil", removed, err)
	}

	got, err = store.ReadByID(ctx, "test-id")
	if err != nil || got != nil {
		t.Errorf("ReadByID() after delete = %v, %v, want nil, nil", got, err)
	}
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	client := newMockRedis()
	client.err = errors.New("connection refused")
	store := &RedisStore{client: client}

	err := store.Write(ctx, &storagetypes.Secret{ID: "test-id"})
	if err == nil || errors.Is(err, storagetypes.ErrDuplicate) {
		t.Errorf("Write() error = %v, want backend error", err)
	}
	if _, err := store.ReadByID(ctx, "test-id"); err == nil {
		t.Error("ReadByID() error = nil, want backend error")
	}
	if _, err := store.DeleteByID(ctx, "test-id"); err == nil {
		t.Error("DeleteByID() error = nil, want backend error")
	}
}
