package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/labstack/gommon/log"
	"github.com/nckslvrmn/stash/internal/config"
	"github.com/nckslvrmn/stash/internal/storage/provider/aws"
	"github.com/nckslvrmn/stash/internal/storage/provider/gcp"
	"github.com/nckslvrmn/stash/internal/storage/provider/local"
	"github.com/nckslvrmn/stash/internal/storage/provider/memory"
	"github.com/nckslvrmn/stash/internal/storage/provider/postgres"
	"github.com/nckslvrmn/stash/internal/storage/provider/redis"
	"github.com/nckslvrmn/stash/internal/storage/types"
)

// New sets up the storage backend named in cfg.
func New(ctx context.Context, cfg config.StorageConfig) (types.SecretStore, error) {
	log.Infof("Initializing %s storage provider", cfg.Backend)

	switch cfg.Backend {
	case config.BackendSQLite:
		return open(local.NewSQLiteStore(cfg.DatabaseURL))
	case config.BackendFile:
		return open(local.NewLocalFileStore(cfg.DataDir))
	case config.BackendMemory:
		return memory.NewMemoryStore(), nil
	case config.BackendDynamo:
		return open(aws.NewDynamoStore(ctx, cfg.AWSRegion, cfg.DynamoTable))
	case config.BackendS3:
		return open(aws.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket))
	case config.BackendFirestore:
		return open(gcp.NewFirestoreStore(ctx, cfg.GCPProjectID, cfg.FirestoreDatabase))
	case config.BackendGCS:
		return open(gcp.NewGCSStore(ctx, cfg.GCSBucket))
	case config.BackendRedis:
		return open(redis.NewRedisStore(ctx, cfg.RedisURL))
	case config.BackendPostgres:
		return open(postgres.NewPostgresStore(ctx, cfg.DatabaseURL))
	}

	return nil, fmt.Errorf("no valid storage configuration found for backend %q", cfg.Backend)
}

// open keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func open[T types.SecretStore](store T, err error) (types.SecretStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Close releases the backend's resources if it holds any.
func Close(store types.SecretStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
