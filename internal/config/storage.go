package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/v2"
)

const (
	BackendSQLite    = "sqlite"
	BackendFile      = "file"
	BackendMemory    = "memory"
	BackendDynamo    = "dynamodb"
	BackendS3        = "s3"
	BackendFirestore = "firestore"
	BackendGCS       = "gcs"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
)

type StorageConfig struct {
	Backend string

	DatabaseURL string
	DataDir     string

	AWSRegion   string
	DynamoTable string
	S3Bucket    string

	FirestoreDatabase string
	GCPProjectID      string
	GCSBucket         string

	RedisURL string
}

func loadStorage(k *koanf.Koanf) (StorageConfig, error) {
	s := StorageConfig{
		Backend:           strings.ToLower(strings.TrimSpace(k.String("storage.backend"))),
		DatabaseURL:       k.String("storage.database_url"),
		DataDir:           k.String("storage.data_dir"),
		AWSRegion:         k.String("storage.aws_region"),
		DynamoTable:       k.String("storage.dynamo_table"),
		S3Bucket:          k.String("storage.s3_bucket"),
		FirestoreDatabase: k.String("storage.firestore_database"),
		GCPProjectID:      k.String("storage.gcp_project_id"),
		GCSBucket:         k.String("storage.gcs_bucket"),
		RedisURL:          k.String("storage.redis_url"),
	}

	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch s.Backend {
	case BackendSQLite, BackendPostgres:
		require(s.DatabaseURL, "DATABASE_URL")
	case BackendFile:
		require(s.DataDir, "DATA_DIR")
	case BackendMemory:
	case BackendDynamo:
		require(s.DynamoTable, "DYNAMO_TABLE")
	case BackendS3:
		require(s.S3Bucket, "S3_BUCKET")
	case BackendFirestore:
		require(s.GCPProjectID, "GCP_PROJECT_ID")
		require(s.FirestoreDatabase, "FIRESTORE_DATABASE")
	case BackendGCS:
		require(s.GCSBucket, "GCS_BUCKET")
	case BackendRedis:
		require(s.RedisURL, "REDIS_URL")
	default:
		return s, fmt.Errorf("unknown storage backend %q", s.Backend)
	}

	if len(missing) > 0 {
		return s, fmt.Errorf("storage backend %s requires %s", s.Backend, strings.Join(missing, ", "))
	}
	return s, nil
}
