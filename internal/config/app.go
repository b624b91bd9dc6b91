package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds everything the server needs at startup.
type Config struct {
	ServerAddress string
	CORSOrigins   []string

	// Cooldown is how long an identifier stays locked after its last
	// failed lookup.
	Cooldown          time.Duration
	MaxFailedAttempts int
	SweepInterval     time.Duration

	SecretMaxLength int
	Canary          string

	// ServerSecretKey is a hex secp256k1 key. When set, request and
	// response bodies are wrapped in the encrypted envelope.
	ServerSecretKey string

	Storage StorageConfig
}

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"SERVER_ADDRESS":                 "server.address",
	"CORS_ALLOW_ORIGINS":             "server.cors_origins",
	"RATE_LIMIT_COOLDOWN":            "rate_limit.cooldown",
	"RATE_LIMIT_MAX_FAILED_ATTEMPTS": "rate_limit.max_failed_attempts",
	"RATE_LIMIT_SWEEP_INTERVAL":      "rate_limit.sweep_interval",
	"SECRET_MAX_LENGTH":              "secret.max_length",
	"CANARY":                         "info.canary",
	"SERVER_SECRET_KEY":              "envelope.secret_key",
	"STORAGE_BACKEND":                "storage.backend",
	"DATABASE_URL":                   "storage.database_url",
	"DATA_DIR":                       "storage.data_dir",
	"AWS_REGION":                     "storage.aws_region",
	"DYNAMO_TABLE":                   "storage.dynamo_table",
	"S3_BUCKET":                      "storage.s3_bucket",
	"FIRESTORE_DATABASE":             "storage.firestore_database",
	"GCP_PROJECT_ID":                 "storage.gcp_project_id",
	"GCS_BUCKET":                     "storage.gcs_bucket",
	"REDIS_URL":                      "storage.redis_url",
}

func defaults() map[string]any {
	return map[string]any{
		"server.address":                 ":8081",
		"server.cors_origins":            "*",
		"rate_limit.cooldown":            15,
		"rate_limit.max_failed_attempts": 3,
		"rate_limit.sweep_interval":      "1m",
		"secret.max_length":              1024,
		"info.canary":                    "canary",
		"envelope.secret_key":            "",
		"storage.backend":                BackendSQLite,
		"storage.database_url":           "data/secrets.db",
		"storage.data_dir":               "data",
		"storage.aws_region":             "us-east-1",
	}
}

// Load reads defaults, then the YAML file at path if it exists, then the
// environment. Later sources win.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cooldown, err := intValue(k, "rate_limit.cooldown")
	if err != nil {
		return nil, err
	}
	if cooldown <= 0 {
		return nil, fmt.Errorf("rate_limit.cooldown must be a positive number of minutes")
	}

	maxAttempts, err := intValue(k, "rate_limit.max_failed_attempts")
	if err != nil {
		return nil, err
	}
	if maxAttempts < 1 || maxAttempts > 255 {
		return nil, fmt.Errorf("rate_limit.max_failed_attempts must be between 1 and 255")
	}

	sweep, err := time.ParseDuration(k.String("rate_limit.sweep_interval"))
	if err != nil {
		return nil, fmt.Errorf("rate_limit.sweep_interval: %w", err)
	}

	maxLength, err := intValue(k, "secret.max_length")
	if err != nil {
		return nil, err
	}
	if maxLength <= 0 {
		return nil, fmt.Errorf("secret.max_length must be positive")
	}

	storage, err := loadStorage(k)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerAddress:     k.String("server.address"),
		CORSOrigins:       splitList(k.String("server.cors_origins")),
		Cooldown:          time.Duration(cooldown) * time.Minute,
		MaxFailedAttempts: maxAttempts,
		SweepInterval:     sweep,
		SecretMaxLength:   maxLength,
		Canary:            k.String("info.canary"),
		ServerSecretKey:   strings.TrimSpace(k.String("envelope.secret_key")),
		Storage:           storage,
	}, nil
}

func intValue(k *koanf.Koanf, key string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(k.String(key)))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
