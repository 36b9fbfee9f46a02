package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr      string `env:"VRHUB_ADDR" envDefault:":8080"`
	StorePath string `env:"VRHUB_STORE_PATH" envDefault:"./data/vrhub.db"`

	JWTSecret   string        `env:"VRHUB_JWT_SECRET" envDefault:"vrhub-dev-secret"`
	SessionTTL  time.Duration `env:"VRHUB_SESSION_TTL" envDefault:"24h"`
	APITokenTTL time.Duration `env:"VRHUB_API_TOKEN_TTL" envDefault:"720h"`

	// S3-compatible blob storage. Blob access is disabled when the endpoint
	// is left empty (upload/download endpoints report unavailable).
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Bucket          string `env:"S3_BUCKET" envDefault:"vrhub-content"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3UseSSL          bool   `env:"S3_USE_SSL" envDefault:"true"`

	// Redis notification queue - optional, enqueue only.
	RedisURL string `env:"REDIS_URL"`

	// Meilisearch - optional, search falls back to store scans without it.
	MeiliURL       string `env:"MEILI_URL"`
	MeiliMasterKey string `env:"MEILI_MASTER_KEY"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
