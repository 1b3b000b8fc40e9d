// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jacentio/carte/store"
)

// Backend names accepted in CARTE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config is the process configuration shared by both binaries.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Metrics         bool

	Log     LogConfig
	Backend string
	Dynamo  DynamoConfig
	SQL     SQLConfig
	Store   store.Config
}

// LogConfig selects the slog level and handler format.
type LogConfig struct {
	Level  string
	Format string
}

// DynamoConfig configures the dynamodb backend.
type DynamoConfig struct {
	TablePrefix  string
	Endpoint     string // empty means the regional AWS endpoint
	CreateTables bool
}

// SQLConfig configures the sqlite and postgres backends.
type SQLConfig struct {
	DSN string // empty means the dialect default
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	addr := getEnv("CARTE_ADDR", ":"+getEnv("PORT", "3002"))

	shutdown, err := time.ParseDuration(getEnv("CARTE_SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("CARTE_SHUTDOWN_TIMEOUT: %w", err)
	}
	metrics, err := getBool("CARTE_METRICS", true)
	if err != nil {
		return nil, err
	}
	createTables, err := getBool("CARTE_DYNAMO_CREATE_TABLES", false)
	if err != nil {
		return nil, err
	}
	validateParents, err := getBool("CARTE_VALIDATE_PARENTS", true)
	if err != nil {
		return nil, err
	}
	keyPatch, ok := store.ParseKeyPatchPolicy(strings.ToLower(getEnv("CARTE_KEY_PATCH", "ignore")))
	if !ok {
		return nil, fmt.Errorf("CARTE_KEY_PATCH: unknown policy %q", os.Getenv("CARTE_KEY_PATCH"))
	}

	cfg := &Config{
		Addr:            addr,
		ShutdownTimeout: shutdown,
		Metrics:         metrics,
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("CARTE_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("CARTE_LOG_FORMAT", "text")),
		},
		Backend: strings.ToLower(getEnv("CARTE_BACKEND", BackendMemory)),
		Dynamo: DynamoConfig{
			TablePrefix:  getEnv("CARTE_DYNAMO_TABLE_PREFIX", "carte_"),
			Endpoint:     getEnv("CARTE_DYNAMO_ENDPOINT", ""),
			CreateTables: createTables,
		},
		SQL: SQLConfig{
			DSN: getEnv("CARTE_SQL_DSN", ""),
		},
		Store: store.Config{
			ValidateParents: validateParents,
			KeyPatch:        keyPatch,
		},
	}

	switch cfg.Backend {
	case BackendMemory, BackendDynamoDB, BackendSQLite:
	case BackendPostgres:
		if cfg.SQL.DSN == "" {
			return nil, fmt.Errorf("CARTE_SQL_DSN is required for the %s backend", BackendPostgres)
		}
	default:
		return nil, fmt.Errorf("CARTE_BACKEND: unknown backend %q", cfg.Backend)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("CARTE_LOG_FORMAT: unknown format %q", cfg.Log.Format)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
