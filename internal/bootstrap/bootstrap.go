// Package bootstrap assembles the store, backend and HTTP handler from
// process configuration. Both binaries start here.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jacentio/carte/api"
	"github.com/jacentio/carte/backend/dynamo"
	"github.com/jacentio/carte/backend/sqlstore"
	"github.com/jacentio/carte/internal/config"
	"github.com/jacentio/carte/store"
)

// tableWait bounds how long startup waits for DynamoDB tables to become active.
const tableWait = 2 * time.Minute

// App is a fully wired service.
type App struct {
	Store   *store.Store
	Handler http.Handler
	Logger  *slog.Logger

	closers []io.Closer
}

// Close releases backend resources.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewLogger builds a slog logger writing to w in the given level and format.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New opens the configured backend and builds the API on top of it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Logger: logger}

	backend, err := app.openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := store.New(backend, cfg.Store)
	s.SetLogger(logger)
	app.Store = s

	var reg *prometheus.Registry
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	app.Handler = api.New(s, logger, reg).Handler()

	logger.Info("carte ready",
		"backend", cfg.Backend,
		"validateParents", cfg.Store.ValidateParents,
		"keyPatch", cfg.Store.KeyPatch.String(),
		"metrics", cfg.Metrics,
	)
	return app, nil
}

func (a *App) openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryBackend(), nil

	case config.BackendDynamoDB:
		client, err := newDynamoClient(ctx, cfg.Dynamo.Endpoint)
		if err != nil {
			return nil, err
		}
		dcfg := dynamo.Config{TablePrefix: cfg.Dynamo.TablePrefix}
		if cfg.Dynamo.CreateTables {
			if err := dynamo.CreateTables(ctx, client, dcfg, tableWait); err != nil {
				return nil, err
			}
			a.Logger.Info("dynamodb tables ready", "prefix", cfg.Dynamo.TablePrefix)
		}
		return dynamo.New(client, dcfg), nil

	case config.BackendSQLite, config.BackendPostgres:
		dialect, ok := sqlstore.DialectByName(cfg.Backend)
		if !ok {
			return nil, fmt.Errorf("unknown sql dialect %q", cfg.Backend)
		}
		b, err := sqlstore.Open(ctx, dialect, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, b)
		return b, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// newDynamoClient loads the default AWS configuration chain. A non-empty
// endpoint points the client at a local DynamoDB.
func newDynamoClient(ctx context.Context, endpoint string) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
