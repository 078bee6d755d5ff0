// Package store opens the review.Store selected by the configuration.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/at-ishikawa/recall/internal/config"
	"github.com/at-ishikawa/recall/internal/database"
	"github.com/at-ishikawa/recall/internal/review"
	"github.com/at-ishikawa/recall/internal/store/memstore"
	"github.com/at-ishikawa/recall/internal/store/redisstore"
	"github.com/at-ishikawa/recall/internal/store/sqlstore"
	"github.com/at-ishikawa/recall/internal/store/yamlstore"
)

// Store is a review.Store that can also enumerate its records.
type Store interface {
	review.Store
	review.Lister
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open opens the configured backend. The returned closer releases its connections.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (Store, io.Closer, error) {
	return OpenBackend(ctx, cfg.Store.Backend, cfg, log)
}

// OpenBackend opens backend using the connection settings of cfg.
// SQL backends are migrated before use.
func OpenBackend(ctx context.Context, backend string, cfg *config.Config, log *slog.Logger) (Store, io.Closer, error) {
	if log == nil {
		log = slog.Default()
	}
	switch backend {
	case config.BackendMemory:
		return memstore.New(), nopCloser{}, nil

	case config.BackendYAML:
		s, err := yamlstore.New(cfg.Store.YAMLDirectory, log)
		if err != nil {
			return nil, nil, fmt.Errorf("yamlstore.New() > %w", err)
		}
		return s, nopCloser{}, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("database.OpenSQLite() > %w", err)
		}
		if err := database.Migrate(ctx, db, database.DialectSQLite); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("database.Migrate() > %w", err)
		}
		return sqlstore.New(db, database.DialectSQLite, log), db, nil

	case config.BackendMySQL:
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("database.Open() > %w", err)
		}
		if err := database.Migrate(ctx, db, database.DialectMySQL); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("database.Migrate() > %w", err)
		}
		return sqlstore.New(db, database.DialectMySQL, log), db, nil

	case config.BackendRedis:
		rdb, err := redisstore.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redisstore.Open() > %w", err)
		}
		return redisstore.New(rdb, cfg.Redis.KeyPrefix, log), rdb, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q, want one of %v", backend, config.Backends())
}
