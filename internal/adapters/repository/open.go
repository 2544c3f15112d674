package repository

import (
	"context"
	"fmt"

	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/pkg/logger"
)

// Open builds the configured backend. When the backend is unreachable and
// cfg.StoreFallback is set, the file store under cfg.DataDir is used instead.
// The choice is made once; a store that fails later is not swapped.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	o := buildOptions(opts)

	var (
		store Store
		err   error
	)
	switch cfg.StoreBackend {
	case BackendFile:
		return NewFileStore(cfg.DataDir, opts...)
	case BackendMongo:
		store, err = NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout(), opts...)
	case BackendMySQL:
		store, err = NewSQLStore(ctx, cfg.MySQLDSN, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}
	if err == nil {
		o.log.Info(ctx, "store connected", logger.String("backend", store.Backend()))
		return store, nil
	}
	if !cfg.StoreFallback {
		return nil, err
	}

	o.log.Warn(ctx, "store unavailable, using local files",
		logger.String("backend", cfg.StoreBackend),
		logger.String("data_dir", cfg.DataDir),
		logger.Error(err),
	)
	return NewFileStore(cfg.DataDir, opts...)
}
