package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/config"
	"github.com/stemsi/exstem-live/internal/repository"
	"github.com/stemsi/exstem-live/internal/store"
	"github.com/stemsi/exstem-live/internal/store/sqlite"
)

// Backend is an opened store together with the handles that must be
// released on shutdown.
type Backend struct {
	Name  string
	Store store.Store
	// Pool is set only for the postgres backend.
	Pool  *pgxpool.Pool
	close func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenStore opens the backend named by cfg.StoreBackend.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		log.Warn().Msg("Using in-memory store, sessions are lost on restart")
		return &Backend{Name: config.StoreMemory, Store: store.NewMemory()}, nil

	case config.StorePostgres:
		pool, err := NewPostgresPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:  config.StorePostgres,
			Store: repository.NewStore(pool),
			Pool:  pool,
			close: pool.Close,
		}, nil

	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:  config.StoreSQLite,
			Store: st,
			close: func() {
				if err := st.Close(); err != nil {
					log.Error().Err(err).Msg("SQLite close failed")
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}
