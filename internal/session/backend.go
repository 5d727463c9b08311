package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/db"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/rag"
)

// Backend hands out per-session indexes for the configured index backend
type Backend struct {
	name string
	db   *bun.DB
}

// OpenBackend connects to the backing store when it needs one
func OpenBackend(ctx context.Context, cfg *config.IndexConfig) (*Backend, error) {
	switch cfg.Backend {
	case "", config.BackendChromem:
		return &Backend{name: config.BackendChromem}, nil
	case config.BackendPgvector:
		dbInstance := db.NewDB(db.ConnectDB(cfg.DSN), cfg.Debug)
		if err := dbInstance.PingContext(ctx); err != nil {
			dbInstance.Close()
			return nil, fmt.Errorf("%w: connect: %w", models.ErrIndex, err)
		}
		if err := db.InitDB(ctx, dbInstance); err != nil {
			dbInstance.Close()
			return nil, fmt.Errorf("%w: init: %w", models.ErrIndex, err)
		}
		log.Info().Msg("Connected to pgvector")
		return &Backend{name: config.BackendPgvector, db: dbInstance}, nil
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", models.ErrInvalidConfig, cfg.Backend)
	}
}

func (b *Backend) Name() string {
	return b.name
}

// NewIndex satisfies IndexFactory
func (b *Backend) NewIndex(sessionID string) rag.Index {
	if b.db != nil {
		return db.NewIndex(b.db, sessionID)
	}
	return chromemdb.NewIndex(sessionID)
}

func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
