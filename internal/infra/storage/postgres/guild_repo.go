package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/infra/storage"
)

// GuildRepo implements storage.GuildRepository using PostgreSQL.
type GuildRepo struct {
	db *DB
}

// NewGuildRepo creates a new PostgreSQL guild repository.
func NewGuildRepo(db *DB) *GuildRepo {
	return &GuildRepo{db: db}
}

// Upsert inserts a guild or refreshes its URL and location.
func (r *GuildRepo) Upsert(ctx context.Context, g *domain.Guild) (bool, error) {
	query := `
		INSERT INTO guilds (name, chain, url, location_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (chain, name) DO UPDATE SET
			url = EXCLUDED.url,
			location_code = EXCLUDED.location_code,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS created
	`

	var created bool
	err := r.db.QueryRowxContext(ctx, query, g.Name, g.Chain, g.URL, g.LocationCode, time.Now()).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("%w: failed to upsert guild %s: %v", storage.ErrPersistence, g.Name, err)
	}
	return created, nil
}

// ListTracked returns the guilds of a chain ordered by name.
func (r *GuildRepo) ListTracked(ctx context.Context, chain string) ([]*domain.Guild, error) {
	query := `
		SELECT name, chain, url, location_code, created_at, updated_at
		FROM guilds
		WHERE chain = $1
		ORDER BY name
	`

	var guilds []*domain.Guild
	if err := r.db.SelectContext(ctx, &guilds, query, chain); err != nil {
		return nil, fmt.Errorf("%w: failed to list guilds: %v", storage.ErrPersistence, err)
	}
	return guilds, nil
}
